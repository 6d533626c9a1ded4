package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/usage"
	"mercator-hq/conduit/pkg/usage/retention"
	"mercator-hq/conduit/pkg/usage/storage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Inspect and prune recorded usage",
	Long: `Query or prune the usage events persisted by a running server.

These commands read the SQLite usage store named in the configuration.`,
}

var usageListFlags struct {
	provider    string
	contentType string
	since       string
	until       string
	limit       int
	format      string
}

var usageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded usage events",
	Long: `List usage events, oldest first.

Examples:
  # Last day of gpt-4 traffic as CSV
  conduit usage list --provider gpt-4 --since 2026-01-01T00:00:00Z --format csv

  # First 20 blog post selections
  conduit usage list --content-type blog_post --limit 20`,
	RunE: listUsage,
}

var usagePruneFlags struct {
	days int
}

var usagePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete usage events past the retention period",
	Long: `Delete usage events older than the retention period. The period comes
from usage.retention.days unless --days is given.

Examples:
  # Apply the configured retention now
  conduit usage prune

  # Keep only the last week
  conduit usage prune --days 7`,
	RunE: pruneUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageListCmd, usagePruneCmd)

	usageListCmd.Flags().StringVar(&usageListFlags.provider, "provider", "", "filter by provider ID")
	usageListCmd.Flags().StringVar(&usageListFlags.contentType, "content-type", "", "filter by content type")
	usageListCmd.Flags().StringVar(&usageListFlags.since, "since", "", "only events at or after this RFC3339 time")
	usageListCmd.Flags().StringVar(&usageListFlags.until, "until", "", "only events before this RFC3339 time")
	usageListCmd.Flags().IntVar(&usageListFlags.limit, "limit", 100, "maximum events to print (0 for all)")
	usageListCmd.Flags().StringVar(&usageListFlags.format, "format", "text", "output format: text, json, csv")

	usagePruneCmd.Flags().IntVar(&usagePruneFlags.days, "days", -1, "retention period in days (config value when negative)")
}

// eventTable renders usage events one per row.
type eventTable []usage.Event

func (t eventTable) Header() []string {
	return []string{"TIMESTAMP", "REQUEST_ID", "PROVIDER", "CONTENT_TYPE", "TOKENS", "COST", "COMPLETED", "SUCCESS", "RESPONSE_MS"}
}

func (t eventTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, ev := range t {
		rows = append(rows, []string{
			ev.Timestamp.UTC().Format(time.RFC3339),
			ev.RequestID,
			ev.ProviderID,
			ev.ContentType,
			strconv.Itoa(ev.Tokens),
			formatFloat(ev.Cost),
			strconv.FormatBool(ev.Completed),
			strconv.FormatBool(ev.Success),
			formatFloat(ev.ResponseTime),
		})
	}
	return rows
}

// openUsageStore opens the durable usage store. Only SQLite outlives the
// server process, so other backends are rejected.
func openUsageStore(cfg *config.Config) (storage.Backend, error) {
	if cfg.Usage.Backend != "sqlite" {
		return nil, cli.NewConfigError("usage.backend",
			fmt.Sprintf("usage commands need the sqlite backend, got %q", cfg.Usage.Backend))
	}
	return storage.Open(cfg.Usage)
}

func parseUsageFilter() (storage.Filter, error) {
	f := storage.Filter{
		ProviderID:  usageListFlags.provider,
		ContentType: usageListFlags.contentType,
		Limit:       usageListFlags.limit,
	}
	if f.Limit < 0 {
		return f, fmt.Errorf("--limit must be non-negative")
	}
	for _, tf := range []struct {
		name  string
		value string
		dst   *time.Time
	}{
		{"since", usageListFlags.since, &f.Since},
		{"until", usageListFlags.until, &f.Until},
	} {
		if tf.value == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, tf.value)
		if err != nil {
			return f, fmt.Errorf("invalid --%s: %w", tf.name, err)
		}
		*tf.dst = t
	}
	return f, nil
}

func listUsage(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(usageListFlags.format)
	if err != nil {
		return err
	}
	filter, err := parseUsageFilter()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	store, err := openUsageStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.List(cmd.Context(), filter)
	if err != nil {
		return cli.NewCommandError("usage list", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), eventTable(events))
}

func pruneUsage(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := newLogger(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	days := cfg.Usage.Retention.Days
	if usagePruneFlags.days >= 0 {
		days = usagePruneFlags.days
	}

	store, err := openUsageStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pruner := retention.NewPruner(store, retention.Config{RetentionDays: days}, nil)
	cutoff, ok := pruner.Cutoff()
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "Retention disabled, nothing pruned")
		return nil
	}

	deleted, err := pruner.Prune(cmd.Context())
	if err != nil {
		return cli.NewCommandError("usage prune", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d usage events older than %s\n", deleted, cutoff.UTC().Format(time.RFC3339))
	return nil
}
