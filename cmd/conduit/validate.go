package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/config"
)

var validateFlags struct {
	format string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration file with environment overrides applied and
report whether it is valid.

Examples:
  # Validate a config file
  conduit validate --config config.yaml

  # JSON output for CI/CD
  conduit validate --config config.yaml --format json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json, csv")
}

// configSummary is the validated configuration as printed by validate.
type configSummary struct {
	Valid        bool              `json:"valid"`
	Strategy     string            `json:"strategy"`
	UsageBackend string            `json:"usageBackend"`
	Probing      bool              `json:"probing"`
	Providers    []providerSummary `json:"providers"`
}

type providerSummary struct {
	ID           string   `json:"id"`
	Active       bool     `json:"active"`
	Priority     int      `json:"priority"`
	CostPerToken float64  `json:"costPerToken"`
	RateLimit    int      `json:"rateLimit"`
	Specialties  []string `json:"specialties"`
}

func summarize(cfg *config.Config) configSummary {
	s := configSummary{
		Valid:        true,
		Strategy:     cfg.Routing.Strategy,
		UsageBackend: cfg.Usage.Backend,
		Probing:      cfg.Routing.Probe.Enabled,
		Providers:    make([]providerSummary, 0, len(cfg.Providers)),
	}
	for _, p := range cfg.Providers {
		s.Providers = append(s.Providers, providerSummary{
			ID:           p.ID,
			Active:       p.IsActive(),
			Priority:     p.Priority,
			CostPerToken: p.CostPerToken,
			RateLimit:    p.RateLimit,
			Specialties:  p.Specialties,
		})
	}
	return s
}

func (s configSummary) Header() []string {
	return []string{"PROVIDER", "ACTIVE", "PRIORITY", "COST_PER_TOKEN", "RATE_LIMIT", "SPECIALTIES"}
}

func (s configSummary) Rows() [][]string {
	rows := make([][]string, 0, len(s.Providers))
	for _, p := range s.Providers {
		rows = append(rows, []string{
			p.ID,
			strconv.FormatBool(p.Active),
			strconv.Itoa(p.Priority),
			strconv.FormatFloat(p.CostPerToken, 'g', -1, 64),
			strconv.Itoa(p.RateLimit),
			strings.Join(p.Specialties, ","),
		})
	}
	return rows
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	summary := summarize(cfg)
	if format == cli.FormatText {
		fmt.Fprintf(out, "✓ Configuration valid (strategy %s, usage backend %s)\n\n", summary.Strategy, summary.UsageBackend)
	}
	return cli.NewFormatter(format).FormatTo(out, summary)
}
