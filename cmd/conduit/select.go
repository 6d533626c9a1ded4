package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/routing"
)

var selectFlags struct {
	contentType string
	tokens      int
	strategy    string
	maxCost     float64
	specialties []string
	exclude     []string
	format      string
}

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Preview a provider selection",
	Long: `Run a single selection against the configured catalog and print the
decision. Every provider starts healthy and idle, so the result shows how the
strategy ranks the catalog before any traffic is observed.

Examples:
  # Rank providers for a blog post
  conduit select --content-type blog_post --tokens 1500

  # Compare strategies
  conduit select --content-type technical --strategy cost_first

  # Exclude a provider and cap the cost
  conduit select --content-type email --exclude gpt-4 --max-cost 0.002 --format json`,
	RunE: selectProvider,
}

func init() {
	rootCmd.AddCommand(selectCmd)

	selectCmd.Flags().StringVarP(&selectFlags.contentType, "content-type", "t", "", "content type to route (required)")
	selectCmd.Flags().IntVar(&selectFlags.tokens, "tokens", 1000, "estimated token count")
	selectCmd.Flags().StringVarP(&selectFlags.strategy, "strategy", "s", "", "override the configured strategy")
	selectCmd.Flags().Float64Var(&selectFlags.maxCost, "max-cost", 0, "maximum estimated cost in USD")
	selectCmd.Flags().StringSliceVar(&selectFlags.specialties, "specialty", nil, "required specialties (overrides the content type table)")
	selectCmd.Flags().StringSliceVar(&selectFlags.exclude, "exclude", nil, "providers to exclude")
	selectCmd.Flags().StringVar(&selectFlags.format, "format", "text", "output format: text, json, csv")
	_ = selectCmd.MarkFlagRequired("content-type")
}

// decisionTable renders a selection as one row per ranked provider.
type decisionTable struct {
	*routing.SelectionDecision
}

func (d decisionTable) Header() []string {
	return []string{"RANK", "PROVIDER", "SCORE", "EST_COST", "EST_TIME_MS", "REASON"}
}

func (d decisionTable) Rows() [][]string {
	rows := [][]string{{
		"1",
		d.SelectedProvider,
		formatFloat(d.SelectionCriteria.OverallScore),
		formatFloat(d.EstimatedCost),
		formatFloat(d.EstimatedTime),
		d.SelectionCriteria.Reason,
	}}
	for i, alt := range d.FallbackProviders {
		rows = append(rows, []string{
			strconv.Itoa(i + 2),
			alt.ProviderID,
			formatFloat(alt.OverallScore),
			formatFloat(alt.EstimatedCost),
			formatFloat(alt.EstimatedTime),
			"fallback",
		})
	}
	return rows
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func selectProvider(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(selectFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if selectFlags.strategy != "" {
		if _, err := routing.ParseStrategy(selectFlags.strategy); err != nil {
			return err
		}
		cfg.Routing.Strategy = selectFlags.strategy
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	engine, err := routing.Build(cfg, logger)
	if err != nil {
		return cli.NewCommandError("select", err)
	}

	var req *routing.Requirements
	if selectFlags.maxCost > 0 || len(selectFlags.specialties) > 0 || len(selectFlags.exclude) > 0 {
		req = &routing.Requirements{
			MaxCost:          selectFlags.maxCost,
			Specialties:      selectFlags.specialties,
			ExcludeProviders: selectFlags.exclude,
		}
	}

	decision, err := engine.Select(selectFlags.contentType, selectFlags.tokens, req)
	if err != nil {
		return cli.NewCommandError("select", err)
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), decisionTable{decision})
}
