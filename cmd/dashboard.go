package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"billing/internal/assistant"
	"billing/internal/dataset"
	"billing/internal/logger"
	"billing/internal/metrics"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard <id>",
	Short: "Print the figures of a billing dashboard",
	Long: `Print the KPIs, rankings, score distribution and rating of a dashboard.

The id is GLOBAL or one of the distribution centers, either as written in the
Lotacao column ("CD VIANA") or as a slug ("cd-viana").

With --competence or --from/--to the figures cover that period only and are
compared with the previous one.`,
	Example: `  # Whole dataset, every location
  billing dashboard global

  # One competence period of CD Viana, compared with the previous one
  billing dashboard cd-viana --competence 03/2024

  # A date range as JSON
  billing dashboard cd-matriz --from 2024-03-01 --to 2024-03-15 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	dashboardCmd.Flags().String("competence", "", "Competence period (format: MM/YYYY)")
	dashboardCmd.Flags().String("from", "", "First issue date (format: YYYY-MM-DD)")
	dashboardCmd.Flags().String("to", "", "Last issue date (format: YYYY-MM-DD)")
	dashboardCmd.Flags().Bool("json", false, "Print JSON instead of text")
	dashboardCmd.MarkFlagsMutuallyExclusive("competence", "from")
	dashboardCmd.MarkFlagsMutuallyExclusive("competence", "to")
	dashboardCmd.MarkFlagsRequiredTogether("from", "to")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("dashboard")

	competence, _ := cmd.Flags().GetString("competence")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	asJSON, _ := cmd.Flags().GetBool("json")

	d, err := metrics.ParseDashboard(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.GetSheetLocation()
	if err != nil {
		return err
	}
	sel, selected, err := metrics.ParseSelection(d.Location(), competence, from, to, loc)
	if err != nil {
		return err
	}

	ctx := context.Background()
	loader, err := newLoader(ctx, cfg)
	if err != nil {
		return err
	}

	log.Info().
		Str("dashboard", d.ID()).
		Str("competence", competence).
		Str("from", from).
		Str("to", to).
		Msg("Building dashboard")

	report, err := buildReport(ctx, loader, d, sel, selected, cfg.GetRatingConfig())
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Print(assistant.DescribeSummary(report.title(), report.Summary))
	if report.Comparison != nil {
		fmt.Printf("\nComparação %s x %s:\n", report.Comparison.CurrentLabel, report.Comparison.PreviousLabel)
		fmt.Print(assistant.DescribeDiff(*report.Comparison))
	}
	return nil
}

// dashboardReport is what the dashboard command prints.
type dashboardReport struct {
	Dashboard string `json:"dashboard"`
	Label     string `json:"label"`
	Period    string `json:"period,omitempty"`
	metrics.Summary
	Comparison *metrics.PeriodDiff `json:"comparison,omitempty"`
}

func (r dashboardReport) title() string {
	if r.Period == "" {
		return r.Label
	}
	return r.Label + " - " + r.Period
}

func buildReport(ctx context.Context, loader *dataset.Loader, d metrics.Dashboard, sel metrics.Selection, selected bool, rating metrics.RatingConfig) (*dashboardReport, error) {
	const op = "buildReport"

	snap, err := loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	engine := snap.Engine(rating)

	report := &dashboardReport{
		Dashboard: d.ID(),
		Label:     d.Label(),
		Summary:   engine.Summarize(sel.Filter()),
	}
	if !selected {
		return report, nil
	}

	cmp, err := engine.Compare(sel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	report.Period = cmp.CurrentLabel
	if cmp.HasPrevious {
		diff := metrics.Diff(cmp)
		report.Comparison = &diff
	}
	return report, nil
}
