package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"billing/internal/assistant"
	"billing/internal/logger"
	"billing/internal/metrics"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the AI assistant about a dashboard",
	Long: `Ask the AI assistant a question about the figures of a dashboard.

The assistant receives a summary of the selected dashboard and period as
context. With --compare it instead explains the change between the selected
period and the previous one, and no question is needed.

Required environment variables:
  ASSISTANT_API_KEY - key of the OpenAI-compatible chat endpoint`,
	Example: `  billing ask "Quais clientes estão inadimplentes?"
  billing ask --dashboard cd-viana --competence 03/2024 "Como foi o mês?"
  billing ask --dashboard cd-viana --competence 03/2024 --compare`,
	Args: cobra.ArbitraryArgs,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().String("dashboard", "global", "Dashboard id or slug")
	askCmd.Flags().String("competence", "", "Competence period (format: MM/YYYY)")
	askCmd.Flags().String("from", "", "First issue date (format: YYYY-MM-DD)")
	askCmd.Flags().String("to", "", "Last issue date (format: YYYY-MM-DD)")
	askCmd.Flags().Bool("compare", false, "Explain the change from the previous period")
	askCmd.MarkFlagsRequiredTogether("from", "to")
}

func runAsk(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ask")

	dashboardID, _ := cmd.Flags().GetString("dashboard")
	competence, _ := cmd.Flags().GetString("competence")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	compare, _ := cmd.Flags().GetBool("compare")
	question := strings.TrimSpace(strings.Join(args, " "))

	if !compare && question == "" {
		return fmt.Errorf("a question is required")
	}

	d, err := metrics.ParseDashboard(dashboardID)
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
	if compare && !selected {
		return fmt.Errorf("--compare needs --competence or --from/--to")
	}

	ai, err := newAssistant(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	loader, err := newLoader(ctx, cfg)
	if err != nil {
		return err
	}

	report, err := buildReport(ctx, loader, d, sel, selected, cfg.GetRatingConfig())
	if err != nil {
		return err
	}

	var answer string
	if compare {
		if report.Comparison == nil {
			fmt.Println(assistant.NoPreviousPeriod)
			return nil
		}
		log.Info().Str("dashboard", d.ID()).Str("period", report.Period).Msg("Summarizing comparison")
		answer, err = ai.SummarizeComparison(ctx, d.Label(), *report.Comparison)
	} else {
		log.Info().Str("dashboard", d.ID()).Int("question_length", len(question)).Msg("Asking assistant")
		answer, err = ai.Ask(ctx, question, nil, assistant.DescribeSummary(report.title(), report.Summary))
	}
	if err != nil {
		return err
	}

	fmt.Println(answer)
	return nil
}
