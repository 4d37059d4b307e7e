package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"billing/internal/assistant"
	"billing/internal/config"
	"billing/internal/dataset"
	"billing/internal/logger"
	"billing/internal/sheets"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "billing",
	Short: "Billing dashboard backend for the distribution centers",
	Long: `billing reads the receivables spreadsheet of the distribution centers and
serves the billing dashboards, the client scores and the AI assistant.

It can run as an HTTP API (serve) or answer one-off questions from the
command line (dashboard, client, ask).`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Billing CLI executed")

		fmt.Println("Billing dashboard backend")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err, "Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

// loadConfig loads the environment configuration for a command.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLoader connects to the spreadsheet and returns a dataset loader.
func newLoader(ctx context.Context, cfg *config.Config) (*dataset.Loader, error) {
	const op = "newLoader"

	if err := cfg.ValidateSheets(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	loc, err := cfg.GetSheetLocation()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	svc, err := sheets.NewService(ctx, sheets.Config{
		SheetID:  cfg.GoogleSheetID,
		SheetURL: cfg.GoogleSheetURL,
		APIKey:   cfg.GoogleSheetsAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to initialize Google Sheets service: %w", op, err)
	}

	return dataset.NewLoader(svc, dataset.Options{
		BillingRange: cfg.BillingRange,
		ClientRange:  cfg.ClientRange,
		Location:     loc,
	}), nil
}

func assistantConfig(cfg *config.Config) assistant.Config {
	return assistant.Config{
		APIKey:      cfg.AssistantAPIKey,
		BaseURL:     cfg.AssistantBaseURL,
		Model:       cfg.AssistantModel,
		Temperature: cfg.AssistantTemperature,
		MaxTokens:   cfg.AssistantMaxTokens,
	}
}

// newAssistant returns the assistant service, or an error when it is not configured.
func newAssistant(cfg *config.Config) (*assistant.Service, error) {
	if err := cfg.ValidateAssistant(); err != nil {
		return nil, err
	}
	ac := assistantConfig(cfg)
	return assistant.NewService(assistant.NewClient(ac), ac), nil
}
