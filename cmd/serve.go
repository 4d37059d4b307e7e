package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"billing/internal/admin"
	"billing/internal/config"
	"billing/internal/database"
	"billing/internal/identity"
	"billing/internal/logger"
	"billing/internal/mailer"
	"billing/internal/profiles"
	"billing/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	Long: `Run the HTTP API used by the dashboard web app.

Dashboards and client profiles are computed from a fresh read of the
spreadsheet on every request. Users and their profiles are kept in a local
SQLite database.

Required environment variables:
  GOOGLE_SHEET_ID or GOOGLE_SHEET_URL - spreadsheet with the BaseReceber sheet
  GOOGLE_SHEETS_API_KEY, or GOOGLE_APPLICATION_CREDENTIALS / GOOGLE_CREDENTIALS
  TOKEN_SECRET - at least 32 characters, signs the ID tokens

Optional:
  ASSISTANT_API_KEY - enables the assistant routes
  SMTP_HOST, MAIL_FROM - enable welcome emails`,
	Example: `  # Serve on the default address
  billing serve

  # Serve on a custom address
  billing serve --addr :9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: HTTP_ADDR)")
	serveCmd.Flags().Bool("debug-sql", false, "Log SQL statements")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	addr, _ := cmd.Flags().GetString("addr")
	if addr == "" {
		addr = cfg.HTTPAddr
	}
	debugSQL, _ := cmd.Flags().GetBool("debug-sql")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, err := newLoader(ctx, cfg)
	if err != nil {
		return err
	}

	log.Info().Str("path", cfg.DatabasePath).Msg("Opening user database")
	db, err := database.Open(cfg.DatabasePath, debugSQL)
	if err != nil {
		return err
	}
	defer func() {
		log.Info().Msg("Closing user database")
		if err := database.Close(db); err != nil {
			log.Warn().Err(err).Msg("Failed to close user database")
		}
	}()

	ids, err := identity.NewStore(db, identity.NewTokenIssuer(identity.TokenConfig{
		Secret: cfg.TokenSecret,
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
	}))
	if err != nil {
		return err
	}
	docs, err := profiles.NewStore(db)
	if err != nil {
		return err
	}

	users := admin.New(admin.Deps{
		Identity:          ids,
		Profiles:          docs,
		Mailer:            newMailer(cfg),
		MinPasswordLength: cfg.MinPasswordLength,
	})
	docs.OnWrite(users.SyncAdminClaim)

	loc, err := cfg.GetSheetLocation()
	if err != nil {
		return err
	}

	deps := server.Deps{
		Admin:          users,
		Tokens:         ids,
		Dataset:        loader,
		Rating:         cfg.GetRatingConfig(),
		Location:       loc,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if ai, err := newAssistant(cfg); err != nil {
		log.Warn().Err(err).Msg("Assistant disabled")
	} else {
		deps.Assistant = ai
	}

	log.Info().
		Str("addr", addr).
		Str("version", version).
		Bool("assistant", deps.Assistant != nil).
		Bool("mail", cfg.MailEnabled()).
		Msg("Starting billing API")

	return server.New(deps).Run(ctx, addr, cfg.ShutdownTimeout)
}

func newMailer(cfg *config.Config) mailer.Mailer {
	if !cfg.MailEnabled() {
		return mailer.NewNop()
	}
	return mailer.NewSMTP(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		AppURL:   cfg.AppURL,
	})
}
