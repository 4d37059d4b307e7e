package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"billing/internal/admin"
	"billing/internal/database"
	"billing/internal/identity"
	"billing/internal/logger"
	"billing/internal/profiles"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage dashboard users",
}

var usersBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the first administrator",
	Long: `Create the first administrator of the dashboard.

The command is refused once any user exists; further users are managed by
an administrator through the API.

Required environment variables:
  TOKEN_SECRET - at least 32 characters
  DATABASE_PATH - SQLite database file (default: billing.db)`,
	Example: `  billing users bootstrap --email admin@example.com --password s3cret! --name "Admin"`,
	RunE:    runUsersBootstrap,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersBootstrapCmd)

	usersBootstrapCmd.Flags().String("email", "", "Administrator email")
	usersBootstrapCmd.Flags().String("password", "", "Administrator password")
	usersBootstrapCmd.Flags().String("name", "", "Administrator display name")
	_ = usersBootstrapCmd.MarkFlagRequired("email")
	_ = usersBootstrapCmd.MarkFlagRequired("password")
}

func runUsersBootstrap(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("users")

	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	name, _ := cmd.Flags().GetString("name")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.TokenSecret) < 32 {
		return fmt.Errorf("TOKEN_SECRET must be at least 32 characters")
	}

	db, err := database.Open(cfg.DatabasePath, false)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

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

	svc := admin.New(admin.Deps{
		Identity:          ids,
		Profiles:          docs,
		MinPasswordLength: cfg.MinPasswordLength,
	})
	docs.OnWrite(svc.SyncAdminClaim)

	msg, err := svc.Bootstrap(context.Background(), admin.CreateUserRequest{
		Email:    email,
		Password: password,
		Name:     name,
	})
	if err != nil {
		return err
	}

	log.Info().Str("email", email).Str("database", cfg.DatabasePath).Msg("Administrator bootstrapped")
	fmt.Println(msg)
	return nil
}
