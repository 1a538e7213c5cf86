package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfinch/gatehouse/account"
	"github.com/mfinch/gatehouse/config"
	"github.com/mfinch/gatehouse/internal/util"
	"github.com/mfinch/gatehouse/token"
)

// Demo accounts created by the seed command. Passwords are generated per
// run and printed once; accounts that already exist are left untouched.
var seedUsers = []struct {
	email    string
	username string
}{
	{"admin@example.com", "admin"},
	{"user@example.com", "user"},
	{"test@example.com", "testuser"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo accounts for development",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := cfg.ResolveSecrets(ctx); err != nil {
			return fmt.Errorf("failed to resolve secrets: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.IsProduction() {
			return errors.New("seeding is for development environments only")
		}

		logger := newLogger(cfg.Log)
		issuer, err := token.NewIssuer([]byte(cfg.Token.Secret))
		if err != nil {
			return fmt.Errorf("failed to initialize token issuer: %w", err)
		}
		repo, cleanup, err := openRepository(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		svc := account.NewService(repo, issuer, cfg.Token.TTL())

		for _, u := range seedUsers {
			password, err := util.RandomChars(16)
			if err != nil {
				return fmt.Errorf("failed to generate password: %w", err)
			}
			_, _, err = svc.Register(ctx, u.email, u.username, password)
			if errors.Is(err, account.ErrDuplicate) {
				fmt.Printf("%-10s already exists, skipping\n", u.username)
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to seed %s: %w", u.username, err)
			}
			fmt.Printf("%-10s %-20s password: %s\n", u.username, u.email, password)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
}
