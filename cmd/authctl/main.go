package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-session-api/internal/repository"
	"github.com/noah-isme/auth-session-api/internal/service"
	"github.com/noah-isme/auth-session-api/migrations"
	"github.com/noah-isme/auth-session-api/pkg/config"
	"github.com/noah-isme/auth-session-api/pkg/database"
	"github.com/noah-isme/auth-session-api/pkg/logger"
)

type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
}

func (e *env) close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	e := &env{}
	timeout := 30 * time.Second

	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Maintenance commands for the auth session database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			db, err := database.NewPostgres(cfg.Database)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			e.cfg, e.logger, e.db = cfg, logr, db
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			e.close()
		},
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "Deadline for the command")

	withTimeout := func(cmd *cobra.Command) (context.Context, context.CancelFunc) {
		return context.WithTimeout(cmd.Context(), timeout)
	}

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			if err := database.Migrate(ctx, e.db.DB, migrations.Source(e.cfg.Database.MigrationsDir), "."); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "purge-revocations",
		Short: "Delete ledger entries whose tokens have expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			ledger := service.NewRevocationService(repository.NewRevocationRepository(e.db), nil, nil, e.logger, service.RevocationConfig{})
			removed, err := ledger.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d revocations\n", removed)
			return nil
		},
	})

	var accountID string
	revokeAll := &cobra.Command{
		Use:   "revoke-all",
		Short: "End every session of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			accounts := repository.NewAccountRepository(e.db)
			revocations := repository.NewRevocationRepository(e.db)
			sessions := service.NewSessionService(accounts, nil, nil, nil, nil, nil, nil, e.logger, service.SessionConfig{})
			if err := sessions.RevokeAll(ctx, accountID); err != nil {
				return err
			}
			live, err := revocations.CountByAccount(ctx, accountID, time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sessions ended for %s (%d live ledger entries)\n", accountID, live)
			return nil
		},
	}
	revokeAll.Flags().StringVar(&accountID, "account", "", "Account id")
	_ = revokeAll.MarkFlagRequired("account")
	root.AddCommand(revokeAll)

	return root
}
