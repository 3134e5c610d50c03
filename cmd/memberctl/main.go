package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	postgres "github.com/civic-assoc/membership-api/internal/adapters/postgres"
	"github.com/civic-assoc/membership-api/internal/platform/config"
	"github.com/civic-assoc/membership-api/internal/platform/logger"
)

// memberctl is the operator command line: schema migration, operator bootstrap
// and idempotency housekeeping against the Postgres backend.

type globals struct {
	databaseURL string
	logLevel    string
	log         *zap.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "memberctl",
		Short:         "memberctl administers the membership database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(logger.Config{Level: g.logLevel, Format: "console"})
			if err != nil {
				return err
			}
			g.log = log
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&g.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (defaults to $DATABASE_URL)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newMigrateCmd(g),
		newBootstrapOperatorCmd(g),
		newPurgeIdempotencyCmd(g),
		newHashSecretCmd(),
	)
	return root
}

func (g *globals) openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if strings.TrimSpace(g.databaseURL) == "" {
		return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	return postgres.NewPool(ctx, g.databaseURL, postgres.PoolOptions{MaxConns: 2})
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "memberctl:", err)
		os.Exit(1)
	}
}
