package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	postgres "github.com/civic-assoc/membership-api/internal/adapters/postgres"
	pgidempotency "github.com/civic-assoc/membership-api/internal/adapters/postgres/idempotency"
	pguow "github.com/civic-assoc/membership-api/internal/adapters/postgres/uow"
	"github.com/civic-assoc/membership-api/internal/app/members"
	"github.com/civic-assoc/membership-api/internal/domain"
	platformclock "github.com/civic-assoc/membership-api/internal/platform/clock"
	"github.com/civic-assoc/membership-api/internal/platform/secret"
)

func newMigrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := g.openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			return postgres.Migrate(ctx, pool, g.log)
		},
	}
}

func newBootstrapOperatorCmd(g *globals) *cobra.Command {
	var (
		subject string
		role    string
		first   string
		last    string
		email   string
	)
	cmd := &cobra.Command{
		Use:   "bootstrap-operator",
		Short: "Create an operator bound to an identity-provider subject, if absent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := g.openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := members.NewService(pguow.NewRunner(pool), platformclock.NewSystemClock(), secret.NewBcryptHasher(bcrypt.DefaultCost), secret.NewGenerator())
			svc.Logger = g.log
			created, err := svc.EnsureOperator(ctx, members.OperatorBootstrap{
				Subject:   domain.SubjectID(strings.TrimSpace(subject)),
				Role:      domain.Role(strings.ToUpper(strings.TrimSpace(role))),
				FirstName: first,
				LastName:  last,
				Email:     email,
			})
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "operator %s created\n", subject)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "operator %s already exists\n", subject)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "identity-provider subject (JWT sub)")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAdmin), "SECRETARY, PRESIDENT or ADMIN")
	cmd.Flags().StringVar(&first, "first-name", "Association", "first name")
	cmd.Flags().StringVar(&last, "last-name", "Administrator", "last name")
	cmd.Flags().StringVar(&email, "email", "", "contact email")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// Expiry is stored per record, so the store's TTL plays no part in a purge.
func newPurgeIdempotencyCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-idempotency",
		Short: "Delete expired idempotency records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := g.openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			n, err := pgidempotency.NewStore(pool, 0).Purge(ctx)
			if err != nil {
				return err
			}
			g.log.Info("idempotency records purged", zap.Int64("count", n))
			return nil
		},
	}
}

// newHashSecretCmd prints the bcrypt hash of a secret read from stdin, for manual
// credential resets.
func newHashSecretCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-secret",
		Short: "Read a secret from stdin and print its bcrypt hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return err
			}
			s := strings.TrimRight(raw, "\r\n")
			if s == "" {
				return fmt.Errorf("empty secret")
			}
			hash, err := secret.NewBcryptHasher(cost).Hash(s)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
