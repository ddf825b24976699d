package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"rollcall/internal/deploy"
	"rollcall/internal/ledger"
	"rollcall/internal/ledger/memory"
	pgledger "rollcall/internal/ledger/postgres"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/postgres"
)

var deployOwner string

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Publish a fresh registry and print its address",
	Long: `Publish an empty registry owned by --owner (or ledger.owner) to the
configured ledger backend. With the memory backend the registry only lives
for the duration of the command, which is useful for checking configuration.`,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		err := runDeploy(cmd.Context(), cmd.OutOrStdout())
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "deploy failed: %v\n", err)
		}
		return err
	},
}

func init() {
	deployCmd.Flags().StringVar(&deployOwner, "owner", "", "account that owns the new registry")
}

func runDeploy(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	owner := deployOwner
	if owner == "" {
		owner = cfg.Ledger.Owner
	}
	if owner == "" {
		return fmt.Errorf("--owner or ledger.owner is required")
	}

	publisher, closePublisher, err := openPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	_, err = deploy.New(publisher).Run(ctx, out, owner)
	return err
}

func openPublisher(ctx context.Context, cfg config.Config) (deploy.Publisher, func(), error) {
	policy, err := ledger.ParsePolicy(cfg.Ledger.Policy)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Ledger.Backend != config.BackendPostgres {
		network := memory.NewNetwork(memory.WithPolicy(policy))
		return network, network.Close, nil
	}
	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, err
	}
	if err := pgledger.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pgledger.New(pool, pgledger.WithPolicy(policy)), pool.Close, nil
}
