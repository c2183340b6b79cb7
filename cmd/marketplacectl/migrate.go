package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utafrali/marketplace/internal/repository/postgres/migrations"
	"github.com/utafrali/marketplace/pkg/database"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply pending schema migrations to the configured store.

On Postgres every embedded *.up.sql file not yet recorded in
schema_migrations is applied in its own transaction. On MongoDB the
collection indexes are created.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, _, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			applied, err := store.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return nil
		},
	}
	cmd.AddCommand(newMigrateListCmd())
	return cmd
}

func newMigrateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the embedded Postgres migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := database.PendingMigrations(migrations.FS)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
