package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Astrix-nita-01/anchor-notes/internal/config"
	"github.com/Astrix-nita-01/anchor-notes/internal/store"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations",
		Long: `Apply every migration in the migrations directory that has not run yet.

The Redis store keeps JSON collections and has nothing to migrate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Store != config.StorePostgres {
				fmt.Fprintf(cmd.OutOrStdout(), "store %q has no migrations\n", c.cfg.Store)
				return nil
			}
			ctx := cmd.Context()
			db, err := store.Open(ctx, c.cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()
			if err := store.ApplyMigrations(ctx, db, c.cfg.MigrationsDir); err != nil {
				return fmt.Errorf("migrations failed: %w", err)
			}
			c.logger.Info("migrations applied", zap.String("dir", c.cfg.MigrationsDir))
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the sample catalogue into an empty store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			written, err := rt.service.Seed(cmd.Context())
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			if written == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "store already has notes, nothing seeded")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d notes\n", written)
			return nil
		},
	}
}

func (c *cli) reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Push every note to Meilisearch",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			indexed, err := rt.service.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d notes\n", indexed)
			return nil
		},
	}
}

func (c *cli) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute cached comment counts",
		Long: `Recompute each note's comment count from its stored comments and report
the notes whose cached count was wrong.

Seeded notes carry display counts without comment records, so reconciling
a freshly seeded store resets those counts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			drifts, err := rt.service.Reconcile(cmd.Context())
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, d := range drifts {
				fmt.Fprintf(out, "%s  %q  %d -> %d\n", d.NoteID, d.Name, d.Recorded, d.Actual)
			}
			fmt.Fprintf(out, "%d notes corrected\n", len(drifts))
			return nil
		},
	}
}
