package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/anyuan-chen/manga/internal/manga"
	"github.com/anyuan-chen/manga/internal/platform/config"
	"github.com/anyuan-chen/manga/internal/platform/database"
	"github.com/anyuan-chen/manga/internal/platform/logger"
)

// backend is a store that can apply its own schema.
type backend interface {
	manga.Store
	Migrate(ctx context.Context) error
}

// opener connects to the backend. The returned func releases it.
type opener func(ctx context.Context, cfg *config.Config) (backend, func(), error)

func postgresBackend(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	db, err := database.New(ctx, database.Options{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return nil, nil, err
	}
	store, err := manga.NewPostgresStore(db.Pool)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, db.Close, nil
}

// cli carries what every subcommand needs once the root has run.
type cli struct {
	open opener
	cfg  *config.Config
}

func (c *cli) withStore(cmd *cobra.Command, fn func(backend) error) error {
	store, release, err := c.open(cmd.Context(), c.cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer release()
	return fn(store)
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:          "mangactl",
		Short:        "Manage manga reader content and learner data",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if url, _ := cmd.Flags().GetString("database-url"); url != "" {
				cfg.Database.URL = url
			}
			cfg.Log.Format = "text"
			slog.SetDefault(logger.New(os.Stderr, cfg.Log))
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().String("database-url", "", "PostgreSQL URL (overrides MANGA_DATABASE_URL)")

	root.AddCommand(
		newMigrateCmd(c),
		newSeedCmd(c),
		newStatsCmd(c),
		newExportCmd(c),
	)
	return root
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(store backend) error {
				if err := store.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
				return nil
			})
		},
	}
}
