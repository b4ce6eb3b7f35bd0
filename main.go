// Package main provides the omikuji command: the HTTP server, schema migrations and catalog seeding
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/amirphl/Omikuji/config"
	"github.com/amirphl/Omikuji/logger"
	"github.com/amirphl/Omikuji/migrations"
	"github.com/amirphl/Omikuji/seed"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "omikuji",
		Short:         "Daily good/bad card draw service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	return root
}

// loadRuntime loads configuration and builds the process logger
func loadRuntime() (*config.ProductionConfig, *slog.Logger, io.Closer, error) {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, closer := logger.FromConfig(cfg.Logging, cfg.Deployment.Environment)
	slog.SetDefault(log)
	return cfg, log, closer, nil
}

func newServeCmd() *cobra.Command {
	var migrate, seedCatalog bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, closer, err := loadRuntime()
			if err != nil {
				return err
			}
			defer closer.Close()

			if migrate {
				if err := runMigrations(cmd.Context(), cfg, log); err != nil {
					return err
				}
			}

			app, err := initializeApplication(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.close()

			if seedCatalog {
				catalog, err := seed.Default()
				if err != nil {
					return err
				}
				if _, err := seed.NewSeeder(app.templateRepo, app.catalog, log).Run(cmd.Context(), catalog); err != nil {
					return err
				}
			}

			return app.run()
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	cmd.Flags().BoolVar(&seedCatalog, "seed", false, "upsert the embedded card catalog before serving")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				names, err := migrations.Names()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			cfg, log, closer, err := loadRuntime()
			if err != nil {
				return err
			}
			defer closer.Close()
			return runMigrations(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "print embedded migrations without connecting")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert the card catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, closer, err := loadRuntime()
			if err != nil {
				return err
			}
			defer closer.Close()

			catalog, err := loadCatalog(file)
			if err != nil {
				return err
			}

			app, err := initializeApplication(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.close()

			n, err := seed.NewSeeder(app.templateRepo, app.catalog, log).Run(cmd.Context(), catalog)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d card templates\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML catalog to load instead of the embedded one")
	return cmd
}

func loadCatalog(path string) (*seed.Catalog, error) {
	if path == "" {
		return seed.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return seed.Parse(data)
}

func runMigrations(ctx context.Context, cfg *config.ProductionConfig, log *slog.Logger) error {
	db, err := migrations.Open(cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := migrations.Apply(ctx, db)
	if err != nil {
		return fmt.Errorf("migration failed after %v: %w", applied, err)
	}
	log.Info("migrations applied", "count", len(applied), "names", applied)
	return nil
}

// waitForSignal blocks until SIGINT or SIGTERM
func waitForSignal() os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	return <-sigChan
}
