package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"taskboard/internal/platform/config"
	"taskboard/internal/platform/httpserver"
	"taskboard/internal/platform/logger"
	"taskboard/internal/platform/postgres"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

var rootCmd = &cobra.Command{
	Use:           "taskboard",
	Short:         "Multi-user TODO API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the latest migration",
	RunE:  runMigrateDown,
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE:  runMigrateVersion,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-sessions",
	Short: "Revoke every expired session",
	Long: `Revoke every active session whose expiry has passed.

Sessions are also rejected on access once expired; the sweep only keeps the
session listing and storage tidy. Run it from cron or a scheduled job.`,
	RunE: runSweep,
}

var autoMigrate bool

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", true, "apply pending migrations before serving (Postgres only)")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.db != nil && autoMigrate {
		applied, err := postgres.NewMigrator(a.db).Up(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.InfoContext(ctx, "migrations applied", "count", applied)
	}

	srv := httpserver.New(cfg.Addr, a.router(), cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting taskboard", "addr", cfg.Addr, "version", version, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
		applied, err := m.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
		if err := m.Down(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "rolled back 1 migration")
		return nil
	})
}

func runMigrateVersion(cmd *cobra.Command, _ []string) error {
	return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
		v, err := m.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
		return nil
	})
}

func withMigrator(ctx context.Context, fn func(ctx context.Context, m *postgres.Migrator) error) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if !cfg.UsePostgres() {
		return errors.New("DATABASE_URL is required for migrations")
	}
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, postgres.NewMigrator(db))
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	count, err := a.auth.SweepExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %d expired session(s)\n", count)
	return nil
}
