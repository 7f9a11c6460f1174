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

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthcheck/healthcheck/internal/config"
	"github.com/healthcheck/healthcheck/internal/domain/filter"
	"github.com/healthcheck/healthcheck/internal/domain/healthcheck"
	"github.com/healthcheck/healthcheck/internal/platform/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthcheck-server",
		Short: "Health check result lifecycle API",
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), followUpsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServer(cfg, newLogger(cfg))
		},
	}
}

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	if st.pool != nil {
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("using in-memory store; data is lost on restart")
	}
	if cfg.ResolvedAuthMode() == config.AuthDevelopment {
		logger.Warn().Msg("development auth is active: unauthenticated requests act as admin")
	}

	e, err := newServer(cfg, logger, st)
	if err != nil {
		return err
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(c *cobra.Command, fn func(ctx context.Context, m *db.Migrator, schema string) error) error {
		facility, _ := c.Flags().GetString("facility")
		dir, _ := c.Flags().GetString("dir")
		schema, err := db.FacilitySchema(facility)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if dir == "" {
			dir = cfg.MigrationsDir
		}
		ctx := context.Background()
		pool, err := db.NewPool(ctx, db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: 2})
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, db.NewMigrator(pool, dir), schema)
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(c *cobra.Command, args []string) error {
			return withMigrator(c, func(ctx context.Context, m *db.Migrator, schema string) error {
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(c.OutOrStdout(), "Applied %d migration(s) to %s.\n", count, schema)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(c *cobra.Command, args []string) error {
			return withMigrator(c, func(ctx context.Context, m *db.Migrator, schema string) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration status: %w", err)
				}
				printMigrationStatus(c.OutOrStdout(), schema, statuses)
				return nil
			})
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("facility", "default", "Facility whose schema is migrated")
		c.Flags().String("dir", "", "Migrations directory (default MIGRATIONS_DIR)")
		cmd.AddCommand(c)
	}
	return cmd
}

func followUpsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "followups",
		Short: "List results awaiting follow-up, soonest first",
		RunE: func(c *cobra.Command, args []string) error {
			asOf, _ := c.Flags().GetString("as-of")
			urgencyFlag, _ := c.Flags().GetString("urgency")
			facility, _ := c.Flags().GetString("facility")

			var urgency healthcheck.Urgency
			if urgencyFlag != "" {
				u, ok := healthcheck.ParseUrgency(urgencyFlag)
				if !ok {
					return fmt.Errorf("--urgency must be overdue, today or upcoming")
				}
				urgency = u
			}
			day, err := filter.ParseDay(asOf)
			if err != nil {
				return fmt.Errorf("--as-of: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			ctx, release, err := st.scope(ctx, facility)
			if err != nil {
				return err
			}
			defer release()

			svc := healthcheck.NewService(st.results, cfg.ApproverRoles...)
			svc.SetLocation(loc)
			if day != nil {
				at := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, loc)
				svc.SetClock(func() time.Time { return at })
			}
			recs, err := svc.FollowUps(ctx, urgency)
			if err != nil {
				return err
			}
			printFollowUps(c.OutOrStdout(), recs, svc.Today())
			return nil
		},
	}
	cmd.Flags().String("as-of", "", "Evaluate urgency as of YYYY-MM-DD (default today)")
	cmd.Flags().String("urgency", "", "Only overdue, today or upcoming")
	cmd.Flags().String("facility", "default", "Facility to report on")
	return cmd
}
