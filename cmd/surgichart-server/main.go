package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/surgichart/internal/config"
	"github.com/ehr/surgichart/internal/domain/identity"
	"github.com/ehr/surgichart/internal/domain/procedure"
	"github.com/ehr/surgichart/internal/domain/resolution"
	"github.com/ehr/surgichart/internal/domain/surgery"
	"github.com/ehr/surgichart/internal/platform/auth"
	"github.com/ehr/surgichart/internal/platform/db"
	"github.com/ehr/surgichart/internal/platform/metrics"
	"github.com/ehr/surgichart/internal/platform/middleware"
	"github.com/ehr/surgichart/migrations"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "surgichart-server",
		Short: "Anesthesia charting API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the charting API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, schema string) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *db.Migrator, schema string) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(cmd.OutOrStdout(), schema, statuses)
				return nil
			})
		},
	}

	for _, c := range []*cobra.Command{upCmd, statusCmd} {
		c.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
		c.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
		cmd.AddCommand(c)
	}
	return cmd
}

func withMigrator(cmd *cobra.Command, run func(context.Context, *db.Migrator, string) error) error {
	schema, _ := cmd.Flags().GetString("schema")
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg))
	if err != nil {
		return err
	}
	defer pool.Close()

	return run(ctx, db.NewMigrator(pool, migrationSource(dir)), schema)
}

func migrationSource(dir string) fs.FS {
	if dir != "" {
		return os.DirFS(dir)
	}
	return migrations.FS
}

func printStatus(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func poolOptions(cfg *config.Config) db.PoolOptions {
	return db.PoolOptions{
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		ApplicationName: "surgichart-server",
	}
}

func matchConfigFrom(cfg *config.Config) resolution.MatchConfig {
	mc := resolution.DefaultMatchConfig()
	mc.HighThreshold = cfg.MatchHighThreshold
	mc.MediumThreshold = cfg.MatchMediumThreshold
	mc.MinScore = cfg.MatchMinScore
	mc.MaxCandidates = cfg.MatchMaxCandidates
	mc.ScanLimit = cfg.MatchScanLimit
	mc.PrefilterRatio = cfg.MatchPrefilterRatio
	return mc
}

// newOrchestrator checks the matching configuration before wiring the
// resolver, so a bad threshold stops startup instead of skewing matches.
func newOrchestrator(cfg *config.Config, store resolution.Store, holds resolution.HoldStore, logger zerolog.Logger, obs resolution.Observer) (*resolution.Orchestrator, error) {
	mc := matchConfigFrom(cfg)
	if err := mc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid match config: %w", err)
	}
	return resolution.NewOrchestrator(store, mc, logger,
		resolution.WithObserver(obs),
		resolution.WithHoldStore(holds),
		resolution.WithHoldTTL(cfg.PendingTTL),
	), nil
}

func breakerSettingsFrom(cfg *config.Config) resolution.BreakerSettings {
	return resolution.BreakerSettings{
		ConsecutiveFailures: cfg.StoreBreakerFailures,
		OpenTimeout:         cfg.StoreBreakerTimeout,
		HalfOpenRequests:    1,
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		SigningKey: []byte(cfg.AuthSigningKey),
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// routeRegistrar is satisfied by every domain handler.
type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

func newServer(cfg *config.Config, logger zerolog.Logger, collector *metrics.Collector, health echo.HandlerFunc, handlers ...routeRegistrar) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(collector.Middleware())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	if health != nil {
		e.GET("/health/db", health)
	}
	e.GET("/metrics", echo.WrapHandler(collector.Handler()))

	api := e.Group("/api/v1", authMiddleware(cfg))
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}
	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg))
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	patientRepo := identity.NewPatientRepo(pool)
	procedureRepo := procedure.NewRepo(pool)
	surgeryRepo := surgery.NewRepo(pool)

	store := resolution.NewBreakerStore(
		resolution.NewRepoStore(patientRepo, procedureRepo, surgeryRepo),
		breakerSettingsFrom(cfg),
		logger,
		collector.BreakerStateChanged,
	)
	orch, err := newOrchestrator(cfg, store, resolution.NewPGHoldStore(pool), logger, collector)
	if err != nil {
		return err
	}

	e := newServer(cfg, logger, collector, db.HealthHandler(pool),
		identity.NewHandler(identity.NewService(patientRepo)),
		procedure.NewHandler(procedure.NewService(procedureRepo)),
		surgery.NewHandler(surgery.NewService(surgeryRepo)),
		resolution.NewHandler(orch),
	)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
