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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthportal/portal/internal/config"
	"github.com/healthportal/portal/internal/domain/careteam"
	"github.com/healthportal/portal/internal/domain/compliance"
	"github.com/healthportal/portal/internal/domain/identity"
	"github.com/healthportal/portal/internal/domain/portal"
	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/db"
	"github.com/healthportal/portal/internal/platform/hipaa"
	"github.com/healthportal/portal/internal/platform/metrics"
	"github.com/healthportal/portal/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "portal-server",
		Short:         "Health portal API server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(providerCmd())
	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(remindersCmd())
	rootCmd.AddCommand(auditCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// services holds everything built from the pool. Commands use the parts
// they need.
type services struct {
	identity *identity.Service
	portal   *portal.Service
	careteam *careteam.Service
}

func buildServices(cfg *config.Config, pool *pgxpool.Pool, tokens identity.TokenIssuer) (*services, error) {
	profiles := portal.NewProfileRepo(pool)
	goals := portal.NewGoalRepo(pool)
	reminders := portal.NewReminderRepo(pool)
	portalSvc := portal.NewService(profiles, goals, reminders, portal.NewHealthTipRepo(pool))

	creds, err := identity.NewCredentialStore(pool, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	tx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	identitySvc := identity.NewService(identity.NewAccountRepo(pool), creds, portalSvc, tokens, tx)

	agg := compliance.NewAggregator(profiles, goals, reminders, compliance.Options{
		MaxConcurrency: cfg.ComplianceMaxConcurrency,
		PartialResults: cfg.CompliancePartial,
		PatientTimeout: cfg.CompliancePatientTimeout,
	})

	return &services{
		identity: identitySvc,
		portal:   portalSvc,
		careteam: careteam.NewService(profiles, portalSvc, identitySvc, agg, cfg.ComplianceMaxConcurrency),
	}, nil
}

// server is the wiring the HTTP layer needs. Fields may be nil in tests
// that only touch public routes.
type server struct {
	cfg      *config.Config
	logger   zerolog.Logger
	tokens   *auth.TokenService
	validity auth.StatusChecker
	audit    hipaa.Recorder
	health   db.Pinger
	svc      *services
}

func newEcho(s *server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(s.logger)

	e.Use(middleware.Recovery(s.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(s.logger))
	e.Use(middleware.Metrics())
	e.Use(middleware.SecurityHeaders(s.cfg.IsProduction()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: s.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	rl := middleware.DefaultRateLimitConfig()
	if s.cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = s.cfg.RateLimitRPS
	}
	if s.cfg.RateLimitBurst > 0 {
		rl.BurstSize = s.cfg.RateLimitBurst
	}
	rl.Skipper = func(c echo.Context) bool { return c.Path() == "/metrics" || c.Path() == "/health" }
	e.Use(middleware.RateLimit(rl))
	e.Use(middleware.BodyLimit(s.cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(s.cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	if s.health != nil {
		e.GET("/health/db", db.HealthHandler(s.health))
	}
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	api := e.Group("/api", auth.Authenticate(auth.GuardConfig{
		Verifier: s.tokens,
		Validity: s.validity,
		Skipper:  auth.AuthSkipper,
		Logger:   s.logger,
	}))

	portal.RegisterPublicRoutes(api)
	if s.svc != nil {
		identity.NewHandler(s.svc.identity, s.audit).RegisterRoutes(api)
		portal.NewHandler(s.svc.portal, s.audit).RegisterRoutes(api)
		careteam.NewHandler(s.svc.careteam, s.audit).RegisterRoutes(api)
	}

	return e
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	tokens, err := auth.NewTokenService([]byte(cfg.JWTSecret), auth.WithTTL(cfg.TokenTTL), auth.WithIssuer(cfg.TokenIssuer))
	if err != nil {
		var cerr *auth.ConfigError
		if errors.As(err, &cerr) {
			logger.Fatal().Err(err).Str("field", cerr.Field).Msg("refusing to start without a signing secret")
		}
		logger.Fatal().Err(err).Msg("failed to create token service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	svc, err := buildServices(cfg, pool, tokens)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}

	audit := hipaa.NewAuditLogger(hipaa.NewPGStore(pool), logger, hipaa.Options{
		QueueSize: cfg.AuditQueueSize,
		Workers:   cfg.AuditWorkers,
	})

	srv := &server{
		cfg:    cfg,
		logger: logger,
		tokens: tokens,
		audit:  audit,
		health: pool,
		svc:    svc,
	}
	if cfg.ValidityCacheTTL > 0 {
		cache := auth.NewValidityCache(svc.identity, cfg.ValidityCacheTTL)
		defer cache.Close()
		svc.identity.OnDeactivate = cache.Invalidate
		srv.validity = cache
	}

	if cfg.ReminderSweepInterval > 0 {
		go sweepReminders(ctx, svc.portal, cfg.ReminderSweepInterval, logger)
	}

	e := newEcho(srv)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := audit.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("audit queue not fully drained")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// sweepReminders marks overdue reminders missed once at startup and then
// every interval until ctx is done.
func sweepReminders(ctx context.Context, svc *portal.Service, interval time.Duration, logger zerolog.Logger) {
	run := func() {
		n, err := svc.SweepMissedReminders(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Error().Err(err).Msg("reminder sweep failed")
			}
			return
		}
		if n > 0 {
			logger.Info().Int64("reminders", n).Msg("marked overdue reminders missed")
		}
	}

	run()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

// openPool loads config and connects for the one-shot admin commands.
func openPool(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, pool, nil
}
