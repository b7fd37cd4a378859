package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/config"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/db"
	"github.com/ehr/intake/internal/platform/metrics"
	"github.com/ehr/intake/internal/platform/middleware"
)

const metricsNamespace = "intake"

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	var (
		pool  *pgxpool.Pool
		forms intake.FormRepository
	)
	if cfg.HasDatabase() {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		forms = intake.NewFormRepoPG(pool)
		logger.Info().Msg("connected to database")
	} else {
		logger.Warn().Msg("DATABASE_URL not set; form versions are disabled")
	}

	formCfg, source, err := loadFormConfig(ctx, cfg, forms)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load form configuration")
	}
	logger.Info().Str("source", source).Strs("sections", formCfg.SectionKeys()).Msg("form configuration loaded")
	if lint := intake.Lint(formCfg); len(lint.Issues) > 0 {
		for _, issue := range lint.Issues {
			logger.Warn().Str("severity", issue.Severity).Str("section", issue.Section).
				Str("field", issue.Field).Msg(issue.Message)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewCollector(metricsNamespace, reg)

	svc := intake.NewService(intake.NewEngine(formCfg, logger), forms, logger)
	svc.SetMetrics(m)

	e := newServer(cfg, logger, svc, m, reg)
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo app with global middleware and every route
// except the database health check.
func newServer(cfg *config.Config, logger zerolog.Logger, svc *intake.Service, m *metrics.Collector, g prometheus.Gatherer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics(m))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(g)))

	apiV1 := e.Group("/api/v1")
	fhirGroup := e.Group("/fhir")
	intake.NewHandler(svc).RegisterRoutes(apiV1, fhirGroup)

	return e
}
