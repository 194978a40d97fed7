package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"erp/internal/domain/employee"
	"erp/internal/domain/ledger"
	"erp/internal/domain/payroll"
	"erp/internal/platform/config"
	"erp/internal/platform/db"
	"erp/internal/platform/logging"
	employeehandler "erp/internal/transport/http/handlers/employee"
	payrollhandler "erp/internal/transport/http/handlers/payroll"
	"erp/internal/transport/http/middleware"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogFormat, cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connect failed")
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	if err := db.Seed(ctx, pool, cfg); err != nil {
		logger.Fatal().Err(err).Msg("seed failed")
	}

	payrollStore := payroll.NewStore(pool)
	employeeStore := employee.NewStore(pool)
	bridge := ledger.NewPostgresBridge(pool)
	service := payroll.NewService(payrollStore, employeeStore, bridge, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recoverer(logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-Actor"},
		MaxAge:         300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		payrollhandler.NewHandler(service, payroll.BisectionSolver{}).RegisterRoutes(r)
		employeehandler.NewHandler(employeeStore).RegisterRoutes(r)
	})

	logger.Info().Str("addr", cfg.Addr).Str("env", cfg.Environment).Msg("payroll server listening")
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}
