package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuencahub/hub-backend/internal/analysis"
	"github.com/cuencahub/hub-backend/internal/auth"
	"github.com/cuencahub/hub-backend/internal/config"
	"github.com/cuencahub/hub-backend/internal/dashboard"
	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/logging"
	"github.com/cuencahub/hub-backend/internal/mapdata"
	"github.com/cuencahub/hub-backend/internal/metrics"
	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/cuencahub/hub-backend/internal/projects"
	"github.com/cuencahub/hub-backend/internal/reports"
	"github.com/cuencahub/hub-backend/internal/sensors"
	"github.com/cuencahub/hub-backend/internal/storage"
	"github.com/cuencahub/hub-backend/internal/webhooks"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if err := db.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("database: %v", err)
	}

	store, err := storage.NewFileStore(cfg.Storage.Dir, cfg.Storage.PublicURL, cfg.Storage.MaxBytes)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	// The analysis cache is optional; without Redis every request goes upstream.
	var cache analysis.Cache
	if rc := analysis.OpenRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); rc != nil {
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rc.Ping(pingCtx).Err(); err != nil {
			slog.Warn("redis unavailable, analysis cache disabled", "addr", cfg.Redis.Addr, "error", err)
			rc.Close()
		} else {
			cache = analysis.NewRedisCache(rc)
			defer rc.Close()
		}
		cancel()
	}

	client := analysis.NewClient(cfg.Analysis.BaseURL, cfg.Analysis.APIKey, cfg.Analysis.Timeout, cfg.Analysis.RatePerMin)

	auth.Init(auth.Settings{SessionTTL: cfg.Session.TTL, SecureCookies: cfg.Session.Secure, Store: store})
	projects.Init()
	reports.Init(reports.Settings{Store: store})
	sensors.Init()
	webhooks.Init(webhooks.Settings{GatewaySecret: cfg.Webhooks.GatewaySecret})
	analysis.Init(analysis.Settings{
		Client:    client,
		Cache:     cache,
		CacheTTL:  cfg.Analysis.CacheTTL,
		Tolerance: cfg.Analysis.DrawTolerance,
	})

	sessions := auth.SessionInfo{}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog(logger))
	r.Use(metrics.Middleware)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/", RootHandler)
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/auth", auth.SetupRoutes())
	r.Mount("/projects", projects.SetupRoutes(sessions))
	r.Mount("/reports", reports.SetupRoutes(sessions))
	r.Mount("/devices", sensors.DeviceRoutes(sessions))
	r.Mount("/api/sensor", sensors.IngestRoutes(cfg.Sensors.IngestPerSecond, cfg.Sensors.IngestBurst))
	r.Mount("/webhooks", webhooks.SetupRoutes())
	r.Mount("/analysis", analysis.SetupRoutes(sessions))
	r.Mount("/map", mapdata.SetupRoutes())
	r.Mount("/dashboard", dashboard.SetupRoutes(sessions))
	r.Mount(cfg.Storage.PublicURL, store.Handler())

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// analysis calls can take minutes upstream
		WriteTimeout: cfg.Analysis.Timeout + 30*time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
