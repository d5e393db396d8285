package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"pdfrag/internal/api"
	"pdfrag/internal/app"
	"pdfrag/internal/config"
	"pdfrag/internal/logger"
	"pdfrag/internal/metrics"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/pdfrag/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		if err = config.LoadDotEnv(".env"); err == nil {
			cfg, err = config.Load(cfgPath)
		}
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg := logger.New(cfg.Log, os.Stdout)
	m := metrics.New()

	svc, err := app.Build(context.Background(), cfg, lg, m)
	if err != nil {
		lg.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	if cfg.Server.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(svc, api.Options{
		Logger:         lg,
		Observer:       m,
		MetricsHandler: m.Handler(),
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second,
		DefaultK:       cfg.Server.DefaultK,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := svc.Close(); err != nil {
		lg.Warn("closing pipeline clients", "error", err)
	}
	lg.Info("server exited")
}
