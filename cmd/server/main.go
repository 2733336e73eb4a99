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

	"go-hiring-tracker/internal/api"
	"go-hiring-tracker/internal/app"
	"go-hiring-tracker/internal/config"
	"go-hiring-tracker/internal/logger"
	"go-hiring-tracker/internal/scheduler"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfgFile := flag.String("config", "", "config file (default "+config.DefaultPath+")")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("❌ Failed to init logger: %v", err)
	}
	defer zl.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	latest := api.NewLatest()
	a, err := app.New(ctx, cfg, zl, latest)
	if err != nil {
		zl.Fatal("❌ Failed to init tracker", zap.Error(err))
	}
	defer a.Close()

	// "off" leaves scans to POST /scans
	var sched *scheduler.Scheduler
	if cfg.Schedule != "off" {
		sched = scheduler.New(cfg.Schedule, func(ctx context.Context) error {
			_, err := a.Tracker.RunAll(ctx, cfg.Portals)
			return err
		}, zl)
		if err := sched.Start(ctx); err != nil {
			zl.Fatal("❌ Failed to start scheduler", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewServer(a.Tracker, cfg.Portals, a.Regions, latest, a.Metrics, zl).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("🌐 Server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("server shutdown", zap.Error(err))
	}
	if sched != nil {
		sched.Stop()
	}
}
