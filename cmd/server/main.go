package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"vision-gateway/config"
	"vision-gateway/internal/metrics"
	"vision-gateway/internal/server"
	"vision-gateway/internal/service"
	"vision-gateway/internal/storage"
	"vision-gateway/log"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log.InitLogger()
	defer log.GetLogger().Sync()

	if err := config.LoadConfig(); err != nil {
		log.GetLogger().Error("failed to load config", zap.Error(err))
		os.Exit(1)
	}

	if config.Conf.History.Enabled {
		if err := storage.InitDB(); err != nil {
			log.GetLogger().Fatal("failed to open history database", zap.Error(err))
		}
	}

	mp, stopMetrics, err := metrics.Setup(metrics.Config{
		StdoutMetrics: config.Conf.Telemetry.StdoutMetrics,
		Interval:      time.Duration(config.Conf.Telemetry.IntervalSeconds) * time.Second,
	})
	if err != nil {
		log.GetLogger().Fatal("failed to set up metrics", zap.Error(err))
	}

	gw, err := service.NewGateway(mp)
	if err != nil {
		log.GetLogger().Fatal("failed to build gateway", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(gw)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	select {
	case err = <-serverErr:
		if err != nil {
			log.GetLogger().Error("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		log.GetLogger().Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		log.GetLogger().Warn("http shutdown", zap.Error(err))
	}
	gw.Close(shutdownCtx)
	if err = stopMetrics(shutdownCtx); err != nil {
		log.GetLogger().Warn("metrics shutdown", zap.Error(err))
	}
	log.GetLogger().Info("server stopped")
}
