// @title           Todo API
// @version         1.0
// @description     Todo API with partial updates and bulk seed data.
// @host            localhost:8080
// @BasePath        /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"todoapi/internal/app"
	"todoapi/internal/config"
	"todoapi/internal/logging"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.WithFields(log.Fields{"env": cfg.App.Env, "version": cfg.App.Version}).
		Info("config loaded, migrating and connecting to DB")

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatalf("app init: %v", err)
	}
	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTP.Port,
		Handler:      application.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration(),
		IdleTimeout:  cfg.HTTP.IdleTimeout.Duration(),
	}

	go func() {
		logger.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.WithField("signal", sig.String()).Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Duration())
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown")
	}
	if err := application.Close(ctx); err != nil {
		logger.WithError(err).Error("app close")
	}
}
