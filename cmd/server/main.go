package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"walknav/backend/internal/config"
	"walknav/backend/internal/db"
	"walknav/backend/internal/handler"
	"walknav/backend/internal/logging"
	"walknav/backend/internal/repository"
	"walknav/backend/internal/router"
	"walknav/backend/internal/routing"
	"walknav/backend/internal/service"
	"walknav/backend/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	logger := logging.New("walknav", cfg.LogLevel)

	database, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.RunMigrations(database, cfg.MigrationsDir); err != nil {
		logger.Error("run migrations", "error", err)
		os.Exit(1)
	}

	kv, closeKV, err := storage.Open(storage.Options{
		Driver:        cfg.Storage.Driver,
		DB:            database,
		RedisAddr:     cfg.Storage.RedisAddr,
		RedisPassword: cfg.Storage.RedisPassword,
		BadgerDir:     cfg.Storage.BadgerDir,
		FileDir:       cfg.Storage.FileDir,
	})
	if err != nil {
		logger.Error("open profile storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := closeKV(); err != nil {
			logger.Error("close profile storage", "error", err)
		}
	}()

	userRepo := repository.NewUserRepository(database)
	walkService := service.NewWalkService(kv, routing.StraightLine{}, cfg.Location, logger)
	authService := service.NewAuthService(userRepo, walkService, cfg.JWTSecret, cfg.TokenTTL)

	authHandler := handler.NewAuthHandler(authService)
	walkHandler := handler.NewWalkHandler(walkService)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(authService, authHandler, walkHandler, cfg.CORSOrigins, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("backend listening",
			"port", cfg.Port,
			"storage", cfg.Storage.Driver,
			"timezone", cfg.Location.String(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("run server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown server", "error", err)
	}
	logger.Info("backend stopped")
}
