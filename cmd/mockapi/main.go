package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/trends_dashboard/internal/config"
	"github.com/Skotchmaster/trends_dashboard/internal/db"
	"github.com/Skotchmaster/trends_dashboard/internal/logging"
	loggingmw "github.com/Skotchmaster/trends_dashboard/internal/middleware/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/mockapi"
)

func main() {
	cfg := config.LoadMockAPI()
	logger := logging.New(cfg.LogLevel).With("service", "trends-mockapi")

	gdb, err := db.Open(context.Background(), cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	repo := &mockapi.GormRepo{DB: gdb}
	if err := repo.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if cfg.Seed {
		if err := repo.Seed(context.Background(), time.Now()); err != nil {
			log.Fatalf("seed: %v", err)
		}
		logger.Info("seeded")
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	srv := &mockapi.Server{
		Repo:          repo,
		JWTSecret:     []byte(cfg.JWTSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}
	if cfg.AuthRateLimit > 0 {
		srv.Limiter = mockapi.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow)
	}
	srv.Register(e)

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()
	logger.Info("listening", "addr", cfg.ListenAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}
	logger.Info("shutdown complete")
}
