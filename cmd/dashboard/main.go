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

	"github.com/Skotchmaster/trends_dashboard/internal/audit"
	"github.com/Skotchmaster/trends_dashboard/internal/config"
	"github.com/Skotchmaster/trends_dashboard/internal/cookie"
	"github.com/Skotchmaster/trends_dashboard/internal/grid"
	"github.com/Skotchmaster/trends_dashboard/internal/handlers"
	"github.com/Skotchmaster/trends_dashboard/internal/lifecycle"
	"github.com/Skotchmaster/trends_dashboard/internal/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/middleware/auth"
	"github.com/Skotchmaster/trends_dashboard/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/trends_dashboard/internal/middleware/logging"
	"github.com/Skotchmaster/trends_dashboard/internal/mykafka"
	"github.com/Skotchmaster/trends_dashboard/internal/session"
	httpserver "github.com/Skotchmaster/trends_dashboard/internal/transport/http"
	"github.com/Skotchmaster/trends_dashboard/internal/trendsapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	exit := lifecycle.NewExitSignal(cfg.ExitMarkerDir, cfg.ServiceName)
	graceful, at, err := exit.ConsumeGraceful()
	if err != nil {
		logger.Warn("exit_marker_unreadable", "error", err)
	}
	logger.Info("starting", "addr", cfg.ListenAddr, "previous_exit_graceful", graceful, "previous_exit_at", at)

	var events audit.Publisher = audit.LogPublisher{Logger: logger}
	var prod *mykafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mykafka.EnsureTopics(ctx, cfg.KafkaBrokers[0], cfg.AuditTopic); err != nil {
			logger.Warn("kafka_topics_not_ensured", "error", err)
		}
		cancel()
		prod, err = mykafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatal(err)
		}
		events = audit.NewKafkaPublisher(prod, cfg.AuditTopic)
	}

	api := trendsapi.NewClient(trendsapi.Options{
		Environments:       cfg.Environments,
		DefaultEnvironment: cfg.DefaultEnvironment,
		AuthTimeout:        cfg.AuthTimeout,
		DataTimeout:        cfg.DataTimeout,
		LogTimeout:         cfg.LogTimeout,
	})
	codec := cookie.NewCodec(cfg.SessionTTL, cfg.CookieSecure, cfg.DefaultEnvironment)
	ctrl := session.NewController(session.Options{
		API:                api,
		Codec:              codec,
		Events:             events,
		RefreshBuffer:      cfg.RefreshBuffer,
		DefaultEnvironment: cfg.DefaultEnvironment,
	})

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		Guard: auth.NewGuard(ctrl, codec),
		SessionHandler: &handlers.SessionHandler{
			Sessions:        ctrl,
			Codec:           codec,
			Environments:    cfg.EnvironmentNames(),
			DefaultEnv:      cfg.DefaultEnvironment,
			RefreshInterval: cfg.RefreshInterval,
		},
		ProfileHandler: &handlers.ProfileHandler{Profiles: ctrl, Codec: codec},
		GridHandler: &handlers.GridHandler{
			API:             api,
			Tables:          grid.DefaultRegistry(),
			DefaultPageSize: cfg.DefaultPageSize,
			RowPageSize:     cfg.RowPageSize,
		},
		ActionHandler: &handlers.ActionHandler{API: api},
		HealthHandler: &handlers.HealthHandler{Deployment: cfg.Deployment, Started: time.Now(), Graceful: graceful},
	}
	if cfg.CSRFEnabled {
		c := csrf.DefaultConfig()
		c.Secure = cfg.CookieSecure
		c.TrustedOrigins = cfg.CSRFTrustedOrigins
		deps.CSRF = &c
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.LogTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	if err := exit.MarkGraceful(time.Now()); err != nil {
		logger.Warn("exit_marker_not_written", "error", err)
	}

	go func() {
		<-quit
		logger.Error("force exit")
		os.Exit(1)
	}()

	logger.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if prod != nil {
		if err := prod.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
