package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"chaszcze-site/internal/api"
	"chaszcze-site/internal/auth"
	"chaszcze-site/internal/config"
	"chaszcze-site/internal/content"
	"chaszcze-site/internal/events"
	"chaszcze-site/internal/grid"
	"chaszcze-site/internal/landing"
	"chaszcze-site/internal/notify"
	"chaszcze-site/internal/server"
	"chaszcze-site/internal/sheets"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := newLogger(cfg)

	apiClient := api.New(cfg.APIURL, cfg.APITimeout, log)
	log.WithField("api", apiClient.BaseURL()).Info("events API configured")

	// Sheets only feeds the live sign-up counter; the page works without it.
	var counter landing.RegistrationCounter
	if cfg.SheetsEnabled() {
		sc, err := sheets.New(context.Background(), cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID, cfg.SheetsRange)
		if err != nil {
			log.WithError(err).Warn("sheets disabled")
		} else {
			log.WithField("spreadsheet", sc.SpreadsheetID()).Info("registration count from sheets")
			counter = sc
		}
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.TelegramEnabled() {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, cfg.BasePublicURL, log)
		if err != nil {
			log.WithError(err).Warn("telegram disabled")
		} else {
			notifier = tg
		}
	}

	blocks, err := content.Load()
	if err != nil {
		log.Fatalf("content: %v", err)
	}

	grids := grid.NewStore(apiClient, notifier, log)
	authMgr := auth.NewManager(cfg, log)
	authMgr.OnLogout(grids.Drop)

	httpSrv, err := server.New(cfg, server.Deps{
		Landing: landing.NewLoader(apiClient, counter, log),
		Events:  events.NewService(apiClient, notifier, log),
		Grids:   grids,
		Auth:    authMgr,
		Content: blocks,
		Log:     log,
	})
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)

	log.Info("bye")
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
