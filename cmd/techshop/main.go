package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"techshop/api"
	"techshop/auth"
	"techshop/config"
	"techshop/migrations"
	"techshop/notifier"
	"techshop/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	err = config.SetupLogging(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("failed to setup logging")
	}

	db, err := sqlx.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open DB")
	}

	defer db.Close()

	if cfg.Migrate {
		err = migrations.Migrate(db.DB)
		if err != nil {
			logrus.WithError(err).Fatal("failed to migrate")
		}
	}

	if cfg.Auth.AdminPassword == "" {
		logrus.Warn("ADMIN_PASSWORD is empty, token endpoint will reject every login")
	}

	hub := notifier.New(64)

	srv := api.New(
		store.New(db),
		auth.New(cfg.Auth.Secret, cfg.Auth.TokenTTL, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword),
		hub,
		api.Options{
			PageSize:      cfg.PageSize,
			AdminPageSize: cfg.AdminPageSize,
			MediaRoot:     cfg.Media.Root,
			MediaURL:      cfg.Media.URL,
			StaticRoot:    cfg.Static.Root,
			StaticURL:     cfg.Static.URL,
		},
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		var err error
		if cfg.TLSCert != "" && cfg.TLSKey != "" {
			err = srv.ListenTLS(cfg.BindAddr, cfg.TLSCert, cfg.TLSKey)
		} else {
			err = srv.Listen(cfg.BindAddr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("failed to start web server")
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit

	err = srv.Shutdown()
	if err != nil {
		logrus.WithError(err).Fatal("failed to shutdown web server")
	}

	wg.Wait()
}
