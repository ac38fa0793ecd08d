package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arcturus.sanger.ac.uk/internal/auth"
	"arcturus.sanger.ac.uk/internal/binder"
	"arcturus.sanger.ac.uk/internal/config"
	"arcturus.sanger.ac.uk/internal/directory"
	"arcturus.sanger.ac.uk/internal/httpapi"
	"arcturus.sanger.ac.uk/internal/obs"
	"arcturus.sanger.ac.uk/internal/tenant"
)

var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	dir := directory.NewClient(directory.Config{
		URL:          cfg.LDAPURL,
		BindDN:       cfg.LDAPBindDN,
		BindPassword: cfg.LDAPBindPass,
		PeopleBase:   cfg.LDAPPeople,
		Timeout:      cfg.LDAPTimeout,
	})
	resolver := tenant.NewResolver(dir, cfg.LDAPBase, tenant.Policy{
		Environment:       cfg.Environment,
		ReadOnlyInstances: cfg.ReadOnlyInstances,
		ReadOnlyUsername:  cfg.ReadOnlyUser,
		ReadOnlyPassword:  cfg.ReadOnlyPassword,
	})
	b := binder.New(cfg.LDAPTimeout)

	sessions := auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	chain := auth.NewAuthenticator(sessions, auth.Config{
		AllowExpiredAPIToken: cfg.AllowExpiredAPIToken,
	})
	login := auth.NewService(dir, sessions,
		auth.WithAuthTokenTTL(cfg.AuthTokenTTL),
		auth.WithAPITokenTTL(cfg.APITokenTTL),
	)

	api := httpapi.New(cfg, resolver, b, chain, login,
		httpapi.ReadyFunc(dir.Ping), version)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.LogEvent("info", "starting arcturus-gateway", map[string]any{
		"version": version,
		"config":  cfg.String(),
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	obs.LogEvent("info", "shutting down", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	obs.LogEvent("info", "stopped", nil)
}
