package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/applog"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/config"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/console"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/db"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/hub"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/monitor"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/notary"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/notify"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/retention"
	"github.com/Raje0906/Tourist-Safety-sub001/internal/webserver"
)

func openDB() (*db.DB, error) {
	dbPath := config.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}
	store, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	return pw, err
}

func main() {
	// console subcommand: attach a monitoring console to a running service.
	if len(os.Args) >= 3 && os.Args[1] == "console" {
		feedURL := os.Args[2]
		token := ""
		if len(os.Args) >= 4 {
			token = os.Args[3]
		}
		// TUI owns the terminal; logs would corrupt the screen.
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		app := console.NewApp(feedURL, token, logger)
		if err := app.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(os.Args) >= 3 && os.Args[1] == "adduser" {
		username := os.Args[2]
		pw, err := readPassword(fmt.Sprintf("Password for %s: ", username))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		hash, err := bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		store, err := openDB()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		if _, err := store.CreateAccount(username, string(hash)); err != nil {
			fmt.Fprintf(os.Stderr, "error creating account: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Account created: %s\n", username)
		return
	}

	if len(os.Args) >= 3 && os.Args[1] == "passwd" {
		username := os.Args[2]
		pw, err := readPassword(fmt.Sprintf("New password for %s: ", username))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		hash, err := bcrypt.GenerateFromPassword(pw, bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		store, err := openDB()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		acc, err := store.GetAccountByUsername(username)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: user not found: %v\n", err)
			os.Exit(1)
		}
		store.UpdateAccountPassword(acc.ID, string(hash))
		store.DeleteRefreshTokensByAccount(acc.ID)
		fmt.Printf("Password updated: %s (all sessions invalidated)\n", username)
		return
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
		cfg = config.Defaults()
	}

	if err := config.EnsureJWTSecret(config.DefaultPath(), &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not persist JWT secret: %v\n", err)
	}

	logger, logCloser, err := applog.Init(applog.InitConfig{
		LogDir:   cfg.LogDir,
		LogLevel: cfg.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		logger = slog.Default() // falls back to default (stderr)
	} else {
		defer logCloser.Close()
	}

	store, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	feedHub := hub.New(logger)
	notifier := notify.New(notify.Config{
		Webhook: cfg.Notifications.Webhook,
		NtfyURL: cfg.Notifications.NtfyURL,
	}, feedHub, logger)
	notaryClient := notary.New(cfg.Notary.Endpoint)

	srv := webserver.New(store, feedHub, notifier, notaryClient, webserver.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
		TLS: webserver.TLSConfig{
			Mode:     cfg.Server.TLS.Mode,
			CertFile: cfg.Server.TLS.CertFile,
			KeyFile:  cfg.Server.TLS.KeyFile,
			CacheDir: cfg.Server.TLS.CacheDir,
		},
		Auth: webserver.AuthConfig{
			JWTSecret:       cfg.Server.Auth.JWTSecret,
			AccessTokenTTL:  cfg.Server.Auth.AccessTokenTTL,
			RefreshTokenTTL: cfg.Server.Auth.RefreshTokenTTL,
		},
	}, logger)

	mon := monitor.New(store, notifier,
		time.Duration(cfg.Monitor.IntervalSeconds)*time.Second,
		time.Duration(cfg.Monitor.InactivityMinutes)*time.Minute,
		logger)

	pruner := retention.New(store,
		time.Duration(cfg.Retention.PingDays)*24*time.Hour,
		time.Duration(cfg.Retention.AnomalyDays)*24*time.Hour,
		logger)

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "error: webserver: %v\n", err)
		os.Exit(1)
	}
	mon.Start()
	defer mon.Stop()
	pruner.Start()
	defer pruner.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Warn("shutdown", "err", err)
	}
}
