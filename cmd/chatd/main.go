package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatwidget/pkg/completion"
	_ "chatwidget/pkg/completion/providers"
	"chatwidget/pkg/config"
	"chatwidget/pkg/logging"
	"chatwidget/pkg/server"
	"chatwidget/pkg/version"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		showVersion = flag.Bool("version", false, "print version information and exit")
		configPath  = flag.String("config", config.GetConfigPath(), "path to the config file")
		envFile     = flag.String("env", ".env", "optional dotenv file loaded before environment overrides")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info("chatd"))
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	logging.InitWriter(cfg, "chatd", os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("chatd_failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	var provider completion.Provider
	if cfg.Server.APIKey == "" {
		slog.Warn("completion_unconfigured", "provider", cfg.Server.Provider)
	} else {
		p, err := completion.FromConfig(cfg.Server)
		if err != nil {
			return fmt.Errorf("create completion provider: %w", err)
		}
		provider = p
	}

	var store server.CounterStore = server.NewMemoryStore()
	if cfg.Server.RedisURL != "" {
		rs, err := server.NewRedisStore(ctx, cfg.Server.RedisURL)
		if err != nil {
			return err
		}
		store = rs
		slog.Info("rate_counters_redis", "redis_url", cfg.Server.RedisURL)
	}
	defer store.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(cfg, provider, store).Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.TimeoutSeconds)*time.Second + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("chatd_listening",
			"addr", cfg.Server.Addr,
			"version", version.Summary(),
			"provider", cfg.Server.Provider,
			"model", cfg.Server.Model,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("chatd_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
