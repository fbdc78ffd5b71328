package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/oskarlind/tradingpost/internal/bank"
	"github.com/oskarlind/tradingpost/internal/bank/bankhttp"
	"github.com/oskarlind/tradingpost/internal/config"
	"github.com/oskarlind/tradingpost/internal/registry"
	"github.com/oskarlind/tradingpost/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting bankd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadBank(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	ledger := bank.NewLedger(logger)
	srv := bankhttp.NewServer(ledger, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Router(),
	}

	reg := registry.NewClient(cfg.Registry.URL)
	if err := reg.Bind(ctx, cfg.Instance.Name, cfg.Server.AdvertiseURL); err != nil {
		logger.Error("failed to bind bank name", "name", cfg.Instance.Name, "registry", cfg.Registry.URL, "error", err)
		os.Exit(1)
	}
	logger.Info("bank bound", "name", cfg.Instance.Name, "endpoint", cfg.Server.AdvertiseURL)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("bank server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := reg.Unbind(shutdownCtx, cfg.Instance.Name); err != nil {
			logger.Warn("failed to unbind bank name", "error", err)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("bankd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("bankd stopped")
}
