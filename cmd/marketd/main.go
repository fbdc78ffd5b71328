package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/oskarlind/tradingpost/internal/bankclient"
	"github.com/oskarlind/tradingpost/internal/config"
	"github.com/oskarlind/tradingpost/internal/hub"
	"github.com/oskarlind/tradingpost/internal/ledger"
	"github.com/oskarlind/tradingpost/internal/market"
	"github.com/oskarlind/tradingpost/internal/notify"
	"github.com/oskarlind/tradingpost/internal/registry"
	"github.com/oskarlind/tradingpost/internal/server"
	"github.com/oskarlind/tradingpost/internal/version"
)

const usage = "usage: marketd [-config FILE] [REGISTRY_PORT]"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting marketd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadMarket(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Optional positional argument: registry port.
	if arg := flag.Arg(0); arg != "" {
		port, err := strconv.Atoi(arg)
		if err != nil || port < 1 || port > 65535 {
			fmt.Fprintln(os.Stderr, "invalid registry port:", arg)
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(1)
		}
		cfg.Registry.URL = fmt.Sprintf("http://localhost:%d", port)
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

	// Resolve the bank before serving anything; a market without a bank
	// cannot settle.
	reg := registry.NewClient(cfg.Registry.URL)
	bankEndpoint, err := reg.Lookup(ctx, cfg.Bank.Name)
	if err != nil {
		logger.Error("failed to resolve bank", "bank", cfg.Bank.Name, "registry", cfg.Registry.URL, "error", err)
		os.Exit(1)
	}
	logger.Info("connected to bank", "bank", cfg.Bank.Name, "endpoint", bankEndpoint)

	bankClient := bankclient.New(bankEndpoint,
		bankclient.WithTimeout(cfg.Bank.Timeout),
		bankclient.WithRetries(cfg.Bank.MaxRetries, 250*time.Millisecond),
		bankclient.WithLogger(logger),
	)

	callbackHub := hub.New(hub.Config{
		WriteTimeout: cfg.Callbacks.WriteTimeout,
		PingInterval: cfg.Callbacks.PingInterval,
	}, logger)

	dispatcher := notify.NewDispatcher(callbackHub, cfg.Callbacks.BufferSize, logger)

	var engineOpts []market.Option
	var recorder *ledger.Recorder
	if cfg.Ledger.Enabled {
		pool, err := ledger.Connect(ctx, ledger.DBConfig{
			Host:     cfg.Ledger.DB.Host,
			Port:     cfg.Ledger.DB.Port,
			Name:     cfg.Ledger.DB.Name,
			User:     cfg.Ledger.DB.User,
			Password: cfg.Ledger.DB.Password,
			SSLMode:  cfg.Ledger.DB.SSLMode,
			MaxConns: cfg.Ledger.DB.MaxConns,
			MinConns: cfg.Ledger.DB.MinConns,
		})
		if err != nil {
			logger.Error("failed to connect settlement database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := ledger.Migrate(ctx, pool); err != nil {
			logger.Error("failed to migrate settlement database", "error", err)
			os.Exit(1)
		}

		recorder = ledger.NewRecorder(ledger.Config{
			BatchSize:     cfg.Ledger.BatchSize,
			FlushInterval: cfg.Ledger.FlushInterval,
		}, pool, logger)
		engineOpts = append(engineOpts, market.WithSettlementHook(recorder.Record))
		logger.Info("settlement ledger enabled", "database", cfg.Ledger.DB.Name)
	}

	engine := market.NewEngine(bankClient, dispatcher, logger, engineOpts...)
	srv := server.New(engine, callbackHub, dispatcher, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Router(),
	}

	if err := dispatcher.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}
	if recorder != nil {
		if err := recorder.Start(ctx); err != nil {
			logger.Error("failed to start settlement recorder", "error", err)
			os.Exit(1)
		}
	}

	if err := reg.Bind(ctx, cfg.Instance.Name, cfg.Server.AdvertiseURL); err != nil {
		logger.Error("failed to bind market name", "name", cfg.Instance.Name, "error", err)
		os.Exit(1)
	}
	logger.Info("market bound", "name", cfg.Instance.Name, "endpoint", cfg.Server.AdvertiseURL)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("market server listening", "addr", httpServer.Addr)
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
			logger.Warn("failed to unbind market name", "error", err)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown failed", "error", err)
		}
		callbackHub.Stop(shutdownCtx)
		dispatcher.Stop(shutdownCtx)
		if recorder != nil {
			recorder.Stop(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("marketd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("marketd stopped")
}
