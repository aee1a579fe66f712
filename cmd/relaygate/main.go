// Copyright 2026 The relaygate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command relaygate runs the outbound-call gateway server: three flavor
// gateways (AI, messaging, payment) over one shared store, exposed through
// an HTTP API with audit logging and runtime config reload.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/relaygate/relaygate/internal/api"
	"github.com/relaygate/relaygate/internal/audit"
	"github.com/relaygate/relaygate/internal/config"
	"github.com/relaygate/relaygate/internal/domain"
	"github.com/relaygate/relaygate/internal/gateway"
	"github.com/relaygate/relaygate/internal/logging"
	"github.com/relaygate/relaygate/internal/provider"
	"github.com/relaygate/relaygate/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// A local .env is optional; it only seeds the process environment.
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		log.Fatalf("relaygate: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logging.Setup(cfg.Debug)
	if err := logging.ConfigureOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		return err
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	auditSink, err := audit.NewSink(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		Path:       cfg.Audit.Path,
		MaxSizeMB:  cfg.Audit.MaxSizeMB,
		MaxBackups: cfg.Audit.MaxBackups,
		MaxAgeDays: cfg.Audit.MaxAgeDays,
		Compress:   cfg.Audit.Compress,
	})
	if err != nil {
		return fmt.Errorf("audit sink: %w", err)
	}
	defer auditSink.Close()

	events := gateway.MultiSink{gateway.LogSink{}, auditSink}

	gateways := make(map[provider.Domain]*gateway.Gateway, 3)
	for _, dom := range []provider.Domain{provider.DomainAI, provider.DomainMessaging, provider.DomainPayment} {
		gw, err := gateway.New(gatewayConfig(dom, cfg.Flavor(dom)), registry, st, events)
		if err != nil {
			return err
		}
		gateways[dom] = gw
	}

	// Runtime reload applies only the tunable parts: fallback chains and
	// cacheable capability sets.
	watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
		for dom, gw := range gateways {
			flavor := next.Flavor(dom)
			gw.UpdateChains(flavor.Fallback)
			gw.UpdateCacheable(flavor.CacheableCapabilities)
		}
	})
	if err != nil {
		log.Warnf("config watcher disabled: %v", err)
	} else {
		go watcher.Start(ctx)
	}

	server := api.NewServer(
		domain.NewAI(gateways[provider.DomainAI]),
		domain.NewMessaging(gateways[provider.DomainMessaging]),
		domain.NewPayment(gateways[provider.DomainPayment]),
	)
	engine := gin.New()
	engine.Use(gin.Recovery())
	server.Register(engine)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("relaygate listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "redis":
		rs, err := store.DialRedis(ctx, cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB, cfg.Store.Redis.Prefix)
		if err != nil {
			return nil, err
		}
		log.Infof("shared store: redis at %s", cfg.Store.Redis.Addr)
		return rs, nil
	default:
		log.Warn("shared store: in-process memory; breaker and limiter state will not survive restarts or span instances")
		return store.NewMemoryStore(), nil
	}
}

// buildRegistry assembles the explicit provider registration table from
// configuration. Providers without a real backend get a simulated executor,
// which keeps the full dispatch pipeline exercisable in development.
func buildRegistry(cfg *config.Config) (*provider.StaticRegistry, error) {
	registry := provider.NewStaticRegistry()
	for _, p := range cfg.Providers {
		exec := provider.NewSimulatedExecutor(
			p.Code,
			time.Duration(p.LatencyMS)*time.Millisecond,
			p.FailureRate,
			provider.ErrorKind(p.FailureKind),
		)
		meta := provider.Metadata{
			Code:         p.Code,
			Domain:       provider.Domain(p.Domain),
			Capabilities: p.Capabilities,
			Priority:     p.Priority,
		}
		if err := registry.Register(meta, exec); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func gatewayConfig(dom provider.Domain, flavor config.GatewayConfig) gateway.Config {
	return gateway.Config{
		Domain:                dom,
		DefaultProvider:       flavor.DefaultProvider,
		FallbackChains:        flavor.Fallback,
		MaxRetries:            flavor.MaxRetries,
		BackoffBase:           flavor.BackoffBase,
		BackoffMultiplier:     flavor.BackoffMultiplier,
		RetryDelayExpression:  flavor.RetryDelayExpr,
		CircuitThreshold:      flavor.CircuitBreakerThreshold,
		CircuitTimeout:        flavor.CircuitBreakerTimeout(),
		RateWindow:            flavor.RateLimitWindow(),
		RateMax:               flavor.RateLimitMax,
		CacheTTL:              flavor.CacheTTL(),
		CacheableCapabilities: flavor.CacheableCapabilities,
		CallTimeout:           flavor.CallTimeout(),
	}
}

// init silences the default logger until Setup runs; everything in main
// should go through logrus.
func init() {
	log.SetOutput(os.Stdout)
}
