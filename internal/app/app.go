// Package app wires configuration, the cache store, the origin client, and
// the agent together, and drives the install/activate lifecycle.
package app

import (
	"context"
	"fmt"

	"github.com/traderecks888/offline-gateway/internal/agent"
	"github.com/traderecks888/offline-gateway/internal/cachestore"
	"github.com/traderecks888/offline-gateway/internal/config"
	"github.com/traderecks888/offline-gateway/internal/gateway"
	"github.com/traderecks888/offline-gateway/internal/logger"
	"github.com/traderecks888/offline-gateway/internal/metrics"
	"github.com/traderecks888/offline-gateway/internal/upstream"
)

// Run installs and activates the agent, then serves traffic until shutdown.
// Install runs before the server accepts requests, so the agent never serves
// in a half-installed state; this is the service equivalent of skipping the
// waiting phase and claiming clients immediately.
func Run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	m := metrics.New()

	a, cleanup, err := buildAgent(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.Install(ctx); err != nil {
		return fmt.Errorf("install agent: %w", err)
	}
	if err := a.Activate(ctx); err != nil {
		return fmt.Errorf("activate agent: %w", err)
	}

	server := gateway.NewServer(gateway.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Port:           cfg.Service.Port,
		Debug:          cfg.Service.Debug,
	}, a, m, log)

	return server.Run(ctx)
}

// Purge runs the activation purge once and exits. Operators use this after
// bumping the generation without wanting to serve traffic.
func Purge(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	a, cleanup, err := buildAgent(ctx, cfg, log, metrics.New())
	if err != nil {
		return err
	}
	defer cleanup()

	return a.Activate(ctx)
}

// buildAgent constructs the store provider, origin client, and agent.
// The returned cleanup releases backend connections.
func buildAgent(ctx context.Context, cfg *config.Config, log logger.Logger, m *metrics.Metrics) (*agent.Agent, func(), error) {
	provider, cleanup, err := buildProvider(cfg)
	if err != nil {
		return nil, nil, err
	}

	fetcher, err := upstream.New(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create upstream client: %w", err)
	}

	a, err := agent.New(ctx, agent.Config{
		Generation: cfg.Cache.Generation,
		Precache:   cfg.Cache.Precache,
	}, provider, fetcher, log, m)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create agent: %w", err)
	}

	log.Info("Agent created",
		logger.String("generation", cfg.Cache.Generation),
		logger.String("backend", cfg.Cache.Backend),
		logger.Int("precache_entries", len(cfg.Cache.Precache)),
	)

	return a, cleanup, nil
}

// buildProvider selects the store backend from configuration.
func buildProvider(cfg *config.Config) (cachestore.Provider, func(), error) {
	switch cfg.Cache.Backend {
	case "memory":
		return cachestore.NewMemoryProvider(), func() {}, nil

	case "redis":
		client, err := cachestore.NewRedisClient(
			cfg.Cache.Redis.Address,
			cfg.Cache.Redis.Password,
			cfg.Cache.Redis.DB,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return cachestore.NewRedisProvider(client), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}
