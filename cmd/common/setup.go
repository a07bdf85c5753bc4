// Package common holds setup shared by the gateway's commands.
package common

import (
	"fmt"

	"github.com/traderecks888/offline-gateway/internal/config"
	"github.com/traderecks888/offline-gateway/internal/logger"
)

// Setup loads and validates configuration and builds the service logger.
func Setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(config.Path("config.yml"))
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	return cfg, log.With(logger.String("service", cfg.Service.Name)), nil
}
