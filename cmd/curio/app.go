package main

import (
	"context"
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/rewired-gh/curio/internal/config"
	"github.com/rewired-gh/curio/internal/logger"
	"github.com/rewired-gh/curio/internal/pricing"
	"github.com/rewired-gh/curio/internal/search"
	"github.com/rewired-gh/curio/internal/storage"
	"github.com/rewired-gh/curio/internal/telegram"
)

// newSearcher builds the configured marketplace searcher.
func newSearcher(ctx context.Context, c *config.Config) (pricing.Searcher, error) {
	if c.Search.Provider == config.ProviderNone {
		logger.Warn("Search provider disabled; estimates will carry no price data")
		return search.Unavailable{}, nil
	}
	client, err := search.NewClient(ctx, search.Config{
		APIKey:            c.Search.APIKey,
		EngineID:          c.Search.EngineID,
		Endpoint:          c.Search.Endpoint,
		Timeout:           c.Search.Timeout,
		ResultsPerQuery:   c.Search.ResultsPerQuery,
		RequestsPerSecond: c.Search.RequestsPerSecond,
		Burst:             c.Search.Burst,
		BreakerFailures:   c.Search.BreakerFailures,
		BreakerCooldown:   c.Search.BreakerCooldown,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize search client: %w", err)
	}
	return client, nil
}

func newEstimator(ctx context.Context, c *config.Config) (*pricing.Estimator, error) {
	searcher, err := newSearcher(ctx, c)
	if err != nil {
		return nil, err
	}
	return pricing.NewEstimator(searcher, pricing.NewScorer(c.ScorerConfig()), c.Search.Timeout), nil
}

func openStore(c *config.Config) (*storage.Storage, func(), error) {
	store, err := storage.New(c.Storage.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}
	return store, closeFn, nil
}

// newNotifier returns nil when Telegram is disabled.
func newNotifier(c *config.Config) (*telegram.Client, error) {
	if !c.Telegram.Enabled {
		logger.Debug("Telegram notifications disabled")
		return nil, nil
	}
	client, err := telegram.NewClient(c.Telegram.BotToken, c.Telegram.ChatID, c.Telegram.MaxRetries, c.Telegram.RetryDelayBase)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram client: %w", err)
	}
	logger.Info("Telegram client initialized successfully")
	return client, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
