// Package di provides dependency injection for repositories and services.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/navreturns/internal/clientdata"
	"github.com/aristath/navreturns/internal/clients/mfapi"
	"github.com/aristath/navreturns/internal/config"
	"github.com/aristath/navreturns/internal/events"
	"github.com/aristath/navreturns/internal/metrics"
	"github.com/aristath/navreturns/internal/modules/funds"
	"github.com/aristath/navreturns/internal/modules/returns"
	"github.com/aristath/navreturns/internal/publish"
	"github.com/aristath/navreturns/internal/work/batch"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.CacheRepo = clientdata.NewRepository(container.CacheDB.Conn())
	container.ResultsRepo = funds.NewRepository(container.ResultsDB.Conn(), log)

	log.Debug().Msg("Repositories initialized")
	return nil
}

// InitializeServices creates the client, engine, runner and publisher
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.Metrics = metrics.New()
	container.EventHub = events.NewHub(log)

	// NAV history client: rate limited, circuit broken, cached in cache.db
	container.MFAPIClient = mfapi.NewClient(mfapi.Config{
		BaseURL:           cfg.MFAPIBaseURL,
		Timeout:           cfg.FetchTimeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.MaxWorkers,
		CacheMode:         cfg.CacheMode,
		CacheTTL:          cfg.CacheTTL,
	}, container.CacheRepo, container.Metrics, log)

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}
	container.Calculator, err = returns.NewCalculator(engineCfg, log)
	if err != nil {
		return fmt.Errorf("failed to create calculator: %w", err)
	}

	container.Runner = batch.NewRunner(container.MFAPIClient, container.Calculator, cfg.MaxWorkers, container.Metrics, log)

	container.Publisher, err = publish.NewS3Publisher(ctx, publish.Config{
		Bucket:          cfg.Publish.Bucket,
		Endpoint:        cfg.Publish.Endpoint,
		AccessKeyID:     cfg.Publish.AccessKeyID,
		SecretAccessKey: cfg.Publish.SecretAccessKey,
		Region:          cfg.Publish.Region,
		KeyPrefix:       cfg.Publish.KeyPrefix,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}

	log.Info().
		Int("workers", container.Runner.Workers()).
		Str("methodology", string(engineCfg.Methodology)).
		Bool("publish", container.Publisher.Enabled()).
		Msg("Services initialized")
	return nil
}
