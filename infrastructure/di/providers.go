package di

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reqtrack-backend/infrastructure/config"
	"reqtrack-backend/infrastructure/graph"
	"reqtrack-backend/infrastructure/messaging"
	ebpublisher "reqtrack-backend/infrastructure/messaging/eventbridge"
	"reqtrack-backend/interfaces/http/rest"
	"reqtrack-backend/internal/entities"
	"reqtrack-backend/internal/store"
	"reqtrack-backend/pkg/observability"
)

func provideConfig() (*config.Config, error) {
	return config.Load()
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

func providePrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) *observability.Metrics {
	return observability.NewMetrics(reg)
}

func provideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
}

func provideDynamoDBClient(awsCfg aws.Config) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg)
}

func provideEventBridgeClient(awsCfg aws.Config) *eventbridge.Client {
	return eventbridge.NewFromConfig(awsCfg)
}

func provideSubstrate(cfg *config.Config, client *dynamodb.Client, logger *zap.Logger) graph.Substrate {
	if cfg.StoreBackend == "memory" {
		logger.Warn("Using in-memory substrate; data will not survive restarts")
		return graph.NewMemory()
	}
	return graph.NewDynamoDB(client, cfg.DynamoDBTable, logger)
}

// provideWatcher builds the dynamic-config watcher when a file is
// named by DYNAMIC_CONFIG_FILE; without one, limits stay at defaults
// and the watcher is nil.
func provideWatcher(logger *zap.Logger) (*config.Watcher, error) {
	path := os.Getenv("DYNAMIC_CONFIG_FILE")
	if path == "" {
		return nil, nil
	}
	return config.NewWatcher(path, logger)
}

func providePublisher(cfg *config.Config, client *eventbridge.Client, logger *zap.Logger) messaging.Publisher {
	if cfg.EventBusName == "" || cfg.StoreBackend == "memory" {
		return messaging.NopPublisher{}
	}
	return ebpublisher.NewPublisher(client, cfg.EventBusName, logger)
}

// provideLimits adapts the dynamic-config limits into the engine's
// cap set, read at call time so hot reloads apply without a restart.
func provideLimits(watcher *config.Watcher) store.LimitsFunc {
	return func() store.Limits {
		l := config.DefaultLimits()
		if watcher != nil {
			l = watcher.GetLimits()
		}
		return store.Limits{
			MaxReferencesPerItem: l.MaxReferencesPerItem,
			MaxMilestonesPerItem: l.MaxMilestonesPerItem,
			MaxHistoryDepth:      l.MaxHistoryDepth,
		}
	}
}

// provideStores builds the entity stores around one shared collaborator
// registry. Registration happens after construction so existence checks
// can reference each other (changes validate against requirements and
// vice versa).
func provideStores(limits store.LimitsFunc, logger *zap.Logger, metrics *observability.Metrics) *Stores {
	reg := store.NewRegistry()
	waves := store.NewWaveStore(logger)
	stakeholders := store.NewStakeholderStore(logger)

	requirements := store.NewStore[entities.RequirementContent, entities.RequirementPatch](
		entities.NewRequirementTraits(), reg, waves, limits, logger, metrics)
	changes := store.NewStore[entities.ChangeContent, entities.ChangePatch](
		entities.NewChangeTraits(), reg, waves, limits, logger, metrics)

	reg.Register(entities.TypeRequirement, requirements.Exists)
	reg.Register(entities.TypeChange, changes.Exists)
	reg.Register(entities.TypeStakeholder, stakeholders.Exists)
	reg.Register(entities.TypeWave, waves.Exists)

	return &Stores{
		Registry:     reg,
		Requirements: requirements,
		Changes:      changes,
		Milestones:   entities.NewMilestoneService(changes, limits, logger),
		Baselines:    store.NewBaselineStore(waves, logger, metrics),
		Waves:        waves,
		Stakeholders: stakeholders,
	}
}

func provideHandler(
	cfg *config.Config,
	substrate graph.Substrate,
	stores *Stores,
	publisher messaging.Publisher,
	metrics *observability.Metrics,
	reg *prometheus.Registry,
	watcher *config.Watcher,
	logger *zap.Logger,
) http.Handler {
	router := &rest.Router{
		Substrate:    substrate,
		Requirements: stores.Requirements,
		Changes:      stores.Changes,
		Milestones:   stores.Milestones,
		Baselines:    stores.Baselines,
		Waves:        stores.Waves,
		Stakeholders: stores.Stakeholders,
		Publisher:    publisher,
		Metrics:      metrics,
		Logger:       logger,
	}
	if cfg.EnableMetrics {
		router.Gatherer = reg
	}
	if watcher != nil {
		router.RequestTimeoutSeconds = func() int { return watcher.GetLimits().RequestTimeoutSeconds }
	}
	return router.Setup()
}

func provideContainer(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
	reg *prometheus.Registry,
	substrate graph.Substrate,
	publisher messaging.Publisher,
	watcher *config.Watcher,
	stores *Stores,
	handler http.Handler,
) *Container {
	if watcher != nil {
		watcher.OnChange(func(cfg *config.DynamicConfig) {
			logger.Info("Dynamic limits applied",
				zap.String("version", cfg.Metadata.Version),
				zap.Int("maxReferencesPerItem", cfg.Limits.MaxReferencesPerItem),
				zap.Int("maxMilestonesPerItem", cfg.Limits.MaxMilestonesPerItem),
				zap.Int("maxHistoryDepth", cfg.Limits.MaxHistoryDepth),
				zap.Int("requestTimeoutSeconds", cfg.Limits.RequestTimeoutSeconds),
			)
		})
		watcher.Start()
	}
	return &Container{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Registry:  reg,
		Substrate: substrate,
		Publisher: publisher,
		Watcher:   watcher,
		Stores:    stores,
		Handler:   handler,
	}
}
