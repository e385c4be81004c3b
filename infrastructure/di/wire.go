//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"
)

// InitializeContainer builds the full application container.
func InitializeContainer(ctx context.Context) (*Container, error) {
	wire.Build(
		provideConfig,
		provideLogger,
		providePrometheusRegistry,
		provideMetrics,
		provideAWSConfig,
		provideDynamoDBClient,
		provideEventBridgeClient,
		provideSubstrate,
		providePublisher,
		provideWatcher,
		provideLimits,
		provideStores,
		provideHandler,
		provideContainer,
	)
	return nil, nil
}
