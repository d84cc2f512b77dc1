//go:build wireinject
// +build wireinject

package di

import (
	"OptionPulse/pkg/config"
	"OptionPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideBytesCache,

		// Repositories
		ProvideSignalArchive,
		ProvideDispatcher,
		ProvideNotifyConsumer,
		ProvideSnapshotStream,

		// Decision core
		ProvideEvaluatorRegistry,
		ProvideAggregator,
		ProvideDirectionScorer,
		ProvideSignalEngine,
		ProvideCycleScheduler,

		// Intake and queries
		ProvideSnapshotCollector,
		ProvideKafkaSnapshotsHandler,
		ProvideSignalQueries,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
