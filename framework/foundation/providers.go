package foundation

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/config"
	"github.com/km-arc/go-swift/framework/di/cache"
	"github.com/km-arc/go-swift/framework/logging"
	"github.com/km-arc/go-swift/framework/metrics"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "swift"

// ProviderSet builds an Application from a loaded *config.Config and the
// application's providers.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideStore,
	New,
)

// ProvideLogger builds the zap logger for the configured environment.
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.App.Env, cfg.App.Debug)
}

// ProvideMetrics creates the metrics collector.
func ProvideMetrics() *metrics.Collector {
	return metrics.NewCollector(MetricsNamespace)
}

// ProvideStore creates the compiled-container store. The cache is bypassed
// in debug mode.
func ProvideStore(cfg *config.Config, logger *zap.Logger) *cache.Store {
	return cache.NewStore(cfg.Container.CacheDir, cfg.App.Debug, logger)
}
