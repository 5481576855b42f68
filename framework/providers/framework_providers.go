package providers

import (
	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/config"
	"github.com/km-arc/go-swift/framework/container"
	"github.com/km-arc/go-swift/framework/di"
	"github.com/km-arc/go-swift/framework/events"
	"github.com/km-arc/go-swift/framework/metrics"
	"github.com/km-arc/go-swift/framework/routing"
)

// ── FoundationServiceProvider ─────────────────────────────────────────────────

// FoundationServiceProvider describes the values built before the container
// exists and hands them over once it does.
//
// Synthetic services:
//   - "service_container" → *container.Container  (alias "app")
//   - "config"            → *config.Config
//   - "logger"            → *zap.Logger
//   - "metrics"           → *metrics.Collector
//
// Laravel equivalent:
//
//	// Illuminate\Foundation\Application::registerBaseBindings
//	$this->instance('app', $this);
//	$this->instance(Container::class, $this);
type FoundationServiceProvider struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

func (p *FoundationServiceProvider) Register(m *di.Manifest) error {
	return m.Register(
		di.Synthetic[*container.Container](di.ID(container.ServiceID), di.Alias("app")),
		di.Synthetic[*config.Config](di.Alias("config")),
		di.Synthetic[*zap.Logger](di.Alias("logger")),
		di.Synthetic[*metrics.Collector](di.Alias("metrics")),
	)
}

func (p *FoundationServiceProvider) Boot(c *container.Container) error {
	for id, v := range map[string]any{"config": p.Config, "logger": p.Logger, "metrics": p.Metrics} {
		if err := c.Instance(id, v); err != nil {
			return err
		}
	}
	if p.Metrics != nil {
		c.AfterResolving(func(id string, _ any) { p.Metrics.RecordResolution(id) })
	}
	return nil
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the HTTP router. Routes come from the
// compiled graph; middleware from services tagged di.TagMiddleware.
//
// Bound abstracts:
//   - "router"  → *routing.Router
//
// Laravel equivalent:
//
//	// Illuminate\Routing\RoutingServiceProvider
//	$app->singleton('router', fn($app) => new Router($app['events'], $app));
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(m *di.Manifest) error {
	return m.Register(
		di.Interface[routing.Middleware](),
		di.Provide(routing.NewRouter,
			di.Alias("router"),
			di.Inject(2, di.Named("middleware"), di.WithTag(di.TagMiddleware)),
		),
	)
}

// ── EventServiceProvider ──────────────────────────────────────────────────────

// EventServiceProvider registers the event dispatcher.
//
// Bound abstracts:
//   - "events"  → *events.Dispatcher
//
// Laravel equivalent:
//
//	// Illuminate\Events\EventServiceProvider
//	$app->singleton('events', fn($app) => new Dispatcher($app));
type EventServiceProvider struct {
	container.BaseProvider
}

func (p *EventServiceProvider) Register(m *di.Manifest) error {
	return m.Register(
		di.Interface[events.Subscriber](),
		di.Provide(events.NewDispatcher,
			di.Alias("events"),
			di.Inject(2, di.Named("subscribers"), di.WithTag(di.TagSubscriber)),
		),
	)
}

// Autoconfigure returns the rules that tag framework extension points.
func Autoconfigure() []di.AutoconfigureRule {
	return []di.AutoconfigureRule{
		di.Autoconfigure[routing.Middleware](di.TagMiddleware),
		di.Autoconfigure[events.Subscriber](di.TagSubscriber),
	}
}
