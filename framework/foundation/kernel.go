package foundation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/config"
	"github.com/km-arc/go-swift/framework/container"
	"github.com/km-arc/go-swift/framework/di"
	"github.com/km-arc/go-swift/framework/di/cache"
	"github.com/km-arc/go-swift/framework/events"
	gohttp "github.com/km-arc/go-swift/framework/http"
	"github.com/km-arc/go-swift/framework/metrics"
	"github.com/km-arc/go-swift/framework/providers"
	"github.com/km-arc/go-swift/framework/routing"
)

// AppProviders are the application's own service providers, registered
// after the framework providers.
type AppProviders []container.ServiceProvider

// Application is the top-level application kernel. It owns the provider
// registry, turns the providers' manifest into a compiled container (from
// the cache when possible) and boots the providers against it, like
// Laravel's bootstrap/app.php followed by Kernel::bootstrap().
type Application struct {
	Config    *config.Config
	Logger    *zap.Logger
	Metrics   *metrics.Collector
	Store     *cache.Store
	Providers *container.ProviderRegistry

	// Passes run after the built-in passes of the same priority.
	Passes []di.CompilerPass
	// Required lists service ids that must exist once compilation finishes.
	Required []string

	mu        sync.Mutex
	booted    bool
	compiler  *di.Compiler
	manifest  *di.Manifest
	container *container.Container
	handler   http.Handler
	watcher   *cache.Watcher
}

// New creates the application. The framework providers come first, in the
// same order as Laravel registers its base providers.
func New(cfg *config.Config, logger *zap.Logger, collector *metrics.Collector, store *cache.Store, app AppProviders) *Application {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := container.NewProviderRegistry(
		&providers.FoundationServiceProvider{Config: cfg, Logger: logger, Metrics: collector},
		&providers.EventServiceProvider{},
		&providers.RoutingServiceProvider{},
	)
	for _, p := range app {
		registry.Add(p)
	}
	return &Application{
		Config:    cfg,
		Logger:    logger,
		Metrics:   collector,
		Store:     store,
		Providers: registry,
	}
}

// Register adds a ServiceProvider to the application. It has no effect once
// the application is booted.
func (a *Application) Register(provider container.ServiceProvider) {
	a.Providers.Add(provider)
}

// ── Boot ─────────────────────────────────────────────────────────────────────

// Boot describes every class, obtains the compiled graph and boots the
// providers. The graph is loaded from the cache when its marker matches;
// a corrupt artifact is recompiled and overwritten. In debug mode the cache
// is bypassed, the fresh graph is discarded after use and edits to the
// declaration file are hot-reloaded when Container.Watch is set.
func (a *Application) Boot(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.booted {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	manifest, err := di.NewManifest()
	if err != nil {
		return err
	}
	if err := a.Providers.Register(manifest); err != nil {
		return err
	}
	c, err := a.compile(ctx, manifest)
	if err != nil {
		return err
	}
	if err := a.Providers.Boot(c); err != nil {
		return err
	}
	a.manifest, a.container = manifest, c

	if a.Config.App.Debug && a.Config.Container.Watch && a.Config.Container.ServicesFile != "" {
		if err := a.watch(); err != nil {
			a.Logger.Warn("container source watcher disabled", zap.Error(err))
		}
	}
	a.booted = true
	a.Logger.Info("application booted",
		zap.String("name", a.Config.App.Name),
		zap.String("build_id", c.Graph().BuildID()),
		zap.Int("definitions", len(c.Graph().IDs())),
	)
	return nil
}

// Reload reads the declaration file again, recompiles and swaps in the new
// container. Providers are booted against it and the HTTP handler, if one
// was requested, switches to its router. On failure the previous container
// stays in place.
func (a *Application) Reload(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.booted {
		return di.ErrNotCompiled
	}
	c, err := a.compile(ctx, a.manifest)
	if err != nil {
		return err
	}
	if err := a.Providers.Reboot(c); err != nil {
		return err
	}
	if a.handler != nil {
		h, err := a.mount(c)
		if err != nil {
			return err
		}
		a.handler = h
	}
	a.container = c
	a.Logger.Info("container reloaded", zap.String("build_id", c.Graph().BuildID()))
	return nil
}

// compile turns m and the current declaration file into a container, from
// the cache when the marker matches.
func (a *Application) compile(ctx context.Context, m *di.Manifest) (*container.Container, error) {
	decl, err := di.LoadDeclarations(a.Config.Container.ServicesFile)
	if err != nil {
		return nil, err
	}
	passes := a.passes()
	marker, err := di.Fingerprint(m, decl, a.Config.App.Debug, passes...)
	if err != nil {
		return nil, err
	}
	log := a.Logger.With(zap.String("marker", marker))

	if a.Store.ShouldUseCache(marker) {
		c, err := a.fromCache(m)
		if err == nil {
			a.record(func(c *metrics.Collector) {
				c.CacheHits.Inc()
				c.RecordCompile(metrics.OutcomeCached, 0)
			})
			log.Info("container loaded from cache", zap.String("build_id", c.Graph().BuildID()))
			return c, nil
		}
		var corrupt *di.CacheCorruptError
		if !errors.As(err, &corrupt) {
			return nil, err
		}
		a.record(func(c *metrics.Collector) { c.CacheCorrupt.Inc() })
		log.Warn("container cache is corrupt, recompiling", zap.Error(err))
	} else {
		a.record(func(c *metrics.Collector) { c.CacheMisses.Inc() })
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	compiler := di.NewCompiler(a.Logger, passes...)
	a.compiler = compiler
	start := time.Now()
	g, err := compiler.Compile(m, decl, marker)
	if err != nil {
		a.record(func(c *metrics.Collector) { c.RecordCompile(metrics.OutcomeFailed, time.Since(start)) })
		return nil, err
	}
	a.record(func(c *metrics.Collector) { c.RecordCompile(metrics.OutcomeCompiled, time.Since(start)) })

	if a.Config.App.Debug {
		err = compiler.MarkDiscarded()
	} else if err = a.Store.Dump(g); err == nil {
		err = compiler.MarkCached()
	}
	if err != nil {
		return nil, err
	}
	return container.New(g, m, a.Logger)
}

// fromCache loads the stored graph. A graph that does not fit the manifest
// is as unusable as an unreadable one and is reported as corrupt.
func (a *Application) fromCache(m *di.Manifest) (*container.Container, error) {
	g, err := a.Store.Load()
	if err != nil {
		return nil, err
	}
	c, err := container.New(g, m, a.Logger)
	if err != nil {
		return nil, &di.CacheCorruptError{Path: a.Store.ArtifactPath(), Err: err}
	}
	return c, nil
}

func (a *Application) passes() []di.CompilerPass {
	passes := di.DefaultPasses(providers.Autoconfigure(), a.Required)
	return append(passes, a.Passes...)
}

func (a *Application) record(fn func(*metrics.Collector)) {
	if a.Metrics != nil {
		fn(a.Metrics)
	}
}

func (a *Application) watch() error {
	w, err := cache.NewWatcher(a.Store, a.Logger, cache.DefaultDebounce, a.Config.Container.ServicesFile)
	if err != nil {
		return err
	}
	w.OnChange(func(path string) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := a.Reload(ctx); err != nil {
			a.Logger.Error("container reload failed, keeping the previous container",
				zap.String("path", path),
				zap.Error(err),
			)
		}
	})
	a.watcher = w
	return nil
}

// ── Accessors ────────────────────────────────────────────────────────────────

// Booted reports whether Boot completed.
func (a *Application) Booted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.booted
}

// Container returns the booted container, or nil before Boot.
func (a *Application) Container() *container.Container {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.container
}

// CompilerState returns the lifecycle state of the last compilation, or
// di.Uncompiled when the graph came from the cache.
func (a *Application) CompilerState() di.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.compiler == nil {
		return di.Uncompiled
	}
	return a.compiler.State()
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() (*routing.Router, error) {
	if !a.Booted() {
		return nil, di.ErrNotCompiled
	}
	return container.Resolve[*routing.Router](a.Container(), "router")
}

// Events resolves *events.Dispatcher from the container.
func (a *Application) Events() (*events.Dispatcher, error) {
	if !a.Booted() {
		return nil, di.ErrNotCompiled
	}
	return container.Resolve[*events.Dispatcher](a.Container(), "events")
}

// ClearCache removes the compiled container artifact.
//
//	// Laravel: php artisan optimize:clear
func (a *Application) ClearCache() error {
	return a.Store.Clear()
}

// ── Serve ────────────────────────────────────────────────────────────────────

// Handler boots the application (if needed) and returns the HTTP handler:
// the compiled routes plus /metrics, and /_debug/container in debug mode.
// After a Reload the handler serves the new container's routes.
func (a *Application) Handler(ctx context.Context) (http.Handler, error) {
	if err := a.Boot(ctx); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handler == nil {
		h, err := a.mount(a.container)
		if err != nil {
			return nil, err
		}
		a.handler = h
	}
	return http.HandlerFunc(a.serveHTTP), nil
}

func (a *Application) serveHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	h.ServeHTTP(w, r)
}

// mount resolves the router of c and adds the framework endpoints.
func (a *Application) mount(c *container.Container) (http.Handler, error) {
	router, err := container.Resolve[*routing.Router](c, "router")
	if err != nil {
		return nil, err
	}
	if a.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", a.Metrics.Handler().ServeHTTP)
	}
	if a.Config.App.Debug {
		router.Get("/_debug/container", debugContainer(c))
	}
	return router, nil
}

func debugContainer(c *container.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := gohttp.NewResponse(w)
		if tag := r.URL.Query().Get("tag"); tag != "" {
			res.Success(envelope{"tag": tag, "services": c.ByTag(tag)})
			return
		}
		res.Success(envelope{
			"build_id":    c.Graph().BuildID(),
			"definitions": c.Definitions(),
			"aliases":     c.Graph().Aliases(),
			"listeners":   c.ListenerBindings(),
			"routes":      c.RouteBindings(),
		})
	}
}

// Run boots the application and serves HTTP until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	handler, err := a.Handler(ctx)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              ":" + a.Config.App.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", a.Config.App.Env),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server: shutdown: %w", err)
	}
	return a.Close()
}

// Close stops the source watcher, if any.
func (a *Application) Close() error {
	a.mu.Lock()
	w := a.watcher
	a.watcher = nil
	a.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config.App.Debug }
func (a *Application) Version() string     { return "0.1.0" }

type envelope map[string]any
