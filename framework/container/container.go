package container

import (
	"fmt"
	"net/http"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/di"
)

// ServiceID is the id the container registers itself under when the graph
// declares it.
const ServiceID = "service_container"

// ── Types ─────────────────────────────────────────────────────────────────────

// Resolver resolves a service by id or alias.
type Resolver interface {
	Resolve(id string) (any, error)
}

// Extender decorates a freshly built instance. r resolves on behalf of the
// build in progress, so a decorator asking for its own service gets a
// CircularDependencyError.
type Extender func(instance any, r Resolver) (any, error)

// scope is the Resolver handed to extenders.
type scope struct {
	c     *Container
	stack []string
}

func (s scope) Resolve(id string) (any, error) { return s.c.resolve(id, s.stack) }

// cell guards the creation of one shared instance. A failed build leaves the
// cell empty so the next Resolve retries.
type cell struct {
	mu    sync.Mutex
	done  bool
	value any
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container resolves instances from a compiled graph. It mirrors the
// resolving half of Laravel's Illuminate\Container\Container; every binding
// comes from the graph instead of bind() calls.
//
// Shared definitions are built once, even under concurrent Resolve calls;
// other definitions are built on every call.
type Container struct {
	graph    *di.Graph
	manifest *di.Manifest
	logger   *zap.Logger

	mu        sync.RWMutex
	cells     map[string]*cell
	extenders map[string][]Extender

	// afterResolving callbacks: []func(id, instance)
	afterResolving []func(string, any)
}

// New creates a container for a frozen graph. Every definition must map to a
// class of the manifest.
func New(graph *di.Graph, manifest *di.Manifest, logger *zap.Logger) (*Container, error) {
	if graph == nil || !graph.Frozen() {
		return nil, di.ErrNotCompiled
	}
	if manifest == nil {
		return nil, fmt.Errorf("container: nil manifest")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, def := range graph.Definitions() {
		class, ok := manifest.Class(def.Class)
		if !ok {
			return nil, &di.ServiceNotFoundError{ID: def.ID, Reason: fmt.Sprintf("class %q is not in the manifest", def.Class)}
		}
		if !def.Synthetic && class.Factory == nil {
			return nil, &di.InvalidClassError{Class: def.Class, Reason: "no factory"}
		}
		if len(def.Arguments) != len(class.Params) {
			return nil, &di.InvalidClassError{
				Class:  def.Class,
				Reason: fmt.Sprintf("graph has %d arguments, constructor takes %d", len(def.Arguments), len(class.Params)),
			}
		}
	}

	c := &Container{
		graph:     graph,
		manifest:  manifest,
		logger:    logger,
		cells:     make(map[string]*cell),
		extenders: make(map[string][]Extender),
	}
	if graph.Has(ServiceID) {
		if err := c.Instance(ServiceID, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Graph returns the compiled graph.
func (c *Container) Graph() *di.Graph { return c.graph }

// ── Registration ──────────────────────────────────────────────────────────────

// Instance sets the instance of a definition, typically a synthetic one.
//
//	// Laravel: $app->instance('config', $config)
//	c.Instance("config", cfg)
func (c *Container) Instance(id string, instance any) error {
	primary, ok := c.graph.Canonical(id)
	if !ok {
		return &di.ServiceNotFoundError{ID: id}
	}
	cl := c.cell(primary)
	cl.mu.Lock()
	cl.value, cl.done = instance, true
	cl.mu.Unlock()
	return nil
}

// Extend decorates the instance of id. Shared instances already built are
// not rebuilt.
//
//	// Laravel: $app->extend(Logger::class, fn($logger) => new TimestampLogger($logger))
func (c *Container) Extend(id string, fn Extender) error {
	primary, ok := c.graph.Canonical(id)
	if !ok {
		return &di.ServiceNotFoundError{ID: id}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.extenders[primary] = append(c.extenders[primary], fn)
	return nil
}

// AfterResolving registers a callback fired after any service is built.
//
//	// Laravel: $app->afterResolving(fn($object, $app) => ...)
func (c *Container) AfterResolving(cb func(id string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Has reports whether id is a service or an alias.
func (c *Container) Has(id string) bool { return c.graph.Has(id) }

// Definitions returns the compiled definitions in discovery order.
func (c *Container) Definitions() []di.Definition { return c.graph.Definitions() }

// ByTag returns the ids carrying tag in discovery order.
func (c *Container) ByTag(tag string) []string { return c.graph.ByTag(tag) }

// Resolved reports whether a shared instance of id exists.
func (c *Container) Resolved(id string) bool {
	primary, ok := c.graph.Canonical(id)
	if !ok {
		return false
	}
	c.mu.RLock()
	cl, ok := c.cells[primary]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.done
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Resolve returns the instance for id or alias.
//
//	// Laravel: $app->make(UserRepository::class)
//	repo, err := c.Resolve("app.UserRepository")
func (c *Container) Resolve(id string) (any, error) {
	return c.resolve(id, nil)
}

// Tagged resolves every service carrying tag in discovery order.
//
//	// Laravel: $app->tagged('reports')
func (c *Container) Tagged(tag string) ([]any, error) {
	return c.tagged(tag, "", nil)
}

func (c *Container) resolve(id string, stack []string) (any, error) {
	primary, ok := c.graph.Canonical(id)
	if !ok {
		return nil, &di.ServiceNotFoundError{ID: id}
	}
	if slices.Contains(stack, primary) {
		return nil, &di.CircularDependencyError{Path: append(slices.Clone(stack), primary)}
	}
	def, _ := c.graph.Definition(primary)
	stack = append(stack, primary)

	if !def.Shared && !def.Synthetic {
		instance, err := c.build(def, stack)
		if err != nil {
			return nil, err
		}
		c.afterBuild(def, instance)
		return instance, nil
	}

	cl := c.cell(primary)
	cl.mu.Lock()
	if cl.done {
		v := cl.value
		cl.mu.Unlock()
		return v, nil
	}
	if def.Synthetic {
		cl.mu.Unlock()
		return nil, &di.ServiceNotFoundError{ID: id, Reason: "synthetic service has no instance"}
	}
	instance, err := c.build(def, stack)
	if err != nil {
		cl.mu.Unlock()
		return nil, err
	}
	cl.value, cl.done = instance, true
	cl.mu.Unlock()

	c.afterBuild(def, instance)
	return instance, nil
}

func (c *Container) build(def di.Definition, stack []string) (any, error) {
	class, _ := c.manifest.Class(def.Class)

	args := make([]any, len(def.Arguments))
	for i, arg := range def.Arguments {
		v, err := c.argument(def.ID, arg, class.Params[i], stack)
		if err != nil {
			return nil, fmt.Errorf("container: building %q: argument %s: %w", def.ID, class.Params[i].Name, err)
		}
		args[i] = v
	}
	instance, err := class.Factory(args)
	if err != nil {
		return nil, fmt.Errorf("container: building %q: %w", def.ID, err)
	}

	if err := c.inject(def, instance, def.Calls, class.Setters, stack); err != nil {
		return nil, err
	}
	if err := c.inject(def, instance, def.Properties, class.Properties, stack); err != nil {
		return nil, err
	}

	c.mu.RLock()
	exts := c.extenders[def.ID]
	c.mu.RUnlock()
	for _, ext := range exts {
		if instance, err = ext(instance, scope{c: c, stack: stack}); err != nil {
			return nil, fmt.Errorf("container: extending %q: %w", def.ID, err)
		}
	}
	return instance, nil
}

// afterBuild fires the AfterResolving callbacks. Shared instances are
// already stored, so a callback may resolve them again.
func (c *Container) afterBuild(def di.Definition, instance any) {
	c.mu.RLock()
	callbacks := c.afterResolving
	c.mu.RUnlock()
	for _, cb := range callbacks {
		cb(def.ID, instance)
	}
	c.logger.Debug("service built", zap.String("id", def.ID), zap.Bool("shared", def.Shared))
}

func (c *Container) inject(def di.Definition, instance any, calls []di.Call, points []di.Injection, stack []string) error {
	for _, call := range calls {
		idx := slices.IndexFunc(points, func(p di.Injection) bool { return p.Name == call.Method })
		if idx < 0 {
			return fmt.Errorf("container: building %q: no injection point %q", def.ID, call.Method)
		}
		point := points[idx]
		v, err := c.argument(def.ID, call.Argument, point.Param, stack)
		if err != nil {
			return fmt.Errorf("container: building %q: %s: %w", def.ID, call.Method, err)
		}
		if err := point.Apply(instance, v); err != nil {
			return fmt.Errorf("container: building %q: %w", def.ID, err)
		}
	}
	return nil
}

func (c *Container) argument(self string, arg di.Argument, p di.Param, stack []string) (any, error) {
	switch arg.Kind {
	case di.Literal:
		return p.Decode(arg.Value)
	case di.Reference:
		return c.resolve(arg.Ref, stack)
	case di.Tagged:
		return c.tagged(arg.Tag, self, stack)
	default:
		return nil, fmt.Errorf("unresolved argument kind %q", arg.Kind)
	}
}

// tagged expands a tag on every call, so the members always reflect the
// frozen graph. self is left out of its own collection.
func (c *Container) tagged(tag, self string, stack []string) ([]any, error) {
	ids := c.graph.ByTag(tag)
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if id == self {
			continue
		}
		v, err := c.resolve(id, stack)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Container) cell(id string) *cell {
	c.mu.RLock()
	cl, ok := c.cells[id]
	c.mu.RUnlock()
	if ok {
		return cl
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok = c.cells[id]; !ok {
		cl = &cell{}
		c.cells[id] = cl
	}
	return cl
}

// ── Side-channel tables ───────────────────────────────────────────────────────

// ListenerBindings returns the listener table of the graph.
func (c *Container) ListenerBindings() []di.ListenerBinding { return c.graph.Listeners() }

// Listener resolves the service behind b and returns a callable bound to the
// listening method.
func (c *Container) Listener(b di.ListenerBinding) (func(event any) error, error) {
	target, marker, err := c.marked(b.ServiceID)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(marker.Listeners, func(l di.ListenerMarker) bool {
		return l.Event == b.Event && l.Method == b.Method
	})
	if idx < 0 {
		return nil, fmt.Errorf("container: %s does not listen to %q with %s", b.ServiceID, b.Event, b.Method)
	}
	invoke := marker.Listeners[idx].Invoke
	return func(event any) error { return invoke(target, event) }, nil
}

// RouteBindings returns the route table of the graph.
func (c *Container) RouteBindings() []di.RouteBinding { return c.graph.Routes() }

// RouteHandler resolves the controller behind b and returns its action.
func (c *Container) RouteHandler(b di.RouteBinding) (http.HandlerFunc, error) {
	target, class, err := c.marked(b.ServiceID)
	if err != nil {
		return nil, err
	}
	idx := slices.IndexFunc(class.Routes, func(r di.RouteMarker) bool { return r.Action == b.Action && r.Path == b.Path })
	if idx < 0 {
		return nil, fmt.Errorf("container: %s has no action %q for %s", b.ServiceID, b.Action, b.Path)
	}
	return class.Routes[idx].Handler(target)
}

func (c *Container) marked(id string) (any, *di.Class, error) {
	def, ok := c.graph.Definition(id)
	if !ok {
		return nil, nil, &di.ServiceNotFoundError{ID: id}
	}
	class, _ := c.manifest.Class(def.Class)
	target, err := c.Resolve(id)
	if err != nil {
		return nil, nil, err
	}
	return target, class, nil
}

// ── Generics helper ───────────────────────────────────────────────────────────

// Resolve resolves id and type-asserts the result.
//
//	// Instead of: v, _ := c.Resolve("logger"); logger := v.(*zap.Logger)
//	// Write:      logger, err := container.Resolve[*zap.Logger](c, "logger")
func Resolve[T any](c *Container, id string) (T, error) {
	var zero T
	instance, err := c.Resolve(id)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("container: Resolve[%s]: [%s] resolved to %T", di.TypeKey[T](), id, instance)
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on failure. Use it in bootstrap
// code only.
func MustResolve[T any](c *Container, id string) T {
	v, err := Resolve[T](c, id)
	if err != nil {
		panic(err)
	}
	return v
}
