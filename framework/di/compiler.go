package di

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is a step of the compilation lifecycle.
//
//	Uncompiled → Building → Autowiring → PassExecution → Compiled → {Cached | Discarded}
//
// A failure at Building, Autowiring or PassExecution ends in Failed.
type State int

const (
	Uncompiled State = iota
	Building
	Autowiring
	PassExecution
	Compiled
	Cached
	Discarded
	Failed
)

var stateNames = [...]string{
	Uncompiled:    "uncompiled",
	Building:      "building",
	Autowiring:    "autowiring",
	PassExecution: "pass_execution",
	Compiled:      "compiled",
	Cached:        "cached",
	Discarded:     "discarded",
	Failed:        "failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Cached || s == Discarded || s == Failed
}

// Compiler runs the whole pipeline. One compiler performs one compilation
// at a time; calling Compile again starts over.
type Compiler struct {
	logger   *zap.Logger
	builder  *Builder
	resolver *Resolver
	pipeline *Pipeline

	mu    sync.Mutex
	state State
}

// NewCompiler creates a compiler running passes after autowiring.
func NewCompiler(logger *zap.Logger, passes ...CompilerPass) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{
		logger:   logger,
		builder:  NewBuilder(logger),
		resolver: NewResolver(logger),
		pipeline: NewPipeline(passes...),
	}
}

// Pipeline returns the compiler's pass pipeline.
func (c *Compiler) Pipeline() *Pipeline { return c.pipeline }

// State returns the current lifecycle state.
func (c *Compiler) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Compile builds, autowires and processes the graph, then freezes it with
// marker. Either a frozen graph or an error is returned, never both.
func (c *Compiler) Compile(m *Manifest, decl *Declarations, marker string) (*Graph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m == nil {
		return nil, c.fail(Uncompiled, fmt.Errorf("di: nil manifest"))
	}
	start := time.Now()
	buildID := uuid.NewString()
	log := c.logger.With(zap.String("build_id", buildID))

	c.transition(log, Building)
	g, err := c.builder.Build(m, decl)
	if err != nil {
		return nil, c.fail(Building, err)
	}

	c.transition(log, Autowiring)
	if err := c.resolver.Resolve(g); err != nil {
		return nil, c.fail(Autowiring, err)
	}

	c.transition(log, PassExecution)
	g, err = c.pipeline.Run(g)
	if err != nil {
		return nil, c.fail(PassExecution, err)
	}
	if err := g.Freeze(marker, buildID); err != nil {
		return nil, c.fail(PassExecution, err)
	}

	c.transition(log, Compiled)
	log.Info("container compiled",
		zap.Int("definitions", len(g.defs)),
		zap.Int("listeners", len(g.listeners)),
		zap.Int("routes", len(g.routes)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return g, nil
}

// MarkCached records that the compiled graph was persisted.
func (c *Compiler) MarkCached() error { return c.finish(Cached) }

// MarkDiscarded records that the compiled graph will not be persisted.
func (c *Compiler) MarkDiscarded() error { return c.finish(Discarded) }

func (c *Compiler) finish(to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Compiled {
		return fmt.Errorf("di: cannot move from %s to %s", c.state, to)
	}
	c.transition(c.logger, to)
	return nil
}

func (c *Compiler) transition(log *zap.Logger, to State) {
	log.Debug("compiler state", zap.Stringer("from", c.state), zap.Stringer("to", to))
	c.state = to
}

func (c *Compiler) fail(at State, err error) error {
	c.logger.Error("container compilation failed", zap.Stringer("state", at), zap.Error(err))
	c.state = Failed
	return err
}
