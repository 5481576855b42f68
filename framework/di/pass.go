package di

import "sort"

// CompilerPass transforms the definition graph during compilation. Passes
// run by descending priority; ties keep registration order. A pass must be
// idempotent.
type CompilerPass interface {
	Name() string
	Priority() int
	Process(g *Graph) error
}

// ConfiguredPass is a pass whose effect depends on settings beyond its name
// and priority. Settings returns a JSON-encodable value that is folded into
// the freshness marker.
type ConfiguredPass interface {
	CompilerPass
	Settings() any
}

// PassFunc adapts a function into a CompilerPass.
type PassFunc struct {
	name     string
	priority int
	fn       func(*Graph) error
}

// NewPass creates a pass from fn.
//
//	di.NewPass("tag.reports", 10, func(g *di.Graph) error {
//	    return g.Tag("app.CpuReport", "reports")
//	})
func NewPass(name string, priority int, fn func(*Graph) error) *PassFunc {
	return &PassFunc{name: name, priority: priority, fn: fn}
}

func (p *PassFunc) Name() string           { return p.name }
func (p *PassFunc) Priority() int          { return p.priority }
func (p *PassFunc) Process(g *Graph) error { return p.fn(g) }

// Pipeline is an ordered list of compiler passes.
type Pipeline struct {
	passes []CompilerPass
}

// NewPipeline creates a pipeline holding passes.
func NewPipeline(passes ...CompilerPass) *Pipeline {
	p := &Pipeline{}
	for _, pass := range passes {
		p.Add(pass)
	}
	return p
}

// Add registers a pass.
func (p *Pipeline) Add(pass CompilerPass) *Pipeline {
	if pass != nil {
		p.passes = append(p.passes, pass)
	}
	return p
}

// Passes returns the passes in execution order.
func (p *Pipeline) Passes() []CompilerPass {
	out := make([]CompilerPass, len(p.passes))
	copy(out, p.passes)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority() > out[j].Priority()
	})
	return out
}

// Run applies every pass to a copy of g and returns the copy. g itself is
// never modified, so a failed run leaves no partial graph behind.
func (p *Pipeline) Run(g *Graph) (*Graph, error) {
	out := g.Clone()
	for _, pass := range p.Passes() {
		if err := pass.Process(out); err != nil {
			return nil, &CompilerPassError{Pass: pass.Name(), Err: err}
		}
	}
	return out, nil
}
