package di

import (
	"fmt"
	"slices"
)

// Graph is the service definition graph. The compiler owns a mutable graph;
// once frozen it is read-only and safe for concurrent readers.
type Graph struct {
	defs    []*Definition
	index   map[string]*Definition
	aliases map[string]string

	listeners []ListenerBinding
	routes    []RouteBinding

	marker  string
	buildID string
	frozen  bool

	// meta is only available while compiling. It is dropped by Freeze.
	meta map[string]*Metadata
}

// NewGraph creates an empty mutable graph.
func NewGraph() *Graph {
	return &Graph{
		index:   make(map[string]*Definition),
		aliases: make(map[string]string),
		meta:    make(map[string]*Metadata),
	}
}

// ── Mutation ──────────────────────────────────────────────────────────────────

// Add appends a definition. Its aliases are registered as well.
func (g *Graph) Add(def *Definition) error {
	if g.frozen {
		return ErrFrozen
	}
	if def == nil || def.ID == "" {
		return fmt.Errorf("di: definition without id")
	}
	if g.taken(def.ID) {
		return &DuplicateServiceError{ID: def.ID}
	}
	aliases := def.Aliases
	def.Aliases = nil
	g.defs = append(g.defs, def)
	g.index[def.ID] = def
	for _, a := range aliases {
		if err := g.SetAlias(a, def.ID); err != nil {
			return err
		}
	}
	return nil
}

// Remove drops a definition and every alias pointing at it.
func (g *Graph) Remove(id string) error {
	if g.frozen {
		return ErrFrozen
	}
	def, ok := g.index[id]
	if !ok {
		return &ServiceNotFoundError{ID: id}
	}
	for _, a := range def.Aliases {
		delete(g.aliases, a)
	}
	delete(g.index, id)
	delete(g.meta, id)
	g.defs = slices.DeleteFunc(g.defs, func(d *Definition) bool { return d.ID == id })
	return nil
}

// SetAlias makes alias resolve to id. Aliases of aliases collapse to the
// primary id.
func (g *Graph) SetAlias(alias, id string) error {
	if g.frozen {
		return ErrFrozen
	}
	if alias == "" || alias == id {
		return fmt.Errorf("di: [%s] cannot be aliased to itself", id)
	}
	target, ok := g.resolveID(id)
	if !ok {
		return &ServiceNotFoundError{ID: id, Reason: "alias target " + alias}
	}
	if existing, ok := g.aliases[alias]; ok {
		if existing == target {
			return nil
		}
		return &DuplicateServiceError{ID: alias}
	}
	if _, ok := g.index[alias]; ok {
		return &DuplicateServiceError{ID: alias}
	}
	g.aliases[alias] = target
	def := g.index[target]
	def.Aliases = append(def.Aliases, alias)
	return nil
}

// Tag adds tag to the definition id.
func (g *Graph) Tag(id, tag string) error {
	if g.frozen {
		return ErrFrozen
	}
	def, ok := g.lookup(id)
	if !ok {
		return &ServiceNotFoundError{ID: id}
	}
	def.AddTag(tag)
	return nil
}

// Mutate applies fn to the definition id.
func (g *Graph) Mutate(id string, fn func(*Definition) error) error {
	if g.frozen {
		return ErrFrozen
	}
	def, ok := g.lookup(id)
	if !ok {
		return &ServiceNotFoundError{ID: id}
	}
	return fn(def)
}

// SetListeners replaces the listener table.
func (g *Graph) SetListeners(bindings []ListenerBinding) error {
	if g.frozen {
		return ErrFrozen
	}
	g.listeners = slices.Clone(bindings)
	return nil
}

// SetRoutes replaces the route table.
func (g *Graph) SetRoutes(bindings []RouteBinding) error {
	if g.frozen {
		return ErrFrozen
	}
	g.routes = slices.Clone(bindings)
	return nil
}

// Freeze strips excluded definitions, stamps the marker and build id and
// makes the graph read-only.
func (g *Graph) Freeze(marker, buildID string) error {
	if g.frozen {
		return ErrFrozen
	}
	for _, d := range slices.Clone(g.defs) {
		if d.Exclude {
			if err := g.Remove(d.ID); err != nil {
				return err
			}
		}
	}
	for _, d := range g.defs {
		for i, a := range d.Arguments {
			if a.Kind == Unresolved {
				return fmt.Errorf("di: service %q argument %d is unresolved", d.ID, i)
			}
		}
		d.normalize()
	}
	if len(g.listeners) == 0 {
		g.listeners = nil
	}
	if len(g.routes) == 0 {
		g.routes = nil
	}
	g.marker = marker
	g.buildID = buildID
	g.meta = nil
	g.frozen = true
	return nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

// Frozen reports whether the graph is compiled.
func (g *Graph) Frozen() bool { return g.frozen }

// Marker returns the freshness marker stamped at Freeze.
func (g *Graph) Marker() string { return g.marker }

// BuildID identifies the compilation that produced the graph.
func (g *Graph) BuildID() string { return g.buildID }

// Has reports whether id is a definition or an alias.
func (g *Graph) Has(id string) bool {
	_, ok := g.lookup(id)
	return ok
}

// Definition returns a copy of the definition for id or alias.
func (g *Graph) Definition(id string) (Definition, bool) {
	def, ok := g.lookup(id)
	if !ok {
		return Definition{}, false
	}
	return *def.clone(), true
}

// Definitions returns copies of every definition in discovery order.
func (g *Graph) Definitions() []Definition {
	out := make([]Definition, len(g.defs))
	for i, d := range g.defs {
		out[i] = *d.clone()
	}
	return out
}

// IDs returns the definition ids in discovery order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.defs))
	for i, d := range g.defs {
		out[i] = d.ID
	}
	return out
}

// ByTag returns the ids carrying tag in discovery order.
//
//	// Symfony: $container->findTaggedServiceIds('handler')
func (g *Graph) ByTag(tag string) []string {
	var out []string
	for _, d := range g.defs {
		if d.HasTag(tag) {
			out = append(out, d.ID)
		}
	}
	return out
}

// Tags returns every tag in first-seen order.
func (g *Graph) Tags() []string {
	var out []string
	seen := make(map[string]bool)
	for _, d := range g.defs {
		for _, t := range d.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}

// Aliases returns a copy of the alias table.
func (g *Graph) Aliases() map[string]string {
	out := make(map[string]string, len(g.aliases))
	for k, v := range g.aliases {
		out[k] = v
	}
	return out
}

// Canonical resolves an alias to its primary id.
func (g *Graph) Canonical(id string) (string, bool) {
	return g.resolveID(id)
}

// Listeners returns the listener table.
func (g *Graph) Listeners() []ListenerBinding { return slices.Clone(g.listeners) }

// Routes returns the route table.
func (g *Graph) Routes() []RouteBinding { return slices.Clone(g.routes) }

// Metadata returns the reader output for id while the graph is compiling.
func (g *Graph) Metadata(id string) (*Metadata, bool) {
	md, ok := g.meta[id]
	return md, ok
}

// Clone returns a mutable deep copy. Metadata is shared since it is never
// mutated after building.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	for _, d := range g.defs {
		c := d.clone()
		out.defs = append(out.defs, c)
		out.index[c.ID] = c
	}
	for k, v := range g.aliases {
		out.aliases[k] = v
	}
	for k, v := range g.meta {
		out.meta[k] = v
	}
	out.listeners = slices.Clone(g.listeners)
	out.routes = slices.Clone(g.routes)
	out.marker = g.marker
	out.buildID = g.buildID
	return out
}

func (g *Graph) lookup(id string) (*Definition, bool) {
	primary, ok := g.resolveID(id)
	if !ok {
		return nil, false
	}
	return g.index[primary], true
}

func (g *Graph) resolveID(id string) (string, bool) {
	if _, ok := g.index[id]; ok {
		return id, true
	}
	if target, ok := g.aliases[id]; ok {
		return target, true
	}
	return "", false
}

func (g *Graph) taken(id string) bool {
	_, def := g.index[id]
	_, alias := g.aliases[id]
	return def || alias
}
