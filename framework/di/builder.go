package di

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Builder turns the manifest and the declaration file into an unresolved
// definition graph.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a builder.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// Build creates one definition per concrete class, then applies the
// declaration file. Interfaces and abstract classes are skipped; excluded
// classes are kept as flagged definitions until the graph is frozen.
//
// Parameters that cannot be wired are not reported here. The declaration
// file may still supply them, so the resolver reports them instead.
func (b *Builder) Build(m *Manifest, decl *Declarations) (*Graph, error) {
	if decl == nil {
		decl = &Declarations{}
	}
	reader := NewReader(m)
	g := NewGraph()

	for _, c := range m.classes {
		md, err := reader.Read(c)
		if err != nil {
			return nil, err
		}
		if md.Kind != KindConcrete {
			b.logger.Debug("skipping non-concrete class", zap.String("class", md.Class), zap.Stringer("kind", md.Kind))
			continue
		}
		if err := g.Add(newDefinition(md, decl.Defaults)); err != nil {
			return nil, err
		}
		g.meta[md.ID] = md
	}

	var aliases []Service
	for _, svc := range decl.Services {
		if svc.AliasOf != "" {
			aliases = append(aliases, svc)
			continue
		}
		if err := b.declare(g, m, reader, decl, svc); err != nil {
			return nil, err
		}
	}
	for _, svc := range aliases {
		if err := g.SetAlias(svc.ID, svc.AliasOf); err != nil {
			return nil, fmt.Errorf("services.%s: %w", svc.ID, err)
		}
	}

	b.logger.Debug("definitions built", zap.Int("definitions", len(g.defs)), zap.Int("aliases", len(g.aliases)))
	return g, nil
}

// declare applies one service entry, creating a new definition when the id
// is not a discovered class.
func (b *Builder) declare(g *Graph, m *Manifest, reader *Reader, decl *Declarations, svc Service) error {
	def, exists := g.index[svc.ID]
	if exists && svc.Class != "" && svc.Class != def.Class {
		return fmt.Errorf("services.%s: class %q conflicts with discovered class %q", svc.ID, svc.Class, def.Class)
	}
	if !exists {
		className := svc.Class
		if className == "" {
			className = svc.ID
		}
		c, ok := m.Class(className)
		if !ok {
			return &ServiceNotFoundError{ID: svc.ID, Reason: fmt.Sprintf("class %q is not registered", className)}
		}
		if c.Kind != KindConcrete {
			return &InvalidClassError{Class: className, Reason: fmt.Sprintf("%s classes cannot be services", c.Kind)}
		}
		base, err := reader.Read(c)
		if err != nil {
			return err
		}
		md := *base
		md.ID = svc.ID
		md.Aliases = nil
		md.Routes = nil
		def = newDefinition(&md, decl.Defaults)
		if err := g.Add(def); err != nil {
			return err
		}
		g.meta[md.ID] = &md
	}
	md := g.meta[def.ID]

	for _, tag := range svc.Tags {
		def.AddTag(tag)
	}
	if svc.Shared != nil {
		def.Shared = *svc.Shared
	}
	if svc.Autowire != nil {
		def.Autowire = *svc.Autowire
	}
	if svc.Exclude {
		def.Exclude = true
	}
	if def.Exclude && len(def.Tags) > 0 {
		return &MetadataConflictError{Class: def.Class, Target: "service " + def.ID, Markers: []string{"exclude", "tags"}}
	}
	for _, alias := range svc.Alias {
		if err := g.SetAlias(alias, def.ID); err != nil {
			return fmt.Errorf("services.%s: %w", svc.ID, err)
		}
	}

	keys := make([]string, 0, len(svc.Arguments))
	for k := range svc.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		i, ok := paramIndex(md.Params, k)
		if !ok {
			return fmt.Errorf("services.%s: %s has no constructor parameter %q", svc.ID, def.Class, k)
		}
		arg, err := decl.argument(svc.Arguments[k])
		if err != nil {
			return fmt.Errorf("services.%s: argument %q: %w", svc.ID, k, err)
		}
		def.Arguments[i] = arg
	}
	return nil
}

func newDefinition(md *Metadata, defaults Defaults) *Definition {
	def := &Definition{
		ID:         md.ID,
		Class:      md.Class,
		Type:       md.Type,
		Implements: append([]string(nil), md.Implements...),
		Tags:       append([]string(nil), md.Tags...),
		Aliases:    append([]string(nil), md.Aliases...),
		Shared:     pickBool(md.Shared, defaults.Shared),
		Autowire:   pickBool(md.Autowire, defaults.Autowire),
		Synthetic:  md.Synthetic,
		Exclude:    md.Exclude,
	}
	if len(md.Params) > 0 {
		def.Arguments = make([]Argument, len(md.Params))
	}
	for _, inj := range md.Setters {
		def.Calls = append(def.Calls, Call{Method: inj.Name})
	}
	for _, inj := range md.Properties {
		def.Properties = append(def.Properties, Call{Method: inj.Name})
	}
	return def
}

// pickBool returns the first non-nil flag, defaulting to true.
func pickBool(flags ...*bool) bool {
	for _, f := range flags {
		if f != nil {
			return *f
		}
	}
	return true
}
