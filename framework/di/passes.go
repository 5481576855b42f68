package di

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"
)

// Well-known tags applied by autoconfiguration.
const (
	TagMiddleware = "http.middleware"
	TagSubscriber = "event.subscriber"
)

// Built-in pass priorities.
const (
	PriorityAutoconfigure = 100
	PriorityListeners     = 50
	PriorityRoutes        = 50
	PriorityCycles        = 0
	PriorityRequired      = -100
)

// DefaultPasses returns the built-in passes.
func DefaultPasses(rules []AutoconfigureRule, required []string) []CompilerPass {
	return []CompilerPass{
		NewAutoconfigurePass(rules...),
		EventListenerPass{},
		RouteCollectorPass{},
		CheckCircularReferencesPass{},
		NewRequiredServicesPass(required...),
	}
}

// ── AutoconfigurePass ─────────────────────────────────────────────────────────

// AutoconfigureRule tags every class implementing an interface.
type AutoconfigureRule struct {
	Interface string
	Tag       string

	goType reflect.Type
}

// Autoconfigure creates a rule for interface I.
//
//	di.Autoconfigure[routing.Middleware](di.TagMiddleware)
func Autoconfigure[I any](tag string) AutoconfigureRule {
	t := reflect.TypeOf((*I)(nil)).Elem()
	return AutoconfigureRule{Interface: typeKey(t), Tag: tag, goType: t}
}

// AutoconfigurePass tags definitions by the interfaces they implement.
type AutoconfigurePass struct {
	rules []AutoconfigureRule
}

// NewAutoconfigurePass creates the pass.
func NewAutoconfigurePass(rules ...AutoconfigureRule) *AutoconfigurePass {
	return &AutoconfigurePass{rules: rules}
}

func (p *AutoconfigurePass) Name() string  { return "autoconfigure" }
func (p *AutoconfigurePass) Priority() int { return PriorityAutoconfigure }

// Settings returns the interface and tag of every rule.
func (p *AutoconfigurePass) Settings() any {
	out := make([][2]string, len(p.rules))
	for i, rule := range p.rules {
		out[i] = [2]string{rule.Interface, rule.Tag}
	}
	return out
}

func (p *AutoconfigurePass) Process(g *Graph) error {
	for _, def := range g.defs {
		if def.Exclude {
			continue
		}
		md := g.meta[def.ID]
		for _, rule := range p.rules {
			matched := def.Matches(rule.Interface)
			if !matched && md != nil && md.goType != nil && rule.goType != nil && rule.goType.Kind() == reflect.Interface {
				matched = md.goType.Implements(rule.goType)
			}
			if !matched {
				continue
			}
			def.AddTag(rule.Tag)
			if !slices.Contains(def.Implements, rule.Interface) {
				def.Implements = append(def.Implements, rule.Interface)
				sort.Strings(def.Implements)
			}
		}
	}
	return nil
}

// ── EventListenerPass ─────────────────────────────────────────────────────────

// EventListenerPass records every ListenTo marker in the graph's listener
// table, sorted by event, then by descending priority, then by discovery
// order.
type EventListenerPass struct{}

func (EventListenerPass) Name() string  { return "event_listeners" }
func (EventListenerPass) Priority() int { return PriorityListeners }

func (EventListenerPass) Process(g *Graph) error {
	var bindings []ListenerBinding
	for _, def := range g.defs {
		if def.Exclude {
			continue
		}
		md, ok := g.meta[def.ID]
		if !ok {
			continue
		}
		for _, l := range md.Listeners {
			bindings = append(bindings, ListenerBinding{
				Event:     l.Event,
				ServiceID: def.ID,
				Method:    l.Method,
				Priority:  l.Priority,
			})
		}
	}
	sort.SliceStable(bindings, func(i, j int) bool {
		if bindings[i].Event != bindings[j].Event {
			return bindings[i].Event < bindings[j].Event
		}
		return bindings[i].Priority > bindings[j].Priority
	})
	return g.SetListeners(bindings)
}

// ── RouteCollectorPass ────────────────────────────────────────────────────────

// RouteCollectorPass records every route marker in the graph's route table.
// A method and path pair may only be claimed once.
type RouteCollectorPass struct{}

func (RouteCollectorPass) Name() string  { return "routes" }
func (RouteCollectorPass) Priority() int { return PriorityRoutes }

func (RouteCollectorPass) Process(g *Graph) error {
	var bindings []RouteBinding
	paths := make(map[string]string)
	names := make(map[string]string)
	for _, def := range g.defs {
		if def.Exclude {
			continue
		}
		md, ok := g.meta[def.ID]
		if !ok {
			continue
		}
		for _, rt := range md.Routes {
			method := strings.ToUpper(rt.Method)
			key := method + " " + rt.Path
			if owner, dup := paths[key]; dup {
				return fmt.Errorf("route %s is declared by both %s and %s", key, owner, def.ID)
			}
			paths[key] = def.ID
			if rt.Name != "" {
				if owner, dup := names[rt.Name]; dup {
					return fmt.Errorf("route name %q is used by both %s and %s", rt.Name, owner, def.ID)
				}
				names[rt.Name] = def.ID
			}
			bindings = append(bindings, RouteBinding{
				Method:    method,
				Path:      rt.Path,
				Name:      rt.Name,
				ServiceID: def.ID,
				Action:    rt.Action,
			})
		}
	}
	return g.SetRoutes(bindings)
}

// ── CheckCircularReferencesPass ───────────────────────────────────────────────

// CheckCircularReferencesPass fails on reference cycles through constructor
// arguments, setter calls, properties and tagged collections.
type CheckCircularReferencesPass struct{}

func (CheckCircularReferencesPass) Name() string  { return "check_circular_references" }
func (CheckCircularReferencesPass) Priority() int { return PriorityCycles }

func (CheckCircularReferencesPass) Process(g *Graph) error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.defs))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case grey:
			start := slices.Index(stack, id)
			path := append(slices.Clone(stack[start:]), id)
			return &CircularDependencyError{Path: path}
		case black:
			return nil
		}
		color[id] = grey
		stack = append(stack, id)

		def := g.index[id]
		refs, tags := def.References()
		for _, ref := range refs {
			target, ok := g.resolveID(ref)
			if !ok {
				continue
			}
			if err := visit(target); err != nil {
				return err
			}
		}
		for _, tag := range tags {
			for _, member := range g.ByTag(tag) {
				if member == id || g.index[member].Exclude {
					continue
				}
				if err := visit(member); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
		return nil
	}

	for _, def := range g.defs {
		if def.Exclude {
			continue
		}
		if err := visit(def.ID); err != nil {
			return err
		}
	}
	return nil
}

// ── RequiredServicesPass ──────────────────────────────────────────────────────

// RequiredServicesPass fails when one of the required ids is missing or
// excluded.
type RequiredServicesPass struct {
	ids []string
}

// NewRequiredServicesPass creates the pass.
func NewRequiredServicesPass(ids ...string) *RequiredServicesPass {
	return &RequiredServicesPass{ids: ids}
}

func (p *RequiredServicesPass) Name() string  { return "required_services" }
func (p *RequiredServicesPass) Priority() int { return PriorityRequired }

// Settings returns the required ids.
func (p *RequiredServicesPass) Settings() any { return p.ids }

func (p *RequiredServicesPass) Process(g *Graph) error {
	for _, id := range p.ids {
		def, ok := g.lookup(id)
		if !ok || def.Exclude {
			return &ServiceNotFoundError{ID: id, Reason: "required service is missing"}
		}
	}
	return nil
}
