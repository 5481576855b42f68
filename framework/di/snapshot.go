package di

import (
	"errors"
	"fmt"
)

// SnapshotVersion is the current artifact format.
const SnapshotVersion = 1

// Snapshot is the serializable form of a compiled graph.
type Snapshot struct {
	Version     int               `json:"version"`
	Marker      string            `json:"marker"`
	BuildID     string            `json:"build_id"`
	Definitions []Definition      `json:"definitions"`
	Listeners   []ListenerBinding `json:"listeners,omitempty"`
	Routes      []RouteBinding    `json:"routes,omitempty"`
}

// Snapshot captures a compiled graph.
func (g *Graph) Snapshot() (*Snapshot, error) {
	if !g.frozen {
		return nil, ErrNotCompiled
	}
	return &Snapshot{
		Version:     SnapshotVersion,
		Marker:      g.marker,
		BuildID:     g.buildID,
		Definitions: g.Definitions(),
		Listeners:   g.Listeners(),
		Routes:      g.Routes(),
	}, nil
}

// FromSnapshot rebuilds a frozen graph and validates it: ids and aliases are
// unique, every reference resolves and the side tables point at known
// services.
func FromSnapshot(s *Snapshot) (*Graph, error) {
	if s == nil {
		return nil, errors.New("empty snapshot")
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	if s.Marker == "" {
		return nil, errors.New("snapshot has no marker")
	}

	g := NewGraph()
	for i := range s.Definitions {
		def := s.Definitions[i].clone()
		if def.ID == "" {
			return nil, fmt.Errorf("definition %d has no id", i)
		}
		if def.Exclude {
			return nil, fmt.Errorf("definition %q is excluded", def.ID)
		}
		if err := g.Add(def); err != nil {
			return nil, err
		}
	}
	for _, def := range g.defs {
		refs, _ := def.References()
		for _, ref := range refs {
			if !g.Has(ref) {
				return nil, fmt.Errorf("service %q references unknown service %q", def.ID, ref)
			}
		}
		for i, a := range def.Arguments {
			switch a.Kind {
			case Literal, Reference, Tagged:
			default:
				return nil, fmt.Errorf("service %q argument %d has invalid kind %q", def.ID, i, a.Kind)
			}
		}
	}
	for _, l := range s.Listeners {
		if !g.Has(l.ServiceID) {
			return nil, fmt.Errorf("listener for %q references unknown service %q", l.Event, l.ServiceID)
		}
	}
	for _, r := range s.Routes {
		if !g.Has(r.ServiceID) {
			return nil, fmt.Errorf("route %s %s references unknown service %q", r.Method, r.Path, r.ServiceID)
		}
	}
	g.listeners = append([]ListenerBinding(nil), s.Listeners...)
	g.routes = append([]RouteBinding(nil), s.Routes...)

	if err := g.Freeze(s.Marker, s.BuildID); err != nil {
		return nil, err
	}
	return g, nil
}
