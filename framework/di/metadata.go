package di

import (
	"reflect"
	"sort"
	"strings"
)

// Metadata is the normalized record the Reader produces for one class.
type Metadata struct {
	ID        string
	Class     string
	Type      string
	Kind      Kind
	Synthetic bool

	// Implements is sorted and deduplicated.
	Implements []string
	// Tags keep first-seen order, without duplicates.
	Tags     []string
	Aliases  []string
	Shared   *bool
	Autowire *bool
	Exclude  bool

	Params     []Param
	Setters    []Injection
	Properties []Injection
	Listeners  []ListenerMarker
	Routes     []RouteMarker

	goType reflect.Type
}

// Reader extracts metadata from class descriptors. It knows every interface
// mentioned by the manifest, either registered with Interface or used as an
// injection point type, and records which of them a class implements.
type Reader struct {
	interfaces []reflect.Type
}

// NewReader creates a reader for the classes in m.
func NewReader(m *Manifest) *Reader {
	r := &Reader{}
	seen := make(map[reflect.Type]bool)
	add := func(t reflect.Type) {
		if t == nil {
			return
		}
		if t.Kind() == reflect.Slice {
			t = t.Elem()
		}
		if t.Kind() != reflect.Interface || t.NumMethod() == 0 || seen[t] {
			return
		}
		seen[t] = true
		r.interfaces = append(r.interfaces, t)
	}
	if m == nil {
		return r
	}
	for _, c := range m.classes {
		if c.Kind == KindInterface {
			add(c.goType)
		}
		for _, p := range c.Params {
			add(p.goType)
		}
		for _, inj := range c.Setters {
			add(inj.Param.goType)
		}
		for _, inj := range c.Properties {
			add(inj.Param.goType)
		}
	}
	return r
}

// Read returns the metadata declared by c. It has no side effects.
func (r *Reader) Read(c *Class) (*Metadata, error) {
	if c.err != nil {
		return nil, c.err
	}
	md := &Metadata{
		ID:         c.ID,
		Class:      c.ID,
		Type:       c.Type,
		Kind:       c.Kind,
		Synthetic:  c.Synthetic,
		Tags:       uniqueStrings(c.Marker.Tags),
		Aliases:    uniqueStrings(c.Marker.Aliases),
		Shared:     c.Marker.Shared,
		Autowire:   c.Marker.Autowire,
		Exclude:    c.Marker.Exclude,
		Params:     append([]Param(nil), c.Params...),
		Setters:    append([]Injection(nil), c.Setters...),
		Properties: append([]Injection(nil), c.Properties...),
		Listeners:  append([]ListenerMarker(nil), c.Listeners...),
		Routes:     append([]RouteMarker(nil), c.Routes...),
		goType:     c.goType,
	}

	if md.Exclude && len(md.Tags) > 0 {
		return nil, &MetadataConflictError{
			Class:   c.ID,
			Target:  "class",
			Markers: []string{"exclude", "tags(" + strings.Join(md.Tags, ",") + ")"},
		}
	}

	for _, p := range md.Params {
		if err := checkInjection(c.ID, "parameter "+p.Name, p); err != nil {
			return nil, err
		}
	}
	for _, inj := range md.Setters {
		if err := checkInjection(c.ID, "setter "+inj.Name, inj.Param); err != nil {
			return nil, err
		}
	}
	for _, inj := range md.Properties {
		if err := checkInjection(c.ID, "property "+inj.Name, inj.Param); err != nil {
			return nil, err
		}
	}

	routes := make(map[string]bool)
	for _, rt := range md.Routes {
		key := strings.ToUpper(rt.Method) + " " + rt.Path
		if routes[key] {
			return nil, &MetadataConflictError{Class: c.ID, Target: "route " + key, Markers: []string{"route", "route"}}
		}
		routes[key] = true
	}
	for _, l := range md.Listeners {
		if l.Event == "" {
			return nil, &MetadataConflictError{Class: c.ID, Target: "method " + l.Method, Markers: []string{"listen_to", "empty event"}}
		}
	}

	md.Implements = r.implements(c)
	return md, nil
}

func checkInjection(class, target string, p Param) error {
	if p.Autowire == nil {
		return nil
	}
	if p.Autowire.Tag != "" && p.Autowire.ServiceID != "" {
		return &MetadataConflictError{Class: class, Target: target, Markers: []string{"autowire(tag)", "autowire(service_id)"}}
	}
	if p.Autowire.Tag != "" && !p.Collection {
		return &MetadataConflictError{Class: class, Target: target, Markers: []string{"autowire(tag)", "non-collection type"}}
	}
	return nil
}

func (r *Reader) implements(c *Class) []string {
	if c.Kind == KindInterface {
		return nil
	}
	set := make(map[string]bool)
	for _, name := range c.Implements {
		set[name] = true
	}
	if c.goType != nil {
		for _, it := range r.interfaces {
			if c.goType.Implements(it) {
				set[typeKey(it)] = true
			}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
