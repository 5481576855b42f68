package di

import (
	"encoding/json"
	"slices"
)

// ArgumentKind tells the runtime how to produce an argument value.
type ArgumentKind string

const (
	// Unresolved arguments have not been autowired yet. They never survive
	// compilation.
	Unresolved ArgumentKind = ""
	// Literal arguments carry a JSON encoded value.
	Literal ArgumentKind = "literal"
	// Reference arguments point at another service id or alias.
	Reference ArgumentKind = "reference"
	// Tagged arguments expand to every service carrying a tag, in discovery
	// order, when first resolved.
	Tagged ArgumentKind = "tagged"
)

// Argument is one resolved injection value.
type Argument struct {
	Kind  ArgumentKind    `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
	Ref   string          `json:"ref,omitempty"`
	Tag   string          `json:"tag,omitempty"`
}

// LiteralArg builds a literal argument from v.
func LiteralArg(v any) (Argument, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Argument{}, err
	}
	return Argument{Kind: Literal, Value: raw}, nil
}

// RefArg builds a reference to id.
func RefArg(id string) Argument { return Argument{Kind: Reference, Ref: id} }

// TaggedArg builds a tagged collection placeholder.
func TaggedArg(tag string) Argument { return Argument{Kind: Tagged, Tag: tag} }

var nullLiteral = Argument{Kind: Literal, Value: json.RawMessage("null")}

// Call is a setter call or property assignment with its argument.
type Call struct {
	Method   string   `json:"method"`
	Argument Argument `json:"argument"`
}

// Definition describes how to build and wire one service.
type Definition struct {
	ID         string     `json:"id"`
	Class      string     `json:"class"`
	Type       string     `json:"type"`
	Implements []string   `json:"implements,omitempty"`
	Arguments  []Argument `json:"arguments,omitempty"`
	Calls      []Call     `json:"calls,omitempty"`
	Properties []Call     `json:"properties,omitempty"`
	// Tags is a set; the slice keeps first-seen order for display.
	Tags      []string `json:"tags,omitempty"`
	Aliases   []string `json:"aliases,omitempty"`
	Shared    bool     `json:"shared"`
	Autowire  bool     `json:"autowire"`
	Synthetic bool     `json:"synthetic,omitempty"`
	Exclude   bool     `json:"exclude,omitempty"`
}

// HasTag reports whether the definition carries tag.
func (d *Definition) HasTag(tag string) bool {
	return slices.Contains(d.Tags, tag)
}

// AddTag adds tag unless it is already present.
func (d *Definition) AddTag(tag string) bool {
	if tag == "" || d.HasTag(tag) {
		return false
	}
	d.Tags = append(d.Tags, tag)
	return true
}

// Matches reports whether the definition can satisfy typ.
func (d *Definition) Matches(typ string) bool {
	return d.Type == typ || slices.Contains(d.Implements, typ)
}

// References returns every service id the definition depends on directly.
// Tagged arguments are reported by tag.
func (d *Definition) References() (refs []string, tags []string) {
	visit := func(a Argument) {
		switch a.Kind {
		case Reference:
			refs = append(refs, a.Ref)
		case Tagged:
			tags = append(tags, a.Tag)
		}
	}
	for _, a := range d.Arguments {
		visit(a)
	}
	for _, c := range d.Calls {
		visit(c.Argument)
	}
	for _, c := range d.Properties {
		visit(c.Argument)
	}
	return refs, tags
}

// clone returns a deep copy.
func (d *Definition) clone() *Definition {
	out := *d
	out.Implements = slices.Clone(d.Implements)
	out.Tags = slices.Clone(d.Tags)
	out.Aliases = slices.Clone(d.Aliases)
	if d.Arguments != nil {
		out.Arguments = make([]Argument, len(d.Arguments))
		for i, a := range d.Arguments {
			out.Arguments[i] = a.clone()
		}
	}
	out.Calls = cloneCalls(d.Calls)
	out.Properties = cloneCalls(d.Properties)
	return &out
}

// normalize drops empty slices so a definition compares equal after a round
// trip through the cache.
func (d *Definition) normalize() {
	if len(d.Implements) == 0 {
		d.Implements = nil
	}
	if len(d.Arguments) == 0 {
		d.Arguments = nil
	}
	if len(d.Calls) == 0 {
		d.Calls = nil
	}
	if len(d.Properties) == 0 {
		d.Properties = nil
	}
	if len(d.Tags) == 0 {
		d.Tags = nil
	}
	if len(d.Aliases) == 0 {
		d.Aliases = nil
	}
	for i := range d.Arguments {
		if len(d.Arguments[i].Value) == 0 {
			d.Arguments[i].Value = nil
		}
	}
}

func (a Argument) clone() Argument {
	a.Value = slices.Clone(a.Value)
	return a
}

func cloneCalls(in []Call) []Call {
	if in == nil {
		return nil
	}
	out := make([]Call, len(in))
	for i, c := range in {
		out[i] = Call{Method: c.Method, Argument: c.Argument.clone()}
	}
	return out
}

// ── Side-channel tables ───────────────────────────────────────────────────────

// ListenerBinding is one (event, service, method, priority) entry recorded by
// the EventListenerPass.
type ListenerBinding struct {
	Event     string `json:"event"`
	ServiceID string `json:"service_id"`
	Method    string `json:"method"`
	Priority  int    `json:"priority"`
}

// RouteBinding is one controller action recorded by the RouteCollectorPass.
type RouteBinding struct {
	Method    string `json:"method"`
	Path      string `json:"path"`
	Name      string `json:"name,omitempty"`
	ServiceID string `json:"service_id"`
	Action    string `json:"action"`
}
