package di

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// fingerprintVersion changes whenever the artifact layout changes.
const fingerprintVersion = 1

type classPrint struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Kind       Kind          `json:"kind"`
	Synthetic  bool          `json:"synthetic,omitempty"`
	Implements []string      `json:"implements,omitempty"`
	Params     []paramPrint  `json:"params,omitempty"`
	Setters    []paramPrint  `json:"setters,omitempty"`
	Properties []paramPrint  `json:"properties,omitempty"`
	Listeners  []listenPrint `json:"listeners,omitempty"`
	Routes     []routePrint  `json:"routes,omitempty"`
	Marker     Marker        `json:"marker"`
}

type paramPrint struct {
	Name       string          `json:"name"`
	Type       string          `json:"type,omitempty"`
	GoType     string          `json:"go_type,omitempty"`
	Collection bool            `json:"collection,omitempty"`
	Optional   bool            `json:"optional,omitempty"`
	Default    json.RawMessage `json:"default,omitempty"`
	Autowire   *AutowireMarker `json:"autowire,omitempty"`
}

type listenPrint struct {
	Event    string `json:"event"`
	Method   string `json:"method"`
	Priority int    `json:"priority"`
}

type routePrint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Name   string `json:"name"`
	Action string `json:"action"`
}

type passPrint struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Settings any    `json:"settings,omitempty"`
}

// Fingerprint returns the freshness marker for a manifest, a declaration
// file and the compiler passes that will process them. The debug flag is
// part of the marker, so switching modes always invalidates the cache.
// Passes are hashed in execution order.
func Fingerprint(m *Manifest, decl *Declarations, debug bool, passes ...CompilerPass) (string, error) {
	var classes []classPrint
	if m != nil {
		for _, c := range m.classes {
			classes = append(classes, printClass(c))
		}
	}
	declJSON, err := decl.canonicalJSON()
	if err != nil {
		return "", err
	}
	var pipeline []passPrint
	for _, pass := range NewPipeline(passes...).Passes() {
		pp := passPrint{Name: pass.Name(), Priority: pass.Priority()}
		if cp, ok := pass.(ConfiguredPass); ok {
			pp.Settings = cp.Settings()
		}
		pipeline = append(pipeline, pp)
	}
	payload, err := json.Marshal(struct {
		Version      int             `json:"version"`
		Debug        bool            `json:"debug"`
		Classes      []classPrint    `json:"classes"`
		Declarations json.RawMessage `json:"declarations"`
		Passes       []passPrint     `json:"passes,omitempty"`
	}{fingerprintVersion, debug, classes, declJSON, pipeline})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func printClass(c *Class) classPrint {
	out := classPrint{
		ID:         c.ID,
		Type:       c.Type,
		Kind:       c.Kind,
		Synthetic:  c.Synthetic,
		Implements: c.Implements,
		Marker:     c.Marker,
	}
	for _, p := range c.Params {
		out.Params = append(out.Params, printParam(p))
	}
	for _, inj := range c.Setters {
		out.Setters = append(out.Setters, printParam(inj.Param))
	}
	for _, inj := range c.Properties {
		out.Properties = append(out.Properties, printParam(inj.Param))
	}
	for _, l := range c.Listeners {
		out.Listeners = append(out.Listeners, listenPrint{Event: l.Event, Method: l.Method, Priority: l.Priority})
	}
	for _, r := range c.Routes {
		out.Routes = append(out.Routes, routePrint{Method: r.Method, Path: r.Path, Name: r.Name, Action: r.Action})
	}
	return out
}

func printParam(p Param) paramPrint {
	out := paramPrint{
		Name:       p.Name,
		Type:       p.Type,
		Collection: p.Collection,
		Optional:   p.Optional,
		Default:    p.Default,
		Autowire:   p.Autowire,
	}
	if p.goType != nil {
		out.GoType = p.goType.String()
	}
	return out
}
