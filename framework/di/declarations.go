package di

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Declarations is the service declaration file (config/services.yaml).
//
//	parameters:
//	  mailer.from: noreply@example.com
//	services:
//	  _defaults: { autowire: true, shared: true }
//	  app.Mailer:
//	    arguments: { from: '%mailer.from%' }
//	    tags: [mailer]
//	  mailer: '@app.Mailer'
type Declarations struct {
	Parameters map[string]any `yaml:"parameters" json:"parameters,omitempty"`
	Defaults   Defaults       `yaml:"-" json:"defaults"`
	Services   []Service      `yaml:"-" json:"services,omitempty"`
}

// Defaults apply to every class that does not declare the flag itself.
type Defaults struct {
	Shared   *bool `yaml:"shared" toml:"shared" json:"shared,omitempty"`
	Autowire *bool `yaml:"autowire" toml:"autowire" json:"autowire,omitempty"`
}

// Service is one entry under services:. AliasOf is set for the short
// `id: '@target'` form.
type Service struct {
	ID        string         `yaml:"-" toml:"id" json:"id"`
	AliasOf   string         `yaml:"-" toml:"alias_of" json:"alias_of,omitempty"`
	Class     string         `yaml:"class" toml:"class" json:"class,omitempty"`
	Arguments map[string]any `yaml:"arguments" toml:"arguments" json:"arguments,omitempty"`
	Tags      []string       `yaml:"tags" toml:"tags" json:"tags,omitempty"`
	Alias     []string       `yaml:"alias" toml:"alias" json:"alias,omitempty"`
	Shared    *bool          `yaml:"shared" toml:"shared" json:"shared,omitempty"`
	Autowire  *bool          `yaml:"autowire" toml:"autowire" json:"autowire,omitempty"`
	Exclude   bool           `yaml:"exclude" toml:"exclude" json:"exclude,omitempty"`
}

// UnmarshalYAML keeps services in document order, which is their discovery
// order.
func (d *Declarations) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Parameters map[string]any `yaml:"parameters"`
		Services   yaml.Node      `yaml:"services"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	d.Parameters = raw.Parameters
	if raw.Services.Kind == 0 {
		return nil
	}
	if raw.Services.Kind != yaml.MappingNode {
		return fmt.Errorf("services: line %d: expected a mapping", raw.Services.Line)
	}
	content := raw.Services.Content
	for i := 0; i+1 < len(content); i += 2 {
		key, val := content[i], content[i+1]
		id := key.Value
		if id == "_defaults" {
			if err := val.Decode(&d.Defaults); err != nil {
				return fmt.Errorf("services._defaults: %w", err)
			}
			continue
		}
		svc := Service{ID: id}
		switch val.Kind {
		case yaml.ScalarNode:
			if val.Tag == "!!null" {
				break
			}
			if !strings.HasPrefix(val.Value, "@") {
				return fmt.Errorf("services.%s: line %d: scalar form must be '@service'", id, val.Line)
			}
			svc.AliasOf = strings.TrimPrefix(val.Value, "@")
		case yaml.MappingNode:
			if err := val.Decode(&svc); err != nil {
				return fmt.Errorf("services.%s: %w", id, err)
			}
			svc.ID = id
		default:
			return fmt.Errorf("services.%s: line %d: unexpected node", id, val.Line)
		}
		d.Services = append(d.Services, svc)
	}
	return nil
}

// tomlDeclarations is the TOML layout. TOML tables are unordered, so
// services are an array of tables carrying their id.
//
//	[defaults]
//	autowire = true
//
//	[[services]]
//	id = "mailer.backup"
//	class = "github.com/acme/app.LogMailer"
type tomlDeclarations struct {
	Parameters map[string]any `toml:"parameters"`
	Defaults   Defaults       `toml:"defaults"`
	Services   []Service      `toml:"services"`
}

// LoadDeclarations reads a declaration file, YAML or TOML by extension. A
// missing file yields empty declarations.
func LoadDeclarations(path string) (*Declarations, error) {
	decl := &Declarations{}
	if path == "" {
		return decl, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return decl, nil
	}
	if err != nil {
		return nil, fmt.Errorf("di: read %s: %w", path, err)
	}
	switch filepath.Ext(path) {
	case ".toml":
		var raw tomlDeclarations
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("di: parse %s: %w", path, err)
		}
		decl.Parameters = raw.Parameters
		decl.Defaults = raw.Defaults
		for i, svc := range raw.Services {
			if svc.ID == "" {
				return nil, fmt.Errorf("di: parse %s: services[%d] has no id", path, i)
			}
		}
		decl.Services = raw.Services
	default:
		if err := yaml.Unmarshal(data, decl); err != nil {
			return nil, fmt.Errorf("di: parse %s: %w", path, err)
		}
	}
	return decl, nil
}

// Service returns the declaration for id.
func (d *Declarations) Service(id string) (Service, bool) {
	if d == nil {
		return Service{}, false
	}
	for _, s := range d.Services {
		if s.ID == id {
			return s, true
		}
	}
	return Service{}, false
}

var paramPattern = regexp.MustCompile(`%([^%\s]+)%`)

// argument turns a declared argument value into a graph argument.
//
//	'@mailer'      reference to mailer
//	'@@literal'    the string "@literal"
//	'%name%'       the parameter value, keeping its type
//	'x-%name%-y'   string interpolation
func (d *Declarations) argument(v any) (Argument, error) {
	s, ok := v.(string)
	if !ok {
		return LiteralArg(v)
	}
	switch {
	case strings.HasPrefix(s, "@@"):
		return LiteralArg(s[1:])
	case strings.HasPrefix(s, "@"):
		return RefArg(s[1:]), nil
	}
	if m := paramPattern.FindStringSubmatch(s); m != nil && m[0] == s {
		val, err := d.parameter(m[1])
		if err != nil {
			return Argument{}, err
		}
		return LiteralArg(val)
	}
	var firstErr error
	out := paramPattern.ReplaceAllStringFunc(s, func(match string) string {
		val, err := d.parameter(match[1 : len(match)-1])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return fmt.Sprint(val)
	})
	if firstErr != nil {
		return Argument{}, firstErr
	}
	out = strings.ReplaceAll(out, "%%", "%")
	return LiteralArg(out)
}

func (d *Declarations) parameter(name string) (any, error) {
	if v, ok := d.Parameters[name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("di: parameter %q is not defined", name)
}

// paramIndex finds the argument slot named key. Keys are parameter names or
// zero-based positions.
func paramIndex(params []Param, key string) (int, bool) {
	key = strings.TrimPrefix(key, "$")
	for i, p := range params {
		if p.Name == key {
			return i, true
		}
	}
	if i, err := strconv.Atoi(key); err == nil && i >= 0 && i < len(params) {
		return i, true
	}
	return 0, false
}

// canonicalJSON is used by Fingerprint.
func (d *Declarations) canonicalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d)
}
