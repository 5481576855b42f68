package di

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
)

// Option attaches metadata to a class descriptor.
type Option func(*Class) error

// ParamOption attaches metadata to one injection point.
type ParamOption func(*Param) error

// ── Class markers ─────────────────────────────────────────────────────────────

// ID overrides the service id. Use it to register one type more than once.
func ID(id string) Option {
	return func(c *Class) error {
		if id == "" {
			return &InvalidClassError{Class: c.Type, Reason: "empty id"}
		}
		c.ID = id
		return nil
	}
}

// Tag adds tags to the class. Repeated tags are collapsed.
//
//	// PHP: #[DI(tags: ['handler'])]
func Tag(tags ...string) Option {
	return func(c *Class) error {
		c.Marker.Tags = append(c.Marker.Tags, tags...)
		return nil
	}
}

// Alias registers additional ids that resolve to the class's definition.
func Alias(aliases ...string) Option {
	return func(c *Class) error {
		c.Marker.Aliases = append(c.Marker.Aliases, aliases...)
		return nil
	}
}

// Shared marks the service as a singleton.
func Shared() Option {
	return func(c *Class) error {
		c.Marker.Shared = boolPtr(true)
		return nil
	}
}

// Transient builds a fresh instance on every resolution.
func Transient() Option {
	return func(c *Class) error {
		c.Marker.Shared = boolPtr(false)
		return nil
	}
}

// NoAutowire disables type-based resolution for the class. Only explicit
// arguments and defaults are used.
func NoAutowire() Option {
	return func(c *Class) error {
		c.Marker.Autowire = boolPtr(false)
		return nil
	}
}

// Exclude keeps the class out of the compiled graph.
func Exclude() Option {
	return func(c *Class) error {
		c.Marker.Exclude = true
		return nil
	}
}

// Implements declares that the class satisfies interface I. The reader also
// detects implementations of every interface it knows about.
func Implements[I any]() Option {
	return func(c *Class) error {
		it := reflect.TypeOf((*I)(nil)).Elem()
		if it.Kind() != reflect.Interface {
			return &InvalidClassError{Class: c.Type, Reason: fmt.Sprintf("%s is not an interface", it)}
		}
		if c.goType != nil && !c.goType.Implements(it) {
			return &InvalidClassError{Class: c.Type, Reason: fmt.Sprintf("does not implement %s", typeKey(it))}
		}
		c.Implements = append(c.Implements, typeKey(it))
		return nil
	}
}

// Inject configures the constructor parameter at index.
//
//	// PHP: public function __construct(#[Autowire(tag: 'notifier')] iterable $notifiers)
//	di.Inject(0, di.Named("notifiers"), di.WithTag("notifier"))
func Inject(index int, opts ...ParamOption) Option {
	return func(c *Class) error {
		if index < 0 || index >= len(c.Params) {
			return &InvalidClassError{Class: c.Type, Reason: fmt.Sprintf("no constructor parameter at index %d", index)}
		}
		return applyParam(&c.Params[index], opts)
	}
}

// Setter registers a setter injection. The setter is autowired like a
// constructor parameter.
//
//	di.Setter("SetLogger", (*Service).SetLogger, di.Optional())
func Setter[T, D any](method string, fn func(T, D), opts ...ParamOption) Option {
	return func(c *Class) error {
		inj, err := newInjection[T, D](c, method, fn, opts)
		if err != nil {
			return err
		}
		c.Setters = append(c.Setters, inj)
		return nil
	}
}

// Property registers a property injection. fn assigns the field.
//
//	di.Property("Clock", func(s *Service, c Clock) { s.Clock = c })
func Property[T, D any](name string, fn func(T, D), opts ...ParamOption) Option {
	return func(c *Class) error {
		inj, err := newInjection[T, D](c, name, fn, opts)
		if err != nil {
			return err
		}
		c.Properties = append(c.Properties, inj)
		return nil
	}
}

func newInjection[T, D any](c *Class, name string, fn func(T, D), opts []ParamOption) (Injection, error) {
	if name == "" || fn == nil {
		return Injection{}, &InvalidClassError{Class: c.Type, Reason: "injection needs a name and a func"}
	}
	p := newParam(name, reflect.TypeOf((*D)(nil)).Elem())
	p.Autowire = &AutowireMarker{}
	if err := applyParam(&p, opts); err != nil {
		return Injection{}, err
	}
	return Injection{
		Name:  name,
		Param: p,
		Apply: func(target, value any) error {
			t, ok := target.(T)
			if !ok {
				return fmt.Errorf("%s: target %T is not %s", name, target, reflect.TypeOf((*T)(nil)).Elem())
			}
			v, err := convert(value, p.goType)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			var d D
			if iv := v.Interface(); iv != nil {
				d = iv.(D)
			}
			fn(t, d)
			return nil
		},
	}, nil
}

// ListenTo binds a method to an event. Higher priority runs first.
//
//	// PHP: #[ListenTo(UserRegistered::class, priority: 10)]
//	di.ListenTo("user.registered", "OnRegistered", 10, (*Welcome).OnRegistered)
func ListenTo[T, E any](event, method string, priority int, fn func(T, E) error) Option {
	return func(c *Class) error {
		c.Listeners = append(c.Listeners, ListenerMarker{
			Event:    event,
			Method:   method,
			Priority: priority,
			Invoke: func(target, payload any) error {
				t, ok := target.(T)
				if !ok {
					return fmt.Errorf("listener %s: target %T is not %s", method, target, reflect.TypeOf((*T)(nil)).Elem())
				}
				e, ok := payload.(E)
				if !ok {
					return fmt.Errorf("listener %s: event %T is not %s", method, payload, reflect.TypeOf((*E)(nil)).Elem())
				}
				return fn(t, e)
			},
		})
		return nil
	}
}

// Route exposes an action of a controller class.
//
//	// PHP: #[Route('GET', '/users/{id}', name: 'users.show')]
//	di.Route("GET", "/users/{id}", "users.show", "Show", (*UserController).Show)
func Route[T any](method, path, name, action string, fn func(T) http.HandlerFunc) Option {
	return func(c *Class) error {
		c.Routes = append(c.Routes, RouteMarker{
			Method: method,
			Path:   path,
			Name:   name,
			Action: action,
			Handler: func(target any) (http.HandlerFunc, error) {
				t, ok := target.(T)
				if !ok {
					return nil, fmt.Errorf("route %s %s: target %T is not %s", method, path, target, reflect.TypeOf((*T)(nil)).Elem())
				}
				return fn(t), nil
			},
		})
		return nil
	}
}

// ── Parameter markers ─────────────────────────────────────────────────────────

// Named renames the parameter. Declaration files refer to it by this name.
func Named(name string) ParamOption {
	return func(p *Param) error {
		p.Name = name
		return nil
	}
}

// WithTag injects the ordered collection of services carrying tag.
func WithTag(tag string) ParamOption {
	return func(p *Param) error {
		if p.Autowire == nil {
			p.Autowire = &AutowireMarker{}
		}
		p.Autowire.Tag = tag
		return nil
	}
}

// WithServiceID injects the service with the given id regardless of type.
func WithServiceID(id string) ParamOption {
	return func(p *Param) error {
		if p.Autowire == nil {
			p.Autowire = &AutowireMarker{}
		}
		p.Autowire.ServiceID = id
		return nil
	}
}

// Optional resolves the parameter to its zero value when nothing matches.
func Optional() ParamOption {
	return func(p *Param) error {
		p.Optional = true
		return nil
	}
}

// Default sets the value used when nothing matches.
func Default(v any) ParamOption {
	return func(p *Param) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("default for %s: %w", p.Name, err)
		}
		p.Default = raw
		return nil
	}
}

func applyParam(p *Param, opts []ParamOption) error {
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return err
		}
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
