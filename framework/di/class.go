package di

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
)

// ── Class descriptors ─────────────────────────────────────────────────────────

// Kind classifies a registered type.
type Kind int

const (
	// KindConcrete types become service definitions.
	KindConcrete Kind = iota
	// KindInterface types are only used for type matching.
	KindInterface
	// KindAbstract types are described but never instantiated.
	KindAbstract
)

func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindAbstract:
		return "abstract"
	default:
		return "concrete"
	}
}

// Factory builds an instance from its resolved constructor arguments.
type Factory func(args []any) (any, error)

// Class describes one discoverable type and the metadata it declares.
//
// Go has no attributes, so every marker that a Swift class would carry as
// #[DI], #[Autowire] or #[ListenTo] is attached here with options:
//
//	// PHP:
//	// #[DI(tags: ['notifier'], shared: true)]
//	// final class SlackNotifier implements Notifier { ... }
//	di.Provide(NewSlackNotifier, di.Tag("notifier"), di.Shared())
type Class struct {
	// ID is the manifest key and default service id. Defaults to Type.
	ID string
	// Type is the package-qualified type name.
	Type string
	Kind Kind

	Implements []string
	Params     []Param
	Setters    []Injection
	Properties []Injection
	Listeners  []ListenerMarker
	Routes     []RouteMarker
	Marker     Marker

	// Synthetic services have no factory; the runtime receives the
	// instance through Container.Instance.
	Synthetic bool
	Factory   Factory

	goType reflect.Type
	err    error
}

// GoType returns the reflected type behind the descriptor.
func (c *Class) GoType() reflect.Type { return c.goType }

// Err returns the first error raised while the descriptor was built.
func (c *Class) Err() error { return c.err }

// Marker holds the class-level DI metadata.
type Marker struct {
	Tags     []string
	Aliases  []string
	Shared   *bool
	Autowire *bool
	Exclude  bool
}

// AutowireMarker narrows how an injection point is resolved.
type AutowireMarker struct {
	Tag       string
	ServiceID string
}

// Param is one constructor (or setter) parameter.
type Param struct {
	Name string
	// Type is the package-qualified type key. Empty for scalars, func types
	// and the empty interface, which cannot be autowired.
	Type       string
	Collection bool
	Optional   bool
	Default    json.RawMessage
	Autowire   *AutowireMarker

	goType reflect.Type
}

// HasDefault reports whether the parameter declares a default value.
func (p Param) HasDefault() bool { return p.Default != nil }

// GoType returns the reflected parameter type.
func (p Param) GoType() reflect.Type { return p.goType }

// Decode turns a literal argument into a value of the parameter's type.
func (p Param) Decode(raw json.RawMessage) (any, error) {
	if p.goType == nil {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	ptr := reflect.New(p.goType)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("decode %s: %w", p.Name, err)
		}
	}
	return ptr.Elem().Interface(), nil
}

// Injection is a setter call or property assignment applied after
// construction.
type Injection struct {
	Name  string
	Param Param
	Apply func(target, value any) error
}

// ListenerMarker binds a method to an event name.
type ListenerMarker struct {
	Event    string
	Method   string
	Priority int
	Invoke   func(target, event any) error
}

// RouteMarker exposes a controller action over HTTP.
type RouteMarker struct {
	Method  string
	Path    string
	Name    string
	Action  string
	Handler func(target any) (http.HandlerFunc, error)
}

// ── Constructors ──────────────────────────────────────────────────────────────

// Provide describes a concrete class from its constructor. The constructor
// must return T or (T, error); every parameter becomes an argument slot
// named arg0, arg1, ... unless renamed with Named.
//
//	di.Provide(NewUserService, di.Inject(1, di.WithTag("notifier")))
func Provide(ctor any, opts ...Option) *Class {
	c := &Class{Kind: KindConcrete}
	fn := reflect.ValueOf(ctor)
	if !fn.IsValid() || fn.Kind() != reflect.Func {
		c.err = &InvalidClassError{Reason: fmt.Sprintf("constructor must be a func, got %T", ctor)}
		return c
	}
	ft := fn.Type()
	if ft.NumOut() < 1 || ft.NumOut() > 2 || (ft.NumOut() == 2 && !ft.Out(1).Implements(errorType)) {
		c.err = &InvalidClassError{Reason: fmt.Sprintf("constructor %s must return T or (T, error)", ft)}
		return c
	}
	out := ft.Out(0)
	c.goType = out
	c.Type = typeKey(out)
	c.ID = c.Type
	if out.Kind() == reflect.Interface {
		c.err = &InvalidClassError{Class: c.Type, Reason: "constructor returns an interface"}
		return c
	}
	if ft.IsVariadic() {
		c.err = &InvalidClassError{Class: c.Type, Reason: "variadic constructors are not supported"}
		return c
	}

	for i := 0; i < ft.NumIn(); i++ {
		c.Params = append(c.Params, newParam(fmt.Sprintf("arg%d", i), ft.In(i)))
	}

	c.Factory = func(args []any) (any, error) {
		if len(args) != ft.NumIn() {
			return nil, fmt.Errorf("%s: expected %d arguments, got %d", c.Type, ft.NumIn(), len(args))
		}
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			v, err := convert(a, ft.In(i))
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", c.Type, i, err)
			}
			in[i] = v
		}
		results := fn.Call(in)
		if len(results) == 2 && !results[1].IsNil() {
			return nil, results[1].Interface().(error)
		}
		return results[0].Interface(), nil
	}

	c.apply(opts)
	return c
}

// Interface describes an interface type so concrete classes can be matched
// against it.
func Interface[I any](opts ...Option) *Class {
	t := reflect.TypeOf((*I)(nil)).Elem()
	c := &Class{Kind: KindInterface, goType: t, Type: typeKey(t)}
	c.ID = c.Type
	if t.Kind() != reflect.Interface {
		c.err = &InvalidClassError{Class: c.Type, Reason: "not an interface type"}
		return c
	}
	c.apply(opts)
	return c
}

// Abstract describes a type that is never instantiated, such as a shared
// base struct. It is skipped by the builder.
func Abstract[T any](opts ...Option) *Class {
	t := reflect.TypeOf((*T)(nil)).Elem()
	c := &Class{Kind: KindAbstract, goType: t, Type: typeKey(t)}
	c.ID = c.Type
	c.apply(opts)
	return c
}

// Synthetic describes a service whose instance is supplied at runtime.
//
//	di.Synthetic[*zap.Logger](di.Alias("logger"))
func Synthetic[T any](opts ...Option) *Class {
	t := reflect.TypeOf((*T)(nil)).Elem()
	c := &Class{Kind: KindConcrete, Synthetic: true, goType: t, Type: typeKey(t)}
	c.ID = c.Type
	c.apply(opts)
	return c
}

func (c *Class) apply(opts []Option) {
	for _, opt := range opts {
		if err := opt(c); err != nil && c.err == nil {
			c.err = err
		}
	}
}

// ── Type keys ─────────────────────────────────────────────────────────────────

// TypeKey returns the package-qualified name of T, dereferencing pointers.
//
//	di.TypeKey[*app.Mailer]()  // "github.com/acme/app.Mailer"
func TypeKey[T any]() string {
	return typeKey(reflect.TypeOf((*T)(nil)).Elem())
}

func typeKey(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

var (
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	anyInterface = reflect.TypeOf((*any)(nil)).Elem()
)

// newParam classifies a parameter type. Structs, pointers to named types and
// non-empty interfaces are autowirable; slices of those are collections.
func newParam(name string, t reflect.Type) Param {
	p := Param{Name: name, goType: t}
	if t.Kind() == reflect.Slice {
		p.Collection = true
		p.Type = serviceKey(t.Elem())
		return p
	}
	p.Type = serviceKey(t)
	return p
}

func serviceKey(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Interface:
		if t == anyInterface || t.NumMethod() == 0 {
			return ""
		}
		return typeKey(t)
	case reflect.Ptr:
		if t.Elem().Name() == "" {
			return ""
		}
		return typeKey(t)
	case reflect.Struct:
		if t.Name() == "" {
			return ""
		}
		return typeKey(t)
	default:
		return ""
	}
}

// convert adapts a resolved argument to the parameter type.
func convert(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(t), nil
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if list, ok := a.([]any); ok && t.Kind() == reflect.Slice {
		out := reflect.MakeSlice(t, 0, len(list))
		for i, item := range list {
			iv, err := convert(item, t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out = reflect.Append(out, iv)
		}
		return out, nil
	}
	if numeric(v.Kind()) && numeric(t.Kind()) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", v.Type(), t)
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
