package di

import "fmt"

// ContextualBuilder implements the fluent contextual binding API on top of
// the manifest. The binding is resolved at compile time.
//
//	// Laravel: $app->when(PhotoController::class)->needs(Filesystem::class)->give(S3::class)
//	m.When(di.TypeKey[*PhotoController]()).Needs(di.TypeKey[Filesystem]()).Give("filesystem.s3")
type ContextualBuilder struct {
	manifest *Manifest
	concrete string
	needs    string
}

// When starts a contextual binding chain for the class registered as id.
func (m *Manifest) When(concrete string) *ContextualBuilder {
	return &ContextualBuilder{manifest: m, concrete: concrete}
}

// Needs names the dependency type (or parameter name) being overridden.
func (b *ContextualBuilder) Needs(abstract string) *ContextualBuilder {
	b.needs = abstract
	return b
}

// Give pins every matching constructor parameter to serviceID.
func (b *ContextualBuilder) Give(serviceID string) error {
	return b.each(func(p *Param) error { return WithServiceID(serviceID)(p) })
}

// GiveValue pins every matching parameter to a literal default and turns
// autowiring off for it.
//
//	m.When(di.TypeKey[*Uploader]()).Needs("storagePath").GiveValue("/tmp/photos")
func (b *ContextualBuilder) GiveValue(value any) error {
	return b.each(func(p *Param) error {
		p.Autowire = nil
		p.Type = ""
		return Default(value)(p)
	})
}

func (b *ContextualBuilder) each(fn func(*Param) error) error {
	c, ok := b.manifest.Class(b.concrete)
	if !ok {
		return &ServiceNotFoundError{ID: b.concrete, Reason: "contextual binding target is not registered"}
	}
	matched := 0
	for i := range c.Params {
		p := &c.Params[i]
		if p.Type != b.needs && p.Name != b.needs {
			continue
		}
		if err := fn(p); err != nil {
			return err
		}
		matched++
	}
	if matched == 0 {
		return fmt.Errorf("di: %s has no constructor parameter matching %s", b.concrete, b.needs)
	}
	return nil
}
