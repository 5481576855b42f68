package container

import (
	"fmt"

	"github.com/km-arc/go-swift/framework/di"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider mirrors Laravel's Illuminate\Support\ServiceProvider, split
// around compilation.
//
// Register runs before the container is compiled and may only describe
// classes. Boot runs once the compiled container exists, making it safe to
// resolve services.
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(m *di.Manifest) error {
//	    return m.Register(di.Provide(NewMailer, di.Alias("mailer")))
//	}
//
//	func (p *AppServiceProvider) Boot(c *container.Container) error {
//	    mailer, err := container.Resolve[*Mailer](c, "mailer")
//	    ...
//	}
type ServiceProvider interface {
	// Register describes classes in the manifest.
	// Do NOT resolve anything here; the container does not exist yet.
	Register(m *di.Manifest) error

	// Boot is called after the container is built.
	Boot(c *Container) error
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with a no-op Boot.
//
//	type MyProvider struct{ container.BaseProvider }
//	func (p *MyProvider) Register(m *di.Manifest) error { ... }
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry holds providers in registration order.
//
// It mirrors the behaviour of Laravel's Application::registerConfiguredProviders
// and Application::bootProviders.
type ProviderRegistry struct {
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry(providers ...ServiceProvider) *ProviderRegistry {
	r := &ProviderRegistry{registered: make(map[ServiceProvider]bool)}
	for _, p := range providers {
		r.Add(p)
	}
	return r
}

// Add queues a provider. Adding the same provider twice is a no-op.
//
//	// Laravel: $app->register(new AppServiceProvider($app))
func (r *ProviderRegistry) Add(provider ServiceProvider) {
	if provider == nil || r.registered[provider] {
		return
	}
	r.registered[provider] = true
	r.providers = append(r.providers, provider)
}

// Register calls Register on every provider, in order.
func (r *ProviderRegistry) Register(m *di.Manifest) error {
	for _, p := range r.providers {
		if err := p.Register(m); err != nil {
			return fmt.Errorf("provider %T: register: %w", p, err)
		}
	}
	return nil
}

// Boot calls Boot on every provider, once.
//
//	// Laravel: $app->boot()
func (r *ProviderRegistry) Boot(c *Container) error {
	if r.booted {
		return nil
	}
	if err := r.boot(c); err != nil {
		return err
	}
	r.booted = true
	return nil
}

// Reboot boots every provider against c, a container compiled to replace
// the one passed to Boot.
func (r *ProviderRegistry) Reboot(c *Container) error {
	if !r.booted {
		return fmt.Errorf("provider registry: reboot before boot")
	}
	return r.boot(c)
}

func (r *ProviderRegistry) boot(c *Container) error {
	for _, p := range r.providers {
		if err := p.Boot(c); err != nil {
			return fmt.Errorf("provider %T: boot: %w", p, err)
		}
	}
	return nil
}

// Booted returns true if Boot has completed.
func (r *ProviderRegistry) Booted() bool { return r.booted }

// Providers returns the registered providers.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	out := make([]ServiceProvider, len(r.providers))
	copy(out, r.providers)
	return out
}
