// Package container provides the runtime side of the Swift IoC container
// and the Service Provider system.
//
// # Overview
//
// The container does not take bindings. Every service comes from a graph
// compiled by package di: classes are described in a manifest, compiled
// (or loaded from the cache) into a frozen graph, and the container builds
// instances from that graph lazily.
//
// It mirrors the resolving half of Laravel's Illuminate\Container\Container:
// make, tagged, instance, extend, afterResolving and resolved.
//
// # Container Lifecycle
//
//  1. Describe: registry.Register(manifest)   (providers add classes)
//  2. Compile:  graph, err := compiler.Compile(manifest, decl, marker)
//  3. Create:   c, err := container.New(graph, manifest, logger)
//  4. Boot:     registry.Boot(c)              (safe to resolve everything)
//  5. Serve requests
//
// # Resolving
//
//	// Laravel: $app->make(Cache::class)
//	raw, err := c.Resolve("cache")
//
//	// Generic (preferred, no type assertion required)
//	cache, err := container.Resolve[*RedisCache](c, "cache")
//
// # Synthetic services
//
// Values built outside the container (config, logger) are described with
// di.Synthetic and handed over after creation:
//
//	// Laravel: $app->instance('config', $config)
//	c.Instance("config", cfg)
//
// # Tags
//
//	// Laravel: $app->tagged('reports')
//	reports, err := c.Tagged("reports")  // []any, discovery order
//
// # Extend / Decorate
//
//	// Laravel: $app->extend(Logger::class, fn($logger, $app) => new TimestampLogger($logger))
//	c.Extend("logger", func(instance any, _ container.Resolver) (any, error) {
//	    return &TimestampLogger{Inner: instance.(*Logger)}, nil
//	})
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(m *di.Manifest) error {
//	    return m.Register(di.Provide(mail.NewSMTP, di.Alias("mailer")))
//	}
//
//	func (p *AppServiceProvider) Boot(c *container.Container) error {
//	    // safe to resolve services here
//	    return nil
//	}
//
//	registry := container.NewProviderRegistry(&AppServiceProvider{})
//	registry.Register(manifest)
//	// ... compile, container.New ...
//	registry.Boot(c)
package container
