// Package di is the dependency-injection compiler behind the Swift
// container.
//
// Classes are described once, at registration time, and compiled into a
// frozen definition graph:
//
//	Manifest ─► Reader ─► Builder ─► Resolver ─► Pipeline ─► Graph.Freeze
//	                                                              │
//	                                             cache.Store.Dump ◄┘
//
// # Describing classes
//
// There are no attributes in Go, so the markers a PHP class carries are
// attached to a Class descriptor with options:
//
//	m, err := di.NewManifest(
//	    di.Interface[Notifier](),
//	    di.Provide(NewMailNotifier, di.Tag("notifier")),
//	    di.Provide(NewSlackNotifier, di.Tag("notifier")),
//	    di.Provide(NewUserService,
//	        di.Inject(0, di.Named("notifiers"), di.WithTag("notifier")),
//	        di.Setter("SetClock", (*UserService).SetClock, di.Optional()),
//	    ),
//	)
//
// # Autowiring
//
// Constructor parameters are resolved by id, then by type. A parameter whose
// type is implemented by more than one service fails with
// AmbiguousServiceError unless it names a service explicitly
// (di.WithServiceID) or the declaration file wires it.
//
// # Compiling
//
//	passes := di.DefaultPasses(nil, nil)
//	marker, _ := di.Fingerprint(m, decl, cfg.App.Debug, passes...)
//	g, err := di.NewCompiler(logger, passes...).Compile(m, decl, marker)
//
// The returned graph is read-only and can be shared between goroutines.
package di
