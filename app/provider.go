package app

import (
	"net/http"

	"github.com/km-arc/go-swift/framework/container"
	"github.com/km-arc/go-swift/framework/di"
)

// AppServiceProvider describes the demo application's classes. Their
// wiring is compiled; config/services.yaml only supplies parameters.
type AppServiceProvider struct {
	container.BaseProvider
}

func (p *AppServiceProvider) Register(m *di.Manifest) error {
	return m.Register(
		di.Provide(NewMailer,
			di.ID("mailer"),
			di.Inject(0, di.Named("from"), di.Default("noreply@localhost")),
		),
		di.Provide(NewAuditNotifier, di.ID("notifier.audit"), di.Tag(TagNotifier)),
		di.Provide(NewAdminNotifier,
			di.ID("notifier.admin"),
			di.Tag(TagNotifier),
			di.Inject(1, di.Named("admin"), di.Default("admin@localhost")),
		),
		di.Provide(NewUserService,
			di.Alias("users"),
			di.Inject(0, di.Named("notifiers"), di.WithTag(TagNotifier)),
		),
		di.Provide(NewWelcomeListener,
			di.ListenTo(EventUserRegistered, "OnRegistered", 10, (*WelcomeListener).OnRegistered),
		),
		di.Provide(NewPoweredBy),
		di.Provide(NewUserController,
			di.Route(http.MethodPost, "/users", "users.store", "Store", (*UserController).Store),
			di.Route(http.MethodGet, "/users/{email}", "users.show", "Show", (*UserController).Show),
		),
	)
}
