package di_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/di"
)

// resolved builds and autowires a mutable graph.
func resolved(t *testing.T, classes ...*di.Class) *di.Graph {
	t.Helper()
	g := build(t, nil, classes...)
	require.NoError(t, di.NewResolver(zap.NewNop()).Resolve(g))
	return g
}

// ── Pipeline ──────────────────────────────────────────────────────────────────

func TestPipeline_RunsByDescendingPriorityKeepingTies(t *testing.T) {
	t.Parallel()
	var ran []string
	record := func(name string, prio int) di.CompilerPass {
		return di.NewPass(name, prio, func(*di.Graph) error {
			ran = append(ran, name)
			return nil
		})
	}
	p := di.NewPipeline(record("low", -5), record("tie.first", 10), record("high", 50), record("tie.second", 10))

	_, err := p.Run(di.NewGraph())
	require.NoError(t, err)
	assert.Equal(t, []string{"high", "tie.first", "tie.second", "low"}, ran)
}

func TestPipeline_WrapsFailuresAndLeavesInputUntouched(t *testing.T) {
	t.Parallel()
	g := resolved(t, di.Provide(NewSMTPTransport, di.ID("smtp")))
	boom := errors.New("boom")

	p := di.NewPipeline(
		di.NewPass("tag.smtp", 10, func(g *di.Graph) error { return g.Tag("smtp", "transport") }),
		di.NewPass("explode", 0, func(*di.Graph) error { return boom }),
	)
	out, err := p.Run(g)

	assert.Nil(t, out)
	var passErr *di.CompilerPassError
	require.ErrorAs(t, err, &passErr)
	assert.Equal(t, "explode", passErr.Pass)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, definition(t, g, "smtp").Tags)
}

func TestCompiler_PassErrorSurfacesFromCompile(t *testing.T) {
	t.Parallel()
	m := manifest(t, di.Provide(NewSMTPTransport))
	c := di.NewCompiler(zap.NewNop(), di.NewPass("explode", 0, func(*di.Graph) error {
		return errors.New("boom")
	}))

	g, err := c.Compile(m, nil, "marker")
	assert.Nil(t, g)
	assert.EqualError(t, err, `di: compiler pass "explode" failed: boom`)
	assert.Equal(t, di.Failed, c.State())
}

// ── Autoconfigure ─────────────────────────────────────────────────────────────

func TestAutoconfigurePass_TagsImplementationsIdempotently(t *testing.T) {
	t.Parallel()
	g := resolved(t,
		di.Provide(newHandlerA),
		di.Provide(NewSMTPTransport),
		di.Provide(newHandlerB, di.Exclude()),
	)
	pass := di.NewAutoconfigurePass(di.Autoconfigure[Handler]("handler"))

	require.NoError(t, pass.Process(g))
	require.NoError(t, pass.Process(g))

	a := definition(t, g, di.TypeKey[handlerA]())
	assert.Equal(t, []string{"handler"}, a.Tags)
	assert.Equal(t, []string{di.TypeKey[Handler]()}, a.Implements)
	assert.Empty(t, definition(t, g, di.TypeKey[SMTPTransport]()).Tags)
	assert.Empty(t, definition(t, g, di.TypeKey[handlerB]()).Tags, "excluded classes are skipped")
}

func TestAutoconfigure_FeedsTaggedCollections(t *testing.T) {
	t.Parallel()
	m := manifest(t,
		di.Provide(newHandlerA),
		di.Provide(newHandlerB),
		di.Provide(NewBus, di.Inject(0, di.WithTag("handler"))),
	)
	passes := di.DefaultPasses([]di.AutoconfigureRule{di.Autoconfigure[Handler]("handler")}, nil)

	g, err := di.NewCompiler(zap.NewNop(), passes...).Compile(m, nil, "marker")
	require.NoError(t, err)
	assert.Equal(t, []string{di.TypeKey[handlerA](), di.TypeKey[handlerB]()}, g.ByTag("handler"))
	assert.Equal(t, di.TaggedArg("handler"), definition(t, g, di.TypeKey[Bus]()).Arguments[0])
}

// ── Listeners ─────────────────────────────────────────────────────────────────

func TestEventListenerPass_OrdersByEventPriorityThenDiscovery(t *testing.T) {
	t.Parallel()
	g := mustCompile(t, nil,
		di.Provide(newReportListener, di.ID("listener.one"),
			di.ListenTo("report.generated", "OnGenerated", 0, (*reportListener).OnGenerated),
			di.ListenTo("report.generated", "OnGeneratedLate", -10, (*reportListener).OnGeneratedLate),
		),
		di.Provide(newReportListener, di.ID("listener.two"),
			di.ListenTo("report.generated", "OnGenerated", 0, (*reportListener).OnGenerated),
			di.ListenTo("audit.logged", "OnGenerated", 100, (*reportListener).OnGenerated),
		),
		di.Provide(newReportListener, di.ID("listener.three"),
			di.ListenTo("report.generated", "OnGenerated", 20, (*reportListener).OnGenerated),
		),
	)

	assert.Equal(t, []di.ListenerBinding{
		{Event: "audit.logged", ServiceID: "listener.two", Method: "OnGenerated", Priority: 100},
		{Event: "report.generated", ServiceID: "listener.three", Method: "OnGenerated", Priority: 20},
		{Event: "report.generated", ServiceID: "listener.one", Method: "OnGenerated", Priority: 0},
		{Event: "report.generated", ServiceID: "listener.two", Method: "OnGenerated", Priority: 0},
		{Event: "report.generated", ServiceID: "listener.one", Method: "OnGeneratedLate", Priority: -10},
	}, g.Listeners())
}

// ── Routes ────────────────────────────────────────────────────────────────────

func TestRouteCollectorPass(t *testing.T) {
	t.Parallel()
	controller := func(id, method, path, name string) *di.Class {
		return di.Provide(NewReportController, di.ID(id),
			di.Route(method, path, name, "Index", (*ReportController).Index))
	}

	t.Run("collects in discovery order", func(t *testing.T) {
		g := mustCompile(t, nil,
			controller("reports", "get", "/reports", "reports.index"),
			controller("exports", http.MethodPost, "/exports", ""),
		)
		assert.Equal(t, []di.RouteBinding{
			{Method: "GET", Path: "/reports", Name: "reports.index", ServiceID: "reports", Action: "Index"},
			{Method: "POST", Path: "/exports", ServiceID: "exports", Action: "Index"},
		}, g.Routes())
	})

	t.Run("duplicate path", func(t *testing.T) {
		_, err := compileWith(nil,
			controller("reports", "GET", "/reports", "reports.index"),
			controller("legacy", "get", "/reports", "legacy.index"),
		)
		var passErr *di.CompilerPassError
		require.ErrorAs(t, err, &passErr)
		assert.Equal(t, "routes", passErr.Pass)
		assert.Contains(t, err.Error(), "GET /reports is declared by both reports and legacy")
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := compileWith(nil,
			controller("reports", "GET", "/reports", "reports.index"),
			controller("legacy", "GET", "/legacy", "reports.index"),
		)
		assert.ErrorContains(t, err, `route name "reports.index" is used by both reports and legacy`)
	})
}

// ── Cycles ────────────────────────────────────────────────────────────────────

func TestCheckCircularReferencesPass(t *testing.T) {
	t.Parallel()
	_, err := compileWith(nil, di.Provide(NewCycleA), di.Provide(NewCycleB))

	var cycle *di.CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	a, b := di.TypeKey[CycleA](), di.TypeKey[CycleB]()
	assert.Equal(t, []string{a, b, a}, cycle.Path)
}

func TestCheckCircularReferencesPass_AcyclicGraph(t *testing.T) {
	t.Parallel()
	g := resolved(t,
		di.Provide(NewSMTPTransport),
		mailerClass(),
		di.Provide(NewNewsletter),
	)

	assert.NoError(t, di.CheckCircularReferencesPass{}.Process(g))
}

// ── Required services ─────────────────────────────────────────────────────────

func TestRequiredServicesPass(t *testing.T) {
	t.Parallel()
	g := resolved(t, di.Provide(NewSMTPTransport, di.ID("smtp"), di.Alias("transport")))

	assert.NoError(t, di.NewRequiredServicesPass("smtp", "transport").Process(g))

	err := di.NewRequiredServicesPass("smtp", "mailer").Process(g)
	var notFound *di.ServiceNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "mailer", notFound.ID)
}

func TestDefaultPasses_Order(t *testing.T) {
	t.Parallel()
	var names []string
	for _, p := range di.NewPipeline(di.DefaultPasses(nil, nil)...).Passes() {
		names = append(names, p.Name())
	}

	assert.Equal(t, []string{
		"autoconfigure",
		"event_listeners",
		"routes",
		"check_circular_references",
		"required_services",
	}, names)
}
