package di_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/di"
)

// ── Type matching ─────────────────────────────────────────────────────────────

func TestResolver_AmbiguousInterfaceNamesEveryCandidate(t *testing.T) {
	t.Parallel()
	_, err := compileWith(nil, di.Provide(NewSMTPTransport), di.Provide(NewSESTransport), mailerClass())

	var ambiguous *di.AmbiguousServiceError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "mailer", ambiguous.Service)
	assert.Equal(t, "transport", ambiguous.Param)
	assert.Equal(t, di.TypeKey[Transport](), ambiguous.Type)
	assert.Equal(t, []string{di.TypeKey[SMTPTransport](), di.TypeKey[SESTransport]()}, ambiguous.Candidates)
	assert.Contains(t, err.Error(), "2 services match")
}

func TestResolver_ExplicitServiceIDBeatsAmbiguity(t *testing.T) {
	t.Parallel()
	g := mustCompile(t, nil,
		di.Provide(NewSMTPTransport),
		di.Provide(NewSESTransport, di.ID("ses")),
		mailerClass(di.Inject(0, di.WithServiceID("ses"))),
	)

	assert.Equal(t, di.RefArg("ses"), definition(t, g, "mailer").Arguments[0])
}

func TestResolver_AliasNamedAfterTypeWins(t *testing.T) {
	t.Parallel()
	g := mustCompile(t, nil,
		di.Provide(NewSMTPTransport),
		di.Provide(NewSESTransport, di.Alias(di.TypeKey[Transport]())),
		mailerClass(),
	)

	arg := definition(t, g, "mailer").Arguments[0]
	assert.Equal(t, di.RefArg(di.TypeKey[Transport]()), arg)
	id, _ := g.Canonical(arg.Ref)
	assert.Equal(t, di.TypeKey[SESTransport](), id)
}

func TestResolver_SingleCandidate(t *testing.T) {
	t.Parallel()
	g := mustCompile(t, nil, di.Provide(NewSMTPTransport), mailerClass())

	def := definition(t, g, "mailer")
	assert.Equal(t, di.RefArg(di.TypeKey[SMTPTransport]()), def.Arguments[0])
	assert.JSONEq(t, `"noreply@swift.test"`, string(def.Arguments[1].Value), "default is used for scalars")
}

func TestResolver_ExcludedClassesAreNeverCandidates(t *testing.T) {
	t.Parallel()
	g := mustCompile(t, nil,
		di.Provide(NewSMTPTransport),
		di.Provide(NewSESTransport, di.Exclude()),
		mailerClass(),
	)

	assert.Equal(t, di.RefArg(di.TypeKey[SMTPTransport]()), definition(t, g, "mailer").Arguments[0])
	assert.False(t, g.Has(di.TypeKey[SESTransport]()))
}

// ── Explicit arguments ────────────────────────────────────────────────────────

func TestResolver_DeclaredArgumentsWin(t *testing.T) {
	t.Parallel()
	decl := &di.Declarations{Services: []di.Service{
		{ID: "mailer", Arguments: map[string]any{"transport": "@ses", "from": "ops@swift.test"}},
	}}
	g := mustCompile(t, decl,
		di.Provide(NewSMTPTransport),
		di.Provide(NewSESTransport, di.ID("ses")),
		mailerClass(),
	)

	def := definition(t, g, "mailer")
	assert.Equal(t, di.RefArg("ses"), def.Arguments[0])
	assert.JSONEq(t, `"ops@swift.test"`, string(def.Arguments[1].Value))
}

func TestResolver_DeclaredReferenceMustExist(t *testing.T) {
	t.Parallel()
	decl := &di.Declarations{Services: []di.Service{
		{ID: "mailer", Arguments: map[string]any{"transport": "@ghost"}},
	}}
	_, err := compileWith(decl, di.Provide(NewSMTPTransport), mailerClass())

	var unresolved *di.UnresolvedDependencyError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "@ghost", unresolved.Target)
}

func TestResolver_MissingServiceID(t *testing.T) {
	t.Parallel()
	_, err := compileWith(nil, mailerClass(di.Inject(0, di.WithServiceID("ghost"))))

	var unresolved *di.UnresolvedDependencyError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "transport", unresolved.Param)
	assert.Equal(t, "@ghost", unresolved.Target)
}

// ── Failures ──────────────────────────────────────────────────────────────────

func TestResolver_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		classes []*di.Class
		check   func(t *testing.T, err error)
	}{
		{
			name:    "untyped parameter without default",
			classes: []*di.Class{di.Provide(NewUntyped)},
			check: func(t *testing.T, err error) {
				var unresolvable *di.UnresolvableParameterError
				require.ErrorAs(t, err, &unresolvable)
				assert.Equal(t, "arg0", unresolvable.Param)
			},
		},
		{
			name:    "no matching service",
			classes: []*di.Class{mailerClass()},
			check: func(t *testing.T, err error) {
				var unresolved *di.UnresolvedDependencyError
				require.ErrorAs(t, err, &unresolved)
				assert.Equal(t, di.TypeKey[Transport](), unresolved.Target)
				assert.Equal(t, "no service matches", unresolved.Reason)
			},
		},
		{
			name:    "autowiring disabled",
			classes: []*di.Class{di.Provide(NewSMTPTransport), mailerClass(di.NoAutowire())},
			check: func(t *testing.T, err error) {
				var unresolved *di.UnresolvedDependencyError
				require.ErrorAs(t, err, &unresolved)
				assert.Contains(t, unresolved.Reason, "autowiring is disabled")
			},
		},
		{
			name:    "collection without tag",
			classes: []*di.Class{di.Provide(newHandlerA), di.Provide(NewBus)},
			check: func(t *testing.T, err error) {
				var unresolved *di.UnresolvedDependencyError
				require.ErrorAs(t, err, &unresolved)
				assert.Equal(t, "[]"+di.TypeKey[Handler](), unresolved.Target)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := compileWith(nil, tt.classes...)
			assert.Nil(t, g)
			tt.check(t, err)
		})
	}
}

// ── Optional and collections ──────────────────────────────────────────────────

func TestResolver_OptionalConstructorArgumentBecomesNull(t *testing.T) {
	t.Parallel()
	g := mustCompile(t, nil, di.Provide(NewNewsletter, di.Inject(0, di.Optional())))

	arg := definition(t, g, di.TypeKey[Newsletter]()).Arguments[0]
	assert.Equal(t, di.Literal, arg.Kind)
	assert.JSONEq(t, `null`, string(arg.Value))
}

func TestResolver_OptionalSetterIsDroppedWhenNothingMatches(t *testing.T) {
	t.Parallel()
	report := func() *di.Class {
		return di.Provide(NewReportService, di.Setter("SetTransport", (*ReportService).SetTransport, di.Optional()))
	}

	g := mustCompile(t, nil, report())
	assert.Empty(t, definition(t, g, di.TypeKey[ReportService]()).Calls)

	g = mustCompile(t, nil, report(), di.Provide(NewSMTPTransport))
	calls := definition(t, g, di.TypeKey[ReportService]()).Calls
	require.Len(t, calls, 1)
	assert.Equal(t, "SetTransport", calls[0].Method)
	assert.Equal(t, di.RefArg(di.TypeKey[SMTPTransport]()), calls[0].Argument)
}

func TestResolver_TaggedCollection(t *testing.T) {
	t.Parallel()
	g := mustCompile(t, nil,
		di.Provide(newHandlerA, di.Tag("handler")),
		di.Provide(NewBus, di.Inject(0, di.Named("handlers"), di.WithTag("handler"))),
	)

	assert.Equal(t, di.TaggedArg("handler"), definition(t, g, di.TypeKey[Bus]()).Arguments[0])
}

// ── Contextual bindings ───────────────────────────────────────────────────────

func TestResolver_ContextualBinding(t *testing.T) {
	t.Parallel()
	m := manifest(t,
		di.Provide(NewSMTPTransport),
		di.Provide(NewSESTransport, di.ID("ses")),
		mailerClass(),
	)
	require.NoError(t, m.When("mailer").Needs(di.TypeKey[Transport]()).Give("ses"))
	require.NoError(t, m.When("mailer").Needs("from").GiveValue("billing@swift.test"))

	g, err := di.NewCompiler(zap.NewNop()).Compile(m, nil, "marker")
	require.NoError(t, err)

	def := definition(t, g, "mailer")
	assert.Equal(t, di.RefArg("ses"), def.Arguments[0])
	assert.JSONEq(t, `"billing@swift.test"`, string(def.Arguments[1].Value))

	err = m.When("mailer").Needs("subject").Give("ses")
	assert.ErrorContains(t, err, "no constructor parameter matching subject")
}

// ── Compilation ───────────────────────────────────────────────────────────────

func TestResolver_IsDeterministic(t *testing.T) {
	t.Parallel()
	classes := func() []*di.Class {
		return []*di.Class{
			di.Provide(NewSMTPTransport),
			mailerClass(),
			di.Provide(NewNewsletter),
			di.Provide(newHandlerA, di.Tag("handler")),
			di.Provide(newHandlerB, di.Tag("handler")),
			di.Provide(NewBus, di.Inject(0, di.WithTag("handler"))),
		}
	}
	first := mustCompile(t, nil, classes()...)
	second := mustCompile(t, nil, classes()...)

	assert.Equal(t, first.Definitions(), second.Definitions())
	assert.NotEqual(t, first.BuildID(), second.BuildID())
}

func TestResolver_RejectsFrozenGraph(t *testing.T) {
	t.Parallel()
	g := mustCompile(t, nil, di.Provide(NewSMTPTransport))

	assert.ErrorIs(t, di.NewResolver(nil).Resolve(g), di.ErrFrozen)
}
