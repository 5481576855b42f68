package di_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/di"
)

func boolPtr(b bool) *bool { return &b }

// ── Discovery ─────────────────────────────────────────────────────────────────

func TestBuilder_OneDefinitionPerConcreteClassInDiscoveryOrder(t *testing.T) {
	t.Parallel()
	g := build(t, nil,
		di.Interface[Transport](),
		di.Provide(NewSESTransport),
		di.Abstract[Mailer](di.ID("mailer.base")),
		di.Provide(NewSMTPTransport),
	)

	assert.Equal(t, []string{di.TypeKey[*SESTransport](), di.TypeKey[*SMTPTransport]()}, g.IDs())
	assert.False(t, g.Has(di.TypeKey[Transport]()))
	assert.False(t, g.Has("mailer.base"))
}

func TestBuilder_ArgumentsStartUnresolved(t *testing.T) {
	t.Parallel()
	g := build(t, nil, di.Provide(NewSMTPTransport), mailerClass())

	def := definition(t, g, "mailer")
	require.Len(t, def.Arguments, 2)
	for _, a := range def.Arguments {
		assert.Equal(t, di.Unresolved, a.Kind)
	}
}

func TestBuilder_ExcludedClassesStayFlagged(t *testing.T) {
	t.Parallel()
	g := build(t, nil, di.Provide(NewSESTransport, di.Exclude()))

	def := definition(t, g, di.TypeKey[*SESTransport]())
	assert.True(t, def.Exclude)
}

// ── Flag precedence ───────────────────────────────────────────────────────────

func TestBuilder_SharedPrecedence(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		marker   []di.Option
		defaults *bool
		declared *bool
		want     bool
	}{
		{"nothing set", nil, nil, nil, true},
		{"defaults only", nil, boolPtr(false), nil, false},
		{"marker beats defaults", []di.Option{di.Shared()}, boolPtr(false), nil, true},
		{"declaration beats marker", []di.Option{di.Transient()}, nil, boolPtr(true), true},
		{"declaration beats everything", []di.Option{di.Shared()}, boolPtr(true), boolPtr(false), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decl := &di.Declarations{Defaults: di.Defaults{Shared: tt.defaults}}
			opts := append([]di.Option{di.ID("smtp")}, tt.marker...)
			if tt.declared != nil {
				decl.Services = []di.Service{{ID: "smtp", Shared: tt.declared}}
			}
			g := build(t, decl, di.Provide(NewSMTPTransport, opts...))
			assert.Equal(t, tt.want, definition(t, g, "smtp").Shared)
		})
	}
}

func TestBuilder_AutowireCanBeDisabledByMarker(t *testing.T) {
	t.Parallel()
	decl := &di.Declarations{Defaults: di.Defaults{Autowire: boolPtr(true)}}
	g := build(t, decl, di.Provide(NewSMTPTransport, di.ID("smtp"), di.NoAutowire()))

	assert.False(t, definition(t, g, "smtp").Autowire)
}

// ── Declarations ──────────────────────────────────────────────────────────────

func TestBuilder_DeclarationCreatesServiceFromClass(t *testing.T) {
	t.Parallel()
	decl := &di.Declarations{Services: []di.Service{{
		ID:        "mailer.marketing",
		Class:     "mailer",
		Arguments: map[string]any{"from": "news@swift.test"},
		Alias:     []string{"marketing"},
	}}}
	g := build(t, decl, di.Provide(NewSMTPTransport), mailerClass(di.Alias("mail")))

	def := definition(t, g, "mailer.marketing")
	assert.Equal(t, "mailer", def.Class)
	assert.Equal(t, di.Literal, def.Arguments[1].Kind)
	assert.JSONEq(t, `"news@swift.test"`, string(def.Arguments[1].Value))
	assert.Equal(t, di.Unresolved, def.Arguments[0].Kind)

	id, ok := g.Canonical("marketing")
	require.True(t, ok)
	assert.Equal(t, "mailer.marketing", id)
	id, _ = g.Canonical("mail")
	assert.Equal(t, "mailer", id, "class aliases stay on the discovered service")
}

func TestBuilder_DeclarationArgumentForms(t *testing.T) {
	t.Parallel()
	decl := &di.Declarations{
		Parameters: map[string]any{"sender": "ops", "domain": "swift.test"},
		Services: []di.Service{
			{ID: "mailer", Arguments: map[string]any{"$transport": "@smtp", "1": "%sender%@%domain%"}},
			{ID: "mailer.escaped", Class: "mailer", Arguments: map[string]any{"from": "@@team", "transport": "@smtp"}},
		},
	}
	g := build(t, decl, di.Provide(NewSMTPTransport, di.ID("smtp")), mailerClass())

	def := definition(t, g, "mailer")
	assert.Equal(t, di.RefArg("smtp"), def.Arguments[0])
	assert.JSONEq(t, `"ops@swift.test"`, string(def.Arguments[1].Value))

	escaped := definition(t, g, "mailer.escaped")
	assert.JSONEq(t, `"@team"`, string(escaped.Arguments[1].Value))
}

func TestBuilder_DeclarationErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		svc  di.Service
		want string
	}{
		{"unknown class", di.Service{ID: "ghost"}, `class "ghost" is not registered`},
		{"class mismatch", di.Service{ID: "mailer", Class: "smtp"}, "conflicts with discovered class"},
		{"unknown argument", di.Service{ID: "mailer", Arguments: map[string]any{"subject": "hi"}}, `no constructor parameter "subject"`},
		{"undefined parameter", di.Service{ID: "mailer", Arguments: map[string]any{"from": "%missing%"}}, `parameter "missing" is not defined`},
		{"exclude with tags", di.Service{ID: "smtp", Exclude: true, Tags: []string{"transport"}}, "exclude vs tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := manifest(t, di.Provide(NewSMTPTransport, di.ID("smtp")), mailerClass())
			_, err := di.NewBuilder(zap.NewNop()).Build(m, &di.Declarations{Services: []di.Service{tt.svc}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuilder_ShortAliasFormAppliedLast(t *testing.T) {
	t.Parallel()
	decl := &di.Declarations{Services: []di.Service{
		{ID: "transport", AliasOf: "smtp.secondary"},
		{ID: "smtp.secondary", Class: "smtp"},
	}}
	g := build(t, decl, di.Provide(NewSMTPTransport, di.ID("smtp")))

	id, ok := g.Canonical("transport")
	require.True(t, ok)
	assert.Equal(t, "smtp.secondary", id)
}

// Tags declared by the class and by the declaration file form one set.
func TestBuilder_TagsMergeAsSet(t *testing.T) {
	t.Parallel()
	decl := &di.Declarations{Services: []di.Service{
		{ID: "handler.a", Tags: []string{"handler", "audited"}},
	}}
	g := build(t, decl,
		di.Provide(newHandlerA, di.ID("handler.a"), di.Tag("handler")),
		di.Provide(newHandlerB, di.ID("handler.b"), di.Tag("handler")),
	)

	assert.Equal(t, []string{"handler", "audited"}, definition(t, g, "handler.a").Tags)
	assert.Equal(t, []string{"handler.a", "handler.b"}, g.ByTag("handler"))
	assert.Equal(t, []string{"handler.a"}, g.ByTag("audited"))
}
