package di_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-swift/framework/di"
)

func literal(t *testing.T, v any) di.Argument {
	t.Helper()
	a, err := di.LiteralArg(v)
	require.NoError(t, err)
	return a
}

func TestGraph_AliasesCollapseToPrimary(t *testing.T) {
	t.Parallel()
	g := di.NewGraph()
	require.NoError(t, g.Add(&di.Definition{ID: "smtp"}))
	require.NoError(t, g.SetAlias("transport", "smtp"))
	require.NoError(t, g.SetAlias("mail.transport", "transport"))
	require.NoError(t, g.SetAlias("transport", "smtp"), "re-aliasing to the same target is a no-op")

	id, ok := g.Canonical("mail.transport")
	require.True(t, ok)
	assert.Equal(t, "smtp", id)
	assert.Equal(t, map[string]string{"transport": "smtp", "mail.transport": "smtp"}, g.Aliases())
	assert.Equal(t, []string{"transport", "mail.transport"}, definition(t, g, "smtp").Aliases)
}

func TestGraph_AliasErrors(t *testing.T) {
	t.Parallel()
	g := di.NewGraph()
	require.NoError(t, g.Add(&di.Definition{ID: "smtp"}))
	require.NoError(t, g.Add(&di.Definition{ID: "ses"}))
	require.NoError(t, g.SetAlias("transport", "smtp"))

	var dup *di.DuplicateServiceError
	assert.ErrorAs(t, g.SetAlias("transport", "ses"), &dup)
	assert.ErrorAs(t, g.SetAlias("ses", "smtp"), &dup, "an alias cannot shadow a definition")
	assert.ErrorAs(t, g.Add(&di.Definition{ID: "transport"}), &dup)

	var notFound *di.ServiceNotFoundError
	assert.ErrorAs(t, g.SetAlias("mail", "ghost"), &notFound)
	assert.Error(t, g.SetAlias("smtp", "smtp"))
}

func TestGraph_RemoveDropsAliases(t *testing.T) {
	t.Parallel()
	g := di.NewGraph()
	require.NoError(t, g.Add(&di.Definition{ID: "smtp", Aliases: []string{"transport"}}))
	require.True(t, g.Has("transport"))

	require.NoError(t, g.Remove("smtp"))
	assert.False(t, g.Has("smtp"))
	assert.False(t, g.Has("transport"))

	var notFound *di.ServiceNotFoundError
	assert.ErrorAs(t, g.Remove("smtp"), &notFound)
}

func TestGraph_TagQueriesKeepDiscoveryOrder(t *testing.T) {
	t.Parallel()
	g := di.NewGraph()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, g.Add(&di.Definition{ID: id}))
	}
	require.NoError(t, g.Tag("b", "handler"))
	require.NoError(t, g.Tag("c", "handler"))
	require.NoError(t, g.Tag("c", "handler"))
	require.NoError(t, g.Tag("a", "audit"))

	assert.Equal(t, []string{"c", "b"}, g.ByTag("handler"))
	assert.Equal(t, []string{"handler", "audit"}, g.Tags())
	assert.Nil(t, g.ByTag("missing"))
	assert.Equal(t, []string{"c", "a", "b"}, g.IDs())
}

func TestGraph_DefinitionReturnsCopy(t *testing.T) {
	t.Parallel()
	g := di.NewGraph()
	require.NoError(t, g.Add(&di.Definition{ID: "smtp", Tags: []string{"transport"}}))

	def := definition(t, g, "smtp")
	def.Tags[0] = "mutated"

	assert.Equal(t, []string{"transport"}, definition(t, g, "smtp").Tags)
}

func TestGraph_FreezeRejectsUnresolvedArguments(t *testing.T) {
	t.Parallel()
	g := di.NewGraph()
	require.NoError(t, g.Add(&di.Definition{ID: "mailer", Arguments: make([]di.Argument, 1)}))

	assert.ErrorContains(t, g.Freeze("m", "b"), `service "mailer" argument 0 is unresolved`)
	assert.False(t, g.Frozen())
}

func TestGraph_FrozenIsReadOnly(t *testing.T) {
	t.Parallel()
	g := di.NewGraph()
	require.NoError(t, g.Add(&di.Definition{ID: "mailer", Arguments: []di.Argument{literal(t, "x")}}))
	require.NoError(t, g.Freeze("marker", "build"))

	mutations := map[string]func() error{
		"Add":          func() error { return g.Add(&di.Definition{ID: "other"}) },
		"Remove":       func() error { return g.Remove("mailer") },
		"SetAlias":     func() error { return g.SetAlias("mail", "mailer") },
		"Tag":          func() error { return g.Tag("mailer", "t") },
		"Mutate":       func() error { return g.Mutate("mailer", func(*di.Definition) error { return nil }) },
		"SetListeners": func() error { return g.SetListeners(nil) },
		"SetRoutes":    func() error { return g.SetRoutes(nil) },
		"Freeze":       func() error { return g.Freeze("again", "again") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, mutate(), di.ErrFrozen)
		})
	}
	assert.Equal(t, "marker", g.Marker())
	assert.Equal(t, []string{"mailer"}, g.IDs())
}

func TestGraph_CloneIsIndependent(t *testing.T) {
	t.Parallel()
	g := di.NewGraph()
	require.NoError(t, g.Add(&di.Definition{ID: "smtp"}))

	c := g.Clone()
	require.NoError(t, c.Tag("smtp", "transport"))
	require.NoError(t, c.Add(&di.Definition{ID: "ses"}))

	assert.Empty(t, definition(t, g, "smtp").Tags)
	assert.False(t, g.Has("ses"))
}

func TestDefinition_References(t *testing.T) {
	t.Parallel()
	def := di.Definition{
		Arguments:  []di.Argument{di.RefArg("smtp"), di.TaggedArg("handler"), literal(t, 1)},
		Calls:      []di.Call{{Method: "SetLogger", Argument: di.RefArg("logger")}},
		Properties: []di.Call{{Method: "Clock", Argument: di.RefArg("clock")}},
	}

	refs, tags := def.References()
	assert.Equal(t, []string{"smtp", "logger", "clock"}, refs)
	assert.Equal(t, []string{"handler"}, tags)
}
