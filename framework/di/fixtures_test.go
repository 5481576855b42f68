package di_test

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/di"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Transport interface{ Send(msg string) error }

type SMTPTransport struct{}
type SESTransport struct{}

func NewSMTPTransport() *SMTPTransport            { return &SMTPTransport{} }
func NewSESTransport() *SESTransport              { return &SESTransport{} }
func (*SMTPTransport) Send(string) error          { return nil }
func (*SESTransport) Send(string) error           { return nil }
func (*SESTransport) Region() string              { return "eu-west-1" }
func NewMailer(t Transport, from string) *Mailer  { return &Mailer{Transport: t, From: from} }
func NewNewsletter(m *Mailer) *Newsletter         { return &Newsletter{Mailer: m} }
func NewBus(handlers []Handler) *Bus              { return &Bus{Handlers: handlers} }
func NewUntyped(v any) *Untyped                   { return &Untyped{V: v} }
func NewCycleA(b *CycleB) *CycleA                 { return &CycleA{} }
func NewCycleB(a *CycleA) *CycleB                 { return &CycleB{} }
func NewReportService() *ReportService            { return &ReportService{} }
func (s *ReportService) SetTransport(t Transport) { s.Transport = t }

type Mailer struct {
	Transport Transport
	From      string
}

type Newsletter struct{ Mailer *Mailer }

type Handler interface{ Handle() string }

type handlerA struct{}
type handlerB struct{}
type handlerC struct{}

func newHandlerA() *handlerA     { return &handlerA{} }
func newHandlerB() *handlerB     { return &handlerB{} }
func newHandlerC() *handlerC     { return &handlerC{} }
func (*handlerA) Handle() string { return "a" }
func (*handlerB) Handle() string { return "b" }
func (*handlerC) Handle() string { return "c" }

type Bus struct{ Handlers []Handler }

type Untyped struct{ V any }

type CycleA struct{}
type CycleB struct{}

type ReportService struct{ Transport Transport }

type ReportController struct{}

func NewReportController() *ReportController { return &ReportController{} }

func (*ReportController) Index() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
}

type ReportGenerated struct{ ID string }

type reportListener struct{}

func newReportListener() *reportListener                       { return &reportListener{} }
func (*reportListener) OnGenerated(*ReportGenerated) error     { return nil }
func (*reportListener) OnGeneratedLate(*ReportGenerated) error { return nil }

func mailerClass(opts ...di.Option) *di.Class {
	base := []di.Option{
		di.ID("mailer"),
		di.Inject(0, di.Named("transport")),
		di.Inject(1, di.Named("from"), di.Default("noreply@swift.test")),
	}
	return di.Provide(NewMailer, append(base, opts...)...)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func manifest(t *testing.T, classes ...*di.Class) *di.Manifest {
	t.Helper()
	m, err := di.NewManifest(classes...)
	require.NoError(t, err)
	return m
}

func build(t *testing.T, decl *di.Declarations, classes ...*di.Class) *di.Graph {
	t.Helper()
	g, err := di.NewBuilder(zap.NewNop()).Build(manifest(t, classes...), decl)
	require.NoError(t, err)
	return g
}

func compileWith(decl *di.Declarations, classes ...*di.Class) (*di.Graph, error) {
	m, err := di.NewManifest(classes...)
	if err != nil {
		return nil, err
	}
	return di.NewCompiler(zap.NewNop(), di.DefaultPasses(nil, nil)...).Compile(m, decl, "test-marker")
}

func mustCompile(t *testing.T, decl *di.Declarations, classes ...*di.Class) *di.Graph {
	t.Helper()
	g, err := compileWith(decl, classes...)
	require.NoError(t, err)
	return g
}

func loadYAML(t *testing.T, body string) *di.Declarations {
	t.Helper()
	return loadFile(t, "services.yaml", body)
}

func loadFile(t *testing.T, name, body string) *di.Declarations {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	decl, err := di.LoadDeclarations(path)
	require.NoError(t, err)
	return decl
}

func definition(t *testing.T, g *di.Graph, id string) di.Definition {
	t.Helper()
	def, ok := g.Definition(id)
	require.True(t, ok, "definition %q", id)
	return def
}
