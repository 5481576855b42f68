// Package app is a small demo application wired entirely through the
// compiled container: a mailer configured from config/services.yaml, tagged
// notifiers, an event listener, a middleware and a controller.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/events"
)

// EventUserRegistered is dispatched after a user signs up.
const EventUserRegistered = "user.registered"

// TagNotifier collects every Notifier.
const TagNotifier = "app.notifier"

// UserRegistered is the payload of EventUserRegistered.
type UserRegistered struct {
	events.Event
	Email string
}

// ── Mailer ───────────────────────────────────────────────────────────────────

// Mailer records outgoing mail. Swap it for an SMTP client in a real app.
type Mailer struct {
	From string

	mu   sync.Mutex
	sent []string
}

func NewMailer(from string) *Mailer {
	return &Mailer{From: from}
}

// Send records a message to to.
func (m *Mailer) Send(to, subject string) error {
	if to == "" {
		return fmt.Errorf("mailer: empty recipient")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, fmt.Sprintf("%s -> %s: %s", m.From, to, subject))
	return nil
}

// Sent returns the recorded messages.
func (m *Mailer) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// ── Notifiers ────────────────────────────────────────────────────────────────

// Notifier tells someone about a new user.
type Notifier interface {
	Notify(ctx context.Context, email string) error
}

// AuditNotifier writes a log line per signup.
type AuditNotifier struct {
	logger *zap.Logger
}

func NewAuditNotifier(logger *zap.Logger) *AuditNotifier {
	return &AuditNotifier{logger: logger}
}

func (n *AuditNotifier) Notify(_ context.Context, email string) error {
	n.logger.Info("user registered", zap.String("email", email))
	return nil
}

// AdminNotifier mails the site admin.
type AdminNotifier struct {
	mailer *Mailer
	admin  string
}

func NewAdminNotifier(mailer *Mailer, admin string) *AdminNotifier {
	return &AdminNotifier{mailer: mailer, admin: admin}
}

func (n *AdminNotifier) Notify(_ context.Context, email string) error {
	return n.mailer.Send(n.admin, "New user: "+email)
}

// ── UserService ──────────────────────────────────────────────────────────────

// UserService registers users.
type UserService struct {
	notifiers  []Notifier
	dispatcher *events.Dispatcher

	mu    sync.Mutex
	users map[string]bool
}

func NewUserService(notifiers []Notifier, dispatcher *events.Dispatcher) *UserService {
	return &UserService{notifiers: notifiers, dispatcher: dispatcher, users: make(map[string]bool)}
}

// ErrUserExists is returned when the email is already registered.
var ErrUserExists = errors.New("user already exists")

// Register stores email, runs the notifiers in tag order and dispatches
// EventUserRegistered.
func (s *UserService) Register(ctx context.Context, email string) error {
	s.mu.Lock()
	if s.users[email] {
		s.mu.Unlock()
		return ErrUserExists
	}
	s.users[email] = true
	s.mu.Unlock()

	for _, n := range s.notifiers {
		if err := n.Notify(ctx, email); err != nil {
			return err
		}
	}
	return s.dispatcher.Dispatch(ctx, EventUserRegistered, &UserRegistered{Email: email})
}

// Exists reports whether email is registered.
func (s *UserService) Exists(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[email]
}

// ── Listener ─────────────────────────────────────────────────────────────────

// WelcomeListener mails every new user.
type WelcomeListener struct {
	mailer *Mailer
}

func NewWelcomeListener(mailer *Mailer) *WelcomeListener {
	return &WelcomeListener{mailer: mailer}
}

func (l *WelcomeListener) OnRegistered(e *UserRegistered) error {
	return l.mailer.Send(e.Email, "Welcome!")
}

// ── Middleware ───────────────────────────────────────────────────────────────

// PoweredBy stamps every response. It is picked up by autoconfiguration.
type PoweredBy struct {
	Value string
}

func NewPoweredBy() *PoweredBy { return &PoweredBy{Value: "Swift"} }

func (m *PoweredBy) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Powered-By", m.Value)
		next.ServeHTTP(w, r)
	})
}
