package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/km-arc/go-swift/app"
	"github.com/km-arc/go-swift/framework/config"
	"github.com/km-arc/go-swift/framework/container"
	"github.com/km-arc/go-swift/framework/di/cache"
	"github.com/km-arc/go-swift/framework/foundation"
	"github.com/km-arc/go-swift/framework/metrics"
)

func boot(t *testing.T) (*foundation.Application, http.Handler) {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Name: "Swift", Env: "testing", Debug: true, Port: "0"},
		Container: config.ContainerConfig{
			CacheDir:     filepath.Join(t.TempDir(), "cache"),
			ServicesFile: filepath.Join("..", "config", "services.yaml"),
		},
	}
	store := cache.NewStore(cfg.Container.CacheDir, cfg.App.Debug, zap.NewNop())
	application := foundation.New(cfg, zap.NewNop(), metrics.NewCollector(foundation.MetricsNamespace), store,
		foundation.AppProviders{&app.AppServiceProvider{}})
	t.Cleanup(func() { _ = application.Close() })

	handler, err := application.Handler(context.Background())
	require.NoError(t, err)
	return application, handler
}

func send(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAppServiceProvider_Wiring(t *testing.T) {
	t.Parallel()
	application, _ := boot(t)
	c := application.Container()

	mailer, err := container.Resolve[*app.Mailer](c, "mailer")
	require.NoError(t, err)
	assert.Equal(t, "noreply@swift.test", mailer.From, "parameter from services.yaml")

	alias, err := container.Resolve[*app.Mailer](c, "mailer.default")
	require.NoError(t, err)
	assert.Same(t, mailer, alias)

	assert.Equal(t, []string{"notifier.audit", "notifier.admin"}, c.ByTag(app.TagNotifier))

	dispatcher, err := application.Events()
	require.NoError(t, err)
	listeners := dispatcher.Listeners(app.EventUserRegistered)
	require.Len(t, listeners, 1)
	assert.Equal(t, "OnRegistered", listeners[0].Method)
	assert.Equal(t, 10, listeners[0].Priority)
}

func TestUserController_Store(t *testing.T) {
	t.Parallel()
	application, h := boot(t)

	rr := send(t, h, http.MethodPost, "/users", `{"email":"ada@swift.test"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "Swift", rr.Header().Get("X-Powered-By"))
	assert.JSONEq(t, `{"data":{"email":"ada@swift.test"}}`, rr.Body.String())

	mailer := container.MustResolve[*app.Mailer](application.Container(), "mailer")
	assert.Equal(t, []string{
		"noreply@swift.test -> admin@swift.test: New user: ada@swift.test",
		"noreply@swift.test -> ada@swift.test: Welcome!",
	}, mailer.Sent())

	rr = send(t, h, http.MethodPost, "/users", `{"email":"ada@swift.test"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestUserController_StoreRejectsBadInput(t *testing.T) {
	t.Parallel()
	_, h := boot(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"email":`, http.StatusBadRequest},
		{"missing email", `{}`, http.StatusUnprocessableEntity},
		{"invalid email", `{"email":"not-an-email"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := send(t, h, http.MethodPost, "/users", tt.body)
			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusUnprocessableEntity {
				var body struct {
					Errors map[string][]string `json:"errors"`
				}
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Contains(t, body.Errors, "email")
			}
		})
	}
}

func TestUserController_Show(t *testing.T) {
	t.Parallel()
	_, h := boot(t)

	assert.Equal(t, http.StatusNotFound, send(t, h, http.MethodGet, "/users/ghost@swift.test", "").Code)

	require.Equal(t, http.StatusCreated, send(t, h, http.MethodPost, "/users", `{"email":"grace@swift.test"}`).Code)
	rr := send(t, h, http.MethodGet, "/users/grace@swift.test", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"email":"grace@swift.test"}}`, rr.Body.String())
}
