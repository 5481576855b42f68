package routing

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/km-arc/go-swift/framework/config"
	"github.com/km-arc/go-swift/framework/di"
	gohttp "github.com/km-arc/go-swift/framework/http"
)

// HandlerSource supplies compiled route bindings and resolves their
// controllers. *container.Container implements it.
type HandlerSource interface {
	RouteBindings() []di.RouteBinding
	RouteHandler(b di.RouteBinding) (http.HandlerFunc, error)
}

// Middleware is implemented by services that wrap every request. Classes
// implementing it are tagged di.TagMiddleware by autoconfiguration.
type Middleware interface {
	Handle(next http.Handler) http.Handler
}

// Router wraps chi.Router with Laravel-style helpers.
type Router struct {
	mux    chi.Router
	logger *zap.Logger
}

// New creates a Router with sane defaults (RequestID, RealIP, Recoverer and
// a zap request logger).
func New(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))
	return &Router{mux: r, logger: logger}
}

// NewRouter is the constructor the container uses: it adds CORS when
// origins are configured, the tagged middleware in tag order, and mounts
// every compiled route from source.
//
//	// Laravel: Illuminate\Routing\RoutingServiceProvider
//	di.Provide(routing.NewRouter, di.Inject(2, di.WithTag(di.TagMiddleware)))
func NewRouter(cfg *config.Config, logger *zap.Logger, mws []Middleware, source HandlerSource) *Router {
	r := New(logger)
	if cfg != nil && len(cfg.HTTP.CORSOrigins) > 0 {
		r.mux.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.HTTP.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	for _, mw := range mws {
		r.mux.Use(mw.Handle)
	}
	if source != nil {
		r.Mount(source)
	}
	return r
}

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func (r *Router) Get(pattern string, h http.HandlerFunc)    { r.mux.Get(pattern, h) }
func (r *Router) Post(pattern string, h http.HandlerFunc)   { r.mux.Post(pattern, h) }
func (r *Router) Put(pattern string, h http.HandlerFunc)    { r.mux.Put(pattern, h) }
func (r *Router) Patch(pattern string, h http.HandlerFunc)  { r.mux.Patch(pattern, h) }
func (r *Router) Delete(pattern string, h http.HandlerFunc) { r.mux.Delete(pattern, h) }

// Method registers h for an arbitrary HTTP method.
func (r *Router) Method(method, pattern string, h http.HandlerFunc) { r.mux.Method(method, pattern, h) }

// ── Compiled routes ──────────────────────────────────────────────────────────

// Mount registers every route binding of source. Controllers are resolved
// per request; a resolution failure answers 500.
func (r *Router) Mount(source HandlerSource) {
	for _, b := range source.RouteBindings() {
		r.mux.Method(b.Method, b.Path, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			h, err := source.RouteHandler(b)
			if err != nil {
				r.logger.Error("route handler unavailable",
					zap.String("route", b.Name),
					zap.String("service", b.ServiceID),
					zap.Error(err),
				)
				gohttp.NewResponse(w).ServerError()
				return
			}
			h(w, req)
		}))
		r.logger.Debug("route mounted",
			zap.String("method", b.Method),
			zap.String("path", b.Path),
			zap.String("name", b.Name),
			zap.String("service", b.ServiceID),
		)
	}
}

// ── Groups & Prefixes ────────────────────────────────────────────────────────

// Group creates an inline group.
//
//	// Laravel: Route::group([], fn)
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(mx chi.Router) {
		fn(&Router{mux: mx, logger: r.logger})
	})
}

// Prefix creates a sub-router with a URL prefix.
//
//	// Laravel: Route::prefix('/api')
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(&Router{mux: mx, logger: r.logger})
	})
}

// ── Middleware ───────────────────────────────────────────────────────────────

// Middleware adds one or more middleware to the router.
func (r *Router) Middleware(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// ── Params ───────────────────────────────────────────────────────────────────

// Param extracts a URL param, like $request->route('id').
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler so Router can be passed to http.ListenAndServe.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler (for testing etc.).
func (r *Router) Handler() http.Handler {
	return r.mux
}
