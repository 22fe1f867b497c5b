package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/desk"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/kv"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/obs"
	"github.com/Conrad-Tinio/CAPWA-Website/internal/stream"
)

const serviceName = "capwa-api"

type readinessChecker interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the persistence backend when it supports it.
type ReadyProbe struct {
	Store kv.Store
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return kv.Ping(ctx, rp.Store)
}

// API is the HTTP surface over a desk.Desk.
type API struct {
	router     chi.Router
	desk       *desk.Desk
	stream     *stream.Stream
	readyProbe readinessChecker
	version    string

	rateBurst      int
	ratePerSec     int
	maxBodyBytes   int64
	trustedProxies []netip.Prefix
}

type Option func(*API)

func WithStream(s *stream.Stream) Option {
	return func(a *API) { a.stream = s }
}

func WithReadiness(r readinessChecker) Option {
	return func(a *API) {
		if r != nil {
			a.readyProbe = r
		}
	}
}

func WithVersion(v string) Option {
	return func(a *API) { a.version = v }
}

// WithRateLimit sets the per-IP token bucket. Zero disables limiting.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		a.rateBurst = burst
		a.ratePerSec = perSecond
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(a *API) { a.maxBodyBytes = n }
}

// WithTrustedProxies lists the peers whose X-Forwarded-For is believed.
func WithTrustedProxies(p []netip.Prefix) Option {
	return func(a *API) { a.trustedProxies = p }
}

func New(d *desk.Desk, opts ...Option) *API {
	a := &API{
		desk:         d,
		readyProbe:   ReadyProbe{},
		version:      "dev",
		rateBurst:    20,
		ratePerSec:   10,
		maxBodyBytes: 1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Handle("/metrics", obs.Handler())

	r.Group(func(r chi.Router) {
		r.Use(a.withSession)

		r.Route("/v1/auth", func(r chi.Router) {
			r.Post("/login", a.handleLogin)
			r.Post("/register", a.handleRegister)
			r.With(requireToken).Get("/me", a.handleMe)
			r.With(requireToken).Post("/logout", a.handleLogout)
		})

		r.Route("/v1/incidents", func(r chi.Router) {
			r.Get("/", a.listIncidents)
			r.Post("/", a.createIncident)
			r.Get("/stream", a.Stream)
			r.With(requireToken).Get("/mine", a.myIncidents)
			r.Get("/{id}", a.getIncident)
			r.With(requireToken).Patch("/{id}", a.patchIncident)
			r.With(requireToken).Delete("/{id}", a.deleteIncident)
			r.With(requireToken).Post("/{id}/notes", a.appendNote)
			r.With(requireToken).Post("/{id}/assign", a.assignIncident)
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(requireToken)
			r.Get("/users", a.listUsers)
			r.Put("/users/{id}/role", a.setUserRole)
			r.Delete("/users/{id}", a.deleteUser)
			r.Get("/stats", a.dashboardStats)
			r.Get("/activity", a.recentActivity)
		})
	})
	return r
}

// Handler returns the router wrapped in the middleware chain, outermost first:
// request id, client address, access log, metrics, security headers, CORS,
// rate limit, body cap.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = ClientAddress(h, a.trustedProxies...)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
