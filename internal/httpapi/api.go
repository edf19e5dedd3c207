// Package httpapi exposes the directory and audit services over JSON HTTP.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"contactdesk.org/internal/audit"
	"contactdesk.org/internal/directory"
	"contactdesk.org/internal/obs"
	"contactdesk.org/internal/stream"
)

// ReadyProbe reports whether downstream dependencies are reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options wires the API's collaborators and HTTP hardening knobs.
type Options struct {
	Service    *directory.Service
	Recorder   *audit.Recorder
	AuditStore audit.Store
	Events     *stream.Stream[audit.Entry]
	Tokens     *directory.TokenIssuer
	Probe      ReadyProbe
	Version    string

	SessionCookie   string
	SecureCookies   bool
	AllowedOrigin   string
	MaxBodyBytes    int64
	RateLimitPerSec int
	RateLimitBurst  int
}

// API is the HTTP layer.
type API struct {
	svc        *directory.Service
	recorder   *audit.Recorder
	auditStore audit.Store
	events     *stream.Stream[audit.Entry]
	tokens     *directory.TokenIssuer
	probe      ReadyProbe
	version    string

	cookieName    string
	secureCookies bool
	opts          Options

	router chi.Router
}

func New(opts Options) *API {
	if opts.SessionCookie == "" {
		opts.SessionCookie = "session_id"
	}
	a := &API{
		svc:           opts.Service,
		recorder:      opts.Recorder,
		auditStore:    opts.AuditStore,
		events:        opts.Events,
		tokens:        opts.Tokens,
		probe:         opts.Probe,
		version:       opts.Version,
		cookieName:    opts.SessionCookie,
		secureCookies: opts.SecureCookies,
		opts:          opts,
	}
	a.router = a.routes()
	return a
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Handle("/metrics", obs.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", a.handleRegister)
		r.Post("/auth/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.withAuth, a.requireAuth)

			r.Post("/auth/logout", a.handleLogout)
			r.Get("/auth/status", a.handleAuthStatus)
			r.Post("/auth/token", a.handleAuthToken)

			r.With(a.require("user.read.all")).Get("/users", a.listUsers)
			r.With(a.require("user.read.all")).Get("/users/{id}", a.getUser)
			r.With(a.require("role.manage")).Put("/users/{id}/roles", a.replaceUserRoles)

			r.With(a.require("role.manage")).Get("/roles", a.listRoles)
			r.With(a.require("role.manage")).Get("/roles/{id}", a.getRole)
			r.With(a.require("role.manage")).Post("/roles", a.createRole)
			r.With(a.require("role.manage")).Put("/roles/{id}", a.updateRole)
			r.With(a.require("role.manage")).Patch("/roles/{id}", a.updateRole)
			r.With(a.require("role.delete")).Delete("/roles/{id}", a.deleteRole)
			r.With(a.require("role.assign_permission")).Post("/roles/{id}/permissions/{permissionID}", a.addRolePermission)
			r.With(a.require("role.assign_permission")).Delete("/roles/{id}/permissions/{permissionID}", a.removeRolePermission)

			r.With(a.require("permission.read.all")).Get("/permissions", a.listPermissions)
			r.With(a.require("permission.read.all")).Get("/permissions/{id}", a.getPermission)
			r.With(a.require("permission.create")).Post("/permissions", a.createPermission)
			r.With(a.require("permission.update")).Put("/permissions/{id}", a.updatePermission)
			r.With(a.require("permission.update")).Patch("/permissions/{id}", a.updatePermission)
			r.With(a.require("permission.delete")).Delete("/permissions/{id}", a.deletePermission)

			r.With(a.require("category.read.all")).Get("/categories", a.listCategories)
			r.With(a.require("category.read.all")).Get("/categories/{id}", a.getCategory)
			r.With(a.require("category.create")).Post("/categories", a.createCategory)
			r.With(a.require("category.update")).Put("/categories/{id}", a.updateCategory)
			r.With(a.require("category.update")).Patch("/categories/{id}", a.updateCategory)
			r.With(a.require("category.delete")).Delete("/categories/{id}", a.deleteCategory)

			r.With(a.require("contact.read")).Get("/contacts", a.listContacts)
			r.With(a.require("contact.read")).Get("/contacts/{id}", a.getContact)
			r.With(a.require("contact.create")).Post("/contacts", a.createContact)
			// Ownership checks for edit and delete run inside the service.
			r.Put("/contacts/{id}", a.updateContact)
			r.Patch("/contacts/{id}", a.updateContact)
			r.Delete("/contacts/{id}", a.deleteContact)

			r.With(a.require("audit.read.all")).Get("/audit-logs", a.listAuditLogs)
			r.With(a.require("audit.read.all")).Get("/audit-logs/stream", a.streamAuditLogs)
		})
	})

	return r
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.router
	h = RequestInfo(h)
	if a.opts.RateLimitPerSec > 0 {
		h = RateLimit(h, a.opts.RateLimitBurst, a.opts.RateLimitPerSec)
	}
	if a.opts.MaxBodyBytes > 0 {
		h = MaxBodyBytes(h, a.opts.MaxBodyBytes)
	}
	h = CORS(h, a.opts.AllowedOrigin)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// --- probes ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "contactdesk-api",
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.probe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
