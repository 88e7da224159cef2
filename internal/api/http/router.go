package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-cat/internal/auth/middleware"
	"github.com/mind-engage/mindengage-cat/internal/platform/logger"
	"github.com/mind-engage/mindengage-cat/internal/pool"
	"github.com/mind-engage/mindengage-cat/internal/rbac"
	"github.com/mind-engage/mindengage-cat/internal/session"
)

type Deps struct {
	Manager  *session.Manager
	Provider pool.Provider
	// Importer is optional; /items/import is mounted only when set.
	Importer ItemImporter

	Auth            *auth.AuthService
	Credentials     auth.Credentials
	EnableLocalAuth bool
	CORSOrigins     []string

	// Ready reports backing-store health for /readyz.
	Ready func(ctx context.Context) error
	Log   *logger.Logger
	// AccessLog enables chi's request logger.
	AccessLog bool
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if d.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(d.Auth, d.Credentials))
	}

	sh := &SessionHandlers{Manager: d.Manager, Provider: d.Provider, Log: d.Log}

	// Protected API (JWT → subject/role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermSessionStart)).
			Post("/sessions", sh.Start)
		pr.With(rbac.RequireAny(rbac.PermSessionViewOwn, rbac.PermSessionViewAll)).
			Get("/sessions", sh.List)

		pr.Route("/sessions/{sessionID}", func(sr chi.Router) {
			sr.Get("/", sh.Get)
			sr.With(rbac.Require(rbac.PermSessionAnswer)).
				Post("/answers", sh.Answer)
			sr.Get("/result", sh.Result)
			sr.Post("/abort", sh.Abort)
		})

		if d.Importer != nil {
			pr.With(rbac.Require(rbac.PermItemsImport)).
				Post("/items/import", ImportItemsHandler(d.Importer))
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			if err := d.Ready(r.Context()); err != nil {
				d.Log.Warn("not ready", "error", err)
				writeErr(w, http.StatusServiceUnavailable, "Unavailable", "not ready")
				return
			}
		}
		w.WriteHeader(200)
	})
	return r
}
