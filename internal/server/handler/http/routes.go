package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/nordcup/ridevault/internal/middleware"
)

const (
	loginRequestLimit = 20
	loginWindow       = time.Minute
)

// NewRouter constructs the HTTP handler of the dashboard server. The API lives
// under /api; everything else is served from publicDir.
//
// Routes:
//
//	POST /api/login      → authHandler.Login
//	POST /api/logout     → authHandler.Logout
//	GET  /api/session    → authHandler.Session
//	GET  /api/dashboard  → dashboardHandler.Dashboard
//	GET  /*              → static files
//
// Every response carries the security headers. API responses are never cached
// and are bound to a browser session cookie.
func NewRouter(
	authHandler *AuthHandler,
	dashboardHandler *DashboardHandler,
	publicDir string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	if authHandler.TrustProxy {
		r.Use(chiMiddleware.RealIP)
	}
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)

	r.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.NoCache)
		r.Use(middleware.Session(authHandler.Secure))

		r.With(
			chiMiddleware.AllowContentType("application/json"),
			httprate.LimitByIP(loginRequestLimit, loginWindow),
		).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/session", authHandler.Session)
		r.Get("/dashboard", dashboardHandler.Dashboard)
	})

	r.Handle("/*", http.FileServer(http.Dir(publicDir)))

	return r
}
