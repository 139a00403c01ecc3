// Package api assembles the HTTP surface: route table, middleware
// stack, and the admin handlers.
package api

import (
	"net/http"
	"time"

	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/blog"
	"github.com/openblog/backend/internal/comment"
	"github.com/openblog/backend/internal/db"
	apperrors "github.com/openblog/backend/internal/errors"
	"github.com/openblog/backend/internal/events"
	"github.com/openblog/backend/internal/health"
	"github.com/openblog/backend/internal/logger"
	"github.com/openblog/backend/internal/metrics"
	"github.com/openblog/backend/internal/middleware"
)

// RouterConfig carries everything the route table depends on.
type RouterConfig struct {
	AuthService     *auth.Service
	AuthHandlers    *auth.Handlers
	BlogHandlers    *blog.Handlers
	CommentHandlers *comment.Handlers
	AdminHandlers   *AdminHandlers
	EventsHandler   *events.Handler
	HealthHandler   *health.Handler
	Metrics         *metrics.Metrics
	Limiter         *middleware.RedisLimiter
	AllowedOrigins  []string
	Log             *logger.Logger
}

type Router struct {
	handler http.Handler
}

func NewRouter(cfg RouterConfig) *Router {
	mux := http.NewServeMux()

	requireAuth := auth.Authenticate(cfg.AuthService)
	optionalAuth := auth.OptionalAuth(cfg.AuthService)
	adminOnly := func(h http.Handler) http.Handler {
		return requireAuth(auth.RequireRole(db.RoleAdmin)(h))
	}

	// Login and register share a strict limit; refresh gets a looser
	// one since well-behaved clients call it on every expiry.
	loginLimit := middleware.RateLimit(cfg.Limiter, "auth", 10, time.Minute)
	refreshLimit := middleware.RateLimit(cfg.Limiter, "refresh", 60, time.Minute)

	// Auth
	mux.Handle("POST /api/v1/auth/register", loginLimit(handle(cfg.AuthHandlers.Register)))
	mux.Handle("POST /api/v1/auth/login", loginLimit(handle(cfg.AuthHandlers.Login)))
	mux.Handle("POST /api/v1/auth/refresh", refreshLimit(handle(cfg.AuthHandlers.Refresh)))
	mux.Handle("POST /api/v1/auth/logout", requireAuth(handle(cfg.AuthHandlers.Logout)))
	mux.Handle("GET /api/v1/auth/me", requireAuth(handle(cfg.AuthHandlers.Me)))
	mux.Handle("PUT /api/v1/auth/profile", requireAuth(handle(cfg.AuthHandlers.UpdateProfile)))
	mux.Handle("POST /api/v1/auth/change-password", requireAuth(handle(cfg.AuthHandlers.ChangePassword)))

	// Blogs. Reads take optional auth so authors see their drafts.
	mux.Handle("GET /api/v1/blogs", optionalAuth(handle(cfg.BlogHandlers.List)))
	mux.Handle("POST /api/v1/blogs", requireAuth(handle(cfg.BlogHandlers.Create)))
	mux.Handle("GET /api/v1/blogs/{slug}", optionalAuth(handle(cfg.BlogHandlers.Get)))
	mux.Handle("GET /api/v1/blogs/{slug}/cover", optionalAuth(handle(cfg.BlogHandlers.CoverURL)))
	mux.Handle("PUT /api/v1/blogs/{id}", requireAuth(handle(cfg.BlogHandlers.Update)))
	mux.Handle("DELETE /api/v1/blogs/{id}", requireAuth(handle(cfg.BlogHandlers.Delete)))
	mux.Handle("POST /api/v1/blogs/{id}/like", requireAuth(handle(cfg.BlogHandlers.Like)))
	mux.Handle("POST /api/v1/blogs/{id}/cover-upload", requireAuth(handle(cfg.BlogHandlers.CoverUploadURL)))

	// Comments
	mux.Handle("GET /api/v1/blogs/{id}/comments", optionalAuth(handle(cfg.CommentHandlers.ListByBlog)))
	mux.Handle("POST /api/v1/blogs/{id}/comments", requireAuth(handle(cfg.CommentHandlers.Create)))
	mux.Handle("DELETE /api/v1/comments/{id}", requireAuth(handle(cfg.CommentHandlers.Delete)))

	// Admin
	mux.Handle("GET /api/v1/admin/users", adminOnly(handle(cfg.AdminHandlers.ListUsers)))
	mux.Handle("PUT /api/v1/admin/users/{id}/active", adminOnly(handle(cfg.AdminHandlers.SetUserActive)))

	// Live events
	if cfg.EventsHandler != nil {
		mux.Handle("GET /api/v1/ws", handle(cfg.EventsHandler.ServeWS))
	}

	// Operational endpoints, outside the versioned API
	mux.HandleFunc("GET /health", cfg.HealthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", cfg.HealthHandler.Readiness)
	mux.HandleFunc("GET /metrics", cfg.Metrics.Handler())

	// Outermost first. The recoverer sits inside logging and metrics
	// so a panic still shows up as a 500 in both.
	handler := middleware.Chain(mux,
		apperrors.RequestIDMiddleware,
		logger.Middleware(cfg.Log),
		metrics.Middleware(cfg.Metrics),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.SecurityHeaders,
		middleware.Recoverer(cfg.Log),
		middleware.Gzip,
		middleware.ETag,
	)

	return &Router{handler: handler}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func handle(h apperrors.Handler) http.Handler {
	return apperrors.HandleFunc(h)
}
