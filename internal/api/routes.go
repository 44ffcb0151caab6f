package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouteConfig carries the knobs Routes needs from configuration.
type RouteConfig struct {
	CORSOrigins    []string
	RateLimitRPM   int
	LoginRateRPM   int
	MetricsHandler http.Handler
}

func (h *Handler) Routes(m *Middleware, cfg RouteConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(m.Compress)
	r.Use(middleware.Heartbeat("/ping"))

	r.Use(m.CORS(cfg.CORSOrigins))
	r.Use(m.RateLimit(cfg.RateLimitRPM))

	// Health and ops endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// v1 API routes
	r.Route("/v1", func(r chi.Router) {
		// streaming endpoints stay outside the request timeout
		r.Group(func(r chi.Router) {
			r.Use(m.RequireAdmin)
			r.Get("/admin/events", h.HandleSSE)
			r.Get("/admin/ws", h.HandleWebSocket)
		})

		r.Group(func(r chi.Router) {
			r.Use(m.Timeout(15 * time.Second))

			// Admin session
			r.Route("/admin", func(r chi.Router) {
				r.With(m.LoginRateLimit(cfg.LoginRateRPM)).Post("/login", h.Login)
				r.Post("/logout", h.Logout)
				r.Get("/me", h.Me)
			})

			// Posts
			r.Route("/posts", func(r chi.Router) {
				r.Get("/", h.ListPosts)
				r.Get("/{slug}", h.GetPost)

				r.Group(func(r chi.Router) {
					r.Use(m.RequireAdmin)
					r.Post("/", h.CreatePost)
					r.Put("/{slug}", h.UpdatePost)
					r.Delete("/{slug}", h.DeletePost)
				})
			})

			// Comments
			r.Route("/comments", func(r chi.Router) {
				r.Get("/", h.ListComments)
				r.Post("/", h.CreateComment)

				r.Group(func(r chi.Router) {
					r.Use(m.RequireAdmin)
					r.Put("/{id}", h.UpdateComment)
					r.Delete("/{id}", h.DeleteComment)
				})
			})

			// Images
			r.Route("/images", func(r chi.Router) {
				r.Get("/serve", h.ServeImage)

				r.Group(func(r chi.Router) {
					r.Use(m.RequireAdmin)
					r.Get("/", h.ListImages)
					r.Post("/", h.UploadImage)
					r.Put("/{id}", h.UpdateImage)
					r.Delete("/{id}", h.DeleteImage)
				})
			})

			// Search. Comment and image search cover the full moderation
			// queue and image library, so only the post search is public.
			r.Route("/search", func(r chi.Router) {
				r.Get("/posts", h.SearchPosts)
				r.Get("/meta", h.SearchMeta)

				r.Group(func(r chi.Router) {
					r.Use(m.RequireAdmin)
					r.Get("/comments", h.SearchComments)
					r.Get("/images", h.SearchImages)
				})
			})

			// Stats
			r.Route("/stats", func(r chi.Router) {
				r.Use(m.RequireAdmin)
				r.Get("/comments", h.CommentStats)
				r.Get("/images", h.ImageStats)
			})
		})
	})

	return r
}
