package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/SangwoonYun/ks-rewards.com/internal/handler"
	"github.com/SangwoonYun/ks-rewards.com/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	AccountHandler *handler.AccountHandler
	CodeHandler    *handler.CodeHandler
	QueueHandler   *handler.QueueHandler
	StatsHandler   *handler.StatsHandler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
		}

		if cfg.AccountHandler != nil {
			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", cfg.AccountHandler.List)
				r.Post("/", cfg.AccountHandler.Register)
				r.Route("/{fid}", func(r chi.Router) {
					r.Post("/toggle", cfg.AccountHandler.Toggle)
					r.Post("/enqueue", cfg.AccountHandler.Enqueue)
					r.Get("/redemptions", cfg.AccountHandler.Redemptions)
				})
			})
		}

		if cfg.CodeHandler != nil {
			r.Route("/codes", func(r chi.Router) {
				r.Get("/", cfg.CodeHandler.List)
				r.Post("/", cfg.CodeHandler.Add)
				r.Post("/sync", cfg.CodeHandler.Sync)
				r.Post("/validate", cfg.CodeHandler.ValidatePending)
				r.Route("/{code}", func(r chi.Router) {
					r.Post("/validate", cfg.CodeHandler.ValidateOne)
					r.Post("/enqueue", cfg.CodeHandler.Enqueue)
					r.Post("/delete", cfg.CodeHandler.Delete)
					r.Get("/redemptions", cfg.CodeHandler.Redemptions)
				})
			})
		}

		if cfg.QueueHandler != nil {
			r.Route("/queue", func(r chi.Router) {
				r.Get("/", cfg.QueueHandler.List)
				r.Post("/enqueue-all", cfg.QueueHandler.EnqueueAll)
				r.Post("/process", cfg.QueueHandler.Process)
				r.Route("/{id}", func(r chi.Router) {
					r.Post("/retry", cfg.QueueHandler.Retry)
					r.Post("/remove", cfg.QueueHandler.Remove)
				})
			})
		}

		if cfg.StatsHandler != nil {
			r.Get("/stats", cfg.StatsHandler.Dashboard)
			r.Get("/redemptions/recent", cfg.StatsHandler.RecentRedemptions)
			r.Route("/backups", func(r chi.Router) {
				r.Get("/", cfg.StatsHandler.Backups)
				r.Post("/", cfg.StatsHandler.CreateBackup)
			})
		}
	})

	return r
}
