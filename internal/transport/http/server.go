package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the booking API. Every request gets a deadline so a slow
// storage call cannot pin a handler forever.
func NewRouter(h *Handler, requestTimeout time.Duration) http.Handler {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/slots", h.Slots)
		r.Post("/appointments", h.Book)
		r.Get("/appointments/lookup", h.Lookup)
		r.Get("/appointments/check", h.Check)
		r.Get("/appointments/{code}/confirmation", h.Confirmation)
		r.Post("/appointments/{code}/cancel", h.Cancel)
		r.Get("/admin/appointments", h.AdminList)
	})

	return r
}
