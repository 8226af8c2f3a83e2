package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter mounts the cart API. The event stream sits outside the
// compression group so every event is flushed as written.
func NewRouter(h *CartHandler, log logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/events", h.Events)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{product_id}", h.UpdateAmount)
			r.Delete("/items/{product_id}", h.RemoveItem)
		})
	})

	return otelhttp.NewHandler(r, "cart-api")
}
