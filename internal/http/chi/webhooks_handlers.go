package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/deployhook/deploy"
	"github.com/marcelsud/deployhook/metrics"
	"github.com/marcelsud/deployhook/webhook"
)

// WebhookHandlers sets up the receiver routes. metricsHandler may be nil.
func WebhookHandlers(ctx context.Context, classifier webhook.UseCase, dispatcher deploy.UseCase, recorder metrics.Recorder, metricsHandler http.Handler) *chi.Mux {
	logger := httplog.NewLogger("deployhook", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	// Every other request is classified, so a wrong method or path gets the
	// same JSON rejection as a bad signature
	h := postWebhook(classifier, dispatcher, recorder)
	r.Handle("/webhook/*", h)
	r.NotFound(h.ServeHTTP)
	r.MethodNotAllowed(h.ServeHTTP)

	return r
}
