package http

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"voice-transcription-service/internal/models"
)

// maxInvokeBody bounds the size of a local invocation payload.
const maxInvokeBody = 1 << 20

// Invoker runs one transcription invocation. lambda.Handler implements it.
type Invoker interface {
	Invoke(ctx context.Context, payload []byte) models.Result
}

// NewRouter constructs the HTTP router for running the service outside
// Lambda.
func NewRouter(invoker Invoker) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/invoke", func(w http.ResponseWriter, req *http.Request) {
			body, err := io.ReadAll(io.LimitReader(req.Body, maxInvokeBody))
			if err != nil {
				http.Error(w, `{"error":"unreadable body"}`, http.StatusBadRequest)
				return
			}

			// The invocation outlives the HTTP request when the client
			// disconnects, as it would under Lambda.
			result := invoker.Invoke(context.WithoutCancel(req.Context()), body)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(result.JSON()))
		})
	})

	return r
}
