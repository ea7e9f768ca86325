package control

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Routes builds the router: /api/v1 for commands and /metrics for Prometheus.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requestLogger)
	r.Use(h.recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/monitor", func(r chi.Router) {
			r.Post("/start", h.StartMonitoring)
			r.Post("/stop", h.StopMonitoring)
			r.Get("/status", h.GetStatus)
		})
		r.Get("/reaction", h.GetReaction)
		r.Put("/reaction", h.PutReaction)
		r.Get("/log", h.GetLog)
		r.Get("/events", h.ListEvents)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", requestID)

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		fields := []zap.Field{
			zap.String("request", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.status),
			zap.Duration("took", time.Since(start)),
		}
		if wrapped.status >= 400 {
			h.log.Warn("Control request failed", fields...)
			return
		}
		h.log.Debug("Control request", fields...)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.log.Error("Panic in control handler",
					zap.Any("panic", err),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()))
				fail(w, &Error{Code: ErrCodeInternalError, Message: "Internal server error", Status: http.StatusInternalServerError})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
