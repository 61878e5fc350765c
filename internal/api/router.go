package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, RequestLogger, middleware.Recoverer)

	r.Get("/v1/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Post("/schedule", h.Schedule)
		r.Get("/scheduled", h.ListScheduled)
		r.Delete("/scheduled/{id}", h.CancelScheduled)
		r.Post("/send", h.SendNow)
		r.Get("/logs", h.Logs)
		r.Get("/status", h.Status)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("bulk-messaging"))
	})

	return r
}

// RequestLogger writes one zerolog line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
