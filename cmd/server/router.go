package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"veil/internal/platform/config"
	"veil/internal/platform/health"
	"veil/internal/redaction/handler"
	"veil/pkg/platform/middleware/auth"
	"veil/pkg/platform/middleware/request"
)

// newRouter builds the HTTP surface: the redaction endpoint, health probes and
// the prometheus scrape endpoint.
func newRouter(cfg config.Server, log *slog.Logger, redact *handler.Handler, checks *health.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(request.Logger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(request.LatencyMiddleware(request.NewMetrics()))

	checks.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.RequestTimeout))
		r.Use(request.BodyLimit(cfg.MaxBodyBytes))
		r.Use(request.ContentTypeJSON)
		if cfg.AuthEnabled() {
			r.Use(auth.RequireViewer(auth.NewHMACValidator(cfg.JWTSigningKey, cfg.JWTAudience), log))
		}
		redact.Register(r)
	})

	return otelhttp.NewHandler(r, "veil.http",
		otelhttp.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != "/metrics"
		}),
	)
}
