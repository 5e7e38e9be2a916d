package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cas/internal/securecontext"
	"cas/pkg/platform/httputil"
	"cas/pkg/platform/middleware/request"
	"cas/pkg/requestcontext"
)

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies wires the router.
type Dependencies struct {
	Logger   *slog.Logger
	Gatherer prometheus.Gatherer
	Chain    securecontext.Chain
	Modules  []Registrar
	Checks   map[string]HealthCheck
}

// NewRouter builds the public router. Operational routes skip secure-context
// resolution; everything registered through Modules sees it.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Middleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz(deps.Logger, deps.Checks))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(app chi.Router) {
		app.Use(securecontext.Middleware(deps.Chain, deps.Logger))
		for _, m := range deps.Modules {
			m.Register(app)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthz(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"request_id", requestcontext.RequestID(ctx),
					"dependency", name,
					"error", err,
				)
				resp.Checks[name] = "unavailable"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
