package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler reports storage reachability; 503 when it is down. The
// failure detail is logged, not returned.
func HealthHandler(storage Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{"storage": "ok"}}
		status := http.StatusOK
		if err := storage.Ping(ctx); err != nil {
			resp.Status = "unhealthy"
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("storage health check failed")
			resp.Checks["storage"] = "down"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
