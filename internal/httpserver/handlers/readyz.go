package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// Readyz reports 503 while a required component is down. The Redis cache is
// optional: when it is unreachable placement still works, so it only marks
// the instance degraded.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := make(map[string]componentStatus)
		ready := true

		if d.FleetHealth != nil {
			if d.FleetHealth.Healthy() {
				components["discovery"] = componentStatus{OK: true}
			} else {
				components["discovery"] = componentStatus{OK: false, Error: "last fleet probe failed"}
				ready = false
			}
		}
		if d.Placement != nil {
			components["placement_cache"] = checkRedis(r.Context(), d)
		}
		if d.Rooms != nil {
			components["rooms"] = componentStatus{OK: true}
		}

		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{Ready: ready, Components: components})
	}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: true, Mode: "memory"}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "placements-not-shared",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: "redis"}
}
