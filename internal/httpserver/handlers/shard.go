package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/deps"
	"github.com/MrSnakeDoc/roomrouter/internal/ingress"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
)

// Snapshot serves the shard's load report polled by routers.
func Snapshot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, d.Rooms.Snapshot())
	}
}

// Info returns the shard identity.
func Info(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"serverId": d.Rooms.ServerID()})
	}
}

// Ingress renders the Istio manifests routing gateway traffic to this pod.
func Ingress(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := ingress.Render(d.Ingress)
		if err != nil {
			d.Logger.Warn("failed to render ingress manifests", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Ingress unavailable", err)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
