package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/deps"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
)

type placementResponse struct {
	Room       string `json:"room"`
	ServerID   string `json:"serverId"`
	RoutingKey string `json:"routingKey"`
	Address    string `json:"address"`
	Source     string `json:"source"`
}

// GetServerForRoom answers which shard a client should connect to. The
// routing key is what the ingress matches on to reach that shard.
func GetServerForRoom(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := strings.TrimSpace(r.URL.Query().Get("room"))
		if roomID == "" {
			writeError(w, http.StatusBadRequest, "Missing room parameter", nil)
			return
		}

		p, err := d.Placement.PlaceRoom(r.Context(), roomID)
		if err != nil {
			d.Logger.Warn("failed to place room",
				logger.String("room", roomID),
				logger.Error(err))

			var de *domain.DiscoveryError
			switch {
			case errors.Is(err, domain.ErrInvalidRoom):
				writeError(w, http.StatusBadRequest, "Missing room parameter", nil)
			case errors.Is(err, domain.ErrNoShardsAvailable), errors.As(err, &de):
				writeError(w, http.StatusServiceUnavailable, "No servers available", err)
			default:
				writeError(w, http.StatusInternalServerError, "Placement failed", err)
			}
			return
		}

		d.Logger.Info("assigned room",
			logger.String("room", roomID),
			logger.String("shard", p.ShardID),
			logger.String("source", p.Source))

		writeJSON(w, http.StatusOK, placementResponse{
			Room:       p.RoomID,
			ServerID:   p.ShardID,
			RoutingKey: p.ShardID,
			Address:    p.Address,
			Source:     p.Source,
		})
	}
}

// Servers lists every reachable shard with its load.
func Servers(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := d.Placement.Fleet(r.Context())
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "Failed to list servers", err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// ClearCache drops every cached placement.
func ClearCache(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Placement.ClearCache(r.Context()); err != nil {
			d.Logger.Error("failed to clear placement cache", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to clear cache", err)
			return
		}
		d.Logger.Info("placement cache cleared via endpoint",
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusOK, map[string]string{"message": "Cache cleared"})
	}
}
