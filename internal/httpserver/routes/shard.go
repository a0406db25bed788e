package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/deps"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/mw"
)

func init() { Register(Shard, registerShard) }

func registerShard(r chi.Router, d deps.Deps) {
	r.Get("/info", handlers.Info(d))
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Get("/ingress", handlers.Ingress(d))
	if d.WebSocket != nil {
		r.With(mw.EnforceHost(d.AllowedHosts, d.Logger)).Get("/websocket", d.WebSocket.ServeHTTP)
	}
}
