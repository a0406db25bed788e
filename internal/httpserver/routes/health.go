package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/deps"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/mw"
)

func init() {
	Register(Router, registerHealth)
	Register(Shard, registerHealth)
	Register(Router, registerAPIHealth)
}

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)).Get("/readyz", handlers.Readyz(d))
}

func registerAPIHealth(r chi.Router, d deps.Deps) {
	r.Get("/api/health", handlers.APIHealth(d))
}
