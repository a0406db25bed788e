package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/deps"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/mw"
)

func init() {
	Register(Router, registerPlacement)
	Register(Router, registerAdmin)
}

func registerPlacement(r chi.Router, d deps.Deps) {
	r.With(
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.RateLimitBurst,
			RefillPerIPPerMin: d.RateLimitPerMin,
			MaxEntries:        10000,
			TrustProxy:        d.TrustProxy,
		}),
	).Get("/api/get-server-for-room", handlers.GetServerForRoom(d))
}

func registerAdmin(r chi.Router, d deps.Deps) {
	admin := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger))
	admin.Get("/api/servers", handlers.Servers(d))
	admin.Post("/api/clear-cache", handlers.ClearCache(d))
}
