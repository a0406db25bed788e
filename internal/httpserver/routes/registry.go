package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/deps"
)

// Surface selects which binary a registrar belongs to.
type Surface string

const (
	Router Surface = "router"
	Shard  Surface = "shard"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	surface Surface
	reg     Registrar
	mws     []Middleware
}

var registry []entry

// Register a registrar for surface with optional per-route middlewares.
func Register(surface Surface, reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{surface: surface, reg: reg, mws: mws})
}

// RegisterAll mounts every registrar of surface. Called once from server.New().
func RegisterAll(r chi.Router, d deps.Deps, surface Surface) {
	for _, e := range registry {
		if e.surface != surface {
			continue
		}
		if len(e.mws) == 0 {
			e.reg(r, d)
			continue
		}
		sub := r.With(e.mws...) // apply per-route middlewares
		e.reg(sub, d)
	}
}
