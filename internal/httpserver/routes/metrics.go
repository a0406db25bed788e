package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/deps"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/handlers"
)

func init() {
	Register(Router, registerRouterMetrics)
	Register(Shard, registerShardMetrics)
}

func registerRouterMetrics(r chi.Router, d deps.Deps) {
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
}

// The shard's /metrics is the snapshot JSON consumed by routers.
func registerShardMetrics(r chi.Router, d deps.Deps) {
	r.Get("/metrics", handlers.Snapshot(d))
	r.Handle("/metrics/prom", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
}
