package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/ingress"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
	"github.com/MrSnakeDoc/roomrouter/internal/rooms"
)

// Placer is the placement surface the router handlers need.
type Placer interface {
	PlaceRoom(ctx context.Context, roomID string) (domain.Placement, error)
	Fleet(ctx context.Context) (domain.FleetView, error)
	ClearCache(ctx context.Context) error
}

// HealthReporter reports background health for /readyz.
type HealthReporter interface {
	Healthy() bool
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // networks allowed to reach admin endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy
	Gatherer     prometheus.Gatherer

	// Router
	Placement       Placer
	FleetHealth     HealthReporter // nil until the fleet monitor is enabled
	RedisClient     *redis.Client  // nil when the placement cache is in memory
	RateLimitBurst  int
	RateLimitPerMin int

	// Shard
	Rooms     *rooms.Registry
	Ingress   ingress.Options
	WebSocket http.Handler
}
