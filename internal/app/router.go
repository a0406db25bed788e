package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/roomrouter/internal/config"
	"github.com/MrSnakeDoc/roomrouter/internal/discovery"
	"github.com/MrSnakeDoc/roomrouter/internal/fleet"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/deps"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/routes"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
	"github.com/MrSnakeDoc/roomrouter/internal/metrics"
	"github.com/MrSnakeDoc/roomrouter/internal/placement"
	"github.com/MrSnakeDoc/roomrouter/internal/redis"
	"github.com/MrSnakeDoc/roomrouter/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/roomrouter/internal/store/redis"
	"github.com/MrSnakeDoc/roomrouter/internal/version"
)

// Router is the placement API process.
type Router struct {
	cfg         *config.Router
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	monitor     *scheduler.FleetMonitor
}

func NewRouter() *Router {
	cfg := config.LoadRouter()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	reg := newRegistry()
	placementMetrics := metrics.NewPlacementMetricsWithRegistry(reg)

	// Placement cache: shared through Redis when configured, in memory otherwise.
	var (
		cache       placement.Cache
		redisClient *goredis.Client
	)
	if cfg.RedisAddr != "" {
		client, err := redis.Connect(context.Background(), redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			loggerClient.Errorf("Failed to connect to Redis: %v", err)
			os.Exit(1)
		}
		redisClient = client
		cache = redisstore.NewPlacementStore(client, cfg.CacheTTL, nil)
		loggerClient.Info("placement cache backed by redis", logger.String("addr", cfg.RedisAddr))
	} else {
		cache = placement.NewMemoryCache(cfg.CacheTTL, nil)
		loggerClient.Info("placement cache in memory", logger.Duration("ttl", cfg.CacheTTL))
	}

	selector := placement.NewSelector(placement.Options{
		Cache: cache,
		Discoverer: discovery.New(discovery.Options{
			Service:     cfg.HeadlessService,
			DefaultPort: cfg.ShardPort,
		}, loggerClient),
		Aggregator: fleet.New(fleet.Options{FetchTimeout: cfg.FetchTimeout}, loggerClient, placementMetrics),
		Metrics:    placementMetrics,
	}, loggerClient)

	var monitor *scheduler.FleetMonitor
	if cfg.ProbeInterval > 0 {
		monitor = scheduler.NewFleetMonitor(selector, placementMetrics, loggerClient, cfg.ProbeInterval)
	}

	d := deps.Deps{
		Logger:          loggerClient,
		StartTime:       time.Now(),
		Version:         version.Version,
		Commit:          version.Commit,
		BuildDate:       version.BuildDate,
		GoVersion:       version.GoVersion,
		TimeNow:         time.Now,
		AllowedHosts:    cfg.AllowedHosts,
		AllowedCIDRS:    cfg.AllowedCIDRS,
		TrustProxy:      cfg.TrustProxy,
		Gatherer:        reg,
		Placement:       selector,
		RedisClient:     redisClient,
		RateLimitBurst:  cfg.RateLimitBurst,
		RateLimitPerMin: cfg.RateLimitPerMin,
	}
	if monitor != nil {
		d.FleetHealth = monitor
	}

	server := httpserver.New(httpserver.Options{
		Addr:           cfg.ListenPort,
		Surface:        routes.Router,
		RequestTimeout: cfg.FetchTimeout + 3*time.Second,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
	}, loggerClient, d)

	return &Router{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		monitor:     monitor,
	}
}

func (a *Router) Run() error {
	a.logger.Infof("🚀 Starting roomrouter v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("roomrouter %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)
	a.logger.Info("shard discovery configured",
		logger.String("service", a.cfg.HeadlessService),
		logger.Int("fallback_port", a.cfg.ShardPort))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.monitor != nil {
		a.monitor.Start(ctx)
		a.logger.Info("fleet monitor started",
			logger.Duration("interval", a.cfg.ProbeInterval))
	}

	err := serve(ctx, a.server, a.cfg.ShutdownTimeout, a.logger)

	if a.monitor != nil {
		a.monitor.Stop()
	}

	if a.redisClient != nil {
		if cerr := a.redisClient.Close(); cerr != nil {
			a.logger.Warnf("failed to close redis: %v", cerr)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}

	if err != nil {
		return err
	}
	a.logger.Info("✅ roomrouter stopped cleanly")
	return nil
}
