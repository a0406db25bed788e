package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/roomrouter/internal/config"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/deps"
	"github.com/MrSnakeDoc/roomrouter/internal/httpserver/routes"
	"github.com/MrSnakeDoc/roomrouter/internal/ingress"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
	"github.com/MrSnakeDoc/roomrouter/internal/metrics"
	"github.com/MrSnakeDoc/roomrouter/internal/rooms"
	"github.com/MrSnakeDoc/roomrouter/internal/transport/ws"
	"github.com/MrSnakeDoc/roomrouter/internal/utils"
	"github.com/MrSnakeDoc/roomrouter/internal/version"
)

// Shard is the session server process.
type Shard struct {
	cfg       *config.Shard
	logger    logger.Logger
	server    *httpserver.Server
	registrar *ingress.FileRegistrar
}

func NewShard() *Shard {
	cfg := config.LoadShard()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog).With(logger.String("shard", cfg.ServerID))

	reg := newRegistry()
	shardMetrics := metrics.NewShardMetricsWithRegistry(reg)
	registry := rooms.NewRegistry(cfg.ServerID, loggerClient, shardMetrics)

	podIP := cfg.PodIP
	if podIP == "" {
		podIP = utils.LocalIPv4()
		loggerClient.Info("POD_IP not set, using detected address", logger.String("pod_ip", podIP))
	}
	ingressOpts := ingress.Options{
		PodID:     cfg.PodID,
		PodIP:     podIP,
		Port:      cfg.Port,
		Namespace: cfg.Namespace,
		Domain:    cfg.IngressHost,
		Gateway:   cfg.Gateway,
	}

	var registrar *ingress.FileRegistrar
	if cfg.ManifestDir != "" {
		registrar = ingress.NewFileRegistrar(cfg.ManifestDir, ingressOpts, loggerClient)
	}

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		Gatherer:     reg,
		Rooms:        registry,
		Ingress:      ingressOpts,
		WebSocket: ws.NewHandler(registry, ws.Options{
			WriteTimeout:   cfg.WriteTimeout,
			ReadLimit:      cfg.ReadLimit,
			PongWait:       cfg.PongWait,
			AllowedOrigins: cfg.AllowedOrigins,
			Metrics:        shardMetrics,
		}, loggerClient),
	}

	// No request, read or write timeouts: websocket sessions outlive any of them.
	server := httpserver.New(httpserver.Options{
		Addr:    cfg.ListenPort,
		Surface: routes.Shard,
	}, loggerClient, d)

	return &Shard{
		cfg:       cfg,
		logger:    loggerClient,
		server:    server,
		registrar: registrar,
	}
}

func (a *Shard) Run() error {
	a.logger.Infof("🚀 Starting roomshard v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("roomshard %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.registrar != nil {
		if err := a.registrar.Register(ctx); err != nil {
			a.logger.Error("failed to publish ingress manifests", logger.Error(err))
		}
	}

	err := serve(ctx, a.server, a.cfg.ShutdownTimeout, a.logger)

	if a.registrar != nil {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		if derr := a.registrar.Deregister(cleanupCtx); derr != nil {
			a.logger.Warn("failed to withdraw ingress manifests", logger.Error(derr))
		}
		cancel()
	}

	if err != nil {
		return err
	}
	a.logger.Info("✅ roomshard stopped cleanly")
	return nil
}
