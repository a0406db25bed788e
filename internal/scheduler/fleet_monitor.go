// Package scheduler runs the router's periodic background work.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
	"github.com/MrSnakeDoc/roomrouter/internal/metrics"
)

// DefaultProbeInterval is how often the fleet is probed.
const DefaultProbeInterval = 30 * time.Second

// FleetSource yields the current fleet view.
type FleetSource interface {
	Fleet(ctx context.Context) (domain.FleetView, error)
}

// FleetMonitor periodically probes the fleet and publishes its size.
type FleetMonitor struct {
	source   FleetSource
	metrics  *metrics.PlacementMetrics
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once

	mu    sync.RWMutex
	known map[string]bool // serverId -> answered on the last probe
	last  time.Time
	ok    bool
}

// NewFleetMonitor creates a monitor. interval defaults to DefaultProbeInterval.
func NewFleetMonitor(source FleetSource, m *metrics.PlacementMetrics, log logger.Logger, interval time.Duration) *FleetMonitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &FleetMonitor{
		source:   source,
		metrics:  m,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
		known:    make(map[string]bool),
	}
}

// Start probes once, then on every tick until Stop or ctx is done.
func (fm *FleetMonitor) Start(ctx context.Context) {
	fm.Probe(ctx)

	ticker := time.NewTicker(fm.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fm.Probe(ctx)
			case <-fm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the monitor. Safe to call more than once.
func (fm *FleetMonitor) Stop() {
	fm.stopOnce.Do(func() { close(fm.stopCh) })
}

// Probe runs a single discovery and aggregation round.
func (fm *FleetMonitor) Probe(ctx context.Context) {
	view, err := fm.source.Fleet(ctx)

	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.last = time.Now()

	if err != nil {
		fm.ok = false
		fm.logger.Warn("fleet probe failed", logger.Error(err))
		return
	}
	fm.ok = true
	fm.metrics.ObserveFleet(view.Count, view.Failed)

	current := make(map[string]bool, len(view.Servers))
	for _, s := range view.Servers {
		current[s.ServerID] = true
		if !fm.known[s.ServerID] {
			fm.logger.Info("shard joined fleet",
				logger.String("shard", s.ServerID),
				logger.String("address", s.Address))
		}
	}

	var gone []string
	for id := range fm.known {
		if !current[id] {
			gone = append(gone, id)
		}
	}
	if len(gone) > 0 {
		sort.Strings(gone)
		fm.logger.Warn("shards no longer answering",
			logger.Strings("shards", gone),
			logger.Int("unreachable", view.Failed))
	}

	fm.known = current
	fm.logger.Debug("fleet probe completed",
		logger.Int("shards", view.Count),
		logger.Int("unreachable", view.Failed))
}

// Healthy reports whether the last probe reached discovery. It is false
// before the first probe.
func (fm *FleetMonitor) Healthy() bool {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return fm.ok
}
