// Package placement decides which shard serves a room.
package placement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
	"github.com/MrSnakeDoc/roomrouter/internal/metrics"
)

// Discoverer resolves the live shard list.
type Discoverer interface {
	Discover(ctx context.Context) ([]domain.ShardAddress, error)
}

// Aggregator collects a fleet view from a shard list.
type Aggregator interface {
	Aggregate(ctx context.Context, shards []domain.ShardAddress) domain.FleetView
}

// Options wires a Selector.
type Options struct {
	Cache      Cache
	Discoverer Discoverer
	Aggregator Aggregator
	Metrics    *metrics.PlacementMetrics // optional
	Now        func() time.Time          // optional, stamps cache entries
}

// Selector runs the placement algorithm.
type Selector struct {
	cache      Cache
	discoverer Discoverer
	aggregator Aggregator
	metrics    *metrics.PlacementMetrics
	now        func() time.Time
	logger     logger.Logger
}

// NewSelector creates a selector. Cache, Discoverer and Aggregator are required.
func NewSelector(opts Options, log logger.Logger) *Selector {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Selector{
		cache:      opts.Cache,
		discoverer: opts.Discoverer,
		aggregator: opts.Aggregator,
		metrics:    opts.Metrics,
		now:        now,
		logger:     log,
	}
}

// PlaceRoom returns the shard that should serve roomID.
//
// A valid cache entry is returned without touching the fleet. Otherwise the
// fleet is discovered and aggregated: a shard already owning the room wins
// regardless of load, else the shard with the fewest connections wins, first
// in discovery order on ties. The decision is cached before returning.
func (s *Selector) PlaceRoom(ctx context.Context, roomID string) (domain.Placement, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return domain.Placement{}, domain.ErrInvalidRoom
	}

	if p, ok := s.fromCache(ctx, roomID); ok {
		s.metrics.RecordDecision(domain.SourceCache)
		return p, nil
	}

	view, err := s.Fleet(ctx)
	if err != nil {
		s.metrics.RecordFailure(metrics.ReasonDiscovery)
		return domain.Placement{}, err
	}
	if view.Empty() {
		s.metrics.RecordFailure(metrics.ReasonNoShards)
		s.logger.Warn("no shards available for room",
			logger.String("room", roomID),
			logger.Int("unreachable", view.Failed))
		return domain.Placement{}, domain.ErrNoShardsAvailable
	}

	chosen, source := choose(view.Servers, roomID)
	p := domain.Placement{
		RoomID:  roomID,
		ShardID: chosen.ServerID,
		Address: chosen.Address,
		Source:  source,
	}

	if source == domain.SourceSticky {
		s.logger.Info("room already exists on shard",
			logger.String("room", roomID),
			logger.String("shard", p.ShardID))
	} else {
		s.logger.Info("selected least loaded shard",
			logger.String("room", roomID),
			logger.String("shard", p.ShardID),
			logger.Int("connections", chosen.ConnectionCount))
	}

	entry := domain.CacheEntry{
		RoomID:    roomID,
		ShardID:   p.ShardID,
		Address:   p.Address,
		CreatedAt: s.now(),
	}
	if err := s.cache.Put(ctx, entry); err != nil {
		s.logger.Warn("failed to cache placement",
			logger.String("room", roomID),
			logger.Error(err))
	}

	s.metrics.RecordDecision(source)
	return p, nil
}

// Fleet discovers shards and aggregates their snapshots. Discovery errors are
// returned unchanged; per-shard failures only show up in FleetView.Failed.
func (s *Selector) Fleet(ctx context.Context) (domain.FleetView, error) {
	shards, err := s.discoverer.Discover(ctx)
	if err != nil {
		s.logger.Error("shard discovery failed", logger.Error(err))
		return domain.FleetView{}, err
	}
	return s.aggregator.Aggregate(ctx, shards), nil
}

// ClearCache drops every cached placement.
func (s *Selector) ClearCache(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear placement cache: %w", err)
	}
	s.metrics.RecordCacheClear()
	s.logger.Info("placement cache cleared")
	return nil
}

func (s *Selector) fromCache(ctx context.Context, roomID string) (domain.Placement, bool) {
	entry, err := s.cache.Get(ctx, roomID)
	if err != nil {
		s.logger.Warn("placement cache read failed, treating as miss",
			logger.String("room", roomID),
			logger.Error(err))
		return domain.Placement{}, false
	}
	if entry == nil {
		return domain.Placement{}, false
	}

	s.logger.Debug("placement cache hit",
		logger.String("room", roomID),
		logger.String("shard", entry.ShardID))
	return domain.Placement{
		RoomID:  roomID,
		ShardID: entry.ShardID,
		Address: entry.Address,
		Source:  domain.SourceCache,
	}, true
}

// choose applies sticky ownership, then least connections. servers must not be empty.
func choose(servers []domain.ShardSnapshot, roomID string) (domain.ShardSnapshot, string) {
	for _, s := range servers {
		if s.Owns(roomID) {
			return s, domain.SourceSticky
		}
	}

	best := servers[0]
	for _, s := range servers[1:] {
		if s.ConnectionCount < best.ConnectionCount {
			best = s
		}
	}
	return best, domain.SourceLeastLoaded
}
