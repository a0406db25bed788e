// Package fleet gathers load snapshots from every discovered shard.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
	"github.com/MrSnakeDoc/roomrouter/internal/metrics"
	"github.com/MrSnakeDoc/roomrouter/internal/utils"
)

const (
	// DefaultFetchTimeout bounds a single shard snapshot request.
	DefaultFetchTimeout = 2 * time.Second

	// SnapshotPath is where every shard exposes its snapshot.
	SnapshotPath = "/metrics"

	maxSnapshotBytes = 4 << 20
)

// Options configures an Aggregator.
type Options struct {
	FetchTimeout time.Duration // per-shard timeout (default: 2s)
	Client       *http.Client  // optional, for tests
}

// Aggregator fans snapshot requests out to shards.
type Aggregator struct {
	client  *http.Client
	timeout time.Duration
	logger  logger.Logger
	metrics *metrics.PlacementMetrics
}

// remoteSnapshot is the payload served by a shard's snapshot endpoint.
type remoteSnapshot struct {
	ServerID        string         `json:"serverId"`
	ConnectionCount *int           `json:"connectionCount"`
	RoomCount       int            `json:"roomCount"`
	Rooms           map[string]int `json:"rooms"`
}

// New creates an aggregator. m may be nil.
func New(opts Options, log logger.Logger, m *metrics.PlacementMetrics) *Aggregator {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: timeout,
			},
		}
	}

	return &Aggregator{
		client:  client,
		timeout: timeout,
		logger:  log,
		metrics: m,
	}
}

// Aggregate queries every shard concurrently and never fails as a whole.
//
// Shards that time out, answer with a non-2xx status or serve a malformed
// payload are logged and counted in FleetView.Failed. Servers keeps the order
// of shards, independent of completion order.
func (a *Aggregator) Aggregate(ctx context.Context, shards []domain.ShardAddress) domain.FleetView {
	if len(shards) == 0 {
		return domain.FleetView{Servers: []domain.ShardSnapshot{}}
	}

	type result struct {
		snap domain.ShardSnapshot
		err  error
	}
	results := make([]result, len(shards))

	var wg sync.WaitGroup
	for i, shard := range shards {
		wg.Add(1)
		go func(i int, shard domain.ShardAddress) {
			defer wg.Done()
			snap, err := a.fetch(ctx, shard)
			results[i] = result{snap: snap, err: err}
		}(i, shard)
	}
	wg.Wait()

	view := domain.FleetView{Servers: make([]domain.ShardSnapshot, 0, len(shards))}
	for i, res := range results {
		if res.err != nil {
			view.Failed++
			a.metrics.RecordFetchFailure()
			a.logger.Warn("failed to fetch shard snapshot",
				logger.String("shard", shards[i].ID),
				logger.String("address", shards[i].HostPort()),
				logger.Error(res.err))
			continue
		}
		view.Servers = append(view.Servers, res.snap)
	}
	view.Count = len(view.Servers)

	a.metrics.ObserveFleet(view.Count, view.Failed)
	return view
}

func (a *Aggregator) fetch(ctx context.Context, shard domain.ShardAddress) (domain.ShardSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	url := "http://" + shard.HostPort() + SnapshotPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return domain.ShardSnapshot{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return domain.ShardSnapshot{}, fmt.Errorf("request failed: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.ShardSnapshot{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var remote remoteSnapshot
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSnapshotBytes)).Decode(&remote); err != nil {
		return domain.ShardSnapshot{}, fmt.Errorf("malformed snapshot: %w", err)
	}
	if remote.ConnectionCount == nil {
		return domain.ShardSnapshot{}, fmt.Errorf("malformed snapshot: missing connectionCount")
	}

	id := shard.ID
	if remote.ServerID != "" {
		id = remote.ServerID
	}
	rooms := remote.Rooms
	if rooms == nil {
		rooms = map[string]int{}
	}

	return domain.ShardSnapshot{
		ServerID:        id,
		Address:         shard.Address,
		ConnectionCount: *remote.ConnectionCount,
		RoomCount:       remote.RoomCount,
		Rooms:           rooms,
	}, nil
}
