package fleet

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
	"github.com/MrSnakeDoc/roomrouter/internal/metrics"
)

func shardServer(t *testing.T, id string, h http.HandlerFunc) domain.ShardAddress {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return domain.ShardAddress{ID: id, Address: host, Port: port}
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != SnapshotPath {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func slowHandler(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(2 * time.Second):
	}
}

func newAggregator(m *metrics.PlacementMetrics) *Aggregator {
	return New(Options{FetchTimeout: 150 * time.Millisecond}, logger.Nop(), m)
}

func TestAggregateEmptyShortCircuits(t *testing.T) {
	view := newAggregator(nil).Aggregate(context.Background(), nil)

	assert.True(t, view.Empty())
	assert.Equal(t, 0, view.Failed)
	assert.NotNil(t, view.Servers)
}

func TestAggregatePartialFailure(t *testing.T) {
	shards := []domain.ShardAddress{
		shardServer(t, "ws-0", jsonHandler(`{"serverId":"ws-0","connectionCount":5,"roomCount":1,"rooms":{"a":5}}`)),
		shardServer(t, "ws-1", slowHandler),
		shardServer(t, "ws-2", jsonHandler(`{"serverId":"ws-2","connectionCount":2,"roomCount":0,"rooms":{}}`)),
		shardServer(t, "ws-3", jsonHandler(`{"serverId":"ws-3","connectionCount":9,"roomCount":2,"rooms":{"b":4,"c":5}}`)),
	}
	m := metrics.NewPlacementMetricsWithRegistry(prometheus.NewRegistry())

	start := time.Now()
	view := newAggregator(m).Aggregate(context.Background(), shards)

	assert.Less(t, time.Since(start), time.Second, "slow shard must not block the pass")
	assert.Equal(t, 3, view.Count)
	assert.Equal(t, 1, view.Failed)
	require.Len(t, view.Servers, 3)
	assert.Equal(t, "ws-0", view.Servers[0].ServerID)
	assert.Equal(t, "ws-2", view.Servers[1].ServerID)
	assert.Equal(t, "ws-3", view.Servers[2].ServerID)
	assert.True(t, view.Servers[2].Owns("c"))
}

func TestAggregatePreservesDiscoveryOrder(t *testing.T) {
	var delayed atomic.Bool
	first := shardServer(t, "first", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		delayed.Store(true)
		jsonHandler(`{"connectionCount":1}`)(w, r)
	})
	second := shardServer(t, "second", jsonHandler(`{"connectionCount":1}`))

	view := newAggregator(nil).Aggregate(context.Background(), []domain.ShardAddress{first, second})

	require.True(t, delayed.Load())
	require.Len(t, view.Servers, 2)
	assert.Equal(t, "first", view.Servers[0].ServerID)
	assert.Equal(t, "second", view.Servers[1].ServerID)
}

func TestAggregateRemoteIdentityWins(t *testing.T) {
	shard := shardServer(t, "10.0.0.7", jsonHandler(`{"serverId":"ws-logical","connectionCount":3}`))

	view := newAggregator(nil).Aggregate(context.Background(), []domain.ShardAddress{shard})

	require.Len(t, view.Servers, 1)
	assert.Equal(t, "ws-logical", view.Servers[0].ServerID)
	assert.Equal(t, shard.Address, view.Servers[0].Address)
	assert.Equal(t, 3, view.Servers[0].ConnectionCount)
	assert.NotNil(t, view.Servers[0].Rooms)
}

func TestAggregateFallsBackToDiscoveredIdentity(t *testing.T) {
	shard := shardServer(t, "ws-9", jsonHandler(`{"connectionCount":0}`))

	view := newAggregator(nil).Aggregate(context.Background(), []domain.ShardAddress{shard})

	require.Len(t, view.Servers, 1)
	assert.Equal(t, "ws-9", view.Servers[0].ServerID)
}

func TestAggregateRejectsBadResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"not found", http.NotFound},
		{"malformed json", jsonHandler(`{"connectionCount":`)},
		{"missing connection count", jsonHandler(`{"serverId":"x"}`)},
		{"wrong type", jsonHandler(`{"connectionCount":"many"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shard := shardServer(t, "bad", tt.handler)
			m := metrics.NewPlacementMetricsWithRegistry(prometheus.NewRegistry())

			view := newAggregator(m).Aggregate(context.Background(), []domain.ShardAddress{shard})

			assert.True(t, view.Empty())
			assert.Equal(t, 1, view.Failed)
		})
	}
}

func TestAggregateUnreachableShard(t *testing.T) {
	// Reserve a port and close it so the dial is refused.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	shard := domain.ShardAddress{ID: "gone", Address: "127.0.0.1", Port: addr.Port}
	view := newAggregator(nil).Aggregate(context.Background(), []domain.ShardAddress{shard})

	assert.True(t, view.Empty())
	assert.Equal(t, 1, view.Failed)
}
