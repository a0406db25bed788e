package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadRouterDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "WS_HEADLESS_SERVICE", "WS_POD_PORT", "CACHE_TTL", "CACHE_TTL_MS",
		"METRICS_FETCH_TIMEOUT", "ROUTER_REDIS_ADDR", "TRUST_PROXY", "ADMIN_ALLOWED_CIDRS"} {
		t.Setenv(k, "")
	}

	cfg := LoadRouter()

	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
	if cfg.HeadlessService != "ws-app-srv-headless.ws-app-ns.svc.cluster.local" {
		t.Errorf("HeadlessService = %q", cfg.HeadlessService)
	}
	if cfg.ShardPort != 8080 {
		t.Errorf("ShardPort = %d, want 8080", cfg.ShardPort)
	}
	if cfg.CacheTTL != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", cfg.CacheTTL)
	}
	if cfg.FetchTimeout != 2*time.Second {
		t.Errorf("FetchTimeout = %v, want 2s", cfg.FetchTimeout)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
	if cfg.TrustProxy {
		t.Error("TrustProxy should default to false")
	}
	if cfg.AllowedCIDRS != nil {
		t.Errorf("AllowedCIDRS = %v, want nil", cfg.AllowedCIDRS)
	}
}

func TestLoadRouterOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("WS_HEADLESS_SERVICE", "shards.test.local")
	t.Setenv("CACHE_TTL", "")
	t.Setenv("CACHE_TTL_MS", "1500")
	t.Setenv("ADMIN_ALLOWED_CIDRS", "10.0.0.0/8, '192.168.1.0/24'")
	t.Setenv("ROUTER_REDIS_ADDR", "redis:6379")

	cfg := LoadRouter()

	if cfg.ListenPort != ":9090" {
		t.Errorf("ListenPort = %q, want :9090", cfg.ListenPort)
	}
	if cfg.HeadlessService != "shards.test.local" {
		t.Errorf("HeadlessService = %q", cfg.HeadlessService)
	}
	if cfg.CacheTTL != 1500*time.Millisecond {
		t.Errorf("CacheTTL = %v, want 1.5s", cfg.CacheTTL)
	}
	want := []string{"10.0.0.0/8", "192.168.1.0/24"}
	if !reflect.DeepEqual(cfg.AllowedCIDRS, want) {
		t.Errorf("AllowedCIDRS = %v, want %v", cfg.AllowedCIDRS, want)
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
}

func TestCacheTTLPrecedence(t *testing.T) {
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("CACHE_TTL_MS", "1000")
	if got := cacheTTL(time.Minute); got != 30*time.Second {
		t.Errorf("cacheTTL() = %v, want 30s", got)
	}

	t.Setenv("CACHE_TTL", "bogus")
	if got := cacheTTL(time.Minute); got != time.Second {
		t.Errorf("cacheTTL() = %v, want 1s", got)
	}
}

func TestLoadShard(t *testing.T) {
	t.Setenv("HOSTNAME", "ws-app-2")
	t.Setenv("POD_IP", "10.4.0.7")
	t.Setenv("PORT", "0.0.0.0:8081")
	t.Setenv("NAMESPACE", "")
	t.Setenv("WS_READ_LIMIT", "")
	t.Setenv("WS_PONG_WAIT", "")

	cfg := LoadShard()

	if cfg.ServerID != "ws-app-2" || cfg.PodID != "ws-app-2" {
		t.Errorf("ServerID/PodID = %q/%q, want ws-app-2", cfg.ServerID, cfg.PodID)
	}
	if cfg.Port != 8081 {
		t.Errorf("Port = %d, want 8081", cfg.Port)
	}
	if cfg.Namespace != "default" {
		t.Errorf("Namespace = %q, want default", cfg.Namespace)
	}
	if cfg.IngressHost != "*" {
		t.Errorf("IngressHost = %q, want *", cfg.IngressHost)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
	}
	if cfg.ReadLimit != 64<<10 {
		t.Errorf("ReadLimit = %d, want 65536", cfg.ReadLimit)
	}
	if cfg.PongWait != time.Minute {
		t.Errorf("PongWait = %v, want 1m", cfg.PongWait)
	}
}

func TestShardIDFallback(t *testing.T) {
	id := shardID("")
	if !strings.HasPrefix(id, "local-") || len(id) != len("local-")+8 {
		t.Errorf("shardID(\"\") = %q, want local-<8 chars>", id)
	}
	if shardID("ws-0") != "ws-0" {
		t.Error("hostname should be used verbatim")
	}
}

func TestListenAddr(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"8080", ":8080"},
		{":8080", ":8080"},
		{"127.0.0.1:9000", "127.0.0.1:9000"},
	}
	for _, tt := range tests {
		if got := listenAddr(tt.in); got != tt.want {
			t.Errorf("listenAddr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(` a , "b",, 'c' `)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitAndTrim() = %v, want %v", got, want)
	}
	if splitAndTrim("") != nil {
		t.Error("empty input should yield nil")
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}
