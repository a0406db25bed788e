package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Server holds the settings shared by both binaries.
type Server struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)
}

// Router configures cmd/roomrouter.
type Router struct {
	Server

	HeadlessService string        // DNS name resolved for shards
	ShardPort       int           // port used when discovery falls back to A records
	CacheTTL        time.Duration // placement reuse window
	FetchTimeout    time.Duration // per-shard snapshot request timeout
	ProbeInterval   time.Duration // fleet monitor interval, 0 disables

	// Redis, optional. Empty RedisAddr keeps the placement cache in memory.
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration // timeout for each ping attempt
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	RedisWarnThreshold  int           // warn after this many attempts

	AllowedHosts    []string // optional, restrict access to specific Host headers
	AllowedCIDRS    []string // optional, restrict admin routes to these networks
	TrustProxy      bool     // true => trust X-Forwarded-For headers
	RateLimitBurst  int      // placement lookups per client, burst
	RateLimitPerMin int      // placement lookups per client, sustained
}

// Shard configures cmd/roomshard.
type Shard struct {
	Server

	ServerID     string        // HOSTNAME, or a generated local id
	PodID        string        // HOSTNAME as set by Kubernetes, empty outside a pod
	PodIP        string        // POD_IP, empty if unset
	Port         int           // numeric form of ListenPort
	Namespace    string        // ex: "ws-app-ns"
	IngressHost  string        // INGRESS_DOMAIN, ex: "*"
	Gateway      string        // ex: "istio-system/istio-ingressgateway"
	ManifestDir  string        // empty disables ingress registration
	WriteTimeout time.Duration // websocket frame write timeout
	ReadLimit    int64         // largest inbound websocket message in bytes
	PongWait     time.Duration // websocket silence allowed before a peer is dropped

	AllowedOrigins []string // websocket origins, empty allows any
	AllowedHosts   []string
}

func loadServer() Server {
	return Server{
		ListenPort:      listenAddr(getenv("PORT", "8080")),
		ShutdownTimeout: mustDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		PrettyLog:       mustBool("PRETTY_LOG", true),
	}
}

// LoadRouter reads the router configuration from the environment.
func LoadRouter() *Router {
	cfg := &Router{
		Server: loadServer(),

		// Placement
		HeadlessService: getenv("WS_HEADLESS_SERVICE", "ws-app-srv-headless.ws-app-ns.svc.cluster.local"),
		ShardPort:       getenvInt("WS_POD_PORT", 8080),
		CacheTTL:        cacheTTL(time.Minute),
		FetchTimeout:    mustDuration("METRICS_FETCH_TIMEOUT", 2*time.Second),
		ProbeInterval:   mustDuration("FLEET_PROBE_INTERVAL", 30*time.Second),

		// Redis settings
		RedisAddr:           getenv("ROUTER_REDIS_ADDR", ""),
		RedisUser:           getenv("ROUTER_REDIS_USERNAME", ""),
		RedisPassword:       getenv("ROUTER_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("ROUTER_REDIS_DB", 0),
		RedisDT:             mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:  getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts:    splitAndTrim(getenv("ALLOWED_HOSTS", "")),
		AllowedCIDRS:    splitAndTrim(getenv("ADMIN_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("TRUST_PROXY", false),
		RateLimitBurst:  getenvInt("RATE_LIMIT_BURST", 60),
		RateLimitPerMin: getenvInt("RATE_LIMIT_PER_MIN", 600),
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfgCopy.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// LoadShard reads the shard configuration from the environment.
func LoadShard() *Shard {
	srv := loadServer()
	podID := os.Getenv("HOSTNAME")

	cfg := &Shard{
		Server: srv,

		ServerID:     shardID(podID),
		PodID:        podID,
		PodIP:        getenv("POD_IP", ""),
		Port:         portNumber(srv.ListenPort, 8080),
		Namespace:    getenv("NAMESPACE", "default"),
		IngressHost:  getenv("INGRESS_DOMAIN", "*"),
		Gateway:      getenv("ISTIO_INGRESS_GATEWAY", "istio-system/istio-ingressgateway"),
		ManifestDir:  getenv("INGRESS_MANIFEST_DIR", ""),
		WriteTimeout: mustDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		ReadLimit:    int64(getenvInt("WS_READ_LIMIT", 64<<10)),
		PongWait:     mustDuration("WS_PONG_WAIT", 60*time.Second),

		AllowedOrigins: splitAndTrim(getenv("ALLOWED_ORIGINS", "")),
		AllowedHosts:   splitAndTrim(getenv("ALLOWED_HOSTS", "")),
	}

	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", *cfg)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// cacheTTL prefers CACHE_TTL, then the millisecond form CACHE_TTL_MS.
func cacheTTL(def time.Duration) time.Duration {
	if d := mustDuration("CACHE_TTL", 0); d > 0 {
		return d
	}
	if ms := getenvInt("CACHE_TTL_MS", 0); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// listenAddr turns "8080" into ":8080" and leaves "host:port" alone.
func listenAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func portNumber(addr string, def int) int {
	idx := strings.LastIndex(addr, ":")
	if p, err := strconv.Atoi(addr[idx+1:]); err == nil && p > 0 {
		return p
	}
	return def
}

// shardID is the pod name, or "local-" plus 8 random hex chars outside Kubernetes.
func shardID(hostname string) string {
	if hostname != "" {
		return hostname
	}
	return "local-" + uuid.NewString()[:8]
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
