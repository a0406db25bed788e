// Package discovery resolves the live session-server fleet from DNS.
package discovery

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/MrSnakeDoc/roomrouter/internal/domain"
	"github.com/MrSnakeDoc/roomrouter/internal/logger"
)

// Resolver is the subset of net.Resolver used for discovery.
type Resolver interface {
	LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error)
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// Options configures a Registry.
type Options struct {
	Service     string   // headless service name, ex: "ws-app-srv-headless.ws-app-ns.svc.cluster.local"
	DefaultPort int      // port used for address-record fallback
	Resolver    Resolver // defaults to net.DefaultResolver
}

// Registry discovers shards. It keeps no topology between calls.
type Registry struct {
	service     string
	defaultPort int
	resolver    Resolver
	logger      logger.Logger
}

// New creates a discovery registry.
func New(opts Options, log logger.Logger) *Registry {
	r := opts.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	return &Registry{
		service:     opts.Service,
		defaultPort: opts.DefaultPort,
		resolver:    r,
		logger:      log,
	}
}

// Discover returns the current shard list.
//
// SRV records are tried first. Address records are only consulted when the SRV
// query fails outright; an SRV answer with zero records is an empty fleet, not a
// failure. A *domain.DiscoveryError is returned when both lookups fail.
func (r *Registry) Discover(ctx context.Context) ([]domain.ShardAddress, error) {
	shards, srvErr := r.lookupSRV(ctx)
	if srvErr == nil {
		r.logger.Debug("srv discovery succeeded",
			logger.String("service", r.service),
			logger.Int("shards", len(shards)))
		return shards, nil
	}

	r.logger.Warn("srv lookup failed, trying address record fallback",
		logger.String("service", r.service),
		logger.Error(srvErr))

	shards, aErr := r.lookupA(ctx)
	if aErr != nil {
		r.logger.Error("shard discovery failed",
			logger.String("service", r.service),
			logger.Error(aErr))
		return nil, &domain.DiscoveryError{Service: r.service, SRVErr: srvErr, AErr: aErr}
	}
	return shards, nil
}

func (r *Registry) lookupSRV(ctx context.Context) ([]domain.ShardAddress, error) {
	_, records, err := r.resolver.LookupSRV(ctx, "", "", r.service)
	if err != nil {
		if isNotFound(err) {
			return []domain.ShardAddress{}, nil
		}
		if len(records) == 0 {
			return nil, err
		}
		// Records with malformed targets are dropped by the resolver; the rest are usable.
		r.logger.Warn("srv answer partially invalid, using valid records",
			logger.String("service", r.service),
			logger.Int("records", len(records)),
			logger.Error(err))
	}

	shards := make([]domain.ShardAddress, 0, len(records))
	for _, rec := range records {
		target := strings.TrimSuffix(rec.Target, ".")
		if target == "" {
			continue
		}
		shards = append(shards, domain.ShardAddress{
			ID:      shardID(target),
			Address: target,
			Port:    int(rec.Port),
		})
	}
	return shards, nil
}

func (r *Registry) lookupA(ctx context.Context) ([]domain.ShardAddress, error) {
	ips, err := r.resolver.LookupIP(ctx, "ip4", r.service)
	if err != nil {
		if isNotFound(err) {
			return []domain.ShardAddress{}, nil
		}
		return nil, err
	}

	shards := make([]domain.ShardAddress, 0, len(ips))
	for _, ip := range ips {
		s := ip.String()
		shards = append(shards, domain.ShardAddress{
			ID:      s,
			Address: s,
			Port:    r.defaultPort,
		})
	}
	return shards, nil
}

// shardID returns the first DNS label: "ws-0.ws-svc.ns.svc" -> "ws-0".
func shardID(target string) string {
	if i := strings.IndexByte(target, '.'); i >= 0 {
		return target[:i]
	}
	return target
}

// isNotFound treats NXDOMAIN / empty answers as a successful empty resolution.
func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
