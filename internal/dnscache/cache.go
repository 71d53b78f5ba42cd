// Package dnscache caches DNS-over-HTTPS resolutions per domain.
//
// Entries never expire; they are replaced only by explicit Invalidate or
// Clear. Failed lookups are not cached, so a later call retries.
package dnscache

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/khanhnv2901/sparrow-cli/internal/metrics"
	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// KnownProviders lists the built-in DoH endpoints by short name.
var KnownProviders = map[string]string{
	"google":     "https://dns.google/dns-query",
	"cloudflare": "https://cloudflare-dns.com/dns-query",
	"powerdns":   "https://doh.powerdns.org",
}

// Cache maps domain to its resolved IPv4 addresses.
type Cache struct {
	resolver Resolver
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu       sync.RWMutex
	entries  map[string][]string
	provider string

	group singleflight.Group
}

// New creates an empty cache. An empty provider selects the default endpoint.
func New(resolver Resolver, provider string, logger *zap.Logger, m *metrics.Metrics) (*Cache, error) {
	if resolver == nil {
		resolver = NewDoHResolver(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	if provider == "" {
		provider = consts.DefaultDoHProvider
	}
	provider, err := normalizeProvider(provider)
	if err != nil {
		return nil, err
	}
	return &Cache{
		resolver: resolver,
		logger:   logger,
		metrics:  m,
		entries:  make(map[string][]string),
		provider: provider,
	}, nil
}

// Resolve returns the cached addresses for domain, querying the current
// provider on a miss. Concurrent misses for one domain share a single query.
// The shared query is not bound to any one caller: a caller whose ctx ends
// returns ctx.Err() while the query keeps running for the others, limited
// by HTTPProbeTimeout.
func (c *Cache) Resolve(ctx context.Context, domain string) ([]string, error) {
	key := normalizeDomain(domain)
	if key == "" {
		return nil, &sharedErrors.ParseError{Input: domain, Reason: "empty domain"}
	}

	if ips, ok := c.lookup(key); ok {
		c.metrics.DNSCacheHits.Inc()
		return ips, nil
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		// a concurrent call may have filled the entry while we waited
		if ips, ok := c.lookup(key); ok {
			return ips, nil
		}

		c.metrics.DNSCacheMisses.Inc()
		provider := c.Provider()
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), consts.HTTPProbeTimeout)
		defer cancel()
		ips, err := c.resolver.Query(qctx, provider, key)
		if err != nil {
			c.logger.Debug("doh resolution failed",
				zap.String("domain", key),
				zap.String("provider", provider),
				zap.Error(err),
			)
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = ips
		c.metrics.DNSCacheEntries.Set(float64(len(c.entries)))
		c.mu.Unlock()

		c.logger.Debug("domain resolved", zap.String("domain", key), zap.Strings("ips", ips))
		return ips, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]string)), nil
	}
}

func (c *Cache) lookup(key string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ips, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return clone(ips), true
}

// Provider returns the endpoint used for subsequent misses.
func (c *Cache) Provider() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provider
}

// SetProvider switches the endpoint. It accepts a URL or a KnownProviders
// name and leaves cached entries untouched.
func (c *Cache) SetProvider(provider string) error {
	normalized, err := normalizeProvider(provider)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.provider = normalized
	c.mu.Unlock()
	c.logger.Info("doh provider changed", zap.String("provider", normalized))
	return nil
}

// Invalidate evicts one domain. It reports whether an entry existed.
func (c *Cache) Invalidate(domain string) bool {
	key := normalizeDomain(domain)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false
	}
	delete(c.entries, key)
	c.metrics.DNSCacheEntries.Set(float64(len(c.entries)))
	return true
}

// Clear evicts every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]string)
	c.metrics.DNSCacheEntries.Set(0)
	c.mu.Unlock()
}

// Domains lists cached domains, sorted.
func (c *Cache) Domains() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for domain := range c.entries {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// Entries returns a copy of the whole cache.
func (c *Cache) Entries() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]string, len(c.entries))
	for domain, ips := range c.entries {
		out[domain] = clone(ips)
	}
	return out
}

// LookupHost makes the cache usable wherever a host resolver is expected.
func (c *Cache) LookupHost(ctx context.Context, host string) ([]string, error) {
	return c.Resolve(ctx, host)
}

func normalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
}

func normalizeProvider(provider string) (string, error) {
	provider = strings.TrimSpace(provider)
	if known, ok := KnownProviders[strings.ToLower(provider)]; ok {
		return known, nil
	}
	u, err := url.Parse(provider)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("doh provider %q: %w", provider, sharedErrors.ErrInvalidInput)
	}
	return provider, nil
}

func clone(ips []string) []string {
	return append([]string(nil), ips...)
}
