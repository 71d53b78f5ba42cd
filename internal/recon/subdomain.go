package recon

import (
	"context"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// DefaultSubdomainWords is the built-in discovery wordlist.
var DefaultSubdomainWords = []string{
	"www", "mail", "ftp", "admin", "blog", "dev",
	"test", "staging", "api", "portal", "vpn",
}

// HostResolver resolves a name to addresses. *net.Resolver satisfies it.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// HostResolverFunc adapts a function to HostResolver.
type HostResolverFunc func(ctx context.Context, host string) ([]string, error)

// LookupHost calls f(ctx, host).
func (f HostResolverFunc) LookupHost(ctx context.Context, host string) ([]string, error) {
	return f(ctx, host)
}

// Subdomain is a discovered name with its first resolved address.
type Subdomain struct {
	Name      string   `json:"subdomain"`
	IP        string   `json:"ip"`
	Addresses []string `json:"addresses,omitempty"`
}

// SubdomainOptions configures a SubdomainFinder.
type SubdomainOptions struct {
	Words   []string
	Workers int
	Rate    float64 // lookups per second, 0 for unlimited
	Logger  *zap.Logger
}

// SubdomainFinder resolves wordlist candidates under a domain.
type SubdomainFinder struct {
	resolver HostResolver
	words    []string
	workers  int
	rate     float64
	logger   *zap.Logger
}

// NewSubdomainFinder creates a finder. A nil resolver uses the system resolver.
func NewSubdomainFinder(resolver HostResolver, opts SubdomainOptions) *SubdomainFinder {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if len(opts.Words) == 0 {
		opts.Words = DefaultSubdomainWords
	}
	if opts.Workers <= 0 {
		opts.Workers = 10
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &SubdomainFinder{
		resolver: resolver,
		words:    opts.Words,
		workers:  opts.Workers,
		rate:     opts.Rate,
		logger:   opts.Logger,
	}
}

// Find returns the candidates that resolved, in wordlist order. Names that do
// not resolve are omitted.
func (f *SubdomainFinder) Find(ctx context.Context, domain string) ([]Subdomain, error) {
	domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" || strings.ContainsAny(domain, "/: ") {
		return nil, &sharedErrors.ParseError{Input: domain, Reason: "invalid domain name"}
	}

	var limiter *rate.Limiter
	if f.rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(f.rate), 1)
	}

	found := make([]*Subdomain, len(f.words))
	indexes := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						continue
					}
				}
				name := f.words[idx] + "." + domain
				addrs, err := f.resolver.LookupHost(ctx, name)
				if err != nil || len(addrs) == 0 {
					continue
				}
				found[idx] = &Subdomain{Name: name, IP: addrs[0], Addresses: addrs}
			}
		}()
	}

feed:
	for idx := range f.words {
		select {
		case indexes <- idx:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	out := make([]Subdomain, 0, len(found))
	for _, s := range found {
		if s != nil {
			out = append(out, *s)
		}
	}
	f.logger.Info("subdomain discovery finished",
		zap.String("domain", domain),
		zap.Int("candidates", len(f.words)),
		zap.Int("found", len(out)),
	)
	return out, nil
}
