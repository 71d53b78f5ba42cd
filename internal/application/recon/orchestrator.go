// Package recon dispatches one-shot reconnaissance requests to the engine's
// tools. The CLI and the API job runner share it so both accept the same tool
// names and defaults.
package recon

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/khanhnv2901/sparrow-cli/internal/dnscache"
	"github.com/khanhnv2901/sparrow-cli/internal/recon"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
	"go.uber.org/zap"
)

// Tool names accepted by Run.
const (
	ToolPorts      = "ports"
	ToolCrawl      = "crawl"
	ToolWAF        = "waf"
	ToolHeaders    = "headers"
	ToolCORS       = "cors"
	ToolDNS        = "dns"
	ToolSubdomains = "subdomains"
	ToolTLS        = "tls"
	ToolWhois      = "whois"
	ToolResolve    = "resolve"
)

const (
	// DefaultPortSpec is scanned when a request names no ports.
	DefaultPortSpec = "1-1000"
	// DefaultMaxPages bounds a crawl when a request gives no page cap.
	DefaultMaxPages = 10
)

// Request describes a single tool invocation.
type Request struct {
	Tool     string `json:"type"`
	Target   string `json:"target"`
	Ports    string `json:"ports,omitempty"`
	MaxPages int    `json:"max_pages,omitempty"`
	// UseDoH resolves subdomain candidates through the DNS cache.
	UseDoH bool `json:"doh,omitempty"`
}

// CrawlResult is the outcome of a crawl request.
type CrawlResult struct {
	Seed     string   `json:"seed"`
	MaxPages int      `json:"max_pages"`
	Links    []string `json:"links"`
}

// ResolveResult is the outcome of a DoH resolution request.
type ResolveResult struct {
	Domain    string   `json:"domain"`
	Provider  string   `json:"provider"`
	Addresses []string `json:"addresses"`
}

// SubdomainResult lists the candidates that resolved.
type SubdomainResult struct {
	Domain     string            `json:"domain"`
	Resolver   string            `json:"resolver"`
	Subdomains []recon.Subdomain `json:"subdomains"`
}

// Components holds the tools the orchestrator may dispatch to. A nil
// component makes its tool unavailable.
type Components struct {
	Scanner       *recon.PortScanner
	Crawler       *recon.Crawler
	Fingerprinter *recon.Fingerprinter
	DNS           *recon.DNSEnumerator
	Subdomains    *recon.SubdomainFinder
	DoHSubdomains *recon.SubdomainFinder
	TLS           *recon.TLSInspector
	Whois         *recon.WhoisClient
	Cache         *dnscache.Cache
}

// Orchestrator routes requests to the configured components.
type Orchestrator struct {
	c               Components
	defaultMaxPages int
	logger          *zap.Logger
}

// NewOrchestrator creates an orchestrator. maxPages <= 0 selects DefaultMaxPages.
func NewOrchestrator(c Components, maxPages int, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Orchestrator{c: c, defaultMaxPages: maxPages, logger: logger}
}

// Tools lists every tool name in sorted order.
func Tools() []string {
	tools := []string{
		ToolPorts, ToolCrawl, ToolWAF, ToolHeaders, ToolCORS,
		ToolDNS, ToolSubdomains, ToolTLS, ToolWhois, ToolResolve,
	}
	sort.Strings(tools)
	return tools
}

// Validate checks a request without running it, so callers can reject bad
// input before queueing work.
func (o *Orchestrator) Validate(req Request) error {
	if strings.TrimSpace(req.Target) == "" {
		return fmt.Errorf("%w: target", sharedErrors.ErrMissingRequired)
	}
	if !known(req.Tool) {
		return fmt.Errorf("%w: unknown tool %q", sharedErrors.ErrInvalidInput, req.Tool)
	}
	if req.Tool == ToolPorts && req.Ports != "" {
		if _, err := recon.ParsePortSpec(req.Ports); err != nil {
			return err
		}
	}
	if req.MaxPages < 0 {
		return &sharedErrors.ParseError{Input: fmt.Sprint(req.MaxPages), Reason: "max pages must not be negative"}
	}
	return nil
}

// Run executes req and returns the tool's report.
func (o *Orchestrator) Run(ctx context.Context, req Request) (any, error) {
	if err := o.Validate(req); err != nil {
		return nil, err
	}
	target := strings.TrimSpace(req.Target)
	start := time.Now()

	result, err := o.dispatch(ctx, req, target)
	if err != nil {
		o.logger.Warn("recon tool failed",
			zap.String("tool", req.Tool),
			zap.String("target", target),
			zap.Error(err),
		)
		return nil, err
	}

	o.logger.Info("recon tool completed",
		zap.String("tool", req.Tool),
		zap.String("target", target),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (o *Orchestrator) dispatch(ctx context.Context, req Request, target string) (any, error) {
	switch req.Tool {
	case ToolPorts:
		if o.c.Scanner == nil {
			return nil, unavailable(req.Tool)
		}
		portSpec := req.Ports
		if portSpec == "" {
			portSpec = DefaultPortSpec
		}
		return o.c.Scanner.Scan(ctx, target, portSpec)

	case ToolCrawl:
		if o.c.Crawler == nil {
			return nil, unavailable(req.Tool)
		}
		maxPages := req.MaxPages
		if maxPages == 0 {
			maxPages = o.defaultMaxPages
		}
		links, err := o.c.Crawler.Crawl(ctx, target, maxPages)
		if err != nil {
			return nil, err
		}
		return &CrawlResult{Seed: target, MaxPages: maxPages, Links: links}, nil

	case ToolWAF, ToolHeaders, ToolCORS:
		if o.c.Fingerprinter == nil {
			return nil, unavailable(req.Tool)
		}
		switch req.Tool {
		case ToolWAF:
			return o.c.Fingerprinter.DetectWAF(ctx, target)
		case ToolHeaders:
			return o.c.Fingerprinter.SecurityHeaders(ctx, target)
		default:
			return o.c.Fingerprinter.CORS(ctx, target)
		}

	case ToolDNS:
		if o.c.DNS == nil {
			return nil, unavailable(req.Tool)
		}
		domain, err := recon.ExtractHost(target)
		if err != nil {
			return nil, err
		}
		return o.c.DNS.Enumerate(ctx, domain)

	case ToolSubdomains:
		finder, resolver := o.c.Subdomains, "system"
		if req.UseDoH {
			finder, resolver = o.c.DoHSubdomains, "doh"
		}
		if finder == nil {
			return nil, unavailable(req.Tool)
		}
		domain, err := recon.ExtractHost(target)
		if err != nil {
			return nil, err
		}
		found, err := finder.Find(ctx, domain)
		if err != nil {
			return nil, err
		}
		return &SubdomainResult{Domain: domain, Resolver: resolver, Subdomains: found}, nil

	case ToolTLS:
		if o.c.TLS == nil {
			return nil, unavailable(req.Tool)
		}
		return o.c.TLS.Inspect(ctx, target)

	case ToolWhois:
		if o.c.Whois == nil {
			return nil, unavailable(req.Tool)
		}
		domain, err := recon.ExtractHost(target)
		if err != nil {
			return nil, err
		}
		return o.c.Whois.Lookup(ctx, domain)

	case ToolResolve:
		if o.c.Cache == nil {
			return nil, unavailable(req.Tool)
		}
		domain, err := recon.ExtractHost(target)
		if err != nil {
			return nil, err
		}
		addrs, err := o.c.Cache.Resolve(ctx, domain)
		if err != nil {
			return nil, err
		}
		return &ResolveResult{Domain: domain, Provider: o.c.Cache.Provider(), Addresses: addrs}, nil
	}

	return nil, fmt.Errorf("%w: unknown tool %q", sharedErrors.ErrInvalidInput, req.Tool)
}

func known(tool string) bool {
	for _, t := range Tools() {
		if t == tool {
			return true
		}
	}
	return false
}

func unavailable(tool string) error {
	return fmt.Errorf("%w: tool %s is not configured", sharedErrors.ErrUnsupported, tool)
}
