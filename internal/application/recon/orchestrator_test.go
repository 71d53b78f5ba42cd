package recon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/khanhnv2901/sparrow-cli/internal/dnscache"
	"github.com/khanhnv2901/sparrow-cli/internal/recon"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
	"go.uber.org/zap/zaptest"
)

type fakeProber struct {
	calls int
	ports []int
}

func (p *fakeProber) Name() string { return "fake" }

func (p *fakeProber) Probe(ctx context.Context, target string, ports []int) (*recon.ScanResult, error) {
	p.calls++
	p.ports = ports
	return &recon.ScanResult{
		Target:   target,
		Strategy: p.Name(),
		Hosts: map[string]*recon.HostResult{
			target: {Address: target, Status: "up", Ports: []recon.PortInfo{{Port: 22, Protocol: "tcp", State: "open"}}},
		},
	}, nil
}

type staticResolver map[string][]string

func (r staticResolver) Query(ctx context.Context, endpoint, domain string) ([]string, error) {
	if ips, ok := r[domain]; ok {
		return ips, nil
	}
	return nil, sharedErrors.ErrNotFound
}

func TestValidate(t *testing.T) {
	o := NewOrchestrator(Components{}, 0, nil)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"missing target", Request{Tool: ToolPorts}, sharedErrors.ErrMissingRequired},
		{"unknown tool", Request{Tool: "exploit", Target: "example.com"}, sharedErrors.ErrInvalidInput},
		{"bad ports", Request{Tool: ToolPorts, Target: "example.com", Ports: "80-"}, sharedErrors.ErrInvalidInput},
		{"negative pages", Request{Tool: ToolCrawl, Target: "example.com", MaxPages: -1}, sharedErrors.ErrInvalidInput},
		{"ok", Request{Tool: ToolWhois, Target: "example.com"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := o.Validate(tt.req)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRunPortsUsesDefaultSpec(t *testing.T) {
	prober := &fakeProber{}
	o := NewOrchestrator(Components{
		Scanner: recon.NewPortScannerWithProber(prober, 0, nil),
	}, 0, zaptest.NewLogger(t))

	out, err := o.Run(context.Background(), Request{Tool: ToolPorts, Target: "https://127.0.0.1/login"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	result, ok := out.(*recon.ScanResult)
	if !ok {
		t.Fatalf("expected *recon.ScanResult, got %T", out)
	}
	if len(prober.ports) != 1000 || prober.ports[0] != 1 || prober.ports[999] != 1000 {
		t.Fatalf("expected default range 1-1000, got %d ports", len(prober.ports))
	}
	if open := result.OpenPorts(); len(open) != 1 || open[0].Port != 22 {
		t.Fatalf("unexpected open ports: %+v", open)
	}
}

func TestRunMalformedPortsNeverProbes(t *testing.T) {
	prober := &fakeProber{}
	o := NewOrchestrator(Components{Scanner: recon.NewPortScannerWithProber(prober, 0, nil)}, 0, nil)

	_, err := o.Run(context.Background(), Request{Tool: ToolPorts, Target: "127.0.0.1", Ports: "22,80-90"})
	var parseErr *sharedErrors.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if prober.calls != 0 {
		t.Fatalf("expected no probe, got %d", prober.calls)
	}
}

func TestRunCrawlAppliesDefaultPageCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/a">a</a><a href="https://elsewhere.test/">x</a></body></html>`)
	}))
	t.Cleanup(srv.Close)

	o := NewOrchestrator(Components{Crawler: recon.NewCrawler(recon.CrawlerOptions{})}, 3, nil)
	out, err := o.Run(context.Background(), Request{Tool: ToolCrawl, Target: srv.URL})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	result := out.(*CrawlResult)
	if result.MaxPages != 3 {
		t.Fatalf("expected page cap 3, got %d", result.MaxPages)
	}
	if len(result.Links) != 1 || result.Links[0] != srv.URL+"/a" {
		t.Fatalf("unexpected links: %v", result.Links)
	}
}

func TestRunResolveAndDoHSubdomains(t *testing.T) {
	cache, err := dnscache.New(staticResolver{
		"example.com":     {"93.184.216.34"},
		"www.example.com": {"93.184.216.35"},
	}, "cloudflare", nil, nil)
	if err != nil {
		t.Fatalf("cache: %v", err)
	}

	o := NewOrchestrator(Components{
		Cache:         cache,
		DoHSubdomains: recon.NewSubdomainFinder(cache, recon.SubdomainOptions{Words: []string{"www", "mail"}}),
	}, 0, nil)

	out, err := o.Run(context.Background(), Request{Tool: ToolResolve, Target: "Example.com"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	resolved := out.(*ResolveResult)
	if resolved.Provider != dnscache.KnownProviders["cloudflare"] {
		t.Fatalf("unexpected provider %q", resolved.Provider)
	}
	if len(resolved.Addresses) != 1 || resolved.Addresses[0] != "93.184.216.34" {
		t.Fatalf("unexpected addresses: %v", resolved.Addresses)
	}

	out, err = o.Run(context.Background(), Request{Tool: ToolSubdomains, Target: "example.com", UseDoH: true})
	if err != nil {
		t.Fatalf("subdomains: %v", err)
	}
	subs := out.(*SubdomainResult)
	if subs.Resolver != "doh" || len(subs.Subdomains) != 1 || subs.Subdomains[0].Name != "www.example.com" {
		t.Fatalf("unexpected subdomains: %+v", subs)
	}
}

func TestRunUnconfiguredTool(t *testing.T) {
	o := NewOrchestrator(Components{}, 0, nil)
	_, err := o.Run(context.Background(), Request{Tool: ToolTLS, Target: "example.com"})
	if !errors.Is(err, sharedErrors.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestToolsSorted(t *testing.T) {
	tools := Tools()
	if len(tools) != 10 {
		t.Fatalf("expected 10 tools, got %d", len(tools))
	}
	for i := 1; i < len(tools); i++ {
		if tools[i-1] > tools[i] {
			t.Fatalf("tools not sorted: %v", tools)
		}
	}
}
