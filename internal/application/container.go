package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	reconapp "github.com/khanhnv2901/sparrow-cli/internal/application/recon"
	"github.com/khanhnv2901/sparrow-cli/internal/dnscache"
	"github.com/khanhnv2901/sparrow-cli/internal/infrastructure/persistence/file"
	"github.com/khanhnv2901/sparrow-cli/internal/intercept"
	"github.com/khanhnv2901/sparrow-cli/internal/metrics"
	"github.com/khanhnv2901/sparrow-cli/internal/monitor"
	"github.com/khanhnv2901/sparrow-cli/internal/netstat"
	"github.com/khanhnv2901/sparrow-cli/internal/recon"
	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Config collects the settings needed to build every engine component.
type Config struct {
	RulesDir string

	Monitor monitor.Options
	// Enumerator overrides the platform connection table reader.
	Enumerator netstat.Enumerator

	Scanner recon.ScannerOptions

	CrawlTimeout  time.Duration
	CrawlDeadline time.Duration
	MaxPages      int

	HTTPTimeout   time.Duration
	DNSProvider   string
	Nameserver    string
	SubdomainRate float64

	Logger   *zap.Logger
	Registry prometheus.Registerer
}

// Container holds all application services and their dependencies.
type Container struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics

	// Repositories
	RulesRepo     *file.RulesRepository
	BlockListRepo *file.BlockListRepository

	// Services
	Interceptor *intercept.Interceptor
	Firewall    *intercept.Firewall
	DNSCache    *dnscache.Cache
	Monitor     *monitor.Monitor
	Recon       *reconapp.Orchestrator

	// RuleLoadErr records a rule or block list file that existed but could
	// not be read. The affected component runs on its defaults.
	RuleLoadErr error
}

// NewContainer creates and wires all application dependencies.
func NewContainer(ctx context.Context, cfg Config) (*Container, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := metrics.New(cfg.Registry)

	rulesDir := cfg.RulesDir
	if rulesDir == "" {
		rulesDir = "config"
	}

	rulesRepo, err := file.NewRulesRepository(rulesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create rules repository: %w", err)
	}
	blockListRepo, err := file.NewBlockListRepository(rulesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create block list repository: %w", err)
	}

	c := &Container{
		Logger:        logger,
		Metrics:       m,
		RulesRepo:     rulesRepo,
		BlockListRepo: blockListRepo,
	}

	c.Interceptor, err = intercept.NewInterceptor(ctx, rulesRepo, logger.Named("intercept"), m)
	if err = c.keepRuleLoadError(err); err != nil {
		return nil, fmt.Errorf("failed to create interceptor: %w", err)
	}
	c.Firewall, err = intercept.NewFirewall(ctx, blockListRepo, logger.Named("firewall"))
	if err = c.keepRuleLoadError(err); err != nil {
		return nil, fmt.Errorf("failed to create firewall: %w", err)
	}

	httpTimeout := cfg.HTTPTimeout
	if httpTimeout <= 0 {
		httpTimeout = consts.HTTPProbeTimeout
	}

	c.DNSCache, err = dnscache.New(dnscache.NewDoHResolver(httpTimeout), cfg.DNSProvider, logger.Named("dnscache"), m)
	if err != nil {
		return nil, fmt.Errorf("failed to create dns cache: %w", err)
	}

	enum := cfg.Enumerator
	if enum == nil {
		enum = netstat.Default()
	}
	c.Monitor = monitor.New(enum, cfg.Monitor, logger.Named("monitor"), m)

	scanOpts := cfg.Scanner
	scanOpts.Logger = logger.Named("portscan")

	subOpts := recon.SubdomainOptions{Rate: cfg.SubdomainRate, Logger: logger.Named("subdomains")}

	c.Recon = reconapp.NewOrchestrator(reconapp.Components{
		Scanner: recon.NewPortScanner(scanOpts),
		Crawler: recon.NewCrawler(recon.CrawlerOptions{
			Timeout:   cfg.CrawlTimeout,
			Deadline:  cfg.CrawlDeadline,
			UserAgent: consts.UserAgent,
			Logger:    logger.Named("crawler"),
		}),
		Fingerprinter: recon.NewFingerprinter(httpTimeout, logger.Named("fingerprint")),
		DNS:           recon.NewDNSEnumerator(cfg.Nameserver, httpTimeout, logger.Named("dns")),
		Subdomains:    recon.NewSubdomainFinder(nil, subOpts),
		DoHSubdomains: recon.NewSubdomainFinder(c.DNSCache, subOpts),
		TLS:           &recon.TLSInspector{Timeout: httpTimeout},
		Whois:         &recon.WhoisClient{Timeout: httpTimeout},
		Cache:         c.DNSCache,
	}, cfg.MaxPages, logger.Named("recon"))

	return c, nil
}

// keepRuleLoadError absorbs a RuleLoadError, which leaves the component
// usable, and passes any other error through.
func (c *Container) keepRuleLoadError(err error) error {
	var loadErr *sharedErrors.RuleLoadError
	if errors.As(err, &loadErr) {
		c.RuleLoadErr = errors.Join(c.RuleLoadErr, err)
		return nil
	}
	return err
}

// Close stops background work owned by the container.
func (c *Container) Close() {
	if c.Monitor != nil {
		c.Monitor.Stop()
	}
	_ = c.Logger.Sync()
}
