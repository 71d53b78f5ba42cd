package recon

import (
	"context"
	"os/exec"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Scan strategies.
const (
	StrategyNmap    = "nmap"
	StrategyConnect = "connect"
)

// PortInfo contains information about a probed port
type PortInfo struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"` // "tcp" or "udp"
	State    string `json:"state"`    // "open", or whatever the delegated scanner reports
	Service  string `json:"service"`  // Common service name, "unknown" when not known
	Banner   string `json:"banner,omitempty"`
	Risk     string `json:"risk,omitempty"`
}

// HostResult groups the ports reported for one scanned address.
type HostResult struct {
	Address  string     `json:"address"`
	Hostname string     `json:"hostname,omitempty"`
	Status   string     `json:"status,omitempty"`
	Ports    []PortInfo `json:"ports"`
}

// ScanResult is built fresh for every scan call.
type ScanResult struct {
	Target   string                 `json:"target"`
	Strategy string                 `json:"strategy"`
	Hosts    map[string]*HostResult `json:"hosts"`
	Duration time.Duration          `json:"duration_ns"`
	// Raw holds the delegated scanner's unmodified report, if any.
	Raw string `json:"raw,omitempty"`
}

// OpenPorts returns every port reported open across hosts, ordered by port.
func (r *ScanResult) OpenPorts() []PortInfo {
	var open []PortInfo
	if r == nil {
		return open
	}
	for _, host := range r.Hosts {
		for _, p := range host.Ports {
			if p.State == "open" {
				open = append(open, p)
			}
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Port < open[j].Port })
	return open
}

// Prober probes a list of ports on one target.
type Prober interface {
	Name() string
	Probe(ctx context.Context, target string, ports []int) (*ScanResult, error)
}

// ScannerOptions configures a PortScanner.
type ScannerOptions struct {
	// DisableNmap forces the connect strategy even when nmap is installed.
	DisableNmap bool
	NmapPath    string
	Timeout     time.Duration // per-port dial timeout
	Workers     int
	Rate        float64 // probes per second, 0 for unlimited
	BannerGrab  bool
	Deadline    time.Duration // overall scan deadline, 0 for none
	Logger      *zap.Logger
}

// PortScanner scans a target with the strategy chosen at construction.
type PortScanner struct {
	prober   Prober
	deadline time.Duration
	logger   *zap.Logger
}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// NewPortScanner selects the nmap strategy when the binary is available and
// allowed, and the TCP connect strategy otherwise.
func NewPortScanner(opts ScannerOptions) *PortScanner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var prober Prober
	if !opts.DisableNmap {
		name := opts.NmapPath
		if name == "" {
			name = "nmap"
		}
		if path, err := lookPath(name); err == nil {
			prober = &NmapProber{Path: path}
		}
	}
	if prober == nil {
		prober = &ConnectProber{
			Timeout:    opts.Timeout,
			Workers:    opts.Workers,
			Rate:       opts.Rate,
			BannerGrab: opts.BannerGrab,
		}
	}

	logger.Debug("port scanner strategy selected", zap.String("strategy", prober.Name()))
	return NewPortScannerWithProber(prober, opts.Deadline, logger)
}

// NewPortScannerWithProber wires an explicit strategy.
func NewPortScannerWithProber(prober Prober, deadline time.Duration, logger *zap.Logger) *PortScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortScanner{prober: prober, deadline: deadline, logger: logger}
}

// Strategy names the selected prober.
func (s *PortScanner) Strategy() string {
	return s.prober.Name()
}

// Scan probes every port in portSpec on target. A malformed spec fails with a
// ParseError before any probe is sent.
func (s *PortScanner) Scan(ctx context.Context, target, portSpec string) (*ScanResult, error) {
	ports, err := ParsePortSpec(portSpec)
	if err != nil {
		return nil, err
	}
	host, err := ExtractHost(target)
	if err != nil {
		return nil, err
	}

	if s.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.deadline)
		defer cancel()
	}

	start := time.Now()
	result, err := s.prober.Probe(ctx, host, ports)
	if err != nil {
		s.logger.Warn("port scan failed",
			zap.String("target", host),
			zap.String("strategy", s.prober.Name()),
			zap.Error(err),
		)
		return nil, err
	}
	result.Duration = time.Since(start)

	s.logger.Info("port scan finished",
		zap.String("target", host),
		zap.String("strategy", s.prober.Name()),
		zap.Int("ports", len(ports)),
		zap.Int("open", len(result.OpenPorts())),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
