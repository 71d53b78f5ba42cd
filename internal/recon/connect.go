package recon

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

const (
	defaultConnectWorkers = 50
	bannerReadTimeout     = 500 * time.Millisecond
	maxBannerBytes        = 512
)

// ConnectProber is the fallback strategy: one TCP connect per port.
// Ports that fail to connect are omitted, never reported as closed.
type ConnectProber struct {
	Timeout    time.Duration
	Workers    int
	Rate       float64
	BannerGrab bool
	Resolver   *net.Resolver
}

// Name implements Prober.
func (p *ConnectProber) Name() string { return StrategyConnect }

// Probe resolves target once, then dials every port concurrently.
func (p *ConnectProber) Probe(ctx context.Context, target string, ports []int) (*ScanResult, error) {
	addr, err := p.resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = consts.PortProbeTimeout
	}
	maxWorkers := p.Workers
	if maxWorkers <= 0 {
		maxWorkers = defaultConnectWorkers
	}
	if maxWorkers > len(ports) {
		maxWorkers = len(ports)
	}

	var limiter *rate.Limiter
	if p.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.Rate), 1)
	}

	portChan := make(chan int)
	resultChan := make(chan PortInfo, len(ports))
	var wg sync.WaitGroup

	for i := 0; i < maxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for port := range portChan {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						continue
					}
				}
				if info, ok := p.checkPort(ctx, addr, port, timeout); ok {
					resultChan <- info
				}
			}
		}()
	}

	go func() {
		defer close(portChan)
		for _, port := range ports {
			select {
			case portChan <- port:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	host := &HostResult{Address: addr, Status: "up", Ports: []PortInfo{}}
	if addr != target {
		host.Hostname = target
	}
	for info := range resultChan {
		host.Ports = append(host.Ports, info)
	}

	return &ScanResult{
		Target:   target,
		Strategy: StrategyConnect,
		Hosts:    map[string]*HostResult{addr: host},
	}, nil
}

// resolve prefers an IPv4 address and falls back to the first IPv6 one.
func (p *ConnectProber) resolve(ctx context.Context, target string) (string, error) {
	if ip := net.ParseIP(target); ip != nil {
		return ip.String(), nil
	}

	resolver := p.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, target)
	if err != nil {
		return "", &sharedErrors.ResolutionError{Host: target, Err: err}
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	if len(addrs) > 0 {
		return addrs[0].IP.String(), nil
	}
	return "", &sharedErrors.ResolutionError{Host: target}
}

func (p *ConnectProber) checkPort(ctx context.Context, addr string, port int, timeout time.Duration) (PortInfo, bool) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		// refused, filtered or unreachable
		return PortInfo{}, false
	}
	defer conn.Close()

	info := PortInfo{
		Port:     port,
		Protocol: "tcp",
		State:    "open",
		Service:  ServiceName(port),
		Risk:     PortRisk(port),
	}

	if p.BannerGrab {
		_ = conn.SetReadDeadline(time.Now().Add(bannerReadTimeout))
		buf := make([]byte, maxBannerBytes)
		if n, err := conn.Read(buf); err == nil && n > 0 {
			info.Banner = strings.TrimSpace(string(buf[:n]))
		}
	}
	return info, true
}
