package recon

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os/exec"
	"strings"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// NmapProber delegates the scan to an installed nmap binary. The XML report
// is kept verbatim in ScanResult.Raw alongside the decoded host table.
type NmapProber struct {
	Path string
	// Args are extra arguments placed before the target, e.g. "-sV".
	Args []string
}

// Name implements Prober.
func (p *NmapProber) Name() string { return StrategyNmap }

// Probe runs `nmap -oX - -p <ports> [args] <target>`.
func (p *NmapProber) Probe(ctx context.Context, target string, ports []int) (*ScanResult, error) {
	path := p.Path
	if path == "" {
		path = "nmap"
	}

	args := []string{"-oX", "-", "-p", FormatPortSpec(ports)}
	args = append(args, p.Args...)
	args = append(args, target)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, &sharedErrors.NetworkError{Op: "nmap scan", Target: target, Err: err}
	}

	result, err := parseNmapXML(target, stdout.Bytes())
	if err != nil {
		return nil, err
	}
	if len(result.Hosts) == 0 && strings.Contains(stderr.String(), "Failed to resolve") {
		return nil, &sharedErrors.ResolutionError{Host: target}
	}
	return result, nil
}

type nmapRun struct {
	XMLName xml.Name   `xml:"nmaprun"`
	Hosts   []nmapHost `xml:"host"`
}

type nmapHost struct {
	Status    nmapStatus     `xml:"status"`
	Addresses []nmapAddress  `xml:"address"`
	Hostnames []nmapHostname `xml:"hostnames>hostname"`
	Ports     []nmapPort     `xml:"ports>port"`
}

type nmapStatus struct {
	State string `xml:"state,attr"`
}

type nmapAddress struct {
	Addr string `xml:"addr,attr"`
	Type string `xml:"addrtype,attr"`
}

type nmapHostname struct {
	Name string `xml:"name,attr"`
}

type nmapPort struct {
	Protocol string      `xml:"protocol,attr"`
	PortID   int         `xml:"portid,attr"`
	State    nmapState   `xml:"state"`
	Service  nmapService `xml:"service"`
}

type nmapState struct {
	State string `xml:"state,attr"`
}

type nmapService struct {
	Name    string `xml:"name,attr"`
	Product string `xml:"product,attr"`
	Version string `xml:"version,attr"`
}

func parseNmapXML(target string, data []byte) (*ScanResult, error) {
	var run nmapRun
	if err := xml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode nmap report: %w: %w", sharedErrors.ErrDeserializationFailed, err)
	}

	result := &ScanResult{
		Target:   target,
		Strategy: StrategyNmap,
		Hosts:    make(map[string]*HostResult, len(run.Hosts)),
		Raw:      string(data),
	}

	for _, h := range run.Hosts {
		addr := hostAddress(h.Addresses)
		if addr == "" {
			continue
		}
		host := &HostResult{Address: addr, Status: h.Status.State, Ports: make([]PortInfo, 0, len(h.Ports))}
		if len(h.Hostnames) > 0 {
			host.Hostname = h.Hostnames[0].Name
		}
		for _, port := range h.Ports {
			service := port.Service.Name
			if service == "" {
				service = ServiceName(port.PortID)
			}
			info := PortInfo{
				Port:     port.PortID,
				Protocol: port.Protocol,
				State:    port.State.State,
				Service:  service,
				Banner:   strings.TrimSpace(port.Service.Product + " " + port.Service.Version),
			}
			if info.State == "open" {
				info.Risk = PortRisk(port.PortID)
			}
			host.Ports = append(host.Ports, info)
		}
		result.Hosts[addr] = host
	}
	return result, nil
}

func hostAddress(addrs []nmapAddress) string {
	for _, a := range addrs {
		if a.Type == "ipv4" || a.Type == "ipv6" {
			return a.Addr
		}
	}
	if len(addrs) > 0 {
		return addrs[0].Addr
	}
	return ""
}
