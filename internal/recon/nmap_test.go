package recon

import (
	"errors"
	"testing"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

const nmapFixture = `<?xml version="1.0" encoding="UTF-8"?>
<nmaprun scanner="nmap" args="nmap -oX - -p 22,80,443 scanme.example">
  <host>
    <status state="up" reason="syn-ack"/>
    <address addr="192.0.2.7" addrtype="ipv4"/>
    <hostnames><hostname name="scanme.example" type="user"/></hostnames>
    <ports>
      <port protocol="tcp" portid="22"><state state="open"/><service name="ssh" product="OpenSSH" version="8.9"/></port>
      <port protocol="tcp" portid="80"><state state="filtered"/><service name="http"/></port>
      <port protocol="tcp" portid="443"><state state="closed"/></port>
    </ports>
  </host>
</nmaprun>`

func TestParseNmapXML(t *testing.T) {
	result, err := parseNmapXML("scanme.example", []byte(nmapFixture))
	if err != nil {
		t.Fatalf("parseNmapXML returned error: %v", err)
	}
	if result.Raw != nmapFixture {
		t.Error("expected raw report to be kept verbatim")
	}
	if result.Strategy != StrategyNmap {
		t.Errorf("unexpected strategy %s", result.Strategy)
	}

	host, ok := result.Hosts["192.0.2.7"]
	if !ok {
		t.Fatalf("expected host 192.0.2.7, got %v", result.Hosts)
	}
	if host.Hostname != "scanme.example" || host.Status != "up" {
		t.Errorf("unexpected host metadata: %+v", host)
	}
	if len(host.Ports) != 3 {
		t.Fatalf("expected all reported ports, got %d", len(host.Ports))
	}

	ssh := host.Ports[0]
	if ssh.State != "open" || ssh.Service != "ssh" || ssh.Banner != "OpenSSH 8.9" || ssh.Risk != RiskHigh {
		t.Errorf("unexpected ssh entry: %+v", ssh)
	}
	if host.Ports[1].State != "filtered" || host.Ports[1].Risk != "" {
		t.Errorf("unexpected filtered entry: %+v", host.Ports[1])
	}
	if host.Ports[2].Service != "https" {
		t.Errorf("expected service fallback from port table, got %q", host.Ports[2].Service)
	}

	if open := result.OpenPorts(); len(open) != 1 || open[0].Port != 22 {
		t.Errorf("OpenPorts() = %+v", open)
	}
}

func TestParseNmapXMLInvalid(t *testing.T) {
	_, err := parseNmapXML("x", []byte("not xml"))
	if !errors.Is(err, sharedErrors.ErrDeserializationFailed) {
		t.Fatalf("expected ErrDeserializationFailed, got %v", err)
	}
}
