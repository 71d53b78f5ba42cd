package netstat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const tcpTable = `  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
   0: 0100007F:1F90 00000000:0000 0A 00000000:00000000 00:00000000 00000000  1000        0 12345 1 0000000000000000 100 0 0 10 0
   1: 0F02000A:D2F0 22D8B85D:01BB 01 00000000:00000000 02:0000A8C2 00000000  1000        0 23456 2 0000000000000000 20 4 30 10 -1
   2: garbage
`

const udpTable = `   sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode ref pointer drops
  100: 00000000:0044 00000000:0000 07 00000000:00000000 00:00000000 00000000     0        0 34567 2 0000000000000000 0
`

func writeProcFixture(t *testing.T, tables map[string]string) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "net"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for name, content := range tables {
		if err := os.WriteFile(filepath.Join(root, "net", name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

func TestProcNetConnections(t *testing.T) {
	root := writeProcFixture(t, map[string]string{"tcp": tcpTable, "udp": udpTable})
	p := &ProcNet{Root: root}

	conns, err := p.Connections(context.Background())
	if err != nil {
		t.Fatalf("Connections returned error: %v", err)
	}
	if len(conns) != 3 {
		t.Fatalf("expected 3 connections, got %d (%+v)", len(conns), conns)
	}

	listen := conns[0]
	if listen.LocalIP != "127.0.0.1" || listen.LocalPort != 8080 {
		t.Errorf("unexpected listener endpoint %s:%d", listen.LocalIP, listen.LocalPort)
	}
	if listen.HasRemote || listen.State != "LISTEN" || listen.Transport != TransportTCP {
		t.Errorf("unexpected listener: %+v", listen)
	}

	established := conns[1]
	if !established.HasRemote || established.RemoteIP != "93.184.216.34" || established.RemotePort != 443 {
		t.Errorf("unexpected remote endpoint: %+v", established)
	}
	if established.LocalIP != "10.0.2.15" || established.State != "ESTABLISHED" {
		t.Errorf("unexpected local endpoint: %+v", established)
	}

	udp := conns[2]
	if udp.Transport != TransportUDP || udp.State != "NONE" || udp.LocalPort != 68 || udp.HasRemote {
		t.Errorf("unexpected udp row: %+v", udp)
	}
}

func TestProcNetNoTables(t *testing.T) {
	p := &ProcNet{Root: t.TempDir()}
	if _, err := p.Connections(context.Background()); err == nil {
		t.Fatal("expected error when no tables are readable")
	}
}

func TestParseHexAddrIPv6(t *testing.T) {
	ip, port, ok := parseHexAddr("00000000000000000000000001000000:0016", true)
	if !ok {
		t.Fatal("expected ipv6 address to parse")
	}
	if ip != "::1" || port != 22 {
		t.Fatalf("expected [::1]:22, got [%s]:%d", ip, port)
	}
}

func TestParseHexAddrRejectsMalformed(t *testing.T) {
	tests := []string{"", "0100007F", "ZZ00007F:0050", "0100007F:ZZZZ", "01007F:0050"}
	for _, raw := range tests {
		t.Run(strings.ReplaceAll(raw, ":", "_"), func(t *testing.T) {
			if _, _, ok := parseHexAddr(raw, false); ok {
				t.Fatalf("expected %q to be rejected", raw)
			}
		})
	}
}
