package recon

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap/zaptest"
)

// startDNSServer serves a fixed zone for example.test on a loopback UDP port.
func startDNSServer(t *testing.T) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		resp := new(dns.Msg)
		resp.SetReply(req)
		q := req.Question[0]
		if q.Name != "example.test." {
			resp.Rcode = dns.RcodeNameError
			_ = w.WriteMsg(resp)
			return
		}
		var records []string
		switch q.Qtype {
		case dns.TypeA:
			records = []string{"example.test. 300 IN A 192.0.2.1", "example.test. 300 IN A 192.0.2.2"}
		case dns.TypeMX:
			records = []string{"example.test. 300 IN MX 10 mail.example.test."}
		case dns.TypeNS:
			records = []string{"example.test. 300 IN NS ns1.example.test."}
		case dns.TypeTXT:
			records = []string{`example.test. 300 IN TXT "v=spf1 " "-all"`}
		case dns.TypeSOA:
			records = []string{"example.test. 300 IN SOA ns1.example.test. admin.example.test. 2024010101 7200 3600 1209600 300"}
		}
		for _, r := range records {
			rr, err := dns.NewRR(r)
			if err == nil {
				resp.Answer = append(resp.Answer, rr)
			}
		}
		_ = w.WriteMsg(resp)
	})

	started := make(chan struct{})
	server := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = server.ActivateAndServe() }()
	t.Cleanup(func() { _ = server.Shutdown() })

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("dns server did not start")
	}
	return pc.LocalAddr().String()
}

func TestDNSEnumerate(t *testing.T) {
	addr := startDNSServer(t)
	enum := NewDNSEnumerator(addr, time.Second, zaptest.NewLogger(t))

	report, err := enum.Enumerate(context.Background(), "example.test")
	if err != nil {
		t.Fatalf("Enumerate returned error: %v", err)
	}
	if report.Nameserver != addr {
		t.Errorf("expected nameserver %s, got %s", addr, report.Nameserver)
	}

	want := map[string][]string{
		"A":    {"192.0.2.1", "192.0.2.2"},
		"AAAA": {},
		"MX":   {"10 mail.example.test."},
		"NS":   {"ns1.example.test."},
		"TXT":  {"v=spf1 -all"},
		"SOA":  {"ns1.example.test. admin.example.test. 2024010101 7200 3600 1209600 300"},
	}
	for _, rtype := range RecordTypes {
		got := report.Records[rtype]
		if len(got) != len(want[rtype]) {
			t.Errorf("%s: got %v, want %v", rtype, got, want[rtype])
			continue
		}
		for i := range got {
			if got[i] != want[rtype][i] {
				t.Errorf("%s[%d]: got %q, want %q", rtype, i, got[i], want[rtype][i])
			}
		}
	}
}

func TestDNSEnumerateFailuresYieldEmptyLists(t *testing.T) {
	addr := startDNSServer(t)
	report, err := NewDNSEnumerator(addr, time.Second, nil).Enumerate(context.Background(), "missing.test")
	if err != nil {
		t.Fatalf("per-type failures must not fail the enumeration: %v", err)
	}
	for _, rtype := range RecordTypes {
		if records := report.Records[rtype]; records == nil || len(records) != 0 {
			t.Errorf("%s: expected empty list, got %v", rtype, records)
		}
		if report.Errors[rtype] == "" {
			t.Errorf("%s: expected an error message", rtype)
		}
	}
}

func TestNormalizeNameserver(t *testing.T) {
	if got := normalizeNameserver("1.1.1.1"); got != "1.1.1.1:53" {
		t.Errorf("normalizeNameserver(1.1.1.1) = %s", got)
	}
	if got := normalizeNameserver("127.0.0.1:5353"); got != "127.0.0.1:5353" {
		t.Errorf("normalizeNameserver kept port: %s", got)
	}
}
