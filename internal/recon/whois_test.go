package recon

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// startWhoisServer answers each query line with respond(query).
func startWhoisServer(t *testing.T, respond func(query string) string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				line, _ := bufio.NewReader(c).ReadString('\n')
				fmt.Fprint(c, respond(strings.TrimSpace(line)))
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestWhoisFollowsReferral(t *testing.T) {
	registry := startWhoisServer(t, func(q string) string {
		return "Domain Name: " + strings.ToUpper(q) + "\nRegistrar: Example Registrar\n"
	})
	root := startWhoisServer(t, func(q string) string {
		return "% IANA WHOIS server\n\nrefer:        " + registry + "\n\ndomain:       COM\n"
	})

	result, err := (&WhoisClient{Server: root, Timeout: 2 * time.Second}).Lookup(context.Background(), "Example.com")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if len(result.Servers) != 2 || result.Servers[1] != registry {
		t.Fatalf("expected referral chain [root registry], got %v", result.Servers)
	}
	if !strings.Contains(result.Raw, "Domain Name: EXAMPLE.COM") {
		t.Errorf("expected registry answer, got %q", result.Raw)
	}
}

func TestWhoisWithoutReferral(t *testing.T) {
	root := startWhoisServer(t, func(q string) string { return "domain: " + q + "\n" })

	result, err := (&WhoisClient{Server: root}).Lookup(context.Background(), "example")
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if len(result.Servers) != 1 || result.Raw != "domain: example\n" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestReferral(t *testing.T) {
	if got := referral("refer: whois.verisign-grs.com\n"); got != "whois.verisign-grs.com" {
		t.Errorf("referral() = %q", got)
	}
	if got := referral("domain: COM\n"); got != "" {
		t.Errorf("expected no referral, got %q", got)
	}
}
