package recon

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

const (
	defaultWhoisServer = "whois.iana.org"
	whoisPort          = "43"
	maxWhoisBytes      = 256 * 1024
)

// WhoisResult holds the raw registry response and the server chain used.
type WhoisResult struct {
	Domain  string   `json:"domain"`
	Servers []string `json:"servers"`
	Raw     string   `json:"raw"`
}

// WhoisClient queries the IANA root and follows one referral.
type WhoisClient struct {
	Server  string // root server, whois.iana.org by default
	Timeout time.Duration
}

// Lookup returns the registry's answer for domain, or IANA's own answer when
// no referral is given.
func (w *WhoisClient) Lookup(ctx context.Context, domain string) (*WhoisResult, error) {
	domain = strings.Trim(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" || strings.ContainsAny(domain, "/: ") {
		return nil, &sharedErrors.ParseError{Input: domain, Reason: "invalid domain name"}
	}

	root := w.Server
	if root == "" {
		root = defaultWhoisServer
	}

	result := &WhoisResult{Domain: domain, Servers: []string{root}}
	raw, err := w.query(ctx, root, domain)
	if err != nil {
		return nil, err
	}
	result.Raw = raw

	refer := referral(raw)
	if refer == "" || strings.EqualFold(refer, root) {
		return result, nil
	}

	result.Servers = append(result.Servers, refer)
	referred, err := w.query(ctx, refer, domain)
	if err != nil {
		// keep the root answer rather than failing the lookup
		return result, nil
	}
	result.Raw = referred
	return result, nil
}

func (w *WhoisClient) query(ctx context.Context, server, domain string) (string, error) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	address := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		address = net.JoinHostPort(server, whoisPort)
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return "", &sharedErrors.NetworkError{Op: "whois", Target: address, Err: err}
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := fmt.Fprintf(conn, "%s\r\n", domain); err != nil {
		return "", &sharedErrors.NetworkError{Op: "whois", Target: address, Err: err}
	}
	data, err := io.ReadAll(io.LimitReader(conn, maxWhoisBytes))
	if err != nil && len(data) == 0 {
		return "", &sharedErrors.NetworkError{Op: "whois", Target: address, Err: err}
	}
	return string(data), nil
}

// referral extracts the "refer:" or "whois:" server from an IANA response.
func referral(raw string) string {
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "refer", "whois":
			if v := strings.TrimSpace(value); v != "" {
				return v
			}
		}
	}
	return ""
}
