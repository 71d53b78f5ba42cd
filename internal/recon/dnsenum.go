package recon

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// RecordTypes are queried by DNSEnumerator, in this order.
var RecordTypes = []string{"A", "AAAA", "MX", "NS", "TXT", "SOA"}

const (
	defaultNameserver = "8.8.8.8:53"
	resolvConfPath    = "/etc/resolv.conf"
	defaultDNSTimeout = 5 * time.Second
)

// DNSReport maps record type to the textual record data. A type that failed
// or has no records maps to an empty list.
type DNSReport struct {
	Domain     string              `json:"domain"`
	Nameserver string              `json:"nameserver"`
	Records    map[string][]string `json:"records"`
	Errors     map[string]string   `json:"errors,omitempty"`
}

// DNSEnumerator queries one nameserver for the common record types.
type DNSEnumerator struct {
	nameserver string
	client     *dns.Client
	logger     *zap.Logger
}

// NewDNSEnumerator creates an enumerator. An empty nameserver uses the first
// server from /etc/resolv.conf, falling back to a public resolver.
func NewDNSEnumerator(nameserver string, timeout time.Duration, logger *zap.Logger) *DNSEnumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultDNSTimeout
	}
	return &DNSEnumerator{
		nameserver: normalizeNameserver(nameserver),
		client:     &dns.Client{Timeout: timeout},
		logger:     logger,
	}
}

func normalizeNameserver(ns string) string {
	ns = strings.TrimSpace(ns)
	if ns == "" {
		if cfg, err := dns.ClientConfigFromFile(resolvConfPath); err == nil && len(cfg.Servers) > 0 {
			return net.JoinHostPort(cfg.Servers[0], cfg.Port)
		}
		return defaultNameserver
	}
	if _, _, err := net.SplitHostPort(ns); err != nil {
		return net.JoinHostPort(ns, "53")
	}
	return ns
}

// Nameserver returns the server queried.
func (e *DNSEnumerator) Nameserver() string { return e.nameserver }

// Enumerate queries every entry of RecordTypes for domain.
func (e *DNSEnumerator) Enumerate(ctx context.Context, domain string) (*DNSReport, error) {
	domain = strings.TrimSuffix(strings.TrimSpace(domain), ".")
	if _, ok := dns.IsDomainName(domain); !ok || domain == "" {
		return nil, &sharedErrors.ParseError{Input: domain, Reason: "invalid domain name"}
	}

	report := &DNSReport{
		Domain:     domain,
		Nameserver: e.nameserver,
		Records:    make(map[string][]string, len(RecordTypes)),
	}

	for _, name := range RecordTypes {
		records, err := e.query(ctx, domain, dns.StringToType[name])
		if err != nil {
			if report.Errors == nil {
				report.Errors = make(map[string]string)
			}
			report.Errors[name] = err.Error()
			e.logger.Debug("dns query failed", zap.String("domain", domain), zap.String("type", name), zap.Error(err))
		}
		if records == nil {
			records = []string{}
		}
		report.Records[name] = records
	}
	return report, nil
}

func (e *DNSEnumerator) query(ctx context.Context, domain string, qtype uint16) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), qtype)
	msg.RecursionDesired = true

	resp, _, err := e.client.ExchangeContext(ctx, msg, e.nameserver)
	if err != nil {
		return nil, &sharedErrors.NetworkError{Op: "dns " + dns.TypeToString[qtype], Target: domain, Err: err}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%s: %w", dns.RcodeToString[resp.Rcode], sharedErrors.ErrNoAnswer)
	}

	var out []string
	for _, rr := range resp.Answer {
		if rr.Header().Rrtype != qtype {
			continue
		}
		if value := formatRecord(rr); value != "" {
			out = append(out, value)
		}
	}
	return out, nil
}

func formatRecord(rr dns.RR) string {
	switch r := rr.(type) {
	case *dns.A:
		return r.A.String()
	case *dns.AAAA:
		return r.AAAA.String()
	case *dns.MX:
		return fmt.Sprintf("%d %s", r.Preference, r.Mx)
	case *dns.NS:
		return r.Ns
	case *dns.TXT:
		return strings.Join(r.Txt, "")
	case *dns.SOA:
		return fmt.Sprintf("%s %s %d %d %d %d %d", r.Ns, r.Mbox, r.Serial, r.Refresh, r.Retry, r.Expire, r.Minttl)
	default:
		return ""
	}
}
