package recon

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// ProbeOrigin is sent on the CORS probe to test for origin reflection.
const ProbeOrigin = "https://evil.com"

// wafSignatures maps a vendor to substrings matched against response header
// names and values.
var wafSignatures = map[string][]string{
	"cloudflare": {"cf-ray", "cloudflare"},
	"akamai":     {"akamai"},
	"imperva":    {"incap_ses", "visid_incap"},
	"f5":         {"big-ip", "f5"},
	"sucuri":     {"sucuri"},
	"aws":        {"x-amz", "aws"},
}

// SecurityHeaderNames are reported by SecurityHeaders, in this order.
var SecurityHeaderNames = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Frame-Options",
	"X-XSS-Protection",
	"X-Content-Type-Options",
}

// CORSHeaderNames are reported by CORS, in this order.
var CORSHeaderNames = []string{
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Credentials",
	"Access-Control-Expose-Headers",
	"Access-Control-Max-Age",
	"Access-Control-Allow-Methods",
	"Access-Control-Allow-Headers",
}

// HeaderValue is the literal value of one response header.
type HeaderValue struct {
	Name    string `json:"name"`
	Value   string `json:"value,omitempty"`
	Present bool   `json:"present"`
}

// WAFReport lists vendors whose signatures appear in the response headers.
type WAFReport struct {
	URL        string   `json:"url"`
	StatusCode int      `json:"status_code"`
	Vendors    []string `json:"vendors"`
}

// HeaderReport holds the security-relevant response headers.
type HeaderReport struct {
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code"`
	Headers    []HeaderValue `json:"headers"`
	Missing    []string      `json:"missing"`
}

// CORSReport holds the CORS response headers returned to ProbeOrigin. The raw
// header values are authoritative; the flags are convenience readings of them.
type CORSReport struct {
	URL                       string        `json:"url"`
	Origin                    string        `json:"origin"`
	StatusCode                int           `json:"status_code"`
	Headers                   []HeaderValue `json:"headers"`
	OriginReflected           bool          `json:"origin_reflected"`
	Wildcard                  bool          `json:"wildcard"`
	CredentialsWithReflection bool          `json:"credentials_with_reflection"`
}

// Fingerprinter runs single-shot HTTP probes against a target.
type Fingerprinter struct {
	client *resty.Client
	logger *zap.Logger
}

// NewFingerprinter creates a Fingerprinter with its own HTTP client.
func NewFingerprinter(timeout time.Duration, logger *zap.Logger) *Fingerprinter {
	return NewFingerprinterWithClient(NewHTTPClient(timeout, ""), logger)
}

// NewFingerprinterWithClient creates a Fingerprinter on an existing client.
func NewFingerprinterWithClient(client *resty.Client, logger *zap.Logger) *Fingerprinter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fingerprinter{client: client, logger: logger}
}

// DetectWAF flags each vendor with a signature contained in any response
// header name or value, case-insensitively.
func (f *Fingerprinter) DetectWAF(ctx context.Context, target string) (*WAFReport, error) {
	resp, targetURL, err := f.get(ctx, "waf probe", target, nil)
	if err != nil {
		return nil, err
	}
	return &WAFReport{
		URL:        targetURL,
		StatusCode: resp.StatusCode(),
		Vendors:    matchWAF(resp.Header()),
	}, nil
}

func matchWAF(headers http.Header) []string {
	detected := make(map[string]struct{})
	for name, values := range headers {
		fields := append([]string{strings.ToLower(name)}, values...)
		for vendor, signatures := range wafSignatures {
			if _, ok := detected[vendor]; ok {
				continue
			}
			if containsAny(fields, signatures) {
				detected[vendor] = struct{}{}
			}
		}
	}
	return sortedKeys(detected)
}

func containsAny(fields, signatures []string) bool {
	for _, field := range fields {
		field = strings.ToLower(field)
		for _, sig := range signatures {
			if strings.Contains(field, sig) {
				return true
			}
		}
	}
	return false
}

// SecurityHeaders returns the literal value of each SecurityHeaderNames entry.
func (f *Fingerprinter) SecurityHeaders(ctx context.Context, target string) (*HeaderReport, error) {
	resp, targetURL, err := f.get(ctx, "header probe", target, nil)
	if err != nil {
		return nil, err
	}

	report := &HeaderReport{
		URL:        targetURL,
		StatusCode: resp.StatusCode(),
		Headers:    literalHeaders(resp.Header(), SecurityHeaderNames),
		Missing:    []string{},
	}
	for _, h := range report.Headers {
		if !h.Present {
			report.Missing = append(report.Missing, h.Name)
		}
	}
	return report, nil
}

// CORS requests target with Origin: ProbeOrigin and returns the CORS headers.
func (f *Fingerprinter) CORS(ctx context.Context, target string) (*CORSReport, error) {
	resp, targetURL, err := f.get(ctx, "cors probe", target, map[string]string{"Origin": ProbeOrigin})
	if err != nil {
		return nil, err
	}

	report := &CORSReport{
		URL:        targetURL,
		Origin:     ProbeOrigin,
		StatusCode: resp.StatusCode(),
		Headers:    literalHeaders(resp.Header(), CORSHeaderNames),
	}

	allowOrigin := strings.TrimSpace(resp.Header().Get("Access-Control-Allow-Origin"))
	credentials := strings.EqualFold(strings.TrimSpace(resp.Header().Get("Access-Control-Allow-Credentials")), "true")
	report.OriginReflected = allowOrigin == ProbeOrigin
	report.Wildcard = allowOrigin == "*"
	report.CredentialsWithReflection = report.OriginReflected && credentials
	return report, nil
}

func literalHeaders(headers http.Header, names []string) []HeaderValue {
	out := make([]HeaderValue, 0, len(names))
	for _, name := range names {
		values := headers.Values(name)
		out = append(out, HeaderValue{
			Name:    name,
			Value:   strings.Join(values, ", "),
			Present: len(values) > 0,
		})
	}
	return out
}

// get issues one GET. Any transport failure becomes a NetworkError; HTTP
// error statuses are still a valid response to inspect.
func (f *Fingerprinter) get(ctx context.Context, op, target string, headers map[string]string) (*resty.Response, string, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, "", err
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(t.URL)
	if err != nil {
		f.logger.Debug("fingerprint request failed", zap.String("op", op), zap.String("url", t.URL), zap.Error(err))
		return nil, t.URL, &sharedErrors.NetworkError{Op: op, Target: t.URL, Err: err}
	}
	return resp, t.URL, nil
}

// Vendors lists the WAF vendors the detector knows about.
func Vendors() []string {
	names := make([]string, 0, len(wafSignatures))
	for name := range wafSignatures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
