package recon

import (
	"net"
	"net/url"
	"strings"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// Target contains parsed target information
type Target struct {
	Original string // Original target string
	Scheme   string // http or https
	Host     string // Hostname (without protocol, path, port)
	Port     string // Port if specified
	Path     string // Path if specified
	URL      string // Full normalized URL (for HTTP requests)
}

// ParseTarget parses operator input into structured components.
// Accepted forms:
//   - example.com
//   - http://example.com
//   - https://example.com:443/path
//   - example.com:8080
//   - 192.0.2.10
func ParseTarget(raw string) (*Target, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &sharedErrors.ParseError{Input: raw, Reason: "empty target"}
	}

	parsed, err := url.Parse(trimmed)
	// A bare "host:port" parses with the host as scheme.
	if err != nil || parsed.Scheme == "" || strings.Contains(parsed.Scheme, ".") || parsed.Host == "" {
		parsed, err = url.Parse("http://" + trimmed)
		if err != nil {
			return nil, &sharedErrors.ParseError{Input: raw, Reason: err.Error()}
		}
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &sharedErrors.ParseError{Input: raw, Reason: "unsupported scheme " + parsed.Scheme}
	}
	host := parsed.Hostname()
	if host == "" || strings.ContainsAny(host, " \t") {
		return nil, &sharedErrors.ParseError{Input: raw, Reason: "missing host"}
	}

	parsed.Scheme = scheme
	parsed.Fragment = ""
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	return &Target{
		Original: raw,
		Scheme:   scheme,
		Host:     host,
		Port:     parsed.Port(),
		Path:     parsed.Path,
		URL:      parsed.String(),
	}, nil
}

// ExtractHost returns just the hostname of target, which is what DNS and
// socket-level tools need.
func ExtractHost(target string) (string, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return "", err
	}
	return t.Host, nil
}

// IsIP reports whether host is a literal IPv4 or IPv6 address.
func IsIP(host string) bool {
	return net.ParseIP(host) != nil
}
