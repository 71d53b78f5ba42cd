package recon

import (
	"errors"
	"testing"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input      string
		wantScheme string
		wantHost   string
		wantPort   string
		wantURL    string
	}{
		{"example.com", "http", "example.com", "", "http://example.com/"},
		{"https://example.com:8443/login", "https", "example.com", "8443", "https://example.com:8443/login"},
		{"example.com:8080", "http", "example.com", "8080", "http://example.com:8080/"},
		{"localhost:3000", "http", "localhost", "3000", "http://localhost:3000/"},
		{"192.0.2.10", "http", "192.0.2.10", "", "http://192.0.2.10/"},
		{"HTTPS://Example.com/#frag", "https", "Example.com", "", "https://Example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTarget(tt.input)
			if err != nil {
				t.Fatalf("ParseTarget(%q) returned error: %v", tt.input, err)
			}
			if got.Scheme != tt.wantScheme || got.Host != tt.wantHost || got.Port != tt.wantPort {
				t.Errorf("ParseTarget(%q) = %s %s %s, want %s %s %s", tt.input, got.Scheme, got.Host, got.Port, tt.wantScheme, tt.wantHost, tt.wantPort)
			}
			if got.URL != tt.wantURL {
				t.Errorf("ParseTarget(%q).URL = %q, want %q", tt.input, got.URL, tt.wantURL)
			}
		})
	}
}

func TestParseTargetRejects(t *testing.T) {
	for _, input := range []string{"", "   ", "ftp://example.com"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseTarget(input)
			var perr *sharedErrors.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError for %q, got %v", input, err)
			}
		})
	}
}
