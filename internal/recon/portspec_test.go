package recon

import (
	"errors"
	"reflect"
	"testing"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

func TestParsePortSpec(t *testing.T) {
	tests := []struct {
		spec string
		want []int
	}{
		{"80", []int{80}},
		{"78-82", []int{78, 79, 80, 81, 82}},
		{"22, 80,443", []int{22, 80, 443}},
		{"443,443,80", []int{443, 80}},
		{"65535-65535", []int{65535}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParsePortSpec(tt.spec)
			if err != nil {
				t.Fatalf("ParsePortSpec(%q) returned error: %v", tt.spec, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParsePortSpec(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestParsePortSpecMalformed(t *testing.T) {
	for _, spec := range []string{"", "abc", "0", "65536", "90-80", "1-2-3", "80,", "10-20,30", "-5"} {
		t.Run(spec, func(t *testing.T) {
			ports, err := ParsePortSpec(spec)
			if err == nil {
				t.Fatalf("expected error for %q, got %v", spec, ports)
			}
			var perr *sharedErrors.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %T", err)
			}
			if !errors.Is(err, sharedErrors.ErrInvalidInput) {
				t.Fatal("expected ParseError to unwrap to ErrInvalidInput")
			}
		})
	}
}

func TestFormatPortSpec(t *testing.T) {
	if got := FormatPortSpec([]int{22, 80, 443}); got != "22,80,443" {
		t.Fatalf("FormatPortSpec() = %q", got)
	}
}
