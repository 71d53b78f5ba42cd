package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestParseErrorUnwrapsInvalidInput(t *testing.T) {
	err := error(&ParseError{Input: "80-", Reason: "missing end port"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ParseError to match ErrInvalidInput")
	}
	if !strings.Contains(err.Error(), "missing end port") {
		t.Fatalf("unexpected message: %s", err)
	}
}

func TestResolutionErrorDefaultsToUnresolved(t *testing.T) {
	err := error(&ResolutionError{Host: "nowhere.invalid"})
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("expected ErrUnresolved, got %v", err)
	}

	inner := errors.New("no such host")
	err = &ResolutionError{Host: "nowhere.invalid", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("expected wrapped error to be preserved")
	}
}

func TestTypedErrorsAs(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"network", &NetworkError{Op: "GET", Target: "http://x", Err: errors.New("refused")}},
		{"rules", &RuleLoadError{Path: "rules.yaml", Err: errors.New("bad yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := errors.Join(errors.New("context"), tt.err)
			switch tt.err.(type) {
			case *NetworkError:
				var ne *NetworkError
				if !errors.As(wrapped, &ne) {
					t.Fatalf("errors.As failed for %T", tt.err)
				}
			case *RuleLoadError:
				var re *RuleLoadError
				if !errors.As(wrapped, &re) {
					t.Fatalf("errors.As failed for %T", tt.err)
				}
			}
			if tt.err.Error() == "" {
				t.Fatal("expected non-empty message")
			}
		})
	}
}
