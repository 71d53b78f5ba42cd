package cmd

import (
	"testing"

	"github.com/fatih/color"
	"github.com/khanhnv2901/sparrow-cli/internal/recon"
)

func TestFormatStatusWithColor(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = original
	})

	tests := []struct {
		name   string
		status string
		want   string
	}{
		{name: "open port", status: "open", want: "open"},
		{name: "allow", status: "ALLOW", want: "ALLOW"},
		{name: "blocked", status: "block", want: "block"},
		{name: "unknown", status: "closed", want: "closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatStatusWithColor(tt.status); got != tt.want {
				t.Fatalf("formatStatusWithColor(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestFormatRiskKeepsText(t *testing.T) {
	original := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = original })

	for _, risk := range []string{recon.RiskCritical, recon.RiskHigh, recon.RiskMedium, recon.RiskLow, recon.RiskInfo} {
		if got := formatRisk(risk); got != risk {
			t.Fatalf("formatRisk(%q) = %q", risk, got)
		}
	}
}
