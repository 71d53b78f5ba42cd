package cmd

import (
	"strings"

	"github.com/fatih/color"
	"github.com/khanhnv2901/sparrow-cli/internal/recon"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

func formatStatusWithColor(status string) string {
	switch strings.ToLower(status) {
	case "ok", "open", "allow", "present", "done", "verified":
		return colorSuccess(status)
	case "error", "block", "blocked", "missing", "failed":
		return colorError(status)
	case "filtered", "pending", "running":
		return colorWarn(status)
	default:
		return status
	}
}

func formatRisk(risk string) string {
	switch risk {
	case recon.RiskCritical, recon.RiskHigh:
		return colorError(risk)
	case recon.RiskMedium:
		return colorWarn(risk)
	case recon.RiskLow:
		return colorInfo(risk)
	default:
		return risk
	}
}
