package cmd

import (
	"context"
	"errors"
	"fmt"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// Exit codes returned by Execute.
const (
	exitFailure = 1
	exitUsage   = 2
)

// renderError formats a command error for the terminal, adding a hint for
// the failure classes an operator can act on.
func renderError(err error) string {
	if err == nil {
		return ""
	}

	var (
		parseErr *sharedErrors.ParseError
		resErr   *sharedErrors.ResolutionError
		netErr   *sharedErrors.NetworkError
		loadErr  *sharedErrors.RuleLoadError
	)
	hint := ""
	switch {
	case errors.As(err, &parseErr):
		hint = "check the target or argument syntax"
	case errors.As(err, &resErr):
		hint = "the host name did not resolve"
	case errors.Is(err, context.DeadlineExceeded):
		hint = "the operation timed out; raise the timeout or deadline"
	case errors.As(err, &netErr):
		hint = "the target could not be reached"
	case errors.As(err, &loadErr):
		hint = "fix or remove the rule file; defaults are used meanwhile"
	case errors.Is(err, sharedErrors.ErrUnsupported):
		hint = "not available on this platform or build"
	case errors.Is(err, sharedErrors.ErrNotFound):
		hint = "no records were returned"
	}

	msg := fmt.Sprintf("%s %v", colorError("✗"), err)
	if hint != "" {
		msg += fmt.Sprintf("\n  %s %s", colorInfo("→"), hint)
	}
	return msg
}

func exitCode(err error) int {
	var parseErr *sharedErrors.ParseError
	if errors.As(err, &parseErr) || errors.Is(err, sharedErrors.ErrInvalidInput) || errors.Is(err, sharedErrors.ErrMissingRequired) {
		return exitUsage
	}
	return exitFailure
}
