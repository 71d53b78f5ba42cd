package recon

import (
	"strconv"
	"strings"

	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

const (
	minPort = 1
	maxPort = 65535
)

// ParsePortSpec expands a port specification into the ports it names.
// A spec is either a single port ("80"), one inclusive range ("78-82") or a
// comma-separated list of single ports ("22,80,443"). Ranges inside lists are
// rejected. Duplicates in a list are collapsed, keeping first-seen order.
func ParsePortSpec(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, &sharedErrors.ParseError{Input: spec, Reason: "empty port specification"}
	}

	if strings.Contains(spec, "-") {
		if strings.Contains(spec, ",") {
			return nil, &sharedErrors.ParseError{Input: spec, Reason: "ranges cannot be combined with a list"}
		}
		return parseRange(spec)
	}

	parts := strings.Split(spec, ",")
	ports := make([]int, 0, len(parts))
	seen := make(map[int]struct{}, len(parts))
	for _, part := range parts {
		port, err := parsePort(spec, part)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[port]; dup {
			continue
		}
		seen[port] = struct{}{}
		ports = append(ports, port)
	}
	return ports, nil
}

func parseRange(spec string) ([]int, error) {
	bounds := strings.Split(spec, "-")
	if len(bounds) != 2 {
		return nil, &sharedErrors.ParseError{Input: spec, Reason: "range must be start-end"}
	}
	start, err := parsePort(spec, bounds[0])
	if err != nil {
		return nil, err
	}
	end, err := parsePort(spec, bounds[1])
	if err != nil {
		return nil, err
	}
	if start > end {
		return nil, &sharedErrors.ParseError{Input: spec, Reason: "range start exceeds end"}
	}

	ports := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		ports = append(ports, p)
	}
	return ports, nil
}

func parsePort(spec, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &sharedErrors.ParseError{Input: spec, Reason: "empty port"}
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &sharedErrors.ParseError{Input: spec, Reason: "invalid port " + strconv.Quote(raw)}
	}
	if port < minPort || port > maxPort {
		return 0, &sharedErrors.ParseError{Input: spec, Reason: "port " + raw + " out of range"}
	}
	return port, nil
}

// FormatPortSpec renders ports as a comma-separated list accepted by nmap -p.
func FormatPortSpec(ports []int) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}
