package rules

import (
	"sort"
	"strings"
)

// RuleSet is the interceptor's configuration: an exact-match domain set and
// an ordered list of URL regular expressions.
type RuleSet struct {
	BlockedDomains    []string
	MaliciousPatterns []string
}

// DefaultRuleSet returns the built-in rules adopted when no rule file exists.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		BlockedDomains: []string{
			"malware.com",
			"adtracker.net",
			"malicious-ads.com",
		},
		MaliciousPatterns: []string{
			`<script>.*?alert\(.*?\).*?</script>`,
			`union\s+select`,
			`eval\s*\(`,
			`document\.cookie`,
			`<iframe.*?src=`,
		},
	}
}

// Normalize lowercases and deduplicates domains and drops empty patterns.
// Pattern order is preserved.
func (r RuleSet) Normalize() RuleSet {
	seen := make(map[string]struct{}, len(r.BlockedDomains))
	domains := make([]string, 0, len(r.BlockedDomains))
	for _, d := range r.BlockedDomains {
		d = NormalizeHost(d)
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}

	patterns := make([]string, 0, len(r.MaliciousPatterns))
	for _, p := range r.MaliciousPatterns {
		if strings.TrimSpace(p) != "" {
			patterns = append(patterns, p)
		}
	}
	return RuleSet{BlockedDomains: domains, MaliciousPatterns: patterns}
}

// NormalizeHost lowercases host and strips a trailing dot.
func NormalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

// BlockList is the firewall's set of blocked IP addresses.
type BlockList struct {
	BlockedIPs []string
}

// DefaultBlockList returns the built-in list adopted when no blocklist file exists.
func DefaultBlockList() BlockList {
	return BlockList{BlockedIPs: []string{"192.168.1.100", "10.0.0.50"}}
}

// Sorted returns a deduplicated, sorted copy.
func (b BlockList) Sorted() BlockList {
	seen := make(map[string]struct{}, len(b.BlockedIPs))
	out := make([]string, 0, len(b.BlockedIPs))
	for _, ip := range b.BlockedIPs {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}
		out = append(out, ip)
	}
	sort.Strings(out)
	return BlockList{BlockedIPs: out}
}
