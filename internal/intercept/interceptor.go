// Package intercept decides whether outbound requests are allowed, and keeps
// the firewall's blocked IP set.
package intercept

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/khanhnv2901/sparrow-cli/internal/domain/rules"
	"github.com/khanhnv2901/sparrow-cli/internal/metrics"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// Actions returned by Decide.
const (
	ActionAllow = "allow"
	ActionBlock = "block"
)

// Decision is the verdict for one request URL.
type Decision struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"` // "blocked_domain" or "malicious_pattern"
	Rule   string `json:"rule,omitempty"`   // the matching domain or pattern
}

// Blocked reports whether the request must be refused.
func (d Decision) Blocked() bool { return d.Action == ActionBlock }

type compiledRules struct {
	source   rules.RuleSet
	domains  map[string]struct{}
	patterns []*regexp.Regexp
}

// Interceptor evaluates request URLs against the current rule set.
type Interceptor struct {
	store   rules.RuleRepository
	logger  *zap.Logger
	metrics *metrics.Metrics
	current atomic.Pointer[compiledRules]
}

// NewInterceptor loads the rule set from store. A missing rule file is
// replaced by the defaults, which are written back. A rule file that exists
// but cannot be read is left untouched; the defaults are used and the load
// error is returned alongside a working interceptor.
func NewInterceptor(ctx context.Context, store rules.RuleRepository, logger *zap.Logger, m *metrics.Metrics) (*Interceptor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop()
	}
	i := &Interceptor{store: store, logger: logger, metrics: m}
	err := i.Reload(ctx)
	return i, err
}

// Reload re-reads the rule set. On failure the interceptor keeps serving
// with the defaults (first load) or the previous rules (later loads).
func (i *Interceptor) Reload(ctx context.Context) error {
	set, err := i.store.LoadRules(ctx)
	switch {
	case err == nil:
	case errors.Is(err, sharedErrors.ErrRulesMissing):
		set = rules.DefaultRuleSet()
		if saveErr := i.store.SaveRules(ctx, set); saveErr != nil {
			i.logger.Warn("could not persist default security rules", zap.Error(saveErr))
		} else {
			i.logger.Info("default security rules created")
		}
	default:
		i.logger.Error("failed to load security rules", zap.Error(err))
		if i.current.Load() == nil {
			i.install(rules.DefaultRuleSet())
		}
		return err
	}

	i.install(set)
	return nil
}

func (i *Interceptor) install(set rules.RuleSet) {
	set = set.Normalize()
	compiled := &compiledRules{
		source:   set,
		domains:  make(map[string]struct{}, len(set.BlockedDomains)),
		patterns: make([]*regexp.Regexp, 0, len(set.MaliciousPatterns)),
	}
	for _, d := range set.BlockedDomains {
		compiled.domains[d] = struct{}{}
	}
	for _, p := range set.MaliciousPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			i.logger.Warn("skipping invalid malicious pattern",
				zap.String("pattern", p),
				zap.Error(errors.Join(sharedErrors.ErrInvalidPattern, err)),
			)
			continue
		}
		compiled.patterns = append(compiled.patterns, re)
	}

	i.current.Store(compiled)
	i.logger.Debug("security rules installed",
		zap.Int("blocked_domains", len(compiled.domains)),
		zap.Int("patterns", len(compiled.patterns)),
	)
}

// Decide blocks a request whose host is in the blocked domain set, or whose
// full URL matches any malicious pattern either as given or percent-decoded.
// It allows everything else.
func (i *Interceptor) Decide(requestURL string) Decision {
	rs := i.current.Load()
	decision := Decision{Action: ActionAllow}

	if host := requestHost(requestURL); host != "" {
		if _, blocked := rs.domains[host]; blocked {
			decision = Decision{Action: ActionBlock, Reason: "blocked_domain", Rule: host}
		}
	}
	if !decision.Blocked() {
		if re := matchPattern(rs.patterns, urlForms(requestURL)); re != nil {
			decision = Decision{Action: ActionBlock, Reason: "malicious_pattern", Rule: strings.TrimPrefix(re.String(), "(?i)")}
		}
	}

	i.metrics.InterceptDecisions.WithLabelValues(decision.Action).Inc()
	if decision.Blocked() {
		i.logger.Info("request blocked",
			zap.String("url", requestURL),
			zap.String("reason", decision.Reason),
			zap.String("rule", decision.Rule),
		)
	}
	return decision
}

// Rules returns the normalized rule set currently in effect.
func (i *Interceptor) Rules() rules.RuleSet {
	src := i.current.Load().source
	return rules.RuleSet{
		BlockedDomains:    append([]string(nil), src.BlockedDomains...),
		MaliciousPatterns: append([]string(nil), src.MaliciousPatterns...),
	}
}

func matchPattern(patterns []*regexp.Regexp, forms []string) *regexp.Regexp {
	for _, re := range patterns {
		for _, f := range forms {
			if re.MatchString(f) {
				return re
			}
		}
	}
	return nil
}

// urlForms returns raw followed by its percent-decoded form when that differs.
func urlForms(raw string) []string {
	forms := []string{raw}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		// A stray '%' defeats QueryUnescape; decode path and query separately.
		decoded = lenientUnescape(raw)
	}
	if decoded != raw {
		forms = append(forms, decoded)
	}
	return forms
}

func lenientUnescape(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	out := raw
	if u.RawQuery != "" {
		if q, err := url.QueryUnescape(u.RawQuery); err == nil {
			out = strings.Replace(out, u.RawQuery, q, 1)
		}
	}
	if p := u.EscapedPath(); p != "" {
		if dp, err := url.PathUnescape(p); err == nil {
			out = strings.Replace(out, p, dp, 1)
		}
	}
	return out
}

func requestHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if u.Host == "" && u.Scheme == "" {
		// bare "host/path" input
		if u, err = url.Parse("//" + strings.TrimSpace(raw)); err != nil {
			return ""
		}
	}
	return rules.NormalizeHost(u.Hostname())
}
