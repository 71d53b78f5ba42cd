package intercept

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/sparrow-cli/internal/domain/rules"
	"github.com/khanhnv2901/sparrow-cli/internal/metrics"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

func TestDecide(t *testing.T) {
	store := &memoryStore{rules: &rules.RuleSet{
		BlockedDomains:    []string{"Malware.com", "adtracker.net"},
		MaliciousPatterns: []string{`union\s+select`, `document\.cookie`},
	}}
	m := metrics.Nop()
	i, err := NewInterceptor(context.Background(), store, zaptest.NewLogger(t), m)
	require.NoError(t, err)

	tests := []struct {
		url    string
		action string
		reason string
	}{
		{"http://malware.com/", ActionBlock, "blocked_domain"},
		{"https://MALWARE.com/any/path?q=1", ActionBlock, "blocked_domain"},
		{"https://adtracker.net:8443/pixel.gif", ActionBlock, "blocked_domain"},
		{"https://shop.example/search?q=1 UNION   SELECT password", ActionBlock, "malicious_pattern"},
		{"https://shop.example/?x=document.cookie", ActionBlock, "malicious_pattern"},
		{"https://sub.malware.com/", ActionAllow, ""},
		{"https://example.org/index.html", ActionAllow, ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d := i.Decide(tt.url)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}

	assert.Equal(t, 5.0, testutil.ToFloat64(m.InterceptDecisions.WithLabelValues(ActionBlock)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InterceptDecisions.WithLabelValues(ActionAllow)))
}

func TestDecideMatchesPercentEncodedPayloads(t *testing.T) {
	set := rules.DefaultRuleSet()
	i, err := NewInterceptor(context.Background(), &memoryStore{rules: &set}, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	tests := []struct {
		url    string
		action string
		rule   string
	}{
		{"https://shop.example/item?id=1 union select 1", ActionBlock, `union\s+select`},
		{"https://shop.example/item?id=1%20union%20select%201", ActionBlock, `union\s+select`},
		{"https://shop.example/item?id=1+UNION+SELECT+1", ActionBlock, `union\s+select`},
		{"https://shop.example/search?q=%3Cscript%3Ealert(1)%3C/script%3E", ActionBlock, `<script>.*?alert\(.*?\).*?</script>`},
		{"https://shop.example/run/eval%20(x)?p=100%", ActionBlock, `eval\s*\(`},
		{"https://shop.example/search?q=union%20station", ActionAllow, ""},
		{"https://shop.example/discount?p=100%", ActionAllow, ""},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d := i.Decide(tt.url)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.rule, d.Rule)
		})
	}
}

func TestMissingRulesAdoptAndPersistDefaults(t *testing.T) {
	store := &memoryStore{}
	i, err := NewInterceptor(context.Background(), store, nil, nil)
	require.NoError(t, err)

	require.NotNil(t, store.rules, "defaults must be handed back for persistence")
	assert.Equal(t, rules.DefaultRuleSet(), *store.rules)
	assert.True(t, i.Decide("http://malicious-ads.com/banner").Blocked())
	assert.True(t, i.Decide("http://example.com/?q=eval(atob(x))").Blocked())
	assert.False(t, i.Decide("http://example.com/").Blocked())
}

func TestMalformedRulesFallBackWithoutPersisting(t *testing.T) {
	loadErr := &sharedErrors.RuleLoadError{Path: "security_rules.yaml", Err: sharedErrors.ErrDeserializationFailed}
	store := &memoryStore{loadErr: loadErr}

	i, err := NewInterceptor(context.Background(), store, zaptest.NewLogger(t), nil)
	var lerr *sharedErrors.RuleLoadError
	require.True(t, errors.As(err, &lerr))
	require.NotNil(t, i)

	assert.Zero(t, store.saves, "a malformed file must be left untouched")
	assert.True(t, i.Decide("http://malware.com/").Blocked())
}

func TestInvalidPatternIsSkipped(t *testing.T) {
	store := &memoryStore{rules: &rules.RuleSet{MaliciousPatterns: []string{`(unclosed`, `evil`}}}
	i, err := NewInterceptor(context.Background(), store, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	assert.Equal(t, ActionBlock, i.Decide("http://example.com/EVIL").Action)
	assert.Equal(t, ActionAllow, i.Decide("http://example.com/(unclosed").Action)
}

func TestReloadKeepsPreviousRulesOnFailure(t *testing.T) {
	store := &memoryStore{rules: &rules.RuleSet{BlockedDomains: []string{"first.example"}}}
	i, err := NewInterceptor(context.Background(), store, nil, nil)
	require.NoError(t, err)

	store.rules = &rules.RuleSet{BlockedDomains: []string{"second.example"}}
	require.NoError(t, i.Reload(context.Background()))
	assert.True(t, i.Decide("http://second.example/").Blocked())
	assert.False(t, i.Decide("http://first.example/").Blocked())

	store.loadErr = errors.New("disk gone")
	require.Error(t, i.Reload(context.Background()))
	assert.True(t, i.Decide("http://second.example/").Blocked())
}

func TestDecideDuringReload(t *testing.T) {
	store := &memoryStore{rules: &rules.RuleSet{BlockedDomains: []string{"blocked.example"}}}
	i, err := NewInterceptor(context.Background(), store, nil, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = i.Reload(context.Background())
			}
		}
	}()

	for n := 0; n < 500; n++ {
		require.True(t, i.Decide("http://blocked.example/").Blocked())
	}
	close(stop)
	wg.Wait()
}
