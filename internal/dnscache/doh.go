package dnscache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
)

// dnsTypeA is the RR type code of IPv4 address records.
const dnsTypeA = 1

// Resolver performs one A-record lookup against a DoH endpoint.
type Resolver interface {
	Query(ctx context.Context, endpoint, domain string) ([]string, error)
}

// DoHResolver speaks the JSON flavour of DNS-over-HTTPS.
type DoHResolver struct {
	client *resty.Client
}

// NewDoHResolver creates a resolver with the given per-request timeout.
func NewDoHResolver(timeout time.Duration) *DoHResolver {
	if timeout <= 0 {
		timeout = consts.HTTPProbeTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/dns-json").
		SetHeader("User-Agent", consts.UserAgent)
	return &DoHResolver{client: client}
}

type dohAnswer struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	TTL  int    `json:"TTL"`
	Data string `json:"data"`
}

type dohResponse struct {
	Status int         `json:"Status"`
	Answer []dohAnswer `json:"Answer"`
}

// Query sends GET endpoint?name=<domain>&type=A. A non-200 status or an
// answer without A records is ErrNotFound; transport failures are NetworkError.
func (r *DoHResolver) Query(ctx context.Context, endpoint, domain string) ([]string, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"name": domain,
			"type": "A",
		}).
		Get(endpoint)
	if err != nil {
		return nil, &sharedErrors.NetworkError{Op: "doh query", Target: endpoint, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d: %w", domain, resp.StatusCode(), sharedErrors.ErrNotFound)
	}

	var payload dohResponse
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", domain, sharedErrors.ErrDeserializationFailed, err)
	}

	var ips []string
	for _, answer := range payload.Answer {
		if answer.Type == dnsTypeA && answer.Data != "" {
			ips = append(ips, answer.Data)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%s: %w", domain, sharedErrors.ErrNotFound)
	}
	return ips, nil
}
