package recon

import (
	"crypto/tls"
	"time"

	"github.com/go-resty/resty/v2"

	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
)

const maxRedirects = 10

// NewHTTPClient builds the resty client shared by the crawler and the
// fingerprint probes.
func NewHTTPClient(timeout time.Duration, userAgent string) *resty.Client {
	if timeout <= 0 {
		timeout = consts.HTTPProbeTimeout
	}
	if userAgent == "" {
		userAgent = consts.UserAgent
	}

	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects)).
		SetTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12})
}
