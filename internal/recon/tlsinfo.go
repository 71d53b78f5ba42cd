package recon

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"
)

// CertificateInfo describes the leaf certificate and session negotiated with a TLS endpoint.
type CertificateInfo struct {
	Address       string    `json:"address"`
	ServerName    string    `json:"server_name"`
	Version       string    `json:"version"`
	CipherSuite   string    `json:"cipher_suite"`
	Subject       string    `json:"subject"`
	Issuer        string    `json:"issuer"`
	SerialNumber  string    `json:"serial_number"`
	NotBefore     time.Time `json:"not_before"`
	NotAfter      time.Time `json:"not_after"`
	DNSNames      []string  `json:"dns_names,omitempty"`
	DaysRemaining int       `json:"days_remaining"`
	Expired       bool      `json:"expired"`
	Verified      bool      `json:"verified"`
	VerifyError   string    `json:"verify_error,omitempty"`
}

// TLSInspector fetches certificate details without aborting on untrusted chains.
type TLSInspector struct {
	Timeout time.Duration
	// Roots overrides the system pool when verifying the chain.
	Roots *x509.CertPool
	now   func() time.Time
}

// Inspect connects to target (host, host:port or URL; port 443 by default)
// and reports the presented certificate. Chain verification failures are
// recorded in the result, not returned as errors.
func (i *TLSInspector) Inspect(ctx context.Context, target string) (*CertificateInfo, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	port := t.Port
	if port == "" {
		port = "443"
	}
	address := net.JoinHostPort(t.Host, port)

	timeout := i.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config: &tls.Config{
			ServerName: t.Host,
			// verification is done below so the certificate can be reported either way
			InsecureSkipVerify: true, //nolint:gosec
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("tls handshake with %s: %w", address, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, fmt.Errorf("tls handshake with %s: no peer certificate", address)
	}
	leaf := state.PeerCertificates[0]

	now := time.Now
	if i.now != nil {
		now = i.now
	}
	current := now()

	info := &CertificateInfo{
		Address:       address,
		ServerName:    t.Host,
		Version:       tlsVersionName(state.Version),
		CipherSuite:   tls.CipherSuiteName(state.CipherSuite),
		Subject:       leaf.Subject.String(),
		Issuer:        leaf.Issuer.String(),
		SerialNumber:  leaf.SerialNumber.String(),
		NotBefore:     leaf.NotBefore,
		NotAfter:      leaf.NotAfter,
		DNSNames:      leaf.DNSNames,
		DaysRemaining: int(leaf.NotAfter.Sub(current).Hours() / 24),
		Expired:       current.After(leaf.NotAfter),
	}

	intermediates := x509.NewCertPool()
	for _, cert := range state.PeerCertificates[1:] {
		intermediates.AddCert(cert)
	}
	_, verifyErr := leaf.Verify(x509.VerifyOptions{
		DNSName:       t.Host,
		Roots:         i.Roots,
		Intermediates: intermediates,
		CurrentTime:   current,
	})
	info.Verified = verifyErr == nil
	if verifyErr != nil {
		info.VerifyError = verifyErr.Error()
	}
	return info, nil
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLS1.0"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS12:
		return "TLS1.2"
	case tls.VersionTLS13:
		return "TLS1.3"
	default:
		return fmt.Sprintf("unknown(0x%x)", v)
	}
}
