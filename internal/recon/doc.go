// Package recon implements the active reconnaissance tools: port scanning,
// same-origin crawling, WAF / security-header / CORS fingerprinting, DNS
// enumeration, subdomain discovery, TLS certificate inspection and WHOIS.
//
// Every tool is a synchronous call that performs blocking network I/O bounded
// by the caller's context and the tool's own per-request timeout. Callers that
// need asynchronous execution wrap these calls in a job runner.
package recon
