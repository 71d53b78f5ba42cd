package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	reconapp "github.com/khanhnv2901/sparrow-cli/internal/application/recon"
	"github.com/khanhnv2901/sparrow-cli/internal/intercept"
	"github.com/khanhnv2901/sparrow-cli/internal/recon"
)

// printResult writes a tool report in the configured output format.
func printResult(w io.Writer, format string, result any) error {
	if format == outputJSON {
		return printJSON(w, result)
	}

	switch r := result.(type) {
	case *recon.ScanResult:
		printScan(w, r)
	case *reconapp.CrawlResult:
		printCrawl(w, r)
	case *recon.WAFReport:
		printWAF(w, r)
	case *recon.HeaderReport:
		printHeaders(w, r)
	case *recon.CORSReport:
		printCORS(w, r)
	case *recon.DNSReport:
		printDNS(w, r)
	case *reconapp.SubdomainResult:
		printSubdomains(w, r)
	case *recon.CertificateInfo:
		printCertificate(w, r)
	case *recon.WhoisResult:
		fmt.Fprintf(w, "%s %s (via %s)\n\n%s\n", colorInfo("→"), r.Domain, strings.Join(r.Servers, " → "), strings.TrimSpace(r.Raw))
	case *reconapp.ResolveResult:
		fmt.Fprintf(w, "%s %s → %s\n", colorInfo("→"), r.Domain, strings.Join(r.Addresses, ", "))
	default:
		return printJSON(w, result)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJSONLine emits v as a single compact line for streamed output.
func writeJSONLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func printScan(w io.Writer, r *recon.ScanResult) {
	open := r.OpenPorts()
	fmt.Fprintf(w, "%s %s scanned with %s in %s\n", colorInfo("→"), r.Target, r.Strategy, r.Duration.Round(time.Millisecond))
	if len(open) == 0 {
		fmt.Fprintln(w, "  no open ports found")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PORT\tSTATE\tSERVICE\tRISK\tBANNER")
	for _, p := range open {
		fmt.Fprintf(tw, "%d/%s\t%s\t%s\t%s\t%s\n", p.Port, p.Protocol, formatStatusWithColor(p.State), p.Service, formatRisk(p.Risk), p.Banner)
	}
	_ = tw.Flush()
}

func printCrawl(w io.Writer, r *reconapp.CrawlResult) {
	fmt.Fprintf(w, "%s %d same-origin links from %s (max %d pages)\n", colorInfo("→"), len(r.Links), r.Seed, r.MaxPages)
	for _, link := range r.Links {
		fmt.Fprintf(w, "  %s\n", link)
	}
}

func printWAF(w io.Writer, r *recon.WAFReport) {
	if len(r.Vendors) == 0 {
		fmt.Fprintf(w, "%s no WAF signatures detected on %s\n", colorInfo("→"), r.URL)
		return
	}
	fmt.Fprintf(w, "%s WAF detected on %s: %s\n", colorWarn("!"), r.URL, strings.Join(r.Vendors, ", "))
}

func printHeaderValues(w io.Writer, headers []recon.HeaderValue) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, h := range headers {
		state := "present"
		if !h.Present {
			state = "missing"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", h.Name, formatStatusWithColor(state), h.Value)
	}
	_ = tw.Flush()
}

func printHeaders(w io.Writer, r *recon.HeaderReport) {
	fmt.Fprintf(w, "%s security headers for %s (HTTP %d)\n", colorInfo("→"), r.URL, r.StatusCode)
	printHeaderValues(w, r.Headers)
}

func printCORS(w io.Writer, r *recon.CORSReport) {
	fmt.Fprintf(w, "%s CORS headers for %s with Origin %s (HTTP %d)\n", colorInfo("→"), r.URL, r.Origin, r.StatusCode)
	printHeaderValues(w, r.Headers)
	if r.CredentialsWithReflection {
		fmt.Fprintf(w, "%s origin reflected with credentials allowed\n", colorError("!"))
	} else if r.OriginReflected {
		fmt.Fprintf(w, "%s origin reflected\n", colorWarn("!"))
	} else if r.Wildcard {
		fmt.Fprintf(w, "%s wildcard origin allowed\n", colorWarn("!"))
	}
}

func printDNS(w io.Writer, r *recon.DNSReport) {
	fmt.Fprintf(w, "%s DNS records for %s via %s\n", colorInfo("→"), r.Domain, r.Nameserver)
	for _, rtype := range recon.RecordTypes {
		records := r.Records[rtype]
		if len(records) == 0 {
			fmt.Fprintf(w, "  %-5s -\n", rtype)
			continue
		}
		for _, rec := range records {
			fmt.Fprintf(w, "  %-5s %s\n", rtype, rec)
		}
	}
}

func printSubdomains(w io.Writer, r *reconapp.SubdomainResult) {
	fmt.Fprintf(w, "%s %d subdomains of %s resolved (%s resolver)\n", colorInfo("→"), len(r.Subdomains), r.Domain, r.Resolver)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range r.Subdomains {
		fmt.Fprintf(tw, "  %s\t%s\n", s.Name, s.IP)
	}
	_ = tw.Flush()
}

func printCertificate(w io.Writer, c *recon.CertificateInfo) {
	verified := formatStatusWithColor("verified")
	if !c.Verified {
		verified = colorError("unverified: " + c.VerifyError)
	}
	fmt.Fprintf(w, "%s %s (%s)\n", colorInfo("→"), c.Address, verified)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "  Subject\t%s\n", c.Subject)
	fmt.Fprintf(tw, "  Issuer\t%s\n", c.Issuer)
	fmt.Fprintf(tw, "  Valid\t%s → %s (%d days left)\n", c.NotBefore.Format(time.DateOnly), c.NotAfter.Format(time.DateOnly), c.DaysRemaining)
	fmt.Fprintf(tw, "  Protocol\t%s %s\n", c.Version, c.CipherSuite)
	if len(c.DNSNames) > 0 {
		fmt.Fprintf(tw, "  SANs\t%s\n", strings.Join(c.DNSNames, ", "))
	}
	_ = tw.Flush()
}

func printDecision(w io.Writer, url string, d intercept.Decision) {
	if !d.Blocked() {
		fmt.Fprintf(w, "%s %s\n", formatStatusWithColor(strings.ToUpper(d.Action)), url)
		return
	}
	fmt.Fprintf(w, "%s %s (%s: %s)\n", colorError(strings.ToUpper(d.Action)), url, d.Reason, d.Rule)
}
