package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	reconapp "github.com/khanhnv2901/sparrow-cli/internal/application/recon"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a one-shot reconnaissance tool against a target",
	Long: `Run a single reconnaissance tool against one target. Only scan hosts you are
authorized to test.`,
}

type scanToolDef struct {
	tool  string
	use   string
	short string
}

var scanTools = []scanToolDef{
	{reconapp.ToolPorts, "ports <target>", "Scan TCP ports (nmap when available, connect scan otherwise)"},
	{reconapp.ToolCrawl, "crawl <url>", "Collect same-origin links by crawling from a seed URL"},
	{reconapp.ToolWAF, "waf <url>", "Detect web application firewall signatures in response headers"},
	{reconapp.ToolHeaders, "headers <url>", "Report security response headers"},
	{reconapp.ToolCORS, "cors <url>", "Probe CORS behaviour with a foreign Origin"},
	{reconapp.ToolDNS, "dns <domain>", "Enumerate A, AAAA, MX, NS, TXT and SOA records"},
	{reconapp.ToolSubdomains, "subdomains <domain>", "Resolve common subdomain names"},
	{reconapp.ToolTLS, "tls <host[:port]>", "Inspect the TLS certificate and negotiated session"},
	{reconapp.ToolWhois, "whois <domain>", "Query whois via the IANA referral chain"},
}

var (
	scanPorts string
	scanDoH   bool
)

func newScanToolCmd(def scanToolDef) *cobra.Command {
	c := &cobra.Command{
		Use:   def.use,
		Short: def.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTool(cmd, reconapp.Request{
				Tool:     def.tool,
				Target:   args[0],
				Ports:    scanPorts,
				MaxPages: cliConfig.Crawl.MaxPages,
				UseDoH:   scanDoH,
			})
		},
	}
	switch def.tool {
	case reconapp.ToolPorts:
		c.Flags().StringVarP(&scanPorts, "ports", "p", reconapp.DefaultPortSpec, "ports to scan: N, A-B or N,M,...")
	case reconapp.ToolSubdomains:
		c.Flags().BoolVar(&scanDoH, "doh", false, "resolve candidates through the DNS-over-HTTPS cache")
	}
	return c
}

// runTool executes req through the orchestrator and prints the report.
func runTool(cmd *cobra.Command, req reconapp.Request) error {
	appCtx := getAppContext(cmd)
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	container, err := appCtx.Container(ctx)
	if err != nil {
		return err
	}
	result, err := container.Recon.Run(ctx, req)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), appCtx.Config.Output, result)
}

// signalContext cancels on Ctrl+C so long scans stop promptly.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func init() {
	flags := scanCmd.PersistentFlags()
	flags.DurationVar(&cliConfig.Scan.Timeout, "timeout", cliConfig.Scan.Timeout, "per-port dial timeout")
	flags.IntVar(&cliConfig.Scan.Workers, "workers", cliConfig.Scan.Workers, "concurrent port probes")
	flags.Float64Var(&cliConfig.Scan.Rate, "rate", cliConfig.Scan.Rate, "probes per second (0 = unlimited)")
	flags.BoolVar(&cliConfig.Scan.UseNmap, "nmap", cliConfig.Scan.UseNmap, "delegate port scans to nmap when it is installed")
	flags.StringVar(&cliConfig.Scan.NmapPath, "nmap-path", "", "nmap binary to use instead of the one on PATH")
	flags.BoolVar(&cliConfig.Scan.Banner, "banner", false, "read service banners from open ports (connect scan only)")
	flags.DurationVar(&cliConfig.Scan.Deadline, "deadline", 0, "overall deadline for a port scan (0 = none)")
	flags.DurationVar(&cliConfig.Crawl.Timeout, "crawl-timeout", cliConfig.Crawl.Timeout, "per-page fetch timeout")
	flags.IntVar(&cliConfig.Crawl.MaxPages, "max-pages", cliConfig.Crawl.MaxPages, "maximum pages fetched by a crawl")
	flags.StringVar(&cliConfig.DNS.Nameserver, "nameserver", "", "nameserver for DNS enumeration (default from resolv.conf)")

	for _, def := range scanTools {
		scanCmd.AddCommand(newScanToolCmd(def))
	}
	rootCmd.AddCommand(scanCmd)
}
