package cmd

import (
	"time"

	"github.com/khanhnv2901/sparrow-cli/internal/application"
	"github.com/khanhnv2901/sparrow-cli/internal/monitor"
	"github.com/khanhnv2901/sparrow-cli/internal/recon"
	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultRulesDir    = "./config"
	defaultScanWorkers = 50
	defaultMaxPages    = 10
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	RulesDir string
	Output   string
	Verbose  bool
	Monitor  MonitorConfig
	Scan     ScanConfig
	Crawl    CrawlConfig
	HTTP     HTTPConfig
	DNS      DNSConfig
}

// MonitorConfig tunes the connection monitor.
type MonitorConfig struct {
	Interval    time.Duration
	QueueSize   int
	JoinTimeout time.Duration
}

// ScanConfig controls the port scanner.
type ScanConfig struct {
	Timeout  time.Duration
	Workers  int
	Rate     float64
	UseNmap  bool
	NmapPath string
	Deadline time.Duration
	Banner   bool
}

// CrawlConfig captures HTTP crawl options.
type CrawlConfig struct {
	Timeout  time.Duration
	Deadline time.Duration
	MaxPages int
}

// HTTPConfig applies to single-shot HTTP, TLS and whois probes.
type HTTPConfig struct {
	Timeout time.Duration
}

// DNSConfig groups DNS and DoH options.
type DNSConfig struct {
	Provider      string
	Nameserver    string
	SubdomainRate float64
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		RulesDir: defaultRulesDir,
		Output:   outputText,
		Monitor: MonitorConfig{
			Interval:    consts.MonitorPollInterval,
			QueueSize:   consts.MonitorQueueSize,
			JoinTimeout: consts.MonitorJoinTimeout,
		},
		Scan: ScanConfig{
			Timeout: consts.PortProbeTimeout,
			Workers: defaultScanWorkers,
			UseNmap: true,
		},
		Crawl: CrawlConfig{
			Timeout:  consts.CrawlRequestTimeout,
			MaxPages: defaultMaxPages,
		},
		HTTP: HTTPConfig{Timeout: consts.HTTPProbeTimeout},
		DNS:  DNSConfig{Provider: consts.DefaultDoHProvider},
	}
}

// containerConfig translates the CLI settings into engine settings.
func (c *CLIConfig) containerConfig() application.Config {
	return application.Config{
		RulesDir: c.RulesDir,
		Monitor: monitor.Options{
			Interval:    c.Monitor.Interval,
			QueueSize:   c.Monitor.QueueSize,
			JoinTimeout: c.Monitor.JoinTimeout,
		},
		Scanner: recon.ScannerOptions{
			DisableNmap: !c.Scan.UseNmap,
			NmapPath:    c.Scan.NmapPath,
			Timeout:     c.Scan.Timeout,
			Workers:     c.Scan.Workers,
			Rate:        c.Scan.Rate,
			BannerGrab:  c.Scan.Banner,
			Deadline:    c.Scan.Deadline,
		},
		CrawlTimeout:  c.Crawl.Timeout,
		CrawlDeadline: c.Crawl.Deadline,
		MaxPages:      c.Crawl.MaxPages,
		HTTPTimeout:   c.HTTP.Timeout,
		DNSProvider:   c.DNS.Provider,
		Nameserver:    c.DNS.Nameserver,
		SubdomainRate: c.DNS.SubdomainRate,
	}
}

// applyConfigDefaults merges config file and environment values into the
// runtime config when the user did not explicitly set the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	flags := cmd.Flags()

	applyStringDefault(flags, "rules-dir", "rules.dir", func(v string) { cliConfig.RulesDir = v })
	applyStringDefault(flags, "output", "output", func(v string) { cliConfig.Output = v })

	applyDurationDefault(flags, "interval", "monitor.interval", func(v time.Duration) { cliConfig.Monitor.Interval = v })
	applyIntDefault(flags, "queue-size", "monitor.queue_size", func(v int) { cliConfig.Monitor.QueueSize = v })
	applyDurationDefault(flags, "join-timeout", "monitor.join_timeout", func(v time.Duration) { cliConfig.Monitor.JoinTimeout = v })

	applyDurationDefault(flags, "timeout", "scan.timeout", func(v time.Duration) { cliConfig.Scan.Timeout = v })
	applyIntDefault(flags, "workers", "scan.workers", func(v int) { cliConfig.Scan.Workers = v })
	applyFloatDefault(flags, "rate", "scan.rate", func(v float64) { cliConfig.Scan.Rate = v })
	applyBoolDefault(flags, "nmap", "scan.use_nmap", func(v bool) { cliConfig.Scan.UseNmap = v })
	applyStringDefault(flags, "nmap-path", "scan.nmap_path", func(v string) { cliConfig.Scan.NmapPath = v })
	applyDurationDefault(flags, "deadline", "scan.deadline", func(v time.Duration) { cliConfig.Scan.Deadline = v })

	applyDurationDefault(flags, "crawl-timeout", "crawl.timeout", func(v time.Duration) { cliConfig.Crawl.Timeout = v })
	applyIntDefault(flags, "max-pages", "crawl.max_pages", func(v int) { cliConfig.Crawl.MaxPages = v })

	applyDurationDefault(flags, "http-timeout", "http.timeout", func(v time.Duration) { cliConfig.HTTP.Timeout = v })

	applyStringDefault(flags, "doh-provider", "dns.provider", func(v string) { cliConfig.DNS.Provider = v })
	applyStringDefault(flags, "nameserver", "dns.nameserver", func(v string) { cliConfig.DNS.Nameserver = v })
}

func flagChanged(flags *pflag.FlagSet, name string) bool {
	if flags == nil {
		return false
	}
	flag := flags.Lookup(name)
	return flag != nil && flag.Changed
}

func applyIntDefault(flags *pflag.FlagSet, name, key string, setter func(int)) {
	if setter == nil || !viper.IsSet(key) || flagChanged(flags, name) {
		return
	}
	setter(viper.GetInt(key))
}

func applyBoolDefault(flags *pflag.FlagSet, name, key string, setter func(bool)) {
	if setter == nil || !viper.IsSet(key) || flagChanged(flags, name) {
		return
	}
	setter(viper.GetBool(key))
}

func applyFloatDefault(flags *pflag.FlagSet, name, key string, setter func(float64)) {
	if setter == nil || !viper.IsSet(key) || flagChanged(flags, name) {
		return
	}
	setter(viper.GetFloat64(key))
}

func applyDurationDefault(flags *pflag.FlagSet, name, key string, setter func(time.Duration)) {
	if setter == nil || !viper.IsSet(key) || flagChanged(flags, name) {
		return
	}
	setter(viper.GetDuration(key))
}

func applyStringDefault(flags *pflag.FlagSet, name, key string, setter func(string)) {
	if setter == nil || !viper.IsSet(key) || flagChanged(flags, name) {
		return
	}
	if v := viper.GetString(key); v != "" {
		setter(v)
	}
}
