package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// MonitorPollInterval is how often the connection table is sampled.
	MonitorPollInterval = time.Second
	// MonitorJoinTimeout bounds how long Stop waits for each worker.
	MonitorJoinTimeout = time.Second
	// MonitorQueueSize caps pending connection events between capture and processing.
	MonitorQueueSize = 1024
)

const (
	// PortProbeTimeout is the per-port TCP dial timeout of the connect prober.
	PortProbeTimeout = time.Second
	// CrawlRequestTimeout is the per-page fetch timeout of the crawler.
	CrawlRequestTimeout = 5 * time.Second
	// HTTPProbeTimeout is the timeout for single-shot fingerprint and DoH requests.
	HTTPProbeTimeout = 10 * time.Second
	// MaxCrawlBodyBytes caps how much of a crawled page is parsed for links.
	MaxCrawlBodyBytes = 512 * 1024
)

const (
	// DefaultRulesFile is the rule file name inside the config directory.
	DefaultRulesFile = "security_rules.yaml"
	// DefaultBlockListFile is the blocked IP file name inside the config directory.
	DefaultBlockListFile = "blocked_ips.json"
	// DefaultDoHProvider is used until the operator selects another resolver.
	DefaultDoHProvider = "https://dns.google/dns-query"
	// UserAgent identifies outbound reconnaissance requests.
	UserAgent = "sparrow-cli/1.0"
)
