package recon

// Risk classes attached to open ports.
const (
	RiskCritical = "critical"
	RiskHigh     = "high"
	RiskMedium   = "medium"
	RiskLow      = "low"
	RiskInfo     = "info"
)

var serviceNames = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	111:   "rpcbind",
	135:   "msrpc",
	139:   "netbios-ssn",
	143:   "imap",
	443:   "https",
	445:   "smb",
	587:   "submission",
	993:   "imaps",
	995:   "pop3s",
	1433:  "mssql",
	1521:  "oracle",
	2049:  "nfs",
	3306:  "mysql",
	3389:  "rdp",
	5432:  "postgresql",
	5900:  "vnc",
	6379:  "redis",
	8080:  "http-alt",
	8443:  "https-alt",
	9200:  "elasticsearch",
	11211: "memcached",
	27017: "mongodb",
}

var portRisk = map[int]string{
	23:    RiskCritical, // Telnet
	3389:  RiskCritical, // RDP
	5900:  RiskCritical, // VNC
	21:    RiskHigh,
	22:    RiskHigh,
	445:   RiskHigh,
	1433:  RiskHigh,
	1521:  RiskHigh,
	3306:  RiskHigh,
	5432:  RiskHigh,
	6379:  RiskHigh,
	9200:  RiskHigh,
	11211: RiskHigh,
	27017: RiskHigh,
	25:    RiskMedium,
	110:   RiskMedium,
	143:   RiskMedium,
	8080:  RiskMedium,
	8443:  RiskMedium,
	80:    RiskLow,
	443:   RiskLow,
}

// ServiceName returns the well-known service for port, or "unknown".
func ServiceName(port int) string {
	if service, ok := serviceNames[port]; ok {
		return service
	}
	return "unknown"
}

// PortRisk classifies the exposure of an open port.
func PortRisk(port int) string {
	if risk, ok := portRisk[port]; ok {
		return risk
	}
	return RiskInfo
}
