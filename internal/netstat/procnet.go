package netstat

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var tcpStates = map[string]string{
	"01": "ESTABLISHED",
	"02": "SYN_SENT",
	"03": "SYN_RECV",
	"04": "FIN_WAIT1",
	"05": "FIN_WAIT2",
	"06": "TIME_WAIT",
	"07": "CLOSE",
	"08": "CLOSE_WAIT",
	"09": "LAST_ACK",
	"0A": "LISTEN",
	"0B": "CLOSING",
}

type procTable struct {
	file      string
	transport string
	ipv6      bool
}

var procTables = []procTable{
	{"tcp", TransportTCP, false},
	{"tcp6", TransportTCP, true},
	{"udp", TransportUDP, false},
	{"udp6", TransportUDP, true},
}

// ProcNet reads the Linux connection tables under Root/net.
type ProcNet struct {
	Root string // defaults to /proc
}

// Connections parses every inet table. Missing tables (no IPv6, for example) are skipped;
// the call fails only when none of them can be read.
func (p *ProcNet) Connections(ctx context.Context) ([]Connection, error) {
	root := p.Root
	if root == "" {
		root = "/proc"
	}

	var (
		conns    []Connection
		readable int
		lastErr  error
	)
	for _, table := range procTables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := os.Open(filepath.Join(root, "net", table.file))
		if err != nil {
			lastErr = err
			continue
		}
		rows, err := parseProcTable(f, table)
		f.Close()
		if err != nil {
			lastErr = err
			continue
		}
		readable++
		conns = append(conns, rows...)
	}

	if readable == 0 {
		return nil, fmt.Errorf("read connection tables: %w", lastErr)
	}
	return conns, nil
}

func parseProcTable(r io.Reader, table procTable) ([]Connection, error) {
	scanner := bufio.NewScanner(r)
	scanner.Scan() // header

	var conns []Connection
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		localIP, localPort, ok := parseHexAddr(fields[1], table.ipv6)
		if !ok {
			continue
		}
		remoteIP, remotePort, ok := parseHexAddr(fields[2], table.ipv6)
		if !ok {
			continue
		}

		conn := Connection{
			LocalIP:   localIP,
			LocalPort: localPort,
			Transport: table.transport,
			State:     "NONE",
		}
		if table.transport == TransportTCP {
			state, known := tcpStates[strings.ToUpper(fields[3])]
			if !known {
				state = "UNKNOWN"
			}
			conn.State = state
		}
		if remotePort != 0 || !net.ParseIP(remoteIP).IsUnspecified() {
			conn.RemoteIP = remoteIP
			conn.RemotePort = remotePort
			conn.HasRemote = true
		}
		conns = append(conns, conn)
	}
	return conns, scanner.Err()
}

// parseHexAddr decodes the kernel's "IP:PORT" hex notation. IPv4 is one little-endian
// word; IPv6 is four little-endian 32-bit words.
func parseHexAddr(raw string, ipv6 bool) (string, int, bool) {
	host, portHex, found := strings.Cut(raw, ":")
	if !found {
		return "", 0, false
	}
	port, err := strconv.ParseUint(portHex, 16, 16)
	if err != nil {
		return "", 0, false
	}
	b, err := hex.DecodeString(host)
	if err != nil {
		return "", 0, false
	}

	size := net.IPv4len
	if ipv6 {
		size = net.IPv6len
	}
	if len(b) != size {
		return "", 0, false
	}

	ip := make(net.IP, size)
	for word := 0; word < size/4; word++ {
		for i := 0; i < 4; i++ {
			ip[word*4+i] = b[word*4+3-i]
		}
	}
	return ip.String(), int(port), true
}
