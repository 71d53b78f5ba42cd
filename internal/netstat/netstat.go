// Package netstat enumerates the host's active network connections.
package netstat

import (
	"context"
	"fmt"
	"net"
)

// Transport names reported for each connection.
const (
	TransportTCP = "tcp"
	TransportUDP = "udp"
)

// Connection is one row of the OS connection table.
type Connection struct {
	LocalIP    string
	LocalPort  int
	RemoteIP   string
	RemotePort int
	HasRemote  bool // false for listening / unconnected sockets
	Transport  string
	State      string
}

// Enumerator returns the current connection table on demand.
type Enumerator interface {
	Connections(ctx context.Context) ([]Connection, error)
}

// EnumeratorFunc adapts a function to the Enumerator interface.
type EnumeratorFunc func(ctx context.Context) ([]Connection, error)

// Connections calls f(ctx).
func (f EnumeratorFunc) Connections(ctx context.Context) ([]Connection, error) {
	return f(ctx)
}

// Interfaces lists network interfaces carrying an IPv4 address as "name (addr)".
func Interfaces() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	var out []string
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			out = append(out, fmt.Sprintf("%s (%s)", iface.Name, ipNet.IP.String()))
		}
	}
	return out, nil
}
