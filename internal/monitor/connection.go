package monitor

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/khanhnv2901/sparrow-cli/internal/netstat"
)

// Sentinel remote endpoint used for sockets without a peer.
const (
	NoRemoteIP   = "0.0.0.0"
	NoRemotePort = 0
)

// ConnectionKey identifies a connection for diffing. Two keys are equal only when every field is.
type ConnectionKey struct {
	LocalIP    string
	LocalPort  int
	RemoteIP   string
	RemotePort int
	Transport  string
	State      string
}

// KeyOf builds the key for a table row, substituting the sentinel for absent peers.
func KeyOf(c netstat.Connection) ConnectionKey {
	key := ConnectionKey{
		LocalIP:    c.LocalIP,
		LocalPort:  c.LocalPort,
		RemoteIP:   NoRemoteIP,
		RemotePort: NoRemotePort,
		Transport:  c.Transport,
		State:      c.State,
	}
	if c.HasRemote {
		key.RemoteIP = c.RemoteIP
		key.RemotePort = c.RemotePort
	}
	return key
}

func (k ConnectionKey) String() string {
	return fmt.Sprintf("%s-%s-%s-%s",
		net.JoinHostPort(k.LocalIP, strconv.Itoa(k.LocalPort)),
		net.JoinHostPort(k.RemoteIP, strconv.Itoa(k.RemotePort)),
		k.Transport, k.State)
}

// Snapshot is the set of keys observed in one poll.
type Snapshot map[ConnectionKey]struct{}

// Diff returns the keys of cur that are absent from prev, in the order given by order.
// order lists cur's keys as enumerated; duplicates are reported once.
func Diff(prev Snapshot, order []ConnectionKey) []ConnectionKey {
	var added []ConnectionKey
	seen := make(map[ConnectionKey]struct{}, len(order))
	for _, key := range order {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, known := prev[key]; !known {
			added = append(added, key)
		}
	}
	return added
}

// Endpoint is an IP and port pair.
type Endpoint struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP, strconv.Itoa(e.Port))
}

// ConnectionEvent reports a newly observed connection.
type ConnectionEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Local     Endpoint  `json:"local"`
	Remote    *Endpoint `json:"remote,omitempty"`
	Transport string    `json:"transport"`
	State     string    `json:"state"`
}

func newEvent(key ConnectionKey, at time.Time) ConnectionEvent {
	ev := ConnectionEvent{
		Timestamp: at,
		Local:     Endpoint{IP: key.LocalIP, Port: key.LocalPort},
		Transport: key.Transport,
		State:     key.State,
	}
	if key.RemoteIP != NoRemoteIP || key.RemotePort != NoRemotePort {
		ev.Remote = &Endpoint{IP: key.RemoteIP, Port: key.RemotePort}
	}
	return ev
}
