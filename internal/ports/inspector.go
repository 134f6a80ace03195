// Package ports provides host port discovery and conflict-free port allocation.
package ports

import (
	"fmt"
	"net"
	"time"

	gnet "github.com/shirou/gopsutil/v3/net"
)

// Inspector reports the set of ports currently observed in use on the host.
// The snapshot is best-effort: a port reported free can be bound by another
// process immediately afterwards. Callers treat the result as a lower bound.
type Inspector interface {
	UsedPorts() (map[int]struct{}, error)
}

// SystemInspector inspects live host connections via gopsutil.
type SystemInspector struct {
	// DialFallback probes the bot port range with TCP dials when the
	// connection table cannot be read (e.g. restricted environments).
	DialFallback bool
	FallbackLo   int
	FallbackHi   int
}

// UsedPorts returns local ports with listening or established connections.
func (s *SystemInspector) UsedPorts() (map[int]struct{}, error) {
	used := make(map[int]struct{})

	conns, err := gnet.Connections("inet")
	if err != nil {
		if !s.DialFallback {
			return nil, fmt.Errorf("inspect connections: %w", err)
		}
		s.probeByDial(used)
		return used, nil
	}

	for _, conn := range conns {
		if conn.Laddr.Port == 0 {
			continue
		}
		switch conn.Status {
		case "LISTEN", "ESTABLISHED":
			used[int(conn.Laddr.Port)] = struct{}{}
		}
	}

	return used, nil
}

func (s *SystemInspector) probeByDial(used map[int]struct{}) {
	lo, hi := s.FallbackLo, s.FallbackHi
	if lo == 0 || hi == 0 {
		lo, hi = 8000, 9000
	}
	for port := lo; port <= hi; port++ {
		if dialOpen(port) {
			used[port] = struct{}{}
		}
	}
}

func dialOpen(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
