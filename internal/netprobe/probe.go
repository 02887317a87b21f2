// Package netprobe checks printer reachability over TCP. It avoids
// shelling out to ping so probes carry proper timeouts and need no
// raw-socket privileges.
package netprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Well-known printing ports tried when probing host reachability.
var probePorts = []int{9100, 631, 515, 80}

// Prober dials printers over TCP with bounded timeouts.
type Prober struct {
	dialer      net.Dialer
	pingTimeout time.Duration
	portTimeout time.Duration
}

func New(pingTimeout, portTimeout time.Duration) *Prober {
	if pingTimeout <= 0 {
		pingTimeout = 3 * time.Second
	}
	if portTimeout <= 0 {
		portTimeout = 5 * time.Second
	}
	return &Prober{pingTimeout: pingTimeout, portTimeout: portTimeout}
}

// Reachable reports whether the host answers on the network at all.
// A refused connection still proves the host is up; only timeouts and
// unreachable-network errors count as down. The probe ports are tried
// in order until one gives a verdict.
func (p *Prober) Reachable(ctx context.Context, host string) bool {
	deadline := time.Now().Add(p.pingTimeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for _, port := range probePorts {
		conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprint(port)))
		if err == nil {
			conn.Close()
			return true
		}
		if errors.Is(err, syscall.ECONNREFUSED) {
			return true
		}
		if ctx.Err() != nil || errors.Is(err, os.ErrDeadlineExceeded) {
			return false
		}
		// Unreachable host or route, try the next port in the
		// remaining window.
	}
	return false
}

// PortOpen reports whether the given service port accepts connections.
func (p *Prober) PortOpen(ctx context.Context, host string, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, p.portTimeout)
	defer cancel()

	conn, err := p.dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
