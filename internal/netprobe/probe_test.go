package netprobe

import (
	"context"
	"net"
	"os"
	"testing"
	"time"
)

func TestPortOpen(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	prober := New(time.Second, time.Second)
	ctx := context.Background()

	if !prober.PortOpen(ctx, "127.0.0.1", addr.Port) {
		t.Error("PortOpen = false for a listening port")
	}

	listener.Close()
	if prober.PortOpen(ctx, "127.0.0.1", addr.Port) {
		t.Error("PortOpen = true for a closed port")
	}
}

func TestReachableRefusedCountsAsUp(t *testing.T) {
	// Loopback refuses connections on the probe ports rather than
	// dropping them, which still proves the host is alive.
	prober := New(2*time.Second, time.Second)
	if !prober.Reachable(context.Background(), "127.0.0.1") {
		t.Error("Reachable = false for loopback")
	}
}

func TestReachableTimesOutOnBlackhole(t *testing.T) {
	// Needs a network where TEST-NET-1 packets are silently dropped.
	// Sandboxed environments often refuse them instead, which the
	// prober rightly reads as host-up, so this only runs on request.
	if os.Getenv("PRINTD_NET_TESTS") == "" {
		t.Skip("set PRINTD_NET_TESTS=1 to run tests that need real network routing")
	}
	prober := New(500*time.Millisecond, time.Second)
	start := time.Now()
	if prober.Reachable(context.Background(), "192.0.2.1") {
		t.Error("Reachable = true for a blackhole address")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("probe took %s, deadline not enforced", elapsed)
	}
}

func TestReachableCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prober := New(time.Second, time.Second)
	if prober.Reachable(ctx, "203.0.113.1") {
		t.Error("Reachable = true with a cancelled context")
	}
}
