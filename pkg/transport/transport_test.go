package transport

import (
	"net"
	"testing"

	"go.uber.org/zap"
)

// Shared helpers for the transport variant tests.

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func netPipe() (net.Conn, net.Conn) {
	return net.Pipe()
}

func dialTCP(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	return conn
}
