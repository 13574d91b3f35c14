// Copyright (c) Dapkit contributors. All rights reserved.

// Package networking provides local port allocation helpers for launching
// debug adapters that must be told which port to listen on.
package networking

import (
	"fmt"
	"net"

	"github.com/go-logr/logr"
)

// GetFreePort asks the OS for a free TCP port on the given address
// (defaults to localhost). The port is released before returning, so a
// small window exists in which another process could claim it; callers
// should treat a subsequent bind failure as retryable.
func GetFreePort(address string, log logr.Logger) (uint16, error) {
	if address == "" {
		address = "localhost"
	}

	listener, listenErr := net.Listen("tcp", net.JoinHostPort(address, "0"))
	if listenErr != nil {
		return 0, fmt.Errorf("failed to allocate a free port on %s: %w", address, listenErr)
	}
	defer listener.Close()

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", listener.Addr())
	}

	log.V(2).Info("Allocated free port", "address", address, "port", tcpAddr.Port)
	return uint16(tcpAddr.Port), nil
}

// CheckPortAvailable verifies that the given TCP port can be bound on the
// address.
func CheckPortAvailable(address string, port uint16, log logr.Logger) error {
	if address == "" {
		address = "localhost"
	}

	listener, listenErr := net.Listen("tcp", net.JoinHostPort(address, fmt.Sprintf("%d", port)))
	if listenErr != nil {
		return fmt.Errorf("port %d is not available on %s: %w", port, address, listenErr)
	}
	return listener.Close()
}

// IsValidPort reports whether port is usable as a TCP endpoint port.
// Port zero is excluded because it means "allocate for me".
func IsValidPort(port int) bool {
	return port > 0 && port <= 65535
}
