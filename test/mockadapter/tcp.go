// Copyright (c) Dapkit contributors. All rights reserved.

package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var tcpCmd = &cobra.Command{
	Use:   "tcp",
	Short: "Serve DAP over a TCP connection",
	Long:  `TCP mode listens for a single client connection and serves the protocol over it. With --port 0 a port is allocated and announced on stdout.`,
	RunE:  runTCP,
}

var (
	tcpAddress string
	tcpPort    string
	tcpTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(tcpCmd)
	tcpCmd.Flags().StringVar(&tcpAddress, "address", "127.0.0.1", "Address to bind to")
	tcpCmd.Flags().StringVar(&tcpPort, "port", "0", "Port to bind to (0 allocates one)")
	tcpCmd.Flags().DurationVar(&tcpTimeout, "timeout", 30*time.Second, "How long to wait for a client")
}

func runTCP(cmd *cobra.Command, args []string) error {
	listenAddr := net.JoinHostPort(tcpAddress, tcpPort)
	listener, listenerErr := net.Listen("tcp", listenAddr)
	if listenerErr != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, listenerErr)
	}
	defer listener.Close()

	_, boundPort, _ := net.SplitHostPort(listener.Addr().String())
	// Clients discover the port from this announcement.
	fmt.Fprintf(os.Stdout, "Listening on port %s\n", boundPort)

	connChan := make(chan net.Conn, 1)
	errChan := make(chan error, 1)

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			errChan <- acceptErr
			return
		}
		connChan <- conn
	}()

	var conn net.Conn
	select {
	case <-time.After(tcpTimeout):
		return fmt.Errorf("timeout waiting for a client connection")
	case acceptErr := <-errChan:
		return fmt.Errorf("failed to accept connection: %w", acceptErr)
	case conn = <-connChan:
		defer conn.Close()
	}

	return serve(conn, conn)
}
