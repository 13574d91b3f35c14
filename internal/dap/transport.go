/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
)

// Transport provides DAP message I/O over a connection to a debug adapter.
// Implementations must be safe for concurrent use by multiple goroutines for
// reading and writing, but individual reads may not be concurrent with each
// other; writes are serialized internally.
type Transport interface {
	// ReadMessage reads the next DAP protocol message from the transport.
	// It blocks until a complete message is available. End of stream is
	// reported as an error satisfying errors.Is(err, io.EOF).
	ReadMessage() (Message, error)

	// WriteMessage writes a DAP protocol message to the transport.
	WriteMessage(msg Message) error

	// Close closes the transport, releasing the underlying resource.
	// After Close, blocked ReadMessage or WriteMessage calls return errors.
	// Close is idempotent.
	Close() error
}

// tcpTransport implements Transport over a TCP connection to the adapter.
type tcpTransport struct {
	conn    net.Conn
	decoder *Decoder

	// writeMu serializes encode+write so frames never interleave.
	writeMu sync.Mutex

	closed bool
	mu     sync.Mutex
}

// NewTCPTransport creates a Transport backed by a connected TCP socket.
func NewTCPTransport(conn net.Conn) Transport {
	return &tcpTransport{
		conn:    conn,
		decoder: NewDecoder(conn),
	}
}

// DialEndpoint connects to a resolved endpoint and returns a Transport.
// The endpoint's timeout, when present, bounds the connect attempt; it is
// the same value the resolver used to bound port discovery.
func DialEndpoint(ctx context.Context, endpoint Endpoint) (Transport, error) {
	dialCtx := ctx
	if endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, endpoint.Timeout)
		defer cancel()
	}

	var d net.Dialer
	conn, dialErr := d.DialContext(dialCtx, "tcp", endpoint.Address())
	if dialErr != nil {
		return nil, fmt.Errorf("%w: failed to dial %s: %v", ErrTransportFailure, endpoint.Address(), dialErr)
	}

	return NewTCPTransport(conn), nil
}

func (t *tcpTransport) ReadMessage() (Message, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClientClosed
	}
	t.mu.Unlock()

	msg, readErr := t.decoder.Next()
	if readErr != nil {
		return nil, wrapReadError(readErr)
	}

	return msg, nil
}

func (t *tcpTransport) WriteMessage(msg Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClientClosed
	}
	t.mu.Unlock()

	data, encodeErr := Encode(msg)
	if encodeErr != nil {
		return encodeErr
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, writeErr := t.conn.Write(data); writeErr != nil {
		return fmt.Errorf("%w: %v", ErrTransportFailure, writeErr)
	}
	return nil
}

func (t *tcpTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true
	return t.conn.Close()
}

// stdioTransport implements Transport over a child process's standard
// streams. The process's stderr is never part of the transport; it carries
// diagnostics only.
type stdioTransport struct {
	decoder *Decoder
	stdout  io.ReadCloser
	stdin   io.WriteCloser

	writeMu sync.Mutex

	closed bool
	mu     sync.Mutex
}

// NewStdioTransport creates a Transport reading adapter output from stdout
// and writing requests to stdin.
func NewStdioTransport(stdout io.ReadCloser, stdin io.WriteCloser) Transport {
	return &stdioTransport{
		decoder: NewDecoder(stdout),
		stdout:  stdout,
		stdin:   stdin,
	}
}

func (t *stdioTransport) ReadMessage() (Message, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClientClosed
	}
	t.mu.Unlock()

	msg, readErr := t.decoder.Next()
	if readErr != nil {
		return nil, wrapReadError(readErr)
	}

	return msg, nil
}

func (t *stdioTransport) WriteMessage(msg Message) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClientClosed
	}
	t.mu.Unlock()

	data, encodeErr := Encode(msg)
	if encodeErr != nil {
		return encodeErr
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, writeErr := t.stdin.Write(data); writeErr != nil {
		return fmt.Errorf("%w: %v", ErrTransportFailure, writeErr)
	}
	return nil
}

func (t *stdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if closeErr := t.stdin.Close(); closeErr != nil {
		errs = append(errs, fmt.Errorf("failed to close stdin: %w", closeErr))
	}
	if closeErr := t.stdout.Close(); closeErr != nil {
		errs = append(errs, fmt.Errorf("failed to close stdout: %w", closeErr))
	}
	return errors.Join(errs...)
}

// wrapReadError keeps malformed-input errors and end-of-stream conditions
// distinguishable for the read loop while wrapping everything else as a
// transport failure.
func wrapReadError(readErr error) error {
	switch {
	case errors.Is(readErr, ErrMalformedMessage):
		return readErr
	case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
		return fmt.Errorf("adapter closed the connection: %w", readErr)
	case errors.Is(readErr, net.ErrClosed):
		return fmt.Errorf("adapter closed the connection: %w", io.EOF)
	default:
		return fmt.Errorf("%w: %v", ErrTransportFailure, readErr)
	}
}
