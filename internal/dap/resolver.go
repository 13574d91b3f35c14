/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
)

// DefaultHost is the adapter host used when a connection template does not
// name one.
const DefaultHost = "127.0.0.1"

// DefaultConnectionTimeout bounds discovery and connect when the template
// carries no timeout of its own.
const DefaultConnectionTimeout = 30 * time.Second

// TCPTemplate is a connection template supplied by the caller. A zero Port
// means the concrete port must be discovered; a zero Timeout means the
// default applies.
type TCPTemplate struct {
	Host    string
	Port    uint16
	Timeout time.Duration
}

// Endpoint is a resolved transport target.
type Endpoint struct {
	Host string
	Port uint16

	// Timeout is the template's timeout carried through unchanged. The same
	// configured value bounds both port discovery and the subsequent
	// connect step.
	Timeout time.Duration
}

// Address returns the endpoint in host:port form.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

// PortDiscoverer finds the port an adapter is listening on when the
// connection template does not fix one. Discovery is adapter-specific;
// a typical implementation parses the adapter's own announcement of its
// listening port.
type PortDiscoverer interface {
	// DiscoverPort blocks until the adapter's port is known or ctx is done.
	DiscoverPort(ctx context.Context) (uint16, error)
}

// ResolveEndpoint determines the concrete endpoint for a connection
// template. A fixed port is used immediately, with no probing. Otherwise
// discoverer is consulted, bounded by the template's timeout; if no port is
// found in time, resolution fails with ErrPortDiscoveryTimeout.
func ResolveEndpoint(ctx context.Context, template TCPTemplate, discoverer PortDiscoverer, log logr.Logger) (Endpoint, error) {
	endpoint := Endpoint{
		Host:    template.Host,
		Port:    template.Port,
		Timeout: template.Timeout,
	}
	if endpoint.Host == "" {
		endpoint.Host = DefaultHost
	}

	if template.Port != 0 {
		log.V(1).Info("Using fixed adapter port", "host", endpoint.Host, "port", endpoint.Port)
		return endpoint, nil
	}

	if discoverer == nil {
		return Endpoint{}, fmt.Errorf("connection template has no port and no discoverer was provided")
	}

	timeout := template.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectionTimeout
	}

	discoverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	port, discoverErr := discoverer.DiscoverPort(discoverCtx)
	if discoverErr != nil {
		if errors.Is(discoverErr, context.DeadlineExceeded) && ctx.Err() == nil {
			return Endpoint{}, fmt.Errorf("%w: no port found within %s", ErrPortDiscoveryTimeout, timeout)
		}
		return Endpoint{}, fmt.Errorf("port discovery failed: %w", discoverErr)
	}

	log.V(1).Info("Discovered adapter port", "host", endpoint.Host, "port", port)
	endpoint.Port = port
	return endpoint, nil
}

// DialEndpointWithRetry connects to the endpoint, retrying with exponential
// backoff until the endpoint's timeout elapses. Adapters that announce a
// port often do so slightly before the listener accepts, so the first dial
// attempts may be refused.
func DialEndpointWithRetry(ctx context.Context, endpoint Endpoint, log logr.Logger) (Transport, error) {
	timeout := endpoint.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectionTimeout
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(50*time.Millisecond),
		backoff.WithMaxInterval(time.Second),
		backoff.WithMaxElapsedTime(timeout),
	), dialCtx)

	var conn net.Conn
	dialErr := backoff.Retry(func() error {
		var d net.Dialer
		var attemptErr error
		conn, attemptErr = d.DialContext(dialCtx, "tcp", endpoint.Address())
		return attemptErr
	}, b)
	if dialErr != nil {
		return nil, fmt.Errorf("%w: failed to connect to adapter at %s: %v", ErrTransportFailure, endpoint.Address(), dialErr)
	}

	log.V(1).Info("Connected to adapter", "address", endpoint.Address())
	return NewTCPTransport(conn), nil
}

// portAnnouncement matches the listening-port announcement adapters print
// on startup, e.g. "Listening on port 43219" or "DAP server listening at
// 127.0.0.1:43219".
var portAnnouncement = regexp.MustCompile(`(?i)listening\s+(?:on|at)\s+(?:port\s+)?(?:[\d.]+:)?(\d{1,5})`)

// OutputPortDiscoverer discovers the adapter's port by scanning its output
// stream for a listening-port announcement line by line.
type OutputPortDiscoverer struct {
	Output io.Reader
	Log    logr.Logger
}

func (d *OutputPortDiscoverer) DiscoverPort(ctx context.Context) (uint16, error) {
	type result struct {
		port uint16
		err  error
	}
	found := make(chan result, 1)

	go func() {
		scanner := bufio.NewScanner(d.Output)
		for scanner.Scan() {
			line := scanner.Text()
			d.Log.V(2).Info("Adapter output", "line", line)

			match := portAnnouncement.FindStringSubmatch(line)
			if match == nil {
				continue
			}

			port, parseErr := strconv.ParseUint(match[1], 10, 16)
			if parseErr != nil || port == 0 {
				continue
			}

			found <- result{port: uint16(port)}
			return
		}

		scanErr := scanner.Err()
		if scanErr == nil {
			scanErr = io.EOF
		}
		found <- result{err: fmt.Errorf("adapter output ended before announcing a port: %w", scanErr)}
	}()

	select {
	case r := <-found:
		return r.port, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
