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
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/dapkit/dapkit/internal/networking"
)

// PortPlaceholder in adapter args is replaced with the allocated port.
const PortPlaceholder = "{{port}}"

// ErrInvalidAdapterConfig is returned when the debug adapter configuration
// has no command to run.
var ErrInvalidAdapterConfig = errors.New("invalid debug adapter configuration: Args must have at least one element")

// AdapterMode selects how the client reaches a launched adapter.
type AdapterMode string

const (
	// AdapterModeStdio talks DAP over the adapter's stdin/stdout.
	AdapterModeStdio AdapterMode = "stdio"

	// AdapterModeTCPConnect has the adapter listen; the client dials it.
	AdapterModeTCPConnect AdapterMode = "tcp-connect"

	// AdapterModeTCPCallback has the client listen; the adapter dials back.
	AdapterModeTCPCallback AdapterMode = "tcp-callback"
)

// EnvVar is a name/value pair added to the adapter's environment.
type EnvVar struct {
	Name  string
	Value string
}

// AdapterConfig describes how to launch one kind of debug adapter and what
// kind of session request its scenarios produce.
type AdapterConfig struct {
	// Name identifies the adapter in the registry.
	Name string

	// Args is the adapter command line; Args[0] is the executable.
	// In TCP modes, occurrences of {{port}} are replaced with the port.
	Args []string

	// Env is appended to the inherited environment.
	Env []EnvVar

	// Mode selects the transport to the adapter.
	Mode AdapterMode

	// TCP is the connection template for the TCP modes.
	TCP TCPTemplate

	// DefaultKind is the request kind scenarios produce when their
	// configuration does not say otherwise.
	DefaultKind RequestKind
}

// LaunchedAdapter is a running debug adapter process together with the
// transport connected to it. The adapter's stderr is drained to the
// diagnostic log and never parsed as protocol data.
type LaunchedAdapter struct {
	// Transport provides DAP message I/O with the adapter.
	Transport Transport

	cmd      *exec.Cmd
	listener net.Listener

	done    chan struct{}
	exitErr error
	mu      sync.Mutex
}

// Wait blocks until the adapter process exits and returns its exit error,
// if any.
func (la *LaunchedAdapter) Wait() error {
	<-la.done
	la.mu.Lock()
	defer la.mu.Unlock()
	return la.exitErr
}

// Done returns a channel closed when the adapter process exits.
func (la *LaunchedAdapter) Done() <-chan struct{} { return la.done }

// Pid returns the adapter's process ID.
func (la *LaunchedAdapter) Pid() int {
	if la.cmd.Process == nil {
		return 0
	}
	return la.cmd.Process.Pid
}

// Close releases the transport and listener. It does not stop the process;
// that happens when the launch context is cancelled or via Stop.
func (la *LaunchedAdapter) Close() error {
	var errs []error
	if la.listener != nil {
		if closeErr := la.listener.Close(); closeErr != nil {
			errs = append(errs, closeErr)
		}
	}
	if la.Transport != nil {
		if closeErr := la.Transport.Close(); closeErr != nil {
			errs = append(errs, closeErr)
		}
	}
	return errors.Join(errs...)
}

// Stop kills the adapter process.
func (la *LaunchedAdapter) Stop() error {
	if la.cmd.Process == nil {
		return nil
	}
	return la.cmd.Process.Kill()
}

// LaunchAdapter starts a debug adapter process per config and connects a
// transport to it. The process lifetime is tied to ctx: cancellation kills
// the process. The caller owns the returned adapter's Transport.
func LaunchAdapter(ctx context.Context, config *AdapterConfig, log logr.Logger) (*LaunchedAdapter, error) {
	if config == nil || len(config.Args) == 0 {
		return nil, ErrInvalidAdapterConfig
	}

	switch config.Mode {
	case AdapterModeTCPConnect:
		return launchTCPConnectAdapter(ctx, config, log)
	case AdapterModeTCPCallback:
		return launchTCPCallbackAdapter(ctx, config, log)
	default:
		return launchStdioAdapter(ctx, config, log)
	}
}

// launchStdioAdapter launches an adapter in stdio mode.
func launchStdioAdapter(ctx context.Context, config *AdapterConfig, log logr.Logger) (*LaunchedAdapter, error) {
	cmd := exec.Command(config.Args[0], config.Args[1:]...)
	cmd.Env = buildEnv(config)

	stdin, stdinErr := cmd.StdinPipe()
	if stdinErr != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", stdinErr)
	}

	stdout, stdoutErr := cmd.StdoutPipe()
	if stdoutErr != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", stdoutErr)
	}

	stderr, stderrErr := cmd.StderrPipe()
	if stderrErr != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", stderrErr)
	}

	adapter, startErr := startAdapterProcess(ctx, cmd, log)
	if startErr != nil {
		stdin.Close()
		return nil, startErr
	}

	go logStderr(stderr, log)

	log.Info("Launched debug adapter process (stdio mode)",
		"command", config.Args[0],
		"args", config.Args[1:],
		"pid", adapter.Pid())

	adapter.Transport = NewStdioTransport(stdout, stdin)
	return adapter, nil
}

// launchTCPConnectAdapter launches an adapter that listens on a port for
// the client to dial. With a {{port}} placeholder in the args the port is
// allocated up front; otherwise the endpoint is resolved from the
// template, discovering the port from the adapter's own announcement on
// stdout when the template does not fix one.
func launchTCPConnectAdapter(ctx context.Context, config *AdapterConfig, log logr.Logger) (*LaunchedAdapter, error) {
	template := config.TCP
	args := config.Args
	hasPlaceholder := argsHavePortPlaceholder(args)

	if hasPlaceholder && template.Port == 0 {
		port, portErr := networking.GetFreePort(template.Host, log)
		if portErr != nil {
			return nil, fmt.Errorf("failed to allocate port: %w", portErr)
		}
		template.Port = port
	}
	if hasPlaceholder {
		args = substitutePort(args, strconv.Itoa(int(template.Port)))
	}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = buildEnv(config)

	var stdout *OutputPortDiscoverer
	if template.Port == 0 {
		stdoutPipe, stdoutErr := cmd.StdoutPipe()
		if stdoutErr != nil {
			return nil, fmt.Errorf("failed to create stdout pipe: %w", stdoutErr)
		}
		stdout = &OutputPortDiscoverer{Output: stdoutPipe, Log: log}
	}

	stderr, stderrErr := cmd.StderrPipe()
	if stderrErr != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", stderrErr)
	}

	adapter, startErr := startAdapterProcess(ctx, cmd, log)
	if startErr != nil {
		return nil, startErr
	}

	go logStderr(stderr, log)

	log.Info("Launched debug adapter process (tcp-connect mode)",
		"command", args[0],
		"args", args[1:],
		"pid", adapter.Pid())

	endpoint, resolveErr := ResolveEndpoint(ctx, template, stdout, log)
	if resolveErr != nil {
		_ = adapter.Stop()
		return nil, resolveErr
	}

	transport, dialErr := DialEndpointWithRetry(ctx, endpoint, log)
	if dialErr != nil {
		_ = adapter.Stop()
		return nil, dialErr
	}

	adapter.Transport = transport
	return adapter, nil
}

// launchTCPCallbackAdapter starts a listener and launches an adapter that
// connects back to it.
func launchTCPCallbackAdapter(ctx context.Context, config *AdapterConfig, log logr.Logger) (*LaunchedAdapter, error) {
	host := config.TCP.Host
	if host == "" {
		host = DefaultHost
	}

	listener, listenErr := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if listenErr != nil {
		return nil, fmt.Errorf("failed to create listener: %w", listenErr)
	}

	listenerAddr := listener.Addr().String()
	log.Info("Listening for debug adapter callback", "address", listenerAddr)

	_, portStr, _ := net.SplitHostPort(listenerAddr)
	args := substitutePort(config.Args, portStr)

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = buildEnv(config)

	stderr, stderrErr := cmd.StderrPipe()
	if stderrErr != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", stderrErr)
	}

	adapter, startErr := startAdapterProcess(ctx, cmd, log)
	if startErr != nil {
		listener.Close()
		return nil, startErr
	}
	adapter.listener = listener

	go logStderr(stderr, log)

	log.Info("Launched debug adapter process (tcp-callback mode)",
		"command", args[0],
		"args", args[1:],
		"pid", adapter.Pid(),
		"listenAddress", listenerAddr)

	timeout := config.TCP.Timeout
	if timeout <= 0 {
		timeout = DefaultConnectionTimeout
	}

	connCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			errCh <- acceptErr
			return
		}
		connCh <- conn
	}()

	select {
	case conn := <-connCh:
		log.Info("Debug adapter connected", "remoteAddr", conn.RemoteAddr().String())
		adapter.Transport = NewTCPTransport(conn)
		return adapter, nil
	case acceptErr := <-errCh:
		_ = adapter.Stop()
		listener.Close()
		return nil, fmt.Errorf("%w: failed to accept adapter connection: %v", ErrTransportFailure, acceptErr)
	case <-time.After(timeout):
		_ = adapter.Stop()
		listener.Close()
		return nil, fmt.Errorf("%w: adapter did not call back within %s", ErrTransportFailure, timeout)
	case <-ctx.Done():
		listener.Close()
		return nil, ctx.Err()
	}
}

// startAdapterProcess starts cmd, ties its lifetime to ctx, and arranges
// exit notification through the returned adapter's done channel.
func startAdapterProcess(ctx context.Context, cmd *exec.Cmd, log logr.Logger) (*LaunchedAdapter, error) {
	if startErr := cmd.Start(); startErr != nil {
		return nil, fmt.Errorf("failed to start debug adapter: %w", startErr)
	}

	adapter := &LaunchedAdapter{
		cmd:  cmd,
		done: make(chan struct{}),
	}

	go func() {
		waitErr := cmd.Wait()
		adapter.mu.Lock()
		adapter.exitErr = waitErr
		adapter.mu.Unlock()
		close(adapter.done)

		if waitErr != nil {
			log.V(1).Info("Debug adapter process exited with error",
				"pid", adapter.Pid(),
				"error", waitErr)
		} else {
			log.V(1).Info("Debug adapter process exited", "pid", adapter.Pid())
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = cmd.Process.Kill()
		case <-adapter.done:
		}
	}()

	return adapter, nil
}

func argsHavePortPlaceholder(args []string) bool {
	for _, arg := range args {
		if strings.Contains(arg, PortPlaceholder) {
			return true
		}
	}
	return false
}

// substitutePort replaces the {{port}} placeholder in args with the port.
func substitutePort(args []string, port string) []string {
	result := make([]string, len(args))
	for i, arg := range args {
		result[i] = strings.ReplaceAll(arg, PortPlaceholder, port)
	}
	return result
}

// buildEnv builds the environment for the adapter process.
func buildEnv(config *AdapterConfig) []string {
	env := os.Environ()
	for _, e := range config.Env {
		env = append(env, e.Name+"="+e.Value)
	}
	return env
}

// logStderr drains and logs the adapter's stderr. Diagnostics only; stderr
// never carries protocol data.
func logStderr(stderr io.Reader, log logr.Logger) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		log.Info("Debug adapter stderr", "output", scanner.Text())
	}
}
