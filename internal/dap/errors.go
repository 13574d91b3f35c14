/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"errors"
	"fmt"
)

var (
	// ErrTransportFailure is returned when the channel could not be opened
	// or a write to it failed. Fatal to the session.
	ErrTransportFailure = errors.New("transport failure")

	// ErrPortDiscoveryTimeout is returned when dynamic port discovery does
	// not produce a port within the configured timeout. The caller may retry
	// with a new connection attempt.
	ErrPortDiscoveryTimeout = errors.New("port discovery timeout")

	// ErrMalformedMessage is returned when inbound bytes cannot be decoded.
	// Fatal to the session: framing cannot be safely resynchronized.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrRequestTimeout is returned when a caller-configured wait for a
	// response elapses. Surfaced only to that caller.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrConnectionClosed is returned to every outstanding caller when the
	// session is torn down while their requests were pending.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrClientClosed is returned when a request is issued against a client
	// that has already been closed.
	ErrClientClosed = errors.New("client is closed")
)

// MalformedMessageError reports undecodable inbound bytes. It carries the
// length of the offending input so the failure can be diagnosed without
// logging raw payload data.
type MalformedMessageError struct {
	// ByteCount is the length of the input that failed to decode.
	ByteCount int

	// Reason describes what made the input undecodable.
	Reason error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message (%d bytes): %v", e.ByteCount, e.Reason)
}

func (e *MalformedMessageError) Unwrap() error { return e.Reason }

// Is reports ErrMalformedMessage so callers can classify with errors.Is
// without knowing the concrete type.
func (e *MalformedMessageError) Is(target error) bool {
	return target == ErrMalformedMessage
}

// AdapterError is a failure reported by the adapter itself
// (a response with success=false). It is surfaced only to the caller of
// the specific request that failed.
type AdapterError struct {
	// Command is the request command that failed.
	Command string

	// Message is the adapter's human-readable summary, if any.
	Message string

	// Details is the structured error body, if the adapter sent one.
	Details *MessageDetails
}

func (e *AdapterError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s failed: %s", e.Command, e.Details.Render())
	}
	if e.Message != "" {
		return fmt.Sprintf("%s failed: %s", e.Command, e.Message)
	}
	return fmt.Sprintf("%s failed", e.Command)
}

// UserVisibleMessage returns the rendered error text when the adapter marked
// it for display, and ok=false when the message is diagnostic-only.
func (e *AdapterError) UserVisibleMessage() (msg string, ok bool) {
	if e.Details == nil || !e.Details.ShowUser {
		return "", false
	}
	return e.Details.Render(), true
}

// IsSessionFatal returns true if the error terminates the whole session
// rather than a single request.
func IsSessionFatal(err error) bool {
	return errors.Is(err, ErrTransportFailure) ||
		errors.Is(err, ErrMalformedMessage) ||
		errors.Is(err, ErrConnectionClosed)
}

// IsRequestError returns true if the error affects only the request whose
// handle surfaced it.
func IsRequestError(err error) bool {
	var adapterErr *AdapterError
	return errors.As(err, &adapterErr) || errors.Is(err, ErrRequestTimeout)
}
