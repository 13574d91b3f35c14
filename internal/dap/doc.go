/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

/*
Package dap implements a Debug Adapter Protocol (DAP) client transport and
correlation layer: it opens a channel to an external debug adapter, frames
and parses protocol messages, correlates responses to the requests that
caused them, and fans out asynchronous events to subscribers.

# Key Components

  - Message, Request, Response, Event: the three wire message shapes and
    their typed envelope
  - Encode / Decode / Decoder: Content-Length framed JSON codec, resumable
    across partial reads
  - Transport: message I/O over a spawned adapter's stdio or a TCP socket
  - ResolveEndpoint: turns a connection template into a concrete endpoint,
    discovering the port when the template does not fix one
  - Client: the correlation engine holding the sequence counter, the
    pending-request table, the background read loop and event dispatch
  - LaunchAdapter: spawns an adapter process in stdio, tcp-connect or
    tcp-callback mode and connects a Transport to it
  - Registry: adapter name to launch configuration and request-kind
    classification, injected into the components that need it
  - SessionNotifier: best-effort session-start telemetry, structurally
    separate from the protocol engine

# Usage

	adapter, err := dap.LaunchAdapter(ctx, config, log)
	if err != nil { ... }
	client := dap.NewClient(adapter.Transport, log)
	defer client.Close()

	events := make(chan dap.Event, 16)
	client.SubscribeEvents("output", events)

	body, err := client.RoundTrip(ctx, "initialize", initArgs)

# Correlation Guarantees

Outbound sequence numbers are strictly increasing from 1 and never reused
within a session. A response resolves exactly the pending request whose seq
matches its request_seq; unmatched responses are logged and dropped.
Responses are processed in adapter write order, but because requests may be
outstanding concurrently, handle completion order is not send order.
Session-level failures (transport failure, malformed input, closure) fail
every outstanding handle; per-request failures touch only their own handle.
*/
package dap
