/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/dapkit/dapkit/internal/pubsub"
)

// SessionState is the lifecycle state of a client session.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateReady
	StateClosing
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReverseRequestHandler answers a request the adapter sends to the client
// (e.g. runInTerminal). Returning an error produces a failed response.
type ReverseRequestHandler func(req *Request) (json.RawMessage, error)

// Client is the DAP correlation engine for one adapter session. It owns the
// outbound sequence counter, the pending-request table and the event
// dispatch path; a background read loop decodes messages from the transport
// and routes them. The pending table and counter are scoped to this session
// and torn down when the channel closes.
type Client struct {
	transport Transport
	log       logr.Logger

	seq     sequenceCounter
	pending *pendingRequestMap

	subsMu sync.Mutex
	subs   map[string]*pubsub.SubscriptionSet[Event]

	reverseMu      sync.Mutex
	reverseHandler ReverseRequestHandler

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error

	wg sync.WaitGroup
}

// NewClient creates a client over an already-open transport and starts its
// read loop. The client takes ownership of the transport.
func NewClient(transport Transport, log logr.Logger) *Client {
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	c := &Client{
		transport: transport,
		log:       log,
		pending:   newPendingRequestMap(),
		subs:      make(map[string]*pubsub.SubscriptionSet[Event]),
	}
	c.state.Store(int32(StateReady))

	c.wg.Add(1)
	go c.readLoop()

	return c
}

// Connect opens a transport via open and returns a ready client. The
// session is in the connecting state while open runs; an open failure
// moves it directly to closed.
func Connect(ctx context.Context, open func(context.Context) (Transport, error), log logr.Logger) (*Client, error) {
	transport, openErr := open(ctx)
	if openErr != nil {
		if errors.Is(openErr, ErrTransportFailure) || errors.Is(openErr, ErrPortDiscoveryTimeout) {
			return nil, openErr
		}
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, openErr)
	}

	return NewClient(transport, log), nil
}

// State returns the session's current lifecycle state.
func (c *Client) State() SessionState {
	return SessionState(c.state.Load())
}

// LastSeq returns the most recently allocated outbound sequence number.
func (c *Client) LastSeq() uint64 {
	return c.seq.Current()
}

// PendingCount returns the number of requests awaiting responses.
func (c *Client) PendingCount() int {
	return c.pending.Len()
}

// SendRequest allocates the next sequence number, registers a pending
// entry keyed by it, writes the encoded request, and returns the handle
// the caller awaits. Arguments may be nil, a json.RawMessage, or any
// JSON-marshalable value. A write failure resolves the handle with the
// transport error, removes the entry, and tears the session down.
func (c *Client) SendRequest(command string, arguments any) (*PendingRequest, error) {
	if c.State() != StateReady {
		return nil, ErrClientClosed
	}

	args, marshalErr := marshalArguments(arguments)
	if marshalErr != nil {
		return nil, fmt.Errorf("failed to marshal %s arguments: %w", command, marshalErr)
	}

	seq := c.seq.Next()
	p := newPendingRequest(seq, command, c.pending)
	if !c.pending.Add(p) {
		// Teardown drained the table between the state check and here.
		// Registering now would strand the handle; nothing resolves
		// entries added after the drain.
		p.resolve(nil, ErrClientClosed)
		return nil, ErrClientClosed
	}

	req := &Request{
		Seq:       seq,
		Command:   command,
		Arguments: args,
	}

	if writeErr := c.transport.WriteMessage(req); writeErr != nil {
		// The entry is never left dangling: resolve it with the failure,
		// then tear the session down since the channel is unusable.
		if claimed, ok := c.pending.Remove(seq); ok {
			claimed.resolve(nil, writeErr)
		}
		c.closeWithCause(writeErr)
		return nil, writeErr
	}

	return p, nil
}

// RoundTrip sends a request and awaits its response body.
func (c *Client) RoundTrip(ctx context.Context, command string, arguments any) (json.RawMessage, error) {
	p, sendErr := c.SendRequest(command, arguments)
	if sendErr != nil {
		return nil, sendErr
	}
	return p.Await(ctx)
}

// SubscribeEvents registers sink to receive every subsequent event named
// event. Events produced before registration are not replayed. The sink is
// closed when the subscription is cancelled or the session ends.
//
// Delivery happens on the read loop and blocks on a full sink, stalling
// message routing for the whole session: sinks must be buffered and kept
// drained by the subscriber.
func (c *Client) SubscribeEvents(event string, sink chan<- Event) *pubsub.Subscription[Event] {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	set, ok := c.subs[event]
	if !ok {
		set = pubsub.NewSubscriptionSet[Event]()
		c.subs[event] = set
	}
	return set.Subscribe(sink)
}

// OnReverseRequest installs the handler for adapter-initiated requests.
// Without a handler every reverse request gets a failed response.
func (c *Client) OnReverseRequest(handler ReverseRequestHandler) {
	c.reverseMu.Lock()
	defer c.reverseMu.Unlock()
	c.reverseHandler = handler
}

// Close tears the session down: every still-pending request resolves with
// ErrConnectionClosed, event sinks are closed, and the transport is
// released. Calling it again is a no-op.
func (c *Client) Close() error {
	c.closeWithCause(ErrConnectionClosed)
	c.wg.Wait()
	return c.closeErr
}

// readLoop continuously decodes messages from the transport and routes
// them. Responses are handled in the order the adapter wrote them; the
// completion order of pending handles therefore follows adapter order,
// not send order.
func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		msg, readErr := c.transport.ReadMessage()
		if readErr != nil {
			if c.State() != StateReady {
				// Shutdown already in progress.
				return
			}

			switch {
			case errors.Is(readErr, ErrMalformedMessage):
				// Framing cannot be resynchronized; the session is done.
				c.log.Error(readErr, "Undecodable data from adapter, closing session")
				c.closeWithCause(readErr)
			case errors.Is(readErr, io.EOF):
				c.log.V(1).Info("Adapter closed the connection")
				c.closeWithCause(ErrConnectionClosed)
			default:
				c.log.Error(readErr, "Failed to read from adapter, closing session")
				c.closeWithCause(readErr)
			}
			return
		}

		switch m := msg.(type) {
		case *Response:
			c.handleResponse(m)
		case *Event:
			c.dispatchEvent(m)
		case *Request:
			c.handleReverseRequest(m)
		}
	}
}

// handleResponse resolves the pending request matching the response's
// request_seq. An unmatched response is a protocol violation but not a
// crash: it is logged and dropped without touching any other entry.
func (c *Client) handleResponse(resp *Response) {
	p, ok := c.pending.Remove(resp.RequestSeq)
	if !ok {
		c.log.Info("Discarding response matching no pending request",
			"requestSeq", resp.RequestSeq,
			"command", resp.Command)
		return
	}

	if resp.Success {
		p.resolve(resp.Body, nil)
		return
	}

	p.resolve(nil, &AdapterError{
		Command: resp.Command,
		Message: resp.Message,
		Details: parseErrorResponse(resp.Body),
	})
}

// dispatchEvent delivers the event to the subscribers registered for its
// name at delivery time. With no subscribers the event is dropped silently.
func (c *Client) dispatchEvent(evt *Event) {
	c.subsMu.Lock()
	set := c.subs[evt.Event]
	c.subsMu.Unlock()

	if set == nil {
		c.log.V(2).Info("Dropping event with no subscribers", "event", evt.Event)
		return
	}
	set.Notify(*evt)
}

// handleReverseRequest answers an adapter-initiated request. The handler
// runs off the read loop so a slow handler cannot stall message routing.
func (c *Client) handleReverseRequest(req *Request) {
	c.reverseMu.Lock()
	handler := c.reverseHandler
	c.reverseMu.Unlock()

	go func() {
		resp := &Response{
			Seq:        c.seq.Next(),
			RequestSeq: req.Seq,
			Command:    req.Command,
		}

		if handler == nil {
			resp.Message = fmt.Sprintf("unsupported command %q", req.Command)
		} else if body, handleErr := handler(req); handleErr != nil {
			resp.Message = handleErr.Error()
		} else {
			resp.Success = true
			resp.Body = body
		}

		if writeErr := c.transport.WriteMessage(resp); writeErr != nil && c.State() == StateReady {
			c.log.Error(writeErr, "Failed to respond to adapter request", "command", req.Command)
		}
	}()
}

// closeWithCause performs the Ready -> Closing -> Closed transition once.
// Every still-registered pending request resolves with cause.
func (c *Client) closeWithCause(cause error) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))

		for _, p := range c.pending.Drain() {
			p.resolve(nil, cause)
		}

		c.subsMu.Lock()
		sets := make([]*pubsub.SubscriptionSet[Event], 0, len(c.subs))
		for _, set := range c.subs {
			sets = append(sets, set)
		}
		c.subsMu.Unlock()
		for _, set := range sets {
			set.CancelAll()
		}

		c.closeErr = c.transport.Close()
		c.state.Store(int32(StateClosed))
	})
}

func marshalArguments(arguments any) (json.RawMessage, error) {
	switch args := arguments.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return args, nil
	case []byte:
		return json.RawMessage(args), nil
	default:
		return json.Marshal(arguments)
	}
}
