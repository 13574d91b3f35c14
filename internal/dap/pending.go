/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// PendingRequest is the caller's handle for a sent request awaiting its
// response. It resolves exactly once: with the response body, with an
// adapter-reported error, or with a session-level failure.
type PendingRequest struct {
	seq     uint64
	command string

	done chan struct{}
	once sync.Once

	body json.RawMessage
	err  error

	owner *pendingRequestMap
}

func newPendingRequest(seq uint64, command string, owner *pendingRequestMap) *PendingRequest {
	return &PendingRequest{
		seq:     seq,
		command: command,
		done:    make(chan struct{}),
		owner:   owner,
	}
}

// Seq returns the sequence number the request was sent with.
func (p *PendingRequest) Seq() uint64 { return p.seq }

// Command returns the request command.
func (p *PendingRequest) Command() string { return p.command }

// Done returns a channel closed when the request resolves.
func (p *PendingRequest) Done() <-chan struct{} { return p.done }

// Await blocks until the request resolves or ctx is done. A deadline
// expiry resolves the request locally with ErrRequestTimeout and removes
// it from the pending table; the adapter may still answer later, and that
// late response is discarded as unmatched. Cancellation likewise frees
// local state — the in-flight adapter-side operation is not cancelled.
func (p *PendingRequest) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-p.done:
		return p.body, p.err
	case <-ctx.Done():
		// Claim the entry; the read loop resolves it if it got there first.
		if claimed, ok := p.owner.Remove(p.seq); ok && claimed == p {
			ctxErr := ctx.Err()
			if errors.Is(ctxErr, context.DeadlineExceeded) {
				p.resolve(nil, ErrRequestTimeout)
			} else {
				p.resolve(nil, ctxErr)
			}
		}
		<-p.done
		return p.body, p.err
	}
}

// resolve completes the handle. Only the first call takes effect.
func (p *PendingRequest) resolve(body json.RawMessage, err error) {
	p.once.Do(func() {
		p.body = body
		p.err = err
		close(p.done)
	})
}

// pendingRequestMap is the session's table of requests awaiting responses,
// keyed by outbound sequence number. It is owned exclusively by the client;
// entries are removed exactly once, by whichever path resolves them.
type pendingRequestMap struct {
	mu       sync.Mutex
	requests map[uint64]*PendingRequest
	closed   bool
}

func newPendingRequestMap() *pendingRequestMap {
	return &pendingRequestMap{
		requests: make(map[uint64]*PendingRequest),
	}
}

// Add registers p. It returns false once the map has been drained: after
// teardown has failed the outstanding requests, no new entry may slip in
// behind it, or nothing would ever resolve that entry.
func (m *pendingRequestMap) Add(p *PendingRequest) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.requests[p.seq] = p
	return true
}

// Remove retrieves and removes the entry for seq. The second return is
// false if no such request is pending.
func (m *pendingRequestMap) Remove(seq uint64) (*PendingRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.requests[seq]
	if !ok {
		return nil, false
	}
	delete(m.requests, seq)
	return p, true
}

func (m *pendingRequestMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Drain removes and returns every pending entry and closes the map to
// further Adds. Used at session teardown to fail outstanding requests.
func (m *pendingRequestMap) Drain() []*PendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	drained := make([]*PendingRequest, 0, len(m.requests))
	for _, p := range m.requests {
		drained = append(drained, p)
	}
	m.requests = make(map[uint64]*PendingRequest)
	return drained
}

// sequenceCounter mints the client's outbound sequence numbers: strictly
// increasing, starting at 1, never reused within a session. It is
// independent of the adapter's inbound counter.
type sequenceCounter struct {
	mu  sync.Mutex
	seq uint64
}

func (c *sequenceCounter) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *sequenceCounter) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}
