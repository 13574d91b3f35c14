/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package pubsub

import (
	"sync"
	"sync/atomic"
)

type HandleT uint32

const InvalidHandle HandleT = 0

var nextHandle atomic.Uint32

// Subscription delivers notifications from a SubscriptionSet to a single
// sink channel. Delivery stops permanently once the subscription is
// cancelled; a cancelled subscription's sink is closed.
type Subscription[NotificationT any] struct {
	Handle HandleT
	sink   chan<- NotificationT
	owner  *SubscriptionSet[NotificationT]
	lock   sync.Mutex
}

func newSubscription[NotificationT any](owner *SubscriptionSet[NotificationT], sink chan<- NotificationT) *Subscription[NotificationT] {
	return &Subscription[NotificationT]{
		Handle: HandleT(nextHandle.Add(1)),
		sink:   sink,
		owner:  owner,
	}
}

// Cancel removes the subscription from its set and closes the sink.
// Safe to call more than once.
func (s *Subscription[NotificationT]) Cancel() {
	s.lock.Lock()

	handle := s.Handle
	if handle != InvalidHandle {
		// The owner must be told after the subscription lock is released.
		defer s.owner.onSubscriptionCancelled(handle)
	}
	defer s.lock.Unlock()

	if handle != InvalidHandle {
		s.Handle = InvalidHandle
		close(s.sink)
		s.sink = nil
	}
}

// Notify delivers one notification to the sink. No-op after cancellation.
// The subscriber must keep the sink drained; delivery blocks on a full
// channel.
func (s *Subscription[NotificationT]) Notify(n NotificationT) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.sink == nil {
		return
	}
	s.sink <- n
}

// Cancelled reports whether the subscription has been cancelled.
func (s *Subscription[NotificationT]) Cancelled() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.Handle == InvalidHandle
}
