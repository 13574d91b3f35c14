/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package pubsub

import "sync"

// SubscriptionSet manages subscriptions that share one notification source.
// Notify delivers to the subscriptions present at delivery time (a snapshot);
// subscribers added afterwards do not retroactively receive the notification.
type SubscriptionSet[NotificationT any] struct {
	subscriptions map[HandleT]*Subscription[NotificationT]
	mutex         sync.Mutex
}

func NewSubscriptionSet[NotificationT any]() *SubscriptionSet[NotificationT] {
	return &SubscriptionSet[NotificationT]{
		subscriptions: make(map[HandleT]*Subscription[NotificationT]),
	}
}

// Subscribe adds a subscription delivering to sink.
func (ss *SubscriptionSet[NotificationT]) Subscribe(sink chan<- NotificationT) *Subscription[NotificationT] {
	sub := newSubscription(ss, sink)

	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	ss.subscriptions[sub.Handle] = sub

	return sub
}

// Notify delivers n to a snapshot of the current subscriptions.
// With no subscriptions it is a silent no-op.
func (ss *SubscriptionSet[NotificationT]) Notify(n NotificationT) {
	ss.mutex.Lock()
	currentSubs := make([]*Subscription[NotificationT], 0, len(ss.subscriptions))
	for _, sub := range ss.subscriptions {
		currentSubs = append(currentSubs, sub)
	}
	ss.mutex.Unlock()

	for _, sub := range currentSubs {
		sub.Notify(n)
	}
}

// Len returns the number of active subscriptions.
func (ss *SubscriptionSet[NotificationT]) Len() int {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	return len(ss.subscriptions)
}

// CancelAll cancels every subscription in the set.
func (ss *SubscriptionSet[NotificationT]) CancelAll() {
	ss.mutex.Lock()
	currentSubs := make([]*Subscription[NotificationT], 0, len(ss.subscriptions))
	for _, sub := range ss.subscriptions {
		currentSubs = append(currentSubs, sub)
	}
	clear(ss.subscriptions)
	ss.mutex.Unlock()

	for _, sub := range currentSubs {
		sub.Cancel()
	}
}

func (ss *SubscriptionSet[NotificationT]) onSubscriptionCancelled(handle HandleT) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()
	delete(ss.subscriptions, handle) // No-op if already removed by CancelAll.
}
