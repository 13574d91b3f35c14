/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package pubsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndNotify(t *testing.T) {
	t.Parallel()

	set := NewSubscriptionSet[string]()

	first := make(chan string, 4)
	second := make(chan string, 4)
	set.Subscribe(first)
	set.Subscribe(second)
	assert.Equal(t, 2, set.Len())

	set.Notify("hello")

	assert.Equal(t, "hello", <-first)
	assert.Equal(t, "hello", <-second)
}

func TestNotifyWithoutSubscribersIsNoOp(t *testing.T) {
	t.Parallel()

	set := NewSubscriptionSet[int]()
	set.Notify(42)
	assert.Equal(t, 0, set.Len())
}

func TestNoDeliveryBeforeSubscribe(t *testing.T) {
	t.Parallel()

	set := NewSubscriptionSet[int]()
	set.Notify(1)

	sink := make(chan int, 4)
	set.Subscribe(sink)
	set.Notify(2)

	// Only the notification published after Subscribe arrives.
	assert.Equal(t, 2, <-sink)
	select {
	case extra := <-sink:
		t.Fatalf("unexpected notification %d", extra)
	default:
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()

	set := NewSubscriptionSet[string]()

	sink := make(chan string, 4)
	sub := set.Subscribe(sink)
	require.False(t, sub.Cancelled())

	sub.Cancel()
	assert.True(t, sub.Cancelled())
	assert.Equal(t, 0, set.Len())

	// The sink is closed on cancellation.
	_, open := <-sink
	assert.False(t, open)

	// Notify after Cancel is a no-op, and Cancel is idempotent.
	set.Notify("late")
	sub.Cancel()
}

func TestCancelAll(t *testing.T) {
	t.Parallel()

	set := NewSubscriptionSet[int]()

	sinks := make([]chan int, 3)
	for i := range sinks {
		sinks[i] = make(chan int, 1)
		set.Subscribe(sinks[i])
	}

	set.CancelAll()
	assert.Equal(t, 0, set.Len())

	for _, sink := range sinks {
		_, open := <-sink
		assert.False(t, open)
	}
}

func TestHandlesAreUnique(t *testing.T) {
	t.Parallel()

	set := NewSubscriptionSet[int]()

	seen := make(map[HandleT]bool)
	for i := 0; i < 10; i++ {
		sub := set.Subscribe(make(chan int, 1))
		require.NotEqual(t, InvalidHandle, sub.Handle)
		require.False(t, seen[sub.Handle])
		seen[sub.Handle] = true
	}
}
