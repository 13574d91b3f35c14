/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapkit/dapkit/pkg/testutil"
)

type recordingSink struct {
	mu     sync.Mutex
	events []SessionStarted
	err    error
}

func (s *recordingSink) Record(_ context.Context, event SessionStarted) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) recorded() []SessionStarted {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SessionStarted(nil), s.events...)
}

type failingKindLookup struct{}

func (failingKindLookup) RequestKind(context.Context, Scenario) (RequestKind, error) {
	return "", errors.New("registry unavailable")
}

func waitForNotification(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("notification did not finish")
	}
}

func TestNotifySessionStart(t *testing.T) {
	t.Parallel()

	log := testutil.NewLogForTesting(t.Name())

	registry := NewRegistry()
	registry.Register(&AdapterConfig{Name: "debugpy", DefaultKind: RequestKindLaunch})

	t.Run("full record", func(t *testing.T) {
		sink := &recordingSink{}
		notifier := NewSessionNotifier(registry, sink, log)
		notifier.DockPosition = "bottom"

		scenario := Scenario{
			Label:     "Debug tests",
			Adapter:   "debugpy",
			BuildTask: "cargo build",
		}
		waitForNotification(t, notifier.NotifySessionStart(scenario, SpawnLocationGutter))

		events := sink.recorded()
		require.Len(t, events, 1)
		event := events[0]
		assert.Equal(t, SessionStartedEventName, event.EventName)
		assert.Equal(t, SpawnLocationGutter, event.SpawnLocation)
		assert.True(t, event.WithBuildTask)
		assert.Equal(t, "debugpy", event.Adapter)
		assert.Equal(t, "bottom", event.DockPosition)
		require.NotNil(t, event.Kind)
		assert.Equal(t, RequestKindLaunch, *event.Kind)
	})

	t.Run("no build task", func(t *testing.T) {
		sink := &recordingSink{}
		notifier := NewSessionNotifier(registry, sink, log)

		scenario := Scenario{Label: "Attach", Adapter: "debugpy"}
		waitForNotification(t, notifier.NotifySessionStart(scenario, SpawnLocationScenarioList))

		events := sink.recorded()
		require.Len(t, events, 1)
		assert.False(t, events[0].WithBuildTask)
	})

	t.Run("kind lookup failure omits classification", func(t *testing.T) {
		sink := &recordingSink{}
		notifier := NewSessionNotifier(failingKindLookup{}, sink, log)

		scenario := Scenario{Label: "Broken", Adapter: "mystery"}
		waitForNotification(t, notifier.NotifySessionStart(scenario, SpawnLocationCustom))

		events := sink.recorded()
		require.Len(t, events, 1)
		assert.Nil(t, events[0].Kind)
		assert.Equal(t, "mystery", events[0].Adapter)
	})

	t.Run("sink failure is swallowed", func(t *testing.T) {
		sink := &recordingSink{err: errors.New("telemetry backend down")}
		notifier := NewSessionNotifier(registry, sink, log)

		scenario := Scenario{Label: "Debug", Adapter: "debugpy"}
		// Must finish without panicking or surfacing the error anywhere.
		waitForNotification(t, notifier.NotifySessionStart(scenario, SpawnLocationGutter))
	})
}
