/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// SessionStartedEventName is the event name of the session-start record.
const SessionStartedEventName = "Debugger Session Started"

// SpawnLocation is where in the editor the debug session was started from.
type SpawnLocation string

const (
	SpawnLocationGutter       SpawnLocation = "gutter"
	SpawnLocationScenarioList SpawnLocation = "scenario_list"
	SpawnLocationCustom       SpawnLocation = "custom"
)

// SessionStarted is the flat record delivered to the telemetry sink when a
// debug session begins.
type SessionStarted struct {
	EventName     string
	SpawnLocation SpawnLocation
	WithBuildTask bool

	// Kind is the scenario's request classification; nil when the lookup
	// failed and the classification is omitted.
	Kind *RequestKind

	Adapter      string
	DockPosition string
}

// TelemetrySink receives session-start records. The core only constructs
// and forwards records; sink behavior is the collaborator's concern.
type TelemetrySink interface {
	Record(ctx context.Context, event SessionStarted) error
}

// kindLookupTimeout bounds the asynchronous request-kind lookup so a stuck
// collaborator cannot hold the notification goroutine forever.
const kindLookupTimeout = 10 * time.Second

// SessionNotifier reports the one-shot "session started" fact to the
// telemetry sink. It is best-effort by construction: the notification runs
// on its own goroutine and every failure is swallowed after logging, so it
// can never block or fail the caller's control flow, and it shares no state
// with the protocol engine.
type SessionNotifier struct {
	registry KindLookup
	sink     TelemetrySink
	log      logr.Logger

	// DockPosition is the editor's debug panel placement, included in the
	// record verbatim.
	DockPosition string
}

func NewSessionNotifier(registry KindLookup, sink TelemetrySink, log logr.Logger) *SessionNotifier {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &SessionNotifier{
		registry: registry,
		sink:     sink,
		log:      log,
	}
}

// NotifySessionStart reports that a scenario has begun. Fire-and-forget:
// the request-kind lookup happens asynchronously, and if it fails the
// notification still proceeds with the classification omitted.
//
// The returned channel closes when the notification attempt finishes; it
// exists for tests and callers never need to wait on it.
func (n *SessionNotifier) NotifySessionStart(scenario Scenario, location SpawnLocation) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		ctx, cancel := context.WithTimeout(context.Background(), kindLookupTimeout)
		defer cancel()

		event := SessionStarted{
			EventName:     SessionStartedEventName,
			SpawnLocation: location,
			WithBuildTask: scenario.BuildTask != "",
			Adapter:       scenario.Adapter,
			DockPosition:  n.DockPosition,
		}

		if n.registry != nil {
			kind, lookupErr := n.registry.RequestKind(ctx, scenario)
			if lookupErr != nil {
				n.log.V(1).Info("Request kind lookup failed, omitting classification",
					"adapter", scenario.Adapter,
					"error", lookupErr.Error())
			} else {
				event.Kind = &kind
			}
		}

		if recordErr := n.sink.Record(ctx, event); recordErr != nil {
			n.log.V(1).Info("Failed to deliver session start event",
				"adapter", scenario.Adapter,
				"error", recordErr.Error())
		}
	}()

	return done
}
