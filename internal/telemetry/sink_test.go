// Copyright (c) Dapkit contributors. All rights reserved.

package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapkit/dapkit/internal/dap"
)

func TestSpanSinkRecord(t *testing.T) {
	var output bytes.Buffer
	system, systemErr := NewSystem(&output)
	require.NoError(t, systemErr)

	sink := system.SessionSink()

	kind := dap.RequestKindAttach
	recordErr := sink.Record(context.Background(), dap.SessionStarted{
		EventName:     dap.SessionStartedEventName,
		SpawnLocation: dap.SpawnLocationGutter,
		WithBuildTask: true,
		Kind:          &kind,
		Adapter:       "codelldb",
		DockPosition:  "right",
	})
	require.NoError(t, recordErr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, system.Shutdown(ctx))

	exported := output.String()
	assert.Contains(t, exported, dap.SessionStartedEventName)
	assert.Contains(t, exported, "spawn_location")
	assert.Contains(t, exported, "gutter")
	assert.Contains(t, exported, "codelldb")
	assert.Contains(t, exported, "attach")
}

func TestSpanSinkOmittedKind(t *testing.T) {
	var output bytes.Buffer
	system, systemErr := NewSystem(&output)
	require.NoError(t, systemErr)

	sink := system.SessionSink()
	recordErr := sink.Record(context.Background(), dap.SessionStarted{
		EventName:     dap.SessionStartedEventName,
		SpawnLocation: dap.SpawnLocationCustom,
		Adapter:       "debugpy",
	})
	require.NoError(t, recordErr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, system.Shutdown(ctx))

	exported := output.String()
	assert.Contains(t, exported, "debugpy")
	assert.NotContains(t, exported, `"kind"`)
}

func TestDiscardingSystem(t *testing.T) {
	system, systemErr := NewSystem(nil)
	require.NoError(t, systemErr)

	sink := system.SessionSink()
	require.NoError(t, sink.Record(context.Background(), dap.SessionStarted{
		EventName: dap.SessionStartedEventName,
		Adapter:   "debugpy",
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, system.Shutdown(ctx))
}
