/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterLookup(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register(&AdapterConfig{Name: "debugpy", DefaultKind: RequestKindLaunch})
	registry.Register(&AdapterConfig{Name: "codelldb", DefaultKind: RequestKindAttach})

	config, found := registry.Lookup("debugpy")
	require.True(t, found)
	assert.Equal(t, RequestKindLaunch, config.DefaultKind)

	_, found = registry.Lookup("gdb")
	assert.False(t, found)

	assert.ElementsMatch(t, []string{"debugpy", "codelldb"}, registry.Names())

	// Re-registering replaces the configuration.
	registry.Register(&AdapterConfig{Name: "debugpy", DefaultKind: RequestKindAttach})
	config, found = registry.Lookup("debugpy")
	require.True(t, found)
	assert.Equal(t, RequestKindAttach, config.DefaultKind)
}

func TestRegistryRequestKind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	registry := NewRegistry()
	registry.Register(&AdapterConfig{Name: "debugpy", DefaultKind: RequestKindLaunch})
	registry.Register(&AdapterConfig{Name: "codelldb", DefaultKind: RequestKindAttach})
	registry.Register(&AdapterConfig{Name: "bare"})

	t.Run("scenario config wins over the default", func(t *testing.T) {
		kind, kindErr := registry.RequestKind(ctx, Scenario{
			Adapter: "debugpy",
			Config:  []byte(`{"request":"attach","connect":{"port":5678}}`),
		})
		require.NoError(t, kindErr)
		assert.Equal(t, RequestKindAttach, kind)
	})

	t.Run("default applies when config is silent", func(t *testing.T) {
		kind, kindErr := registry.RequestKind(ctx, Scenario{
			Adapter: "codelldb",
			Config:  []byte(`{"program":"a.out"}`),
		})
		require.NoError(t, kindErr)
		assert.Equal(t, RequestKindAttach, kind)
	})

	t.Run("unrecognized request value falls back to the default", func(t *testing.T) {
		kind, kindErr := registry.RequestKind(ctx, Scenario{
			Adapter: "debugpy",
			Config:  []byte(`{"request":"hover"}`),
		})
		require.NoError(t, kindErr)
		assert.Equal(t, RequestKindLaunch, kind)
	})

	t.Run("launch is the final fallback", func(t *testing.T) {
		kind, kindErr := registry.RequestKind(ctx, Scenario{Adapter: "bare"})
		require.NoError(t, kindErr)
		assert.Equal(t, RequestKindLaunch, kind)
	})

	t.Run("unknown adapter", func(t *testing.T) {
		_, kindErr := registry.RequestKind(ctx, Scenario{Adapter: "gdb"})
		require.Error(t, kindErr)
	})
}
