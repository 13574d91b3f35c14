/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package syncmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLoadDelete(t *testing.T) {
	t.Parallel()

	var m Map[string, int]

	_, found := m.Load("missing")
	assert.False(t, found)

	m.Store("a", 1)
	value, found := m.Load("a")
	require.True(t, found)
	assert.Equal(t, 1, value)

	m.Store("a", 2)
	value, _ = m.Load("a")
	assert.Equal(t, 2, value)

	m.Delete("a")
	_, found = m.Load("a")
	assert.False(t, found)

	// Deleting an absent key is fine.
	m.Delete("a")
}

func TestRange(t *testing.T) {
	t.Parallel()

	var m Map[string, int]
	m.Store("a", 1)
	m.Store("b", 2)
	m.Store("c", 3)

	seen := make(map[string]int)
	m.Range(func(key string, value int) bool {
		seen[key] = value
		return true
	})
	assert.Equal(t, map[string]int{"a": 1, "b": 2, "c": 3}, seen)

	// Returning false stops iteration.
	visits := 0
	m.Range(func(string, int) bool {
		visits++
		return false
	})
	assert.Equal(t, 1, visits)
}

func TestLoadOrStore(t *testing.T) {
	t.Parallel()

	var m Map[string, int]

	value, loaded := m.LoadOrStore("a", 1)
	assert.False(t, loaded)
	assert.Equal(t, 1, value)

	value, loaded = m.LoadOrStore("a", 99)
	assert.True(t, loaded)
	assert.Equal(t, 1, value)
}

func TestPointerValues(t *testing.T) {
	t.Parallel()

	type config struct{ name string }

	var m Map[string, *config]
	m.Store("x", &config{name: "x"})

	value, found := m.Load("x")
	require.True(t, found)
	assert.Equal(t, "x", value.name)
}
