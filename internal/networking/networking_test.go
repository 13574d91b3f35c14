// Copyright (c) Dapkit contributors. All rights reserved.

package networking

import (
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapkit/dapkit/pkg/testutil"
)

func TestGetFreePort(t *testing.T) {
	t.Parallel()

	log := testutil.NewLogForTesting(t.Name())

	port, portErr := GetFreePort("", log)
	require.NoError(t, portErr)
	assert.True(t, IsValidPort(int(port)))

	// The port was released, so binding it again should work.
	listener, listenErr := net.Listen("tcp", net.JoinHostPort("localhost", strconv.Itoa(int(port))))
	if listenErr == nil {
		_ = listener.Close()
	}
}

func TestCheckPortAvailable(t *testing.T) {
	t.Parallel()

	log := testutil.NewLogForTesting(t.Name())

	listener, listenErr := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, listenErr)
	defer listener.Close()

	port := uint16(listener.Addr().(*net.TCPAddr).Port)
	require.Error(t, CheckPortAvailable("127.0.0.1", port, log))

	require.NoError(t, listener.Close())
	assert.NoError(t, CheckPortAvailable("127.0.0.1", port, log))
}

func TestIsValidPort(t *testing.T) {
	t.Parallel()

	assert.False(t, IsValidPort(0))
	assert.False(t, IsValidPort(-1))
	assert.False(t, IsValidPort(65536))
	assert.True(t, IsValidPort(1))
	assert.True(t, IsValidPort(65535))
}
