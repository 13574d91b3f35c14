/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Dapkit contributors. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapkit/dapkit/pkg/testutil"
)

type fixedPortDiscoverer struct {
	port uint16
	err  error
}

func (d *fixedPortDiscoverer) DiscoverPort(ctx context.Context) (uint16, error) {
	return d.port, d.err
}

type blockingDiscoverer struct{}

func (d *blockingDiscoverer) DiscoverPort(ctx context.Context) (uint16, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestResolveEndpoint(t *testing.T) {
	t.Parallel()

	log := testutil.NewLogForTesting(t.Name())

	t.Run("fixed port short-circuits discovery", func(t *testing.T) {
		ctx, cancel := testutil.GetTestContext(t, 5*time.Second)
		defer cancel()

		// The discoverer must not be consulted, so a nil one is fine.
		endpoint, resolveErr := ResolveEndpoint(ctx, TCPTemplate{Port: 4711}, nil, log)
		require.NoError(t, resolveErr)
		assert.Equal(t, DefaultHost, endpoint.Host)
		assert.Equal(t, uint16(4711), endpoint.Port)
		assert.Equal(t, "127.0.0.1:4711", endpoint.Address())
	})

	t.Run("template host and timeout are carried through", func(t *testing.T) {
		ctx, cancel := testutil.GetTestContext(t, 5*time.Second)
		defer cancel()

		template := TCPTemplate{Host: "10.0.0.5", Port: 9000, Timeout: 12 * time.Second}
		endpoint, resolveErr := ResolveEndpoint(ctx, template, nil, log)
		require.NoError(t, resolveErr)
		assert.Equal(t, "10.0.0.5", endpoint.Host)
		assert.Equal(t, 12*time.Second, endpoint.Timeout)
	})

	t.Run("discovered port fills the endpoint", func(t *testing.T) {
		ctx, cancel := testutil.GetTestContext(t, 5*time.Second)
		defer cancel()

		endpoint, resolveErr := ResolveEndpoint(ctx, TCPTemplate{}, &fixedPortDiscoverer{port: 38041}, log)
		require.NoError(t, resolveErr)
		assert.Equal(t, uint16(38041), endpoint.Port)
	})

	t.Run("discovery timeout", func(t *testing.T) {
		ctx, cancel := testutil.GetTestContext(t, 5*time.Second)
		defer cancel()

		template := TCPTemplate{Timeout: 20 * time.Millisecond}
		_, resolveErr := ResolveEndpoint(ctx, template, &blockingDiscoverer{}, log)
		require.ErrorIs(t, resolveErr, ErrPortDiscoveryTimeout)
	})

	t.Run("caller cancellation is not a discovery timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, resolveErr := ResolveEndpoint(ctx, TCPTemplate{Timeout: time.Minute}, &blockingDiscoverer{}, log)
		require.Error(t, resolveErr)
		assert.NotErrorIs(t, resolveErr, ErrPortDiscoveryTimeout)
	})

	t.Run("discoverer failure is propagated", func(t *testing.T) {
		ctx, cancel := testutil.GetTestContext(t, 5*time.Second)
		defer cancel()

		discovererErr := errors.New("adapter exited")
		_, resolveErr := ResolveEndpoint(ctx, TCPTemplate{}, &fixedPortDiscoverer{err: discovererErr}, log)
		require.ErrorIs(t, resolveErr, discovererErr)
	})

	t.Run("no port and no discoverer", func(t *testing.T) {
		ctx, cancel := testutil.GetTestContext(t, 5*time.Second)
		defer cancel()

		_, resolveErr := ResolveEndpoint(ctx, TCPTemplate{}, nil, log)
		require.Error(t, resolveErr)
	})
}

func TestOutputPortDiscoverer(t *testing.T) {
	t.Parallel()

	log := testutil.NewLogForTesting(t.Name())

	cases := []struct {
		name   string
		output string
		want   uint16
	}{
		{"plain announcement", "Debug adapter listening on port 43219\n", 43219},
		{"host and port", "DAP server listening at 127.0.0.1:9229\n", 9229},
		{"preceded by noise", "starting up...\nloading config\nListening on 18080\n", 18080},
		{"case insensitive", "LISTENING ON PORT 6009\n", 6009},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := testutil.GetTestContext(t, 5*time.Second)
			defer cancel()

			discoverer := &OutputPortDiscoverer{Output: strings.NewReader(tc.output), Log: log}
			port, discoverErr := discoverer.DiscoverPort(ctx)
			require.NoError(t, discoverErr)
			assert.Equal(t, tc.want, port)
		})
	}

	t.Run("output ends without announcement", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := testutil.GetTestContext(t, 5*time.Second)
		defer cancel()

		discoverer := &OutputPortDiscoverer{Output: strings.NewReader("no ports here\n"), Log: log}
		_, discoverErr := discoverer.DiscoverPort(ctx)
		require.Error(t, discoverErr)
	})

	t.Run("out-of-range port is skipped", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := testutil.GetTestContext(t, 5*time.Second)
		defer cancel()

		output := "listening on port 99999\nlistening on port 8000\n"
		discoverer := &OutputPortDiscoverer{Output: strings.NewReader(output), Log: log}
		port, discoverErr := discoverer.DiscoverPort(ctx)
		require.NoError(t, discoverErr)
		assert.Equal(t, uint16(8000), port)
	})
}
