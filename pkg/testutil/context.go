// Copyright (c) Dapkit contributors. All rights reserved.

package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"
)

// GetTestContext returns a context for a test, honoring the
// TEST_CONTEXT_TIMEOUT environment variable (seconds) as an override for
// slow environments.
func GetTestContext(t *testing.T, testTimeout time.Duration) (context.Context, context.CancelFunc) {
	timeoutStr, found := os.LookupEnv("TEST_CONTEXT_TIMEOUT")
	if found {
		timeout, parseErr := strconv.ParseUint(timeoutStr, 10, 16)
		if parseErr != nil {
			panic(fmt.Sprintf("Context timeout value '%s' is invalid: %s", timeoutStr, parseErr.Error()))
		}
		testTimeout = time.Duration(timeout) * time.Second
	}

	t.Helper()
	return context.WithTimeout(context.Background(), testTimeout)
}
