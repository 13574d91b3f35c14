// Copyright (c) Dapkit contributors. All rights reserved.

package testutil

import (
	"flag"
	"testing"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"

	"github.com/dapkit/dapkit/pkg/logger"
)

// NewLogForTesting returns a logger quiet by default and verbose when the
// test run is.
func NewLogForTesting(name string) logr.Logger {
	log := logger.New(name)
	log.SetLevel(zapcore.ErrorLevel)
	if !flag.Parsed() {
		flag.Parse() // Needed to test if verbose flag was present.
	}
	if testing.Verbose() {
		log.SetLevel(zapcore.DebugLevel)
	}
	return log.Logger.WithValues("test", true)
}
