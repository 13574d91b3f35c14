// Copyright (c) Dapkit contributors. All rights reserved.

// mockadapter is a minimal debug adapter used to exercise dapkit against a
// real process. It answers the initialize handshake, acknowledges launch and
// attach requests, emits a few output events, and exits on disconnect.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mockadapter",
	Short: "A mock DAP debug adapter for testing",
	Long:  `mockadapter speaks just enough of the Debug Adapter Protocol to test clients against: stdio mode serves on stdin/stdout, tcp mode listens on a port and announces it.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
