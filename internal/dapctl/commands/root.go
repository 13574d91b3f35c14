// Copyright (c) Dapkit contributors. All rights reserved.

// Package commands implements the dapctl command tree.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/dapkit/dapkit/pkg/logger"
)

// NewRootCommand builds the dapctl root command.
func NewRootCommand(log *logger.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "dapctl",
		Short:         "Debug adapter protocol client utility",
		Long:          "dapctl launches or connects to a DAP debug adapter, drives the protocol handshake, and streams adapter events. Useful for smoke-testing adapter installations.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	log.AddLevelFlag(root.PersistentFlags())
	root.AddCommand(newRunCommand(log))

	return root
}
