// Copyright (c) Dapkit contributors. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve DAP over stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(stdioCmd)
}
