// Copyright (c) Dapkit contributors. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dapkit/dapkit/internal/dapctl/commands"
	"github.com/dapkit/dapkit/pkg/logger"
)

const errCommandError = 1

func main() {
	log := logger.New("dapctl")
	defer log.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := commands.NewRootCommand(log)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errCommandError)
	}
}
