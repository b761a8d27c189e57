// Package main provides the entry point for readerctl.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/speedreader/speedreader-core/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
