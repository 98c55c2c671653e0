// Package main provides the entry point for the ragsync CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ragsync/ragsync/cmd/ragsync/cmd"
	"github.com/ragsync/ragsync/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if ctx.Err() != nil || errors.GetCode(err) == errors.ErrCodeCancelled {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
