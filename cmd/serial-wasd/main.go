// Package main is the entry point for the serial-wasd bridge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/luhtfiimanal/serial-wasd/cmd/serial-wasd/app"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "serial-wasd: %v\n", err)
		os.Exit(1)
	}
}
