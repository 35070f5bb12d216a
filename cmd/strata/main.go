// Package main is the entry point for the strata configuration tool.
//
// strata inspects layered configuration the way a service built on the
// layer package would see it:
//
//	strata candidates app --var env=prod --var region=us
//	strata get server.port --dir ./conf --app app --var env=prod
//	strata dump --format json --dir ./conf --app app
//	strata bind 'db.${name}' --param name=orders --dir ./conf --app app
//	strata watch --dir ./conf --app app
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
