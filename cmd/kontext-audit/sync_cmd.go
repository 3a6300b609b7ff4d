package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/kontext-systems/audit-core/pkg/config"
)

// runSyncCmd implements `kontext-audit sync`: flushes the event store
// to its configured storage adapter, or restores from it with
// --restore.
//
// Exit codes:
//
//	0 = sync succeeded
//	1 = sync error
//	2 = usage error
func runSyncCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("sync", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var restore bool
	cmd.BoolVar(&restore, "restore", false, "Restore the event store from storage instead of flushing to it")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	k, err := buildKernel(config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := k.Sync(context.Background(), restore); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: sync failed: %v\n", err)
		return 1
	}

	if restore {
		_, _ = fmt.Fprintf(stdout, "%srestored%s %d events from storage\n", ColorGreen, ColorReset, len(k.Store.Events()))
	} else {
		_, _ = fmt.Fprintf(stdout, "%sflushed%s %d events to storage\n", ColorGreen, ColorReset, len(k.Store.Events()))
	}
	return 0
}
