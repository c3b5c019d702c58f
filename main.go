package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"clipjoin/concatenator"
)

// Exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitDefinition = 2   // the sequence itself is unusable
	exitCancelled  = 130 // standard exit code for SIGINT
)

func main() {
	// Ctrl+C and SIGTERM cancel the running render; ffmpeg is killed and the
	// partial output removed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			fmt.Fprintln(stderr, "cancelled")
			return exitCancelled
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if concatenator.IsDefinitionError(err) {
			return exitDefinition
		}
		return exitFailure
	}
	return exitOK
}
