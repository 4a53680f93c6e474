package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/blockorder/internal/app"
	"github.com/specialistvlad/blockorder/internal/cli"
	"github.com/specialistvlad/blockorder/internal/config"
	bperrors "github.com/specialistvlad/blockorder/internal/errors"
	"github.com/specialistvlad/blockorder/internal/hcl"
	"github.com/specialistvlad/blockorder/internal/yamlcfg"
)

// main is the entrypoint for the blockorder application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()

	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	// The dependency graph panics with a stack-traced error on an index it
	// never handed out; print the trace and exit cleanly.
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				fmt.Fprintln(outW, bperrors.PrintErrorWithStackTrace(e))
			}
			err = fmt.Errorf("application panicked: %v", r)
		}
	}()

	loader := config.NewMultiLoader(hcl.NewLoader(), yamlcfg.NewLoader())
	blockorderApp, err := app.NewApp(outW, appConfig, loader)
	if err != nil {
		return err
	}

	report, err := blockorderApp.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(outW, "replayed %d operations, %d blocks flushed\n", report.Ops, report.Cache.Flushed)
	return nil
}
