package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/snipcheck/internal/parser"
	"github.com/harrison/snipcheck/internal/toolchain"
	"github.com/harrison/snipcheck/internal/watch"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	return newWatchCommand(nil)
}

func newWatchCommand(checker toolchain.Checker) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <document>",
		Short: "Re-check a document every time it changes",
		Long: `Run check once, then again every time the document is saved, until
interrupted. Accepts every check flag.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == parser.StdinPath {
				return usageError("watch needs a document path, not stdin")
			}
			runner, err := newCheckRunner(cmd, checker)
			if err != nil {
				return err
			}
			debounce, _ := cmd.Flags().GetDuration("debounce")
			return watchDocument(cmd.Context(), runner, args[0], debounce)
		},
	}

	addCheckFlags(cmd)
	cmd.Flags().Duration("debounce", watch.DefaultDebounceDelay, "Quiet period before a change triggers a run")

	return cmd
}

// watchDocument runs the check once and again after every change, until ctx
// is done. Per-run exit codes are reported but never end the loop, and a
// report file locked by another writer is skipped for that run.
func watchDocument(ctx context.Context, runner *checkRunner, path string, debounce time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}

	w, err := watch.New(path, debounce)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	defer w.Close()

	// A reader holding the report lock must not stall the loop.
	runner.skipLockedReport = true

	runOnce := func() {
		err := runner.run(ctx, path)
		var exitErr *ExitError
		switch {
		case err == nil:
			fmt.Fprintf(runner.stderr, "[%s] %s: ok\n", time.Now().Format("15:04:05"), path)
		case errors.As(err, &exitErr) && exitErr.Err == nil:
			fmt.Fprintf(runner.stderr, "[%s] %s: exit status %d\n", time.Now().Format("15:04:05"), path, exitErr.Code)
		default:
			fmt.Fprintf(runner.stderr, "[%s] Error: %v\n", time.Now().Format("15:04:05"), err)
		}
		fmt.Fprintf(runner.stderr, "Watching %s for changes (Ctrl+C to stop)\n", w.Path())
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-w.Events():
			if event.Op == watch.Removed {
				fmt.Fprintf(runner.stderr, "[%s] %s was removed; waiting for it to reappear\n",
					event.Timestamp.Format("15:04:05"), path)
				continue
			}
			runOnce()
		case err := <-w.Errors():
			fmt.Fprintf(runner.stderr, "[%s] Watch error: %v\n", time.Now().Format("15:04:05"), err)
		}
	}
}
