package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harrison/snipcheck/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := cmd.NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	stop()

	var exitErr *cmd.ExitError
	if err != nil && (!errors.As(err, &exitErr) || exitErr.Err != nil) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	os.Exit(cmd.ExitCode(err))
}
