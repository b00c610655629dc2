package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for snipcheck
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snipcheck",
		Short: "Syntax-check the code snippets in a Markdown guide",
		Long: `snipcheck extracts fenced code blocks from a Markdown document, groups
them by language tag and runs each supported snippet through an external
syntax checker (gcc, python3, gofmt, ...).

Blocks whose language has no configured toolchain are reported as skipped.
The exit status is 0 when nothing failed, 1 when a block failed, 2 when the
document has an unterminated fence and 3 on usage or I/O errors.`,
		Version: Version,
		// main prints errors itself and maps them to exit codes
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(NewCheckCommand())
	cmd.AddCommand(NewExtractCommand())
	cmd.AddCommand(NewToolchainsCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewWatchCommand())

	return cmd
}
