package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/snipcheck/internal/toolchain"
)

// NewToolchainsCommand creates the toolchains command
func NewToolchainsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toolchains",
		Short: "List the configured toolchains",
		Long: `List every language tag with a registered syntax checker, the command
template it runs and whether its executable can be found on PATH.

The list reflects the built-in defaults, .snipcheck/config.yaml (or --config)
and any --toolchain flags.`,
		Args: cobra.NoArgs,
		RunE: runToolchains,
	}

	addConfigFlags(cmd)
	cmd.Flags().Bool("no-color", false, "Disable colored output")

	return cmd
}

func runToolchains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor {
		color.NoColor = true
	}

	if err := printToolchains(cmd.OutOrStdout(), cfg.Registry(), toolchain.Resolve); err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	return nil
}

// printToolchains writes one row per registered tag. resolve reports the
// executable path for a command template.
func printToolchains(w io.Writer, registry *toolchain.Registry, resolve func(string) (string, error)) error {
	if registry.Len() == 0 {
		_, err := fmt.Fprintln(w, "No toolchains configured.")
		return err
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tCOMMAND\tEXECUTABLE")
	for _, tag := range registry.Tags() {
		command, _ := registry.Lookup(tag)
		location := ""
		if path, err := resolve(command); err != nil {
			location = red.Sprint("not found")
		} else {
			location = green.Sprint(path)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", tag, command, location)
	}
	return tw.Flush()
}
