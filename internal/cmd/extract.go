package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/snipcheck/internal/models"
	"github.com/harrison/snipcheck/internal/parser"
	"github.com/harrison/snipcheck/internal/report"
	"github.com/harrison/snipcheck/internal/toolchain"
)

// NewExtractCommand creates the extract command
func NewExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <document>",
		Short: "List a document's code blocks grouped by language",
		Long: `Extract the fenced code blocks of a document and print them grouped by
language tag, without running any toolchain. Each group shows the command
that check would run for it, or "unsupported" when no toolchain is
registered.`,
		Args: cobra.ExactArgs(1),
		RunE: runExtract,
	}

	addConfigFlags(cmd)
	cmd.Flags().Bool("source", false, "Print each block's source text")
	cmd.Flags().Bool("no-color", false, "Disable colored output")

	return cmd
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	doc, err := parser.ParseFileFrom(args[0], cmd.InOrStdin())
	if err != nil {
		if errors.Is(err, parser.ErrMalformedDocument) {
			return &ExitError{Code: ExitMalformed, Err: fmt.Errorf("%s: %w", args[0], err)}
		}
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("failed to load document: %w", err)}
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	showSource, _ := cmd.Flags().GetBool("source")
	registry := cfg.Registry().With(doc.Options.Toolchains).Without(doc.Options.Skip)

	useColor := !noColor && report.UseColor(cmd.OutOrStdout())
	return printExtraction(cmd.OutOrStdout(), doc, registry, showSource, useColor)
}

// printExtraction writes one group per tag in first-appearance order.
func printExtraction(w io.Writer, doc *models.Document, registry *toolchain.Registry, showSource, useColor bool) error {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)
	if useColor {
		bold.EnableColor()
		dim.EnableColor()
	} else {
		bold.DisableColor()
		dim.DisableColor()
	}

	var b strings.Builder
	classification := parser.Classify(doc.Blocks)
	fmt.Fprintf(&b, "%s (%s): %d blocks, %d sections\n",
		doc.Path, parser.DetectFormat(doc.Path), len(doc.Blocks), len(doc.Sections))

	for _, tag := range classification.Tags() {
		blocks := classification.Blocks(tag)
		command, ok := registry.Lookup(tag)
		if tag == models.UntaggedKey || !ok {
			command = "unsupported"
		}
		fmt.Fprintf(&b, "\n%s (%d) %s\n", bold.Sprint(tag), len(blocks), dim.Sprintf("[%s]", command))

		for _, block := range blocks {
			fmt.Fprintf(&b, "  #%d line %d %s\n", block.Index, block.Line, sectionLabel(block.SectionTitle()))
			if showSource {
				for _, line := range strings.Split(strings.TrimSuffix(block.Text, "\n"), "\n") {
					fmt.Fprintf(&b, "    | %s\n", line)
				}
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func sectionLabel(title string) string {
	if title == "" {
		return "(no section)"
	}
	return fmt.Sprintf("section %q", title)
}
