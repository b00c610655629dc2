package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/snipcheck/internal/history"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [document]",
		Short: "Show recorded check runs",
		Long: `List recent runs recorded by "snipcheck check --history", newest first.

With a document argument only runs of that document are listed. With --run
the stored block results of one run are shown instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .snipcheck/config.yaml)")
	cmd.Flags().String("db", "", "Path to the history database (default: history.db_path from config)")
	cmd.Flags().Int("limit", 10, "Maximum number of runs to list")
	cmd.Flags().String("run", "", "Show the block results of this run ID")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dbPath := cfg.History.DBPath
	if changed(cmd, "db") {
		dbPath, _ = cmd.Flags().GetString("db")
	}
	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetString("run")
	output := cmd.OutOrStdout()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(output, "No run history found.\n")
		fmt.Fprintf(output, "Database path: %s\n", dbPath)
		return nil
	}

	store, err := history.NewStore(dbPath)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("open history store: %w", err)}
	}
	defer store.Close()

	if runID != "" {
		records, err := store.RunResults(cmd.Context(), runID)
		if err != nil {
			return &ExitError{Code: ExitUsage, Err: err}
		}
		if len(records) == 0 {
			fmt.Fprintf(output, "No block results recorded for run %s\n", runID)
			return nil
		}
		return printRunResults(output, records)
	}

	document := ""
	if len(args) == 1 {
		document = args[0]
		if abs, err := filepath.Abs(document); err == nil && document != "-" {
			document = abs
		}
	}

	runs, err := store.RecentRuns(cmd.Context(), document, limit)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}
	if len(runs) == 0 {
		fmt.Fprintf(output, "No runs recorded.\n")
		return nil
	}
	return printRuns(output, runs)
}

func printRuns(w io.Writer, runs []history.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDOCUMENT\tTOTAL\tPASSED\tFAILED\tSKIPPED\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Document,
			r.Total, r.Passed, r.Failed, r.Skipped, r.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

func printRunResults(w io.Writer, records []history.BlockRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tLINE\tTAG\tSECTION\tSTATUS\tKIND")
	for _, rec := range records {
		tag := rec.Tag
		if tag == "" {
			tag = "-"
		}
		kind := string(rec.Kind)
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(tw, "#%d\t%d\t%s\t%s\t%s\t%s\n", rec.Index, rec.Line, tag, rec.Section, rec.Status, kind)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, rec := range records {
		if rec.Diagnostic == "" {
			continue
		}
		fmt.Fprintf(w, "\n#%d (line %d):\n%s\n", rec.Index, rec.Line, rec.Diagnostic)
	}
	return nil
}
