package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/snipcheck/internal/config"
	"github.com/harrison/snipcheck/internal/executor"
	"github.com/harrison/snipcheck/internal/filelock"
	"github.com/harrison/snipcheck/internal/history"
	"github.com/harrison/snipcheck/internal/logger"
	"github.com/harrison/snipcheck/internal/models"
	"github.com/harrison/snipcheck/internal/parser"
	"github.com/harrison/snipcheck/internal/report"
	"github.com/harrison/snipcheck/internal/toolchain"
)

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	return newCheckCommand(nil)
}

// newCheckCommand builds the check command around checker.
// A nil checker runs real toolchain subprocesses.
func newCheckCommand(checker toolchain.Checker) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <document>",
		Short: "Syntax-check every code block in a document",
		Long: `Extract the fenced code blocks of a Markdown document and run each one
through the syntax checker registered for its language tag.

Use "-" to read the document from standard input.

Configuration is loaded from .snipcheck/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  snipcheck check README.md
  snipcheck check --workers 4 --timeout 2m docs/guide.md
  snipcheck check --toolchain 'rust=rustc --edition 2021 --emit=metadata {file}' guide.md
  snipcheck check --format jsonl --report-file out/report.jsonl guide.md
  cat guide.md | snipcheck check -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newCheckRunner(cmd, checker)
			if err != nil {
				return err
			}
			return runner.run(cmd.Context(), args[0])
		},
	}

	addCheckFlags(cmd)
	return cmd
}

// addCheckFlags registers the flags shared by check and watch.
func addCheckFlags(cmd *cobra.Command) {
	addConfigFlags(cmd)
	cmd.Flags().Int("workers", 1, "Maximum number of concurrent toolchain invocations")
	cmd.Flags().String("timeout", "", "Limit for the whole run (e.g. 30s, 2m; a bare number is seconds)")
	cmd.Flags().String("block-timeout", "", "Limit for a single toolchain invocation")
	cmd.Flags().String("format", "", "Report format: text or jsonl (default: text)")
	cmd.Flags().String("report-file", "", "Also write the report to this file")
	cmd.Flags().String("log-level", "", "Log verbosity: trace, debug, info, warn, error (default: warn)")
	cmd.Flags().String("log-dir", "", "Write a per-run log file into this directory")
	cmd.Flags().Bool("history", false, "Record the run in the history database")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
}

// addConfigFlags registers the flags every command needs to build a registry.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Path to config file (default: .snipcheck/config.yaml)")
	cmd.Flags().StringArray("toolchain", nil, "Register a toolchain as tag=command; an empty command disables the tag (repeatable)")
}

// checkRunner runs the whole pipeline for one document.
type checkRunner struct {
	cfg        *config.Config
	checker    toolchain.Checker
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	useColor   bool
	reportFile string

	// skipLockedReport drops the report file write when another run holds
	// its lock, instead of waiting.
	skipLockedReport bool
}

func newCheckRunner(cmd *cobra.Command, checker toolchain.Checker) (*checkRunner, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor {
		color.NoColor = true
	}
	reportFile, _ := cmd.Flags().GetString("report-file")

	if checker == nil {
		checker = toolchain.NewExecChecker("")
	}

	return &checkRunner{
		cfg:        cfg,
		checker:    checker,
		stdin:      cmd.InOrStdin(),
		stdout:     cmd.OutOrStdout(),
		stderr:     cmd.ErrOrStderr(),
		useColor:   !noColor && report.UseColor(cmd.OutOrStdout()),
		reportFile: reportFile,
	}, nil
}

// loadConfig reads the config file and applies every flag the command
// defines and the user set. The result is validated.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, usageError("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, usageError("failed to load config: %w", err)
		}
	}

	// Build flag pointers for merge (only values the user set)
	var workersPtr *int
	if changed(cmd, "workers") {
		workers, _ := cmd.Flags().GetInt("workers")
		workersPtr = &workers
	}

	var timeoutPtr, blockTimeoutPtr *time.Duration
	if changed(cmd, "timeout") {
		raw, _ := cmd.Flags().GetString("timeout")
		timeout, err := config.ParseDuration(raw)
		if err != nil {
			return nil, usageError("invalid timeout format %q: %w", raw, err)
		}
		timeoutPtr = &timeout
	}
	if changed(cmd, "block-timeout") {
		raw, _ := cmd.Flags().GetString("block-timeout")
		blockTimeout, err := config.ParseDuration(raw)
		if err != nil {
			return nil, usageError("invalid block timeout format %q: %w", raw, err)
		}
		blockTimeoutPtr = &blockTimeout
	}

	var logLevelPtr, logDirPtr, formatPtr *string
	if changed(cmd, "log-level") {
		level, _ := cmd.Flags().GetString("log-level")
		level = strings.ToLower(level)
		logLevelPtr = &level
	}
	if changed(cmd, "log-dir") {
		dir, _ := cmd.Flags().GetString("log-dir")
		logDirPtr = &dir
	}
	if changed(cmd, "format") {
		format, _ := cmd.Flags().GetString("format")
		formatPtr = &format
	}

	var historyPtr *bool
	if changed(cmd, "history") {
		enabled, _ := cmd.Flags().GetBool("history")
		historyPtr = &enabled
	}

	cfg.MergeWithFlags(workersPtr, timeoutPtr, blockTimeoutPtr, logLevelPtr, logDirPtr, formatPtr, historyPtr)

	if changed(cmd, "toolchain") {
		values, _ := cmd.Flags().GetStringArray("toolchain")
		overrides, err := parseToolchainFlags(values)
		if err != nil {
			return nil, usageError("%w", err)
		}
		cfg.MergeToolchains(overrides)
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError("invalid configuration: %w", err)
	}
	return cfg, nil
}

func changed(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// parseToolchainFlags splits tag=command pairs on the first "=".
func parseToolchainFlags(values []string) (map[string]string, error) {
	overrides := make(map[string]string, len(values))
	for _, v := range values {
		tag, command, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --toolchain %q: expected tag=command", v)
		}
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, fmt.Errorf("invalid --toolchain %q: empty tag", v)
		}
		overrides[tag] = strings.TrimSpace(command)
	}
	return overrides, nil
}

// run checks the document at path and prints its report.
// The returned error is nil or an *ExitError.
func (r *checkRunner) run(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	doc, err := parser.ParseFileFrom(path, r.stdin)
	if err != nil {
		if errors.Is(err, parser.ErrMalformedDocument) {
			return &ExitError{Code: ExitMalformed, Err: fmt.Errorf("%s: %w", path, err)}
		}
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("failed to load document: %w", err)}
	}

	runID := history.NewRunID()

	consoleLog := logger.NewConsoleLogger(r.stderr, r.cfg.LogLevel)
	var runLog executor.RunLogger = consoleLog
	if r.cfg.LogDir != "" {
		fileLog, err := logger.NewFileLogger(r.cfg.LogDir, r.cfg.LogLevel, runID)
		if err != nil {
			return &ExitError{Code: ExitUsage, Err: fmt.Errorf("failed to create file logger: %w", err)}
		}
		defer fileLog.Close()
		runLog = logger.NewMultiLogger(consoleLog, fileLog)
	}

	verifier := executor.NewVerifierWithConfig(r.checker, runLog, r.cfg.Workers, r.cfg.Timeout, r.cfg.BlockTimeout)
	orch, err := executor.NewOrchestrator(verifier, r.cfg.Registry(), runLog)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}

	result, err := orch.Run(ctx, doc)
	if err != nil {
		return &ExitError{Code: ExitUsage, Err: fmt.Errorf("check failed: %w", err)}
	}

	if err := r.writeReport(doc, result.Summary); err != nil {
		return &ExitError{Code: ExitUsage, Err: err}
	}

	if r.cfg.History.Enabled {
		// The run is already complete; an interrupt must not lose its record.
		if err := recordRun(context.WithoutCancel(ctx), r.cfg.History.DBPath, runID, result); err != nil {
			return &ExitError{Code: ExitUsage, Err: err}
		}
		consoleLog.LogDebug(fmt.Sprintf("Recorded run %s in %s", runID, r.cfg.History.DBPath))
	}

	if err := result.Err(); err != nil {
		consoleLog.LogDebug(err.Error())
		if errors.Is(err, executor.ErrToolchainUnavailable) {
			consoleLog.LogWarn("Some toolchains could not be run; see \"snipcheck toolchains\"")
		}
		if executor.IsTimeoutError(err) {
			consoleLog.LogWarn(fmt.Sprintf("Some blocks timed out (timeout %s, block timeout %s)",
				durationOrNone(r.cfg.Timeout), durationOrNone(r.cfg.BlockTimeout)))
		}
	}

	if code := report.ExitCode(result.Summary); code != ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

func (r *checkRunner) writeReport(doc *models.Document, summary models.Summary) error {
	var err error
	switch r.cfg.Format {
	case report.FormatJSONL:
		err = report.WriteJSONLines(r.stdout, summary)
	default:
		err = report.WriteText(r.stdout, doc.Path, summary, r.useColor)
	}
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if r.reportFile == "" {
		return nil
	}
	if !r.skipLockedReport {
		return report.WriteFile(r.reportFile, r.cfg.Format, doc.Path, summary)
	}
	err = report.TryWriteFile(r.reportFile, r.cfg.Format, doc.Path, summary)
	if errors.Is(err, filelock.ErrLocked) {
		fmt.Fprintf(r.stderr, "Warning: report file %s is locked by another writer; not updated\n", r.reportFile)
		return nil
	}
	return err
}

func recordRun(ctx context.Context, dbPath, runID string, result *executor.RunResult) error {
	store, err := history.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	run := history.Run{
		ID:        runID,
		Document:  result.Document.Path,
		StartedAt: result.StartedAt,
		Duration:  result.Duration,
	}
	if err := store.RecordRun(ctx, run, result.Summary); err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func durationOrNone(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}
