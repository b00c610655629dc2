// Package logger provides logging implementations for snipcheck runs.
//
// Loggers record run start, per-block progress and the final summary.
// Implementations are thread-safe; the verifier calls them from worker
// goroutines.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/snipcheck/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is enabled automatically for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive); anything
// else falls back to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// fatih/color's TTY detection, which also honours NO_COLOR
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))

	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// LogTrace logs a trace-level message.
func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("TRACE", message) }

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) { cl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) { cl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("ERROR", message) }

// logWithLevel writes "[HH:MM:SS] [LEVEL] <message>" if filtering allows it.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	if cl.colorOutput {
		fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, levelColor(level).Sprint(level), message)
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, level, message)
}

func levelColor(level string) *color.Color {
	switch strings.ToUpper(level) {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "INFO":
		return color.New(color.FgBlue)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

// LogRunStart logs the start of a run at INFO level.
// Format: "[HH:MM:SS] Checking <path>: <n> blocks (<workers> workers)"
func (cl *ConsoleLogger) LogRunStart(doc *models.Document, workers int) {
	if doc == nil {
		return
	}
	name := doc.Path
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
	}
	cl.logWithLevel("INFO", fmt.Sprintf("Checking %s: %d blocks (%d workers)", name, len(doc.Blocks), workers))
}

// LogBlockStart logs a toolchain invocation at TRACE level.
func (cl *ConsoleLogger) LogBlockStart(block models.CodeBlock, command string) {
	cl.logWithLevel("TRACE", fmt.Sprintf("Block #%d (%s, line %d): running %s", block.Index, tagOrUntagged(block.Tag), block.Line, command))
}

// LogBlockResult logs one block's outcome at DEBUG level.
// Format: "[HH:MM:SS] [DEBUG] Block #<n> (<tag>, line <l>): <STATUS>"
func (cl *ConsoleLogger) LogBlockResult(result models.VerificationResult) {
	status := string(result.Status)
	if cl.colorOutput {
		switch result.Status {
		case models.StatusPassed:
			status = color.New(color.FgGreen).Sprint(status)
		case models.StatusFailed:
			status = color.New(color.FgRed).Sprint(status)
		case models.StatusSkipped:
			status = color.New(color.FgYellow).Sprint(status)
		}
	}
	msg := fmt.Sprintf("Block #%d (%s, line %d): %s", result.Block.Index, tagOrUntagged(result.Block.Tag), result.Block.Line, status)
	if result.Kind != models.FailureNone {
		msg += fmt.Sprintf(" [%s]", result.Kind)
	}
	if result.Duration > 0 {
		msg += fmt.Sprintf(" in %s", formatDuration(result.Duration))
	}
	cl.logWithLevel("DEBUG", msg)
}

// LogSummary logs aggregate counts at INFO level.
func (cl *ConsoleLogger) LogSummary(summary models.Summary, duration time.Duration) {
	cl.logWithLevel("INFO", fmt.Sprintf("Verified %d blocks in %s: %d passed, %d failed, %d skipped",
		summary.Total, formatDuration(duration), summary.Passed(), summary.Failed(), summary.Skipped()))
}

func tagOrUntagged(tag string) string {
	if tag == "" {
		return models.UntaggedKey
	}
	return tag
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration renders d compactly: "850ms", "3.2s", "2m5s", "1h4m".
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return d.Truncate(time.Minute).String()
	case d >= time.Minute:
		return d.Truncate(time.Second).String()
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}
