package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/snipcheck/internal/models"
)

// FileLogger writes a per-run log file into a log directory and keeps a
// latest.log symlink pointing at the most recent run. Failed blocks are
// logged with their full diagnostic.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger in logDir at the given level.
// The run file is named run-YYYYMMDD-HHMMSS-<runID>.log.
func NewFileLogger(logDir, logLevel, runID string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("run-%s", time.Now().Format("20060102-150405"))
	if runID != "" {
		name += "-" + shortID(runID)
	}
	runFile := filepath.Join(logDir, name+".log")

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	fl.writeRunLog("=== snipcheck run log ===\n")
	if runID != "" {
		fl.writeRunLog(fmt.Sprintf("Run ID: %s\n", runID))
	}
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return fl, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Path returns the run log file path.
func (fl *FileLogger) Path() string { return fl.runFile }

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message.
func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) { fl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) { fl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogRunStart records the document and its block count.
func (fl *FileLogger) LogRunStart(doc *models.Document, workers int) {
	if doc == nil {
		return
	}
	fl.logWithLevel("INFO", fmt.Sprintf("Checking %s: %d sections, %d blocks (%d workers)",
		doc.Path, len(doc.Sections), len(doc.Blocks), workers))
}

// LogBlockStart records a toolchain invocation.
func (fl *FileLogger) LogBlockStart(block models.CodeBlock, command string) {
	fl.logWithLevel("TRACE", fmt.Sprintf("Block #%d (%s, line %d): running %s", block.Index, tagOrUntagged(block.Tag), block.Line, command))
}

// LogBlockResult records a block's status. Failures are always written with
// their diagnostic, regardless of level.
func (fl *FileLogger) LogBlockResult(result models.VerificationResult) {
	header := fmt.Sprintf("Block #%d (%s, line %d, section %q): %s",
		result.Block.Index, tagOrUntagged(result.Block.Tag), result.Block.Line, result.Block.SectionTitle(), result.Status)

	if result.Status != models.StatusFailed {
		fl.logWithLevel("DEBUG", header)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [ERROR] %s [%s]\n", timestamp(), header, result.Kind)
	if result.Command != "" {
		fmt.Fprintf(&b, "    command: %s\n", result.Command)
	}
	for _, line := range strings.Split(result.Diagnostic, "\n") {
		fmt.Fprintf(&b, "    | %s\n", line)
	}
	fl.writeRunLog(b.String())
}

// LogSummary writes the run summary.
func (fl *FileLogger) LogSummary(summary models.Summary, duration time.Duration) {
	if !fl.shouldLog("info") {
		return
	}

	status := "SUCCESS"
	if !summary.OK() {
		status = "FAILED"
	}

	ts := timestamp()
	fl.writeRunLog(fmt.Sprintf(
		"\n[%s] === RUN SUMMARY ===\n"+
			"[%s] Total blocks: %d\n"+
			"[%s] Passed:       %d\n"+
			"[%s] Failed:       %d\n"+
			"[%s] Skipped:      %d\n"+
			"[%s] Total time:   %.1fs\n"+
			"[%s] Status:       %s\n",
		ts,
		ts, summary.Total,
		ts, summary.Passed(),
		ts, summary.Failed(),
		ts, summary.Skipped(),
		ts, duration.Seconds(),
		ts, status,
	))
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
	}
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog == nil {
		return nil
	}
	if err := fl.runLog.Sync(); err != nil {
		fl.runLog.Close()
		fl.runLog = nil
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	err := fl.runLog.Close()
	fl.runLog = nil
	return err
}
