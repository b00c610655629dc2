package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harrison/snipcheck/internal/models"
)

// maxDiagnosticBytes caps the checker output kept per block.
const maxDiagnosticBytes = 64 * 1024

// UnavailablePrefix starts every diagnostic for a toolchain that could not run.
const UnavailablePrefix = "toolchain unavailable: "

// Outcome is what a Checker reports for one snippet.
type Outcome struct {
	Passed     bool
	Kind       models.FailureKind // Set when Passed is false
	Diagnostic string
}

// Passed is the outcome of an accepted snippet.
func Passed() Outcome { return Outcome{Passed: true} }

// SyntaxFailure is the outcome of a snippet the toolchain rejected.
func SyntaxFailure(diagnostic string) Outcome {
	return Outcome{Kind: models.FailureSyntax, Diagnostic: diagnostic}
}

// Unavailable is the outcome when the toolchain could not be started.
func Unavailable(format string, args ...any) Outcome {
	return Outcome{Kind: models.FailureUnavailable, Diagnostic: UnavailablePrefix + fmt.Sprintf(format, args...)}
}

// TimedOut is the outcome of an invocation stopped by its context.
func TimedOut(diagnostic string) Outcome {
	return Outcome{Kind: models.FailureTimeout, Diagnostic: diagnostic}
}

// Checker runs one snippet through one toolchain command.
// Implementations must be safe for concurrent use.
type Checker interface {
	Check(ctx context.Context, tag, command, source string) Outcome
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, tag, command, source string) Outcome

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context, tag, command, source string) Outcome {
	return f(ctx, tag, command, source)
}

// ExecChecker runs toolchains as subprocesses. Each call owns a temporary
// directory and a child process, both released before Check returns.
type ExecChecker struct {
	WorkDir string   // Working directory for the toolchain (empty = temp dir)
	Env     []string // Extra environment entries appended to os.Environ()
}

// NewExecChecker creates an ExecChecker that runs in workDir.
func NewExecChecker(workDir string) *ExecChecker {
	return &ExecChecker{WorkDir: workDir}
}

// Check implements Checker.
func (c *ExecChecker) Check(ctx context.Context, tag, command, source string) Outcome {
	parsed, err := ParseCommand(command)
	if err != nil {
		return Unavailable("%v", err)
	}

	path, err := exec.LookPath(parsed.Argv[0])
	if err != nil {
		return Unavailable("%s: executable not found", parsed.Argv[0])
	}

	if !strings.HasSuffix(source, "\n") {
		source += "\n"
	}

	tmpDir, err := os.MkdirTemp("", "snipcheck-*")
	if err != nil {
		return Unavailable("failed to create scratch directory: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	argv := parsed.Argv
	if parsed.UsesFile {
		file := filepath.Join(tmpDir, "snippet"+FileExtension(tag))
		if err := os.WriteFile(file, []byte(source), 0644); err != nil {
			return Unavailable("failed to write snippet: %v", err)
		}
		argv = parsed.Expand(file)
	}

	cmd := exec.CommandContext(ctx, path, argv[1:]...)
	cmd.Dir = tmpDir
	if c.WorkDir != "" {
		cmd.Dir = c.WorkDir
	}
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if !parsed.UsesFile {
		cmd.Stdin = strings.NewReader(source)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Grandchildren may hold the output pipes open after the kill.
	cmd.WaitDelay = 2 * time.Second

	err = cmd.Run()

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return TimedOut("timeout")
		}
		return TimedOut("cancelled")
	}

	if err == nil {
		return Passed()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		diag := diagnostic(stderr.String(), stdout.String())
		// Shells report a missing command with status 127.
		if exitErr.ExitCode() == 127 && strings.Contains(strings.ToLower(diag), "not found") {
			return Unavailable("%s", diag)
		}
		if diag == "" {
			diag = exitErr.Error()
		}
		return SyntaxFailure(diag)
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return Unavailable("%s: %v", parsed.Argv[0], err)
	}
	return Unavailable("failed to start %s: %v", parsed.Argv[0], err)
}

// diagnostic prefers stderr and falls back to stdout, trimmed and capped.
func diagnostic(stderr, stdout string) string {
	out := strings.TrimSpace(stderr)
	if out == "" {
		out = strings.TrimSpace(stdout)
	}
	if len(out) > maxDiagnosticBytes {
		cut := maxDiagnosticBytes
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut] + "\n... (truncated)"
	}
	return out
}

// Resolve reports the absolute path of a template's executable.
func Resolve(command string) (string, error) {
	parsed, err := ParseCommand(command)
	if err != nil {
		return "", err
	}
	return exec.LookPath(parsed.Argv[0])
}
