package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/snipcheck/internal/history"
	"github.com/harrison/snipcheck/internal/toolchain"
)

// fakeChecker rejects C snippets containing "int main({" and passes everything else.
var fakeChecker = toolchain.CheckerFunc(func(ctx context.Context, tag, command, source string) toolchain.Outcome {
	if strings.Contains(source, "int main({") {
		return toolchain.SyntaxFailure("snippet.c:1:10: error: expected declaration specifiers")
	}
	return toolchain.Passed()
})

const goodDoc = "# Intro\n\n```c\nint main(){return 0;}\n```\n\n```cobol\nDISPLAY 'HI'.\n```\n"

const badDoc = "# Intro\n\n```c\nint main(){return 0;}\n```\n\n## Broken\n\n```c\nint main({\n```\n"

type cmdResult struct {
	stdout string
	stderr string
	err    error
}

// execute runs c with args plus a --config pointing at a missing file so the
// working directory's configuration never leaks into a test.
func execute(t *testing.T, c *cobra.Command, stdin string, args ...string) cmdResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	c.SetOut(&stdout)
	c.SetErr(&stderr)
	c.SetIn(strings.NewReader(stdin))
	if c.Flags().Lookup("config") != nil && !containsFlag(args, "--config") {
		args = append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, args...)
	}
	c.SetArgs(args)
	err := c.Execute()
	return cmdResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func containsFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag || strings.HasPrefix(a, flag+"=") {
			return true
		}
	}
	return false
}

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guide.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCheck_AllPassed(t *testing.T) {
	path := writeDoc(t, goodDoc)

	res := execute(t, newCheckCommand(fakeChecker), "", "--no-color", path)
	require.NoError(t, res.err)
	assert.Equal(t, ExitOK, ExitCode(res.err))

	assert.Contains(t, res.stdout, "Total blocks: 2")
	assert.Contains(t, res.stdout, "Passed: 1")
	assert.Contains(t, res.stdout, "Skipped (unsupported language): 1")
	assert.NotContains(t, res.stdout, "Failures:")
}

func TestCheck_Failure(t *testing.T) {
	path := writeDoc(t, badDoc)

	res := execute(t, newCheckCommand(fakeChecker), "", "--no-color", path)
	require.Error(t, res.err)
	assert.Equal(t, ExitFailed, ExitCode(res.err))

	var exitErr *ExitError
	require.ErrorAs(t, res.err, &exitErr)
	assert.Nil(t, exitErr.Err, "the report already explains the failure")

	assert.Contains(t, res.stdout, "Failed: 1")
	assert.Contains(t, res.stdout, `[#1] section "Broken" (line 9, c, syntax)`)
	assert.Contains(t, res.stdout, "expected declaration specifiers")
}

func TestCheck_MalformedDocument(t *testing.T) {
	path := writeDoc(t, "# Intro\n```python\nprint(1)\n")

	res := execute(t, newCheckCommand(fakeChecker), "", path)
	require.Error(t, res.err)
	assert.Equal(t, ExitMalformed, ExitCode(res.err))
	assert.Contains(t, res.err.Error(), "line 2")
	assert.Empty(t, res.stdout, "no report for a malformed document")
}

func TestCheck_EmptyDocument(t *testing.T) {
	path := writeDoc(t, "# Nothing here\n\nJust prose.\n")

	res := execute(t, newCheckCommand(fakeChecker), "", "--no-color", path)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Total blocks: 0")
}

func TestCheck_MissingDocument(t *testing.T) {
	res := execute(t, newCheckCommand(fakeChecker), "", filepath.Join(t.TempDir(), "nope.md"))
	assert.Equal(t, ExitUsage, ExitCode(res.err))
}

func TestCheck_Stdin(t *testing.T) {
	res := execute(t, newCheckCommand(fakeChecker), badDoc, "--no-color", "-")
	assert.Equal(t, ExitFailed, ExitCode(res.err))
	assert.Contains(t, res.stdout, "Total blocks: 2")
}

func TestCheck_JSONL(t *testing.T) {
	path := writeDoc(t, badDoc)

	res := execute(t, newCheckCommand(fakeChecker), "", "--format", "jsonl", path)
	assert.Equal(t, ExitFailed, ExitCode(res.err))

	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "FAILED", rec["status"])
	assert.Equal(t, "Broken", rec["section"])
	assert.Equal(t, "syntax", rec["kind"])
}

func TestCheck_ReportFile(t *testing.T) {
	path := writeDoc(t, goodDoc)
	reportPath := filepath.Join(t.TempDir(), "out", "report.jsonl")

	res := execute(t, newCheckCommand(fakeChecker), "", "--format", "jsonl", "--report-file", reportPath, path)
	require.NoError(t, res.err)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Equal(t, res.stdout, string(data))
}

func TestCheck_ToolchainFlag(t *testing.T) {
	path := writeDoc(t, goodDoc)

	var cobolCalls atomic.Int32
	checker := toolchain.CheckerFunc(func(ctx context.Context, tag, command, source string) toolchain.Outcome {
		if tag == "cobol" {
			cobolCalls.Add(1)
			assert.Equal(t, "cobc -fsyntax-only {file}", command)
		}
		return toolchain.Passed()
	})

	res := execute(t, newCheckCommand(checker), "", "--no-color",
		"--toolchain", "cobol=cobc -fsyntax-only {file}",
		"--toolchain", "c=",
		path)
	require.NoError(t, res.err)
	assert.Equal(t, int32(1), cobolCalls.Load())
	assert.Contains(t, res.stdout, "Passed: 1")
	assert.Contains(t, res.stdout, "Skipped (unsupported language): 1", "c was disabled")
}

func TestCheck_UsageErrors(t *testing.T) {
	path := writeDoc(t, goodDoc)

	tests := []struct {
		name string
		args []string
	}{
		{"toolchain without =", []string{"--toolchain", "rust", path}},
		{"toolchain without tag", []string{"--toolchain", "=rustc", path}},
		{"bad timeout", []string{"--timeout", "soon", path}},
		{"bad block timeout", []string{"--block-timeout", "-", path}},
		{"zero workers", []string{"--workers", "0", path}},
		{"bad format", []string{"--format", "xml", path}},
		{"bad log level", []string{"--log-level", "loud", path}},
		{"unknown flag", []string{"--frobnicate", path}},
		{"no document", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, newCheckCommand(fakeChecker), "", tt.args...)
			require.Error(t, res.err)
			assert.Equal(t, ExitUsage, ExitCode(res.err))
		})
	}
}

func TestCheck_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("format: jsonl\ntoolchains:\n  c: \"\"\n"), 0644))

	res := execute(t, newCheckCommand(fakeChecker), "", "--config", configPath, writeDoc(t, badDoc))
	require.NoError(t, res.err, "c is disabled by the config file so nothing fails")
	assert.Equal(t, 2, strings.Count(res.stdout, `"status":"SKIPPED"`))

	res = execute(t, newCheckCommand(fakeChecker), "", "--config", filepath.Join(dir, "broken.yaml"), writeDoc(t, badDoc))
	assert.Equal(t, ExitFailed, ExitCode(res.err), "a missing config file means defaults")

	require.NoError(t, os.WriteFile(configPath, []byte("workers: [\n"), 0644))
	res = execute(t, newCheckCommand(fakeChecker), "", "--config", configPath, writeDoc(t, badDoc))
	assert.Equal(t, ExitUsage, ExitCode(res.err))
}

func TestCheck_FrontmatterSkip(t *testing.T) {
	doc := "---\nsnipcheck:\n  skip: [c]\n---\n" + badDoc

	res := execute(t, newCheckCommand(fakeChecker), "", "--no-color", writeDoc(t, doc))
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Skipped (unsupported language): 2")
}

func TestCheck_LogDir(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")

	res := execute(t, newCheckCommand(fakeChecker), "", "--no-color", "--log-dir", logDir, writeDoc(t, badDoc))
	assert.Equal(t, ExitFailed, ExitCode(res.err))

	data, err := os.ReadFile(filepath.Join(logDir, "latest.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "expected declaration specifiers")
}

func TestCheck_LogLevelDebug(t *testing.T) {
	res := execute(t, newCheckCommand(fakeChecker), "", "--no-color", "--log-level", "DEBUG", writeDoc(t, badDoc))
	assert.Equal(t, ExitFailed, ExitCode(res.err))
	assert.Contains(t, res.stderr, "[DEBUG]")
	assert.Contains(t, res.stderr, "1/2 blocks failed")
}

func TestCheck_UnavailableWarning(t *testing.T) {
	checker := toolchain.CheckerFunc(func(ctx context.Context, tag, command, source string) toolchain.Outcome {
		return toolchain.Unavailable("gcc: executable not found")
	})

	res := execute(t, newCheckCommand(checker), "", "--no-color", writeDoc(t, goodDoc))
	assert.Equal(t, ExitFailed, ExitCode(res.err))
	assert.Contains(t, res.stderr, `snipcheck toolchains`)
	assert.Contains(t, res.stdout, "unavailable")
}

func TestCheck_History(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db", "history.db")
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("history:\n  db_path: "+dbPath+"\n"), 0644))
	docPath := writeDoc(t, badDoc)

	res := execute(t, newCheckCommand(fakeChecker), "", "--config", configPath, "--history", "--no-color", docPath)
	assert.Equal(t, ExitFailed, ExitCode(res.err))

	store, err := history.NewStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.RecentRuns(context.Background(), docPath, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Total)
	assert.Equal(t, 1, runs[0].Failed)

	records, err := store.RunResults(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Broken", records[1].Section)
}

func TestParseToolchainFlags(t *testing.T) {
	got, err := parseToolchainFlags([]string{"rust=rustc --emit=metadata {file}", " zig = zig ast-check {file} ", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"rust": "rustc --emit=metadata {file}",
		"zig":  "zig ast-check {file}",
		"c":    "",
	}, got)

	_, err = parseToolchainFlags([]string{"rust"})
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailed, ExitCode(&ExitError{Code: ExitFailed}))
	assert.Equal(t, ExitUsage, ExitCode(assert.AnError))
	assert.Equal(t, "exit status 1", (&ExitError{Code: 1}).Error())

	wrapped := &ExitError{Code: ExitMalformed, Err: assert.AnError}
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Equal(t, assert.AnError.Error(), wrapped.Error())
}
