package toolchain

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/snipcheck/internal/models"
)

func requireExecutable(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestCheckerFunc(t *testing.T) {
	var gotTag, gotCommand, gotSource string
	checker := CheckerFunc(func(ctx context.Context, tag, command, source string) Outcome {
		gotTag, gotCommand, gotSource = tag, command, source
		return SyntaxFailure("expected ';'")
	})

	outcome := checker.Check(context.Background(), "c", "gcc -", "int x")
	assert.False(t, outcome.Passed)
	assert.Equal(t, models.FailureSyntax, outcome.Kind)
	assert.Equal(t, "expected ';'", outcome.Diagnostic)
	assert.Equal(t, "c", gotTag)
	assert.Equal(t, "gcc -", gotCommand)
	assert.Equal(t, "int x", gotSource)
}

func TestOutcomeConstructors(t *testing.T) {
	assert.True(t, Passed().Passed)
	assert.Equal(t, models.FailureNone, Passed().Kind)

	u := Unavailable("%s: executable not found", "gcc")
	assert.Equal(t, models.FailureUnavailable, u.Kind)
	assert.Equal(t, "toolchain unavailable: gcc: executable not found", u.Diagnostic)

	to := TimedOut("timeout")
	assert.Equal(t, models.FailureTimeout, to.Kind)
}

func TestExecChecker_FileTemplate(t *testing.T) {
	requireExecutable(t, "sh")
	checker := NewExecChecker("")

	outcome := checker.Check(context.Background(), "sh", "sh -n {file}", "echo hello\n")
	assert.True(t, outcome.Passed, "diagnostic: %s", outcome.Diagnostic)

	outcome = checker.Check(context.Background(), "sh", "sh -n {file}", "if then fi (")
	assert.False(t, outcome.Passed)
	assert.Equal(t, models.FailureSyntax, outcome.Kind)
	assert.NotEmpty(t, outcome.Diagnostic)
}

func TestExecChecker_Stdin(t *testing.T) {
	requireExecutable(t, "sh")
	checker := NewExecChecker("")

	outcome := checker.Check(context.Background(), "sh", "sh -n", "for i in 1 2; do echo $i; done")
	assert.True(t, outcome.Passed, "diagnostic: %s", outcome.Diagnostic)

	outcome = checker.Check(context.Background(), "sh", "sh -n", "for i in; do")
	assert.False(t, outcome.Passed)
	assert.Equal(t, models.FailureSyntax, outcome.Kind)
}

func TestExecChecker_TempFileExtensionAndCleanup(t *testing.T) {
	requireExecutable(t, "sh")
	checker := NewExecChecker("")

	outcome := checker.Check(context.Background(), "python", `sh -c 'echo "$0"; exit 1' {file}`, "print(1)")
	require.False(t, outcome.Passed)

	snippetPath := strings.TrimSpace(outcome.Diagnostic)
	assert.True(t, strings.HasSuffix(snippetPath, ".py"), "snippet file %q", snippetPath)
	_, err := os.Stat(snippetPath)
	assert.True(t, os.IsNotExist(err), "snippet file must be removed after the check")
	_, err = os.Stat(filepath.Dir(snippetPath))
	assert.True(t, os.IsNotExist(err), "scratch directory must be removed after the check")
}

func TestExecChecker_DiagnosticFallsBackToStdout(t *testing.T) {
	requireExecutable(t, "sh")

	outcome := NewExecChecker("").Check(context.Background(), "x", `sh -c 'echo only-stdout; exit 3'`, "")
	assert.Equal(t, models.FailureSyntax, outcome.Kind)
	assert.Equal(t, "only-stdout", outcome.Diagnostic)

	outcome = NewExecChecker("").Check(context.Background(), "x", `sh -c 'echo out; echo err >&2; exit 1'`, "")
	assert.Equal(t, "err", outcome.Diagnostic, "stderr wins when both are present")
}

func TestDiagnostic_TruncatesOnRuneBoundary(t *testing.T) {
	// "é" is two bytes; the cap lands inside the last one
	stderr := strings.Repeat("a", maxDiagnosticBytes-1) + strings.Repeat("é", 4)

	got := diagnostic(stderr, "")
	assert.True(t, utf8.ValidString(got), "diagnostic must stay valid UTF-8")
	assert.True(t, strings.HasSuffix(got, "\n... (truncated)"))
	assert.Equal(t, strings.Repeat("a", maxDiagnosticBytes-1)+"\n... (truncated)", got)

	short := diagnostic("  fine  ", "ignored")
	assert.Equal(t, "fine", short)
}

func TestExecChecker_MissingExecutable(t *testing.T) {
	outcome := NewExecChecker("").Check(context.Background(), "cobol", "snipcheck-no-such-compiler --check {file}", "DISPLAY 'HI'.")

	assert.False(t, outcome.Passed)
	assert.Equal(t, models.FailureUnavailable, outcome.Kind)
	assert.True(t, strings.HasPrefix(outcome.Diagnostic, UnavailablePrefix), outcome.Diagnostic)
	assert.Contains(t, outcome.Diagnostic, "snipcheck-no-such-compiler")
}

func TestExecChecker_ShellReportsCommandNotFound(t *testing.T) {
	requireExecutable(t, "sh")

	outcome := NewExecChecker("").Check(context.Background(), "x", `sh -c 'snipcheck-no-such-tool'`, "")
	assert.Equal(t, models.FailureUnavailable, outcome.Kind)
	assert.True(t, strings.HasPrefix(outcome.Diagnostic, UnavailablePrefix))
}

func TestExecChecker_InvalidTemplate(t *testing.T) {
	outcome := NewExecChecker("").Check(context.Background(), "c", `gcc "unterminated`, "int x;")
	assert.Equal(t, models.FailureUnavailable, outcome.Kind)
	assert.Contains(t, outcome.Diagnostic, "invalid toolchain command")
}

func TestExecChecker_Timeout(t *testing.T) {
	requireExecutable(t, "sh")
	requireExecutable(t, "sleep")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	outcome := NewExecChecker("").Check(ctx, "sh", `sh -c 'sleep 10'`, "")
	assert.Less(t, time.Since(start), 5*time.Second, "the child must be killed")
	assert.Equal(t, models.FailureTimeout, outcome.Kind)
	assert.Equal(t, "timeout", outcome.Diagnostic)
}

func TestExecChecker_Cancelled(t *testing.T) {
	requireExecutable(t, "sh")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := NewExecChecker("").Check(ctx, "sh", "sh -n", "echo hi")
	assert.Equal(t, models.FailureTimeout, outcome.Kind)
	assert.Equal(t, "cancelled", outcome.Diagnostic)
}

func TestExecChecker_GCC(t *testing.T) {
	requireExecutable(t, "gcc")
	checker := NewExecChecker("")
	command := DefaultCommands()["c"]

	outcome := checker.Check(context.Background(), "c", command, "int main(){return 0;}")
	assert.True(t, outcome.Passed, "diagnostic: %s", outcome.Diagnostic)

	outcome = checker.Check(context.Background(), "c", command, "int main({")
	assert.False(t, outcome.Passed)
	assert.Equal(t, models.FailureSyntax, outcome.Kind)
	assert.Contains(t, outcome.Diagnostic, "error")
}

func TestExecChecker_Python(t *testing.T) {
	requireExecutable(t, "python3")
	checker := NewExecChecker("")
	command := DefaultCommands()["python"]

	outcome := checker.Check(context.Background(), "python", command, "print('hello')")
	assert.True(t, outcome.Passed, "diagnostic: %s", outcome.Diagnostic)

	outcome = checker.Check(context.Background(), "python", command, "def broken(:")
	assert.Equal(t, models.FailureSyntax, outcome.Kind)
	assert.Contains(t, outcome.Diagnostic, "SyntaxError")
}

func TestResolve(t *testing.T) {
	requireExecutable(t, "sh")

	path, err := Resolve("sh -n {file}")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path) || strings.Contains(path, "sh"))

	_, err = Resolve("snipcheck-no-such-compiler -")
	assert.Error(t, err)

	_, err = Resolve("")
	assert.ErrorIs(t, err, ErrInvalidCommand)
}
