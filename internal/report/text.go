package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/snipcheck/internal/models"
)

// colorScheme defines consistent colors for report output.
type colorScheme struct {
	pass  *color.Color
	fail  *color.Color
	skip  *color.Color
	label *color.Color
	bold  *color.Color
}

func newColorScheme(enabled bool) *colorScheme {
	s := &colorScheme{
		pass:  color.New(color.FgGreen),
		fail:  color.New(color.FgRed),
		skip:  color.New(color.FgYellow),
		label: color.New(color.FgCyan),
		bold:  color.New(color.Bold),
	}
	for _, c := range []*color.Color{s.pass, s.fail, s.skip, s.label, s.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

func (s *colorScheme) status(st models.Status) *color.Color {
	switch st {
	case models.StatusPassed:
		return s.pass
	case models.StatusFailed:
		return s.fail
	default:
		return s.skip
	}
}

// UseColor reports whether w is a terminal that should receive ANSI colors.
// NO_COLOR and TERM=dumb disable color.
func UseColor(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// WriteText renders the human-readable summary for the document at path.
func WriteText(w io.Writer, path string, s models.Summary, useColor bool) error {
	cs := newColorScheme(useColor)
	var b strings.Builder

	if path != "" {
		fmt.Fprintf(&b, "%s %s\n", cs.bold.Sprint("snipcheck:"), path)
	}
	fmt.Fprintf(&b, "  %s %d\n", cs.label.Sprint("Total blocks:"), s.Total)
	for _, st := range models.Statuses {
		fmt.Fprintf(&b, "  %s %d\n", cs.status(st).Sprint(statusLabel(st)+":"), s.Counts[st])
	}

	if len(s.Failures) > 0 {
		fmt.Fprintf(&b, "\n%s\n", cs.fail.Sprint("Failures:"))
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "  [#%d] %s (line %d, %s, %s)\n",
				f.Index, sectionLabel(f.Section), f.Line, tagLabel(f.Tag), f.Kind)
			for _, line := range strings.Split(f.Diagnostic, "\n") {
				fmt.Fprintf(&b, "      %s\n", line)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func statusLabel(st models.Status) string {
	switch st {
	case models.StatusPassed:
		return "Passed"
	case models.StatusFailed:
		return "Failed"
	case models.StatusSkipped:
		return "Skipped (unsupported language)"
	default:
		return string(st)
	}
}

func sectionLabel(title string) string {
	if title == "" {
		return "(no section)"
	}
	return fmt.Sprintf("section %q", title)
}

func tagLabel(tag string) string {
	if tag == "" {
		return models.UntaggedKey
	}
	return tag
}
