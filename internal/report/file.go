package report

import (
	"bytes"
	"fmt"

	"github.com/harrison/snipcheck/internal/filelock"
	"github.com/harrison/snipcheck/internal/models"
)

// Output formats
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

// Render writes s in the named format to a buffer. Text output is never colored.
func Render(format, docPath string, s models.Summary) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatText, "":
		if err := WriteText(&buf, docPath, s, false); err != nil {
			return nil, err
		}
	case FormatJSONL:
		if err := WriteJSONLines(&buf, s); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown report format %q (supported: text, jsonl)", format)
	}
	return buf.Bytes(), nil
}

// WriteFile renders s and replaces the file at path atomically while holding
// path.lock, so concurrent runs never interleave a report.
func WriteFile(path, format, docPath string, s models.Summary) error {
	data, err := Render(format, docPath, s)
	if err != nil {
		return err
	}
	if err := filelock.LockAndWrite(path, data); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// TryWriteFile is WriteFile without waiting for the lock. It returns an
// error matching filelock.ErrLocked when another run is writing path.
func TryWriteFile(path, format, docPath string, s models.Summary) error {
	data, err := Render(format, docPath, s)
	if err != nil {
		return err
	}
	if err := filelock.TryLockAndWrite(path, data); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
