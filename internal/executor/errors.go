package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/snipcheck/internal/models"
)

var (
	// ErrSyntaxCheckFailed matches blocks their toolchain rejected.
	ErrSyntaxCheckFailed = errors.New("syntax check failed")
	// ErrToolchainUnavailable matches blocks whose toolchain could not be run.
	ErrToolchainUnavailable = errors.New("toolchain unavailable")
)

// BlockError describes one Failed block.
type BlockError struct {
	Index      int                // Ordinal of the block
	Tag        string             // Language tag as written
	Line       int                // Line of the opening fence
	Kind       models.FailureKind // Failure classification
	Diagnostic string             // Toolchain output or reason
	Err        error              // Sentinel or *TimeoutError for Kind
}

// NewBlockError returns the error for a Failed result, or nil for any other status.
func NewBlockError(r models.VerificationResult) *BlockError {
	if r.Status != models.StatusFailed {
		return nil
	}

	var err error
	switch r.Kind {
	case models.FailureUnavailable:
		err = ErrToolchainUnavailable
	case models.FailureTimeout:
		err = &TimeoutError{Diagnostic: r.Diagnostic}
	default:
		err = ErrSyntaxCheckFailed
	}

	return &BlockError{
		Index:      r.Block.Index,
		Tag:        r.Block.Tag,
		Line:       r.Block.Line,
		Kind:       r.Kind,
		Diagnostic: r.Diagnostic,
		Err:        err,
	}
}

// Error implements the error interface for BlockError.
// Only the first diagnostic line is included.
func (e *BlockError) Error() string {
	tag := e.Tag
	if tag == "" {
		tag = models.UntaggedKey
	}
	msg := fmt.Sprintf("block #%d (%s, line %d): %v", e.Index, tag, e.Line, e.Err)
	first, _, _ := strings.Cut(e.Diagnostic, "\n")
	if first != "" && first != e.Err.Error() {
		msg += ": " + first
	}
	return msg
}

// Unwrap returns the underlying error for error wrapping support.
func (e *BlockError) Unwrap() error {
	return e.Err
}

// TimeoutError is a run or block that hit its time limit or was cancelled.
type TimeoutError struct {
	Limit      time.Duration // Limit that expired, 0 when unknown
	Cancelled  bool          // The run was cancelled rather than timed out
	Diagnostic string        // Recorded diagnostic, used when rebuilt from a result
}

// Error implements the error interface for TimeoutError.
func (e *TimeoutError) Error() string {
	switch {
	case e.Diagnostic != "":
		return e.Diagnostic
	case e.Cancelled:
		return "cancelled"
	case e.Limit > 0:
		return fmt.Sprintf("timeout after %v", e.Limit)
	default:
		return "timeout"
	}
}

// Unwrap returns context.DeadlineExceeded, or context.Canceled for a
// cancelled run.
func (e *TimeoutError) Unwrap() error {
	if e.Cancelled {
		return context.Canceled
	}
	return context.DeadlineExceeded
}

// RunError aggregates the Failed blocks of one run.
type RunError struct {
	Document string
	Total    int
	Blocks   []*BlockError
}

// Error implements the error interface for RunError.
func (e *RunError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %d/%d blocks failed", e.Document, len(e.Blocks), e.Total))
	if len(e.Blocks) > 0 {
		sb.WriteString(":")
		for _, be := range e.Blocks {
			sb.WriteString(fmt.Sprintf("\n  - %s", be.Error()))
		}
	}
	return sb.String()
}

// Unwrap returns the block errors so errors.Is and errors.As traverse them.
func (e *RunError) Unwrap() []error {
	if len(e.Blocks) == 0 {
		return nil
	}
	errs := make([]error, len(e.Blocks))
	for i, be := range e.Blocks {
		errs[i] = be
	}
	return errs
}

// IsTimeoutError checks if the error is or wraps a TimeoutError or context.DeadlineExceeded.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
