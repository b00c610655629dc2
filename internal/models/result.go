package models

import "time"

// Status is the outcome of verifying one code block.
type Status string

// Verification status constants
const (
	StatusPassed  Status = "PASSED"  // Toolchain accepted the snippet
	StatusFailed  Status = "FAILED"  // Toolchain rejected the snippet, was unavailable, or timed out
	StatusSkipped Status = "SKIPPED" // No toolchain registered for the language tag
)

// Statuses lists every status in report order.
var Statuses = []Status{StatusPassed, StatusFailed, StatusSkipped}

// FailureKind tells apart the different reasons a block can fail.
type FailureKind string

// Failure kinds. FailureNone is used for passed and skipped blocks.
const (
	FailureNone        FailureKind = ""
	FailureSyntax      FailureKind = "syntax"
	FailureUnavailable FailureKind = "unavailable"
	FailureTimeout     FailureKind = "timeout"
)

// VerificationResult is the outcome for one CodeBlock.
type VerificationResult struct {
	Block      CodeBlock
	Status     Status
	Kind       FailureKind   // Why the block failed; empty unless Status is StatusFailed
	Diagnostic string        // Checker output for failures, empty when passed
	Command    string        // Toolchain command used, empty when skipped
	Duration   time.Duration // Time spent in the checker
}

// Failure is one failed block as it appears in a Summary.
type Failure struct {
	Section    string
	Index      int
	Line       int
	Tag        string
	Kind       FailureKind
	Diagnostic string
}

// Summary aggregates the results of one run.
type Summary struct {
	Total    int
	Counts   map[Status]int
	Failures []Failure // Document order
	Results  []VerificationResult
}

// Passed returns the number of passed blocks.
func (s Summary) Passed() int { return s.Counts[StatusPassed] }

// Failed returns the number of failed blocks.
func (s Summary) Failed() int { return s.Counts[StatusFailed] }

// Skipped returns the number of skipped blocks.
func (s Summary) Skipped() int { return s.Counts[StatusSkipped] }

// OK reports whether no block failed.
func (s Summary) OK() bool { return s.Failed() == 0 }
