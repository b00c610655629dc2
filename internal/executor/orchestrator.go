package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/harrison/snipcheck/internal/models"
	"github.com/harrison/snipcheck/internal/parser"
	"github.com/harrison/snipcheck/internal/report"
	"github.com/harrison/snipcheck/internal/toolchain"
)

// RunLogger extends Logger with run-level events.
type RunLogger interface {
	Logger
	LogRunStart(doc *models.Document, workers int)
	LogSummary(summary models.Summary, duration time.Duration)
}

// RunResult is the outcome of checking one document.
type RunResult struct {
	Document  *models.Document
	Summary   models.Summary
	StartedAt time.Time
	Duration  time.Duration
}

// Orchestrator wires classification, verification and reporting for a
// parsed document.
type Orchestrator struct {
	verifier *Verifier
	registry *toolchain.Registry
	logger   RunLogger
	workers  int
}

// NewOrchestrator creates an Orchestrator. logger may be nil.
func NewOrchestrator(verifier *Verifier, registry *toolchain.Registry, logger RunLogger) (*Orchestrator, error) {
	if verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if registry == nil {
		registry = toolchain.NewRegistry(nil)
	}
	return &Orchestrator{
		verifier: verifier,
		registry: registry,
		logger:   logger,
		workers:  verifier.workers,
	}, nil
}

// EffectiveRegistry applies the document's frontmatter overrides and skip list.
func (o *Orchestrator) EffectiveRegistry(doc *models.Document) *toolchain.Registry {
	return o.registry.With(doc.Options.Toolchains).Without(doc.Options.Skip)
}

// Run classifies, verifies and summarises doc.
func (o *Orchestrator) Run(ctx context.Context, doc *models.Document) (*RunResult, error) {
	if doc == nil {
		return nil, fmt.Errorf("document cannot be nil")
	}

	start := time.Now()
	if o.logger != nil {
		o.logger.LogRunStart(doc, o.workers)
	}

	classification := parser.Classify(doc.Blocks)
	if o.logger != nil {
		for _, tag := range classification.Tags() {
			o.logger.LogDebug(fmt.Sprintf("Tag %q: %d blocks", tag, len(classification.Blocks(tag))))
		}
	}

	results := o.verifier.VerifyAll(ctx, classification, o.EffectiveRegistry(doc))
	summary := report.Build(results)
	duration := time.Since(start)

	if o.logger != nil {
		o.logger.LogSummary(summary, duration)
	}

	return &RunResult{
		Document:  doc,
		Summary:   summary,
		StartedAt: start,
		Duration:  duration,
	}, nil
}

// Err returns a *RunError listing the Failed blocks, or nil when none failed.
func (r *RunResult) Err() error {
	if r == nil || r.Summary.OK() {
		return nil
	}
	runErr := &RunError{Document: r.Document.Path, Total: r.Summary.Total}
	for _, res := range r.Summary.Results {
		if be := NewBlockError(res); be != nil {
			runErr.Blocks = append(runErr.Blocks, be)
		}
	}
	return runErr
}
