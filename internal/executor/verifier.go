package executor

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harrison/snipcheck/internal/models"
	"github.com/harrison/snipcheck/internal/parser"
	"github.com/harrison/snipcheck/internal/toolchain"
)

// Logger receives verification progress. Implementations must be thread-safe.
type Logger interface {
	LogBlockStart(block models.CodeBlock, command string)
	LogBlockResult(result models.VerificationResult)
	LogDebug(message string)
}

// Verifier runs code blocks through their toolchains with bounded parallelism.
type Verifier struct {
	checker      toolchain.Checker
	logger       Logger
	workers      int           // Maximum concurrent checker invocations
	timeout      time.Duration // Whole-run limit, 0 = none
	blockTimeout time.Duration // Per-invocation limit, 0 = none
}

// NewVerifier constructs a sequential Verifier with no timeouts.
// The logger parameter is optional and can be nil to disable logging.
func NewVerifier(checker toolchain.Checker, logger Logger) *Verifier {
	return &Verifier{
		checker: checker,
		logger:  logger,
		workers: 1,
	}
}

// NewVerifierWithConfig constructs a Verifier with worker and timeout settings.
// workers <= 0 means sequential.
func NewVerifierWithConfig(checker toolchain.Checker, logger Logger, workers int, timeout, blockTimeout time.Duration) *Verifier {
	v := NewVerifier(checker, logger)
	if workers > 0 {
		v.workers = workers
	}
	v.timeout = timeout
	v.blockTimeout = blockTimeout
	return v
}

type job struct {
	block      models.CodeBlock
	command    string
	registered bool
}

// Verify checks blocks that share one language tag.
// Every block yields exactly one result; results are in document order.
func (v *Verifier) Verify(ctx context.Context, tag string, blocks []models.CodeBlock, registry *toolchain.Registry) []models.VerificationResult {
	command, ok := lookupChecked(registry, tag)
	jobs := make([]job, 0, len(blocks))
	for _, b := range blocks {
		jobs = append(jobs, job{block: b, command: command, registered: ok})
	}
	return v.run(ctx, jobs)
}

// VerifyAll checks every classified block under one shared worker pool and
// one shared timeout.
func (v *Verifier) VerifyAll(ctx context.Context, c *parser.Classification, registry *toolchain.Registry) []models.VerificationResult {
	var jobs []job
	for _, tag := range c.Tags() {
		command, ok := lookupChecked(registry, tag)
		for _, b := range c.Blocks(tag) {
			jobs = append(jobs, job{block: b, command: command, registered: ok})
		}
	}
	// Dispatch in document order so sequential runs check top to bottom.
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].block.Index < jobs[j].block.Index })
	return v.run(ctx, jobs)
}

// lookupChecked resolves the command for tag. Untagged blocks are never
// checked, whatever the registry holds.
func lookupChecked(registry *toolchain.Registry, tag string) (string, bool) {
	if models.NormalizeTag(tag) == models.UntaggedKey {
		return "", false
	}
	return registry.Lookup(tag)
}

func (v *Verifier) run(ctx context.Context, jobs []job) []models.VerificationResult {
	if len(jobs) == 0 {
		return []models.VerificationResult{}
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	workers := v.workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	queue := make(chan job)
	sink := make(chan models.VerificationResult, len(jobs))

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for j := range queue {
				sink <- v.checkOne(ctx, j)
			}
			return nil
		})
	}

	go func() {
		defer close(sink)
		for _, j := range jobs {
			if !j.registered {
				sink <- skippedResult(j.block)
				continue
			}
			select {
			case queue <- j:
			case <-ctx.Done():
				sink <- v.interruptedResult(ctx, j, 0)
			}
		}
		close(queue)
		_ = g.Wait()
	}()

	results := make([]models.VerificationResult, 0, len(jobs))
	for r := range sink {
		if v.logger != nil {
			v.logger.LogBlockResult(r)
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Block.Index < results[j].Block.Index })
	return results
}

func (v *Verifier) checkOne(ctx context.Context, j job) models.VerificationResult {
	if ctx.Err() != nil {
		return v.interruptedResult(ctx, j, 0)
	}

	if v.logger != nil {
		v.logger.LogBlockStart(j.block, j.command)
	}

	checkCtx := ctx
	if v.blockTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, v.blockTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome := v.checker.Check(checkCtx, j.block.Tag, j.command, j.block.Text)
	duration := time.Since(start)

	if !outcome.Passed && outcome.Kind == models.FailureTimeout {
		if ctx.Err() != nil {
			return v.interruptedResult(ctx, j, duration)
		}
		if checkCtx.Err() != nil {
			outcome.Diagnostic = (&TimeoutError{Limit: v.blockTimeout}).Error()
		}
	}

	return resultFromOutcome(j, outcome, duration)
}

// interruptedResult records a block stopped or never started because the
// run's context ended.
func (v *Verifier) interruptedResult(ctx context.Context, j job, duration time.Duration) models.VerificationResult {
	te := &TimeoutError{Limit: v.timeout}
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		te = &TimeoutError{Cancelled: true}
	}
	return models.VerificationResult{
		Block:      j.block,
		Status:     models.StatusFailed,
		Kind:       models.FailureTimeout,
		Diagnostic: te.Error(),
		Command:    j.command,
		Duration:   duration,
	}
}

func skippedResult(b models.CodeBlock) models.VerificationResult {
	return models.VerificationResult{
		Block:  b,
		Status: models.StatusSkipped,
	}
}

func resultFromOutcome(j job, o toolchain.Outcome, duration time.Duration) models.VerificationResult {
	r := models.VerificationResult{
		Block:    j.block,
		Command:  j.command,
		Duration: duration,
	}
	if o.Passed {
		r.Status = models.StatusPassed
		return r
	}
	r.Status = models.StatusFailed
	r.Kind = o.Kind
	if r.Kind == models.FailureNone {
		r.Kind = models.FailureSyntax
	}
	r.Diagnostic = o.Diagnostic
	if r.Diagnostic == "" {
		r.Diagnostic = string(r.Kind) + " failure"
	}
	return r
}
