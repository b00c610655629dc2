// Package report aggregates verification results into a Summary and renders
// it for people (text) and machines (JSON lines).
package report

import (
	"sort"

	"github.com/harrison/snipcheck/internal/models"
)

// Build aggregates results into a Summary. The input order does not matter:
// results and failures come out sorted by block ordinal, so identical input
// always yields an identical Summary.
func Build(results []models.VerificationResult) models.Summary {
	sorted := make([]models.VerificationResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Block.Index < sorted[j].Block.Index })

	summary := models.Summary{
		Total:    len(sorted),
		Counts:   make(map[models.Status]int, len(models.Statuses)),
		Failures: []models.Failure{},
		Results:  sorted,
	}
	for _, status := range models.Statuses {
		summary.Counts[status] = 0
	}

	for _, r := range sorted {
		summary.Counts[r.Status]++
		if r.Status != models.StatusFailed {
			continue
		}
		summary.Failures = append(summary.Failures, models.Failure{
			Section:    r.Block.SectionTitle(),
			Index:      r.Block.Index,
			Line:       r.Block.Line,
			Tag:        r.Block.Tag,
			Kind:       r.Kind,
			Diagnostic: r.Diagnostic,
		})
	}

	return summary
}

// ExitCode maps a summary to the process exit code: 0 when nothing failed,
// 1 otherwise.
func ExitCode(s models.Summary) int {
	if s.OK() {
		return 0
	}
	return 1
}
