package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/harrison/snipcheck/internal/models"
)

// Record is one line of the machine-readable report.
type Record struct {
	Status     models.Status      `json:"status"`
	Section    string             `json:"section"`
	Index      int                `json:"index"`
	Line       int                `json:"line"`
	Tag        string             `json:"tag"`
	Kind       models.FailureKind `json:"kind,omitempty"`
	Diagnostic string             `json:"diagnostic"`
}

// Records converts a summary's results into report records in document order.
func Records(s models.Summary) []Record {
	records := make([]Record, 0, len(s.Results))
	for _, r := range s.Results {
		records = append(records, Record{
			Status:     r.Status,
			Section:    r.Block.SectionTitle(),
			Index:      r.Block.Index,
			Line:       r.Block.Line,
			Tag:        r.Block.Tag,
			Kind:       r.Kind,
			Diagnostic: r.Diagnostic,
		})
	}
	return records
}

// WriteJSONLines writes one JSON record per block.
func WriteJSONLines(w io.Writer, s models.Summary) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, rec := range Records(s) {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", rec.Index, err)
		}
	}
	return bw.Flush()
}
