package models

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeTag folds a language tag for case-insensitive comparison.
// Empty tags map to UntaggedKey. A Caser is not safe for concurrent use,
// so each call builds its own.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return UntaggedKey
	}
	return cases.Fold().String(tag)
}
