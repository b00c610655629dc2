// Package parser extracts sections and fenced code blocks from Markdown guides
// and groups the blocks by language tag.
package parser

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/snipcheck/internal/models"
)

// StdinPath is the document path that selects standard input.
const StdinPath = "-"

// Format represents the format of a document
type Format int

const (
	// FormatUnknown represents an unrecognised file extension
	FormatUnknown Format = iota
	// FormatMarkdown represents a Markdown (.md, .markdown) document
	FormatMarkdown
	// FormatText represents plain text that may still contain fences (.txt)
	FormatText
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatText:
		return "text"
	default:
		return "unknown"
	}
}

// DetectFormat detects the document format based on file extension
// Supported extensions:
//   - .md, .markdown, .mdx -> FormatMarkdown
//   - .txt -> FormatText
//   - all others -> FormatUnknown
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown", ".mdx":
		return FormatMarkdown
	case ".txt":
		return FormatText
	default:
		return FormatUnknown
	}
}

// ParseFile loads the document at path, or standard input when path is "-".
// Unknown extensions are parsed as Markdown; the document is only ever
// scanned for fences and headings, both of which plain text can carry.
func ParseFile(path string) (*models.Document, error) {
	return ParseFileFrom(path, os.Stdin)
}

// ParseFileFrom is ParseFile with an explicit reader for "-".
func ParseFileFrom(path string, stdin io.Reader) (*models.Document, error) {
	p := NewMarkdownParser()

	if path == StdinPath {
		return p.Parse(stdin, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a document file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	return p.Parse(file, absPath)
}
