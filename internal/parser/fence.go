package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/snipcheck/internal/models"
)

// ErrMalformedDocument indicates the document cannot be split into code blocks.
var ErrMalformedDocument = errors.New("malformed document")

const fenceMarker = "```"

// MalformedDocumentError reports an opening fence with no matching close.
type MalformedDocumentError struct {
	Offset int    // Byte offset of the unmatched opening fence
	Line   int    // 1-based line of the unmatched opening fence
	Tag    string // Language tag on the opener, if any
}

// Error implements the error interface.
func (e *MalformedDocumentError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("malformed document: unterminated %q code fence at line %d (offset %d)", e.Tag, e.Line, e.Offset)
	}
	return fmt.Sprintf("malformed document: unterminated code fence at line %d (offset %d)", e.Line, e.Offset)
}

// Is makes errors.Is(err, ErrMalformedDocument) match.
func (e *MalformedDocumentError) Is(target error) bool {
	return target == ErrMalformedDocument
}

// Extract returns the fenced code blocks of text in document order.
// Blocks carry no section; use ExtractDocument for section ownership.
func Extract(text string) ([]models.CodeBlock, error) {
	return scanFences(text, 0)
}

// scanFences walks text line by line starting at byte offset start.
// The first fence line after an opener closes it; backticks inside a
// snippet are not escaped and nested fences are not recognised.
func scanFences(text string, start int) ([]models.CodeBlock, error) {
	var blocks []models.CodeBlock

	var (
		open       bool
		openOffset int
		openLine   int
		openTag    string
		body       []string
	)

	offset := 0
	lineNo := 0
	for offset < len(text) {
		lineNo++
		end := strings.IndexByte(text[offset:], '\n')
		var line string
		next := len(text)
		if end >= 0 {
			line = text[offset : offset+end]
			next = offset + end + 1
		} else {
			line = text[offset:]
		}
		line = strings.TrimSuffix(line, "\r")

		if offset < start {
			offset = next
			continue
		}

		info, isFence := fenceInfo(line)
		switch {
		case isFence && !open:
			open = true
			openOffset = offset
			openLine = lineNo
			openTag = languageTag(info)
			body = body[:0]
		case isFence && open:
			blocks = append(blocks, models.CodeBlock{
				Tag:    openTag,
				Text:   strings.Join(body, "\n"),
				Index:  len(blocks),
				Offset: openOffset,
				End:    next,
				Line:   openLine,
			})
			open = false
		case open:
			body = append(body, line)
		}

		offset = next
	}

	if open {
		return nil, &MalformedDocumentError{Offset: openOffset, Line: openLine, Tag: openTag}
	}
	return blocks, nil
}

// fenceInfo reports whether line is a fence line and returns the text after
// the backtick run. Up to three leading spaces are allowed. An info string
// containing a backtick makes the line an inline code span, not a fence.
func fenceInfo(line string) (string, bool) {
	indent := 0
	for indent < len(line) && indent < 4 && line[indent] == ' ' {
		indent++
	}
	if indent > 3 {
		return "", false
	}
	rest := line[indent:]
	if !strings.HasPrefix(rest, fenceMarker) {
		return "", false
	}
	info := strings.TrimLeft(rest, "`")
	if strings.Contains(info, "`") {
		return "", false
	}
	return info, true
}

// languageTag returns the first word of a fence info string.
// Pandoc-style attributes such as {.python} are reduced to the bare name.
func languageTag(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	tag := fields[0]
	if strings.HasPrefix(tag, "{") {
		tag = strings.Trim(tag, "{}")
		tag = strings.TrimPrefix(tag, ".")
	}
	return tag
}
