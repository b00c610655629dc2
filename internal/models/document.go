package models

// UntaggedKey is the reserved classification key for blocks with no language tag.
const UntaggedKey = "untagged"

// Document is a loaded guide. Text is never modified after loading.
type Document struct {
	Path     string    // Source path ("-" for stdin)
	Text     string    // Full document text
	Sections []Section // Headings in document order
	Blocks   []CodeBlock
	Options  DocumentOptions // Settings declared in frontmatter
}

// DocumentOptions holds per-document settings from the snipcheck frontmatter key.
type DocumentOptions struct {
	Toolchains map[string]string // Extra or overriding toolchains (tag -> command)
	Skip       []string          // Tags that are never verified
}

// Section is a heading and its position within the document.
type Section struct {
	Title   string // Heading text with inline markup removed
	Level   int    // Heading level (1 for "#")
	Offset  int    // Byte offset of the heading line
	Ordinal int    // Position among the document's headings
}

// CodeBlock is one fenced snippet.
type CodeBlock struct {
	Tag     string   // Language tag as written on the opening fence (may be empty)
	Text    string   // Snippet body without the fence lines
	Section *Section // Owning section, nil for blocks before the first heading
	Index   int      // Ordinal within the document, starting at zero
	Offset  int      // Byte offset of the opening fence line
	End     int      // Byte offset just past the closing fence line
	Line    int      // 1-based line number of the opening fence
}

// SectionTitle returns the owning section's title, or "" when the block has none.
func (b CodeBlock) SectionTitle() string {
	if b.Section == nil {
		return ""
	}
	return b.Section.Title
}
