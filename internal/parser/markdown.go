package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/harrison/snipcheck/internal/models"
)

// MarkdownParser turns guide text into a Document.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// snipcheckFrontmatter is the optional snipcheck key in YAML frontmatter.
type snipcheckFrontmatter struct {
	Toolchains map[string]string `yaml:"toolchains"`
	Skip       []string          `yaml:"skip"`
}

func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

// Parse reads the whole document from r and extracts its sections and code blocks.
// An unterminated fence yields a *MalformedDocumentError.
func (p *MarkdownParser) Parse(r io.Reader, path string) (*models.Document, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	return p.ParseBytes(content, path)
}

// ParseBytes is Parse for content already in memory.
func (p *MarkdownParser) ParseBytes(content []byte, path string) (*models.Document, error) {
	doc := &models.Document{
		Path: path,
		Text: string(content),
	}

	frontmatter, bodyStart := extractFrontmatter(content)
	if frontmatter != nil {
		node, ok := frontmatterMapping(frontmatter)
		if !ok {
			// A leading "---" rule, not frontmatter
			bodyStart = 0
		} else if err := parseSnipcheckConfig(node, doc); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}

	blocks, err := scanFences(doc.Text, bodyStart)
	if err != nil {
		return nil, err
	}

	masked := maskBlocks(content, blocks)
	sections := p.extractSections(masked[bodyStart:], bodyStart)
	doc.Sections = dropFencedSections(sections, blocks)
	assignSections(blocks, doc.Sections)
	doc.Blocks = blocks

	return doc, nil
}

// ExtractDocument parses text with the default Markdown parser.
func ExtractDocument(text string) (*models.Document, error) {
	return NewMarkdownParser().ParseBytes([]byte(text), "")
}

// extractSections walks the goldmark AST and returns every "#" heading.
// base is added to offsets so they are relative to the full document.
func (p *MarkdownParser) extractSections(source []byte, base int) []models.Section {
	root := p.markdown.Parser().Parse(text.NewReader(source))

	var sections []models.Section
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := heading.Lines()
		if lines.Len() == 0 {
			// Empty "#" heading, nothing to name a section after
			return ast.WalkSkipChildren, nil
		}
		lineStart := lineStartOf(source, lines.At(0).Start)
		if !isATXHeadingLine(source[lineStart:]) {
			return ast.WalkSkipChildren, nil
		}
		sections = append(sections, models.Section{
			Title:  strings.TrimSpace(extractText(heading, source)),
			Level:  heading.Level,
			Offset: base + lineStart,
		})
		return ast.WalkSkipChildren, nil
	})

	return sections
}

// extractText collects the plain text of an inline subtree.
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			buf.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(node.Value)
		default:
			buf.WriteString(extractText(c, source))
		}
	}
	return buf.String()
}

func lineStartOf(source []byte, pos int) int {
	if i := bytes.LastIndexByte(source[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// isATXHeadingLine reports whether line starts with "#" after at most three spaces.
func isATXHeadingLine(line []byte) bool {
	trimmed := bytes.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return false
	}
	return len(trimmed) > 0 && trimmed[0] == '#'
}

// maskBlocks returns a copy of content with every code block blanked out,
// newlines kept, so goldmark sees the block boundaries the scanner found and
// offsets stay unchanged.
func maskBlocks(content []byte, blocks []models.CodeBlock) []byte {
	if len(blocks) == 0 {
		return content
	}
	masked := bytes.Clone(content)
	for _, b := range blocks {
		for i := b.Offset; i < b.End && i < len(masked); i++ {
			if masked[i] != '\n' {
				masked[i] = ' '
			}
		}
	}
	return masked
}

// dropFencedSections removes headings that fall inside a code block and
// numbers the remaining sections.
func dropFencedSections(sections []models.Section, blocks []models.CodeBlock) []models.Section {
	kept := sections[:0]
	for _, s := range sections {
		if !insideBlock(s.Offset, blocks) {
			kept = append(kept, s)
		}
	}
	for i := range kept {
		kept[i].Ordinal = i
	}
	return kept
}

func insideBlock(offset int, blocks []models.CodeBlock) bool {
	for _, b := range blocks {
		if offset >= b.Offset && offset < b.End {
			return true
		}
	}
	return false
}

// assignSections points each block at the last section that starts before it.
func assignSections(blocks []models.CodeBlock, sections []models.Section) {
	si := -1
	for i := range blocks {
		for si+1 < len(sections) && sections[si+1].Offset < blocks[i].Offset {
			si++
		}
		if si >= 0 {
			blocks[i].Section = &sections[si]
		}
	}
}

// extractFrontmatter returns the YAML frontmatter bytes (nil when absent)
// and the byte offset at which the document body starts.
func extractFrontmatter(content []byte) ([]byte, int) {
	firstEnd := bytes.IndexByte(content, '\n')
	if firstEnd < 0 || !bytes.Equal(bytes.TrimSpace(content[:firstEnd]), []byte("---")) {
		return nil, 0
	}

	offset := firstEnd + 1
	for offset < len(content) {
		end := bytes.IndexByte(content[offset:], '\n')
		next := len(content)
		line := content[offset:]
		if end >= 0 {
			line = content[offset : offset+end]
			next = offset + end + 1
		}
		if bytes.Equal(bytes.TrimSpace(line), []byte("---")) {
			return content[firstEnd+1 : offset], next
		}
		offset = next
	}

	// No closing delimiter found
	return nil, 0
}

// frontmatterMapping decodes frontmatter and reports whether it is a YAML
// mapping. Anything else means the "---" lines were horizontal rules.
func frontmatterMapping(frontmatter []byte) (*yaml.Node, bool) {
	var root yaml.Node
	if err := yaml.Unmarshal(frontmatter, &root); err != nil {
		return nil, false
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) != 1 || root.Content[0].Kind != yaml.MappingNode {
		return nil, false
	}
	return root.Content[0], true
}

// parseSnipcheckConfig reads the snipcheck key from frontmatter into doc.Options.
// Other frontmatter keys are ignored.
func parseSnipcheckConfig(frontmatter *yaml.Node, doc *models.Document) error {
	var fm struct {
		Snipcheck *snipcheckFrontmatter `yaml:"snipcheck"`
	}
	if err := frontmatter.Decode(&fm); err != nil {
		return err
	}
	if fm.Snipcheck == nil {
		return nil
	}
	doc.Options = models.DocumentOptions{
		Toolchains: fm.Snipcheck.Toolchains,
		Skip:       fm.Snipcheck.Skip,
	}
	return nil
}
