package parser

import (
	"sort"

	"github.com/harrison/snipcheck/internal/models"
)

// Classification groups code blocks by normalized language tag.
type Classification struct {
	groups map[string][]models.CodeBlock
	order  []string
}

// Classify groups blocks by case-insensitive tag, keeping document order
// within each group.
func Classify(blocks []models.CodeBlock) *Classification {
	c := &Classification{groups: make(map[string][]models.CodeBlock)}
	for _, b := range blocks {
		key := models.NormalizeTag(b.Tag)
		if _, ok := c.groups[key]; !ok {
			c.order = append(c.order, key)
		}
		c.groups[key] = append(c.groups[key], b)
	}
	return c
}

// Tags returns group keys in order of first appearance.
func (c *Classification) Tags() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Blocks returns the blocks for tag (case-insensitive).
func (c *Classification) Blocks(tag string) []models.CodeBlock {
	return c.groups[models.NormalizeTag(tag)]
}

// Groups returns a copy of the tag -> blocks mapping.
func (c *Classification) Groups() map[string][]models.CodeBlock {
	out := make(map[string][]models.CodeBlock, len(c.groups))
	for k, v := range c.groups {
		out[k] = append([]models.CodeBlock(nil), v...)
	}
	return out
}

// Len returns the total number of classified blocks.
func (c *Classification) Len() int {
	n := 0
	for _, v := range c.groups {
		n += len(v)
	}
	return n
}

// Flatten returns every block in document order.
func (c *Classification) Flatten() []models.CodeBlock {
	all := make([]models.CodeBlock, 0, c.Len())
	for _, key := range c.order {
		all = append(all, c.groups[key]...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Index < all[j].Index })
	return all
}
