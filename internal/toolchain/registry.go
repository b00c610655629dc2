// Package toolchain maps language tags to external syntax-check commands and
// runs snippets through them.
package toolchain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/harrison/snipcheck/internal/models"
)

// FilePlaceholder in a command template is replaced by the path of a
// temporary file holding the snippet. Without it the snippet goes to stdin.
const FilePlaceholder = "{file}"

// ErrInvalidCommand indicates a toolchain command template cannot be used.
var ErrInvalidCommand = errors.New("invalid toolchain command")

// DefaultCommands returns the built-in registry entries.
func DefaultCommands() map[string]string {
	return map[string]string{
		"c":      "gcc -fsyntax-only -xc -",
		"cpp":    "g++ -fsyntax-only -xc++ -",
		"c++":    "g++ -fsyntax-only -xc++ -",
		"python": "python3 -m py_compile {file}",
		"py":     "python3 -m py_compile {file}",
		"go":     "gofmt -e -l {file}",
		"sh":     "sh -n {file}",
		"bash":   "bash -n {file}",
		"json":   "python3 -m json.tool {file}",
	}
}

// Registry maps normalized language tags to command templates.
// A Registry is immutable; With and Without return modified copies.
type Registry struct {
	commands map[string]string
}

// NewRegistry builds a registry from tag -> command pairs.
// Tags are normalized; blank commands are dropped.
func NewRegistry(commands map[string]string) *Registry {
	r := &Registry{commands: make(map[string]string, len(commands))}
	for tag, cmd := range commands {
		if strings.TrimSpace(cmd) == "" {
			continue
		}
		r.commands[models.NormalizeTag(tag)] = cmd
	}
	return r
}

// Lookup returns the command template for tag (case-insensitive).
func (r *Registry) Lookup(tag string) (string, bool) {
	if r == nil {
		return "", false
	}
	cmd, ok := r.commands[models.NormalizeTag(tag)]
	return cmd, ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	if r == nil {
		return nil
	}
	tags := make([]string, 0, len(r.commands))
	for tag := range r.commands {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Len returns the number of registered tags.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.commands)
}

// With returns a copy of r where overrides replace or add entries.
// An override with an empty command removes the tag.
func (r *Registry) With(overrides map[string]string) *Registry {
	out := r.clone()
	for tag, cmd := range overrides {
		key := models.NormalizeTag(tag)
		if strings.TrimSpace(cmd) == "" {
			delete(out.commands, key)
			continue
		}
		out.commands[key] = cmd
	}
	return out
}

// Without returns a copy of r with the given tags removed.
func (r *Registry) Without(tags []string) *Registry {
	out := r.clone()
	for _, tag := range tags {
		delete(out.commands, models.NormalizeTag(tag))
	}
	return out
}

func (r *Registry) clone() *Registry {
	out := &Registry{commands: make(map[string]string)}
	if r != nil {
		for k, v := range r.commands {
			out.commands[k] = v
		}
	}
	return out
}

// Validate checks that every registered template can be split into argv.
func (r *Registry) Validate() error {
	for _, tag := range r.Tags() {
		if _, err := ParseCommand(r.commands[tag]); err != nil {
			return fmt.Errorf("toolchain %q: %w", tag, err)
		}
	}
	return nil
}

// Command is a parsed command template.
type Command struct {
	Argv     []string
	UsesFile bool // Template contains FilePlaceholder
}

// ParseCommand splits a template using shell quoting rules.
func ParseCommand(template string) (Command, error) {
	argv, err := shlex.Split(template)
	if err != nil {
		return Command{}, fmt.Errorf("%w %q: %v", ErrInvalidCommand, template, err)
	}
	if len(argv) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}
	cmd := Command{Argv: argv}
	for _, arg := range argv {
		if strings.Contains(arg, FilePlaceholder) {
			cmd.UsesFile = true
			break
		}
	}
	return cmd, nil
}

// Expand returns argv with FilePlaceholder replaced by path.
func (c Command) Expand(path string) []string {
	out := make([]string, len(c.Argv))
	for i, arg := range c.Argv {
		out[i] = strings.ReplaceAll(arg, FilePlaceholder, path)
	}
	return out
}

// FileExtension returns the source file extension used for tag.
func FileExtension(tag string) string {
	switch models.NormalizeTag(tag) {
	case "c", "h":
		return ".c"
	case "cpp", "c++", "cc", "cxx", "hpp":
		return ".cpp"
	case "python", "py", "python3":
		return ".py"
	case "go", "golang":
		return ".go"
	case "sh", "bash", "shell", "zsh":
		return ".sh"
	case "javascript", "js":
		return ".js"
	case "typescript", "ts":
		return ".ts"
	case "rust", "rs":
		return ".rs"
	case "ruby", "rb":
		return ".rb"
	case "json":
		return ".json"
	case "yaml", "yml":
		return ".yaml"
	}

	var b strings.Builder
	for _, r := range models.NormalizeTag(tag) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ".txt"
	}
	return "." + b.String()
}
