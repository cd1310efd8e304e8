// Package catalog holds the built-in option set: named prompts plus optional
// reference images, loaded once at startup and read-only afterwards.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed default_options.yaml
var defaultOptions []byte

var ErrOptionNotFound = errors.New("option not found")

// Option is a resolved catalog entry. References holds the bytes loaded from
// ReferencePaths, in declared order, skipping files that could not be read.
// Callers must treat both slices as read-only.
type Option struct {
	Key            string
	Title          string
	Prompt         string
	ReferencePaths []string
	References     [][]byte
}

// Definition is one declared option as it appears in the catalog file.
type Definition struct {
	Key        string   `yaml:"key"`
	Title      string   `yaml:"title"`
	Prompt     string   `yaml:"prompt"`
	References []string `yaml:"references"`
}

type fileFormat struct {
	Preamble string       `yaml:"preamble"`
	Options  []Definition `yaml:"options"`
	Styles   []Definition `yaml:"styles"`
	Subjects []Definition `yaml:"subjects"`
}

type Catalog struct {
	options map[string]Option
	keys    []string
}

// LoadFile parses a catalog file. An empty path loads the embedded defaults.
// Relative reference paths are resolved against baseDir, or the file's own
// directory when baseDir is empty.
func LoadFile(path, baseDir string, logger zerolog.Logger) (*Catalog, error) {
	raw := defaultOptions
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		raw = b
		if baseDir == "" {
			baseDir = filepath.Dir(path)
		}
	}
	defs, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Load(defs, baseDir, logger), nil
}

// Parse expands a catalog document into definitions. Styles are emitted on
// their own and combined with every subject as "<style>_<subject>".
func Parse(raw []byte) ([]Definition, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	var defs []Definition
	defs = append(defs, f.Options...)
	for _, style := range f.Styles {
		defs = append(defs, style)
		for _, subject := range f.Subjects {
			defs = append(defs, Definition{
				Key:        style.Key + "_" + subject.Key,
				Title:      subject.Title,
				Prompt:     joinPrompt(style.Prompt, subject.Prompt),
				References: append(append([]string(nil), style.References...), subject.References...),
			})
		}
	}
	if f.Preamble != "" {
		for i := range defs {
			defs[i].Prompt = joinPrompt(f.Preamble, defs[i].Prompt)
		}
	}
	for _, d := range defs {
		if strings.TrimSpace(d.Key) == "" {
			return nil, errors.New("catalog: option without key")
		}
		if strings.TrimSpace(d.Prompt) == "" {
			return nil, fmt.Errorf("catalog: option %q has an empty prompt", d.Key)
		}
	}
	return defs, nil
}

// Load reads every declared reference image once. Missing or unreadable
// files are logged and skipped; they never fail the load. A later definition
// with a duplicate key replaces the earlier one but keeps its position.
func Load(defs []Definition, baseDir string, logger zerolog.Logger) *Catalog {
	c := &Catalog{options: make(map[string]Option, len(defs))}
	for _, d := range defs {
		opt := Option{
			Key:            strings.TrimSpace(d.Key),
			Title:          titleFor(d),
			Prompt:         strings.TrimSpace(d.Prompt),
			ReferencePaths: append([]string(nil), d.References...),
		}
		for _, ref := range d.References {
			path := ref
			if baseDir != "" && !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			b, err := os.ReadFile(path)
			if err != nil {
				logger.Warn().Err(err).Str("option", opt.Key).Str("path", path).Msg("catalog: reference image skipped")
				continue
			}
			opt.References = append(opt.References, b)
		}
		if _, exists := c.options[opt.Key]; !exists {
			c.keys = append(c.keys, opt.Key)
		}
		c.options[opt.Key] = opt
	}
	return c
}

func (c *Catalog) Resolve(key string) (Option, error) {
	if c == nil {
		return Option{}, ErrOptionNotFound
	}
	opt, ok := c.options[strings.TrimSpace(key)]
	if !ok {
		return Option{}, fmt.Errorf("%w: %q", ErrOptionNotFound, key)
	}
	return opt, nil
}

// Keys returns the option keys in declared order.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}

// titleFor falls back to a title cased key, "studio_doctor" -> "Studio Doctor".
func titleFor(d Definition) string {
	if t := strings.TrimSpace(d.Title); t != "" {
		return t
	}
	words := strings.ReplaceAll(strings.TrimSpace(d.Key), "_", " ")
	return cases.Title(language.English).String(words)
}

func joinPrompt(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
