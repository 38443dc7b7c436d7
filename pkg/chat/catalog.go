package chat

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed responses.yaml
var defaultCatalogYAML []byte

// Suggestion is a chip shown to the user together with its prewritten answer.
type Suggestion struct {
	Question string `yaml:"question"`
	Answer   string `yaml:"answer"`
}

// Catalog holds every piece of fixed copy the widget can answer with.
type Catalog struct {
	Intro       string        `yaml:"intro"`
	Placeholder string        `yaml:"placeholder"`
	Suggestions []Suggestion  `yaml:"suggestions"`
	Keywords    []KeywordRule `yaml:"keywords"`
	Default     string        `yaml:"default"`
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() Catalog {
	cat, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded responses.yaml is invalid: %v", err))
	}
	return cat
}

// LoadCatalog reads a catalog from path. An empty path yields the embedded one.
func LoadCatalog(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read responses file: %w", err)
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return cat, nil
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse responses: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// Validate rejects catalogs with duplicate or empty entries.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Suggestions))
	for i, s := range c.Suggestions {
		if s.Question == "" {
			return fmt.Errorf("suggestions[%d]: question is required", i)
		}
		if strings.TrimSpace(s.Answer) == "" {
			return fmt.Errorf("suggestions[%d]: answer is required", i)
		}
		if seen[s.Question] {
			return fmt.Errorf("suggestions[%d]: duplicate question %q", i, s.Question)
		}
		seen[s.Question] = true
	}
	for i, rule := range c.Keywords {
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("keywords[%d]: at least one keyword is required", i)
		}
		for _, kw := range rule.Keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("keywords[%d]: empty keyword", i)
			}
		}
		if strings.TrimSpace(rule.Answer) == "" {
			return fmt.Errorf("keywords[%d]: answer is required", i)
		}
	}
	if strings.TrimSpace(c.Default) == "" {
		return fmt.Errorf("default answer is required")
	}
	return nil
}

// Questions returns the suggestion chips in display order.
func (c Catalog) Questions() []string {
	out := make([]string, len(c.Suggestions))
	for i, s := range c.Suggestions {
		out[i] = s.Question
	}
	return out
}

// PrewrittenTable is an immutable exact-match lookup from query to answer.
type PrewrittenTable struct {
	answers map[string]string
}

// Table builds the exact-match table from the suggestions.
func (c Catalog) Table() PrewrittenTable {
	answers := make(map[string]string, len(c.Suggestions))
	for _, s := range c.Suggestions {
		answers[s.Question] = s.Answer
	}
	return PrewrittenTable{answers: answers}
}

// Lookup returns the canned answer for query. Matching is exact and
// case-sensitive.
func (t PrewrittenTable) Lookup(query string) (string, bool) {
	answer, ok := t.answers[query]
	return answer, ok
}

// Len returns the number of canned answers.
func (t PrewrittenTable) Len() int {
	return len(t.answers)
}
