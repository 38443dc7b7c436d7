package chat

import "strings"

// KeywordRule answers any query containing one of its keywords.
type KeywordRule struct {
	Keywords []string `yaml:"keywords"`
	Answer   string   `yaml:"answer"`
}

// MatchKind tags the result of a keyword lookup.
type MatchKind int

const (
	MatchDefault MatchKind = iota
	MatchKeyword
)

// Match is either Matched(keyword) or Default.
type Match struct {
	Kind    MatchKind
	Keyword string
	Answer  string
}

// Matched reports whether a rule fired.
func (m Match) Matched() bool {
	return m.Kind == MatchKeyword
}

// KeywordTable is the ordered personality fallback used when the chat service
// is not consulted.
type KeywordTable struct {
	rules    []KeywordRule
	fallback string
}

// NewKeywordTable builds a table from ordered rules and a default answer.
func NewKeywordTable(rules []KeywordRule, fallback string) KeywordTable {
	lowered := make([]KeywordRule, len(rules))
	for i, r := range rules {
		kws := make([]string, len(r.Keywords))
		for j, kw := range r.Keywords {
			kws[j] = strings.ToLower(kw)
		}
		lowered[i] = KeywordRule{Keywords: kws, Answer: r.Answer}
	}
	return KeywordTable{rules: lowered, fallback: fallback}
}

// KeywordTable builds the fallback table from the catalog.
func (c Catalog) KeywordTable() KeywordTable {
	return NewKeywordTable(c.Keywords, c.Default)
}

// Match returns the first rule with a keyword contained in the lowercased
// query, or Default.
func (t KeywordTable) Match(query string) Match {
	q := strings.ToLower(query)
	for _, rule := range t.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(q, kw) {
				return Match{Kind: MatchKeyword, Keyword: kw, Answer: rule.Answer}
			}
		}
	}
	return Match{Kind: MatchDefault, Answer: t.fallback}
}
