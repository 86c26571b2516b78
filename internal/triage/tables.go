// Package triage classifies support tickets with keyword heuristics:
// category, priority, sentiment, complexity and extracted details.
package triage

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
	"gopkg.in/yaml.v3"

	"builddesk/internal/domain"
)

//go:embed default_tables.yaml
var defaultTablesYAML []byte

type tablesFile struct {
	Categories []struct {
		Name   string `yaml:"name"`
		Groups []struct {
			Pattern string `yaml:"pattern"`
			Weight  int    `yaml:"weight"`
		} `yaml:"groups"`
	} `yaml:"categories"`
	Priority struct {
		Urgent []string `yaml:"urgent"`
		High   []string `yaml:"high"`
		Low    []string `yaml:"low"`
	} `yaml:"priority"`
	Sentiment struct {
		Frustrated []string `yaml:"frustrated"`
		Happy      []string `yaml:"happy"`
	} `yaml:"sentiment"`
	TechnicalTerms []string `yaml:"technical_terms"`
	Conjunctions   []string `yaml:"conjunctions"`
}

type keywordGroup struct {
	re     *regexp.Regexp
	weight int
}

// Tables holds the compiled keyword tables. A Tables value is built once by
// LoadTables and only read afterwards, so it is safe to share between
// goroutines.
type Tables struct {
	categoryGroups map[domain.Category][]keywordGroup

	urgent []*regexp.Regexp
	high   []*regexp.Regexp
	low    []*regexp.Regexp

	frustrated []*regexp.Regexp
	happy      []*regexp.Regexp

	technicalTerms    []string
	technicalMatcher  *ahocorasick.Matcher
	technicalPatterns []*regexp.Regexp // parallel to technicalTerms
	conjunctions     []*regexp.Regexp
}

// LoadTables reads keyword tables from path, or the built-in tables when
// path is empty.
func LoadTables(path string) (*Tables, error) {
	data := defaultTablesYAML
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read keyword tables: %w", err)
		}
		data = raw
	}
	return ParseTables(data)
}

// DefaultTables returns the built-in tables. It panics if they do not
// compile, which a test guards against.
func DefaultTables() *Tables {
	t, err := ParseTables(defaultTablesYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in keyword tables: %v", err))
	}
	return t
}

func ParseTables(data []byte) (*Tables, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse keyword tables yaml: %w", err)
	}

	t := &Tables{categoryGroups: make(map[domain.Category][]keywordGroup)}
	for _, c := range f.Categories {
		category := domain.Category(strings.TrimSpace(c.Name))
		if !category.Valid() {
			return nil, fmt.Errorf("keyword tables: unknown category %q", c.Name)
		}
		for _, g := range c.Groups {
			if g.Weight <= 0 {
				return nil, fmt.Errorf("keyword tables: category %s: weight must be positive, got %d", category, g.Weight)
			}
			re, err := regexp.Compile(g.Pattern)
			if err != nil {
				return nil, fmt.Errorf("keyword tables: category %s: %w", category, err)
			}
			t.categoryGroups[category] = append(t.categoryGroups[category], keywordGroup{re: re, weight: g.Weight})
		}
	}

	var err error
	if t.urgent, err = compilePhrases(f.Priority.Urgent); err != nil {
		return nil, err
	}
	if t.high, err = compilePhrases(f.Priority.High); err != nil {
		return nil, err
	}
	if t.low, err = compilePhrases(f.Priority.Low); err != nil {
		return nil, err
	}
	if t.frustrated, err = compilePhrases(f.Sentiment.Frustrated); err != nil {
		return nil, err
	}
	if t.happy, err = compilePhrases(f.Sentiment.Happy); err != nil {
		return nil, err
	}
	if t.conjunctions, err = compilePhrases(f.Conjunctions); err != nil {
		return nil, err
	}

	for _, term := range f.TechnicalTerms {
		term = normalizePhrase(term)
		if term == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(term) + `(?:s|es|ed|ing)?\b`)
		if err != nil {
			return nil, fmt.Errorf("keyword tables: technical term %q: %w", term, err)
		}
		t.technicalTerms = append(t.technicalTerms, term)
		t.technicalPatterns = append(t.technicalPatterns, re)
	}
	if len(t.technicalTerms) > 0 {
		t.technicalMatcher = ahocorasick.NewStringMatcher(t.technicalTerms)
	}
	return t, nil
}

// compilePhrases turns plain phrases into word-bounded patterns.
func compilePhrases(phrases []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = normalizePhrase(phrase)
		if phrase == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("keyword tables: phrase %q: %w", phrase, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func normalizePhrase(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
