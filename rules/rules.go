package rules

import (
	"context"
	"fmt"
	"regexp"

	"github.com/hashicorp/go-hclog"
	"github.com/sokcho-kim/docmask/mask"
)

// Rule pairs a compiled matcher with the category its hits belong to.
type Rule struct {
	Category mask.Category `json:"category"`
	Name     string        `json:"name"`
	matcher  *regexp.Regexp
}

// New takes the matcher as a string and returns a compiled and ready-to-use rule.
// Name is optional and can be left empty.
func New(category mask.Category, name, matcher string) (*Rule, error) {
	if !mask.ValidCategory(category) {
		return nil, fmt.Errorf("unknown category for rule, category=%s, name=%s", category, name)
	}
	re, err := regexp.Compile(matcher)
	if err != nil {
		return nil, fmt.Errorf("unable to compile rule matcher, name=%s: %w", name, err)
	}
	if name == "" {
		name = string(category)
	}
	return &Rule{Category: category, Name: name, matcher: re}, nil
}

type Config struct {
	// Rules to match against. Defaults() is used when empty.
	Rules []*Rule

	Logger hclog.Logger
}

// Classifier finds category patterns with regular expressions. It covers the
// pattern-friendly categories; free-form ones like names and addresses need a
// model-backed classifier alongside it.
type Classifier struct {
	rules []*Rule
	l     hclog.Logger
}

var _ mask.Classifier = &Classifier{}

func NewClassifier(cfg Config) (*Classifier, error) {
	rules := cfg.Rules
	if len(rules) == 0 {
		var err error
		rules, err = Defaults()
		if err != nil {
			return nil, err
		}
	}
	l := cfg.Logger
	if l == nil {
		l = hclog.Default()
	}
	return &Classifier{rules: rules, l: l}, nil
}

// Classify runs every rule for the requested categories over text, returning
// matches keyed by category. Matches are deduplicated per category, keeping
// first-occurrence order. Categories without matches are left out.
func (c *Classifier) Classify(ctx context.Context, text string, categories []mask.Category) (map[mask.Category][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	requested := make(map[mask.Category]bool, len(categories))
	for _, cat := range categories {
		requested[cat] = true
	}

	found := make(map[mask.Category][]string)
	for _, rule := range c.rules {
		if !requested[rule.Category] {
			continue
		}
		hits := rule.matcher.FindAllString(text, -1)
		if len(hits) == 0 {
			continue
		}
		c.l.Debug("rule matched", "rule", rule.Name, "category", rule.Category, "count", len(hits))
		found[rule.Category] = appendNew(found[rule.Category], hits)
	}
	return found, nil
}

// appendNew appends the members of hits not already present in dst.
func appendNew(dst, hits []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, h := range dst {
		seen[h] = true
	}
	for _, h := range hits {
		if seen[h] {
			continue
		}
		seen[h] = true
		dst = append(dst, h)
	}
	return dst
}

// Defaults returns the built-in rules for the pattern-friendly categories.
func Defaults() ([]*Rule, error) {
	defaults := []struct {
		category mask.Category
		name     string
		matcher  string
	}{
		{
			category: mask.CategoryRRN,
			name:     "resident-registration-number",
			matcher:  `\b\d{6}-[1-8]\d{6}\b`,
		},
		{
			category: mask.CategoryPhone,
			name:     "mobile-phone-number",
			matcher:  `\b01[016789]-\d{3,4}-\d{4}\b`,
		},
		{
			category: mask.CategoryEmail,
			name:     "email-address",
			matcher:  `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`,
		},
	}

	rules := make([]*Rule, 0, len(defaults))
	for _, d := range defaults {
		rule, err := New(d.category, d.name, d.matcher)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
