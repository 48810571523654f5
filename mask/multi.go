package mask

import (
	"context"
)

var _ Classifier = &Multi{}

// Multi fans one classification request out to several classifiers and
// merges their candidates per category, deduplicating while keeping the
// order hits arrive in. Earlier classifiers win ties. Any classifier failure
// fails the whole call.
type Multi struct {
	classifiers []Classifier
}

// NewMulti layers classifiers. Nil entries are skipped.
func NewMulti(classifiers ...Classifier) *Multi {
	m := &Multi{}
	for _, c := range classifiers {
		if c != nil {
			m.classifiers = append(m.classifiers, c)
		}
	}
	return m
}

func (m *Multi) Classify(ctx context.Context, text string, categories []Category) (map[Category][]string, error) {
	merged := make(map[Category][]string)
	seen := make(map[Category]map[string]bool)

	for _, c := range m.classifiers {
		out, err := c.Classify(ctx, text, categories)
		if err != nil {
			return nil, err
		}
		for cat, texts := range out {
			if seen[cat] == nil {
				seen[cat] = make(map[string]bool)
			}
			for _, t := range texts {
				if seen[cat][t] {
					continue
				}
				seen[cat][t] = true
				merged[cat] = append(merged[cat], t)
			}
		}
	}
	return merged, nil
}
