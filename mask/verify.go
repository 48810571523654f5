package mask

import (
	"context"

	"golang.org/x/text/unicode/norm"
)

// Confirm reduces candidates to the ones actually located on the document. A
// candidate survives iff it appears in mm with at least one coordinate.
// Candidate order and duplicates are preserved; categories with no surviving
// candidates are omitted from the result rather than kept empty.
//
// Classifiers can propose text that never literally occurs in the document
// (paraphrase, boundary mismatch). Only independently located matches are
// reported.
func Confirm(candidates map[Category][]string, mm MaskingMap) map[Category][]string {
	confirmed := make(map[Category][]string, len(candidates))
	for cat, texts := range candidates {
		var kept []string
		for _, t := range texts {
			if hits, ok := mm[t]; ok && len(hits) > 0 {
				kept = append(kept, t)
			}
		}
		if len(kept) > 0 {
			confirmed[cat] = kept
		}
	}
	return confirmed
}

// RevalidateToggles re-derives text from the document's current bytes and
// splits toggles into those whose span still carries the expected text and
// those gone stale. Must run after direct edits have been applied; direct
// edits shift offsets, and masking against stale offsets would hit unrelated
// text.
//
// Dropped toggles are informational, never an error. Both sides of the text
// comparison are NFC-normalized so representation differences alone cannot
// drop a mask.
func (e *Engine) RevalidateToggles(ctx context.Context, doc Document, toggles []ToggleMask) (valid []ToggleMask, dropped []ToggleMask, err error) {
	if len(toggles) == 0 {
		return nil, nil, nil
	}

	text, err := e.extract(ctx, doc)
	if err != nil {
		return nil, nil, err
	}
	runes := []rune(text)

	for _, tm := range toggles {
		got, ok := spanText(runes, tm.Span)
		if ok && tm.Text != "" && norm.NFC.String(got) == norm.NFC.String(tm.Text) {
			valid = append(valid, tm)
			continue
		}
		dropped = append(dropped, tm)
		e.l.Info("toggle mask no longer matches document, dropping",
			"span_start", tm.Span.Start, "span_end", tm.Span.End)
	}
	return valid, dropped, nil
}

// spanText slices a span out of the extracted runes, reporting whether the
// span still fits inside the text at all.
func spanText(runes []rune, s Span) (string, bool) {
	if s.Start < 0 || s.End > len(runes) || s.Start >= s.End {
		return "", false
	}
	return string(runes[s.Start:s.End]), true
}
