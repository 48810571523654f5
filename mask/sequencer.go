package mask

import (
	"context"
	"sort"
	"strings"
)

// ApplyEdits rewrites a document with the given edits. Ordering is fixed:
// direct edits are applied first, one at a time and in the order given, with
// each edit's span expressed against the document produced by the previous
// one. Toggle masks are then revalidated against the post-edit document and
// only the surviving set is applied, as one batch.
//
// With both lists empty the input document is returned as-is. On any failure
// the original input document is returned untouched alongside the error; a
// partially edited document is never observable.
func (e *Engine) ApplyEdits(ctx context.Context, doc Document, directs []DirectEdit, toggles []ToggleMask) (Document, error) {
	if len(directs) == 0 && len(toggles) == 0 {
		return doc, nil
	}
	if e.editor == nil {
		return doc, EditError{stage: "direct", err: errNoEditor}
	}

	current := doc
	for _, de := range directs {
		next, err := e.applyOne(ctx, current, Replacement{Span: de.Span, Text: de.Replacement})
		if err != nil {
			return doc, EditError{stage: "direct", err: err}
		}
		current = next
	}

	if len(toggles) > 0 {
		valid, dropped, err := e.RevalidateToggles(ctx, current, toggles)
		if err != nil {
			return doc, err
		}
		if len(dropped) > 0 {
			e.l.Info("stale toggle masks dropped", "dropped", len(dropped), "kept", len(valid))
		}
		if len(valid) > 0 {
			repls := make([]Replacement, 0, len(valid))
			for _, tm := range valid {
				repls = append(repls, Replacement{Span: tm.Span, Text: maskText(tm)})
			}
			// Back to front, so applying one replacement cannot shift the
			// spans of those still pending.
			sort.Slice(repls, func(i, j int) bool {
				return repls[i].Span.Start > repls[j].Span.Start
			})
			next, err := e.applyBatch(ctx, current, repls)
			if err != nil {
				return doc, EditError{stage: "toggle", err: err}
			}
			current = next
		}
	}

	return current, nil
}

func (e *Engine) applyOne(ctx context.Context, doc Document, repl Replacement) (Document, error) {
	return e.applyBatch(ctx, doc, []Replacement{repl})
}

func (e *Engine) applyBatch(ctx context.Context, doc Document, repls []Replacement) (Document, error) {
	runCtx, cancel := e.stepContext(ctx)
	defer cancel()

	b, err := e.editor.Apply(runCtx, doc.Bytes(), repls)
	if err != nil {
		return doc, err
	}
	return NewDocument(b, doc.Format()), nil
}

// maskText builds the replacement for a toggle mask: its symbol repeated
// once per masked rune.
func maskText(tm ToggleMask) string {
	symbol := tm.Symbol
	if symbol == "" {
		symbol = DefaultSymbol
	}
	n := tm.Span.Len()
	if n < 1 {
		n = 1
	}
	return strings.Repeat(symbol, n)
}
