package mask

import (
	"context"

	"github.com/sokcho-kim/docmask/format"
	"github.com/sokcho-kim/docmask/step"
)

// Span is a half-open rune offset range [Start, End) in a document's
// extracted text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of runes the span covers.
func (s Span) Len() int {
	return s.End - s.Start
}

// DirectEdit is an authoritative, user-confirmed rewrite. Direct edits are
// applied unconditionally, in the order given, each against the document
// produced by the previous one.
type DirectEdit struct {
	Span        Span   `json:"span"`
	Replacement string `json:"replacement"`
}

// ToggleMask is an optional masking instruction. Before application the span
// is checked against the current document text; masks whose expected text no
// longer matches are dropped rather than applied.
type ToggleMask struct {
	Span   Span   `json:"span"`
	Text   string `json:"text"`
	Symbol string `json:"symbol"`
}

// Replacement is a single concrete rewrite handed to an Editor.
type Replacement struct {
	Span Span   `json:"span"`
	Text string `json:"text"`
}

// Rect is a bounding box in page coordinates.
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// CoordinateHit is one verified on-document location for a pattern.
type CoordinateHit struct {
	Page int    `json:"page"`
	BBox Rect   `json:"bbox"`
	Text string `json:"text"`
}

// MaskingMap associates pattern text with every location it was found at. A
// key present with a non-empty hit slice means the pattern is confirmed in
// the current document state; absent or empty means not locatable.
type MaskingMap map[string][]CoordinateHit

// Result is the terminal artifact of a workflow run. Document holds the
// normalized, unmasked bytes; applying masks is a separate operation.
type Result struct {
	Document   Document
	Patterns   map[Category][]string
	MaskingMap MaskingMap
	Steps      []step.Record
}

// Converter normalizes a source-format document to PDF bytes. A zero-length
// result is never valid on success.
type Converter interface {
	Convert(ctx context.Context, b []byte, src format.Tag) ([]byte, error)
}

// Extractor renders a normalized document to plain text.
type Extractor interface {
	Extract(ctx context.Context, b []byte) (string, error)
}

// Classifier proposes candidate sensitive text from extracted text, keyed by
// category. Categories with no candidates are omitted from the map.
type Classifier interface {
	Classify(ctx context.Context, text string, categories []Category) (map[Category][]string, error)
}

// Locator finds every occurrence of the candidate texts in a document and
// returns the unchanged bytes alongside the masking map. Locating never
// mutates the document.
type Locator interface {
	Locate(ctx context.Context, b []byte, candidates map[Category][]string) ([]byte, MaskingMap, error)
}

// Editor rewrites document content at the given spans.
type Editor interface {
	Apply(ctx context.Context, b []byte, repls []Replacement) ([]byte, error)
}
