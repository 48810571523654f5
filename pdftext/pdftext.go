package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"
)

// glyphRun is one content-stream text item with its page geometry and the
// byte range it occupies in the assembled page text.
type glyphRun struct {
	start, end int
	x, y, w    float64
	size       float64
}

func openReader(b []byte) (*pdf.Reader, error) {
	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	return r, nil
}

// pageGlyphs assembles a page's text in content order and the glyph runs
// backing it. Each glyph is NFC-normalized as it lands so offsets line up
// with normalized search terms.
func pageGlyphs(p pdf.Page) (string, []glyphRun) {
	content := p.Content()
	var sb strings.Builder
	runs := make([]glyphRun, 0, len(content.Text))
	for _, t := range content.Text {
		s := norm.NFC.String(t.S)
		if s == "" {
			continue
		}
		start := sb.Len()
		sb.WriteString(s)
		runs = append(runs, glyphRun{
			start: start,
			end:   sb.Len(),
			x:     t.X,
			y:     t.Y,
			w:     t.W,
			size:  t.FontSize,
		})
	}
	return sb.String(), runs
}

// recoverParse converts a parser panic into an error. The underlying pdf
// parser panics on malformed files rather than returning errors.
func recoverParse(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed pdf: %v", r)
	}
}
