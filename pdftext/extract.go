package pdftext

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/sokcho-kim/docmask/mask"
)

var _ mask.Extractor = &Extractor{}

// Config holds settings shared by the pdf text components.
type Config struct {
	Logger hclog.Logger
}

// Extractor renders a PDF to plain text, one page per line group.
type Extractor struct {
	l hclog.Logger
}

// NewExtractor builds an Extractor.
func NewExtractor(cfg Config) *Extractor {
	l := cfg.Logger
	if l == nil {
		l = hclog.Default()
	}
	return &Extractor{l: l}
}

// Extract returns the document text, pages joined with a newline. Pages are
// read in order; cancellation is honored between pages.
func (e *Extractor) Extract(ctx context.Context, b []byte) (text string, err error) {
	defer recoverParse(&err)

	r, err := openReader(b)
	if err != nil {
		return "", err
	}

	var pages []string
	n := r.NumPage()
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, _ := pageGlyphs(p)
		pages = append(pages, pageText)
	}
	e.l.Debug("extracted pdf text", "pages", n)

	return strings.Join(pages, "\n"), nil
}
