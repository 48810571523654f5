package pdftext

import (
	"context"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/sokcho-kim/docmask/mask"
)

var _ mask.Locator = &Locator{}

// Locator finds candidate text occurrences on a PDF and reports their page
// coordinates. Locating reads only; the returned bytes are the input bytes.
type Locator struct {
	l hclog.Logger
}

// NewLocator builds a Locator.
func NewLocator(cfg Config) *Locator {
	l := cfg.Logger
	if l == nil {
		l = hclog.Default()
	}
	return &Locator{l: l}
}

// Locate searches every page for every candidate text and returns the input
// bytes unchanged alongside the masking map. Pages are scanned concurrently;
// hits are reported in page order, then occurrence order within the page.
// Candidates found nowhere are simply absent from the map.
func (lo *Locator) Locate(ctx context.Context, b []byte, candidates map[mask.Category][]string) (out []byte, mm mask.MaskingMap, err error) {
	defer recoverParse(&err)

	mm = mask.MaskingMap{}
	terms := uniqueTerms(candidates)
	if len(terms) == 0 {
		return b, mm, nil
	}

	r, err := openReader(b)
	if err != nil {
		return nil, nil, err
	}

	n := r.NumPage()
	pageHits := make([]map[string][]mask.CoordinateHit, n+1)

	g, gCtx := errgroup.WithContext(ctx)
	for i := 1; i <= n; i++ {
		i := i // per-iteration copy; go.mod's go directive predates 1.22 loopvar semantics
		g.Go(func() (err error) {
			defer recoverParse(&err)
			if err := gCtx.Err(); err != nil {
				return err
			}
			p := r.Page(i)
			if p.V.IsNull() {
				return nil
			}
			pageHits[i] = scanPage(p, i, terms)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i := 1; i <= n; i++ {
		for _, term := range terms {
			if hits := pageHits[i][term]; len(hits) > 0 {
				mm[term] = append(mm[term], hits...)
			}
		}
	}
	lo.l.Debug("located candidates", "terms", len(terms), "found", len(mm), "pages", n)

	return b, mm, nil
}

// scanPage finds each term's non-overlapping occurrences in one page's text
// and derives a bounding box from the glyphs each match covers.
func scanPage(p pdf.Page, pageNum int, terms []string) map[string][]mask.CoordinateHit {
	text, runs := pageGlyphs(p)
	if text == "" {
		return nil
	}

	hits := make(map[string][]mask.CoordinateHit)
	for _, term := range terms {
		needle := norm.NFC.String(term)
		if needle == "" {
			continue
		}
		idx := 0
		for {
			j := strings.Index(text[idx:], needle)
			if j < 0 {
				break
			}
			start := idx + j
			end := start + len(needle)
			hits[term] = append(hits[term], mask.CoordinateHit{
				Page: pageNum,
				BBox: matchBBox(runs, start, end),
				Text: term,
			})
			idx = end
		}
	}
	return hits
}

// matchBBox merges the geometry of every glyph overlapping [start, end).
// The box spans from the lowest baseline to the tallest glyph's ascent.
func matchBBox(runs []glyphRun, start, end int) mask.Rect {
	var box mask.Rect
	first := true
	for _, run := range runs {
		if run.end <= start || run.start >= end {
			continue
		}
		x0, x1 := run.x, run.x+run.w
		y0, y1 := run.y, run.y+run.size
		if first {
			box = mask.Rect{X0: x0, Y0: y0, X1: x1, Y1: y1}
			first = false
			continue
		}
		if x0 < box.X0 {
			box.X0 = x0
		}
		if y0 < box.Y0 {
			box.Y0 = y0
		}
		if x1 > box.X1 {
			box.X1 = x1
		}
		if y1 > box.Y1 {
			box.Y1 = y1
		}
	}
	return box
}

// uniqueTerms flattens candidates into a sorted, deduplicated term list. The
// same text proposed under two categories is only searched once.
func uniqueTerms(candidates map[mask.Category][]string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, texts := range candidates {
		for _, t := range texts {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)
	return terms
}
