package mask

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/sokcho-kim/docmask/format"
	"github.com/sokcho-kim/docmask/step"
)

var (
	errNoConverter    = errors.New("no converter configured")
	errNoEditor       = errors.New("no editor configured")
	errEmptyConverted = errors.New("converter returned empty output")
)

// Config assembles an Engine's collaborators. Extractor, Classifier, and
// Locator are required. Converter is only needed when non-PDF uploads are
// expected, Editor only when edits will be applied.
type Config struct {
	Converter  Converter
	Extractor  Extractor
	Classifier Classifier
	Locator    Locator
	Editor     Editor

	// StepTimeout bounds each collaborator call. Zero means unbounded.
	StepTimeout time.Duration

	Logger hclog.Logger
}

// Engine runs the redaction workflow over one document at a time. Engines
// hold no per-request state and are safe for concurrent use.
type Engine struct {
	converter   Converter
	extractor   Extractor
	classifier  Classifier
	locator     Locator
	editor      Editor
	stepTimeout time.Duration
	l           hclog.Logger
}

// New validates cfg and builds an Engine.
func New(cfg Config) (*Engine, error) {
	var errs *multierror.Error
	if cfg.Extractor == nil {
		errs = multierror.Append(errs, errors.New("engine requires an extractor"))
	}
	if cfg.Classifier == nil {
		errs = multierror.Append(errs, errors.New("engine requires a classifier"))
	}
	if cfg.Locator == nil {
		errs = multierror.Append(errs, errors.New("engine requires a locator"))
	}
	if cfg.StepTimeout < 0 {
		errs = multierror.Append(errs, fmt.Errorf("step timeout must be nonnegative, timeout='%s'", cfg.StepTimeout.String()))
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	l := cfg.Logger
	if l == nil {
		l = hclog.Default()
	}

	return &Engine{
		converter:   cfg.Converter,
		extractor:   cfg.Extractor,
		classifier:  cfg.Classifier,
		locator:     cfg.Locator,
		editor:      cfg.Editor,
		stepTimeout: cfg.StepTimeout,
		l:           l,
	}, nil
}

// Run executes the workflow: resolve the upload's format, normalize to PDF,
// extract text, classify candidates for the enabled categories, locate them,
// and confirm the ones actually present. The returned document is the
// normalized, unmasked one; Run detects, it never applies masks.
//
// Stages run strictly in order and the first failure stops the pipeline. A
// run that finds no candidates is not a failure: the result carries the
// normalized document with empty patterns and an empty masking map.
func (e *Engine) Run(ctx context.Context, raw []byte, filename string, settings Settings) (Result, error) {
	res := Result{
		Patterns:   map[Category][]string{},
		MaskingMap: MaskingMap{},
	}

	if err := settings.Validate(); err != nil {
		return res, err
	}

	// Resolve the true format. The filename is only a hint; content wins
	// whenever the hint is missing or unsupported.
	start := time.Now()
	tag := format.Resolve(raw, filename)
	if tag == format.Unknown {
		err := UnsupportedFormatError{format: tag, filename: filename}
		res.record("resolve", step.Fail, err, start)
		e.l.Error("failed to resolve document format", "filename", filename, "error", err)
		return res, err
	}
	res.record("resolve", step.Success, nil, start)
	e.l.Debug("resolved document format", "format", tag, "filename", filename)

	doc := NewDocument(raw, tag)
	res.Document = doc

	// Normalize to PDF. Already-PDF uploads pass through unchanged.
	start = time.Now()
	if tag == format.PDF {
		res.record("convert", step.Skip, nil, start)
	} else {
		normalized, err := e.convert(ctx, doc)
		if err != nil {
			res.record("convert", step.StatusFromErr(err), err, start)
			e.l.Error("failed to convert document", "format", tag, "error", err)
			return res, err
		}
		doc = normalized
		res.Document = doc
		res.record("convert", step.Success, nil, start)
		e.l.Info("converted document", "from", tag, "bytes", doc.Len())
	}

	// Extract text from the normalized document.
	start = time.Now()
	text, err := e.extract(ctx, doc)
	if err != nil {
		res.record("extract", step.StatusFromErr(err), err, start)
		e.l.Error("failed to extract text", "error", err)
		return res, err
	}
	res.record("extract", step.Success, nil, start)

	// Classify, for the enabled categories only. Nothing enabled means
	// nothing to look for, so the classifier is never called.
	enabled := settings.EnabledCategories()
	start = time.Now()
	var candidates map[Category][]string
	if len(enabled) == 0 {
		res.record("classify", step.Skip, nil, start)
	} else {
		candidates, err = e.classify(ctx, text, enabled)
		if err != nil {
			res.record("classify", step.StatusFromErr(err), err, start)
			e.l.Error("failed to classify text", "error", err)
			return res, err
		}
		candidates = filterCandidates(candidates, enabled)
		res.record("classify", step.Success, nil, start)
	}

	// No surviving candidates: the documented no-op path, not an error.
	if len(candidates) == 0 {
		res.record("locate", step.Skip, nil, time.Now())
		res.record("confirm", step.Skip, nil, time.Now())
		e.l.Info("no candidates to locate, returning document unchanged")
		return res, nil
	}

	// Locate candidates on the document. This builds the masking map but
	// never mutates content.
	start = time.Now()
	located, mm, err := e.locate(ctx, doc, candidates)
	if err != nil {
		res.record("locate", step.StatusFromErr(err), err, start)
		e.l.Error("failed to locate candidates", "error", err)
		return res, err
	}
	doc = located
	res.Document = doc
	if mm == nil {
		mm = MaskingMap{}
	}
	res.MaskingMap = mm
	res.record("locate", step.Success, nil, start)

	// Confirm: only candidates with at least one located coordinate are
	// reported.
	start = time.Now()
	res.Patterns = Confirm(candidates, mm)
	res.record("confirm", step.Success, nil, start)
	e.l.Info("workflow complete", "categories", len(res.Patterns), "located", len(mm))

	return res, nil
}

func (e *Engine) convert(ctx context.Context, doc Document) (Document, error) {
	if e.converter == nil {
		return doc, ConversionError{format: doc.Format(), err: errNoConverter}
	}
	runCtx, cancel := e.stepContext(ctx)
	defer cancel()

	b, err := e.converter.Convert(runCtx, doc.Bytes(), doc.Format())
	if err != nil {
		return doc, ConversionError{format: doc.Format(), err: err}
	}
	if len(b) == 0 {
		return doc, ConversionError{format: doc.Format(), err: errEmptyConverted}
	}
	return NewDocument(b, format.PDF), nil
}

func (e *Engine) extract(ctx context.Context, doc Document) (string, error) {
	runCtx, cancel := e.stepContext(ctx)
	defer cancel()

	text, err := e.extractor.Extract(runCtx, doc.Bytes())
	if err != nil {
		return "", ExtractionError{err: err}
	}
	return text, nil
}

func (e *Engine) classify(ctx context.Context, text string, enabled []Category) (map[Category][]string, error) {
	runCtx, cancel := e.stepContext(ctx)
	defer cancel()

	candidates, err := e.classifier.Classify(runCtx, text, enabled)
	if err != nil {
		return nil, ClassificationError{err: err}
	}
	return candidates, nil
}

func (e *Engine) locate(ctx context.Context, doc Document, candidates map[Category][]string) (Document, MaskingMap, error) {
	runCtx, cancel := e.stepContext(ctx)
	defer cancel()

	b, mm, err := e.locator.Locate(runCtx, doc.Bytes(), candidates)
	if err != nil {
		return doc, nil, EditError{stage: "locate", err: err}
	}
	return NewDocument(b, doc.Format()), mm, nil
}

// stepContext bounds one collaborator call when a step timeout is set.
func (e *Engine) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if 0 < e.stepTimeout {
		return context.WithTimeout(ctx, e.stepTimeout)
	}
	return ctx, func() {}
}

// filterCandidates keeps only enabled categories and drops candidates that
// are empty after trimming. Surviving candidates keep their original,
// untrimmed text so located coordinates line up with what the classifier
// saw. Categories left with no candidates are dropped entirely.
func filterCandidates(in map[Category][]string, enabled []Category) map[Category][]string {
	allowed := make(map[Category]bool, len(enabled))
	for _, c := range enabled {
		allowed[c] = true
	}

	out := make(map[Category][]string, len(in))
	for cat, texts := range in {
		if !allowed[cat] {
			continue
		}
		kept := make([]string, 0, len(texts))
		for _, t := range texts {
			if strings.TrimSpace(t) != "" {
				kept = append(kept, t)
			}
		}
		if len(kept) > 0 {
			out[cat] = kept
		}
	}
	return out
}

func (r *Result) record(name string, status step.Status, err error, start time.Time) {
	r.Steps = append(r.Steps, step.New(name, status, err, start, time.Now()))
}
