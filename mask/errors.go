package mask

import (
	"context"
	"errors"
	"fmt"

	"github.com/sokcho-kim/docmask/format"
)

// UnsupportedFormatError means the upload's format could not be resolved to
// anything the pipeline handles. Terminal; there is nothing to retry.
type UnsupportedFormatError struct {
	format   format.Tag
	filename string
}

func (e UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format, format=%s, filename=%s", e.format, e.filename)
}

// ConversionError wraps a converter failure.
type ConversionError struct {
	format format.Tag
	err    error
}

func (e ConversionError) Error() string {
	return fmt.Sprintf("document conversion failed, format=%s, error=%s", e.format, e.err.Error())
}

func (e ConversionError) Unwrap() error {
	return e.err
}

// ExtractionError wraps a text extraction failure.
type ExtractionError struct {
	err error
}

func (e ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed, error=%s", e.err.Error())
}

func (e ExtractionError) Unwrap() error {
	return e.err
}

// ClassificationError wraps a classifier failure. An empty candidate map on
// a healthy classifier is not an error; this type only wraps faults.
type ClassificationError struct {
	err error
}

func (e ClassificationError) Error() string {
	return fmt.Sprintf("pattern classification failed, error=%s", e.err.Error())
}

func (e ClassificationError) Unwrap() error {
	return e.err
}

// EditError wraps a locate or edit failure, recording which stage failed.
type EditError struct {
	stage string
	err   error
}

func (e EditError) Error() string {
	return fmt.Sprintf("document edit failed, stage=%s, error=%s", e.stage, e.err.Error())
}

func (e EditError) Unwrap() error {
	return e.err
}

// IsTimeout reports whether err was caused by a pipeline stage exceeding its
// deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
