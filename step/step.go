package step

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status describes the outcome of a pipeline stage.
type Status string

const (
	// Success means the stage completed and the pipeline moved on.
	Success Status = "success"
	// Fail means the stage returned an error and the pipeline stopped.
	Fail Status = "fail"
	// Skip means the stage was not needed for this document.
	Skip Status = "skip"
	// Timeout means the stage exceeded its deadline before completing.
	Timeout Status = "timeout"
	// Canceled means the request was canceled while the stage was running.
	Canceled Status = "canceled"
)

// Record captures one pipeline stage's outcome for reporting. Records carry
// no stage output so they are always safe to render.
type Record struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	ErrString string    `json:"error"` // simplifies json marshaling
	Error     error     `json:"-"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// New creates a Record, deriving ErrString from err when one is present.
func New(name string, status Status, err error, start, end time.Time) Record {
	r := Record{
		Name:   name,
		Status: status,
		Error:  err,
		Start:  start,
		End:    end,
	}
	if err != nil {
		r.ErrString = fmt.Sprintf("%s", err)
	}
	return r
}

// StatusFromErr maps a stage error to the status it represents. Context
// deadline and cancellation errors get their own statuses so a stalled
// collaborator is distinguishable from a broken one.
func StatusFromErr(err error) Status {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, context.Canceled):
		return Canceled
	}
	return Fail
}

// Duration returns how long the stage ran.
func (r Record) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Counts takes a slice of records and returns a map containing sums of each Status
func Counts(records []Record) (map[Status]int, error) {
	statuses := make(map[Status]int)
	for _, r := range records {
		if r.Status == "" {
			return nil, fmt.Errorf("unable to build status counts, stage not run: step=%s", r.Name)
		}
		statuses[r.Status]++
	}
	return statuses, nil
}
