package main

import (
	"fmt"
	"time"
)

const batchIDLayout = "2006010215"

// InputError is a fatal problem with the invocation itself: a malformed
// batch ID or missing configuration. Nothing runs after one is raised.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return "invalid input: " + e.Msg
}

func inputErrorf(format string, args ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// Batch is one extraction-and-split run keyed by a YYYYMMDDHH timestamp.
type Batch struct {
	ID string
	At time.Time
}

// Window is an inclusive extraction range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return w.Start.Format(time.RFC3339) + " .. " + w.End.Format(time.RFC3339Nano)
}

// ParseBatchID validates a batch ID. It must be exactly ten digits forming a
// valid UTC hour.
func ParseBatchID(id string) (Batch, error) {
	if len(id) != len(batchIDLayout) {
		return Batch{}, inputErrorf("batch_id %q must be in YYYYMMDDHH format", id)
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return Batch{}, inputErrorf("batch_id %q must be in YYYYMMDDHH format", id)
		}
	}
	at, err := time.ParseInLocation(batchIDLayout, id, time.UTC)
	if err != nil {
		return Batch{}, inputErrorf("batch_id %q is not a valid timestamp: %v", id, err)
	}
	return Batch{ID: id, At: at}, nil
}

// End is the last instant of the day before the batch date. Tickets closed
// on the batch day itself belong to the next batch.
func (b Batch) End() time.Time {
	y, m, d := b.At.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
}

// Window returns the extraction window covering the given number of days
// before the batch.
func (b Batch) Window(days int) Window {
	return Window{
		Start: b.At.AddDate(0, 0, -days),
		End:   b.End(),
	}
}
