// Package dataset turns labeled ticket records into stratified train/test
// datasets: label counting, low-volume classification, label resolution,
// splitting and assembly.
package dataset

import (
	"cmp"
	"errors"
	"slices"
	"strconv"
)

var (
	// ErrNoData is returned when a record set has no labeled records to work with.
	ErrNoData = errors.New("no labeled ticket data")

	// ErrLowVolumeNotViable means there are too few low-volume labels with
	// enough records to build a standalone low-volume dataset. It is a branch
	// outcome, not a failure.
	ErrLowVolumeNotViable = errors.New("low volume dataset not viable")

	// ErrEmptyInput is returned when splitting or assembling zero records.
	ErrEmptyInput = errors.New("empty record set")
)

// LabelID identifies a routing label. The ticket store keeps labels as
// integers, everything downstream of extraction treats them as strings.
type LabelID string

// Record is a single labeled ticket.
type Record struct {
	Text  string  `json:"text"`
	Label LabelID `json:"label"`
}

// SortLabels orders labels numerically when both sides are integers and
// lexically otherwise. Numeric labels sort before non-numeric ones.
func SortLabels(labels []LabelID) {
	slices.SortFunc(labels, compareLabels)
}

func compareLabels(a, b LabelID) int {
	ai, aErr := strconv.ParseInt(string(a), 10, 64)
	bi, bErr := strconv.ParseInt(string(b), 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if c := cmp.Compare(ai, bi); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}
