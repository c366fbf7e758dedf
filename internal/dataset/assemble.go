package dataset

import (
	"errors"
	"fmt"
)

// DatasetSpec is a named, fully resolved record set ready for splitting.
type DatasetSpec struct {
	Name          string
	Records       []Record
	TrainFraction float64
}

// Partitions is a split dataset. Both partitions exist before anything is
// persisted.
type Partitions struct {
	Name  string
	Train []Record
	Test  []Record
}

// Len is the number of records across both partitions.
func (p Partitions) Len() int {
	return len(p.Train) + len(p.Test)
}

// Assemble validates records and wraps them in a DatasetSpec. Every record
// must carry a label. The records are copied so later stages cannot alias
// the caller's slice.
func Assemble(name string, records []Record, trainFraction float64) (DatasetSpec, error) {
	if name == "" {
		return DatasetSpec{}, errors.New("dataset name is required")
	}
	if len(records) == 0 {
		return DatasetSpec{}, fmt.Errorf("dataset %s: %w", name, ErrEmptyInput)
	}
	for i, record := range records {
		if record.Label == "" {
			return DatasetSpec{}, fmt.Errorf("dataset %s: record %d has no label", name, i)
		}
	}
	if trainFraction == 0 {
		trainFraction = DefaultTrainFraction
	}

	owned := make([]Record, len(records))
	copy(owned, records)
	return DatasetSpec{Name: name, Records: owned, TrainFraction: trainFraction}, nil
}

// Split stratifies the dataset into train and test partitions.
func (s DatasetSpec) Split() (Partitions, error) {
	train, test, err := Split(s.Records, s.TrainFraction)
	if err != nil {
		return Partitions{}, fmt.Errorf("dataset %s: %w", s.Name, err)
	}
	return Partitions{Name: s.Name, Train: train, Test: test}, nil
}

// GeneralFallback picks the label that absorbs low-volume labels in the
// general dataset. When the low-volume dataset is built and route is set,
// those labels are routed to it through route; otherwise they collapse into
// fallback.
func GeneralFallback(c Classification, fallback, route LabelID) LabelID {
	if route != "" && c.Viable() {
		return route
	}
	return fallback
}
