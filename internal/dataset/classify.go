package dataset

import (
	"fmt"
	"math"
)

const (
	// MinLabelCount is the number of records a low-volume label needs before
	// it can be exported into the low-volume dataset.
	MinLabelCount = 10

	// MinViableLabels is the number of exportable low-volume labels needed
	// for a standalone low-volume dataset.
	MinViableLabels = 2
)

// LabelClass is the classification of a single label.
type LabelClass struct {
	Label          LabelID
	Count          int
	Share          float64
	LowVolume      bool
	SufficientData bool
}

// Exportable reports whether the label belongs in the low-volume dataset.
func (c LabelClass) Exportable() bool {
	return c.LowVolume && c.SufficientData
}

// Classification holds the low-volume decision for every label of a
// distribution.
type Classification struct {
	Threshold float64
	Total     int
	Labels    map[LabelID]LabelClass
}

// Classify flags every label whose share of dist is strictly below
// threshold as low volume. A label exactly at the threshold is not low
// volume. It returns ErrNoData for an empty distribution.
func Classify(dist Distribution, threshold float64) (Classification, error) {
	if dist.Total == 0 {
		return Classification{}, ErrNoData
	}
	if math.IsNaN(threshold) || threshold <= 0 || threshold > 1 {
		return Classification{}, fmt.Errorf("low volume threshold %v outside (0, 1]", threshold)
	}

	limit, err := decimalFromFloat(threshold)
	if err != nil {
		return Classification{}, err
	}

	classes := make(map[LabelID]LabelClass, len(dist.Counts))
	for label, count := range dist.Counts {
		low, err := lessThanShare(count, dist.Total, limit)
		if err != nil {
			return Classification{}, fmt.Errorf("classify label %s: %w", label, err)
		}
		classes[label] = LabelClass{
			Label:          label,
			Count:          count,
			Share:          dist.Share(label),
			LowVolume:      low,
			SufficientData: count >= MinLabelCount,
		}
	}

	return Classification{Threshold: threshold, Total: dist.Total, Labels: classes}, nil
}

// Lookup returns the class of label.
func (c Classification) Lookup(label LabelID) (LabelClass, bool) {
	class, ok := c.Labels[label]
	return class, ok
}

// LowVolumeLabels returns every low-volume label, sorted.
func (c Classification) LowVolumeLabels() []LabelID {
	return c.collect(func(class LabelClass) bool { return class.LowVolume })
}

// ExportableLabels returns the low-volume labels with enough records to be
// exported, sorted.
func (c Classification) ExportableLabels() []LabelID {
	return c.collect(LabelClass.Exportable)
}

// Viable reports whether a standalone low-volume dataset can be built.
func (c Classification) Viable() bool {
	return len(c.ExportableLabels()) >= MinViableLabels
}

// CheckViable returns ErrLowVolumeNotViable when Viable is false.
func (c Classification) CheckViable() error {
	if n := len(c.ExportableLabels()); n < MinViableLabels {
		return fmt.Errorf("%w: %d low volume labels with at least %d records, need %d",
			ErrLowVolumeNotViable, n, MinLabelCount, MinViableLabels)
	}
	return nil
}

func (c Classification) collect(match func(LabelClass) bool) []LabelID {
	var labels []LabelID
	for label, class := range c.Labels {
		if match(class) {
			labels = append(labels, label)
		}
	}
	SortLabels(labels)
	return labels
}
