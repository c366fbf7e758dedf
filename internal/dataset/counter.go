package dataset

// Distribution is the number of records per label in a record set.
type Distribution struct {
	Counts map[LabelID]int
	Total  int
}

// Count computes the label distribution of records. It never mutates its
// input and the result does not depend on record order.
func Count(records []Record) Distribution {
	counts := make(map[LabelID]int)
	for _, record := range records {
		counts[record.Label]++
	}
	return Distribution{Counts: counts, Total: len(records)}
}

// Labels returns the labels present, sorted.
func (d Distribution) Labels() []LabelID {
	labels := make([]LabelID, 0, len(d.Counts))
	for label := range d.Counts {
		labels = append(labels, label)
	}
	SortLabels(labels)
	return labels
}

// Share is the fraction of records carrying label, or 0 for an empty set.
func (d Distribution) Share(label LabelID) float64 {
	if d.Total == 0 {
		return 0
	}
	return float64(d.Counts[label]) / float64(d.Total)
}
