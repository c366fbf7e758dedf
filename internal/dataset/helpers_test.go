package dataset

import "fmt"

// makeRecords builds n records of label with distinct texts.
func makeRecords(label LabelID, n int) []Record {
	records := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, Record{
			Text:  fmt.Sprintf("ticket %s #%d", label, i),
			Label: label,
		})
	}
	return records
}

// concat joins record sets in order.
func concat(sets ...[]Record) []Record {
	var out []Record
	for _, set := range sets {
		out = append(out, set...)
	}
	return out
}

func countLabel(records []Record, label LabelID) int {
	n := 0
	for _, record := range records {
		if record.Label == label {
			n++
		}
	}
	return n
}
