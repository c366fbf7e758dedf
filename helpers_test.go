package main

import (
	"fmt"

	"github.com/gata-works/dataset-prep/internal/dataset"
)

func labeled(label dataset.LabelID, n int) []dataset.Record {
	records := make([]dataset.Record, n)
	for i := range records {
		records[i] = dataset.Record{Text: fmt.Sprintf("ticket %s #%d", label, i), Label: label}
	}
	return records
}

func concat(sets ...[]dataset.Record) []dataset.Record {
	var out []dataset.Record
	for _, set := range sets {
		out = append(out, set...)
	}
	return out
}
