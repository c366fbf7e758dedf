package main

import (
	"fmt"
	"log"

	"github.com/xuri/excelize/v2"

	"github.com/gata-works/dataset-prep/internal/dataset"
)

const summarySheet = "Summary"

// DistributionReport is a workbook describing a run: one sheet per
// classified window and a summary row per written dataset.
type DistributionReport struct {
	f          *excelize.File
	summaryRow int
}

func NewDistributionReport() (*DistributionReport, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), summarySheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	header := []any{"Dataset", "Records", "Train", "Test", "Labels"}
	if err := f.SetSheetRow(summarySheet, "A1", &header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create report: %w", err)
	}
	return &DistributionReport{f: f, summaryRow: 1}, nil
}

// AddClassification writes one row per label of c to a new sheet.
func (r *DistributionReport) AddClassification(sheet string, c dataset.Classification) error {
	if _, err := r.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
	}
	header := []any{"Label", "Count", "Share", "Low volume", "Exportable"}
	if err := r.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	labels := make([]dataset.LabelID, 0, len(c.Labels))
	for label := range c.Labels {
		labels = append(labels, label)
	}
	dataset.SortLabels(labels)

	for i, label := range labels {
		class := c.Labels[label]
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{string(label), class.Count, class.Share, yesNo(class.LowVolume), yesNo(class.Exportable())}
		if err := r.f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write label %s: %w", label, err)
		}
	}
	return nil
}

// AddPartitions appends a summary row for a written dataset.
func (r *DistributionReport) AddPartitions(parts dataset.Partitions) error {
	r.summaryRow++
	cell, err := excelize.CoordinatesToCellName(1, r.summaryRow)
	if err != nil {
		return err
	}
	labels := dataset.Count(parts.Train).Labels()
	row := []any{parts.Name, parts.Len(), len(parts.Train), len(parts.Test), len(labels)}
	return r.f.SetSheetRow(summarySheet, cell, &row)
}

// Save writes the workbook to path.
func (r *DistributionReport) Save(path string) error {
	if err := r.f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	log.Printf("Wrote distribution report to %s", path)
	return nil
}

func (r *DistributionReport) Close() error {
	return r.f.Close()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
