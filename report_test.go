package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/gata-works/dataset-prep/internal/dataset"
)

func TestDistributionReport(t *testing.T) {
	records := concat(
		labeled("1", 960),
		labeled("2", 15),
		labeled("3", 12),
		labeled("4", 5),
	)
	c, err := dataset.Classify(dataset.Count(records), 0.033)
	require.NoError(t, err)

	report, err := NewDistributionReport()
	require.NoError(t, err)
	defer report.Close()

	require.NoError(t, report.AddClassification("general-window", c))
	require.NoError(t, report.AddPartitions(dataset.Partitions{
		Name:  "gata-general",
		Train: labeled("1", 9),
		Test:  labeled("1", 1),
	}))

	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, report.Save(path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "general-window"}, f.GetSheetList())

	rows, err := f.GetRows("general-window")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Label", "Count", "Share", "Low volume", "Exportable"}, rows[0])
	assert.Equal(t, []string{"1", "960"}, rows[1][:2])
	assert.Equal(t, []string{"no", "no"}, rows[1][3:5])
	assert.Equal(t, []string{"2", "15"}, rows[2][:2])
	assert.Equal(t, []string{"yes", "yes"}, rows[2][3:5])
	assert.Equal(t, []string{"yes", "no"}, rows[4][3:5])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, []string{"gata-general", "10", "9", "1", "1"}, summary[1])
}
