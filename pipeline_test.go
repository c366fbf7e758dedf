package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gata-works/dataset-prep/internal/dataset"
)

type fakeSource struct {
	byStart map[int64][]dataset.Record
	err     error
	calls   []Window
}

func (f *fakeSource) FetchTickets(_ context.Context, window Window) ([]dataset.Record, error) {
	f.calls = append(f.calls, window)
	if f.err != nil {
		return nil, f.err
	}
	return f.byStart[window.Start.Unix()], nil
}

type fakeStore struct {
	puts map[string]dataset.Partitions
	err  error
}

func (f *fakeStore) Put(_ context.Context, batchID string, parts dataset.Partitions) (Location, error) {
	if f.err != nil {
		return Location{}, f.err
	}
	if f.puts == nil {
		f.puts = map[string]dataset.Partitions{}
	}
	f.puts[parts.Name] = parts
	return Location{
		Train: fmt.Sprintf("mem://%s/%s/train", parts.Name, batchID),
		Test:  fmt.Sprintf("mem://%s/%s/test", parts.Name, batchID),
	}, nil
}

func testPipelineConfig() *Config {
	cfg := defaultConfig()
	cfg.FallbackLabel = "99"
	cfg.TargetBucket = "datasets"
	return cfg
}

func testBatch(t *testing.T) Batch {
	t.Helper()
	batch, err := ParseBatchID("2025040112")
	require.NoError(t, err)
	return batch
}

func newFakeSource(batch Batch, cfg *Config, general, lowVolume []dataset.Record) *fakeSource {
	return &fakeSource{byStart: map[int64][]dataset.Record{
		batch.Window(cfg.GeneralPeriodDays).Start.Unix():   general,
		batch.Window(cfg.LowVolumePeriodDays).Start.Unix(): lowVolume,
	}}
}

// viableGeneral has two exportable low volume labels (2 and 3) and one that
// is too small to export (4).
func viableGeneral() []dataset.Record {
	return concat(labeled("1", 960), labeled("2", 15), labeled("3", 12), labeled("4", 5))
}

func partitionCounts(parts dataset.Partitions) (train, test map[dataset.LabelID]int) {
	return dataset.Count(parts.Train).Counts, dataset.Count(parts.Test).Counts
}

func TestPipeline_GeneralOnlyWhenNotViable(t *testing.T) {
	cfg := testPipelineConfig()
	batch := testBatch(t)
	source := newFakeSource(batch, cfg,
		concat(labeled("1", 960), labeled("2", 15), labeled("3", 5)), nil)
	store := &fakeStore{}

	result, err := NewPipeline(cfg, source, store, nil).Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Nil(t, result.LowVolume)
	assert.Contains(t, result.LowVolumeSkipped, dataset.ErrLowVolumeNotViable.Error())
	assert.Len(t, source.calls, 1)

	require.Contains(t, store.puts, "gata-general")
	assert.NotContains(t, store.puts, "gata-low-vol")
	train, test := partitionCounts(store.puts["gata-general"])
	assert.Equal(t, map[dataset.LabelID]int{"1": 864, "99": 18}, train)
	assert.Equal(t, map[dataset.LabelID]int{"1": 96, "99": 2}, test)

	assert.Equal(t, DatasetResult{
		Name:   "gata-general",
		Train:  882,
		Test:   98,
		Labels: 2,
		Location: Location{
			Train: "mem://gata-general/2025040112/train",
			Test:  "mem://gata-general/2025040112/test",
		},
	}, result.General)
}

func TestPipeline_BuildsLowVolumeDataset(t *testing.T) {
	cfg := testPipelineConfig()
	batch := testBatch(t)
	source := newFakeSource(batch, cfg, viableGeneral(),
		concat(labeled("1", 2000), labeled("2", 20), labeled("3", 14), labeled("4", 9), labeled("5", 50)))
	store := &fakeStore{}

	result, err := NewPipeline(cfg, source, store, nil).Run(context.Background(), batch)
	require.NoError(t, err)

	train, test := partitionCounts(store.puts["gata-general"])
	assert.Equal(t, map[dataset.LabelID]int{"1": 864, "99": 28}, train)
	assert.Equal(t, map[dataset.LabelID]int{"1": 96, "99": 4}, test)

	require.NotNil(t, result.LowVolume)
	assert.Empty(t, result.LowVolumeSkipped)
	train, test = partitionCounts(store.puts["gata-low-vol"])
	assert.Equal(t, map[dataset.LabelID]int{"2": 18, "3": 12}, train)
	assert.Equal(t, map[dataset.LabelID]int{"2": 2, "3": 2}, test)
	assert.Equal(t, 2, result.LowVolume.Labels)

	require.Len(t, source.calls, 2)
	assert.Equal(t, batch.At.AddDate(0, 0, -365), source.calls[1].Start)
	assert.Equal(t, source.calls[0].End, source.calls[1].End)
}

func TestPipeline_RouteLabel(t *testing.T) {
	batch := testBatch(t)
	lowVolume := concat(labeled("2", 20), labeled("3", 14))

	t.Run("viable", func(t *testing.T) {
		cfg := testPipelineConfig()
		cfg.RouteLabel = "0"
		store := &fakeStore{}

		_, err := NewPipeline(cfg, newFakeSource(batch, cfg, viableGeneral(), lowVolume), store, nil).
			Run(context.Background(), batch)
		require.NoError(t, err)

		counts := dataset.Count(concat(store.puts["gata-general"].Train, store.puts["gata-general"].Test)).Counts
		assert.Equal(t, map[dataset.LabelID]int{"1": 960, "0": 32}, counts)
	})

	t.Run("not viable", func(t *testing.T) {
		cfg := testPipelineConfig()
		cfg.RouteLabel = "0"
		store := &fakeStore{}
		general := concat(labeled("1", 960), labeled("2", 15), labeled("3", 5))

		_, err := NewPipeline(cfg, newFakeSource(batch, cfg, general, lowVolume), store, nil).
			Run(context.Background(), batch)
		require.NoError(t, err)

		counts := dataset.Count(concat(store.puts["gata-general"].Train, store.puts["gata-general"].Test)).Counts
		assert.Equal(t, map[dataset.LabelID]int{"1": 960, "99": 20}, counts)
	})
}

func TestPipeline_LowVolumeSkippedAfterFiltering(t *testing.T) {
	cfg := testPipelineConfig()
	batch := testBatch(t)
	source := newFakeSource(batch, cfg, viableGeneral(),
		concat(labeled("1", 2000), labeled("2", 20), labeled("3", 7)))
	store := &fakeStore{}

	result, err := NewPipeline(cfg, source, store, nil).Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Nil(t, result.LowVolume)
	assert.Contains(t, result.LowVolumeSkipped, "1 labels left")
	assert.NotContains(t, store.puts, "gata-low-vol")
	assert.Contains(t, store.puts, "gata-general")
}

func TestPipeline_EmptyLowVolumeWindow(t *testing.T) {
	cfg := testPipelineConfig()
	batch := testBatch(t)
	source := newFakeSource(batch, cfg, viableGeneral(), nil)
	store := &fakeStore{}

	result, err := NewPipeline(cfg, source, store, nil).Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Nil(t, result.LowVolume)
	assert.Contains(t, result.LowVolumeSkipped, dataset.ErrNoData.Error())
	assert.Len(t, store.puts, 1)
}

func TestPipeline_NoGeneralData(t *testing.T) {
	cfg := testPipelineConfig()
	batch := testBatch(t)
	source := newFakeSource(batch, cfg, []dataset.Record{{Text: "unlabeled"}}, viableGeneral())
	store := &fakeStore{}

	_, err := NewPipeline(cfg, source, store, nil).Run(context.Background(), batch)
	require.ErrorIs(t, err, dataset.ErrNoData)
	assert.Empty(t, store.puts)
	assert.Len(t, source.calls, 1)
}

func TestPipeline_ExcludesUnlabeledRecords(t *testing.T) {
	cfg := testPipelineConfig()
	batch := testBatch(t)
	general := concat(labeled("1", 50), labeled("2", 50), []dataset.Record{{Text: "no label"}, {Text: "also none"}})
	source := newFakeSource(batch, cfg, general, nil)
	store := &fakeStore{}

	result, err := NewPipeline(cfg, source, store, nil).Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 100, result.General.Train+result.General.Test)
	train, test := partitionCounts(store.puts["gata-general"])
	assert.NotContains(t, train, dataset.LabelID(""))
	assert.NotContains(t, test, dataset.LabelID(""))
}

func TestPipeline_PropagatesErrors(t *testing.T) {
	cfg := testPipelineConfig()
	batch := testBatch(t)

	t.Run("store", func(t *testing.T) {
		storeErr := errors.New("bucket not found")
		source := newFakeSource(batch, cfg, viableGeneral(), nil)

		_, err := NewPipeline(cfg, source, &fakeStore{err: storeErr}, nil).Run(context.Background(), batch)
		require.ErrorIs(t, err, storeErr)
		assert.Len(t, source.calls, 1)
	})

	t.Run("source", func(t *testing.T) {
		source := &fakeSource{err: ErrDatabaseResuming}

		_, err := NewPipeline(cfg, source, &fakeStore{}, nil).Run(context.Background(), batch)
		require.ErrorIs(t, err, ErrDatabaseResuming)
	})
}

func TestPipeline_Report(t *testing.T) {
	cfg := testPipelineConfig()
	batch := testBatch(t)
	source := newFakeSource(batch, cfg, viableGeneral(),
		concat(labeled("1", 2000), labeled("2", 20), labeled("3", 14)))

	report, err := NewDistributionReport()
	require.NoError(t, err)
	defer report.Close()

	_, err = NewPipeline(cfg, source, &fakeStore{}, report).Run(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, []string{summarySheet, windowGeneral, windowLowVolume}, report.f.GetSheetList())
	rows, err := report.f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "gata-general", rows[1][0])
	assert.Equal(t, "gata-low-vol", rows[2][0])
}

func TestFormatDistribution(t *testing.T) {
	got := formatDistribution(dataset.Count(concat(labeled("10", 1), labeled("2", 3))))
	assert.Equal(t, "  2: 3 (75.00%)\n  10: 1 (25.00%)", got)
}
