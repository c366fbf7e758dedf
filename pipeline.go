package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gata-works/dataset-prep/internal/dataset"
)

const (
	windowGeneral   = "general"
	windowLowVolume = "low_volume"
)

// DatasetResult describes one written dataset.
type DatasetResult struct {
	Name     string
	Train    int
	Test     int
	Labels   int
	Location Location
}

// Result is the outcome of a successful run. LowVolume is nil when the
// low-volume dataset was skipped; LowVolumeSkipped then says why.
type Result struct {
	BatchID          string
	General          DatasetResult
	LowVolume        *DatasetResult
	LowVolumeSkipped string
}

// Pipeline prepares the general and low-volume datasets of a batch.
type Pipeline struct {
	cfg    *Config
	source TicketSource
	store  DatasetStore
	report *DistributionReport
}

// NewPipeline wires a pipeline. report may be nil.
func NewPipeline(cfg *Config, source TicketSource, store DatasetStore, report *DistributionReport) *Pipeline {
	return &Pipeline{cfg: cfg, source: source, store: store, report: report}
}

// Run builds the datasets for batch. Nothing is written when the general
// window has no labeled tickets.
func (p *Pipeline) Run(ctx context.Context, batch Batch) (Result, error) {
	result := Result{BatchID: batch.ID}
	window := batch.Window(p.cfg.GeneralPeriodDays)

	log.Printf("Preparing dataset for batch ID %s", batch.ID)
	log.Printf("  Start date: %s", window.Start.Format(time.RFC3339))
	log.Printf("  End date:   %s", window.End.Format(time.RFC3339Nano))

	records, err := p.fetch(ctx, windowGeneral, window)
	if err != nil {
		return result, err
	}

	dist := dataset.Count(records)
	classes, err := dataset.Classify(dist, p.cfg.Threshold)
	if err != nil {
		if errors.Is(err, dataset.ErrNoData) {
			log.Printf("No ticket data found for %s", window)
		}
		return result, fmt.Errorf("general window %s: %w", window, err)
	}
	p.observeLabels(p.cfg.GeneralDatasetName, classes)
	if err := p.addClassification(windowGeneral, classes); err != nil {
		return result, err
	}

	log.Printf("Total records: %d", dist.Total)
	log.Printf("Label distribution:\n%s", formatDistribution(dist))
	log.Printf("The following labels have low volume (less than %.2f%% of total): %v",
		p.cfg.Threshold*100, classes.LowVolumeLabels())

	notViable := classes.CheckViable()
	if notViable != nil {
		log.Printf("%v", notViable)
	}

	fallback := dataset.GeneralFallback(classes,
		dataset.LabelID(p.cfg.FallbackLabel), dataset.LabelID(p.cfg.RouteLabel))
	general := dataset.Resolve(records, classes, fallback, dataset.GeneralDataset)
	log.Printf("Label distribution after reassigning low volume labels to %s:\n%s",
		fallback, formatDistribution(dataset.Count(general)))

	result.General, err = p.build(ctx, batch, p.cfg.GeneralDatasetName, general)
	if err != nil {
		return result, err
	}

	if notViable != nil {
		log.Printf("Skipping low volume dataset creation")
		result.LowVolumeSkipped = notViable.Error()
		return result, nil
	}

	lowWindow := batch.Window(p.cfg.LowVolumePeriodDays)
	lowRecords, err := p.fetch(ctx, windowLowVolume, lowWindow)
	if err != nil {
		return result, err
	}
	if len(lowRecords) == 0 {
		log.Printf("No low volume ticket data found for %s", lowWindow)
		result.LowVolumeSkipped = fmt.Sprintf("low volume window %s: %v", lowWindow, dataset.ErrNoData)
		return result, nil
	}

	if p.report != nil {
		lowClasses, err := dataset.Classify(dataset.Count(lowRecords), p.cfg.Threshold)
		if err != nil {
			return result, fmt.Errorf("low volume window %s: %w", lowWindow, err)
		}
		if err := p.addClassification(windowLowVolume, lowClasses); err != nil {
			return result, err
		}
	}

	lowVolume := dataset.Resolve(lowRecords, classes, fallback, dataset.LowVolumeDataset)
	lowDist := dataset.Count(lowVolume)
	log.Printf("Low volume records: %d", lowDist.Total)
	log.Printf("Low volume label distribution:\n%s", formatDistribution(lowDist))

	lowVolume = dataset.Filter(lowVolume, func(label dataset.LabelID) bool {
		return lowDist.Counts[label] >= dataset.MinLabelCount
	})
	remaining := dataset.Count(lowVolume)
	if len(remaining.Counts) < dataset.MinViableLabels {
		log.Printf("Only %d low volume labels have at least %d records, skipping low volume dataset creation",
			len(remaining.Counts), dataset.MinLabelCount)
		result.LowVolumeSkipped = fmt.Sprintf("%v: %d labels left after filtering",
			dataset.ErrLowVolumeNotViable, len(remaining.Counts))
		return result, nil
	}

	low, err := p.build(ctx, batch, p.cfg.LowVolumeDatasetName, lowVolume)
	if err != nil {
		return result, err
	}
	result.LowVolume = &low
	return result, nil
}

func (p *Pipeline) fetch(ctx context.Context, name string, window Window) ([]dataset.Record, error) {
	start := time.Now()
	records, err := p.source.FetchTickets(ctx, window)
	fetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s tickets: %w", name, err)
	}
	return dataset.Filter(records, func(label dataset.LabelID) bool { return label != "" }), nil
}

// build assembles, splits and stores one dataset.
func (p *Pipeline) build(ctx context.Context, batch Batch, name string, records []dataset.Record) (DatasetResult, error) {
	spec, err := dataset.Assemble(name, records, p.cfg.TrainFraction)
	if err != nil {
		return DatasetResult{}, err
	}
	parts, err := spec.Split()
	if err != nil {
		return DatasetResult{}, err
	}

	log.Printf("Training set size: %d", len(parts.Train))
	log.Printf("Test set size: %d", len(parts.Test))
	log.Printf("Training set label distribution:\n%s", formatDistribution(dataset.Count(parts.Train)))
	log.Printf("Test set label distribution:\n%s", formatDistribution(dataset.Count(parts.Test)))

	loc, err := p.store.Put(ctx, batch.ID, parts)
	if err != nil {
		return DatasetResult{}, err
	}
	log.Printf("%s training set saved to %s", name, loc.Train)
	log.Printf("%s test set saved to %s", name, loc.Test)

	recordsTotal.WithLabelValues(name, partitionTrain).Set(float64(len(parts.Train)))
	recordsTotal.WithLabelValues(name, partitionTest).Set(float64(len(parts.Test)))
	if p.report != nil {
		if err := p.report.AddPartitions(parts); err != nil {
			return DatasetResult{}, fmt.Errorf("failed to add %s to report: %w", name, err)
		}
	}

	return DatasetResult{
		Name:     name,
		Train:    len(parts.Train),
		Test:     len(parts.Test),
		Labels:   len(dataset.Count(spec.Records).Counts),
		Location: loc,
	}, nil
}

func (p *Pipeline) observeLabels(name string, c dataset.Classification) {
	labelsGauge.WithLabelValues(name, "total").Set(float64(len(c.Labels)))
	labelsGauge.WithLabelValues(name, "low_volume").Set(float64(len(c.LowVolumeLabels())))
	labelsGauge.WithLabelValues(name, "exportable").Set(float64(len(c.ExportableLabels())))
}

func (p *Pipeline) addClassification(sheet string, c dataset.Classification) error {
	if p.report == nil {
		return nil
	}
	if err := p.report.AddClassification(sheet, c); err != nil {
		return fmt.Errorf("failed to add %s to report: %w", sheet, err)
	}
	return nil
}

// formatDistribution renders one "label: count (share%)" line per label.
func formatDistribution(d dataset.Distribution) string {
	var b strings.Builder
	for _, label := range d.Labels() {
		fmt.Fprintf(&b, "  %s: %d (%.2f%%)\n", label, d.Counts[label], d.Share(label)*100)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
