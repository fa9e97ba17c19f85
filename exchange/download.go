package exchange

import (
	"context"
	"encoding/csv"
	"os"
	"time"

	"github.com/chartmark/chartmark/core"
	"github.com/schollz/progressbar/v3"
)

const downloadBatchSize = 500

// CSV header names
var csvHeaders = []string{"time", "open", "close", "low", "high", "volume"}

// Downloader backfills historical candle data from a feeder into CSV files
// that CSVFeed can replay offline.
type Downloader struct {
	feeder    core.Feeder
	log       core.Logger
	precision int
}

// NewDownloader creates a new downloader over the provided feeder
func NewDownloader(feeder core.Feeder, log core.Logger) Downloader {
	return Downloader{
		feeder:    feeder,
		log:       log,
		precision: 8,
	}
}

// DownloadParameters defines the time range for data download
type DownloadParameters struct {
	Start time.Time
	End   time.Time
}

// DownloadOption is a function type for configuring download parameters
type DownloadOption func(*DownloadParameters)

// WithWindow sets specific start and end times for the download
func WithWindow(start, end time.Time) DownloadOption {
	return func(p *DownloadParameters) {
		p.Start = start
		p.End = end
	}
}

// WithDays sets the download period to a specific number of days from now
func WithDays(days int) DownloadOption {
	return func(p *DownloadParameters) {
		p.Start = time.Now().AddDate(0, 0, -days)
		p.End = time.Now()
	}
}

// Download fetches candle data from the feeder and saves it to a CSV file
func (d Downloader) Download(ctx context.Context, pair string, interval core.Interval,
	outputPath string, options ...DownloadOption) error {

	recordFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer recordFile.Close()

	now := time.Now()
	parameters := &DownloadParameters{
		Start: now.AddDate(0, -1, 0),
		End:   now,
	}
	for _, option := range options {
		option(parameters)
	}
	normalizeWindow(parameters)

	if !interval.Valid() {
		return core.ErrInvalidInterval
	}

	barDuration := interval.Duration()
	candleCount := int(parameters.End.Sub(parameters.Start)/barDuration) + 1

	if d.log != nil {
		d.log.Infof("Downloading %d candles of %s for %s", candleCount, interval, pair)
	}

	writer := csv.NewWriter(recordFile)
	if err := writer.Write(csvHeaders); err != nil {
		return err
	}

	progressBar := progressbar.Default(int64(candleCount))
	missing, err := d.downloadBatches(ctx, pair, interval, parameters, barDuration, writer, progressBar)
	if err != nil {
		return err
	}

	if err := progressBar.Close(); err != nil && d.log != nil {
		d.log.Warnf("Failed to close progress bar: %s", err.Error())
	}

	if missing > 0 && d.log != nil {
		d.log.Warnf("%d missing candles", missing)
	}

	writer.Flush()
	if d.log != nil {
		d.log.Info("Done!")
	}
	return writer.Error()
}

// normalizeWindow aligns the window to day boundaries and clamps the end to now
func normalizeWindow(p *DownloadParameters) {
	p.Start = time.Date(p.Start.Year(), p.Start.Month(), p.Start.Day(), 0, 0, 0, 0, time.UTC)

	now := time.Now()
	if now.Sub(p.End) > 0 {
		p.End = time.Date(p.End.Year(), p.End.Month(), p.End.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		p.End = now
	}
}

// downloadBatches fetches candles in batches and writes them to the CSV
func (d Downloader) downloadBatches(ctx context.Context, pair string, interval core.Interval,
	p *DownloadParameters, barDuration time.Duration, writer *csv.Writer,
	progressBar *progressbar.ProgressBar) (int, error) {

	missing := 0

	for batchStart := p.Start; batchStart.Before(p.End); batchStart = batchStart.Add(barDuration * downloadBatchSize) {
		batchEnd := batchStart.Add(barDuration*downloadBatchSize - time.Second)
		isLastBatch := false
		if !batchEnd.Before(p.End) {
			batchEnd = p.End
			isLastBatch = true
		}

		candles, err := d.feeder.CandlesByPeriod(ctx, pair, interval, batchStart, batchEnd)
		if err != nil {
			return missing, err
		}

		for _, candle := range candles {
			if err := writer.Write(candle.ToSlice(d.precision)); err != nil {
				return missing, err
			}
		}

		if !isLastBatch && len(candles) < downloadBatchSize {
			missing += downloadBatchSize - len(candles)
		}

		if err := progressBar.Add(len(candles)); err != nil && d.log != nil {
			d.log.Warnf("Failed to update progress bar: %s", err.Error())
		}
	}

	return missing, nil
}
