package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/config"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/dataset"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/processor"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/utils"
)

const statsSheet = "Stats"

// statHeaders follow the key column, which is named after the grouping
// dimension.
var statHeaders = []string{
	"total_flights",
	"cancelled_flights",
	"avg_delay",
	"median_delay",
	"min_delay",
	"max_delay",
	"std_delay",
	"on_time_pct",
	"delayed_pct",
}

// Exporter writes statistics and record sets to csv and xlsx files.
type Exporter struct {
	cfg *config.Config
	log *storage.Logger
}

func NewExporter(cfg *config.Config, log *storage.Logger) *Exporter {
	return &Exporter{cfg: cfg, log: log}
}

// StatsCSV writes one row per group. Delay columns carry two decimal
// places, matching what the charts annotate.
func (e *Exporter) StatsCSV(stats []processor.AggregateStat, dim processor.Dimension, path string) error {
	df := statsFrame(stats, dim)
	if err := df.Error(); err != nil {
		return fmt.Errorf("stats frame: %w", err)
	}

	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return &dataset.FileWriteError{Path: path, Op: "csv", Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &dataset.FileWriteError{Path: path, Op: "csv", Err: err}
	}
	defer f.Close()

	if err := df.WriteCSV(f); err != nil {
		return &dataset.FileWriteError{Path: path, Op: "csv", Err: err}
	}
	e.log.Info(fmt.Sprintf("stats exported: %s (%d groups)", path, len(stats)))
	return nil
}

// RecordsCSV writes the dataset's records, canonical columns included.
// An empty dataset produces a header-only file.
func (e *Exporter) RecordsCSV(ds *dataset.DelayDataset, path string) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return &dataset.FileWriteError{Path: path, Op: "csv", Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &dataset.FileWriteError{Path: path, Op: "csv", Err: err}
	}
	defer f.Close()

	df := ds.Frame()
	if err := df.WriteCSV(f); err != nil {
		return &dataset.FileWriteError{Path: path, Op: "csv", Err: err}
	}
	e.log.Info(fmt.Sprintf("records exported: %s (%d rows)", path, ds.Len()))
	return nil
}

// RecordsXLSX writes the dataset's records to a workbook.
func (e *Exporter) RecordsXLSX(ds *dataset.DelayDataset, path string) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return &dataset.FileWriteError{Path: path, Op: "xlsx", Err: err}
	}
	if err := utils.SaveToExcel(ds.Frame(), path); err != nil {
		return &dataset.FileWriteError{Path: path, Op: "xlsx", Err: err}
	}
	e.log.Info(fmt.Sprintf("records exported: %s (%d rows)", path, ds.Len()))
	return nil
}

// StatsXLSX writes the stats table plus an embedded column chart of the
// average delays, for people who live in spreadsheets.
func (e *Exporter) StatsXLSX(stats []processor.AggregateStat, dim processor.Dimension, path string) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return &dataset.FileWriteError{Path: path, Op: "xlsx", Err: err}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", statsSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	headers := append([]string{string(dim)}, statHeaders...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(statsSheet, cell, h)
	}

	for row, s := range stats {
		values := []interface{}{
			s.Key, s.Count, s.CancelledCount,
			s.Mean, s.Median, s.Min, s.Max, s.StdDev,
			s.OnTimePct, s.DelayedPct,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(statsSheet, cell, v)
		}
	}

	if len(stats) > 0 {
		if err := e.addStatsChart(f, dim, len(stats)); err != nil {
			return fmt.Errorf("embedding chart: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return &dataset.FileWriteError{Path: path, Op: "xlsx", Err: err}
	}
	e.log.Info(fmt.Sprintf("stats exported: %s (%d groups)", path, len(stats)))
	return nil
}

func (e *Exporter) addStatsChart(f *excelize.File, dim processor.Dimension, rows int) error {
	last := strconv.Itoa(rows + 1)
	return f.AddChart(statsSheet, "L2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       "Average delay (minutes)",
			Categories: statsSheet + "!$A$2:$A$" + last,
			Values:     statsSheet + "!$D$2:$D$" + last,
		}},
		Title: []excelize.RichTextRun{
			{Text: fmt.Sprintf("Average delay by %s", dim)},
		},
		Legend: excelize.ChartLegend{Position: "bottom"},
	})
}

// statsFrame renders the stats as a frame with the numeric columns
// preformatted to two decimals.
func statsFrame(stats []processor.AggregateStat, dim processor.Dimension) dataframe.DataFrame {
	n := len(stats)
	keys := make([]string, n)
	counts := make([]int, n)
	cancelled := make([]int, n)
	numeric := make([][]string, len(statHeaders)-2)
	for i := range numeric {
		numeric[i] = make([]string, n)
	}

	for i, s := range stats {
		keys[i] = s.Key
		counts[i] = s.Count
		cancelled[i] = s.CancelledCount
		for j, v := range []float64{
			s.Mean, s.Median, s.Min, s.Max, s.StdDev, s.OnTimePct, s.DelayedPct,
		} {
			numeric[j][i] = strconv.FormatFloat(v, 'f', 2, 64)
		}
	}

	cols := []series.Series{
		series.New(keys, series.String, string(dim)),
		series.New(counts, series.Int, statHeaders[0]),
		series.New(cancelled, series.Int, statHeaders[1]),
	}
	for j, name := range statHeaders[2:] {
		cols = append(cols, series.New(numeric[j], series.String, name))
	}
	return dataframe.New(cols...)
}
