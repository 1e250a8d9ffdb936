package chart

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/config"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/dataset"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/processor"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	cfg := config.Default()
	cfg.Chart.WidthInches = 5
	cfg.Chart.HeightInches = 3
	cfg.Chart.DPI = 72
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return NewRenderer(cfg, config.DefaultData(), logger)
}

func testDataset() *dataset.DelayDataset {
	dep := func(m time.Month, d int) time.Time {
		return time.Date(2024, m, d, 8, 0, 0, 0, time.UTC)
	}
	return dataset.New([]dataset.FlightRecord{
		{FlightID: "UA100", Airline: "UA", Origin: "JFK", Destination: "LAX", ScheduledDeparture: dep(time.March, 10), DelayMinutes: 12},
		{FlightID: "DL300", Airline: "DL", Origin: "JFK", Destination: "ATL", ScheduledDeparture: dep(time.April, 2), DelayMinutes: 45},
		{FlightID: "AA500", Airline: "AA", Origin: "ORD", Destination: "JFK", ScheduledDeparture: dep(time.March, 15), DelayMinutes: 95},
		{FlightID: "UA999", Airline: "UA", Origin: "SFO", Destination: "JFK", ScheduledDeparture: dep(time.April, 21), Cancelled: true},
		{FlightID: "DL800", Airline: "DL", Origin: "LAX", Destination: "SFO", ScheduledDeparture: dep(time.March, 28), DelayMinutes: -5},
	})
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("chart file missing: %v", err)
	}
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		t.Errorf("%s is not a png", path)
	}
}

func TestDelayBar(t *testing.T) {
	r := newTestRenderer(t)
	stats, err := processor.GroupStats(testDataset(), processor.DimAirline)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "charts", "by_airline.png")
	if err := r.DelayBar(stats, processor.DimAirline, path); err != nil {
		t.Fatalf("DelayBar: %v", err)
	}
	assertPNG(t, path)
}

func TestDelayBarEmptyStats(t *testing.T) {
	r := newTestRenderer(t)
	err := r.DelayBar(nil, processor.DimAirline, filepath.Join(t.TempDir(), "x.png"))
	if err != dataset.ErrNoRecords {
		t.Errorf("error = %v, want ErrNoRecords", err)
	}
}

func TestCategoryBars(t *testing.T) {
	r := newTestRenderer(t)
	path := filepath.Join(t.TempDir(), "severity.png")
	if err := r.CategoryBars(testDataset(), path); err != nil {
		t.Fatalf("CategoryBars: %v", err)
	}
	assertPNG(t, path)
}

func TestDelayHistogram(t *testing.T) {
	r := newTestRenderer(t)
	path := filepath.Join(t.TempDir(), "hist.png")
	if err := r.DelayHistogram(testDataset(), 10, path); err != nil {
		t.Fatalf("DelayHistogram: %v", err)
	}
	assertPNG(t, path)

	err := r.DelayHistogram(dataset.New(nil), 10, filepath.Join(t.TempDir(), "empty.png"))
	if err != dataset.ErrNoRecords {
		t.Errorf("empty dataset error = %v, want ErrNoRecords", err)
	}
}

func TestDelayHeatMap(t *testing.T) {
	r := newTestRenderer(t)
	pt, err := processor.Pivot(testDataset(), processor.DimAirline, processor.DimMonth)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "heatmap.png")
	if err := r.DelayHeatMap(pt, path); err != nil {
		t.Fatalf("DelayHeatMap: %v", err)
	}
	assertPNG(t, path)
}

func TestSavePNGBadTarget(t *testing.T) {
	r := newTestRenderer(t)
	stats, err := processor.GroupStats(testDataset(), processor.DimAirline)
	if err != nil {
		t.Fatal(err)
	}

	// Parent "directory" is a regular file, so the write must fail.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	err = r.DelayBar(stats, processor.DimAirline, filepath.Join(blocker, "out.png"))
	var fwe *dataset.FileWriteError
	if !errors.As(err, &fwe) {
		t.Fatalf("error = %v, want FileWriteError", err)
	}
	if fwe.Op != "chart" {
		t.Errorf("op = %q, want chart", fwe.Op)
	}
}
