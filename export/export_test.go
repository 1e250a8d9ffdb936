package export

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/config"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/dataset"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/processor"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
)

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { logger.Close() })
	return NewExporter(config.Default(), logger)
}

func testDataset(t *testing.T) *dataset.DelayDataset {
	t.Helper()
	day := func(m time.Month, d int) time.Time {
		return time.Date(2024, m, d, 9, 0, 0, 0, time.UTC)
	}
	ds := dataset.New([]dataset.FlightRecord{
		{FlightID: "UA100", Airline: "UA", Origin: "JFK", Destination: "LAX",
			ScheduledDeparture: day(time.March, 10), DelayMinutes: 20},
		{FlightID: "UA200", Airline: "UA", Origin: "LAX", Destination: "ORD",
			ScheduledDeparture: day(time.March, 11), DelayMinutes: 30},
		{FlightID: "DL300", Airline: "DL", Origin: "JFK", Destination: "ATL",
			ScheduledDeparture: day(time.April, 2), DelayMinutes: -5},
		{FlightID: "AA500", Airline: "AA", Origin: "ORD", Destination: "JFK",
			ScheduledDeparture: day(time.April, 5), Cancelled: true, Status: "CNCL"},
	})
	if err := ds.Err(); err != nil {
		t.Fatal(err)
	}
	return ds
}

func testStats(t *testing.T) []processor.AggregateStat {
	t.Helper()
	stats, err := processor.GroupStats(testDataset(t), processor.DimAirline)
	if err != nil {
		t.Fatal(err)
	}
	return stats
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestStatsCSV(t *testing.T) {
	ex := newTestExporter(t)
	stats := testStats(t)
	path := filepath.Join(t.TempDir(), "out", "stats.csv")

	if err := ex.StatsCSV(stats, processor.DimAirline, path); err != nil {
		t.Fatalf("StatsCSV: %v", err)
	}

	lines := readLines(t, path)
	wantHeader := "airline,total_flights,cancelled_flights,avg_delay,median_delay," +
		"min_delay,max_delay,std_delay,on_time_pct,delayed_pct"
	if lines[0] != wantHeader {
		t.Fatalf("header = %q, want %q", lines[0], wantHeader)
	}
	if len(lines) != len(stats)+1 {
		t.Fatalf("got %d data rows, want %d", len(lines)-1, len(stats))
	}

	// Airlines come out sorted, so UA is last: 2 flights averaging 25.
	ua := strings.Split(lines[len(lines)-1], ",")
	if ua[0] != "UA" || ua[1] != "2" || ua[2] != "0" {
		t.Fatalf("UA row = %v", ua)
	}
	if ua[3] != "25.00" || ua[4] != "25.00" || ua[5] != "20.00" || ua[6] != "30.00" {
		t.Fatalf("UA delay columns = %v", ua[3:7])
	}
	if ua[8] != "0.00" || ua[9] != "100.00" {
		t.Fatalf("UA percentage columns = %v", ua[8:])
	}

	// The cancelled AA flight still counts but contributes no delays.
	aa := strings.Split(lines[1], ",")
	if aa[0] != "AA" || aa[1] != "1" || aa[2] != "1" || aa[3] != "0.00" {
		t.Fatalf("AA row = %v", aa)
	}
}

func TestStatsCSVEmpty(t *testing.T) {
	ex := newTestExporter(t)
	path := filepath.Join(t.TempDir(), "stats.csv")

	if err := ex.StatsCSV(nil, processor.DimMonth, path); err != nil {
		t.Fatalf("StatsCSV: %v", err)
	}
	lines := readLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("empty stats produced %d lines, want header only", len(lines))
	}
	if !strings.HasPrefix(lines[0], "month,") {
		t.Fatalf("header = %q", lines[0])
	}
}

func TestRecordsCSV(t *testing.T) {
	ex := newTestExporter(t)
	ds := testDataset(t)
	path := filepath.Join(t.TempDir(), "records.csv")

	if err := ex.RecordsCSV(ds, path); err != nil {
		t.Fatalf("RecordsCSV: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != ds.Len()+1 {
		t.Fatalf("got %d data rows, want %d", len(lines)-1, ds.Len())
	}
	for _, col := range []string{dataset.ColFlightID, dataset.ColAirline, dataset.ColDelay} {
		if !strings.Contains(lines[0], col) {
			t.Fatalf("header %q missing column %q", lines[0], col)
		}
	}
}

func TestRecordsCSVEmptyDataset(t *testing.T) {
	ex := newTestExporter(t)
	ds := dataset.New(nil)
	if err := ds.Err(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "records.csv")

	if err := ex.RecordsCSV(ds, path); err != nil {
		t.Fatalf("RecordsCSV: %v", err)
	}
	if lines := readLines(t, path); len(lines) != 1 {
		t.Fatalf("empty dataset produced %d lines, want header only", len(lines))
	}
}

func TestStatsXLSX(t *testing.T) {
	ex := newTestExporter(t)
	stats := testStats(t)
	path := filepath.Join(t.TempDir(), "stats.xlsx")

	if err := ex.StatsXLSX(stats, processor.DimAirline, path); err != nil {
		t.Fatalf("StatsXLSX: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue(statsSheet, "A1"); got != "airline" {
		t.Fatalf("A1 = %q", got)
	}
	if got, _ := f.GetCellValue(statsSheet, "A2"); got != "AA" {
		t.Fatalf("A2 = %q", got)
	}
	if got, _ := f.GetCellValue(statsSheet, "B4"); got != "2" {
		t.Fatalf("UA total_flights = %q", got)
	}
	mean, _ := f.GetCellValue(statsSheet, "D4")
	if v, err := strconv.ParseFloat(mean, 64); err != nil || math.Abs(v-25) > 0.001 {
		t.Fatalf("UA avg_delay = %q", mean)
	}
}

func TestRecordsXLSX(t *testing.T) {
	ex := newTestExporter(t)
	ds := testDataset(t)
	path := filepath.Join(t.TempDir(), "records.xlsx")

	if err := ex.RecordsXLSX(ds, path); err != nil {
		t.Fatalf("RecordsXLSX: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue("Sheet1", "A1"); got != dataset.ColFlightID {
		t.Fatalf("A1 = %q", got)
	}
	rows, err := f.GetRows("Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != ds.Len()+1 {
		t.Fatalf("got %d rows, want %d", len(rows), ds.Len()+1)
	}
}

func TestStatsCSVBadTarget(t *testing.T) {
	ex := newTestExporter(t)
	block := filepath.Join(t.TempDir(), "block")
	if err := os.WriteFile(block, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	err := ex.StatsCSV(testStats(t), processor.DimAirline, filepath.Join(block, "stats.csv"))
	var fwErr *dataset.FileWriteError
	if !errors.As(err, &fwErr) {
		t.Fatalf("err = %v, want FileWriteError", err)
	}
	if fwErr.Op != "csv" {
		t.Fatalf("Op = %q, want csv", fwErr.Op)
	}
}
