package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/config"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/datasource/file"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/processor"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
)

const pipelineCSV = `airline,origin,destination,scheduled_departure,delay_minutes,status
UA,JFK,LAX,2024-03-10 08:00:00,12,
UA,LAX,ORD,2024-03-11 09:30:00,0,
DL,JFK,ATL,2024-04-02 11:00:00,45,
AA,ORD,JFK,2024-03-15 14:00:00,95,
UA,SFO,JFK,2024-04-21 16:00:00,,CNCL
DL,ATL,JFK,2024-04-03 07:15:00,notanumber,
`

func newTestApp(t *testing.T) *app {
	t.Helper()
	base := t.TempDir()

	cfg := config.Default()
	cfg.DataDir = filepath.Join(base, "data")
	cfg.OutputDir = filepath.Join(base, "output")
	cfg.LogName = filepath.Join(base, "app.log")
	cfg.Chart.WidthInches = 4
	cfg.Chart.HeightInches = 3
	cfg.Chart.DPI = 72

	require.NoError(t, os.MkdirAll(cfg.DataDir, 0755))
	require.NoError(t, os.WriteFile(
		filepath.Join(cfg.DataDir, "flights.csv"), []byte(pipelineCSV), 0644))

	logger, err := storage.NewLogger(cfg.LogName)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	dcfg := config.DefaultData()
	return &app{
		cfg:    cfg,
		dcfg:   dcfg,
		log:    logger,
		loader: file.NewLoader(cfg, dcfg, logger),
	}
}

// Exercises the whole pipeline the report command runs: load, filter,
// aggregate, render, export.
func TestPipelineEndToEnd(t *testing.T) {
	a := newTestApp(t)

	ds, rep, err := a.loadDataset("")
	require.NoError(t, err)
	require.Equal(t, 5, ds.Len())
	assert.Equal(t, 6, rep.RowsRead)
	assert.Equal(t, 1, rep.RowsDropped)

	// Filtering by an airline then grouping by airline yields that one key.
	ua, err := ds.ByAirline("UA")
	require.NoError(t, err)
	stats, err := processor.GroupStats(ua, processor.DimAirline)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "UA", stats[0].Key)
	assert.Equal(t, 3, stats[0].Count)
	assert.Equal(t, 1, stats[0].CancelledCount)

	// Same dataset twice gives identical stats.
	again, err := processor.GroupStats(ua, processor.DimAirline)
	require.NoError(t, err)
	assert.Equal(t, stats, again)

	// A filter that matches nothing is not an error, and neither is
	// aggregating the empty result.
	may, err := ds.ByMonth("May")
	require.NoError(t, err)
	assert.Equal(t, 0, may.Len())
	mayStats, err := processor.GroupStats(may, processor.DimMonth)
	require.NoError(t, err)
	assert.Empty(t, mayStats)

	s, err := processor.Summarize(ds)
	require.NoError(t, err)
	text := formatSummary(s, rep)
	assert.Contains(t, text, "Flights:       5 (1 cancelled)")
	assert.Contains(t, text, "Rows dropped:  1 of 6 read")

	charts, err := renderCharts(a, ds, a.cfg.OutputDir, "", 10)
	require.NoError(t, err)
	require.Len(t, charts, 7)
	for _, path := range charts {
		data, err := os.ReadFile(path)
		require.NoError(t, err, path)
		require.True(t, len(data) > 8, path)
		assert.Equal(t, "\x89PNG\r\n\x1a\n", string(data[:8]), path)
	}

	exports, err := exportStats(a, ds, a.cfg.OutputDir, "both")
	require.NoError(t, err)
	require.Len(t, exports, 6)
	for _, path := range exports {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.NotZero(t, info.Size(), path)
	}
}

func TestRenderChartsOnlyKind(t *testing.T) {
	a := newTestApp(t)

	ds, _, err := a.loadDataset("")
	require.NoError(t, err)

	files, err := renderCharts(a, ds, a.cfg.OutputDir, "hist", 10)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0], "delay_histogram.png"))
}

func TestFilterFlagsOptions(t *testing.T) {
	f := &filterFlags{airline: "ua", month: "3", minDelay: "10", maxDelay: "50"}
	opts, err := f.options()
	require.NoError(t, err)
	assert.Equal(t, "ua", opts.Airline)
	require.NotNil(t, opts.MinDelay)
	assert.Equal(t, 10, *opts.MinDelay)
	require.NotNil(t, opts.MaxDelay)
	assert.Equal(t, 50, *opts.MaxDelay)

	bad := &filterFlags{minDelay: "soon"}
	_, err = bad.options()
	require.Error(t, err)
}

func TestFormatSummary(t *testing.T) {
	s := &processor.Summary{
		TotalFlights: 8,
		Airlines:     []string{"AA", "DL", "UA"},
		Airports:     []string{"ATL", "JFK", "LAX"},
		Months:       []string{"March", "April"},
		From:         time.Date(2024, time.March, 10, 8, 0, 0, 0, time.UTC),
		To:           time.Date(2024, time.April, 21, 16, 0, 0, 0, time.UTC),
		Overall: processor.AggregateStat{
			Count: 8, CancelledCount: 1,
			Mean: 26.29, Median: 12, Max: 95,
			OnTimePct: 42.86, DelayedPct: 57.14,
		},
	}

	text := formatSummary(s, nil)
	assert.Contains(t, text, "Flights:       8 (1 cancelled)")
	assert.Contains(t, text, "Airlines:      3 (AA, DL, UA)")
	assert.Contains(t, text, "Months:        March, April")
	assert.Contains(t, text, "Schedule span: 2024-03-10 .. 2024-04-21")
	assert.Contains(t, text, "On-time:       42.86%")
	assert.NotContains(t, text, "Rows dropped")
}

func TestOutputDirFallback(t *testing.T) {
	a := &app{cfg: config.Default()}
	assert.Equal(t, "output", a.outputDir(""))
	assert.Equal(t, "elsewhere", a.outputDir("elsewhere"))
}
