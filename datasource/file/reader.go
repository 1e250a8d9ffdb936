package file

import (
	"crypto/md5"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/tealeg/xlsx"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/config"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/dataset"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/utils"
)

// Drop reasons reported per row. Rows are dropped, never repaired.
const (
	dropColumnCount   = "column count mismatch"
	dropSyntax        = "csv syntax error"
	dropMissingField  = "missing required field"
	dropBadSchedule   = "bad scheduled departure"
	dropBadDelay      = "bad delay value"
	dropNoDelaySource = "delay missing and not derivable"
)

// requiredColumns must be present in every input file. delay_minutes is
// not among them: a missing delay can be derived from the departure pair.
var requiredColumns = []string{
	dataset.ColAirline,
	dataset.ColOrigin,
	dataset.ColDestination,
	dataset.ColSchedDep,
}

// Loader turns flight data files into datasets. Malformed rows are
// dropped and accounted for, never silently repaired.
type Loader struct {
	cfg  *config.Config
	dcfg *config.DataConfig
	log  *storage.Logger
}

func NewLoader(cfg *config.Config, dcfg *config.DataConfig, log *storage.Logger) *Loader {
	return &Loader{cfg: cfg, dcfg: dcfg, log: log}
}

// LoadReport accounts for what a load run consumed and dropped.
type LoadReport struct {
	Files        []string          // files scanned for rows
	SkippedFiles map[string]string // unusable file -> reason
	RowsRead     int
	RowsLoaded   int
	RowsDropped  int
	DropReasons  map[string]int
}

func newLoadReport() *LoadReport {
	return &LoadReport{
		SkippedFiles: make(map[string]string),
		DropReasons:  make(map[string]int),
	}
}

func (r *LoadReport) drop(reason string) {
	r.RowsDropped++
	r.DropReasons[reason]++
}

// Summary renders the report as a single log line.
func (r *LoadReport) Summary() string {
	return fmt.Sprintf("loaded %d of %d rows from %d files (%d dropped, %d files skipped)",
		r.RowsLoaded, r.RowsRead, len(r.Files), r.RowsDropped, len(r.SkippedFiles))
}

// LoadDir loads every file in the configured data directory matching
// the input glob.
func (l *Loader) LoadDir() (*dataset.DelayDataset, *LoadReport, error) {
	pattern := filepath.Join(l.cfg.DataDir, l.cfg.InputGlob)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("bad input glob %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, nil, &dataset.DataFormatError{
			Path:   pattern,
			Reason: "no input files match",
		}
	}
	return l.LoadFiles(paths)
}

// LoadFile loads a single flight data file.
func (l *Loader) LoadFile(path string) (*dataset.DelayDataset, *LoadReport, error) {
	return l.LoadFiles([]string{path})
}

// LoadFiles parses the given files into one dataset. Files that cannot
// be opened or lack required columns are skipped with a warning; the
// load fails only when no file yields a single usable row.
func (l *Loader) LoadFiles(paths []string) (*dataset.DelayDataset, *LoadReport, error) {
	report := newLoadReport()
	var records []dataset.FlightRecord

	for _, path := range paths {
		recs, err := l.readFile(path, report)
		if err != nil {
			report.SkippedFiles[path] = err.Error()
			l.log.Warning(fmt.Sprintf("skipping %s: %v", path, err))
			continue
		}
		report.Files = append(report.Files, path)
		records = append(records, recs...)
	}

	if report.RowsLoaded == 0 {
		label := l.cfg.DataDir
		if len(paths) == 1 {
			label = paths[0]
		}
		return nil, report, &dataset.DataFormatError{
			Path:   label,
			Reason: fmt.Sprintf("no usable rows in %d files", len(paths)),
		}
	}

	ds := dataset.New(records)
	if err := ds.Err(); err != nil {
		return nil, report, fmt.Errorf("building dataset: %w", err)
	}

	l.log.Info(report.Summary())
	return ds, report, nil
}

// readFile dispatches on the file extension and folds the rows into
// records, charging dropped rows to the report.
func (l *Loader) readFile(path string, report *LoadReport) ([]dataset.FlightRecord, error) {
	var (
		headers []string
		rows    [][]string
		err     error
	)

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".csv.gz"), strings.HasSuffix(lower, ".gz"):
		headers, rows, err = l.readCSV(path, true, report)
	case strings.HasSuffix(lower, ".xlsx"):
		headers, rows, err = l.readXLSX(path)
	default:
		headers, rows, err = l.readCSV(path, false, report)
	}
	if err != nil {
		return nil, err
	}

	cols := l.buildColumnIndex(headers)
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("required column %q not found", name)
		}
	}

	records := make([]dataset.FlightRecord, 0, len(rows))
	for _, row := range rows {
		report.RowsRead++
		if len(row) != len(headers) {
			report.drop(dropColumnCount)
			continue
		}
		rec, reason := l.parseRow(cols, row)
		if reason != "" {
			report.drop(reason)
			continue
		}
		records = append(records, rec)
		report.RowsLoaded++
	}
	return records, nil
}

// readCSV reads a csv file, optionally gzip compressed, decoding the
// configured input charset. Unreadable lines are dropped and charged to
// the report; a later line can still parse.
func (l *Loader) readCSV(path string, compressed bool, report *LoadReport) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var src io.Reader = f
	if compressed {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	r := csv.NewReader(charsetReader(l.cfg.Encoding, src))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}
	headers[0] = strings.TrimPrefix(headers[0], "﻿")

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			report.RowsRead++
			report.drop(dropSyntax)
			continue
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

// readXLSX reads the configured worksheet, falling back to the first
// one. Headers sit on the first row. Short rows are padded so trailing
// empty cells do not count against the row.
func (l *Loader) readXLSX(path string) ([]string, [][]string, error) {
	xlFile, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("xlsx open: %w", err)
	}
	if len(xlFile.Sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}

	sheet := xlFile.Sheet[l.cfg.SheetName]
	if sheet == nil {
		sheet = xlFile.Sheets[0]
	}
	if len(sheet.Rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.String())
	}
	if len(headers) == 0 {
		return nil, nil, fmt.Errorf("sheet %q has no header row", sheet.Name)
	}

	var rows [][]string
	for _, xr := range sheet.Rows[1:] {
		row := make([]string, len(headers))
		empty := true
		for i, cell := range xr.Cells {
			if i >= len(headers) {
				break
			}
			row[i] = cell.String()
			if row[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		rows = append(rows, row)
	}
	return headers, rows, nil
}

// buildColumnIndex maps canonical column names to positions, applying
// the configured header aliases first. The first match wins.
func (l *Loader) buildColumnIndex(headers []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range headers {
		name := normalizeHeader(h)
		if alias := l.dcfg.GetColumn(h); alias != "" {
			name = alias
		} else if alias := l.dcfg.GetColumn(name); alias != "" {
			name = alias
		}
		if _, taken := cols[name]; !taken {
			cols[name] = i
		}
	}
	return cols
}

func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	return strings.ReplaceAll(h, " ", "_")
}

// parseRow validates one data row. The returned reason is empty for a
// usable row and names the drop bucket otherwise.
func (l *Loader) parseRow(cols map[string]int, row []string) (dataset.FlightRecord, string) {
	get := func(name string) string {
		if i, ok := cols[name]; ok {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var rec dataset.FlightRecord
	rec.Airline = get(dataset.ColAirline)
	rec.Origin = get(dataset.ColOrigin)
	rec.Destination = get(dataset.ColDestination)
	if rec.Airline == "" || rec.Origin == "" || rec.Destination == "" {
		return rec, dropMissingField
	}

	schedDep, err := utils.ParseFlightTime(get(dataset.ColSchedDep))
	if err != nil || schedDep.IsZero() {
		return rec, dropBadSchedule
	}
	rec.ScheduledDeparture = schedDep

	// Optional timestamps degrade to the zero time instead of dropping
	// the row.
	rec.ActualDeparture, _ = utils.ParseFlightTime(get(dataset.ColActualDep))
	rec.ScheduledArrival, _ = utils.ParseFlightTime(get(dataset.ColSchedArr))
	rec.ActualArrival, _ = utils.ParseFlightTime(get(dataset.ColActualArr))

	rec.Status = get(dataset.ColStatus)
	rec.Cancelled = l.dcfg.IsCancelCode(rec.Status) || l.dcfg.IsCancelCode(get(dataset.ColCancelled))

	delayCell := get(dataset.ColDelay)
	switch {
	case delayCell != "":
		delay, ok := parseDelay(delayCell)
		if !ok {
			return rec, dropBadDelay
		}
		rec.DelayMinutes = delay
	case rec.Cancelled:
		rec.DelayMinutes = 0
	case !rec.ActualDeparture.IsZero():
		rec.DelayMinutes = int(rec.ActualDeparture.Sub(rec.ScheduledDeparture).Minutes())
	default:
		return rec, dropNoDelaySource
	}

	rec.FlightID = get(dataset.ColFlightID)
	if rec.FlightID == "" {
		rec.FlightID = synthFlightID(rec.Airline, rec.Origin, rec.Destination, get(dataset.ColSchedDep))
	}
	return rec, ""
}

// parseDelay accepts integer and float spellings of a minute count.
func parseDelay(cell string) (int, bool) {
	if v, err := strconv.Atoi(cell); err == nil {
		return v, true
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return int(math.Round(f)), true
	}
	return 0, false
}

// synthFlightID derives a stable id for rows that arrive without one.
func synthFlightID(airline, origin, dest, sched string) string {
	hash := md5.Sum([]byte(airline + origin + dest + sched))
	return hex.EncodeToString(hash[:])[:12]
}

// charsetReader wraps r with a decoder for the configured encoding.
// Unknown names pass bytes through untouched.
func charsetReader(enc string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "gbk":
		return transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())
	case "gb18030":
		return transform.NewReader(r, simplifiedchinese.GB18030.NewDecoder())
	case "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	default:
		return r
	}
}
