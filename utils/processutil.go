package utils

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xuri/excelize/v2"
)

// timeLayouts are the timestamp shapes accepted in flight data files,
// most common first.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339,
	"2006-01-02T15:04",
	"2006/01/02 15:04",
	"2006-01-02",
}

// EnsureDir creates dirPath if needed and verifies it is a directory.
func EnsureDir(dirPath string) error {
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// HasColumn reports whether the DataFrame has a column called name.
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// ParseFlightTime parses a timestamp cell. An empty string yields the
// zero time with no error so optional columns stay optional. Bare
// numbers are read as Excel serial dates, which unformatted xlsx
// datetime cells arrive as.
func ParseFlightTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if t, ok := parseExcelSerial(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// excelEpoch is the zero of Excel's serial date system.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// parseExcelSerial converts a fractional day count since the Excel
// epoch. Serials landing outside 1930..2100 are rejected as malformed
// cells rather than dates.
func parseExcelSerial(s string) (time.Time, bool) {
	serial, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}
	days := int(serial)
	frac := serial - float64(days)
	t := excelEpoch.AddDate(0, 0, days).Add(time.Duration(frac * float64(24*time.Hour)))
	if t.Year() < 1930 || t.Year() > 2100 {
		return time.Time{}, false
	}
	return t, true
}

// ParseTime parses a timestamp element from a DataFrame column.
func ParseTime(s series.Element) (time.Time, error) {
	if s.IsNA() {
		return time.Time{}, nil
	}
	return ParseFlightTime(s.String())
}

// Round2 rounds to two decimal places, the precision used in exported
// statistics.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SaveToExcel writes a DataFrame to an xlsx file, headers on row one.
func SaveToExcel(df dataframe.DataFrame, filePath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sheet1"

	colNames := df.Names()
	for i, name := range colNames {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, name)
	}

	for rowIdx := 0; rowIdx < df.Nrow(); rowIdx++ {
		for colIdx, colName := range colNames {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := df.Col(colName).Val(rowIdx)
			f.SetCellValue(sheetName, cell, val)
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("saving excel file: %w", err)
	}

	return nil
}
