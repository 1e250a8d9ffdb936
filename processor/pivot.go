package processor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/dataset"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/utils"
)

// PivotTable is a mean delay matrix over two dimensions, the backing
// data of the heat map. Cells with no departed flights hold zero.
type PivotTable struct {
	RowDim Dimension
	ColDim Dimension
	Rows   []string
	Cols   []string
	M      *mat.Dense
}

// Pivot crosses two distinct dimensions into a mean delay matrix.
// On the airport axis a flight is attributed to its origin only, so a
// cell never counts a flight twice. Cancelled flights stay out.
func Pivot(ds *dataset.DelayDataset, rowDim, colDim Dimension) (*PivotTable, error) {
	if rowDim == colDim {
		return nil, fmt.Errorf("pivot needs two distinct dimensions, got %s twice", rowDim)
	}
	if ds.Len() == 0 {
		return nil, dataset.ErrNoRecords
	}

	rows := dimValues(ds, rowDim)
	cols := dimValues(ds, colDim)
	if len(rows) == 0 || len(cols) == 0 {
		return nil, dataset.ErrNoRecords
	}

	rowIdx := indexOf(rows)
	colIdx := indexOf(cols)

	sums := mat.NewDense(len(rows), len(cols), nil)
	counts := mat.NewDense(len(rows), len(cols), nil)

	for _, rec := range ds.Records() {
		if rec.Cancelled {
			continue
		}
		ri, ok := rowIdx[dimValue(rec, rowDim)]
		if !ok {
			continue
		}
		ci, ok := colIdx[dimValue(rec, colDim)]
		if !ok {
			continue
		}
		sums.Set(ri, ci, sums.At(ri, ci)+float64(rec.DelayMinutes))
		counts.Set(ri, ci, counts.At(ri, ci)+1)
	}

	m := mat.NewDense(len(rows), len(cols), nil)
	for ri := range rows {
		for ci := range cols {
			if n := counts.At(ri, ci); n > 0 {
				m.Set(ri, ci, utils.Round2(sums.At(ri, ci)/n))
			}
		}
	}

	return &PivotTable{
		RowDim: rowDim,
		ColDim: colDim,
		Rows:   rows,
		Cols:   cols,
		M:      m,
	}, nil
}

// At returns the cell value by row and column position.
func (p *PivotTable) At(row, col int) float64 {
	return p.M.At(row, col)
}

// MaxAbs returns the largest cell magnitude, used to scale the colour
// range of the heat map.
func (p *PivotTable) MaxAbs() float64 {
	var max float64
	r, c := p.M.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := p.M.At(i, j)
			if v < 0 {
				v = -v
			}
			if v > max {
				max = v
			}
		}
	}
	return max
}

func dimValues(ds *dataset.DelayDataset, dim Dimension) []string {
	switch dim {
	case DimAirline:
		return ds.Airlines()
	case DimAirport:
		return ds.Origins()
	case DimMonth:
		return ds.Months()
	}
	return nil
}

func dimValue(rec dataset.FlightRecord, dim Dimension) string {
	switch dim {
	case DimAirline:
		return rec.Airline
	case DimAirport:
		return rec.Origin
	case DimMonth:
		return rec.Month()
	}
	return ""
}

func indexOf(values []string) map[string]int {
	idx := make(map[string]int, len(values))
	for i, v := range values {
		idx[v] = i
	}
	return idx
}
