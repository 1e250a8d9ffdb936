package chart

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/dataset"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/processor"
)

// pivotGrid adapts a PivotTable to the plotter grid interface. The
// matrix runs rows by cols while the grid speaks cols by rows.
type pivotGrid struct {
	pt *processor.PivotTable
}

func (g pivotGrid) Dims() (c, r int)   { return len(g.pt.Cols), len(g.pt.Rows) }
func (g pivotGrid) Z(c, r int) float64 { return g.pt.At(r, c) }
func (g pivotGrid) X(c int) float64    { return float64(c) }
func (g pivotGrid) Y(r int) float64    { return float64(r) }

// DelayHeatMap renders the pivot as a heat map with labelled axes and
// the mean delay written into each cell.
func (r *Renderer) DelayHeatMap(pt *processor.PivotTable, path string) error {
	if pt == nil || len(pt.Rows) == 0 || len(pt.Cols) == 0 {
		return dataset.ErrNoRecords
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Mean Delay by %s and %s", dimTitle(pt.RowDim), dimTitle(pt.ColDim))
	p.X.Label.Text = dimTitle(pt.ColDim)
	p.Y.Label.Text = dimTitle(pt.RowDim)

	p.Add(plotter.NewHeatMap(pivotGrid{pt: pt}, palette.Heat(12, 1)))

	xticks := make([]plot.Tick, len(pt.Cols))
	for i, c := range pt.Cols {
		xticks[i] = plot.Tick{Value: float64(i), Label: c}
	}
	yticks := make([]plot.Tick, len(pt.Rows))
	for i, row := range pt.Rows {
		yticks[i] = plot.Tick{Value: float64(i), Label: row}
	}
	p.X.Tick.Marker = plot.ConstantTicks(xticks)
	p.Y.Tick.Marker = plot.ConstantTicks(yticks)

	if err := annotateCells(p, pt); err != nil {
		return err
	}

	if err := r.savePNG(p, path); err != nil {
		return err
	}
	r.log.Info(fmt.Sprintf("chart saved: %s", path))
	return nil
}

// annotateCells writes each cell's value at its center.
func annotateCells(p *plot.Plot, pt *processor.PivotTable) error {
	n := len(pt.Rows) * len(pt.Cols)
	xys := make(plotter.XYs, 0, n)
	texts := make([]string, 0, n)
	for ri := range pt.Rows {
		for ci := range pt.Cols {
			xys = append(xys, plotter.XY{X: float64(ci), Y: float64(ri)})
			texts = append(texts, fmt.Sprintf("%.1f", pt.At(ri, ci)))
		}
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return fmt.Errorf("cell labels: %w", err)
	}
	p.Add(labels)
	return nil
}
