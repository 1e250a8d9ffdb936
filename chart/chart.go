package chart

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/config"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/dataset"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/processor"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/utils"
)

var (
	steelBlue = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	green     = color.RGBA{R: 76, G: 175, B: 80, A: 255}
	orange    = color.RGBA{R: 255, G: 152, B: 0, A: 255}
	red       = color.RGBA{R: 211, G: 47, B: 47, A: 255}
	grey      = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// Renderer draws delay charts as PNG files sized and scaled per the
// chart configuration.
type Renderer struct {
	cfg  *config.Config
	dcfg *config.DataConfig
	log  *storage.Logger
}

func NewRenderer(cfg *config.Config, dcfg *config.DataConfig, log *storage.Logger) *Renderer {
	return &Renderer{cfg: cfg, dcfg: dcfg, log: log}
}

// DelayBar renders one bar per group mean. Airline and airport groups
// are ordered by mean delay descending; months keep calendar order.
// Bars are annotated with their value.
func (r *Renderer) DelayBar(stats []processor.AggregateStat, dim processor.Dimension, path string) error {
	if len(stats) == 0 {
		return dataset.ErrNoRecords
	}

	ordered := make([]processor.AggregateStat, len(stats))
	copy(ordered, stats)
	if dim != processor.DimMonth {
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Mean > ordered[j].Mean })
	}

	values := make(plotter.Values, len(ordered))
	labels := make([]string, len(ordered))
	for i, s := range ordered {
		values[i] = s.Mean
		labels[i] = r.displayLabel(s.Key, dim)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Average Delay by %s", dimTitle(dim))
	p.Y.Label.Text = "Average delay (minutes)"

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return fmt.Errorf("bar chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = steelBlue
	p.Add(bars)
	p.NominalX(labels...)

	if err := r.annotateBars(p, values); err != nil {
		return err
	}

	if err := r.savePNG(p, path); err != nil {
		return err
	}
	r.log.Info(fmt.Sprintf("chart saved: %s", path))
	return nil
}

// CategoryBars renders delay severity counts grouped per airline.
func (r *Renderer) CategoryBars(ds *dataset.DelayDataset, path string) error {
	moderateMax := r.dcfg.GetThreshold("moderate_delay", 30)
	airlines, perCategory := processor.CategoryCountsByAirline(ds, moderateMax)
	if len(airlines) == 0 {
		return dataset.ErrNoRecords
	}

	p := plot.New()
	p.Title.Text = "Delay Severity by Airline"
	p.Y.Label.Text = "Flights"

	w := vg.Points(12)
	colors := []color.Color{green, orange, red, grey}
	offsets := []vg.Length{-1.5 * w, -0.5 * w, 0.5 * w, 1.5 * w}

	for i, cat := range processor.CategoryOrder() {
		bars, err := plotter.NewBarChart(plotter.Values(perCategory[cat]), w)
		if err != nil {
			return fmt.Errorf("bar chart: %w", err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = colors[i]
		bars.Offset = offsets[i]
		p.Add(bars)
		p.Legend.Add(cat, bars)
	}

	names := make([]string, len(airlines))
	for i, code := range airlines {
		names[i] = r.dcfg.AirlineName(code)
	}
	p.NominalX(names...)
	p.Legend.Top = true

	if err := r.savePNG(p, path); err != nil {
		return err
	}
	r.log.Info(fmt.Sprintf("chart saved: %s", path))
	return nil
}

// DelayHistogram renders the binned delay distribution of the departed
// flights.
func (r *Renderer) DelayHistogram(ds *dataset.DelayDataset, bins int, path string) error {
	hist, err := processor.Distribution(processor.Delays(ds), bins)
	if err != nil {
		return err
	}

	values := make(plotter.Values, hist.Bins())
	labels := make([]string, hist.Bins())
	step := hist.Bins() / 10
	if step < 1 {
		step = 1
	}
	for i, c := range hist.Counts {
		values[i] = float64(c)
		if i%step == 0 {
			labels[i] = fmt.Sprintf("%.0f", hist.Edges[i])
		}
	}

	p := plot.New()
	p.Title.Text = "Delay Distribution"
	p.X.Label.Text = "Delay (minutes)"
	p.Y.Label.Text = "Flights"

	width := vg.Points(600 / float64(hist.Bins()))
	if width > vg.Points(20) {
		width = vg.Points(20)
	}
	bars, err := plotter.NewBarChart(values, width)
	if err != nil {
		return fmt.Errorf("bar chart: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = steelBlue
	p.Add(bars)
	p.NominalX(labels...)

	if err := r.savePNG(p, path); err != nil {
		return err
	}
	r.log.Info(fmt.Sprintf("chart saved: %s", path))
	return nil
}

// annotateBars writes each bar's value just above it.
func (r *Renderer) annotateBars(p *plot.Plot, values plotter.Values) error {
	var max float64
	for _, v := range values {
		if v > max {
			max = v
		}
	}
	offset := max * 0.02

	xys := make(plotter.XYs, len(values))
	texts := make([]string, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v + offset}
		texts[i] = fmt.Sprintf("%.1f", v)
	}

	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: texts})
	if err != nil {
		return fmt.Errorf("bar labels: %w", err)
	}
	p.Add(labels)
	return nil
}

// savePNG rasterizes the plot at the configured size and resolution.
func (r *Renderer) savePNG(p *plot.Plot, path string) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return &dataset.FileWriteError{Path: path, Op: "chart", Err: err}
	}

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(r.cfg.Chart.WidthInches)*vg.Inch, vg.Length(r.cfg.Chart.HeightInches)*vg.Inch),
		vgimg.UseDPI(r.cfg.Chart.DPI),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(path)
	if err != nil {
		return &dataset.FileWriteError{Path: path, Op: "chart", Err: err}
	}
	defer f.Close()

	png := vgimg.PngCanvas{Canvas: c}
	if _, err := png.WriteTo(f); err != nil {
		return &dataset.FileWriteError{Path: path, Op: "chart", Err: err}
	}
	return nil
}

func (r *Renderer) displayLabel(key string, dim processor.Dimension) string {
	if dim == processor.DimAirline {
		return r.dcfg.AirlineName(key)
	}
	return key
}

func dimTitle(dim processor.Dimension) string {
	switch dim {
	case processor.DimAirline:
		return "Airline"
	case processor.DimAirport:
		return "Airport"
	case processor.DimMonth:
		return "Month"
	}
	return string(dim)
}
