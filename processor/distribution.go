package processor

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/dataset"
)

// Delays extracts the delay column of the departed flights as floats.
func Delays(ds *dataset.DelayDataset) []float64 {
	if ds.Len() == 0 {
		return nil
	}
	flown := ds.Frame().Filter(dataframe.F{
		Colname: dataset.ColCancelled, Comparator: series.Eq, Comparando: false,
	})
	if flown.Nrow() == 0 {
		return nil
	}
	return flown.Col(dataset.ColDelay).Float()
}

// Histogram is a binned view of a delay distribution. Edges has one
// more entry than Counts.
type Histogram struct {
	Edges  []float64
	Counts []int
}

// Bins returns the number of bins.
func (h *Histogram) Bins() int {
	return len(h.Counts)
}

// Label renders the bin interval for axis labelling.
func (h *Histogram) Label(i int) string {
	return fmt.Sprintf("%.0f..%.0f", h.Edges[i], h.Edges[i+1])
}

// Distribution bins values into equal width buckets across their full
// range. A constant sample collapses into one unit wide bin.
func Distribution(values []float64, bins int) (*Histogram, error) {
	if len(values) == 0 {
		return nil, dataset.ErrNoRecords
	}
	if bins < 1 {
		return nil, fmt.Errorf("bin count %d must be positive", bins)
	}

	min := floats.Min(values)
	max := floats.Max(values)
	if min == max {
		return &Histogram{
			Edges:  []float64{min - 0.5, min + 0.5},
			Counts: []int{len(values)},
		}, nil
	}

	width := (max - min) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = min + float64(i)*width
	}
	edges[bins] = max

	counts := make([]int, bins)
	for _, v := range values {
		idx := int((v - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return &Histogram{Edges: edges, Counts: counts}, nil
}

// Categories in the order they are charted.
var categoryOrder = []string{
	dataset.CategoryOnTime,
	dataset.CategoryModerate,
	dataset.CategoryHigh,
	dataset.CategoryCancelled,
}

// CategoryOrder lists the delay categories in display order.
func CategoryOrder() []string {
	out := make([]string, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// CategoryCount pairs a delay category with how many flights fell in.
type CategoryCount struct {
	Category string
	Count    int
}

// CategoryCounts buckets the whole dataset by delay severity.
func CategoryCounts(ds *dataset.DelayDataset, moderateMax int) []CategoryCount {
	counts := make(map[string]int)
	for _, r := range ds.Records() {
		counts[r.DelayCategory(moderateMax)]++
	}

	out := make([]CategoryCount, 0, len(categoryOrder))
	for _, cat := range categoryOrder {
		out = append(out, CategoryCount{Category: cat, Count: counts[cat]})
	}
	return out
}

// CategoryCountsByAirline crosses severity with carrier: for every
// category, one count per airline, airlines sorted. Feeds the grouped
// severity chart.
func CategoryCountsByAirline(ds *dataset.DelayDataset, moderateMax int) ([]string, map[string][]float64) {
	airlines := ds.Airlines()
	idx := indexOf(airlines)

	perCategory := make(map[string][]float64, len(categoryOrder))
	for _, cat := range categoryOrder {
		perCategory[cat] = make([]float64, len(airlines))
	}

	for _, r := range ds.Records() {
		i, ok := idx[r.Airline]
		if !ok {
			continue
		}
		perCategory[r.DelayCategory(moderateMax)][i]++
	}
	return airlines, perCategory
}
