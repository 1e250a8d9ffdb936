package processor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/stat"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/dataset"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/utils"
)

// Dimension selects what flights are grouped by.
type Dimension string

const (
	DimAirline Dimension = "airline"
	DimAirport Dimension = "airport"
	DimMonth   Dimension = "month"
)

// ParseDimension maps user input onto a Dimension.
func ParseDimension(s string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "airline", "carrier":
		return DimAirline, nil
	case "airport":
		return DimAirport, nil
	case "month":
		return DimMonth, nil
	}
	return "", fmt.Errorf("unknown dimension %q (want airline, airport or month)", s)
}

// AggregateStat is the delay profile of one group. Count covers every
// flight in the group; the delay statistics cover only the flights that
// actually departed, with cancellations reported separately. Percent
// fields use the departed flights as denominator.
type AggregateStat struct {
	Key            string
	Count          int
	CancelledCount int
	Mean           float64
	Median         float64
	Min            float64
	Max            float64
	StdDev         float64
	OnTimePct      float64
	DelayedPct     float64
}

// GroupStats aggregates the dataset along dim. Groups come back in a
// deterministic order: lexicographic for airlines and airports,
// calendar order for months. Airport grouping counts a flight at both
// ends of its route. An empty dataset yields no groups and no error.
func GroupStats(ds *dataset.DelayDataset, dim Dimension) ([]AggregateStat, error) {
	if ds.Len() == 0 {
		return nil, nil
	}
	switch dim {
	case DimAirline:
		return frameGroupStats(ds.Frame(), dataset.ColAirline, lexicalOrder)
	case DimMonth:
		return frameGroupStats(ds.Frame(), dataset.ColMonth, calendarOrder)
	case DimAirport:
		return airportGroupStats(ds), nil
	}
	return nil, fmt.Errorf("unknown dimension %q", dim)
}

func frameGroupStats(df dataframe.DataFrame, col string, order func([]AggregateStat)) ([]AggregateStat, error) {
	grouped := df.GroupBy(col)
	if grouped.Err != nil {
		return nil, fmt.Errorf("grouping by %s: %w", col, grouped.Err)
	}

	groups := grouped.GetGroups()
	stats := make([]AggregateStat, 0, len(groups))
	for _, g := range groups {
		// Read the label from the group itself rather than the map key.
		key := g.Col(col).Elem(0).String()
		if key == "" {
			continue
		}
		stats = append(stats, statFromGroup(key, g))
	}
	order(stats)
	return stats, nil
}

// airportGroupStats buckets each flight under its origin and its
// destination. A flight routed back to its origin counts once.
func airportGroupStats(ds *dataset.DelayDataset) []AggregateStat {
	type bucket struct {
		delays    []float64
		count     int
		cancelled int
	}
	buckets := make(map[string]*bucket)

	add := func(code string, r dataset.FlightRecord) {
		if code == "" {
			return
		}
		b := buckets[code]
		if b == nil {
			b = &bucket{}
			buckets[code] = b
		}
		b.count++
		if r.Cancelled {
			b.cancelled++
			return
		}
		b.delays = append(b.delays, float64(r.DelayMinutes))
	}

	for _, r := range ds.Records() {
		add(r.Origin, r)
		if r.Destination != r.Origin {
			add(r.Destination, r)
		}
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stats := make([]AggregateStat, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		st := AggregateStat{Key: k, Count: b.count, CancelledCount: b.cancelled}
		fillDelayStats(&st, b.delays)
		stats = append(stats, st)
	}
	return stats
}

func statFromGroup(key string, g dataframe.DataFrame) AggregateStat {
	flown := g.Filter(dataframe.F{
		Colname: dataset.ColCancelled, Comparator: series.Eq, Comparando: false,
	})
	delays := flown.Col(dataset.ColDelay).Float()

	st := AggregateStat{
		Key:            key,
		Count:          g.Nrow(),
		CancelledCount: g.Nrow() - flown.Nrow(),
	}
	fillDelayStats(&st, delays)
	return st
}

// fillDelayStats computes the numeric fields from the departed flight
// delays. A group with no departed flights keeps all zeros.
func fillDelayStats(st *AggregateStat, delays []float64) {
	n := len(delays)
	if n == 0 {
		return
	}

	sorted := make([]float64, n)
	copy(sorted, delays)
	sort.Float64s(sorted)

	st.Mean = utils.Round2(stat.Mean(delays, nil))
	st.Median = utils.Round2(median(sorted))
	st.Min = sorted[0]
	st.Max = sorted[n-1]
	if n > 1 {
		st.StdDev = utils.Round2(stat.StdDev(delays, nil))
	}

	onTime, delayed := 0, 0
	for _, d := range delays {
		if d > 0 {
			delayed++
		} else {
			onTime++
		}
	}
	st.OnTimePct = utils.Round2(float64(onTime) / float64(n) * 100)
	st.DelayedPct = utils.Round2(float64(delayed) / float64(n) * 100)
}

// median of a sorted sample, averaging the two middle values for even
// sizes.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func lexicalOrder(stats []AggregateStat) {
	sort.Slice(stats, func(i, j int) bool { return stats[i].Key < stats[j].Key })
}

func calendarOrder(stats []AggregateStat) {
	sort.Slice(stats, func(i, j int) bool {
		return dataset.MonthIndex(stats[i].Key) < dataset.MonthIndex(stats[j].Key)
	})
}

// Summary is the dataset wide snapshot shown by the summary command.
type Summary struct {
	TotalFlights int
	Airlines     []string
	Airports     []string
	Months       []string
	From, To     time.Time
	Overall      AggregateStat
}

// Summarize builds the overall snapshot. It needs at least one record.
func Summarize(ds *dataset.DelayDataset) (*Summary, error) {
	if ds.Len() == 0 {
		return nil, dataset.ErrNoRecords
	}

	s := &Summary{
		TotalFlights: ds.Len(),
		Airlines:     ds.Airlines(),
		Airports:     ds.Airports(),
		Months:       ds.Months(),
		Overall:      statFromGroup("all flights", ds.Frame()),
	}

	for _, r := range ds.Records() {
		t := r.ScheduledDeparture
		if t.IsZero() {
			continue
		}
		if s.From.IsZero() || t.Before(s.From) {
			s.From = t
		}
		if s.To.IsZero() || t.After(s.To) {
			s.To = t
		}
	}
	return s, nil
}
