package dataset

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// DelayDataset wraps the flight frame. Accessors hand out copies, so
// filtering and slicing never touch the data a caller already holds.
type DelayDataset struct {
	df dataframe.DataFrame
}

// New builds a dataset from parsed flight records. Carrier and airport
// codes are stored uppercase so matching is case insensitive.
func New(records []FlightRecord) *DelayDataset {
	n := len(records)
	ids := make([]string, n)
	airlines := make([]string, n)
	origins := make([]string, n)
	dests := make([]string, n)
	schedDeps := make([]string, n)
	actualDeps := make([]string, n)
	schedArrs := make([]string, n)
	actualArrs := make([]string, n)
	delays := make([]int, n)
	cancels := make([]bool, n)
	statuses := make([]string, n)
	months := make([]string, n)

	for i, r := range records {
		ids[i] = r.FlightID
		airlines[i] = strings.ToUpper(r.Airline)
		origins[i] = strings.ToUpper(r.Origin)
		dests[i] = strings.ToUpper(r.Destination)
		schedDeps[i] = formatTime(r.ScheduledDeparture)
		actualDeps[i] = formatTime(r.ActualDeparture)
		schedArrs[i] = formatTime(r.ScheduledArrival)
		actualArrs[i] = formatTime(r.ActualArrival)
		delays[i] = r.DelayMinutes
		cancels[i] = r.Cancelled
		statuses[i] = r.Status
		months[i] = r.Month()
	}

	df := dataframe.New(
		series.New(ids, series.String, ColFlightID),
		series.New(airlines, series.String, ColAirline),
		series.New(origins, series.String, ColOrigin),
		series.New(dests, series.String, ColDestination),
		series.New(schedDeps, series.String, ColSchedDep),
		series.New(actualDeps, series.String, ColActualDep),
		series.New(schedArrs, series.String, ColSchedArr),
		series.New(actualArrs, series.String, ColActualArr),
		series.New(delays, series.Int, ColDelay),
		series.New(cancels, series.Bool, ColCancelled),
		series.New(statuses, series.String, ColStatus),
		series.New(months, series.String, ColMonth),
	)
	return &DelayDataset{df: df}
}

// Err surfaces any error the underlying frame carries.
func (d *DelayDataset) Err() error {
	return d.df.Error()
}

// Len returns the number of flight records.
func (d *DelayDataset) Len() int {
	if d == nil {
		return 0
	}
	return d.df.Nrow()
}

// Frame returns a copy of the underlying DataFrame.
func (d *DelayDataset) Frame() dataframe.DataFrame {
	return d.df.Copy()
}

// Records rebuilds the flight records from the frame.
func (d *DelayDataset) Records() []FlightRecord {
	n := d.Len()
	if n == 0 {
		return nil
	}

	ids := d.df.Col(ColFlightID)
	airlines := d.df.Col(ColAirline)
	origins := d.df.Col(ColOrigin)
	dests := d.df.Col(ColDestination)
	schedDeps := d.df.Col(ColSchedDep)
	actualDeps := d.df.Col(ColActualDep)
	schedArrs := d.df.Col(ColSchedArr)
	actualArrs := d.df.Col(ColActualArr)
	delays := d.df.Col(ColDelay)
	cancels := d.df.Col(ColCancelled)
	statuses := d.df.Col(ColStatus)

	records := make([]FlightRecord, n)
	for i := 0; i < n; i++ {
		delay, _ := delays.Elem(i).Int()
		cancelled, _ := cancels.Elem(i).Bool()
		records[i] = FlightRecord{
			FlightID:           ids.Elem(i).String(),
			Airline:            airlines.Elem(i).String(),
			Origin:             origins.Elem(i).String(),
			Destination:        dests.Elem(i).String(),
			ScheduledDeparture: parseStoredTime(schedDeps.Elem(i).String()),
			ActualDeparture:    parseStoredTime(actualDeps.Elem(i).String()),
			ScheduledArrival:   parseStoredTime(schedArrs.Elem(i).String()),
			ActualArrival:      parseStoredTime(actualArrs.Elem(i).String()),
			DelayMinutes:       delay,
			Cancelled:          cancelled,
			Status:             statuses.Elem(i).String(),
		}
	}
	return records
}

// Airlines returns the distinct carrier codes, sorted.
func (d *DelayDataset) Airlines() []string {
	return d.uniqueSorted(ColAirline)
}

// Origins returns the distinct origin airport codes, sorted.
func (d *DelayDataset) Origins() []string {
	return d.uniqueSorted(ColOrigin)
}

// Airports returns the distinct airport codes seen as either origin or
// destination, sorted.
func (d *DelayDataset) Airports() []string {
	if d.Len() == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	for _, col := range []string{ColOrigin, ColDestination} {
		for _, v := range d.df.Col(col).Records() {
			if v != "" {
				seen[v] = struct{}{}
			}
		}
	}
	return sortedKeys(seen)
}

// Months returns the distinct months present, in calendar order.
func (d *DelayDataset) Months() []string {
	months := d.uniqueSorted(ColMonth)
	sort.Slice(months, func(i, j int) bool {
		return MonthIndex(months[i]) < MonthIndex(months[j])
	})
	return months
}

func (d *DelayDataset) uniqueSorted(col string) []string {
	if d.Len() == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	for _, v := range d.df.Col(col).Records() {
		if v != "" {
			seen[v] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FilterOptions compose with AND. Zero values mean no constraint.
// Airport matches a flight on either end of the route.
type FilterOptions struct {
	Airline          string
	Airport          string
	Month            string
	MinDelay         *int
	MaxDelay         *int
	DelayedOnly      bool
	ExcludeCancelled bool
}

// Describe lists the active criteria in readable form, for logging.
func (o FilterOptions) Describe() []string {
	var out []string
	if o.Airline != "" {
		out = append(out, fmt.Sprintf("airline=%s", strings.ToUpper(o.Airline)))
	}
	if o.Airport != "" {
		out = append(out, fmt.Sprintf("airport=%s (origin or destination)", strings.ToUpper(o.Airport)))
	}
	if o.Month != "" {
		out = append(out, fmt.Sprintf("month=%s", o.Month))
	}
	if o.MinDelay != nil {
		out = append(out, fmt.Sprintf("delay>=%dmin", *o.MinDelay))
	}
	if o.MaxDelay != nil {
		out = append(out, fmt.Sprintf("delay<=%dmin", *o.MaxDelay))
	}
	if o.DelayedOnly {
		out = append(out, "delayed only")
	}
	if o.ExcludeCancelled {
		out = append(out, "cancelled excluded")
	}
	return out
}

// Filter returns a new dataset holding the records matching every
// active criterion. An empty result is a valid dataset, not an error.
func (d *DelayDataset) Filter(opts FilterOptions) (*DelayDataset, error) {
	df := d.df.Copy()

	if opts.Airline != "" {
		df = df.Filter(dataframe.F{
			Colname: ColAirline, Comparator: series.Eq,
			Comparando: strings.ToUpper(opts.Airline),
		})
	}
	if opts.Airport != "" {
		code := strings.ToUpper(opts.Airport)
		df = df.FilterAggregation(dataframe.Or,
			dataframe.F{Colname: ColOrigin, Comparator: series.Eq, Comparando: code},
			dataframe.F{Colname: ColDestination, Comparator: series.Eq, Comparando: code},
		)
	}
	if opts.Month != "" {
		month, err := NormalizeMonth(opts.Month)
		if err != nil {
			return nil, err
		}
		df = df.Filter(dataframe.F{
			Colname: ColMonth, Comparator: series.Eq, Comparando: month,
		})
	}
	if opts.MinDelay != nil {
		df = df.Filter(dataframe.F{
			Colname: ColDelay, Comparator: series.GreaterEq, Comparando: *opts.MinDelay,
		})
	}
	if opts.MaxDelay != nil {
		df = df.Filter(dataframe.F{
			Colname: ColDelay, Comparator: series.LessEq, Comparando: *opts.MaxDelay,
		})
	}
	if opts.DelayedOnly {
		df = df.Filter(dataframe.F{
			Colname: ColDelay, Comparator: series.Greater, Comparando: 0,
		})
	}
	if opts.ExcludeCancelled {
		df = df.Filter(dataframe.F{
			Colname: ColCancelled, Comparator: series.Eq, Comparando: false,
		})
	}

	if err := df.Error(); err != nil {
		return nil, fmt.Errorf("applying filters: %w", err)
	}
	return &DelayDataset{df: df}, nil
}

// ByAirline keeps flights operated by the given carrier code.
func (d *DelayDataset) ByAirline(code string) (*DelayDataset, error) {
	return d.Filter(FilterOptions{Airline: code})
}

// ByAirport keeps flights touching the given airport on either end.
func (d *DelayDataset) ByAirport(code string) (*DelayDataset, error) {
	return d.Filter(FilterOptions{Airport: code})
}

// ByMonth keeps flights scheduled in the given month, named or numeric.
func (d *DelayDataset) ByMonth(month string) (*DelayDataset, error) {
	return d.Filter(FilterOptions{Month: month})
}

func parseStoredTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(TimeLayout, s)
	return t
}
