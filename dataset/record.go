package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Canonical column names of the flight frame. Input headers are mapped
// onto these before anything downstream sees the data.
const (
	ColFlightID    = "flight_id"
	ColAirline     = "airline"
	ColOrigin      = "origin"
	ColDestination = "destination"
	ColSchedDep    = "scheduled_departure"
	ColActualDep   = "actual_departure"
	ColSchedArr    = "scheduled_arrival"
	ColActualArr   = "actual_arrival"
	ColDelay       = "delay_minutes"
	ColCancelled   = "cancelled"
	ColStatus      = "status"
	ColMonth       = "month"
)

// Delay categories used in charts and summaries.
const (
	CategoryOnTime    = "On-time"
	CategoryModerate  = "Moderate Delay"
	CategoryHigh      = "High Delay"
	CategoryCancelled = "Cancelled"
)

// TimeLayout is the canonical timestamp format inside the frame.
const TimeLayout = "2006-01-02 15:04:05"

// FlightRecord is one flight as parsed from an input file. DelayMinutes
// may be negative for early departures.
type FlightRecord struct {
	FlightID           string
	Airline            string
	Origin             string
	Destination        string
	ScheduledDeparture time.Time
	ActualDeparture    time.Time
	ScheduledArrival   time.Time
	ActualArrival      time.Time
	DelayMinutes       int
	Cancelled          bool
	Status             string
}

// IsDelayed reports whether the flight left late at all.
func (r FlightRecord) IsDelayed() bool {
	return r.DelayMinutes > 0
}

// DelayCategory buckets the flight by severity. moderateMax is the
// largest delay in minutes still counted as moderate.
func (r FlightRecord) DelayCategory(moderateMax int) string {
	switch {
	case r.Cancelled:
		return CategoryCancelled
	case r.DelayMinutes <= 0:
		return CategoryOnTime
	case r.DelayMinutes <= moderateMax:
		return CategoryModerate
	default:
		return CategoryHigh
	}
}

// Month names the calendar month of the scheduled departure, or ""
// when the schedule is unknown.
func (r FlightRecord) Month() string {
	if r.ScheduledDeparture.IsZero() {
		return ""
	}
	return r.ScheduledDeparture.Month().String()
}

// NormalizeMonth turns user input like "3", "mar" or "MARCH" into the
// canonical month name.
func NormalizeMonth(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return "", fmt.Errorf("empty month")
	}
	if n, err := strconv.Atoi(t); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n).String(), nil
		}
		return "", fmt.Errorf("month number %d out of range", n)
	}
	lower := strings.ToLower(t)
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.ToLower(name) == lower || strings.ToLower(name[:3]) == lower {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown month %q", s)
}

// MonthIndex returns 1..12 for a canonical month name, 0 otherwise.
// Used to sort months in calendar order rather than alphabetically.
func MonthIndex(name string) int {
	for m := time.January; m <= time.December; m++ {
		if m.String() == name {
			return int(m)
		}
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}
