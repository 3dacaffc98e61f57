package forecast

import (
	"math"
	"time"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

// DefaultLookbackDays bounds how far back demand history is considered.
const DefaultLookbackDays = 365

// DemandSeries is a gap-free daily demand series ending on End.
// Values[len(Values)-1] is the demand on End; an empty series still carries
// the as-of day so forecasts know where to start.
type DemandSeries struct {
	End    domain.Date
	Values []float64
}

// BuildDemandSeries aggregates outbound movements into a daily series that
// covers [max(first demand day, asOf-lookbackDays), asOf] with zero-filled gaps.
// Movements that are not demand, or fall outside the window, are ignored.
func BuildDemandSeries(movements []domain.Movement, lookbackDays int, asOf time.Time) DemandSeries {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	end := domain.NewDate(asOf)
	series := DemandSeries{End: end}

	byDay := make(map[domain.Date]float64)
	var first domain.Date
	for _, m := range movements {
		if !m.IsDemand() {
			continue
		}
		day := domain.NewDate(m.CreatedAt)
		byDay[day] += math.Abs(float64(m.QuantityDelta))
		if first.IsZero() || day.Before(first.Time) {
			first = day
		}
	}
	if len(byDay) == 0 {
		return series
	}

	start := end.AddDays(-lookbackDays)
	if first.After(start.Time) {
		start = first
	}
	if start.After(end.Time) {
		return series
	}

	series.Values = make([]float64, start.DaysUntil(end)+1)
	for day, qty := range byDay {
		idx := start.DaysUntil(day)
		if idx < 0 || idx >= len(series.Values) {
			continue
		}
		series.Values[idx] = qty
	}
	return series
}

// Len returns the number of days in the series.
func (s DemandSeries) Len() int {
	return len(s.Values)
}

// Empty reports whether the series has no days.
func (s DemandSeries) Empty() bool {
	return len(s.Values) == 0
}

// Start is the first day of the series. For an empty series it is the day after End.
func (s DemandSeries) Start() domain.Date {
	return s.End.AddDays(1 - len(s.Values))
}

// DateAt returns the calendar day of the i-th value.
func (s DemandSeries) DateAt(i int) domain.Date {
	return s.Start().AddDays(i)
}

// Sum returns the total demand in the series.
func (s DemandSeries) Sum() float64 {
	var total float64
	for _, v := range s.Values {
		total += v
	}
	return total
}

// Clone returns a deep copy that can be extended without touching s.
func (s DemandSeries) Clone() DemandSeries {
	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	return DemandSeries{End: s.End, Values: values}
}

// Tail returns the last n days as demand points.
func (s DemandSeries) Tail(n int) []domain.DemandPoint {
	if n > len(s.Values) {
		n = len(s.Values)
	}
	points := make([]domain.DemandPoint, 0, n)
	offset := len(s.Values) - n
	for i := offset; i < len(s.Values); i++ {
		points = append(points, domain.DemandPoint{Date: s.DateAt(i), Demand: s.Values[i]})
	}
	return points
}
