package forecast

import (
	"math"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

const wmaWindow = 28

// weightedAverageForecast projects a recency-weighted mean, shaped by the
// series' day-of-week profile. Each future day is computed independently.
func weightedAverageForecast(s DemandSeries, horizon int) domain.ForecastResult {
	window := wmaWindow
	if s.Len() < window {
		window = s.Len()
	}
	recent := s.Values[s.Len()-window:]

	var weighted, weightSum float64
	for i, v := range recent {
		w := float64(i + 1)
		weighted += v * w
		weightSum += w
	}
	weightedMean := weighted / weightSum

	overall := mean(s.Values)
	if overall <= 0 {
		overall = 1
	}
	profile := weekdayMeans(s)
	sigma := math.Max(sampleStd(s.Values), sigmaFloor)

	rows := make([]domain.ForecastRow, 0, horizon)
	for step := 1; step <= horizon; step++ {
		day := s.End.AddDays(step)
		factor := 1.0
		if m, ok := profile[weekdayIndex(day.Time)]; ok {
			factor = m / overall
		}
		point := math.Max(weightedMean*factor, 0)
		rows = append(rows, quantileBand(day, point, sigma, step))
	}

	return domain.ForecastResult{
		Method:    domain.MethodWeightedAverage,
		History:   s.Tail(historyEchoDays),
		Forecast:  rows,
		DailyMean: meanP50(rows),
		DailyStd:  sigma,
	}
}

// weekdayMeans returns mean demand per weekday present in the series.
func weekdayMeans(s DemandSeries) map[int]float64 {
	sums := make(map[int]float64, 7)
	counts := make(map[int]int, 7)
	for i, v := range s.Values {
		wd := weekdayIndex(s.DateAt(i).Time)
		sums[wd] += v
		counts[wd]++
	}
	out := make(map[int]float64, len(sums))
	for wd, total := range sums {
		out[wd] = total / float64(counts[wd])
	}
	return out
}

func zeroDemandForecast(end domain.Date, horizon int) domain.ForecastResult {
	rows := make([]domain.ForecastRow, 0, horizon)
	for step := 1; step <= horizon; step++ {
		rows = append(rows, domain.ForecastRow{Date: end.AddDays(step)})
	}
	return domain.ForecastResult{
		Method:   domain.MethodZeroDemand,
		History:  []domain.DemandPoint{},
		Forecast: rows,
	}
}
