package forecast

import (
	"math"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

// 10th / 90th percentiles of the standard normal.
const (
	z10 = -1.2815515655446004
	z90 = 1.2815515655446004
)

// sigmaFloor keeps quantile bands from collapsing to zero width.
const sigmaFloor = 0.1

// quantileBand turns a point forecast for horizon step into a p10/p50/p90 row.
// Uncertainty grows with sqrt(step) under independent daily increments.
func quantileBand(date domain.Date, point, sigma float64, step int) domain.ForecastRow {
	p50 := math.Max(point, 0)
	uncertainty := sigma * math.Sqrt(float64(step))
	p10 := math.Max(0, p50+z10*uncertainty)
	p90 := math.Max(p50, p50+z90*uncertainty)

	return domain.ForecastRow{
		Date: date,
		P10:  domain.Round(p10, 3),
		P50:  domain.Round(p50, 3),
		P90:  domain.Round(p90, 3),
	}
}

func meanP50(rows []domain.ForecastRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	var total float64
	for _, r := range rows {
		total += r.P50
	}
	return total / float64(len(rows))
}
