package domain

import "github.com/shopspring/decimal"

// Round rounds v half away from zero to places decimal digits. Published
// quantities go through decimal so 2.0005 rounds up instead of down.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
