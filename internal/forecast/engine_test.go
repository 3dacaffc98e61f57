package forecast

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

func alternatingSeries(end string, n int) DemandSeries {
	values := make([]float64, n)
	for i := range values {
		if i%2 == 0 {
			values[i] = 10
		}
	}
	return DemandSeries{End: domain.NewDate(at(end, 0)), Values: values}
}

// weeklySeries has a clear day-of-week shape with some drift.
func weeklySeries(end string, n int) DemandSeries {
	pattern := []float64{12, 8, 9, 11, 15, 20, 5}
	values := make([]float64, n)
	for i := range values {
		values[i] = pattern[i%len(pattern)] + float64(i%3)
	}
	return DemandSeries{End: domain.NewDate(at(end, 0)), Values: values}
}

func assertForecastInvariants(t *testing.T, s DemandSeries, result domain.ForecastResult, horizon int) {
	t.Helper()
	require.Len(t, result.Forecast, horizon)
	for i, row := range result.Forecast {
		assert.Equal(t, s.End.AddDays(i+1).String(), row.Date.String())
		assert.GreaterOrEqual(t, row.P10, 0.0)
		assert.LessOrEqual(t, row.P10, row.P50)
		assert.LessOrEqual(t, row.P50, row.P90)
	}
}

func TestForecastZeroDemand(t *testing.T) {
	engine := NewEngine()
	cases := map[string]DemandSeries{
		"empty":    {End: domain.NewDate(at("2024-03-10", 0))},
		"all-zero": {End: domain.NewDate(at("2024-03-10", 0)), Values: make([]float64, 60)},
	}

	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			result := engine.Forecast(context.Background(), s, Options{HorizonDays: 5, AllowML: true})

			assert.Equal(t, domain.MethodZeroDemand, result.Method)
			assert.Nil(t, result.HoldoutWAPE)
			assert.Empty(t, result.History)
			assert.Zero(t, result.DailyStd)
			assertForecastInvariants(t, s, result, 5)
			for _, row := range result.Forecast {
				assert.Zero(t, row.P10)
				assert.Zero(t, row.P50)
				assert.Zero(t, row.P90)
			}
		})
	}
}

func TestForecastWeightedAverageAlternating(t *testing.T) {
	// 40 days ending Sunday 2024-03-31.
	s := alternatingSeries("2024-03-31", 40)

	result := NewEngine().Forecast(context.Background(), s, Options{HorizonDays: 7, AllowML: false})

	assert.Equal(t, domain.MethodWeightedAverage, result.Method)
	assert.Nil(t, result.HoldoutWAPE)
	assert.Greater(t, result.DailyStd, 0.0)
	assert.InDelta(t, 5.063697, result.DailyStd, 1e-5)
	assert.Len(t, result.History, 40)
	assertForecastInvariants(t, s, result, 7)

	expected := []float64{3.862, 5.793, 4.828, 4.828, 4.828, 4.828, 4.828}
	for i, row := range result.Forecast {
		assert.InDelta(t, expected[i], row.P50, 1e-9, "day %s", row.Date)
	}
}

func TestForecastWeightedAverageIsRepeatable(t *testing.T) {
	s := weeklySeries("2024-03-31", 60)
	engine := NewEngine()
	opts := Options{HorizonDays: 14, AllowML: false}

	assert.Equal(t, engine.Forecast(context.Background(), s, opts), engine.Forecast(context.Background(), s, opts))
}

func TestForecastShortHistoryNeverUsesModel(t *testing.T) {
	s := weeklySeries("2024-03-31", 77)

	result := NewEngine().Forecast(context.Background(), s, Options{HorizonDays: 7, AllowML: true})

	assert.Equal(t, domain.MethodWeightedAverage, result.Method)
}

func TestForecastGradientBoosted(t *testing.T) {
	s := weeklySeries("2024-03-31", 150)
	before := append([]float64(nil), s.Values...)

	result := NewEngine().Forecast(context.Background(), s, Options{HorizonDays: 10, AllowML: true})

	assert.Equal(t, domain.MethodGradientBoosted, result.Method)
	require.NotNil(t, result.HoldoutWAPE)
	assert.GreaterOrEqual(t, *result.HoldoutWAPE, 0.0)
	assert.GreaterOrEqual(t, result.DailyStd, sigmaFloor)
	assert.Len(t, result.History, historyEchoDays)
	assert.Equal(t, s.End.String(), result.History[len(result.History)-1].Date.String())
	assertForecastInvariants(t, s, result, 10)
	assert.Equal(t, before, s.Values, "input series must not be extended")
}

func TestForecastCancelledFallsBack(t *testing.T) {
	s := weeklySeries("2024-03-31", 150)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := NewEngine().Forecast(ctx, s, Options{HorizonDays: 7, AllowML: true})

	assert.Equal(t, domain.MethodWeightedAverage, result.Method)
	assertForecastInvariants(t, s, result, 7)
}

func TestForecastHorizonClamp(t *testing.T) {
	s := weeklySeries("2024-03-31", 20)
	engine := NewEngine()

	low := engine.Forecast(context.Background(), s, Options{HorizonDays: -3})
	assert.Len(t, low.Forecast, 1)

	high := engine.Forecast(context.Background(), s, Options{HorizonDays: 1000, MaxHorizonDays: 365})
	assert.Len(t, high.Forecast, 365)
}

func TestSelectMethod(t *testing.T) {
	nonZero := weeklySeries("2024-03-31", 100)

	tests := []struct {
		name    string
		series  DemandSeries
		rows    int
		allowML bool
		want    domain.ForecastMethod
		holdout int
	}{
		{"empty", DemandSeries{}, 0, true, domain.MethodZeroDemand, 0},
		{"ml disabled", nonZero, 72, false, domain.MethodWeightedAverage, 0},
		{"49 rows", nonZero, 49, true, domain.MethodWeightedAverage, 0},
		{"50 rows", nonZero, 50, true, domain.MethodGradientBoosted, 10},
		{"72 rows", nonZero, 72, true, domain.MethodGradientBoosted, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := SelectMethod(tt.series, tt.rows, tt.allowML)
			assert.Equal(t, tt.want, sel.Method)
			assert.Equal(t, tt.holdout, sel.HoldoutRows)
		})
	}
}

func TestHoldoutSize(t *testing.T) {
	assert.Equal(t, 7, HoldoutSize(20))
	assert.Equal(t, 10, HoldoutSize(50))
	assert.Equal(t, 14, HoldoutSize(400))
}

func TestQuantileConstantsMatchNormal(t *testing.T) {
	assert.InDelta(t, distuv.UnitNormal.Quantile(0.1), z10, 1e-9)
	assert.InDelta(t, distuv.UnitNormal.Quantile(0.9), z90, 1e-9)
}

func TestQuantileBand(t *testing.T) {
	day := domain.NewDate(at("2024-04-01", 0))

	row := quantileBand(day, 10, 2, 4)
	assert.InDelta(t, 10.0, row.P50, 1e-9)
	assert.InDelta(t, 10-1.2815515655446004*4, row.P10, 1e-3)
	assert.InDelta(t, 10+1.2815515655446004*4, row.P90, 1e-3)

	negative := quantileBand(day, -3, 1, 1)
	assert.Zero(t, negative.P50)
	assert.Zero(t, negative.P10)
	assert.GreaterOrEqual(t, negative.P90, 0.0)
	assert.False(t, math.IsNaN(negative.P90))
}

type predictorFunc func(row []float64) float64

func (f predictorFunc) Predict(row []float64) float64 { return f(row) }

func constantPredictor(v float64) predictor {
	return predictorFunc(func([]float64) float64 { return v })
}

func TestScoreHoldout(t *testing.T) {
	x := [][]float64{{0}, {0}, {0}, {0}}

	wape, sigma := scoreHoldout(constantPredictor(3), x, []float64{2, 5, 3, 6}, nil)

	// |-1| + 2 + 0 + 3 = 6 over 16 actual
	assert.Equal(t, 0.375, wape)
	// residuals -1, 2, 0, 3: mean 1, squared deviations sum 10
	assert.InDelta(t, math.Sqrt(10.0/3.0), sigma, 1e-9)
}

func TestScoreHoldoutZeroDemandUsesUnitDenominator(t *testing.T) {
	wape, sigma := scoreHoldout(constantPredictor(2), [][]float64{{0}, {0}}, []float64{0, 0}, nil)

	assert.Equal(t, 4.0, wape)
	assert.Equal(t, sigmaFloor, sigma)
}

func TestScoreHoldoutClipsNegativePredictions(t *testing.T) {
	wape, sigma := scoreHoldout(constantPredictor(-5), [][]float64{{0}, {0}}, []float64{1, 3}, nil)

	assert.Equal(t, 1.0, wape)
	assert.InDelta(t, math.Sqrt2, sigma, 1e-9)
}

func TestScoreHoldoutSingleRowUsesSeriesStd(t *testing.T) {
	wape, sigma := scoreHoldout(constantPredictor(4), [][]float64{{0}}, []float64{4}, []float64{1, 2, 3})

	assert.Equal(t, 0.0, wape)
	assert.InDelta(t, 1.0, sigma, 1e-9)
}

func TestRecursiveForecastFeedsBackPredictions(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 5
	}
	s := DemandSeries{End: domain.NewDate(at("2024-03-31", 0)), Values: values}

	var seen [][]float64
	model := predictorFunc(func(row []float64) float64 {
		seen = append(seen, row)
		return row[0] + 1
	})

	rows := recursiveForecast(model, s, 3, sigmaFloor)

	require.Len(t, rows, 3)
	assert.Equal(t, []float64{6, 7, 8}, []float64{rows[0].P50, rows[1].P50, rows[2].P50})
	assert.Equal(t, "2024-04-01", rows[0].Date.String())

	require.Len(t, seen, 3)
	assert.Equal(t, 6.0, seen[1][0], "step 2 lag_1 is the step 1 point")
	assert.Equal(t, 5.0, seen[1][1], "step 2 lag_2 is the last observed day")
	assert.Equal(t, 7.0, seen[2][0])
	assert.Equal(t, 6.0, seen[2][1])
	assert.Len(t, s.Values, 30, "input series must not be extended")
}

func TestForecastGradientBoostedConstantSeries(t *testing.T) {
	values := make([]float64, 150)
	for i := range values {
		values[i] = 6
	}
	s := DemandSeries{End: domain.NewDate(at("2024-03-31", 0)), Values: values}

	result := NewEngine().Forecast(context.Background(), s, Options{HorizonDays: 5, AllowML: true})

	assert.Equal(t, domain.MethodGradientBoosted, result.Method)
	require.NotNil(t, result.HoldoutWAPE)
	assert.Equal(t, 0.0, *result.HoldoutWAPE)
	assert.Equal(t, sigmaFloor, result.DailyStd)
	for _, row := range result.Forecast {
		assert.InDelta(t, 6.0, row.P50, 1e-9)
	}
	assert.InDelta(t, 6.0, result.DailyMean, 1e-9)
}

func TestRunReportsDegradedFallback(t *testing.T) {
	s := weeklySeries("2024-03-31", 150)
	engine := NewEngine()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cancelled := engine.Run(ctx, s, Options{HorizonDays: 7, AllowML: true})
	assert.True(t, cancelled.Degraded)
	assert.Equal(t, domain.MethodWeightedAverage, cancelled.Result.Method)

	healthy := engine.Run(context.Background(), s, Options{HorizonDays: 7, AllowML: true})
	assert.False(t, healthy.Degraded)
	assert.Equal(t, domain.MethodGradientBoosted, healthy.Result.Method)

	disabled := engine.Run(ctx, s, Options{HorizonDays: 7, AllowML: false})
	assert.False(t, disabled.Degraded, "a chosen weighted average is not a fallback")
}
