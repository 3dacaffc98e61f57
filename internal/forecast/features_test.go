package forecast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

func rampSeries(end string, n int) DemandSeries {
	values := make([]float64, n)
	for i := range values {
		values[i] = float64(i)
	}
	return DemandSeries{End: domain.NewDate(at(end, 0)), Values: values}
}

func TestBuildFeatureTableDropsIncompleteLags(t *testing.T) {
	assert.Zero(t, buildFeatureTable(rampSeries("2024-03-10", 28)).Len())

	table := buildFeatureTable(rampSeries("2024-03-10", 30))
	require.Equal(t, 2, table.Len())

	first := table.X[0]
	require.Len(t, first, len(featureNames))
	assert.InDelta(t, 27.0, first[0], 1e-9) // lag_1
	assert.InDelta(t, 21.0, first[3], 1e-9) // lag_7
	assert.InDelta(t, 0.0, first[5], 1e-9)  // lag_28
	assert.InDelta(t, 24.0, first[6], 1e-9) // mean of 21..27
	assert.InDelta(t, 28.0, first[10], 1e-9)
	assert.InDelta(t, 28.0, table.Y[0], 1e-9)
}

func TestFeatureVectorCalendarColumns(t *testing.T) {
	// 2024-03-11 is a Monday.
	row := featureVector([]float64{4, 4, 4}, domain.NewDate(at("2024-03-11", 0)))

	assert.InDelta(t, 4.0, row[3], 1e-9, "short history falls back to mean")
	assert.InDelta(t, 0.0, row[7], 1e-9)
	assert.InDelta(t, 0.0, row[8], 1e-9)
	assert.InDelta(t, 3.0, row[9], 1e-9)
	assert.InDelta(t, 3.0, row[10], 1e-9)
}
