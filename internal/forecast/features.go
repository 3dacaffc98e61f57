package forecast

import (
	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

var lagOffsets = []int{1, 2, 3, 7, 14, 28}

const (
	rollingWindow = 7
	// maxLag is the longest lag; rows before it have incomplete history.
	maxLag = 28
)

// featureNames documents the column order produced by featureVector.
var featureNames = []string{
	"lag_1", "lag_2", "lag_3", "lag_7", "lag_14", "lag_28",
	"rolling_mean_7", "rolling_std_7",
	"dow", "month", "trend",
}

type featureTable struct {
	X [][]float64
	Y []float64
}

func (t featureTable) Len() int {
	return len(t.Y)
}

// buildFeatureTable produces one row per day that has a full lag history.
func buildFeatureTable(s DemandSeries) featureTable {
	var table featureTable
	if s.Len() <= maxLag {
		return table
	}
	start := s.Start()
	table.X = make([][]float64, 0, s.Len()-maxLag)
	table.Y = make([]float64, 0, s.Len()-maxLag)
	for i := maxLag; i < s.Len(); i++ {
		table.X = append(table.X, featureVector(s.Values[:i], start.AddDays(i)))
		table.Y = append(table.Y, s.Values[i])
	}
	return table
}

// featureVector builds the regressors for target using only history, the
// values strictly before target. Used for training rows and for recursive
// prediction alike.
func featureVector(history []float64, target domain.Date) []float64 {
	n := len(history)
	fallback := mean(history)

	row := make([]float64, 0, len(featureNames))
	for _, lag := range lagOffsets {
		if n >= lag {
			row = append(row, history[n-lag])
		} else {
			row = append(row, fallback)
		}
	}

	window := history
	if n > rollingWindow {
		window = history[n-rollingWindow:]
	}
	rollingMean := fallback
	if len(window) > 0 {
		rollingMean = mean(window)
	}
	row = append(row,
		rollingMean,
		// Sample std (n-1) during recursion as well, on purpose, rather
		// than the population std, so training and prediction rows agree.
		sampleStd(window),
		float64(weekdayIndex(target.Time)),
		float64(target.Month()),
		float64(n),
	)
	return row
}
