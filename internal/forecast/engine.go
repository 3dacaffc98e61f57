package forecast

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
	"github.com/andresuchdata/autopo-forecast/internal/observability"
	"github.com/andresuchdata/autopo-forecast/pkg/logger"
)

const (
	DefaultHorizonDays = 30

	// MinModelRows is the smallest feature table the lag model is trained on.
	MinModelRows = 50
	// MinTrainRows must remain after the holdout split, otherwise the
	// weighted average is used.
	MinTrainRows = 10

	minHoldoutRows     = 7
	maxHoldoutRows     = 14
	holdoutDivisor     = 5
	historyEchoDays    = 90
	holdoutErrorPlaces = 4
)

// Options controls a single forecast run.
type Options struct {
	HorizonDays int
	// MaxHorizonDays caps HorizonDays when positive.
	MaxHorizonDays int
	AllowML        bool
	// ModelTimeout bounds lag-model training; on expiry the weighted
	// average is used instead. Zero means no limit beyond ctx.
	ModelTimeout time.Duration
}

// DefaultOptions returns a 30 day horizon with the lag model enabled.
func DefaultOptions() Options {
	return Options{
		HorizonDays:    DefaultHorizonDays,
		MaxHorizonDays: 365,
		AllowML:        true,
		ModelTimeout:   10 * time.Second,
	}
}

func (o Options) horizon() int {
	h := o.HorizonDays
	if h < 1 {
		h = 1
	}
	if o.MaxHorizonDays > 0 && h > o.MaxHorizonDays {
		h = o.MaxHorizonDays
	}
	return h
}

// Selection is the outcome of method selection for one series.
type Selection struct {
	Method      domain.ForecastMethod
	HoldoutRows int
	Reason      string
}

// HoldoutSize is the number of trailing feature rows held out for scoring.
func HoldoutSize(rows int) int {
	h := rows / holdoutDivisor
	if h > maxHoldoutRows {
		h = maxHoldoutRows
	}
	if h < minHoldoutRows {
		h = minHoldoutRows
	}
	return h
}

// SelectMethod decides which strategy forecasts s given the size of its
// feature table. It has no side effects.
func SelectMethod(s DemandSeries, featureRows int, allowML bool) Selection {
	if s.Empty() || s.Sum() == 0 {
		return Selection{Method: domain.MethodZeroDemand, Reason: "no demand in lookback window"}
	}
	if !allowML {
		return Selection{Method: domain.MethodWeightedAverage, Reason: "model disabled"}
	}
	if featureRows < MinModelRows {
		return Selection{Method: domain.MethodWeightedAverage, Reason: "too few feature rows"}
	}
	holdout := HoldoutSize(featureRows)
	if featureRows-holdout <= MinTrainRows {
		return Selection{Method: domain.MethodWeightedAverage, Reason: "too few training rows after holdout"}
	}
	return Selection{Method: domain.MethodGradientBoosted, HoldoutRows: holdout, Reason: "lag model"}
}

// Engine produces demand forecasts. It holds no per-call state and is safe
// for concurrent use.
type Engine struct {
	model GBRTConfig
	log   zerolog.Logger
}

func NewEngine() *Engine {
	return &Engine{
		model: DefaultGBRTConfig(),
		log:   logger.Component("forecast"),
	}
}

// WithModelConfig returns a copy of the engine using cfg for the lag model.
func (e *Engine) WithModelConfig(cfg GBRTConfig) *Engine {
	cp := *e
	cp.model = cfg
	return &cp
}

// Outcome is a forecast plus how it was reached. Degraded is set when the
// lag model was selected but its fit was cut short by a deadline or
// cancellation; such results must not be reused for later calls.
type Outcome struct {
	Result   domain.ForecastResult
	Degraded bool
}

// Forecast always returns a complete result. Model failures, including
// timeout and cancellation, degrade to the weighted average.
func (e *Engine) Forecast(ctx context.Context, s DemandSeries, opts Options) domain.ForecastResult {
	return e.Run(ctx, s, opts).Result
}

// Run is Forecast reporting whether the result is a transient fallback.
func (e *Engine) Run(ctx context.Context, s DemandSeries, opts Options) Outcome {
	horizon := opts.horizon()

	if s.Empty() || s.Sum() == 0 {
		return Outcome{Result: zeroDemandForecast(s.End, horizon)}
	}

	var table featureTable
	if opts.AllowML {
		table = buildFeatureTable(s)
	}
	sel := SelectMethod(s, table.Len(), opts.AllowML)

	e.log.Debug().
		Int("series_days", s.Len()).
		Int("feature_rows", table.Len()).
		Str("method", string(sel.Method)).
		Str("reason", sel.Reason).
		Msg("forecast method selected")

	if sel.Method != domain.MethodGradientBoosted {
		return Outcome{Result: weightedAverageForecast(s, horizon)}
	}

	result, err := e.gradientBoostedForecast(ctx, s, table, sel.HoldoutRows, horizon, opts.ModelTimeout)
	if err != nil {
		e.log.Warn().Err(err).Int("feature_rows", table.Len()).Msg("lag model failed, using weighted average")
		transient := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		return Outcome{Result: weightedAverageForecast(s, horizon), Degraded: transient}
	}
	return Outcome{Result: result}
}

// predictor is the part of a fitted model the forecast path needs.
type predictor interface {
	Predict(row []float64) float64
}

func (e *Engine) gradientBoostedForecast(ctx context.Context, s DemandSeries, table featureTable, holdout, horizon int, timeout time.Duration) (domain.ForecastResult, error) {
	ctx, span := observability.StartSpan(ctx, "forecast.fit_lag_model",
		attribute.Int("feature_rows", table.Len()),
		attribute.Int("holdout_rows", holdout),
	)
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	trainN := table.Len() - holdout
	model := NewGradientBoostedRegressor(e.model)
	if err := model.Fit(ctx, table.X[:trainN], table.Y[:trainN]); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fit failed")
		return domain.ForecastResult{}, err
	}

	wape, sigma := scoreHoldout(model, table.X[trainN:], table.Y[trainN:], s.Values)
	rows := recursiveForecast(model, s, horizon, sigma)

	span.SetAttributes(attribute.Float64("holdout_wape", wape))

	return domain.ForecastResult{
		Method:      domain.MethodGradientBoosted,
		HoldoutWAPE: &wape,
		History:     s.Tail(historyEchoDays),
		Forecast:    rows,
		DailyMean:   meanP50(rows),
		DailyStd:    sigma,
	}, nil
}

// scoreHoldout returns the weighted absolute percentage error
// sum|y-pred| / max(sum y, 1) and the sample std of the residuals, floored
// at sigmaFloor. Predictions are clipped at zero. With fewer than two
// residuals the std of series is used instead.
func scoreHoldout(model predictor, x [][]float64, y []float64, series []float64) (wape, sigma float64) {
	var absErr, actual float64
	residuals := make([]float64, 0, len(y))
	for i := range y {
		pred := math.Max(model.Predict(x[i]), 0)
		residuals = append(residuals, y[i]-pred)
		absErr += math.Abs(y[i] - pred)
		actual += y[i]
	}
	wape = domain.Round(absErr/math.Max(actual, 1), holdoutErrorPlaces)

	if len(residuals) > 1 {
		sigma = sampleStd(residuals)
	} else {
		sigma = sampleStd(series)
	}
	return wape, math.Max(sigma, sigmaFloor)
}

// recursiveForecast predicts horizon days past s.End. Each point is
// appended to a working copy so it becomes lag_1 of the next step; s is
// left untouched.
func recursiveForecast(model predictor, s DemandSeries, horizon int, sigma float64) []domain.ForecastRow {
	working := s.Clone()
	rows := make([]domain.ForecastRow, 0, horizon)
	for step := 1; step <= horizon; step++ {
		day := s.End.AddDays(step)
		point := math.Max(model.Predict(featureVector(working.Values, day)), 0)
		rows = append(rows, quantileBand(day, point, sigma, step))
		working.Values = append(working.Values, point)
	}
	return rows
}
