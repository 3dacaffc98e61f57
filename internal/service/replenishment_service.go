package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-forecast/internal/cache"
	"github.com/andresuchdata/autopo-forecast/internal/config"
	"github.com/andresuchdata/autopo-forecast/internal/domain"
	"github.com/andresuchdata/autopo-forecast/internal/forecast"
	"github.com/andresuchdata/autopo-forecast/internal/policy"
)

// PlanParams are the run-wide parameters of a plan. Item fields override
// the policy defaults where set.
type PlanParams struct {
	AsOf         time.Time
	LookbackDays int
	Forecast     forecast.Options
	Policy       config.PolicyConfig
}

// PlanParamsFromConfig builds parameters from loaded configuration.
func PlanParamsFromConfig(cfg *config.Config, asOf time.Time) PlanParams {
	return PlanParams{
		AsOf:         asOf,
		LookbackDays: cfg.Forecast.LookbackDays,
		Forecast: forecast.Options{
			HorizonDays:    cfg.Forecast.HorizonDays,
			MaxHorizonDays: cfg.Forecast.MaxHorizonDays,
			AllowML:        cfg.Forecast.AllowML,
			ModelTimeout:   cfg.Forecast.ModelTimeout,
		},
		Policy: cfg.Policy,
	}
}

type ReplenishmentService struct {
	engine *forecast.Engine
	cache  cache.PlanCache
}

func NewReplenishmentService(engine *forecast.Engine, cacheImpl cache.PlanCache) *ReplenishmentService {
	if engine == nil {
		engine = forecast.NewEngine()
	}
	if cacheImpl == nil {
		cacheImpl = cache.NewNoopPlanCache()
	}
	return &ReplenishmentService{engine: engine, cache: cacheImpl}
}

// Forecast builds the demand series from movements and forecasts it.
func (s *ReplenishmentService) Forecast(ctx context.Context, movements []domain.Movement, params PlanParams) domain.ForecastResult {
	series := forecast.BuildDemandSeries(movements, params.LookbackDays, params.AsOf)
	return s.engine.Forecast(ctx, series, params.Forecast)
}

// InvalidateCache drops every cached plan.
func (s *ReplenishmentService) InvalidateCache(ctx context.Context) error {
	return s.cache.InvalidateAll(ctx)
}

// PlanItem forecasts one item and derives its reorder policy. Cache errors
// are logged and otherwise ignored.
func (s *ReplenishmentService) PlanItem(ctx context.Context, item domain.Item, movements []domain.Movement, params PlanParams) domain.ItemPlan {
	key := cache.PlanKey{
		ItemID:      item.ID,
		AsOf:        domain.NewDate(params.AsOf),
		Fingerprint: cache.Fingerprint(movements),
		Params:      planKeyParams(item, params),
	}

	if plan, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		return *plan
	} else if err != nil {
		log.Warn().Err(err).Int64("item_id", item.ID).Msg("replenishment: cache get failed")
	}

	series := forecast.BuildDemandSeries(movements, params.LookbackDays, params.AsOf)
	outcome := s.engine.Run(ctx, series, params.Forecast)
	plan := domain.ItemPlan{
		Item:     item,
		AsOf:     domain.NewDate(params.AsOf),
		Forecast: outcome.Result,
		Policy:   policy.NewCalculator(params.Policy).ForItem(item, outcome.Result),
	}

	// A fallback forced by a deadline or cancellation is not what the key
	// describes; later calls must recompute it.
	if outcome.Degraded || ctx.Err() != nil {
		log.Debug().Int64("item_id", item.ID).Msg("replenishment: degraded plan not cached")
		return plan
	}
	if err := s.cache.Set(ctx, key, plan); err != nil {
		log.Warn().Err(err).Int64("item_id", item.ID).Msg("replenishment: cache set failed")
	}

	return plan
}

func planKeyParams(item domain.Item, params PlanParams) map[string]string {
	p := map[string]string{
		"lookback_days":      strconv.Itoa(params.LookbackDays),
		"horizon_days":       strconv.Itoa(params.Forecast.HorizonDays),
		"max_horizon_days":   strconv.Itoa(params.Forecast.MaxHorizonDays),
		"allow_ml":           strconv.FormatBool(params.Forecast.AllowML),
		"service_level":      strconv.FormatFloat(params.Policy.ServiceLevel, 'f', -1, 64),
		"lead_time_days":     strconv.Itoa(params.Policy.LeadTimeDays),
		"review_period_days": strconv.Itoa(params.Policy.ReviewPeriodDays),
		"min_order_qty":      strconv.Itoa(params.Policy.MinOrderQty),
		"item_sku":           item.SKU,
		"item_status":        string(item.Status),
		"item_on_hand":       strconv.Itoa(item.OnHand),
		"item_lead_time":     strconv.Itoa(item.LeadTimeDays),
		"item_min_order":     strconv.Itoa(item.MinOrderQty),
	}
	if item.SafetyStockOverride != nil {
		p["item_safety_stock"] = strconv.Itoa(*item.SafetyStockOverride)
	}
	return p
}
