package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
	"github.com/andresuchdata/autopo-forecast/internal/forecast"
	"github.com/andresuchdata/autopo-forecast/internal/observability"
	"github.com/andresuchdata/autopo-forecast/internal/repository"
	"github.com/andresuchdata/autopo-forecast/internal/service"
	"github.com/andresuchdata/autopo-forecast/pkg/logger"
)

var ErrNoItems = errors.New("no items to plan")

// Planner plans every requested item on a bounded worker pool.
type Planner struct {
	repo   repository.MovementRepository
	svc    *service.ReplenishmentService
	config PlannerConfig
	log    zerolog.Logger
}

// NewPlanner creates a new planner
func NewPlanner(repo repository.MovementRepository, svc *service.ReplenishmentService, config PlannerConfig) *Planner {
	if svc == nil {
		svc = service.NewReplenishmentService(nil, nil)
	}
	return &Planner{
		repo:   repo,
		svc:    svc,
		config: config,
		log:    logger.Component("planner"),
	}
}

// Run loads items and their movements and plans each item. Items that
// cannot be planned are reported in Failures; the run itself only fails
// when loading fails or ctx ends.
func (p *Planner) Run(ctx context.Context, itemIDs []int64, params service.PlanParams) (*RunResult, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.plan_run", attribute.Int("requested_items", len(itemIDs)))
	defer span.End()

	if params.AsOf.IsZero() {
		params.AsOf = time.Now()
	}
	run := PlanRun{
		AsOf:      domain.NewDate(params.AsOf),
		Status:    StatusPending,
		Methods:   make(map[domain.ForecastMethod]int),
		StartedAt: time.Now(),
	}
	result := &RunResult{Run: run}

	items, err := p.repo.ListItems(ctx, itemIDs)
	if err != nil {
		return p.fail(result, fmt.Errorf("failed to load items: %w", err))
	}
	if len(items) == 0 {
		return p.fail(result, ErrNoItems)
	}
	result.Run.TotalItems = len(items)

	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	movements, err := p.repo.ListMovements(ctx, ids, lookbackStart(params))
	if err != nil {
		return p.fail(result, fmt.Errorf("failed to load movements: %w", err))
	}
	byItem := repository.GroupByItem(movements)

	result.Run.Status = StatusProcessing
	p.log.Info().
		Int("items", len(items)).
		Int("movements", len(movements)).
		Str("as_of", run.AsOf.String()).
		Msg("starting plan run")

	plans := make([]*domain.ItemPlan, len(items))
	errs := make([]error, len(items))

	workers := p.config.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, item := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			plan := p.svc.PlanItem(gctx, item, byItem[item.ID], params)
			plans[i] = &plan
			return nil
		})
	}
	_ = g.Wait()

	for i, item := range items {
		if errs[i] != nil {
			result.Failures = append(result.Failures, ItemFailure{ItemID: item.ID, SKU: item.SKU, Err: errs[i]})
			p.log.Warn().Err(errs[i]).Int64("item_id", item.ID).Msg("item not planned")
			continue
		}
		result.Plans = append(result.Plans, *plans[i])
		result.Run.Methods[plans[i].Forecast.Method]++
	}
	result.Run.PlannedItems = len(result.Plans)
	result.Run.FailedItems = len(result.Failures)

	if err := ctx.Err(); err != nil {
		return p.fail(result, err)
	}

	now := time.Now()
	result.Run.Status = StatusCompleted
	result.Run.CompletedAt = &now

	span.SetAttributes(
		attribute.Int("planned_items", result.Run.PlannedItems),
		attribute.Int("failed_items", result.Run.FailedItems),
	)
	p.log.Info().
		Int("planned", result.Run.PlannedItems).
		Int("failed", result.Run.FailedItems).
		Dur("duration", now.Sub(result.Run.StartedAt)).
		Msg("plan run completed")

	return result, nil
}

func (p *Planner) fail(result *RunResult, err error) (*RunResult, error) {
	now := time.Now()
	result.Run.Status = StatusFailed
	result.Run.ErrorMessage = err.Error()
	result.Run.CompletedAt = &now
	p.log.Error().Err(err).Msg("plan run failed")
	return result, err
}

func lookbackStart(params service.PlanParams) time.Time {
	days := params.LookbackDays
	if days <= 0 {
		days = forecast.DefaultLookbackDays
	}
	return domain.NewDate(params.AsOf).AddDays(-days).Time
}
