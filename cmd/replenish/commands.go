package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-forecast/internal/cache"
	"github.com/andresuchdata/autopo-forecast/internal/domain"
	"github.com/andresuchdata/autopo-forecast/internal/drive"
	"github.com/andresuchdata/autopo-forecast/internal/forecast"
	"github.com/andresuchdata/autopo-forecast/internal/insight"
	"github.com/andresuchdata/autopo-forecast/internal/pipeline"
	"github.com/andresuchdata/autopo-forecast/internal/policy"
	"github.com/andresuchdata/autopo-forecast/internal/repository"
	"github.com/andresuchdata/autopo-forecast/internal/scheduler"
	"github.com/andresuchdata/autopo-forecast/internal/service"
	"github.com/andresuchdata/autopo-forecast/internal/storage"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAsOf returns today when value is empty.
func parseAsOf(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now, nil
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, err
	}
	return d.Time, nil
}

// planParams applies the forecast flags on top of configuration.
func (a *application) planParams(c *cli.Context) (service.PlanParams, error) {
	asOf, err := parseAsOf(c.String("as-of"), time.Now())
	if err != nil {
		return service.PlanParams{}, err
	}
	params := service.PlanParamsFromConfig(a.cfg, asOf)
	if c.IsSet("horizon") {
		params.Forecast.HorizonDays = c.Int("horizon")
	}
	if c.IsSet("lookback") {
		params.LookbackDays = c.Int("lookback")
	}
	if c.Bool("no-ml") {
		params.Forecast.AllowML = false
	}
	return params, nil
}

func (a *application) newService(ctx context.Context) (*service.ReplenishmentService, func()) {
	planCache, err := cache.NewPlanCache(ctx, a.cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("plan cache unavailable, continuing without it")
		planCache = cache.NewNoopPlanCache()
	}
	return service.NewReplenishmentService(forecast.NewEngine(), planCache), func() { planCache.Close() }
}

func (a *application) runForecast(c *cli.Context) error {
	params, err := a.planParams(c)
	if err != nil {
		return err
	}
	movements, err := loadForecastMovements(c.String("movements"), c.Int64("item-id"), c.IsSet("item-id"))
	if err != nil {
		return err
	}

	svc, closeCache := a.newService(c.Context)
	defer closeCache()

	return printJSON(svc.Forecast(c.Context, movements, params))
}

func loadForecastMovements(path string, itemID int64, filter bool) ([]domain.Movement, error) {
	movements, err := drive.LoadMovements(path)
	if err != nil {
		return nil, err
	}
	if !filter {
		return movements, nil
	}
	out := make([]domain.Movement, 0, len(movements))
	for _, m := range movements {
		if m.ItemID == itemID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (a *application) runPolicy(c *cli.Context) error {
	in := domain.PolicyInput{
		OnHand:           c.Int("on-hand"),
		LeadTimeDays:     c.Int("lead-time"),
		ServiceLevel:     c.Float64("service-level"),
		DailyP50:         c.Float64("p50"),
		DailyStd:         c.Float64("std"),
		ReviewPeriodDays: c.Int("review-period"),
		MinOrderQty:      c.Int("min-order"),
	}
	if c.IsSet("safety-stock") {
		ss := c.Int("safety-stock")
		in.SafetyStockOverride = &ss
	}
	return printJSON(policy.Calculate(in))
}

// newOrchestrator wires planner, report writer and optional upload.
func (a *application) newOrchestrator(c *cli.Context, repo repository.MovementRepository, svc *service.ReplenishmentService) (*pipeline.Orchestrator, error) {
	pc := pipeline.DefaultPlannerConfig()
	if a.cfg.Pipeline.Workers > 0 {
		pc.Workers = a.cfg.Pipeline.Workers
	}
	if a.cfg.Pipeline.OutputDir != "" {
		pc.OutputDir = a.cfg.Pipeline.OutputDir
	}
	if a.cfg.Storage.Prefix != "" {
		pc.Prefix = a.cfg.Storage.Prefix
	}
	if c.IsSet("workers") {
		pc.Workers = c.Int("workers")
	}
	if c.IsSet("output-dir") {
		pc.OutputDir = c.String("output-dir")
	}

	var store storage.ObjectStorage
	if c.Bool("upload") || a.cfg.Storage.Enabled {
		client, err := storage.NewMinioClient(a.cfg.Storage)
		if err != nil {
			return nil, err
		}
		store = client
	}

	planner := pipeline.NewPlanner(repo, svc, pc)
	return pipeline.NewOrchestrator(planner, pipeline.NewReportWriter(pc.OutputDir, pc.Prefix, store)), nil
}

type planSummary struct {
	Run      pipeline.PlanRun `json:"run"`
	Report   string           `json:"report,omitempty"`
	Failures []failureView    `json:"failures,omitempty"`
}

type failureView struct {
	ItemID int64  `json:"item_id"`
	SKU    string `json:"sku"`
	Error  string `json:"error"`
}

func summarize(result *pipeline.RunResult, report string) planSummary {
	s := planSummary{Run: result.Run, Report: report}
	for _, f := range result.Failures {
		s.Failures = append(s.Failures, failureView{ItemID: f.ItemID, SKU: f.SKU, Error: f.Err.Error()})
	}
	return s
}

func (a *application) runPlan(c *cli.Context) error {
	params, err := a.planParams(c)
	if err != nil {
		return err
	}
	repo, release, err := a.openRepository(c.Context, c)
	if err != nil {
		return err
	}
	defer release()

	svc, closeCache := a.newService(c.Context)
	defer closeCache()

	if c.Bool("refresh") {
		if err := svc.InvalidateCache(c.Context); err != nil {
			log.Warn().Err(err).Msg("failed to drop cached plans")
		}
	}

	orch, err := a.newOrchestrator(c, repo, svc)
	if err != nil {
		return err
	}

	result, report, err := orch.Run(c.Context, c.Int64Slice("item-id"), params)
	if result != nil {
		if perr := printJSON(summarize(result, report)); perr != nil {
			return perr
		}
	}
	return err
}

func (a *application) runSuggest(c *cli.Context) error {
	params, err := a.planParams(c)
	if err != nil {
		return err
	}
	repo, release, err := a.openRepository(c.Context, c)
	if err != nil {
		return err
	}
	defer release()

	svc, closeCache := a.newService(c.Context)
	defer closeCache()

	planner := pipeline.NewPlanner(repo, svc, pipeline.DefaultPlannerConfig())
	result, err := planner.Run(c.Context, c.Int64Slice("item-id"), params)
	if err != nil {
		return err
	}
	return printJSON(insight.BuildSuggestions(c.Context, result.Plans, c.Int("limit"), nil))
}

func (a *application) runAnomalies(c *cli.Context) error {
	asOf, err := parseAsOf(c.String("as-of"), time.Now())
	if err != nil {
		return err
	}
	lookback := a.cfg.Forecast.LookbackDays
	if c.IsSet("lookback") {
		lookback = c.Int("lookback")
	}

	repo, release, err := a.openRepository(c.Context, c)
	if err != nil {
		return err
	}
	defer release()

	ids := c.Int64Slice("item-id")
	items, err := repo.ListItems(c.Context, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]domain.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	since := domain.NewDate(asOf).AddDays(-lookback).Time
	movements, err := repo.ListMovements(c.Context, ids, since)
	if err != nil {
		return err
	}
	return printJSON(insight.DetectAnomalies(movements, byID, c.Int("limit")))
}

func (a *application) runSchedule(c *cli.Context) error {
	if c.IsSet("as-of") {
		return fmt.Errorf("--as-of cannot be used with schedule")
	}

	svc, closeCache := a.newService(c.Context)
	defer closeCache()

	job := scheduler.FuncJob{
		JobName: "replenishment-plan",
		Spec:    c.String("cron"),
		Fn: func(ctx context.Context) error {
			params, err := a.planParams(c)
			if err != nil {
				return err
			}
			repo, release, err := a.openRepository(ctx, c)
			if err != nil {
				return err
			}
			defer release()

			orch, err := a.newOrchestrator(c, repo, svc)
			if err != nil {
				return err
			}
			result, report, err := orch.Run(ctx, c.Int64Slice("item-id"), params)
			if err != nil {
				return err
			}
			log.Info().
				Int("planned", result.Run.PlannedItems).
				Int("failed", result.Run.FailedItems).
				Str("report", report).
				Msg("scheduled plan run finished")
			return nil
		},
	}

	s := scheduler.New()
	if err := s.AddJob(job); err != nil {
		return err
	}
	if c.Bool("run-now") {
		if _, err := s.RunNow(job.Name()); err != nil {
			return err
		}
	}

	s.Start()
	<-c.Context.Done()
	s.Stop()
	return nil
}
