package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-forecast/internal/config"
	"github.com/andresuchdata/autopo-forecast/internal/observability"
	"github.com/andresuchdata/autopo-forecast/internal/repository/postgres"
	"github.com/andresuchdata/autopo-forecast/pkg/logger"
)

// application carries process-wide state set up in Before.
type application struct {
	cfg             *config.Config
	db              *postgres.DB
	shutdownTracing func(context.Context) error
}

func (a *application) before(c *cli.Context) error {
	a.cfg = config.Load()

	if c.IsSet("log-level") {
		a.cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		a.cfg.Log.Format = c.String("log-format")
	}
	logger.SetOutput(os.Stderr, a.cfg.Log.Format == "json")
	logger.SetLevel(a.cfg.Log.Level)

	shutdown, err := observability.InitTracing(a.cfg.Tracing)
	if err != nil {
		return err
	}
	a.shutdownTracing = shutdown
	return nil
}

func (a *application) after(c *cli.Context) error {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("failed to close database")
		}
	}
	if a.shutdownTracing == nil {
		return nil
	}
	return a.shutdownTracing(context.Background())
}

func newApp() *cli.App {
	a := &application{}

	return &cli.App{
		Name:  "replenish",
		Usage: "Forecast item demand and compute reorder policies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (console or json)",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			{
				Name:  "forecast",
				Usage: "Forecast daily demand from a movements export",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "movements",
						Usage:    "CSV or XLSX movements export",
						Required: true,
					},
					&cli.Int64Flag{
						Name:  "item-id",
						Usage: "Only use movements of this item",
					},
				}, forecastFlags()...),
				Action: a.runForecast,
			},
			{
				Name:  "policy",
				Usage: "Compute a reorder policy from explicit inputs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "on-hand", Usage: "Units currently on hand", Required: true},
					&cli.IntFlag{Name: "lead-time", Usage: "Supplier lead time in days", Required: true},
					&cli.Float64Flag{Name: "service-level", Usage: "Target cycle service level", Value: 0.95},
					&cli.Float64Flag{Name: "p50", Usage: "Forecast daily median demand", Required: true},
					&cli.Float64Flag{Name: "std", Usage: "Daily demand standard deviation", Required: true},
					&cli.IntFlag{Name: "review-period", Usage: "Review period in days", Value: 7},
					&cli.IntFlag{Name: "min-order", Usage: "Minimum order quantity"},
					&cli.IntFlag{Name: "safety-stock", Usage: "Fixed safety stock override"},
				},
				Action: a.runPolicy,
			},
			{
				Name:  "plan",
				Usage: "Plan every item and write the replenishment report",
				Flags: append(sourceFlags(), append(planFlags(), &cli.BoolFlag{
					Name:  "refresh",
					Usage: "Drop cached plans before planning",
				})...),
				Action: a.runPlan,
			},
			{
				Name:  "suggest",
				Usage: "Rank items that need a purchase order",
				Flags: append(sourceFlags(), append(forecastFlags(), &cli.IntFlag{
					Name:  "limit",
					Usage: "Maximum number of suggestions",
				})...),
				Action: a.runSuggest,
			},
			{
				Name:  "anomalies",
				Usage: "Report outsized stock movements",
				Flags: append(sourceFlags(),
					&cli.IntFlag{Name: "lookback", Usage: "Days of movements to inspect"},
					&cli.StringFlag{Name: "as-of", Usage: "Reference date (YYYY-MM-DD)"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of alerts"},
				),
				Action: a.runAnomalies,
			},
			{
				Name:  "schedule",
				Usage: "Run the planner on a cron schedule",
				Flags: append(sourceFlags(), append(planFlags(),
					&cli.StringFlag{
						Name:    "cron",
						Usage:   "Cron expression for plan runs",
						Value:   "0 2 * * *",
						EnvVars: []string{"PLAN_SCHEDULE"},
					},
					&cli.BoolFlag{
						Name:  "run-now",
						Usage: "Run once immediately before waiting for the schedule",
					},
				)...),
				Action: a.runSchedule,
			},
		},
	}
}

func forecastFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "horizon", Usage: "Forecast horizon in days"},
		&cli.IntFlag{Name: "lookback", Usage: "Days of history to use"},
		&cli.BoolFlag{Name: "no-ml", Usage: "Disable the gradient-boosted model"},
		&cli.StringFlag{Name: "as-of", Usage: "Reference date (YYYY-MM-DD)"},
	}
}

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "items", Usage: "CSV or XLSX items export"},
		&cli.StringFlag{Name: "movements", Usage: "CSV or XLSX movements export"},
		&cli.StringFlag{Name: "drive-items", Usage: "Google Drive file id of the items export"},
		&cli.StringFlag{Name: "drive-movements", Usage: "Google Drive file id of the movements export"},
		&cli.StringFlag{
			Name:    "db-url",
			Usage:   "Database connection string, used when no export is given",
			EnvVars: []string{"DB_URL", "DATABASE_URL"},
		},
		&cli.Int64SliceFlag{Name: "item-id", Usage: "Restrict to these item ids"},
	}
}

func planFlags() []cli.Flag {
	return append(forecastFlags(),
		&cli.StringFlag{
			Name:    "output-dir",
			Usage:   "Directory for plan reports",
			EnvVars: []string{"PIPELINE_OUTPUT_DIR"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "Items planned concurrently",
			EnvVars: []string{"PIPELINE_WORKERS"},
		},
		&cli.BoolFlag{
			Name:  "upload",
			Usage: "Upload the report to object storage",
		},
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
