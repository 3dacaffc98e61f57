package pipeline

import (
	"runtime"
	"time"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

// PlannerConfig holds configuration for a planner instance
type PlannerConfig struct {
	Workers   int    // Number of items planned concurrently
	OutputDir string // Directory for plan reports
	Prefix    string // Object key prefix for uploaded reports
}

// DefaultPlannerConfig returns sensible defaults
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		Workers:   runtime.NumCPU(),
		OutputDir: "data/plans",
		Prefix:    "plans",
	}
}

// RunStatus represents the current state of a plan run
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// PlanRun tracks a single execution of the planner
type PlanRun struct {
	AsOf         domain.Date                   `json:"as_of"`
	Status       RunStatus                     `json:"status"`
	TotalItems   int                           `json:"total_items"`
	PlannedItems int                           `json:"planned_items"`
	FailedItems  int                           `json:"failed_items"`
	Methods      map[domain.ForecastMethod]int `json:"methods"`
	StartedAt    time.Time                     `json:"started_at"`
	CompletedAt  *time.Time                    `json:"completed_at,omitempty"`
	ErrorMessage string                        `json:"error_message,omitempty"`
}

// ItemFailure records an item that could not be planned
type ItemFailure struct {
	ItemID int64
	SKU    string
	Err    error
}

// RunResult is the outcome of Planner.Run. Plans are in item order.
type RunResult struct {
	Run      PlanRun
	Plans    []domain.ItemPlan
	Failures []ItemFailure
}
