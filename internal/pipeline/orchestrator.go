package pipeline

import (
	"context"
	"fmt"

	"github.com/andresuchdata/autopo-forecast/internal/service"
)

// Orchestrator runs the planner and publishes the report for a run.
type Orchestrator struct {
	planner *Planner
	writer  *ReportWriter
}

// NewOrchestrator creates a new Orchestrator. writer may be nil to skip reports.
func NewOrchestrator(planner *Planner, writer *ReportWriter) *Orchestrator {
	return &Orchestrator{planner: planner, writer: writer}
}

// Run plans the items and writes the report. The report path is empty when
// no writer is configured.
func (o *Orchestrator) Run(ctx context.Context, itemIDs []int64, params service.PlanParams) (*RunResult, string, error) {
	result, err := o.planner.Run(ctx, itemIDs, params)
	if err != nil {
		return result, "", err
	}
	if o.writer == nil {
		return result, "", nil
	}

	path, err := o.writer.Write(ctx, result.Run.AsOf, result.Plans)
	if err != nil {
		return result, path, fmt.Errorf("failed to publish report for %s: %w", result.Run.AsOf, err)
	}
	return result, path, nil
}
