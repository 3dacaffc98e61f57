package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
	"github.com/andresuchdata/autopo-forecast/internal/storage"
)

var reportHeader = []string{
	"item_id", "sku", "name", "status", "as_of",
	"method", "holdout_error", "daily_mean", "daily_std",
	"on_hand", "lead_time_days", "forecast_daily_p50",
	"safety_stock", "reorder_point", "target_stock",
	"recommended_order_qty", "stockout_risk",
}

// ReportWriter writes plan reports as CSV and optionally uploads them.
type ReportWriter struct {
	outputDir string
	prefix    string
	storage   storage.ObjectStorage
}

// NewReportWriter creates a writer. store may be nil to skip uploads.
func NewReportWriter(outputDir, prefix string, store storage.ObjectStorage) *ReportWriter {
	return &ReportWriter{outputDir: outputDir, prefix: prefix, storage: store}
}

// ReportName is the file name for a run on asOf.
func ReportName(asOf domain.Date) string {
	return asOf.Format("20060102") + ".csv"
}

// Write stores plans under OutputDir/<YYYYMMDD>.csv and returns the path.
func (w *ReportWriter) Write(ctx context.Context, asOf domain.Date, plans []domain.ItemPlan) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	path := filepath.Join(w.outputDir, ReportName(asOf))
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	if err := WriteCSV(f, plans); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to finalize report: %w", err)
	}

	log.Info().Str("path", path).Int("rows", len(plans)).Msg("plan report written")

	if w.storage != nil {
		key := storage.ObjectKey(w.prefix, ReportName(asOf))
		if err := w.storage.UploadFile(ctx, key, path, "text/csv"); err != nil {
			return path, fmt.Errorf("failed to upload report: %w", err)
		}
		log.Info().Str("key", key).Msg("plan report uploaded")
	}

	return path, nil
}

// WriteCSV encodes plans with a fixed column order.
func WriteCSV(out io.Writer, plans []domain.ItemPlan) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(reportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, p := range plans {
		holdout := ""
		if p.Forecast.HoldoutWAPE != nil {
			holdout = formatFloat(*p.Forecast.HoldoutWAPE)
		}
		record := []string{
			strconv.FormatInt(p.Item.ID, 10),
			p.Item.SKU,
			p.Item.Name,
			string(p.Item.Status),
			p.AsOf.String(),
			string(p.Forecast.Method),
			holdout,
			formatFloat(p.Forecast.DailyMean),
			formatFloat(p.Forecast.DailyStd),
			strconv.Itoa(p.Policy.OnHand),
			strconv.Itoa(p.Policy.LeadTimeDays),
			formatFloat(p.Policy.ForecastDailyP50),
			strconv.Itoa(p.Policy.SafetyStock),
			strconv.Itoa(p.Policy.ReorderPoint),
			strconv.Itoa(p.Policy.TargetStock),
			strconv.Itoa(p.Policy.RecommendedOrderQty),
			string(p.Policy.StockoutRisk),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row for item %d: %w", p.Item.ID, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
