package insight

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

const (
	minAnomalyThreshold = 10.0
	highSeverityFactor  = 1.5

	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Alert flags a movement that is large compared with the batch baseline.
type Alert struct {
	ItemID          int64                  `json:"item_id"`
	SKU             string                 `json:"sku"`
	Name            string                 `json:"name"`
	Severity        string                 `json:"severity"`
	TransactionType domain.TransactionType `json:"transaction_type"`
	QuantityDelta   int                    `json:"quantity_delta"`
	Explanation     string                 `json:"explanation"`
	SuggestedAction string                 `json:"suggested_action"`
	CreatedAt       time.Time              `json:"created_at"`
}

// AnomalyThreshold returns the magnitude at or above which a movement is
// reported: max(10, mean + 2 std) over |delta|.
func AnomalyThreshold(movements []domain.Movement) float64 {
	if len(movements) == 0 {
		return minAnomalyThreshold
	}
	var sum float64
	for _, m := range movements {
		sum += math.Abs(float64(m.QuantityDelta))
	}
	avg := sum / float64(len(movements))

	var sq float64
	for _, m := range movements {
		d := math.Abs(float64(m.QuantityDelta)) - avg
		sq += d * d
	}
	divisor := math.Max(1, float64(len(movements)-1))
	std := math.Sqrt(sq / divisor)

	return math.Max(minAnomalyThreshold, avg+2*std)
}

// DetectAnomalies reports outsized movements newest first. Movements for
// items missing from items are skipped.
func DetectAnomalies(movements []domain.Movement, items map[int64]domain.Item, limit int) []Alert {
	alerts := []Alert{}
	if len(movements) == 0 {
		return alerts
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	threshold := AnomalyThreshold(movements)

	ordered := make([]domain.Movement, len(movements))
	copy(ordered, movements)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	for _, m := range ordered {
		magnitude := math.Abs(float64(m.QuantityDelta))
		if magnitude < threshold {
			continue
		}
		item, ok := items[m.ItemID]
		if !ok {
			continue
		}
		severity := SeverityMedium
		if magnitude >= threshold*highSeverityFactor {
			severity = SeverityHigh
		}
		alerts = append(alerts, Alert{
			ItemID:          item.ID,
			SKU:             item.SKU,
			Name:            item.Name,
			Severity:        severity,
			TransactionType: m.TransactionType,
			QuantityDelta:   m.QuantityDelta,
			Explanation: fmt.Sprintf("Unusually large %s movement (%+d) compared with recent baseline.",
				strings.ToLower(string(m.TransactionType)), m.QuantityDelta),
			SuggestedAction: "Review related orders and count inventory for this SKU.",
			CreatedAt:       m.CreatedAt,
		})
		if len(alerts) >= limit {
			break
		}
	}
	return alerts
}
