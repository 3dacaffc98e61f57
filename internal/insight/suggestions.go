package insight

import (
	"context"
	"sort"
	"strings"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
	"github.com/andresuchdata/autopo-forecast/pkg/logger"
)

const DefaultLimit = 20

const (
	SourceFallback = "fallback"
	SourceNarrator = "narrator"
)

const (
	reasonBelowReorderPoint = "On-hand is at/below forecast reorder point"
	reasonTopUp             = "Top up to target stock for the review cycle"
)

// Suggestion is one ranked reorder candidate.
type Suggestion struct {
	ItemID              int64               `json:"item_id"`
	SKU                 string              `json:"sku"`
	Name                string              `json:"name"`
	Status              domain.ItemStatus   `json:"status"`
	OnHand              int                 `json:"on_hand"`
	ReorderPoint        int                 `json:"reorder_point"`
	TargetStock         int                 `json:"target_stock"`
	RecommendedOrderQty int                 `json:"recommended_order_qty"`
	StockoutRisk        domain.StockoutRisk `json:"stockout_risk"`
	Reason              string              `json:"reason"`
}

// SuggestionReport carries the ranked suggestions and where their reasons came from.
type SuggestionReport struct {
	Source      string       `json:"source"`
	Suggestions []Suggestion `json:"suggestions"`
}

// Narrator rewrites suggestion reasons, keyed by item id. Implementations
// may be slow or unavailable; errors are ignored.
type Narrator interface {
	Narrate(ctx context.Context, suggestions []Suggestion) (map[int64]string, error)
}

// NarratorFunc adapts a function to Narrator.
type NarratorFunc func(ctx context.Context, suggestions []Suggestion) (map[int64]string, error)

func (f NarratorFunc) Narrate(ctx context.Context, suggestions []Suggestion) (map[int64]string, error) {
	return f(ctx, suggestions)
}

// BuildSuggestions ranks plans that need attention: items already at or
// below their reorder point come first, then larger orders, then SKU.
// Discontinued items are skipped. narrator may be nil.
func BuildSuggestions(ctx context.Context, plans []domain.ItemPlan, limit int, narrator Narrator) SuggestionReport {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ranked := make([]Suggestion, 0, len(plans))
	for _, p := range plans {
		if p.Item.Status == domain.ItemDiscontinued {
			continue
		}
		if p.Policy.StockoutRisk == domain.RiskLow && p.Policy.RecommendedOrderQty <= 0 {
			continue
		}
		reason := reasonTopUp
		if p.Policy.OnHand <= p.Policy.ReorderPoint {
			reason = reasonBelowReorderPoint
		}
		ranked = append(ranked, Suggestion{
			ItemID:              p.Item.ID,
			SKU:                 p.Item.SKU,
			Name:                p.Item.Name,
			Status:              p.Item.Status,
			OnHand:              p.Policy.OnHand,
			ReorderPoint:        p.Policy.ReorderPoint,
			TargetStock:         p.Policy.TargetStock,
			RecommendedOrderQty: p.Policy.RecommendedOrderQty,
			StockoutRisk:        p.Policy.StockoutRisk,
			Reason:              reason,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		aBelow, bBelow := a.OnHand <= a.ReorderPoint, b.OnHand <= b.ReorderPoint
		if aBelow != bBelow {
			return aBelow
		}
		if a.RecommendedOrderQty != b.RecommendedOrderQty {
			return a.RecommendedOrderQty > b.RecommendedOrderQty
		}
		return a.SKU < b.SKU
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	report := SuggestionReport{Source: SourceFallback, Suggestions: ranked}
	if narrator == nil || len(ranked) == 0 {
		return report
	}

	// The narrator sees a copy so it can only influence reasons.
	candidates := make([]Suggestion, len(ranked))
	copy(candidates, ranked)
	reasons, err := narrator.Narrate(ctx, candidates)
	if err != nil {
		logger.Log.Warn().Err(err).Int("suggestions", len(ranked)).Msg("narrator failed, keeping rule-based reasons")
		return report
	}
	for i := range ranked {
		if text := strings.TrimSpace(reasons[ranked[i].ItemID]); text != "" {
			ranked[i].Reason = text
		}
	}
	report.Source = SourceNarrator
	return report
}
