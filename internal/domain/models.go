// internal/domain/models.go
package domain

import "time"

// TransactionType classifies a stock movement.
type TransactionType string

const (
	TransactionInbound    TransactionType = "INBOUND"
	TransactionOutbound   TransactionType = "OUTBOUND"
	TransactionAdjustment TransactionType = "ADJUSTMENT"
)

// Movement is a single stock movement event from the record store.
type Movement struct {
	ItemID          int64           `json:"item_id" db:"item_id"`
	TransactionType TransactionType `json:"transaction_type" db:"transaction_type"`
	QuantityDelta   int             `json:"quantity_delta" db:"quantity_delta"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// IsDemand reports whether the movement counts as customer demand.
// Only outbound movements that reduce stock qualify.
func (m Movement) IsDemand() bool {
	return m.TransactionType == TransactionOutbound && m.QuantityDelta < 0
}

// ItemStatus mirrors the record store's item lifecycle.
type ItemStatus string

const (
	ItemInStock      ItemStatus = "in_stock"
	ItemLowStock     ItemStatus = "low_stock"
	ItemOrdered      ItemStatus = "ordered"
	ItemDiscontinued ItemStatus = "discontinued"
)

// Item is the subset of an inventory record the planner needs.
// Zero LeadTimeDays / MinOrderQty mean "use the configured default".
type Item struct {
	ID                  int64      `json:"id" db:"id"`
	SKU                 string     `json:"sku" db:"sku"`
	Name                string     `json:"name" db:"name"`
	Status              ItemStatus `json:"status" db:"status"`
	OnHand              int        `json:"on_hand" db:"quantity"`
	LeadTimeDays        int        `json:"lead_time_days,omitempty" db:"-"`
	MinOrderQty         int        `json:"min_order_qty,omitempty" db:"-"`
	SafetyStockOverride *int       `json:"safety_stock_override,omitempty" db:"-"`
}

// DemandPoint is one day of observed demand echoed back in a forecast.
type DemandPoint struct {
	Date   Date    `json:"date"`
	Demand float64 `json:"demand"`
}

// ForecastRow is one future day with its quantile band.
type ForecastRow struct {
	Date Date    `json:"date"`
	P10  float64 `json:"p10"`
	P50  float64 `json:"p50"`
	P90  float64 `json:"p90"`
}

// ForecastResult is the full output of a forecast run.
type ForecastResult struct {
	Method      ForecastMethod `json:"method"`
	HoldoutWAPE *float64       `json:"holdout_error"`
	History     []DemandPoint  `json:"history"`
	Forecast    []ForecastRow  `json:"forecast"`
	DailyMean   float64        `json:"daily_mean"`
	DailyStd    float64        `json:"daily_std"`
}

// PolicyInput carries the parameters of a reorder policy computation.
type PolicyInput struct {
	OnHand              int     `json:"on_hand"`
	LeadTimeDays        int     `json:"lead_time_days"`
	ServiceLevel        float64 `json:"service_level"`
	DailyP50            float64 `json:"daily_p50"`
	DailyStd            float64 `json:"daily_std"`
	ReviewPeriodDays    int     `json:"review_period_days"`
	MinOrderQty         int     `json:"min_order_qty"`
	SafetyStockOverride *int    `json:"safety_stock_override,omitempty"`
}

// ReorderPolicy is the actionable replenishment recommendation.
type ReorderPolicy struct {
	OnHand              int          `json:"on_hand"`
	LeadTimeDays        int          `json:"lead_time_days"`
	ForecastDailyP50    float64      `json:"forecast_daily_p50"`
	SafetyStock         int          `json:"safety_stock"`
	ReorderPoint        int          `json:"reorder_point"`
	TargetStock         int          `json:"target_stock"`
	RecommendedOrderQty int          `json:"recommended_order_qty"`
	StockoutRisk        StockoutRisk `json:"stockout_risk"`
}

// ItemPlan bundles the forecast and policy computed for one item.
type ItemPlan struct {
	Item     Item           `json:"item"`
	AsOf     Date           `json:"as_of"`
	Forecast ForecastResult `json:"forecast"`
	Policy   ReorderPolicy  `json:"policy"`
}
