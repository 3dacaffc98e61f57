package domain

import "strings"

// ForecastMethod names the strategy that produced a forecast.
type ForecastMethod string

const (
	MethodZeroDemand      ForecastMethod = "zero-demand-baseline"
	MethodWeightedAverage ForecastMethod = "weighted-moving-average"
	MethodGradientBoosted ForecastMethod = "gradient-boosted-lag-model"
)

// StockoutRisk is the coarse risk tier attached to a reorder policy.
type StockoutRisk string

const (
	RiskLow    StockoutRisk = "LOW"
	RiskMedium StockoutRisk = "MEDIUM"
	RiskHigh   StockoutRisk = "HIGH"
)

var transactionTypes = map[string]TransactionType{
	"inbound":    TransactionInbound,
	"outbound":   TransactionOutbound,
	"adjustment": TransactionAdjustment,
}

var itemStatuses = map[string]ItemStatus{
	"in_stock":     ItemInStock,
	"low_stock":    ItemLowStock,
	"ordered":      ItemOrdered,
	"discontinued": ItemDiscontinued,
}

// ParseTransactionType returns the transaction type for a label (case-insensitive).
func ParseTransactionType(label string) (TransactionType, bool) {
	t, ok := transactionTypes[strings.ToLower(strings.TrimSpace(label))]
	return t, ok
}

// ParseItemStatus returns the item status for a label (case-insensitive).
// Empty labels map to in_stock.
func ParseItemStatus(label string) (ItemStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return ItemInStock, true
	}
	s, ok := itemStatuses[normalized]
	return s, ok
}
