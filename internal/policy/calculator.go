package policy

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/andresuchdata/autopo-forecast/internal/config"
	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

const (
	minServiceLevel = 0.5
	maxServiceLevel = 0.999
)

// Calculator turns a forecast into a reorder policy, filling parameters the
// item does not carry from configured defaults.
type Calculator struct {
	defaults config.PolicyConfig
}

// NewCalculator creates a calculator with the given defaults.
func NewCalculator(defaults config.PolicyConfig) *Calculator {
	return &Calculator{defaults: defaults}
}

// Input assembles the policy parameters for item from its forecast.
func (c *Calculator) Input(item domain.Item, f domain.ForecastResult) domain.PolicyInput {
	in := domain.PolicyInput{
		OnHand:              item.OnHand,
		LeadTimeDays:        item.LeadTimeDays,
		ServiceLevel:        c.defaults.ServiceLevel,
		DailyP50:            f.DailyMean,
		DailyStd:            f.DailyStd,
		ReviewPeriodDays:    c.defaults.ReviewPeriodDays,
		MinOrderQty:         item.MinOrderQty,
		SafetyStockOverride: item.SafetyStockOverride,
	}
	if in.LeadTimeDays <= 0 {
		in.LeadTimeDays = c.defaults.LeadTimeDays
	}
	if in.MinOrderQty <= 0 {
		in.MinOrderQty = c.defaults.MinOrderQty
	}
	return in
}

// ForItem is Input followed by Calculate.
func (c *Calculator) ForItem(item domain.Item, f domain.ForecastResult) domain.ReorderPolicy {
	return Calculate(c.Input(item, f))
}

// Calculate computes safety stock, reorder point, order-up-to level and the
// order quantity under a normal demand assumption. Out of range inputs are
// clamped rather than rejected.
func Calculate(in domain.PolicyInput) domain.ReorderPolicy {
	leadTime := maxInt(1, in.LeadTimeDays)
	review := maxInt(1, in.ReviewPeriodDays)
	serviceLevel := math.Min(math.Max(in.ServiceLevel, minServiceLevel), maxServiceLevel)
	dailyP50 := math.Max(in.DailyP50, 0)
	dailyStd := math.Max(in.DailyStd, 0)
	onHandQty := maxInt(0, in.OnHand)
	onHand := float64(onHandQty)
	moq := maxInt(0, in.MinOrderQty)

	// 1. Safety stock = z(service level) x sigma x sqrt(lead time)
	z := distuv.UnitNormal.Quantile(serviceLevel)
	safetyStock := z * dailyStd * math.Sqrt(float64(leadTime))
	if in.SafetyStockOverride != nil {
		safetyStock = math.Max(float64(*in.SafetyStockOverride), safetyStock)
	}

	// 2. Reorder point = lead time demand + safety stock
	reorderPoint := dailyP50*float64(leadTime) + safetyStock

	// 3. Target stock covers the review period on top of the reorder point
	targetStock := reorderPoint + dailyP50*float64(review)

	// 4. Order up to target, rounded up to whole MOQ multiples
	orderQty := int(math.Max(0, math.Ceil(targetStock-onHand)))
	if orderQty > 0 && moq > 0 {
		orderQty = int(math.Ceil(float64(orderQty)/float64(moq))) * moq
	}

	return domain.ReorderPolicy{
		OnHand:              onHandQty,
		LeadTimeDays:        leadTime,
		ForecastDailyP50:    domain.Round(dailyP50, 3),
		SafetyStock:         int(math.RoundToEven(safetyStock)),
		ReorderPoint:        int(math.RoundToEven(reorderPoint)),
		TargetStock:         int(math.RoundToEven(targetStock)),
		RecommendedOrderQty: orderQty,
		StockoutRisk:        stockoutRisk(onHand, reorderPoint),
	}
}

func stockoutRisk(onHand, reorderPoint float64) domain.StockoutRisk {
	switch {
	case onHand <= reorderPoint*0.5:
		return domain.RiskHigh
	case onHand <= reorderPoint:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
