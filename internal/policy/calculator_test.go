package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andresuchdata/autopo-forecast/internal/config"
	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

func intPtr(v int) *int { return &v }

func TestCalculateWorkedExample(t *testing.T) {
	got := Calculate(domain.PolicyInput{
		OnHand:           5,
		LeadTimeDays:     3,
		ServiceLevel:     0.9,
		DailyP50:         4,
		DailyStd:         1,
		ReviewPeriodDays: 7,
	})

	assert.Equal(t, domain.ReorderPolicy{
		OnHand:              5,
		LeadTimeDays:        3,
		ForecastDailyP50:    4,
		SafetyStock:         2,
		ReorderPoint:        14,
		TargetStock:         42,
		RecommendedOrderQty: 38,
		StockoutRisk:        domain.RiskHigh,
	}, got)
}

func TestCalculateSafetyStockAt95(t *testing.T) {
	got := Calculate(domain.PolicyInput{
		OnHand:           1000,
		LeadTimeDays:     4,
		ServiceLevel:     0.95,
		DailyStd:         10,
		ReviewPeriodDays: 7,
	})

	assert.Equal(t, 33, got.SafetyStock)
	assert.Equal(t, 0, got.RecommendedOrderQty)
	assert.Equal(t, domain.RiskLow, got.StockoutRisk)
}

func TestCalculateSafetyStockOverride(t *testing.T) {
	base := domain.PolicyInput{LeadTimeDays: 4, ServiceLevel: 0.95, DailyStd: 10, ReviewPeriodDays: 7}

	base.SafetyStockOverride = intPtr(50)
	assert.Equal(t, 50, Calculate(base).SafetyStock)

	base.SafetyStockOverride = intPtr(5)
	assert.Equal(t, 33, Calculate(base).SafetyStock, "override never lowers the model value")
}

func TestCalculateMinOrderMultiples(t *testing.T) {
	got := Calculate(domain.PolicyInput{
		OnHand:           0,
		LeadTimeDays:     2,
		ServiceLevel:     0.5,
		DailyP50:         10,
		DailyStd:         0,
		ReviewPeriodDays: 1,
		MinOrderQty:      25,
	})

	assert.Equal(t, 20, got.ReorderPoint)
	assert.Equal(t, 30, got.TargetStock)
	assert.Equal(t, 50, got.RecommendedOrderQty)
}

func TestCalculateRiskTiers(t *testing.T) {
	in := domain.PolicyInput{LeadTimeDays: 5, ServiceLevel: 0.5, DailyP50: 4, ReviewPeriodDays: 7}

	tests := []struct {
		onHand int
		want   domain.StockoutRisk
	}{
		{0, domain.RiskHigh},
		{10, domain.RiskHigh},
		{11, domain.RiskMedium},
		{20, domain.RiskMedium},
		{21, domain.RiskLow},
	}
	for _, tt := range tests {
		in.OnHand = tt.onHand
		assert.Equal(t, tt.want, Calculate(in).StockoutRisk, "on_hand=%d", tt.onHand)
	}
}

func TestCalculateClampsInputs(t *testing.T) {
	got := Calculate(domain.PolicyInput{
		OnHand:           3,
		LeadTimeDays:     -2,
		ServiceLevel:     1.5,
		DailyP50:         2.34567,
		DailyStd:         1,
		ReviewPeriodDays: 0,
		MinOrderQty:      -5,
	})

	assert.Equal(t, 1, got.LeadTimeDays)
	assert.InDelta(t, 2.346, got.ForecastDailyP50, 1e-9)
	// z(0.999) ~ 3.09
	assert.Equal(t, 3, got.SafetyStock)
	assert.GreaterOrEqual(t, got.RecommendedOrderQty, 0)

	negative := Calculate(domain.PolicyInput{
		OnHand:           -4,
		LeadTimeDays:     2,
		ServiceLevel:     0.95,
		DailyP50:         3,
		ReviewPeriodDays: 7,
	})
	assert.Equal(t, 0, negative.OnHand, "negative on hand is treated as empty")
	assert.Equal(t, 6, negative.ReorderPoint)
	assert.Equal(t, 27, negative.TargetStock)
	assert.Equal(t, 27, negative.RecommendedOrderQty)
	assert.Equal(t, domain.RiskHigh, negative.StockoutRisk)

	low := Calculate(domain.PolicyInput{LeadTimeDays: 4, ServiceLevel: 0.1, DailyStd: 10})
	assert.Equal(t, 0, low.SafetyStock, "service level floors at 0.5 where z is 0")
}

func TestCalculatorInputUsesDefaults(t *testing.T) {
	calc := NewCalculator(config.PolicyConfig{
		ServiceLevel:     0.95,
		LeadTimeDays:     7,
		ReviewPeriodDays: 14,
		MinOrderQty:      6,
	})
	item := domain.Item{ID: 1, SKU: "A-1", OnHand: 12}
	f := domain.ForecastResult{DailyMean: 3, DailyStd: 1.5}

	in := calc.Input(item, f)
	assert.Equal(t, 7, in.LeadTimeDays)
	assert.Equal(t, 14, in.ReviewPeriodDays)
	assert.Equal(t, 6, in.MinOrderQty)
	assert.InDelta(t, 3.0, in.DailyP50, 1e-9)

	item.LeadTimeDays = 2
	item.MinOrderQty = 10
	in = calc.Input(item, f)
	assert.Equal(t, 2, in.LeadTimeDays)
	assert.Equal(t, 10, in.MinOrderQty)

	policy := calc.ForItem(item, f)
	assert.Equal(t, 0, policy.RecommendedOrderQty%10)
}
