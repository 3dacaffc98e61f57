package insight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func noisyMovements() []domain.Movement {
	var out []domain.Movement
	for i := 0; i < 20; i++ {
		out = append(out, domain.Movement{
			ItemID:          1,
			TransactionType: domain.TransactionOutbound,
			QuantityDelta:   -1,
			CreatedAt:       baseTime.Add(time.Duration(i) * time.Hour),
		})
	}
	out = append(out,
		domain.Movement{ItemID: 2, TransactionType: domain.TransactionInbound, QuantityDelta: 16, CreatedAt: baseTime.Add(30 * time.Hour)},
		domain.Movement{ItemID: 1, TransactionType: domain.TransactionOutbound, QuantityDelta: -25, CreatedAt: baseTime.Add(40 * time.Hour)},
	)
	return out
}

func TestAnomalyThreshold(t *testing.T) {
	assert.InDelta(t, 14.5796, AnomalyThreshold(noisyMovements()), 1e-3)

	small := []domain.Movement{{QuantityDelta: 1}, {QuantityDelta: -2}}
	assert.InDelta(t, 10.0, AnomalyThreshold(small), 1e-9)
	assert.InDelta(t, 10.0, AnomalyThreshold(nil), 1e-9)
}

func TestDetectAnomalies(t *testing.T) {
	items := map[int64]domain.Item{
		1: {ID: 1, SKU: "SKU-1", Name: "Widget"},
		2: {ID: 2, SKU: "SKU-2", Name: "Gadget"},
	}

	alerts := DetectAnomalies(noisyMovements(), items, 0)

	require.Len(t, alerts, 2)
	assert.Equal(t, int64(1), alerts[0].ItemID, "newest first")
	assert.Equal(t, SeverityHigh, alerts[0].Severity)
	assert.Equal(t, -25, alerts[0].QuantityDelta)
	assert.Contains(t, alerts[0].Explanation, "outbound movement (-25)")

	assert.Equal(t, int64(2), alerts[1].ItemID)
	assert.Equal(t, SeverityMedium, alerts[1].Severity)
	assert.Contains(t, alerts[1].Explanation, "(+16)")
}

func TestDetectAnomaliesSkipsUnknownItemsAndHonoursLimit(t *testing.T) {
	onlyGadget := map[int64]domain.Item{2: {ID: 2, SKU: "SKU-2"}}
	alerts := DetectAnomalies(noisyMovements(), onlyGadget, 5)
	require.Len(t, alerts, 1)
	assert.Equal(t, "SKU-2", alerts[0].SKU)

	all := map[int64]domain.Item{1: {ID: 1}, 2: {ID: 2}}
	assert.Len(t, DetectAnomalies(noisyMovements(), all, 1), 1)

	assert.Empty(t, DetectAnomalies(nil, all, 5))
}
