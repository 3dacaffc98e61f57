package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

func TestMemoryRepository(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := NewMemoryRepository(
		[]domain.Item{{ID: 2, SKU: "B"}, {ID: 1, SKU: "A"}},
		[]domain.Movement{
			{ItemID: 1, QuantityDelta: -1, CreatedAt: t0.Add(48 * time.Hour)},
			{ItemID: 2, QuantityDelta: -2, CreatedAt: t0},
			{ItemID: 1, QuantityDelta: -3, CreatedAt: t0.Add(24 * time.Hour)},
		},
	)
	ctx := context.Background()

	items, err := repo.ListItems(ctx, nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].SKU)

	items, err = repo.ListItems(ctx, []int64{2, 99})
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = repo.GetItem(ctx, 99)
	assert.ErrorIs(t, err, ErrItemNotFound)

	movements, err := repo.ListMovements(ctx, []int64{1}, time.Time{})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, -3, movements[0].QuantityDelta, "ordered by created_at")

	movements, err = repo.ListMovements(ctx, nil, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, movements, 2)

	grouped := GroupByItem(movements)
	assert.Len(t, grouped[1], 2)
	assert.Empty(t, grouped[2])
}
