// internal/repository/movement_repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

var ErrItemNotFound = errors.New("item not found")

// MovementRepository is the read side of the inventory record store.
type MovementRepository interface {
	// ListItems returns the given items, or every active item when ids is empty.
	ListItems(ctx context.Context, ids []int64) ([]domain.Item, error)
	GetItem(ctx context.Context, id int64) (domain.Item, error)
	// ListMovements returns movements at or after since, ordered by created_at.
	// An empty itemIDs means all items.
	ListMovements(ctx context.Context, itemIDs []int64, since time.Time) ([]domain.Movement, error)
}

// GroupByItem splits movements per item, preserving order.
func GroupByItem(movements []domain.Movement) map[int64][]domain.Movement {
	out := make(map[int64][]domain.Movement)
	for _, m := range movements {
		out[m.ItemID] = append(out[m.ItemID], m)
	}
	return out
}
