package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
)

// MemoryRepository serves items and movements loaded from exports.
type MemoryRepository struct {
	mu        sync.RWMutex
	items     map[int64]domain.Item
	movements []domain.Movement
}

func NewMemoryRepository(items []domain.Item, movements []domain.Movement) *MemoryRepository {
	r := &MemoryRepository{items: make(map[int64]domain.Item, len(items))}
	for _, it := range items {
		r.items[it.ID] = it
	}
	r.movements = make([]domain.Movement, len(movements))
	copy(r.movements, movements)
	sort.SliceStable(r.movements, func(i, j int) bool {
		return r.movements[i].CreatedAt.Before(r.movements[j].CreatedAt)
	})
	return r
}

func (r *MemoryRepository) ListItems(_ context.Context, ids []int64) ([]domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Item
	if len(ids) == 0 {
		out = make([]domain.Item, 0, len(r.items))
		for _, it := range r.items {
			out = append(out, it)
		}
	} else {
		for _, id := range ids {
			if it, ok := r.items[id]; ok {
				out = append(out, it)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepository) GetItem(_ context.Context, id int64) (domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return domain.Item{}, ErrItemNotFound
	}
	return it, nil
}

func (r *MemoryRepository) ListMovements(_ context.Context, itemIDs []int64, since time.Time) ([]domain.Movement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[int64]bool, len(itemIDs))
	for _, id := range itemIDs {
		wanted[id] = true
	}

	var out []domain.Movement
	for _, m := range r.movements {
		if len(wanted) > 0 && !wanted[m.ItemID] {
			continue
		}
		if !since.IsZero() && m.CreatedAt.Before(since) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
