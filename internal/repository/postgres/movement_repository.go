package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
	"github.com/andresuchdata/autopo-forecast/internal/repository"
)

type itemRow struct {
	ID       int64  `db:"id"`
	SKU      string `db:"sku"`
	Name     string `db:"name"`
	Status   string `db:"status"`
	Quantity int    `db:"quantity"`
}

type movementRow struct {
	ItemID        int64     `db:"item_id"`
	EventType     string    `db:"event_type"`
	QuantityDelta int       `db:"quantity_delta"`
	CreatedAt     time.Time `db:"created_at"`
}

type movementRepository struct {
	db *DB
}

func NewMovementRepository(db *DB) repository.MovementRepository {
	return &movementRepository{db: db}
}

const itemColumns = `id, sku, name, status::text AS status, quantity`

func (r *movementRepository) ListItems(ctx context.Context, ids []int64) ([]domain.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE is_deleted = false
		  AND (cardinality($1::bigint[]) = 0 OR id = ANY($1::bigint[]))
		ORDER BY id ASC
	`

	var rows []itemRow
	err := r.db.withPermit(ctx, func() error {
		return sqlx.SelectContext(ctx, r.db, &rows, query, pq.Array(nonNil(ids)))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	items := make([]domain.Item, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, nil
}

func (r *movementRepository) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE is_deleted = false AND id = $1
	`

	var row itemRow
	err := r.db.withPermit(ctx, func() error {
		return sqlx.GetContext(ctx, r.db, &row, query, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, repository.ErrItemNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return row.toDomain(), nil
}

func (r *movementRepository) ListMovements(ctx context.Context, itemIDs []int64, since time.Time) ([]domain.Movement, error) {
	query := `
		SELECT item_id, event_type::text AS event_type, quantity_delta, created_at
		FROM quantity_events
		WHERE (cardinality($1::bigint[]) = 0 OR item_id = ANY($1::bigint[]))
		  AND created_at >= $2
		ORDER BY created_at ASC, id ASC
	`

	var rows []movementRow
	err := r.db.withPermit(ctx, func() error {
		return sqlx.SelectContext(ctx, r.db, &rows, query, pq.Array(nonNil(itemIDs)), since)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}

	movements := make([]domain.Movement, 0, len(rows))
	for _, row := range rows {
		txType, ok := domain.ParseTransactionType(row.EventType)
		if !ok {
			log.Warn().Str("event_type", row.EventType).Int64("item_id", row.ItemID).Msg("skipping movement with unknown type")
			continue
		}
		movements = append(movements, domain.Movement{
			ItemID:          row.ItemID,
			TransactionType: txType,
			QuantityDelta:   row.QuantityDelta,
			CreatedAt:       row.CreatedAt,
		})
	}
	return movements, nil
}

func (row itemRow) toDomain() domain.Item {
	status, ok := domain.ParseItemStatus(row.Status)
	if !ok {
		status = domain.ItemInStock
	}
	return domain.Item{
		ID:     row.ID,
		SKU:    row.SKU,
		Name:   row.Name,
		Status: status,
		OnHand: row.Quantity,
	}
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
