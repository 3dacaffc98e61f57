package drive

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-forecast/internal/domain"
	"github.com/andresuchdata/autopo-forecast/internal/repository"
)

var ErrMissingColumn = errors.New("missing required column")

var (
	itemColumns     = []string{"item_id", "sku", "name", "on_hand"}
	movementColumns = []string{"item_id", "transaction_type", "quantity_delta", "created_at"}
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	domain.DateLayout,
}

// FileSource loads items and movements from CSV or XLSX exports.
type FileSource struct {
	ItemsPath     string
	MovementsPath string
}

// Load reads both exports into an in-memory repository. ItemsPath may be
// empty, in which case items are synthesised from movement item ids.
func (s FileSource) Load(ctx context.Context) (*repository.MemoryRepository, error) {
	if s.MovementsPath == "" {
		return nil, fmt.Errorf("movements file is required")
	}
	movements, err := LoadMovements(s.MovementsPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var items []domain.Item
	if s.ItemsPath != "" {
		items, err = LoadItems(s.ItemsPath)
		if err != nil {
			return nil, err
		}
	} else {
		seen := make(map[int64]bool)
		for _, m := range movements {
			if !seen[m.ItemID] {
				seen[m.ItemID] = true
				items = append(items, domain.Item{ID: m.ItemID, SKU: strconv.FormatInt(m.ItemID, 10), Status: domain.ItemInStock})
			}
		}
	}

	return repository.NewMemoryRepository(items, movements), nil
}

// LoadItems parses an items export.
func LoadItems(path string) ([]domain.Item, error) {
	t, err := readTable(path, itemColumns)
	if err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, len(t.rows))
	for i, record := range t.rows {
		item, err := t.parseItem(record)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(path), i+2, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// LoadMovements parses a movements export. Malformed timestamps and unknown
// transaction types are errors.
func LoadMovements(path string) ([]domain.Movement, error) {
	t, err := readTable(path, movementColumns)
	if err != nil {
		return nil, err
	}

	movements := make([]domain.Movement, 0, len(t.rows))
	for i, record := range t.rows {
		m, err := t.parseMovement(record)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(path), i+2, err)
		}
		movements = append(movements, m)
	}
	return movements, nil
}

// ParseTimestamp accepts RFC3339, "2006-01-02 15:04:05" or a bare date.
// Zone-less values are read as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

type table struct {
	colMap map[string]int
	rows   [][]string
}

func readTable(path string, required []string) (*table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		records, err = readXLSX(path)
	default:
		records, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: file is empty", filepath.Base(path))
	}

	colMap := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		colMap[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := colMap[col]; !ok {
			return nil, fmt.Errorf("%s: %w: %s", filepath.Base(path), ErrMissingColumn, col)
		}
	}

	rows := make([][]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlank(record) {
			continue
		}
		rows = append(rows, record)
	}
	return &table{colMap: colMap, rows: rows}, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV %s: %w", path, err)
	}
	return records, nil
}

func (t *table) value(record []string, col string) string {
	if idx, ok := t.colMap[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

func (t *table) intValue(record []string, col string) (int, error) {
	v := t.value(record, col)
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n, nil
	}
	// Spreadsheets often render integers as "12.0"
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", col, v)
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("invalid %s %q: not a whole quantity", col, v)
	}
	return int(f), nil
}

func (t *table) parseItem(record []string) (domain.Item, error) {
	id, err := strconv.ParseInt(t.value(record, "item_id"), 10, 64)
	if err != nil {
		return domain.Item{}, fmt.Errorf("invalid item_id %q", t.value(record, "item_id"))
	}
	onHand, err := t.intValue(record, "on_hand")
	if err != nil {
		return domain.Item{}, err
	}
	status, ok := domain.ParseItemStatus(t.value(record, "status"))
	if !ok {
		return domain.Item{}, fmt.Errorf("unknown status %q", t.value(record, "status"))
	}
	leadTime, err := t.intValue(record, "lead_time_days")
	if err != nil {
		return domain.Item{}, err
	}
	moq, err := t.intValue(record, "min_order_qty")
	if err != nil {
		return domain.Item{}, err
	}

	item := domain.Item{
		ID:           id,
		SKU:          t.value(record, "sku"),
		Name:         t.value(record, "name"),
		Status:       status,
		OnHand:       onHand,
		LeadTimeDays: leadTime,
		MinOrderQty:  moq,
	}
	if t.value(record, "safety_stock_override") != "" {
		override, err := t.intValue(record, "safety_stock_override")
		if err != nil {
			return domain.Item{}, err
		}
		item.SafetyStockOverride = &override
	}
	return item, nil
}

func (t *table) parseMovement(record []string) (domain.Movement, error) {
	id, err := strconv.ParseInt(t.value(record, "item_id"), 10, 64)
	if err != nil {
		return domain.Movement{}, fmt.Errorf("invalid item_id %q", t.value(record, "item_id"))
	}
	txType, ok := domain.ParseTransactionType(t.value(record, "transaction_type"))
	if !ok {
		return domain.Movement{}, fmt.Errorf("unknown transaction_type %q", t.value(record, "transaction_type"))
	}
	delta, err := t.intValue(record, "quantity_delta")
	if err != nil {
		return domain.Movement{}, err
	}
	createdAt, err := ParseTimestamp(t.value(record, "created_at"))
	if err != nil {
		return domain.Movement{}, err
	}
	return domain.Movement{
		ItemID:          id,
		TransactionType: txType,
		QuantityDelta:   delta,
		CreatedAt:       createdAt,
	}, nil
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
