// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"warelog/internal/core/id"
	"warelog/internal/domain/registers/stock"
	"warelog/internal/infrastructure/storage/postgres"
)

const stockLevelsTable = "reg_stock_levels"

var stockLevelCols = []string{
	"id", "warehouse_id", "variant_id",
	"quantity", "reserved_quantity", "incoming_quantity",
	"location", "updated_at",
}

// StockLevelRepo implements stock.Repository.
type StockLevelRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockLevelRepo creates a new stock level repository.
func NewStockLevelRepo(txManager *postgres.TxManager) *StockLevelRepo {
	return &StockLevelRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get returns the stock level row, or a zeroed in-memory row when none
// exists. The read path never creates rows.
func (r *StockLevelRepo) Get(ctx context.Context, warehouseID, variantID id.ID) (*stock.Level, error) {
	q := r.builder.Select(stockLevelCols...).
		From(stockLevelsTable).
		Where(squirrel.Eq{
			"warehouse_id": warehouseID,
			"variant_id":   variantID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var level stock.Level
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &level, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return stock.NewLevel(warehouseID, variantID), nil
		}
		return nil, fmt.Errorf("get stock level: %w", err)
	}

	return &level, nil
}

// GetForUpdate returns the level with a row lock, inserting a zeroed row
// first when none exists. Must run inside a transaction so the lock holds
// until commit.
func (r *StockLevelRepo) GetForUpdate(ctx context.Context, warehouseID, variantID id.ID) (*stock.Level, error) {
	tx := r.txManager.GetTx(ctx)
	if tx == nil {
		return nil, fmt.Errorf("GetForUpdate requires transaction context")
	}

	// Ensure the row exists; ON CONFLICT keeps concurrent creators safe.
	_, err := tx.Exec(ctx, `
		INSERT INTO reg_stock_levels (id, warehouse_id, variant_id, quantity, reserved_quantity, incoming_quantity, location, updated_at)
		VALUES ($1, $2, $3, 0, 0, 0, '', $4)
		ON CONFLICT (warehouse_id, variant_id) DO NOTHING
	`, id.New(), warehouseID, variantID, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("ensure stock level row: %w", err)
	}

	var level stock.Level
	err = pgxscan.Get(ctx, tx, &level, `
		SELECT id, warehouse_id, variant_id, quantity, reserved_quantity, incoming_quantity, location, updated_at
		FROM reg_stock_levels
		WHERE warehouse_id = $1 AND variant_id = $2
		FOR UPDATE
	`, warehouseID, variantID)
	if err != nil {
		return nil, fmt.Errorf("get stock level for update: %w", err)
	}

	return &level, nil
}

// Save persists a mutated level row.
func (r *StockLevelRepo) Save(ctx context.Context, level *stock.Level) error {
	level.UpdatedAt = time.Now().UTC()

	q := r.builder.Update(stockLevelsTable).
		Set("quantity", level.Quantity).
		Set("reserved_quantity", level.Reserved).
		Set("incoming_quantity", level.Incoming).
		Set("location", level.Location).
		Set("updated_at", level.UpdatedAt).
		Where(squirrel.Eq{"id": level.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("save stock level: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("stock level row %s vanished", level.ID)
	}

	return nil
}

// ListByWarehouse returns levels for a warehouse.
func (r *StockLevelRepo) ListByWarehouse(ctx context.Context, warehouseID id.ID, filter stock.LevelFilter) ([]stock.Level, error) {
	q := r.builder.Select(stockLevelCols...).
		From(stockLevelsTable).
		Where(squirrel.Eq{"warehouse_id": warehouseID})

	if len(filter.VariantIDs) > 0 {
		q = q.Where(squirrel.Eq{"variant_id": filter.VariantIDs})
	}

	if filter.ExcludeZero {
		q = q.Where("NOT (quantity = 0 AND reserved_quantity = 0 AND incoming_quantity = 0)")
	}

	if filter.MinQuantity != nil {
		q = q.Where(squirrel.GtOrEq{"quantity": *filter.MinQuantity})
	}

	q = q.OrderBy("variant_id")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var levels []stock.Level
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &levels, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock levels: %w", err)
	}

	return levels, nil
}

// ListByVariant returns levels for a variant across warehouses.
func (r *StockLevelRepo) ListByVariant(ctx context.Context, variantID id.ID) ([]stock.Level, error) {
	q := r.builder.Select(stockLevelCols...).
		From(stockLevelsTable).
		Where(squirrel.Eq{"variant_id": variantID}).
		OrderBy("warehouse_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var levels []stock.Level
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &levels, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock levels: %w", err)
	}

	return levels, nil
}

// Ensure interface compliance.
var _ stock.Repository = (*StockLevelRepo)(nil)
