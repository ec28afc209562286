package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"warelog/internal/core/id"
	"warelog/internal/core/types"
	"warelog/internal/domain/registers/batch"
	"warelog/internal/infrastructure/storage/postgres"
)

const stockBatchesTable = "reg_stock_batches"

var stockBatchCols = []string{
	"id", "variant_id", "warehouse_id",
	"quantity_total", "quantity_available",
	"purchase_price", "purchase_date",
	"source_document_type", "source_document_id",
	"created_at",
}

// StockBatchRepo implements batch.Repository.
type StockBatchRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewStockBatchRepo creates a new stock batch repository.
func NewStockBatchRepo(txManager *postgres.TxManager) *StockBatchRepo {
	return &StockBatchRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new batch.
func (r *StockBatchRepo) Create(ctx context.Context, b *batch.Batch) error {
	q := r.builder.Insert(stockBatchesTable).
		Columns(stockBatchCols...).
		Values(
			b.ID, b.VariantID, b.WarehouseID,
			b.QuantityTotal, b.QuantityAvailable,
			b.PurchasePrice, b.PurchaseDate,
			b.SourceDocumentType, b.SourceDocumentID,
			b.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	_, err = r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	return nil
}

// SumAvailable returns the total available quantity across open batches.
func (r *StockBatchRepo) SumAvailable(ctx context.Context, variantID, warehouseID id.ID) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(quantity_available), 0)
		FROM reg_stock_batches
		WHERE variant_id = $1 AND warehouse_id = $2 AND quantity_available > 0
	`

	var sum int64
	querier := r.txManager.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, variantID, warehouseID).Scan(&sum)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("sum available: %w", err)
	}

	return types.Quantity(sum), nil
}

// ListOpenForUpdate returns non-exhausted batches in FIFO order with row
// locks. Ordering is purchase_date asc with id (time-ordered UUIDv7) as the
// same-day tie-break. Must run inside a transaction.
func (r *StockBatchRepo) ListOpenForUpdate(ctx context.Context, variantID, warehouseID id.ID) ([]batch.Batch, error) {
	tx := r.txManager.GetTx(ctx)
	if tx == nil {
		return nil, fmt.Errorf("ListOpenForUpdate requires transaction context")
	}

	var batches []batch.Batch
	err := pgxscan.Select(ctx, tx, &batches, `
		SELECT id, variant_id, warehouse_id,
		       quantity_total, quantity_available,
		       purchase_price, purchase_date,
		       source_document_type, source_document_id,
		       created_at
		FROM reg_stock_batches
		WHERE variant_id = $1 AND warehouse_id = $2 AND quantity_available > 0
		ORDER BY purchase_date ASC, id ASC
		FOR UPDATE
	`, variantID, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("select open batches: %w", err)
	}

	return batches, nil
}

// UpdateAvailable persists the available quantity after consumption.
func (r *StockBatchRepo) UpdateAvailable(ctx context.Context, batchID id.ID, available types.Quantity) error {
	q := r.builder.Update(stockBatchesTable).
		Set("quantity_available", available).
		Where(squirrel.Eq{"id": batchID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update batch availability: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("batch %s not found", batchID)
	}

	return nil
}

// ListByVariant returns batches for reporting, newest first.
func (r *StockBatchRepo) ListByVariant(ctx context.Context, variantID id.ID, limit, offset int) ([]batch.Batch, error) {
	q := r.builder.Select(stockBatchCols...).
		From(stockBatchesTable).
		Where(squirrel.Eq{"variant_id": variantID}).
		OrderBy("purchase_date DESC", "id DESC")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []batch.Batch
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}

	return batches, nil
}

// Ensure interface compliance.
var _ batch.Repository = (*StockBatchRepo)(nil)
