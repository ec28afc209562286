// Package document_repo provides the PostgreSQL implementation of the
// document repository.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"warelog/internal/core/apperror"
	"warelog/internal/core/id"
	"warelog/internal/domain"
	"warelog/internal/domain/documents"
	"warelog/internal/infrastructure/storage/postgres"
	"warelog/pkg/logger"
)

const (
	documentsTable      = "doc_documents"
	itemsTable          = "doc_items"
	inventoryItemsTable = "doc_inventory_items"
	attachmentsTable    = "doc_attachments"
)

// DocumentRepo implements documents.Repository.
type DocumentRepo struct {
	txManager  *postgres.TxManager
	selectCols []string
}

// NewDocumentRepo creates a new document repository.
func NewDocumentRepo(txManager *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{
		txManager:  txManager,
		selectCols: postgres.ExtractDBColumns[documents.Document](),
	}
}

// Builder returns a new squirrel builder.
func (r *DocumentRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *DocumentRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts the document header and all lines.
func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in document")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(documentsTable).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if err := r.insertItems(ctx, doc.ID, doc.Items); err != nil {
		return err
	}
	if err := r.insertInventoryItems(ctx, doc.ID, doc.InventoryItems); err != nil {
		return err
	}

	r.saveAttachments(ctx, doc.ID, doc.Attachments)
	return nil
}

// GetByID loads a document with its lines.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": docID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc documents.Document
	if err := pgxscan.Get(ctx, r.querier(ctx), &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID.String())
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	if err := r.loadLines(ctx, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// GetByIDForUpdate loads a document with a header row lock.
// Must be called inside a transaction.
func (r *DocumentRepo) GetByIDForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	if r.txManager.GetTx(ctx) == nil {
		return nil, fmt.Errorf("GetByIDForUpdate requires transaction context")
	}

	q := r.baseSelect().
		Where(squirrel.Eq{"id": docID}).
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc documents.Document
	if err := pgxscan.Get(ctx, r.querier(ctx), &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", docID.String())
		}
		return nil, fmt.Errorf("get document for update: %w", err)
	}

	if err := r.loadLines(ctx, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// GetByRelatedOrder finds the latest document of a type linked to an
// external order.
func (r *DocumentRepo) GetByRelatedOrder(ctx context.Context, orderRef string, docType documents.Type) (*documents.Document, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"related_order_id": orderRef}).
		Where(squirrel.Eq{"type": docType}).
		OrderBy("created_at DESC").
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc documents.Document
	if err := pgxscan.Get(ctx, r.querier(ctx), &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", orderRef)
		}
		return nil, fmt.Errorf("get by related order: %w", err)
	}

	if err := r.loadLines(ctx, &doc); err != nil {
		return nil, err
	}

	return &doc, nil
}

// Update saves the header with optimistic locking and replaces lines.
func (r *DocumentRepo) Update(ctx context.Context, doc *documents.Document) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in document")
	}

	version, ok := data["version"].(int)
	if !ok {
		return fmt.Errorf("document has no 'version' field or it is not an int")
	}

	// Exclude immutable fields
	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if col == "id" || col == "created_at" || col == "created_by" {
			continue
		}
		if col == "version" || col == "updated_at" {
			continue // managed by repo
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Update(documentsTable).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": doc.ID}).
		Where(squirrel.Eq{"version": version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("document", doc.ID)
	}

	doc.SetVersion(version + 1)

	if err := r.replaceItems(ctx, doc.ID, doc.Items); err != nil {
		return err
	}
	if err := r.replaceInventoryItems(ctx, doc.ID, doc.InventoryItems); err != nil {
		return err
	}

	r.saveAttachments(ctx, doc.ID, doc.Attachments)
	return nil
}

// Delete removes the document and its lines.
func (r *DocumentRepo) Delete(ctx context.Context, docID id.ID) error {
	querier := r.querier(ctx)

	if _, err := querier.Exec(ctx, "DELETE FROM "+itemsTable+" WHERE document_id = $1", docID); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	if _, err := querier.Exec(ctx, "DELETE FROM "+inventoryItemsTable+" WHERE document_id = $1", docID); err != nil {
		return fmt.Errorf("delete inventory items: %w", err)
	}
	if _, err := querier.Exec(ctx, "DELETE FROM "+attachmentsTable+" WHERE document_id = $1", docID); err != nil {
		return fmt.Errorf("delete attachments: %w", err)
	}

	result, err := querier.Exec(ctx, "DELETE FROM "+documentsTable+" WHERE id = $1", docID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("document", docID.String())
	}

	return nil
}

// List returns documents matching the filter, without lines.
func (r *DocumentRepo) List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[documents.Document], error) {
	result := domain.ListResult[documents.Document]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}

	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"source_warehouse_id": *filter.WarehouseID},
			squirrel.Eq{"target_warehouse_id": *filter.WarehouseID},
		})
	}

	if filter.SupplierID != nil {
		q = q.Where(squirrel.Eq{"supplier_id": *filter.SupplierID})
	}

	if filter.CustomerID != nil {
		q = q.Where(squirrel.Eq{"customer_id": *filter.CustomerID})
	}

	if filter.OnlyOpen {
		q = q.Where(squirrel.Eq{"closed_at": nil})
	}

	if filter.OnlyClosed {
		q = q.Where(squirrel.NotEq{"closed_at": nil})
	}

	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"document_date": *filter.DateFrom})
	}

	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"document_date": *filter.DateTo})
	}

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": pattern},
			squirrel.ILike{"related_order_id": pattern},
		})
	}

	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list documents: %w", err)
	}

	return result, nil
}

func (r *DocumentRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(documentsTable)
}

func (r *DocumentRepo) loadLines(ctx context.Context, doc *documents.Document) error {
	querier := r.querier(ctx)

	itemsSQL := `
		SELECT id, document_id, variant_id, quantity, price_net, price_gross, tax_rate_id
		FROM doc_items
		WHERE document_id = $1
		ORDER BY id
	`
	if err := pgxscan.Select(ctx, querier, &doc.Items, itemsSQL, doc.ID); err != nil {
		return fmt.Errorf("load items: %w", err)
	}

	invSQL := `
		SELECT id, document_id, variant_id, expected_quantity, counted_quantity, difference, unit_cost
		FROM doc_inventory_items
		WHERE document_id = $1
		ORDER BY id
	`
	if err := pgxscan.Select(ctx, querier, &doc.InventoryItems, invSQL, doc.ID); err != nil {
		return fmt.Errorf("load inventory items: %w", err)
	}

	attachSQL := `
		SELECT id, document_id, file_name, media_id, created_at
		FROM doc_attachments
		WHERE document_id = $1
		ORDER BY created_at
	`
	if err := pgxscan.Select(ctx, querier, &doc.Attachments, attachSQL, doc.ID); err != nil {
		return fmt.Errorf("load attachments: %w", err)
	}

	return nil
}

// saveAttachments upserts file references. Attachments are metadata only, a
// failure is logged and does not fail the document operation.
func (r *DocumentRepo) saveAttachments(ctx context.Context, docID id.ID, attachments []documents.Attachment) {
	if len(attachments) == 0 {
		return
	}

	const upsertSQL = `
		INSERT INTO doc_attachments (id, document_id, file_name, media_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET file_name = EXCLUDED.file_name, media_id = EXCLUDED.media_id
	`

	// Upserts rule out COPY; a pipelined batch still keeps this one round-trip.
	if r.txManager.GetTx(ctx) != nil {
		queries := make([]postgres.BatchQuery, 0, len(attachments))
		for _, a := range attachments {
			queries = append(queries, postgres.BatchQuery{
				SQL:  upsertSQL,
				Args: []any{a.ID, docID, a.FileName, a.MediaID, a.CreatedAt},
			})
		}
		if err := postgres.NewBatchExecutor(r.txManager).ExecuteBatch(ctx, queries); err != nil {
			logger.Warn(ctx, "save attachments failed",
				"document_id", docID,
				"count", len(attachments),
				"error", err,
			)
		}
		return
	}

	querier := r.querier(ctx)
	for _, a := range attachments {
		if _, err := querier.Exec(ctx, upsertSQL, a.ID, docID, a.FileName, a.MediaID, a.CreatedAt); err != nil {
			logger.Warn(ctx, "save attachment failed",
				"document_id", docID,
				"file_name", a.FileName,
				"error", err,
			)
		}
	}
}

func (r *DocumentRepo) insertItems(ctx context.Context, docID id.ID, items []documents.Item) error {
	if len(items) == 0 {
		return nil
	}

	// Rows are always fresh here (update deletes lines first), so inside a
	// transaction a single COPY stream beats queued INSERTs.
	if r.txManager.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(items))
		for _, item := range items {
			rows = append(rows, []any{item.ID, docID, item.VariantID, item.Quantity, item.PriceNet, item.PriceGross, item.TaxRateID})
		}
		columns := []string{"id", "document_id", "variant_id", "quantity", "price_net", "price_gross", "tax_rate_id"}
		if _, err := postgres.NewBatchInserter(r.txManager).CopyFromSlice(ctx, itemsTable, columns, rows); err != nil {
			return fmt.Errorf("copy items: %w", err)
		}
		return nil
	}

	querier := r.querier(ctx)
	for _, item := range items {
		sql := `
			INSERT INTO doc_items (id, document_id, variant_id, quantity, price_net, price_gross, tax_rate_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := querier.Exec(ctx, sql, item.ID, docID, item.VariantID, item.Quantity, item.PriceNet, item.PriceGross, item.TaxRateID); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}
	return nil
}

func (r *DocumentRepo) insertInventoryItems(ctx context.Context, docID id.ID, items []documents.InventoryItem) error {
	if len(items) == 0 {
		return nil
	}

	if r.txManager.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(items))
		for _, item := range items {
			rows = append(rows, []any{item.ID, docID, item.VariantID, item.Expected, item.Counted, item.Difference, item.UnitCost})
		}
		columns := []string{"id", "document_id", "variant_id", "expected_quantity", "counted_quantity", "difference", "unit_cost"}
		if _, err := postgres.NewBatchInserter(r.txManager).CopyFromSlice(ctx, inventoryItemsTable, columns, rows); err != nil {
			return fmt.Errorf("copy inventory items: %w", err)
		}
		return nil
	}

	querier := r.querier(ctx)
	for _, item := range items {
		sql := `
			INSERT INTO doc_inventory_items (id, document_id, variant_id, expected_quantity, counted_quantity, difference, unit_cost)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		if _, err := querier.Exec(ctx, sql, item.ID, docID, item.VariantID, item.Expected, item.Counted, item.Difference, item.UnitCost); err != nil {
			return fmt.Errorf("insert inventory item: %w", err)
		}
	}
	return nil
}

func (r *DocumentRepo) replaceItems(ctx context.Context, docID id.ID, items []documents.Item) error {
	if _, err := r.querier(ctx).Exec(ctx, "DELETE FROM "+itemsTable+" WHERE document_id = $1", docID); err != nil {
		return fmt.Errorf("delete existing items: %w", err)
	}
	return r.insertItems(ctx, docID, items)
}

func (r *DocumentRepo) replaceInventoryItems(ctx context.Context, docID id.ID, items []documents.InventoryItem) error {
	if _, err := r.querier(ctx).Exec(ctx, "DELETE FROM "+inventoryItemsTable+" WHERE document_id = $1", docID); err != nil {
		return fmt.Errorf("delete existing inventory items: %w", err)
	}
	return r.insertInventoryItems(ctx, docID, items)
}

func (r *DocumentRepo) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}

	if strings.TrimSpace(orderBy) == "" {
		return "document_date DESC", nil
	}

	// Accept "field", "-field", "field DESC", "field ASC".
	direction := "ASC"
	field := strings.TrimSpace(orderBy)
	upper := strings.ToUpper(field)
	if strings.HasPrefix(field, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(field, "-")
	} else if strings.HasSuffix(upper, " DESC") {
		direction = "DESC"
		field = strings.TrimSpace(field[:len(field)-5])
	} else if strings.HasSuffix(upper, " ASC") {
		field = strings.TrimSpace(field[:len(field)-4])
	}

	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}

	return field + " " + direction, nil
}

// Ensure interface compliance.
var _ documents.Repository = (*DocumentRepo)(nil)
