package ordersync

import (
	"context"
	"sort"
	"testing"
	"time"

	"warelog/internal/core/apperror"
	"warelog/internal/core/id"
	"warelog/internal/core/numerator"
	"warelog/internal/core/types"
	"warelog/internal/domain"
	"warelog/internal/domain/catalogs/warehouse"
	"warelog/internal/domain/documents"
	"warelog/internal/domain/event"
	"warelog/internal/domain/registers/batch"
	"warelog/internal/domain/registers/stock"

	"github.com/shopspring/decimal"
)

// --- fakes ---

type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type docRepo struct {
	docs  map[id.ID]*documents.Document
	order []id.ID
}

func cloneDoc(d *documents.Document) *documents.Document {
	c := *d
	c.Items = append([]documents.Item(nil), d.Items...)
	return &c
}

func (r *docRepo) Create(_ context.Context, doc *documents.Document) error {
	r.docs[doc.ID] = cloneDoc(doc)
	r.order = append(r.order, doc.ID)
	return nil
}

func (r *docRepo) GetByID(_ context.Context, docID id.ID) (*documents.Document, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("document", docID.String())
	}
	return cloneDoc(doc), nil
}

func (r *docRepo) GetByIDForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.GetByID(ctx, docID)
}

func (r *docRepo) GetByRelatedOrder(_ context.Context, orderRef string, docType documents.Type) (*documents.Document, error) {
	for i := len(r.order) - 1; i >= 0; i-- {
		doc, ok := r.docs[r.order[i]]
		if !ok {
			continue
		}
		if doc.Type == docType && doc.RelatedOrderID != nil && *doc.RelatedOrderID == orderRef {
			return cloneDoc(doc), nil
		}
	}
	return nil, apperror.NewNotFound("document", orderRef)
}

func (r *docRepo) Update(_ context.Context, doc *documents.Document) error {
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("document", doc.ID.String())
	}
	r.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (r *docRepo) Delete(_ context.Context, docID id.ID) error {
	delete(r.docs, docID)
	return nil
}

func (r *docRepo) List(_ context.Context, filter documents.ListFilter) (domain.ListResult[documents.Document], error) {
	return domain.ListResult[documents.Document]{}, nil
}

type stockRepo struct {
	levels map[string]*stock.Level
}

func levelKey(warehouseID, variantID id.ID) string {
	return warehouseID.String() + "/" + variantID.String()
}

func (r *stockRepo) Get(_ context.Context, warehouseID, variantID id.ID) (*stock.Level, error) {
	if level, ok := r.levels[levelKey(warehouseID, variantID)]; ok {
		c := *level
		return &c, nil
	}
	return stock.NewLevel(warehouseID, variantID), nil
}

func (r *stockRepo) GetForUpdate(_ context.Context, warehouseID, variantID id.ID) (*stock.Level, error) {
	k := levelKey(warehouseID, variantID)
	if _, ok := r.levels[k]; !ok {
		r.levels[k] = stock.NewLevel(warehouseID, variantID)
	}
	c := *r.levels[k]
	return &c, nil
}

func (r *stockRepo) Save(_ context.Context, level *stock.Level) error {
	c := *level
	r.levels[levelKey(level.WarehouseID, level.VariantID)] = &c
	return nil
}

func (r *stockRepo) ListByWarehouse(_ context.Context, _ id.ID, _ stock.LevelFilter) ([]stock.Level, error) {
	return nil, nil
}

func (r *stockRepo) ListByVariant(_ context.Context, _ id.ID) ([]stock.Level, error) {
	return nil, nil
}

type batchRepo struct {
	batches []*batch.Batch
}

func (r *batchRepo) Create(_ context.Context, b *batch.Batch) error {
	c := *b
	r.batches = append(r.batches, &c)
	return nil
}

func (r *batchRepo) SumAvailable(_ context.Context, variantID, warehouseID id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, b := range r.batches {
		if b.VariantID == variantID && b.WarehouseID == warehouseID {
			total += b.QuantityAvailable
		}
	}
	return total, nil
}

func (r *batchRepo) ListOpenForUpdate(_ context.Context, variantID, warehouseID id.ID) ([]batch.Batch, error) {
	var out []batch.Batch
	for _, b := range r.batches {
		if b.VariantID == variantID && b.WarehouseID == warehouseID && !b.IsExhausted() {
			out = append(out, *b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PurchaseDate.Before(out[j].PurchaseDate)
	})
	return out, nil
}

func (r *batchRepo) UpdateAvailable(_ context.Context, batchID id.ID, available types.Quantity) error {
	for _, b := range r.batches {
		if b.ID == batchID {
			b.QuantityAvailable = available
			return nil
		}
	}
	return apperror.NewNotFound("batch", batchID.String())
}

func (r *batchRepo) ListByVariant(_ context.Context, _ id.ID, _, _ int) ([]batch.Batch, error) {
	return nil, nil
}

// warehouseRepo serves GetDefault; the CRUD surface is unused here.
type warehouseRepo struct {
	byID map[id.ID]*warehouse.Warehouse
}

func (r *warehouseRepo) Create(_ context.Context, wh *warehouse.Warehouse) error {
	r.byID[wh.ID] = wh
	return nil
}

func (r *warehouseRepo) GetByID(_ context.Context, whID id.ID) (*warehouse.Warehouse, error) {
	wh, ok := r.byID[whID]
	if !ok {
		return nil, apperror.NewNotFound("warehouse", whID.String())
	}
	return wh, nil
}

func (r *warehouseRepo) GetByCode(_ context.Context, code string) (*warehouse.Warehouse, error) {
	for _, wh := range r.byID {
		if wh.Code == code {
			return wh, nil
		}
	}
	return nil, apperror.NewNotFound("warehouse", code)
}

func (r *warehouseRepo) Update(_ context.Context, wh *warehouse.Warehouse) error {
	r.byID[wh.ID] = wh
	return nil
}

func (r *warehouseRepo) Delete(_ context.Context, whID id.ID) error {
	delete(r.byID, whID)
	return nil
}

func (r *warehouseRepo) List(_ context.Context, _ domain.ListFilter) (domain.ListResult[*warehouse.Warehouse], error) {
	return domain.ListResult[*warehouse.Warehouse]{}, nil
}

func (r *warehouseRepo) Exists(_ context.Context, whID id.ID) (bool, error) {
	_, ok := r.byID[whID]
	return ok, nil
}

func (r *warehouseRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	for _, wh := range r.byID {
		if wh.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *warehouseRepo) GetDefault(_ context.Context) (*warehouse.Warehouse, error) {
	for _, wh := range r.byID {
		if wh.IsDefault {
			return wh, nil
		}
	}
	return nil, apperror.NewNotFound("warehouse", "default")
}

func (r *warehouseRepo) ClearDefault(_ context.Context) error {
	for _, wh := range r.byID {
		wh.IsDefault = false
	}
	return nil
}

type zeroTaxes struct{}

func (zeroTaxes) RatePercent(_ context.Context, _ id.ID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// --- fixture ---

type fixture struct {
	svc       *Service
	docs      *docRepo
	stocks    *stockRepo
	batches   *batchRepo
	defaultWH *warehouse.Warehouse
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	docs := &docRepo{docs: map[id.ID]*documents.Document{}}
	stocks := &stockRepo{levels: map[string]*stock.Level{}}
	batches := &batchRepo{}
	whRepo := &warehouseRepo{byID: map[id.ID]*warehouse.Warehouse{}}
	txm := passTx{}

	defaultWH := warehouse.NewWarehouse("MAIN", "Main warehouse", warehouse.TypeMain)
	defaultWH.IsDefault = true
	whRepo.byID[defaultWH.ID] = defaultWH

	docSvc := documents.NewService(
		docs,
		stock.NewService(stocks, txm, event.NopPublisher{}),
		batch.NewService(batches, txm),
		&numerator.MockGenerator{},
		zeroTaxes{},
		txm,
		event.NopPublisher{},
	)
	whSvc := warehouse.NewService(whRepo, txm)

	return &fixture{
		svc:       NewService(docSvc, whSvc, cfg),
		docs:      docs,
		stocks:    stocks,
		batches:   batches,
		defaultWH: defaultWH,
	}
}

func (f *fixture) seedStock(warehouseID, variantID id.ID, quantity types.Quantity) {
	level := stock.NewLevel(warehouseID, variantID)
	level.Quantity = quantity
	f.stocks.levels[levelKey(warehouseID, variantID)] = level

	b := batch.NewBatch(variantID, warehouseID, quantity, types.MustMoney("10.00"),
		time.Now().UTC().Add(-24*time.Hour), batch.Provenance{DocumentType: "PZ", DocumentID: id.New()})
	f.batches.batches = append(f.batches.batches, b)
}

func (f *fixture) level(t *testing.T, warehouseID, variantID id.ID) *stock.Level {
	t.Helper()
	level, ok := f.stocks.levels[levelKey(warehouseID, variantID)]
	if !ok {
		t.Fatalf("no stock level for warehouse %s variant %s", warehouseID, variantID)
	}
	return level
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func orderWith(ref string, variantID id.ID, quantity types.Quantity) Order {
	return Order{
		Ref: ref,
		Lines: []OrderLine{
			{VariantID: variantID, Quantity: quantity, PriceNet: types.MustMoney("19.99")},
		},
	}
}

// --- tests ---

func TestHandleOrderConfirmed_CreatesReservingIssue(t *testing.T) {
	f := newFixture(t, Config{})
	variantID := id.New()
	f.seedStock(f.defaultWH.ID, variantID, qty(10))

	doc, err := f.svc.HandleOrderConfirmed(context.Background(), orderWith("ORD-77", variantID, qty(3)))
	if err != nil {
		t.Fatalf("HandleOrderConfirmed failed: %v", err)
	}

	if doc.Type != documents.TypeWZ {
		t.Errorf("type = %s, want WZ", doc.Type)
	}
	if doc.RelatedOrderID == nil || *doc.RelatedOrderID != "ORD-77" {
		t.Error("document must reference the order")
	}
	if doc.SourceWarehouseID == nil || *doc.SourceWarehouseID != f.defaultWH.ID {
		t.Error("document must use the default warehouse")
	}
	if doc.IsClosed() {
		t.Error("confirmation creates an open document")
	}
	if doc.CreatedBy != "ordersync" {
		t.Errorf("CreatedBy = %q, want ordersync", doc.CreatedBy)
	}

	level := f.level(t, f.defaultWH.ID, variantID)
	if level.Reserved != qty(3) {
		t.Errorf("Reserved = %s, want 3", level.Reserved)
	}
	if level.Quantity != qty(10) {
		t.Errorf("Quantity = %s, want 10 until shipping", level.Quantity)
	}
}

func TestHandleOrderConfirmed_WarehouseOverride(t *testing.T) {
	f := newFixture(t, Config{})
	otherWH, variantID := id.New(), id.New()
	f.seedStock(otherWH, variantID, qty(5))

	order := orderWith("ORD-78", variantID, qty(2))
	order.WarehouseID = &otherWH

	doc, err := f.svc.HandleOrderConfirmed(context.Background(), order)
	if err != nil {
		t.Fatalf("HandleOrderConfirmed failed: %v", err)
	}
	if doc.SourceWarehouseID == nil || *doc.SourceWarehouseID != otherWH {
		t.Error("override warehouse must win over the default")
	}
	if got := f.level(t, otherWH, variantID).Reserved; got != qty(2) {
		t.Errorf("Reserved = %s, want 2", got)
	}
}

func TestHandleOrderConfirmed_ReplayReturnsExistingIssue(t *testing.T) {
	f := newFixture(t, Config{})
	variantID := id.New()
	f.seedStock(f.defaultWH.ID, variantID, qty(10))
	ctx := context.Background()

	first, err := f.svc.HandleOrderConfirmed(ctx, orderWith("ORD-80", variantID, qty(3)))
	if err != nil {
		t.Fatalf("HandleOrderConfirmed failed: %v", err)
	}

	second, err := f.svc.HandleOrderConfirmed(ctx, orderWith("ORD-80", variantID, qty(3)))
	if err != nil {
		t.Fatalf("replayed confirmation failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("replay returned document %s, want existing %s", second.ID, first.ID)
	}

	if got := len(f.docs.docs); got != 1 {
		t.Errorf("documents after replay = %d, want 1", got)
	}
	if got := f.level(t, f.defaultWH.ID, variantID).Reserved; got != qty(3) {
		t.Errorf("Reserved after replay = %s, want 3", got)
	}
}

func TestHandleOrderConfirmed_Validation(t *testing.T) {
	f := newFixture(t, Config{})

	if _, err := f.svc.HandleOrderConfirmed(context.Background(), Order{Ref: "ORD-1"}); !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("expected validation error for empty lines, got %v", err)
	}
	if _, err := f.svc.HandleOrderConfirmed(context.Background(), orderWith("", id.New(), qty(1))); !apperror.IsCode(err, apperror.CodeValidation) {
		t.Errorf("expected validation error for empty ref, got %v", err)
	}
}

func TestHandleOrderConfirmed_InsufficientStock(t *testing.T) {
	f := newFixture(t, Config{})
	variantID := id.New()
	f.seedStock(f.defaultWH.ID, variantID, qty(1))

	_, err := f.svc.HandleOrderConfirmed(context.Background(), orderWith("ORD-79", variantID, qty(5)))
	if !apperror.IsCode(err, apperror.CodeInsufficientAvailable) {
		t.Fatalf("expected INSUFFICIENT_AVAILABLE, got %v", err)
	}
}

func TestHandleOrderStatusChanged_ShippedClosesIssue(t *testing.T) {
	f := newFixture(t, Config{})
	variantID := id.New()
	f.seedStock(f.defaultWH.ID, variantID, qty(10))
	ctx := context.Background()

	if _, err := f.svc.HandleOrderConfirmed(ctx, orderWith("ORD-80", variantID, qty(4))); err != nil {
		t.Fatalf("HandleOrderConfirmed failed: %v", err)
	}

	// Pre-shipping statuses are ignored.
	if err := f.svc.HandleOrderStatusChanged(ctx, "ORD-80", "paid"); err != nil {
		t.Fatalf("HandleOrderStatusChanged(paid) failed: %v", err)
	}
	level := f.level(t, f.defaultWH.ID, variantID)
	if level.Quantity != qty(10) || level.Reserved != qty(4) {
		t.Errorf("paid must not move stock: %+v", level)
	}

	if err := f.svc.HandleOrderStatusChanged(ctx, "ORD-80", "shipped"); err != nil {
		t.Fatalf("HandleOrderStatusChanged(shipped) failed: %v", err)
	}

	level = f.level(t, f.defaultWH.ID, variantID)
	if level.Quantity != qty(6) {
		t.Errorf("Quantity = %s, want 6 after shipping", level.Quantity)
	}
	if !level.Reserved.IsZero() {
		t.Errorf("Reserved = %s, want 0 after shipping", level.Reserved)
	}

	wz, err := f.docs.GetByRelatedOrder(ctx, "ORD-80", documents.TypeWZ)
	if err != nil {
		t.Fatalf("GetByRelatedOrder failed: %v", err)
	}
	if !wz.IsClosed() {
		t.Error("issue document must be closed after shipping")
	}
}

func TestHandleOrderStatusChanged_Idempotent(t *testing.T) {
	f := newFixture(t, Config{})
	variantID := id.New()
	f.seedStock(f.defaultWH.ID, variantID, qty(10))
	ctx := context.Background()

	if _, err := f.svc.HandleOrderConfirmed(ctx, orderWith("ORD-81", variantID, qty(2))); err != nil {
		t.Fatalf("HandleOrderConfirmed failed: %v", err)
	}
	if err := f.svc.HandleOrderStatusChanged(ctx, "ORD-81", "shipped"); err != nil {
		t.Fatalf("first notification failed: %v", err)
	}
	if err := f.svc.HandleOrderStatusChanged(ctx, "ORD-81", "delivered"); err != nil {
		t.Fatalf("repeated notification must be a no-op, got %v", err)
	}

	if got := f.level(t, f.defaultWH.ID, variantID).Quantity; got != qty(8) {
		t.Errorf("Quantity = %s, want 8 after a single shipment", got)
	}
}

func TestHandleOrderStatusChanged_UnknownOrderIgnored(t *testing.T) {
	f := newFixture(t, Config{})

	if err := f.svc.HandleOrderStatusChanged(context.Background(), "ORD-MISSING", "shipped"); err != nil {
		t.Fatalf("unknown order must not error, got %v", err)
	}
}

func TestCustomShippedStatuses(t *testing.T) {
	f := newFixture(t, Config{ShippedStatuses: []string{"done"}})
	variantID := id.New()
	f.seedStock(f.defaultWH.ID, variantID, qty(5))
	ctx := context.Background()

	if _, err := f.svc.HandleOrderConfirmed(ctx, orderWith("ORD-82", variantID, qty(1))); err != nil {
		t.Fatalf("HandleOrderConfirmed failed: %v", err)
	}

	// Default statuses are replaced, not extended.
	if err := f.svc.HandleOrderStatusChanged(ctx, "ORD-82", "shipped"); err != nil {
		t.Fatalf("HandleOrderStatusChanged(shipped) failed: %v", err)
	}
	if got := f.level(t, f.defaultWH.ID, variantID).Reserved; got != qty(1) {
		t.Error("status outside the configured set must not close the document")
	}

	if err := f.svc.HandleOrderStatusChanged(ctx, "ORD-82", "done"); err != nil {
		t.Fatalf("HandleOrderStatusChanged(done) failed: %v", err)
	}
	if got := f.level(t, f.defaultWH.ID, variantID).Quantity; got != qty(4) {
		t.Errorf("Quantity = %s, want 4 after done", got)
	}
}
