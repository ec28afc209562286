package documents

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"warelog/internal/core/apperror"
	"warelog/internal/core/id"
	"warelog/internal/core/numerator"
	"warelog/internal/core/types"
	"warelog/internal/domain"
	"warelog/internal/domain/event"
	"warelog/internal/domain/registers/batch"
	"warelog/internal/domain/registers/stock"
)

// --- in-memory fakes ---

func cloneDoc(d *Document) *Document {
	c := *d
	c.Items = append([]Item(nil), d.Items...)
	c.InventoryItems = append([]InventoryItem(nil), d.InventoryItems...)
	return &c
}

type memDocRepo struct {
	docs  map[id.ID]*Document
	order []id.ID
}

func newMemDocRepo() *memDocRepo {
	return &memDocRepo{docs: map[id.ID]*Document{}}
}

func (r *memDocRepo) Create(_ context.Context, doc *Document) error {
	if _, ok := r.docs[doc.ID]; ok {
		return apperror.NewConflict("document already exists")
	}
	r.docs[doc.ID] = cloneDoc(doc)
	r.order = append(r.order, doc.ID)
	return nil
}

func (r *memDocRepo) GetByID(_ context.Context, docID id.ID) (*Document, error) {
	doc, ok := r.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("document", docID.String())
	}
	return cloneDoc(doc), nil
}

func (r *memDocRepo) GetByIDForUpdate(ctx context.Context, docID id.ID) (*Document, error) {
	return r.GetByID(ctx, docID)
}

func (r *memDocRepo) GetByRelatedOrder(_ context.Context, orderRef string, docType Type) (*Document, error) {
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

func (r *memDocRepo) Update(_ context.Context, doc *Document) error {
	if _, ok := r.docs[doc.ID]; !ok {
		return apperror.NewNotFound("document", doc.ID.String())
	}
	r.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (r *memDocRepo) Delete(_ context.Context, docID id.ID) error {
	delete(r.docs, docID)
	return nil
}

func (r *memDocRepo) List(_ context.Context, filter ListFilter) (domain.ListResult[Document], error) {
	result := domain.ListResult[Document]{Limit: filter.Limit, Offset: filter.Offset}
	for _, docID := range r.order {
		if doc, ok := r.docs[docID]; ok {
			result.Items = append(result.Items, *cloneDoc(doc))
		}
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (r *memDocRepo) snapshot() map[id.ID]*Document {
	snap := make(map[id.ID]*Document, len(r.docs))
	for k, v := range r.docs {
		snap[k] = cloneDoc(v)
	}
	return snap
}

type levelKey struct {
	warehouseID id.ID
	variantID   id.ID
}

type memStockRepo struct {
	levels map[levelKey]*stock.Level
}

func newMemStockRepo() *memStockRepo {
	return &memStockRepo{levels: map[levelKey]*stock.Level{}}
}

func (r *memStockRepo) Get(_ context.Context, warehouseID, variantID id.ID) (*stock.Level, error) {
	if level, ok := r.levels[levelKey{warehouseID, variantID}]; ok {
		c := *level
		return &c, nil
	}
	return stock.NewLevel(warehouseID, variantID), nil
}

func (r *memStockRepo) GetForUpdate(_ context.Context, warehouseID, variantID id.ID) (*stock.Level, error) {
	key := levelKey{warehouseID, variantID}
	if _, ok := r.levels[key]; !ok {
		r.levels[key] = stock.NewLevel(warehouseID, variantID)
	}
	c := *r.levels[key]
	return &c, nil
}

func (r *memStockRepo) Save(_ context.Context, level *stock.Level) error {
	c := *level
	r.levels[levelKey{level.WarehouseID, level.VariantID}] = &c
	return nil
}

func (r *memStockRepo) ListByWarehouse(_ context.Context, warehouseID id.ID, _ stock.LevelFilter) ([]stock.Level, error) {
	var out []stock.Level
	for key, level := range r.levels {
		if key.warehouseID == warehouseID {
			out = append(out, *level)
		}
	}
	return out, nil
}

func (r *memStockRepo) ListByVariant(_ context.Context, variantID id.ID) ([]stock.Level, error) {
	var out []stock.Level
	for key, level := range r.levels {
		if key.variantID == variantID {
			out = append(out, *level)
		}
	}
	return out, nil
}

func (r *memStockRepo) snapshot() map[levelKey]*stock.Level {
	snap := make(map[levelKey]*stock.Level, len(r.levels))
	for k, v := range r.levels {
		c := *v
		snap[k] = &c
	}
	return snap
}

type memBatchRepo struct {
	batches []*batch.Batch
}

func (r *memBatchRepo) Create(_ context.Context, b *batch.Batch) error {
	c := *b
	r.batches = append(r.batches, &c)
	return nil
}

func (r *memBatchRepo) SumAvailable(_ context.Context, variantID, warehouseID id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, b := range r.batches {
		if b.VariantID == variantID && b.WarehouseID == warehouseID {
			total = total.Add(b.QuantityAvailable)
		}
	}
	return total, nil
}

func (r *memBatchRepo) ListOpenForUpdate(_ context.Context, variantID, warehouseID id.ID) ([]batch.Batch, error) {
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

func (r *memBatchRepo) UpdateAvailable(_ context.Context, batchID id.ID, available types.Quantity) error {
	for _, b := range r.batches {
		if b.ID == batchID {
			b.QuantityAvailable = available
			return nil
		}
	}
	return apperror.NewNotFound("batch", batchID.String())
}

func (r *memBatchRepo) ListByVariant(_ context.Context, variantID id.ID, _, _ int) ([]batch.Batch, error) {
	var out []batch.Batch
	for _, b := range r.batches {
		if b.VariantID == variantID {
			out = append(out, *b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].PurchaseDate.Before(out[i].PurchaseDate)
	})
	return out, nil
}

func (r *memBatchRepo) snapshot() []*batch.Batch {
	snap := make([]*batch.Batch, len(r.batches))
	for i, b := range r.batches {
		c := *b
		snap[i] = &c
	}
	return snap
}

// memTx restores the fake repositories when fn fails, approximating a
// database rollback.
type memTx struct {
	docs    *memDocRepo
	stocks  *memStockRepo
	batches *memBatchRepo
}

func (m *memTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	docsSnap := m.docs.snapshot()
	orderSnap := append([]id.ID(nil), m.docs.order...)
	stockSnap := m.stocks.snapshot()
	batchSnap := m.batches.snapshot()

	if err := fn(ctx); err != nil {
		m.docs.docs = docsSnap
		m.docs.order = orderSnap
		m.stocks.levels = stockSnap
		m.batches.batches = batchSnap
		return err
	}
	return nil
}

type recordingPublisher struct {
	published []struct {
		Topic   string
		Payload any
	}
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	p.published = append(p.published, struct {
		Topic   string
		Payload any
	}{topic, payload})
	return nil
}

func (p *recordingPublisher) topics() []string {
	out := make([]string, 0, len(p.published))
	for _, e := range p.published {
		out = append(out, e.Topic)
	}
	return out
}

func (p *recordingPublisher) has(topic string) bool {
	for _, e := range p.published {
		if e.Topic == topic {
			return true
		}
	}
	return false
}

// --- test engine ---

type engine struct {
	svc     *Service
	docs    *memDocRepo
	stocks  *memStockRepo
	batches *memBatchRepo
	events  *recordingPublisher
	rate23  id.ID
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	docs := newMemDocRepo()
	stocks := newMemStockRepo()
	batches := &memBatchRepo{}
	events := &recordingPublisher{}
	txm := &memTx{docs: docs, stocks: stocks, batches: batches}

	var seq int
	numbers := &numerator.MockGenerator{
		GetNextNumberFunc: func(_ context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
			seq++
			return fmt.Sprintf("%s/%s/%05d", cfg.Prefix, period.Format("2006/01"), seq), nil
		},
	}

	rate23 := id.New()
	taxes := staticTaxes{rate23: decimal.NewFromInt(23)}

	stockSvc := stock.NewService(stocks, txm, events)
	batchSvc := batch.NewService(batches, txm)

	return &engine{
		svc:     NewService(docs, stockSvc, batchSvc, numbers, taxes, txm, events),
		docs:    docs,
		stocks:  stocks,
		batches: batches,
		events:  events,
		rate23:  rate23,
	}
}

func (e *engine) seedStock(warehouseID, variantID id.ID, qty types.Quantity) {
	level := stock.NewLevel(warehouseID, variantID)
	level.Quantity = qty
	e.stocks.levels[levelKey{warehouseID, variantID}] = level
}

func (e *engine) seedBatch(warehouseID, variantID id.ID, qty types.Quantity, cost string, age time.Duration) *batch.Batch {
	b := batch.NewBatch(variantID, warehouseID, qty, types.MustMoney(cost),
		time.Now().UTC().Add(-age), batch.Provenance{DocumentType: "PZ", DocumentID: id.New()})
	e.batches.batches = append(e.batches.batches, b)
	return b
}

func (e *engine) level(t *testing.T, warehouseID, variantID id.ID) *stock.Level {
	t.Helper()
	level, ok := e.stocks.levels[levelKey{warehouseID, variantID}]
	if !ok {
		t.Fatalf("no stock level for warehouse %s variant %s", warehouseID, variantID)
	}
	return level
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func newReceipt(e *engine, warehouseID, variantID id.ID, quantity types.Quantity, price string) *Document {
	supplier := id.New()
	doc := NewDocument(TypePZ)
	doc.SupplierID = &supplier
	doc.TargetWarehouseID = &warehouseID
	doc.AddItem(variantID, quantity, types.MustMoney(price), &e.rate23)
	return doc
}

func newIssue(warehouseID, variantID id.ID, quantity types.Quantity, price string) *Document {
	orderRef := "ORD-1001"
	doc := NewDocument(TypeWZ)
	doc.RelatedOrderID = &orderRef
	doc.SourceWarehouseID = &warehouseID
	doc.AddItem(variantID, quantity, types.MustMoney(price), nil)
	return doc
}

// --- workflow tests ---

func TestCreate_ReceiptAnnouncesIncoming(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	ctx := context.Background()

	doc := newReceipt(e, warehouseID, variantID, qty(10), "10.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if doc.Number != "PZ/"+doc.DocumentDate.Format("2006/01")+"/00001" {
		t.Errorf("unexpected number %q", doc.Number)
	}
	if want := types.MustMoney("100.00"); !doc.TotalNet.Equal(want) {
		t.Errorf("TotalNet = %s, want %s", doc.TotalNet, want)
	}
	if want := types.MustMoney("123.00"); !doc.TotalGross.Equal(want) {
		t.Errorf("TotalGross = %s, want %s", doc.TotalGross, want)
	}

	level := e.level(t, warehouseID, variantID)
	if level.Incoming != qty(10) {
		t.Errorf("Incoming = %s, want 10", level.Incoming)
	}
	if !level.Quantity.IsZero() || !level.Reserved.IsZero() {
		t.Errorf("open receipt must not touch on-hand or reserved: %+v", level)
	}

	if len(e.batches.batches) != 0 {
		t.Error("open receipt must not create batches")
	}
	if !e.events.has(event.TopicDocumentCreated) {
		t.Errorf("missing document.created, got %v", e.events.topics())
	}
	if !e.events.has(event.TopicStockChanged) {
		t.Errorf("missing stock.changed, got %v", e.events.topics())
	}
}

func TestClose_ReceiptAddsStockAndBatch(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	ctx := context.Background()

	doc := newReceipt(e, warehouseID, variantID, qty(10), "10.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	closed, err := e.svc.Close(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !closed.IsClosed() {
		t.Error("document should be closed")
	}

	level := e.level(t, warehouseID, variantID)
	if level.Quantity != qty(10) {
		t.Errorf("Quantity = %s, want 10", level.Quantity)
	}
	if !level.Incoming.IsZero() {
		t.Errorf("Incoming = %s, want 0 after close", level.Incoming)
	}

	if len(e.batches.batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(e.batches.batches))
	}
	b := e.batches.batches[0]
	if b.QuantityAvailable != qty(10) {
		t.Errorf("batch available = %s, want 10", b.QuantityAvailable)
	}
	if !b.PurchasePrice.Equal(types.MustMoney("10.00")) {
		t.Errorf("batch cost = %s, want 10.00", b.PurchasePrice)
	}
	if !b.PurchaseDate.Equal(doc.DocumentDate) {
		t.Errorf("batch date = %s, want document date %s", b.PurchaseDate, doc.DocumentDate)
	}
	if b.SourceDocumentType != "PZ" || b.SourceDocumentID != doc.ID {
		t.Errorf("batch provenance = %s/%s", b.SourceDocumentType, b.SourceDocumentID)
	}

	if !e.events.has(event.TopicDocumentClosed) {
		t.Errorf("missing document.closed, got %v", e.events.topics())
	}
}

func TestCreate_IssueReservesStock(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	e.seedStock(warehouseID, variantID, qty(10))

	doc := newIssue(warehouseID, variantID, qty(4), "12.00")
	if err := e.svc.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	level := e.level(t, warehouseID, variantID)
	if level.Reserved != qty(4) {
		t.Errorf("Reserved = %s, want 4", level.Reserved)
	}
	if level.Quantity != qty(10) {
		t.Errorf("Quantity = %s, want 10 while open", level.Quantity)
	}
	if level.Available() != qty(6) {
		t.Errorf("Available = %s, want 6", level.Available())
	}
}

func TestCreate_IssueInsufficientAvailableRollsBack(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	e.seedStock(warehouseID, variantID, qty(2))

	doc := newIssue(warehouseID, variantID, qty(5), "12.00")
	err := e.svc.Create(context.Background(), doc)
	if !apperror.IsCode(err, apperror.CodeInsufficientAvailable) {
		t.Fatalf("expected INSUFFICIENT_AVAILABLE, got %v", err)
	}

	if len(e.docs.docs) != 0 {
		t.Error("failed create must not persist a document")
	}
	if !e.level(t, warehouseID, variantID).Reserved.IsZero() {
		t.Error("failed create must not leave a reservation")
	}
}

func TestClose_IssueConsumesBatchesOldestFirst(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	e.seedStock(warehouseID, variantID, qty(16))
	older := e.seedBatch(warehouseID, variantID, qty(6), "10.00", 48*time.Hour)
	newer := e.seedBatch(warehouseID, variantID, qty(10), "12.00", 24*time.Hour)

	ctx := context.Background()
	doc := newIssue(warehouseID, variantID, qty(8), "15.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := e.svc.Close(ctx, doc.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	level := e.level(t, warehouseID, variantID)
	if level.Quantity != qty(8) {
		t.Errorf("Quantity = %s, want 8", level.Quantity)
	}
	if !level.Reserved.IsZero() {
		t.Errorf("Reserved = %s, want 0 after close", level.Reserved)
	}

	if !older.IsExhausted() {
		t.Errorf("older batch available = %s, want 0", older.QuantityAvailable)
	}
	if newer.QuantityAvailable != qty(8) {
		t.Errorf("newer batch available = %s, want 8", newer.QuantityAvailable)
	}
}

func TestClose_IssueInsufficientBatchStockRollsBack(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	// Ledger says 5 on hand but the cost layer only covers 3.
	e.seedStock(warehouseID, variantID, qty(5))
	e.seedBatch(warehouseID, variantID, qty(3), "10.00", 24*time.Hour)

	ctx := context.Background()
	doc := newIssue(warehouseID, variantID, qty(5), "15.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := e.svc.Close(ctx, doc.ID)
	if !apperror.IsCode(err, apperror.CodeInsufficientBatchStock) {
		t.Fatalf("expected INSUFFICIENT_BATCH_STOCK, got %v", err)
	}

	level := e.level(t, warehouseID, variantID)
	if level.Quantity != qty(5) || level.Reserved != qty(5) {
		t.Errorf("failed close must keep the open state: %+v", level)
	}
	if e.batches.batches[0].QuantityAvailable != qty(3) {
		t.Error("failed close must not consume batches")
	}

	stored, err := e.svc.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.IsClosed() {
		t.Error("document must stay open after failed close")
	}
}

func TestUpdate_ReappliesProvisionalEffects(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	e.seedStock(warehouseID, variantID, qty(10))
	ctx := context.Background()

	doc := newIssue(warehouseID, variantID, qty(5), "12.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	number := doc.Number

	doc.Items = nil
	doc.AddItem(variantID, qty(3), types.MustMoney("12.00"), nil)
	doc.Number = ""
	if err := e.svc.Update(ctx, doc); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if doc.Number != number {
		t.Errorf("Number = %q, want original %q preserved", doc.Number, number)
	}
	if got := e.level(t, warehouseID, variantID).Reserved; got != qty(3) {
		t.Errorf("Reserved = %s, want 3 after edit", got)
	}
}

func TestUpdate_TypeChangeRejected(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	ctx := context.Background()

	doc := newReceipt(e, warehouseID, variantID, qty(2), "5.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	doc.Type = TypePW
	err := e.svc.Update(ctx, doc)
	if !apperror.IsCode(err, apperror.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClose_AlreadyClosedRejected(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	ctx := context.Background()

	doc := newReceipt(e, warehouseID, variantID, qty(2), "5.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := e.svc.Close(ctx, doc.ID); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}

	_, err := e.svc.Close(ctx, doc.ID)
	if !apperror.IsCode(err, apperror.CodeDocumentAlreadyClosed) {
		t.Fatalf("expected DOCUMENT_ALREADY_CLOSED, got %v", err)
	}
}

func TestDelete_OpenReversesProvisional(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	e.seedStock(warehouseID, variantID, qty(10))
	ctx := context.Background()

	doc := newIssue(warehouseID, variantID, qty(4), "12.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := e.svc.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if len(e.docs.docs) != 0 {
		t.Error("document should be removed")
	}
	if !e.level(t, warehouseID, variantID).Reserved.IsZero() {
		t.Error("reservation must be released on delete")
	}
	if !e.events.has(event.TopicDocumentDeleted) {
		t.Errorf("missing document.deleted, got %v", e.events.topics())
	}
}

func TestDelete_ClosedRejected(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	ctx := context.Background()

	doc := newReceipt(e, warehouseID, variantID, qty(2), "5.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := e.svc.Close(ctx, doc.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	err := e.svc.Delete(ctx, doc.ID)
	if !apperror.IsCode(err, apperror.CodeDocumentClosed) {
		t.Fatalf("expected DOCUMENT_CLOSED, got %v", err)
	}
	if _, err := e.svc.GetByID(ctx, doc.ID); err != nil {
		t.Error("closed document must survive a delete attempt")
	}
}

func TestCreate_FinancialTypesSkipStock(t *testing.T) {
	e := newEngine(t)
	supplier := id.New()
	ctx := context.Background()

	doc := NewDocument(TypeFVZ)
	doc.SupplierID = &supplier
	doc.AddItem(id.New(), qty(5), types.MustMoney("10.00"), &e.rate23)

	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if len(e.stocks.levels) != 0 {
		t.Error("financial document must not touch stock")
	}
	if want := types.MustMoney("61.50"); !doc.TotalGross.Equal(want) {
		t.Errorf("TotalGross = %s, want %s", doc.TotalGross, want)
	}

	if _, err := e.svc.Close(ctx, doc.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(e.stocks.levels) != 0 || len(e.batches.batches) != 0 {
		t.Error("closing a financial document must not touch stock or batches")
	}
}

func TestCreate_InventoryTypeRejected(t *testing.T) {
	e := newEngine(t)
	warehouseID := id.New()

	doc := NewDocument(TypeINW)
	doc.TargetWarehouseID = &warehouseID
	err := e.svc.Create(context.Background(), doc)
	if !apperror.IsCode(err, apperror.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransfer_MovesStockBetweenWarehouses(t *testing.T) {
	e := newEngine(t)
	sourceID, targetID, variantID := id.New(), id.New(), id.New()
	e.seedStock(sourceID, variantID, qty(10))
	e.seedBatch(sourceID, variantID, qty(10), "10.00", 24*time.Hour)
	ctx := context.Background()

	doc := NewDocument(TypeMM)
	doc.SourceWarehouseID = &sourceID
	doc.TargetWarehouseID = &targetID
	doc.AddItem(variantID, qty(4), types.MustMoney("10.00"), nil)

	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if got := e.level(t, sourceID, variantID).Reserved; got != qty(4) {
		t.Errorf("source Reserved = %s, want 4", got)
	}
	if got := e.level(t, targetID, variantID).Incoming; got != qty(4) {
		t.Errorf("target Incoming = %s, want 4", got)
	}

	if _, err := e.svc.Close(ctx, doc.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	source := e.level(t, sourceID, variantID)
	if source.Quantity != qty(6) || !source.Reserved.IsZero() {
		t.Errorf("source after close: %+v", source)
	}
	target := e.level(t, targetID, variantID)
	if target.Quantity != qty(4) || !target.Incoming.IsZero() {
		t.Errorf("target after close: %+v", target)
	}

	var targetBatches int
	for _, b := range e.batches.batches {
		if b.WarehouseID == targetID {
			targetBatches++
			if b.QuantityAvailable != qty(4) {
				t.Errorf("target batch available = %s, want 4", b.QuantityAvailable)
			}
		}
	}
	if targetBatches != 1 {
		t.Errorf("target batches = %d, want 1", targetBatches)
	}
}

func TestLinkFinancialDocument_DerivesInvoice(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	e.seedStock(warehouseID, variantID, qty(10))
	ctx := context.Background()

	t.Run("WZ to FS", func(t *testing.T) {
		parent := newIssue(warehouseID, variantID, qty(4), "12.00")
		if err := e.svc.Create(ctx, parent); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		reservedBefore := e.level(t, warehouseID, variantID).Reserved

		child, err := e.svc.LinkFinancialDocument(ctx, parent.ID, LinkOptions{PaymentMethod: "transfer"})
		if err != nil {
			t.Fatalf("LinkFinancialDocument failed: %v", err)
		}

		if child.Type != TypeFS {
			t.Errorf("child type = %s, want FS", child.Type)
		}
		if child.RelatedDocumentID == nil || *child.RelatedDocumentID != parent.ID {
			t.Error("child must reference the parent document")
		}
		if child.RelatedOrderID == nil || *child.RelatedOrderID != *parent.RelatedOrderID {
			t.Error("child must inherit the order reference")
		}
		if len(child.Items) != 1 || child.Items[0].Quantity != qty(4) {
			t.Errorf("child items not copied: %+v", child.Items)
		}
		if got := e.level(t, warehouseID, variantID).Reserved; got != reservedBefore {
			t.Errorf("Reserved changed from %s to %s, invoice must not touch stock", reservedBefore, got)
		}
	})

	t.Run("PZ to FVZ", func(t *testing.T) {
		parent := newReceipt(e, warehouseID, variantID, qty(3), "8.00")
		if err := e.svc.Create(ctx, parent); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		child, err := e.svc.LinkFinancialDocument(ctx, parent.ID, LinkOptions{})
		if err != nil {
			t.Fatalf("LinkFinancialDocument failed: %v", err)
		}
		if child.Type != TypeFVZ {
			t.Errorf("child type = %s, want FVZ", child.Type)
		}
		if child.SupplierID == nil || *child.SupplierID != *parent.SupplierID {
			t.Error("child must inherit the supplier")
		}
	})

	t.Run("unsupported parent", func(t *testing.T) {
		source, target := id.New(), id.New()
		parent := NewDocument(TypeMM)
		parent.SourceWarehouseID = &source
		parent.TargetWarehouseID = &target
		parent.AddItem(variantID, qty(1), types.MustMoney("1.00"), nil)
		e.seedStock(source, variantID, qty(5))
		if err := e.svc.Create(ctx, parent); err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		_, err := e.svc.LinkFinancialDocument(ctx, parent.ID, LinkOptions{})
		if !apperror.IsCode(err, apperror.CodeUnsupportedDocumentType) {
			t.Fatalf("expected UNSUPPORTED_DOCUMENT_TYPE, got %v", err)
		}
	})
}

func TestProcessInventory_AppliesVariance(t *testing.T) {
	e := newEngine(t)
	warehouseID := id.New()
	variantShort, variantFound := id.New(), id.New()
	e.seedStock(warehouseID, variantShort, qty(10))
	e.seedBatch(warehouseID, variantShort, qty(10), "10.00", 24*time.Hour)
	ctx := context.Background()

	doc := NewDocument(TypeINW)
	doc.TargetWarehouseID = &warehouseID
	doc.InventoryItems = []InventoryItem{
		{ID: id.New(), VariantID: variantShort, Counted: qty(7)},
		{ID: id.New(), VariantID: variantFound, Counted: qty(5), UnitCost: types.MustMoney("4.00")},
	}

	if err := e.svc.ProcessInventory(ctx, doc); err != nil {
		t.Fatalf("ProcessInventory failed: %v", err)
	}

	if !doc.IsClosed() {
		t.Error("inventory count must close immediately")
	}
	if doc.Number == "" {
		t.Error("inventory count must be numbered")
	}

	short := doc.InventoryItems[0]
	if short.Expected != qty(10) || short.Difference != qty(-3) {
		t.Errorf("shortage line: expected %s difference %s", short.Expected, short.Difference)
	}
	found := doc.InventoryItems[1]
	if !found.Expected.IsZero() || found.Difference != qty(5) {
		t.Errorf("surplus line: expected %s difference %s", found.Expected, found.Difference)
	}

	if got := e.level(t, warehouseID, variantShort).Quantity; got != qty(7) {
		t.Errorf("shortage variant quantity = %s, want 7", got)
	}
	if got := e.level(t, warehouseID, variantFound).Quantity; got != qty(5) {
		t.Errorf("surplus variant quantity = %s, want 5", got)
	}

	// Shortage consumed from the existing batch, surplus created a new one.
	for _, b := range e.batches.batches {
		switch b.VariantID {
		case variantShort:
			if b.QuantityAvailable != qty(7) {
				t.Errorf("shortage batch available = %s, want 7", b.QuantityAvailable)
			}
		case variantFound:
			if b.QuantityAvailable != qty(5) || !b.PurchasePrice.Equal(types.MustMoney("4.00")) {
				t.Errorf("surplus batch: %+v", b)
			}
			if b.SourceDocumentType != "INW" {
				t.Errorf("surplus batch provenance = %s, want INW", b.SourceDocumentType)
			}
		}
	}

	if !e.events.has(event.TopicDocumentCreated) || !e.events.has(event.TopicDocumentClosed) {
		t.Errorf("inventory count must publish created and closed, got %v", e.events.topics())
	}
}

func TestProcessInventory_NegativeCountRollsBack(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	e.seedStock(warehouseID, variantID, qty(10))
	e.seedBatch(warehouseID, variantID, qty(10), "10.00", 24*time.Hour)
	ctx := context.Background()

	doc := NewDocument(TypeINW)
	doc.TargetWarehouseID = &warehouseID
	doc.InventoryItems = []InventoryItem{
		{ID: id.New(), VariantID: variantID, Counted: qty(7)},
		{ID: id.New(), VariantID: id.New(), Counted: qty(-1)},
	}

	err := e.svc.ProcessInventory(ctx, doc)
	if !apperror.IsCode(err, apperror.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if len(e.docs.docs) != 0 {
		t.Error("failed count must not persist a document")
	}
	if got := e.level(t, warehouseID, variantID).Quantity; got != qty(10) {
		t.Errorf("failed count must not change stock, got %s", got)
	}
}

func TestProcessInventory_RejectsOtherTypes(t *testing.T) {
	e := newEngine(t)
	warehouseID := id.New()

	doc := NewDocument(TypePZ)
	doc.TargetWarehouseID = &warehouseID
	err := e.svc.ProcessInventory(context.Background(), doc)
	if !apperror.IsCode(err, apperror.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetByRelatedOrder(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	e.seedStock(warehouseID, variantID, qty(10))
	ctx := context.Background()

	doc := newIssue(warehouseID, variantID, qty(2), "12.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, err := e.svc.GetByRelatedOrder(ctx, "ORD-1001", TypeWZ)
	if err != nil {
		t.Fatalf("GetByRelatedOrder failed: %v", err)
	}
	if found.ID != doc.ID {
		t.Errorf("found %s, want %s", found.ID, doc.ID)
	}

	if _, err := e.svc.GetByRelatedOrder(ctx, "ORD-9999", TypeWZ); !apperror.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHooks_BeforeCloseCanVeto(t *testing.T) {
	e := newEngine(t)
	warehouseID, variantID := id.New(), id.New()
	ctx := context.Background()

	e.svc.Hooks().On(domain.BeforeClose, func(_ context.Context, doc *Document) error {
		return apperror.NewBusinessRule("PERIOD_LOCKED", "accounting period is locked")
	})

	doc := newReceipt(e, warehouseID, variantID, qty(2), "5.00")
	if err := e.svc.Create(ctx, doc); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := e.svc.Close(ctx, doc.ID)
	if !apperror.IsCode(err, "PERIOD_LOCKED") {
		t.Fatalf("expected hook veto, got %v", err)
	}

	stored, _ := e.svc.GetByID(ctx, doc.ID)
	if stored.IsClosed() {
		t.Error("vetoed close must leave the document open")
	}
}
