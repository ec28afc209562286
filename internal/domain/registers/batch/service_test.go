package batch

import (
	"bytes"
	"context"
	"sort"
	"testing"
	"time"

	"warelog/internal/core/apperror"
	"warelog/internal/core/id"
	"warelog/internal/core/types"
)

type fakeRepo struct {
	batches []*Batch
}

func (r *fakeRepo) Create(_ context.Context, b *Batch) error {
	c := *b
	r.batches = append(r.batches, &c)
	return nil
}

func (r *fakeRepo) SumAvailable(_ context.Context, variantID, warehouseID id.ID) (types.Quantity, error) {
	var total types.Quantity
	for _, b := range r.batches {
		if b.VariantID == variantID && b.WarehouseID == warehouseID {
			total += b.QuantityAvailable
		}
	}
	return total, nil
}

func (r *fakeRepo) ListOpenForUpdate(_ context.Context, variantID, warehouseID id.ID) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.VariantID == variantID && b.WarehouseID == warehouseID && !b.IsExhausted() {
			out = append(out, *b)
		}
	}
	// Same ordering as the SQL repository: purchase_date asc, id asc.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
		}
		return out[i].PurchaseDate.Before(out[j].PurchaseDate)
	})
	return out, nil
}

func (r *fakeRepo) UpdateAvailable(_ context.Context, batchID id.ID, available types.Quantity) error {
	for _, b := range r.batches {
		if b.ID == batchID {
			b.QuantityAvailable = available
			return nil
		}
	}
	return apperror.NewNotFound("batch", batchID.String())
}

func (r *fakeRepo) ListByVariant(_ context.Context, variantID id.ID, _, _ int) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if b.VariantID == variantID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeRepo) available(batchID id.ID) types.Quantity {
	for _, b := range r.batches {
		if b.ID == batchID {
			return b.QuantityAvailable
		}
	}
	return 0
}

type passTx struct{}

func (passTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func seedBatch(repo *fakeRepo, variantID, warehouseID id.ID, quantity types.Quantity, cost string, age time.Duration) *Batch {
	b := NewBatch(variantID, warehouseID, quantity, types.MustMoney(cost),
		time.Now().UTC().Add(-age), Provenance{DocumentType: "PZ", DocumentID: id.New()})
	repo.batches = append(repo.batches, b)
	return b
}

func TestAddBatch(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, passTx{})
	variantID, warehouseID := id.New(), id.New()
	date := time.Now().UTC().Truncate(24 * time.Hour)
	ctx := context.Background()

	b, err := svc.AddBatch(ctx, variantID, warehouseID, qty(10), types.MustMoney("12.50"), date,
		Provenance{DocumentType: "PZ", DocumentID: id.New()})
	if err != nil {
		t.Fatalf("AddBatch failed: %v", err)
	}

	if b.QuantityTotal != qty(10) || b.QuantityAvailable != qty(10) {
		t.Errorf("quantities = %s/%s, want 10/10", b.QuantityTotal, b.QuantityAvailable)
	}
	if !b.PurchasePrice.Equal(types.MustMoney("12.50")) {
		t.Errorf("price = %s, want 12.50", b.PurchasePrice)
	}
	if !b.PurchaseDate.Equal(date) {
		t.Errorf("date = %s, want %s", b.PurchaseDate, date)
	}
	if len(repo.batches) != 1 {
		t.Errorf("stored batches = %d, want 1", len(repo.batches))
	}
}

func TestAddBatch_Validation(t *testing.T) {
	svc := NewService(&fakeRepo{}, passTx{})
	variantID, warehouseID := id.New(), id.New()
	now := time.Now().UTC()
	ctx := context.Background()

	tests := []struct {
		name string
		qty  types.Quantity
		cost string
	}{
		{"zero quantity", 0, "10.00"},
		{"negative quantity", qty(-1), "10.00"},
		{"negative cost", qty(1), "-0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddBatch(ctx, variantID, warehouseID, tt.qty, types.MustMoney(tt.cost), now, Provenance{})
			if !apperror.IsCode(err, apperror.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestIssueFIFO_ConsumesOldestFirst(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, passTx{})
	variantID, warehouseID := id.New(), id.New()

	oldest := seedBatch(repo, variantID, warehouseID, qty(6), "10.00", 72*time.Hour)
	middle := seedBatch(repo, variantID, warehouseID, qty(4), "11.00", 48*time.Hour)
	newest := seedBatch(repo, variantID, warehouseID, qty(10), "12.00", 24*time.Hour)

	consumed, err := svc.IssueFIFO(context.Background(), variantID, warehouseID, qty(8))
	if err != nil {
		t.Fatalf("IssueFIFO failed: %v", err)
	}

	if len(consumed) != 2 {
		t.Fatalf("consumed %d batches, want 2", len(consumed))
	}
	if consumed[0].BatchID != oldest.ID || consumed[0].Quantity != qty(6) {
		t.Errorf("first consumption = %+v, want 6 from oldest", consumed[0])
	}
	if consumed[1].BatchID != middle.ID || consumed[1].Quantity != qty(2) {
		t.Errorf("second consumption = %+v, want 2 from middle", consumed[1])
	}
	if !consumed[0].UnitCost.Equal(types.MustMoney("10.00")) || !consumed[1].UnitCost.Equal(types.MustMoney("11.00")) {
		t.Error("consumptions must carry the batch purchase price")
	}

	if got := repo.available(oldest.ID); !got.IsZero() {
		t.Errorf("oldest available = %s, want 0", got)
	}
	if got := repo.available(middle.ID); got != qty(2) {
		t.Errorf("middle available = %s, want 2", got)
	}
	if got := repo.available(newest.ID); got != qty(10) {
		t.Errorf("newest available = %s, want 10 untouched", got)
	}

	if want := types.MustMoney("82.00"); !CostOfGoods(consumed).Equal(want) {
		t.Errorf("CostOfGoods = %s, want %s", CostOfGoods(consumed), want)
	}
}

func TestIssueFIFO_SameDateBreaksTieByID(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, passTx{})
	variantID, warehouseID := id.New(), id.New()

	// Two deliveries booked on the same day. IDs are UUIDv7, so the batch
	// created first carries the smaller id and must be consumed first.
	first := seedBatch(repo, variantID, warehouseID, qty(5), "10.00", 24*time.Hour)
	second := seedBatch(repo, variantID, warehouseID, qty(5), "11.00", 24*time.Hour)
	second.PurchaseDate = first.PurchaseDate

	consumed, err := svc.IssueFIFO(context.Background(), variantID, warehouseID, qty(7))
	if err != nil {
		t.Fatalf("IssueFIFO failed: %v", err)
	}

	if len(consumed) != 2 {
		t.Fatalf("consumed %d batches, want 2", len(consumed))
	}
	if consumed[0].BatchID != first.ID || consumed[0].Quantity != qty(5) {
		t.Errorf("first consumption = %+v, want 5 from the earlier batch", consumed[0])
	}
	if consumed[1].BatchID != second.ID || consumed[1].Quantity != qty(2) {
		t.Errorf("second consumption = %+v, want 2 from the later batch", consumed[1])
	}

	if got := repo.available(first.ID); !got.IsZero() {
		t.Errorf("earlier batch available = %s, want 0", got)
	}
	if got := repo.available(second.ID); got != qty(3) {
		t.Errorf("later batch available = %s, want 3", got)
	}
}

func TestIssueFIFO_SkipsExhaustedBatches(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, passTx{})
	variantID, warehouseID := id.New(), id.New()

	exhausted := seedBatch(repo, variantID, warehouseID, qty(5), "9.00", 96*time.Hour)
	exhausted.QuantityAvailable = 0
	open := seedBatch(repo, variantID, warehouseID, qty(5), "10.00", 24*time.Hour)

	consumed, err := svc.IssueFIFO(context.Background(), variantID, warehouseID, qty(3))
	if err != nil {
		t.Fatalf("IssueFIFO failed: %v", err)
	}
	if len(consumed) != 1 || consumed[0].BatchID != open.ID {
		t.Errorf("consumed = %+v, want 3 from the open batch", consumed)
	}
}

func TestIssueFIFO_InsufficientLeavesBatchesIntact(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, passTx{})
	variantID, warehouseID := id.New(), id.New()

	first := seedBatch(repo, variantID, warehouseID, qty(3), "10.00", 48*time.Hour)
	second := seedBatch(repo, variantID, warehouseID, qty(2), "11.00", 24*time.Hour)

	_, err := svc.IssueFIFO(context.Background(), variantID, warehouseID, qty(6))
	if !apperror.IsCode(err, apperror.CodeInsufficientBatchStock) {
		t.Fatalf("expected INSUFFICIENT_BATCH_STOCK, got %v", err)
	}

	if got := repo.available(first.ID); got != qty(3) {
		t.Errorf("first available = %s, want 3 untouched", got)
	}
	if got := repo.available(second.ID); got != qty(2) {
		t.Errorf("second available = %s, want 2 untouched", got)
	}
}

func TestIssueFIFO_NonPositiveQuantityRejected(t *testing.T) {
	svc := NewService(&fakeRepo{}, passTx{})

	_, err := svc.IssueFIFO(context.Background(), id.New(), id.New(), 0)
	if !apperror.IsCode(err, apperror.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIssueFIFO_ScopedToWarehouse(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, passTx{})
	variantID := id.New()
	here, elsewhere := id.New(), id.New()

	seedBatch(repo, variantID, here, qty(2), "10.00", 24*time.Hour)
	other := seedBatch(repo, variantID, elsewhere, qty(10), "10.00", 48*time.Hour)

	_, err := svc.IssueFIFO(context.Background(), variantID, here, qty(5))
	if !apperror.IsCode(err, apperror.CodeInsufficientBatchStock) {
		t.Fatalf("stock in another warehouse must not cover the issue, got %v", err)
	}
	if got := repo.available(other.ID); got != qty(10) {
		t.Errorf("other warehouse batch available = %s, want 10", got)
	}
}
