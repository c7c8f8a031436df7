package stock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warelane/warelane/internal/masterdata"
	"github.com/warelane/warelane/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	balances map[string]Balance
	txs      map[int64]Transaction
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: make(map[string]Balance), txs: make(map[int64]Transaction)}
}

func balanceKey(productID, warehouseID, locationID int64) string {
	return fmt.Sprintf("%d:%d:%d", productID, warehouseID, locationID)
}

type memoryTx struct {
	repo     *memoryRepo
	balances map[string]Balance
	txs      map[int64]Transaction
}

// WithTx serializes units of work and commits staged writes only when fn
// succeeds, mirroring rollback-on-error.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, balances: make(map[string]Balance), txs: make(map[int64]Transaction)}
	for k, v := range r.balances {
		tx.balances[k] = v
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.balances = tx.balances
	for id, t := range tx.txs {
		r.txs[id] = t
	}
	return nil
}

func (r *memoryRepo) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.txs[id]; ok {
		return t, nil
	}
	return Transaction{}, shared.NewNotFound("stock transaction", fmt.Sprintf("%d", id))
}

func (r *memoryRepo) ListOnHand(ctx context.Context, filter OnHandFilter) ([]OnHandRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []OnHandRow
	for _, b := range r.balances {
		if b.WarehouseID != filter.WarehouseID {
			continue
		}
		if filter.LocationID != 0 && b.LocationID != filter.LocationID {
			continue
		}
		rows = append(rows, OnHandRow{ProductID: b.ProductID, Qty: b.Qty})
	}
	return rows, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, filter MovementFilter) ([]MovementEntry, error) {
	return nil, nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	tx.repo.nextID++
	t.ID = tx.repo.nextID
	tx.txs[t.ID] = t
	return t.ID, nil
}

func (tx *memoryTx) InsertLines(ctx context.Context, txID int64, lines []TransactionLine) error {
	t := tx.txs[txID]
	t.Lines = lines
	tx.txs[txID] = t
	return nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, productID, warehouseID, locationID int64) (Balance, error) {
	if b, ok := tx.balances[balanceKey(productID, warehouseID, locationID)]; ok {
		return b, nil
	}
	return Balance{}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.balances[balanceKey(balance.ProductID, balance.WarehouseID, balance.LocationID)] = balance
	return nil
}

func (tx *memoryTx) GetBalances(ctx context.Context, warehouseID, locationID int64, productIDs []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(productIDs))
	for _, id := range productIDs {
		if b, ok := tx.balances[balanceKey(id, warehouseID, locationID)]; ok {
			out[id] = b.Qty
		}
	}
	return out, nil
}

type fakeMasterData struct {
	warehouses map[string]masterdata.Warehouse
	locations  map[string]masterdata.Location
	products   []masterdata.Product
}

func newFakeMasterData() *fakeMasterData {
	return &fakeMasterData{
		warehouses: map[string]masterdata.Warehouse{
			"WH1": {ID: 1, Code: "WH1", DefaultLocationID: 10},
		},
		locations: map[string]masterdata.Location{
			"L1": {ID: 11, WarehouseID: 1, Code: "L1"},
		},
		products: []masterdata.Product{
			{ID: 100, SKU: "SKU-1", Barcode: "880001", UnitsPerInnerPack: 12, InnerPacksPerOuterPack: 5},
			{ID: 101, SKU: "SKU-2", Barcode: "880002", UnitsPerInnerPack: 6, InnerPacksPerOuterPack: 4},
		},
	}
}

func (f *fakeMasterData) GetWarehouseByCode(ctx context.Context, code string) (masterdata.Warehouse, error) {
	if w, ok := f.warehouses[code]; ok {
		return w, nil
	}
	return masterdata.Warehouse{}, shared.NewNotFound("warehouse", code)
}

func (f *fakeMasterData) GetLocationByCode(ctx context.Context, code string, warehouseID int64) (masterdata.Location, error) {
	if l, ok := f.locations[code]; ok && l.WarehouseID == warehouseID {
		return l, nil
	}
	return masterdata.Location{}, shared.NewNotFound("location", code)
}

func (f *fakeMasterData) GetLocationByID(ctx context.Context, id int64) (masterdata.Location, error) {
	for _, l := range f.locations {
		if l.ID == id {
			return l, nil
		}
	}
	return masterdata.Location{}, shared.NewNotFound("location", fmt.Sprintf("%d", id))
}

func (f *fakeMasterData) GetProductsByCodes(ctx context.Context, codes []string) ([]masterdata.Product, error) {
	var out []masterdata.Product
	for _, p := range f.products {
		for _, code := range codes {
			if p.SKU == code || p.Barcode == code {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, newFakeMasterData(), nil, nil, nil, ServiceConfig{})
}

func TestCreateInboundConvertsPacks(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	tx, err := svc.Create(ctx, CreateInput{
		Type:          TransactionInbound,
		WarehouseCode: "WH1",
		LocationCode:  "L1",
		Actor:         "alice",
		Lines:         []LineInput{{Code: "SKU-1", Quantity: 2, Unit: UnitOuterPack}},
	})
	require.NoError(t, err)
	require.Len(t, tx.Lines, 1)
	require.InDelta(t, 120, tx.Lines[0].BaseQty, 1e-9)

	balance := repo.balances[balanceKey(100, 1, 11)]
	require.InDelta(t, 120, balance.Qty, 1e-9)
}

func TestOutboundInsufficientStockLeavesLedgerUntouched(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{
		Type:          TransactionInbound,
		WarehouseCode: "WH1",
		LocationCode:  "L1",
		Lines:         []LineInput{{Code: "SKU-1", Quantity: 2, Unit: UnitOuterPack}},
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{
		Type:          TransactionOutbound,
		WarehouseCode: "WH1",
		LocationCode:  "L1",
		Lines:         []LineInput{{Code: "SKU-1", Quantity: 130, Unit: UnitEach}},
	})
	var stockErr *shared.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.InDelta(t, 120, stockErr.Available, 1e-9)
	require.InDelta(t, 130, stockErr.Requested, 1e-9)

	balance := repo.balances[balanceKey(100, 1, 11)]
	require.InDelta(t, 120, balance.Qty, 1e-9)
}

func TestOutboundAgainstEmptyRowFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Type:          TransactionOutbound,
		WarehouseCode: "WH1",
		Lines:         []LineInput{{Code: "SKU-1", Quantity: 1, Unit: UnitEach}},
	})
	var stockErr *shared.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Zero(t, stockErr.Available)
}

func TestUnknownProductAbortsWholeTransaction(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Type:          TransactionInbound,
		WarehouseCode: "WH1",
		Lines: []LineInput{
			{Code: "SKU-1", Quantity: 1, Unit: UnitEach},
			{Code: "GHOST", Quantity: 1, Unit: UnitEach},
		},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.balances)
	require.Empty(t, repo.txs)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Type: TransactionReversal, WarehouseCode: "WH1",
		Lines: []LineInput{{Code: "SKU-1", Quantity: 1, Unit: UnitEach}}})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Create(ctx, CreateInput{Type: TransactionInbound, WarehouseCode: "WH1"})
	require.ErrorIs(t, err, ErrEmptyLines)

	_, err = svc.Create(ctx, CreateInput{Type: TransactionInbound, WarehouseCode: "WH1",
		Lines: []LineInput{{Code: "SKU-1", Quantity: -1, Unit: UnitEach}}})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestEffectiveLocationFallsBackToDefault(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	// NOPE does not exist in WH1, so the movement lands on the warehouse
	// default location.
	tx, err := svc.Create(context.Background(), CreateInput{
		Type:          TransactionInbound,
		WarehouseCode: "WH1",
		LocationCode:  "NOPE",
		Lines:         []LineInput{{Code: "SKU-1", Quantity: 1, Unit: UnitEach}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 10, tx.LocationID)
	require.InDelta(t, 1, repo.balances[balanceKey(100, 1, 10)].Qty, 1e-9)
}

func TestUndoRestoresLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	original, err := svc.Create(ctx, CreateInput{
		Type:          TransactionInbound,
		WarehouseCode: "WH1",
		LocationCode:  "L1",
		Lines:         []LineInput{{Code: "SKU-1", Quantity: 2, Unit: UnitOuterPack}},
	})
	require.NoError(t, err)

	reversal, err := svc.Undo(ctx, original.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, TransactionReversal, reversal.Type)
	require.Equal(t, original.ID, reversal.ReversalOfID)
	require.InDelta(t, 0, repo.balances[balanceKey(100, 1, 11)].Qty, 1e-9)

	// Undoing the undo restores the state right after the original commit.
	again, err := svc.Undo(ctx, reversal.ID, "bob")
	require.NoError(t, err)
	require.Equal(t, reversal.ID, again.ReversalOfID)
	require.InDelta(t, 120, repo.balances[balanceKey(100, 1, 11)].Qty, 1e-9)
}

func TestUndoOutbound(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{
		Type: TransactionInbound, WarehouseCode: "WH1", LocationCode: "L1",
		Lines: []LineInput{{Code: "SKU-1", Quantity: 120, Unit: UnitEach}},
	})
	require.NoError(t, err)
	outbound, err := svc.Create(ctx, CreateInput{
		Type: TransactionOutbound, WarehouseCode: "WH1", LocationCode: "L1",
		Lines: []LineInput{{Code: "SKU-1", Quantity: 50, Unit: UnitEach}},
	})
	require.NoError(t, err)
	require.InDelta(t, 70, repo.balances[balanceKey(100, 1, 11)].Qty, 1e-9)

	_, err = svc.Undo(ctx, outbound.ID, "bob")
	require.NoError(t, err)
	require.InDelta(t, 120, repo.balances[balanceKey(100, 1, 11)].Qty, 1e-9)
}

func TestConservationAcrossMixedTransactions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	post := func(txType TransactionType, qty float64, unit Unit) {
		t.Helper()
		_, err := svc.Create(ctx, CreateInput{
			Type: txType, WarehouseCode: "WH1", LocationCode: "L1",
			Lines: []LineInput{{Code: "SKU-1", Quantity: qty, Unit: unit}},
		})
		require.NoError(t, err)
	}
	post(TransactionInbound, 2, UnitOuterPack)  // +120
	post(TransactionOutbound, 3, UnitInnerPack) // -36
	post(TransactionInbound, 10, UnitEach)      // +10
	post(TransactionOutbound, 50, UnitEach)     // -50

	require.InDelta(t, 44, repo.balances[balanceKey(100, 1, 11)].Qty, 1e-9)
}

func TestConcurrentOutboundExactlyOneFails(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{
		Type: TransactionInbound, WarehouseCode: "WH1", LocationCode: "L1",
		Lines: []LineInput{{Code: "SKU-1", Quantity: 120, Unit: UnitEach}},
	})
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, CreateInput{
				Type: TransactionOutbound, WarehouseCode: "WH1", LocationCode: "L1",
				Lines: []LineInput{{Code: "SKU-1", Quantity: 80, Unit: UnitEach}},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var failures int
	for err := range errs {
		if err != nil {
			var stockErr *shared.InsufficientStockError
			require.True(t, errors.As(err, &stockErr))
			failures++
		}
	}
	require.Equal(t, 1, failures)
	require.InDelta(t, 40, repo.balances[balanceKey(100, 1, 11)].Qty, 1e-9)
}
