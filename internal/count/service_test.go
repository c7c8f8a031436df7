package count

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warelane/warelane/internal/masterdata"
	"github.com/warelane/warelane/internal/scan"
	"github.com/warelane/warelane/internal/shared"
	"github.com/warelane/warelane/internal/stock"
)

type fakeResolver struct {
	results map[string]scan.Result
}

func (f *fakeResolver) Resolve(ctx context.Context, code, warehouseCode string) (scan.Result, error) {
	if r, ok := f.results[code]; ok {
		r.Code = code
		return r, nil
	}
	return scan.Result{Type: scan.ResultNotFound, Code: code}, nil
}

type fakeStock struct {
	rows []stock.OnHandRow
}

func (f *fakeStock) OnHand(ctx context.Context, filter stock.OnHandFilter) ([]stock.OnHandRow, error) {
	return f.rows, nil
}

type fakeMasterData struct{}

func (fakeMasterData) GetWarehouseByCode(ctx context.Context, code string) (masterdata.Warehouse, error) {
	if code != "WH1" {
		return masterdata.Warehouse{}, shared.NewNotFound("warehouse", code)
	}
	return masterdata.Warehouse{ID: 1, Code: "WH1"}, nil
}

func (fakeMasterData) GetLocationByCode(ctx context.Context, code string, warehouseID int64) (masterdata.Location, error) {
	if code != "L1" {
		return masterdata.Location{}, shared.NewNotFound("location", code)
	}
	return masterdata.Location{ID: 11, WarehouseID: warehouseID, Code: "L1"}, nil
}

type memoryStore struct {
	reports map[string]Report
}

func newMemoryStore() *memoryStore {
	return &memoryStore{reports: make(map[string]Report)}
}

func (s *memoryStore) InsertReport(ctx context.Context, report Report) error {
	s.reports[report.ID] = report
	return nil
}

func (s *memoryStore) GetReport(ctx context.Context, id string) (Report, error) {
	if r, ok := s.reports[id]; ok {
		return r, nil
	}
	return Report{}, shared.NewNotFound("count report", id)
}

func (s *memoryStore) ListReports(ctx context.Context, warehouseID int64) ([]Report, error) {
	var out []Report
	for _, r := range s.reports {
		if r.WarehouseID == warehouseID {
			out = append(out, r)
		}
	}
	return out, nil
}

func product(id int64, sku string) *masterdata.Product {
	return &masterdata.Product{ID: id, SKU: sku, Name: sku}
}

func newTestCount(store *memoryStore) *Service {
	resolver := &fakeResolver{results: map[string]scan.Result{
		"880001": {Type: scan.ResultProduct, Product: product(100, "SKU-1")},
		"880002": {Type: scan.ResultProduct, Product: product(101, "SKU-2")},
		"SKU-1-000007": {
			Type:    scan.ResultProduct,
			Product: product(100, "SKU-1"),
			Serial:  &masterdata.Serial{ID: 7, ProductID: 100, Code: "SKU-1-000007"},
		},
	}}
	ledger := &fakeStock{rows: []stock.OnHandRow{{ProductID: 100, SKU: "SKU-1", Name: "SKU-1", Qty: 120}}}
	return NewService(resolver, ledger, fakeMasterData{}, store, nil)
}

func startCounting(t *testing.T, svc *Service) string {
	t.Helper()
	ctx := context.Background()
	report, err := svc.StartSession(ctx, "WH1", "alice")
	require.NoError(t, err)
	result, err := svc.StartLocation(ctx, report.ID, "L1")
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.InDelta(t, 120, result.Items[0].Expected, 1e-9)
	return report.ID
}

func TestCountVariance(t *testing.T) {
	svc := newTestCount(newMemoryStore())
	ctx := context.Background()
	sessionID := startCounting(t, svc)

	// 118 physical units of an expected 120.
	var last Item
	for i := 0; i < 118; i++ {
		var err error
		last, err = svc.ScanItem(ctx, sessionID, "L1", "880001")
		require.NoError(t, err)
	}
	require.InDelta(t, 118, last.Counted, 1e-9)
	require.InDelta(t, -2, last.Variance, 1e-9)

	// Two units of a product the snapshot never expected.
	for i := 0; i < 2; i++ {
		var err error
		last, err = svc.ScanItem(ctx, sessionID, "L1", "880002")
		require.NoError(t, err)
	}
	require.True(t, last.Unexpected)
	require.InDelta(t, 2, last.Variance, 1e-9)

	result, err := svc.SaveLocation(ctx, sessionID, "L1")
	require.NoError(t, err)
	require.InDelta(t, 120, result.TotalExpected, 1e-9)
	require.InDelta(t, 120, result.TotalCounted, 1e-9)
	require.InDelta(t, 0, result.TotalVariance, 1e-9)
	require.Len(t, result.Items, 2)
}

func TestDuplicateSerialScanRejected(t *testing.T) {
	svc := newTestCount(newMemoryStore())
	ctx := context.Background()
	sessionID := startCounting(t, svc)

	item, err := svc.ScanItem(ctx, sessionID, "L1", "SKU-1-000007")
	require.NoError(t, err)
	require.InDelta(t, 1, item.Counted, 1e-9)

	_, err = svc.ScanItem(ctx, sessionID, "L1", "SKU-1-000007")
	require.ErrorIs(t, err, shared.ErrConflict)

	// The shared product barcode still counts; only the literal serial is
	// frozen.
	item, err = svc.ScanItem(ctx, sessionID, "L1", "880001")
	require.NoError(t, err)
	require.InDelta(t, 2, item.Counted, 1e-9)
}

func TestScanRequiresCountingLocation(t *testing.T) {
	svc := newTestCount(newMemoryStore())
	ctx := context.Background()
	report, err := svc.StartSession(ctx, "WH1", "alice")
	require.NoError(t, err)

	_, err = svc.ScanItem(ctx, report.ID, "L1", "880001")
	require.ErrorIs(t, err, ErrNoActiveLocation)
}

func TestScanAtWrongLocationRejected(t *testing.T) {
	svc := newTestCount(newMemoryStore())
	ctx := context.Background()
	sessionID := startCounting(t, svc)

	_, err := svc.ScanItem(ctx, sessionID, "L2", "880001")
	require.ErrorIs(t, err, shared.ErrConflict)

	// The counting location is untouched and keeps accepting scans.
	item, err := svc.ScanItem(ctx, sessionID, "L1", "880001")
	require.NoError(t, err)
	require.InDelta(t, 1, item.Counted, 1e-9)
}

func TestScanUnknownCode(t *testing.T) {
	svc := newTestCount(newMemoryStore())
	ctx := context.Background()
	sessionID := startCounting(t, svc)

	_, err := svc.ScanItem(ctx, sessionID, "L1", "garbage")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSavedLocationCannotBeReopened(t *testing.T) {
	svc := newTestCount(newMemoryStore())
	ctx := context.Background()
	sessionID := startCounting(t, svc)

	_, err := svc.SaveLocation(ctx, sessionID, "L1")
	require.NoError(t, err)

	_, err = svc.StartLocation(ctx, sessionID, "L1")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestFinalizePersistsReport(t *testing.T) {
	store := newMemoryStore()
	svc := newTestCount(store)
	ctx := context.Background()
	sessionID := startCounting(t, svc)

	_, err := svc.ScanItem(ctx, sessionID, "L1", "880001")
	require.NoError(t, err)
	_, err = svc.SaveLocation(ctx, sessionID, "L1")
	require.NoError(t, err)

	report, err := svc.Finalize(ctx, sessionID, "boss")
	require.NoError(t, err)
	require.Equal(t, SessionFinalized, report.Status)
	require.Equal(t, "boss", report.FinalizedBy)
	require.NotNil(t, report.FinalizedAt)
	require.InDelta(t, -119, report.TotalVariance, 1e-9)

	// The session is gone from memory; reads now come from the store.
	loaded, err := svc.Get(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, report.ID, loaded.ID)

	_, err = svc.Finalize(ctx, sessionID, "boss")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFinalizeBlockedWhileCounting(t *testing.T) {
	svc := newTestCount(newMemoryStore())
	ctx := context.Background()
	sessionID := startCounting(t, svc)

	_, err := svc.Finalize(ctx, sessionID, "boss")
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestCountNeverTouchesLedger(t *testing.T) {
	// The stock port is read-only by construction; this pins the save and
	// finalize flow to the store, not the ledger.
	store := newMemoryStore()
	svc := newTestCount(store)
	ctx := context.Background()
	sessionID := startCounting(t, svc)

	_, err := svc.SaveLocation(ctx, sessionID, "L1")
	require.NoError(t, err)
	report, err := svc.Finalize(ctx, sessionID, "boss")
	require.NoError(t, err)
	require.Contains(t, store.reports, report.ID)
}
