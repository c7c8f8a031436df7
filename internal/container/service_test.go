package container

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warelane/warelane/internal/masterdata"
	"github.com/warelane/warelane/internal/shared"
	"github.com/warelane/warelane/internal/stock"
)

type memoryStore struct {
	mu        sync.Mutex
	seqs      map[string]int64
	byBarcode map[string]*Container
	nextID    int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{seqs: make(map[string]int64), byBarcode: make(map[string]*Container)}
}

func (s *memoryStore) NextSequence(ctx context.Context, prefix string) (int64, error) {
	s.seqs[prefix]++
	return s.seqs[prefix], nil
}

func (s *memoryStore) InsertContainer(ctx context.Context, c Container) (int64, error) {
	s.nextID++
	c.ID = s.nextID
	s.byBarcode[c.Barcode] = &c
	return c.ID, nil
}

func (s *memoryStore) InsertContents(ctx context.Context, containerID int64, contents []ContentLine) error {
	for _, c := range s.byBarcode {
		if c.ID == containerID {
			c.Contents = append(c.Contents, contents...)
		}
	}
	return nil
}

func (s *memoryStore) GetByBarcodeForUpdate(ctx context.Context, barcode string) (Container, error) {
	if c, ok := s.byBarcode[barcode]; ok {
		return *c, nil
	}
	return Container{}, shared.NewNotFound("container", barcode)
}

func (s *memoryStore) MarkOpened(ctx context.Context, containerID int64, actor string, at time.Time) error {
	for _, c := range s.byBarcode {
		if c.ID == containerID {
			if c.Status != StatusActive {
				return shared.ErrConflict
			}
			c.Status = StatusOpened
			c.OpenedBy = actor
			c.OpenedAt = &at
			return nil
		}
	}
	return shared.NewNotFound("container", fmt.Sprintf("%d", containerID))
}

func (s *memoryStore) GetByBarcode(ctx context.Context, barcode string) (Container, error) {
	return s.GetByBarcodeForUpdate(ctx, barcode)
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxPorts) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, TxPorts{Containers: s, Stock: nil})
}

type fakeStock struct {
	posted []stock.CreateInput
	err    error
	nextID int64
}

func (f *fakeStock) CreateInTx(ctx context.Context, tx stock.TxRepository, input stock.CreateInput) (stock.Transaction, error) {
	if f.err != nil {
		return stock.Transaction{}, f.err
	}
	f.posted = append(f.posted, input)
	f.nextID++
	return stock.Transaction{ID: f.nextID, Type: input.Type, Reference: input.Reference}, nil
}

type fakeMasterData struct{}

func (fakeMasterData) GetWarehouseByCode(ctx context.Context, code string) (masterdata.Warehouse, error) {
	if code != "WH1" {
		return masterdata.Warehouse{}, shared.NewNotFound("warehouse", code)
	}
	return masterdata.Warehouse{ID: 1, Code: "WH1"}, nil
}

func (fakeMasterData) GetWarehouseByID(ctx context.Context, id int64) (masterdata.Warehouse, error) {
	if id != 1 {
		return masterdata.Warehouse{}, shared.NewNotFound("warehouse", fmt.Sprintf("%d", id))
	}
	return masterdata.Warehouse{ID: 1, Code: "WH1"}, nil
}

func (fakeMasterData) GetProductsByCodes(ctx context.Context, codes []string) ([]masterdata.Product, error) {
	known := map[string]masterdata.Product{
		"SKU-1": {ID: 100, SKU: "SKU-1", UnitsPerInnerPack: 12, InnerPacksPerOuterPack: 5},
		"SKU-2": {ID: 101, SKU: "SKU-2"},
	}
	var out []masterdata.Product
	for _, code := range codes {
		if p, ok := known[code]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTestService(store *memoryStore, stockSvc StockPort) *Service {
	return NewService(store, store, fakeMasterData{}, stockSvc, nil)
}

func TestCreateAllocatesSequentialBarcodes(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &fakeStock{})
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{
		Type: TypeBox, WarehouseCode: "WH1", Actor: "alice",
		Contents: []ContentInput{{SKU: "SKU-1", Quantity: 12}},
	})
	require.NoError(t, err)
	require.Equal(t, "BOX-000001", first.Barcode)
	require.Equal(t, StatusActive, first.Status)
	require.True(t, BarcodePattern.MatchString(first.Barcode))

	second, err := svc.Create(ctx, CreateInput{
		Type: TypeBox, WarehouseCode: "WH1", Actor: "alice",
		Contents: []ContentInput{{SKU: "SKU-2", Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, "BOX-000002", second.Barcode)

	pallet, err := svc.Create(ctx, CreateInput{
		Type: TypePallet, WarehouseCode: "WH1", Actor: "alice",
		Contents: []ContentInput{{SKU: "SKU-1", Quantity: 60}},
	})
	require.NoError(t, err)
	// Prefixes count independently.
	require.Equal(t, "PLT-000001", pallet.Barcode)
}

func TestCreateRejectsEmptyAndUnknownContents(t *testing.T) {
	svc := newTestService(newMemoryStore(), &fakeStock{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Type: TypeBox, WarehouseCode: "WH1"})
	require.ErrorIs(t, err, ErrEmptyContents)

	_, err = svc.Create(ctx, CreateInput{
		Type: TypeBox, WarehouseCode: "WH1",
		Contents: []ContentInput{{SKU: "GHOST", Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestOpenPostsInboundAndFlipsState(t *testing.T) {
	store := newMemoryStore()
	stockSvc := &fakeStock{}
	svc := newTestService(store, stockSvc)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Type: TypeBox, WarehouseCode: "WH1", Actor: "alice",
		Contents: []ContentInput{{SKU: "SKU-1", Quantity: 12}},
	})
	require.NoError(t, err)

	opened, movement, err := svc.Open(ctx, created.Barcode, "bob", "")
	require.NoError(t, err)
	require.Equal(t, StatusOpened, opened.Status)
	require.Equal(t, "bob", opened.OpenedBy)
	require.NotNil(t, opened.OpenedAt)
	require.Equal(t, stock.TransactionInbound, movement.Type)

	require.Len(t, stockSvc.posted, 1)
	input := stockSvc.posted[0]
	require.Equal(t, "WH1", input.WarehouseCode)
	require.Equal(t, fmt.Sprintf("OPEN-%s", created.Barcode), input.Reference)
	require.Len(t, input.Lines, 1)
	require.Equal(t, stock.LineInput{Code: "SKU-1", Quantity: 12, Unit: stock.UnitEach}, input.Lines[0])
}

func TestOpenTwiceFails(t *testing.T) {
	store := newMemoryStore()
	stockSvc := &fakeStock{}
	svc := newTestService(store, stockSvc)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Type: TypeBox, WarehouseCode: "WH1", Actor: "alice",
		Contents: []ContentInput{{SKU: "SKU-1", Quantity: 12}},
	})
	require.NoError(t, err)

	_, _, err = svc.Open(ctx, created.Barcode, "bob", "")
	require.NoError(t, err)

	_, _, err = svc.Open(ctx, created.Barcode, "bob", "")
	require.ErrorIs(t, err, shared.ErrConflict)
	// The second open never reaches the stock engine.
	require.Len(t, stockSvc.posted, 1)
}

func TestOpenForwardsLocationHint(t *testing.T) {
	store := newMemoryStore()
	stockSvc := &fakeStock{}
	svc := newTestService(store, stockSvc)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Type: TypePallet, WarehouseCode: "WH1", Actor: "alice",
		Contents: []ContentInput{{SKU: "SKU-1", Quantity: 60}},
	})
	require.NoError(t, err)

	_, _, err = svc.Open(ctx, created.Barcode, "bob", "L7")
	require.NoError(t, err)
	require.Equal(t, "L7", stockSvc.posted[0].LocationCode)
}

func TestOpenUnknownBarcode(t *testing.T) {
	svc := newTestService(newMemoryStore(), &fakeStock{})
	_, _, err := svc.Open(context.Background(), "BOX-999999", "bob", "")
	require.ErrorIs(t, err, shared.ErrNotFound)
}
