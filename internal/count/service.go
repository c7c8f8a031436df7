package count

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warelane/warelane/internal/masterdata"
	"github.com/warelane/warelane/internal/scan"
	"github.com/warelane/warelane/internal/shared"
	"github.com/warelane/warelane/internal/stock"
)

// ResolverPort classifies scanned codes during a count.
type ResolverPort interface {
	Resolve(ctx context.Context, code, warehouseCode string) (scan.Result, error)
}

// StockPort reads the ledger for the expected snapshot. Counting only ever
// reads the ledger.
type StockPort interface {
	OnHand(ctx context.Context, filter stock.OnHandFilter) ([]stock.OnHandRow, error)
}

// MasterDataPort resolves warehouses and locations.
type MasterDataPort interface {
	GetWarehouseByCode(ctx context.Context, code string) (masterdata.Warehouse, error)
	GetLocationByCode(ctx context.Context, code string, warehouseID int64) (masterdata.Location, error)
}

// ReportStore persists finalized reports.
type ReportStore interface {
	InsertReport(ctx context.Context, report Report) error
	GetReport(ctx context.Context, id string) (Report, error)
	ListReports(ctx context.Context, warehouseID int64) ([]Report, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type locationCount struct {
	location masterdata.Location
	state    LocationState
	items    map[int64]*Item
	order    []int64
	scanned  map[string]struct{}
}

type session struct {
	id        string
	warehouse masterdata.Warehouse
	status    SessionStatus
	startedBy string
	startedAt time.Time
	locations map[int64]*locationCount
	current   *locationCount
	saved     []LocationResult
}

// Service runs cycle count sessions. Open sessions live in memory; only a
// finalized report is written to storage, because an abandoned count must
// leave no trace in either the ledger or the report history.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*session

	resolver   ResolverPort
	stock      StockPort
	masterdata MasterDataPort
	store      ReportStore
	audit      AuditPort
}

// NewService builds Service. Audit is optional.
func NewService(resolver ResolverPort, stockSvc StockPort, md MasterDataPort, store ReportStore, audit AuditPort) *Service {
	return &Service{
		sessions:   make(map[string]*session),
		resolver:   resolver,
		stock:      stockSvc,
		masterdata: md,
		store:      store,
		audit:      audit,
	}
}

// StartSession opens a count session for one warehouse.
func (s *Service) StartSession(ctx context.Context, warehouseCode, actor string) (Report, error) {
	warehouse, err := s.masterdata.GetWarehouseByCode(ctx, warehouseCode)
	if err != nil {
		return Report{}, err
	}
	sess := &session{
		id:        uuid.NewString(),
		warehouse: warehouse,
		status:    SessionOpen,
		startedBy: actor,
		startedAt: time.Now().UTC(),
		locations: make(map[int64]*locationCount),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	report := sess.report()
	s.mu.Unlock()
	return report, nil
}

// StartLocation snapshots the ledger at one location as the expected set and
// moves the location to COUNTING. Only one location counts at a time within a
// session; a SAVED location cannot be reopened.
func (s *Service) StartLocation(ctx context.Context, sessionID, locationCode string) (LocationResult, error) {
	sess, err := s.openSession(sessionID)
	if err != nil {
		return LocationResult{}, err
	}
	location, err := s.masterdata.GetLocationByCode(ctx, locationCode, sess.warehouse.ID)
	if err != nil {
		return LocationResult{}, err
	}
	rows, err := s.stock.OnHand(ctx, stock.OnHandFilter{
		WarehouseID: sess.warehouse.ID,
		LocationID:  location.ID,
	})
	if err != nil {
		return LocationResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := sess.locations[location.ID]; ok && existing.state == StateSaved {
		return LocationResult{}, &shared.ConflictError{
			Entity: "count location",
			Code:   locationCode,
			State:  string(StateSaved),
			Reason: "location already counted in this session",
		}
	}
	if sess.current != nil && sess.current.location.ID != location.ID {
		return LocationResult{}, &shared.ConflictError{
			Entity: "count location",
			Code:   sess.current.location.Code,
			State:  string(StateCounting),
			Reason: "another location is still being counted",
		}
	}

	lc := &locationCount{
		location: location,
		state:    StateCounting,
		items:    make(map[int64]*Item, len(rows)),
		order:    make([]int64, 0, len(rows)),
		scanned:  make(map[string]struct{}),
	}
	for _, row := range rows {
		lc.items[row.ProductID] = &Item{
			ProductID: row.ProductID,
			SKU:       row.SKU,
			Name:      row.Name,
			Expected:  row.Qty,
			Variance:  -row.Qty,
		}
		lc.order = append(lc.order, row.ProductID)
	}
	sess.locations[location.ID] = lc
	sess.current = lc
	return lc.result(time.Time{}), nil
}

// ScanItem counts one physical unit at the named location, which must be the
// session's COUNTING location. A serial barcode identifies one specific unit
// and may only be counted once per location; a shared product barcode counts
// one unit per scan and may repeat.
func (s *Service) ScanItem(ctx context.Context, sessionID, locationCode, code string) (Item, error) {
	sess, err := s.openSession(sessionID)
	if err != nil {
		return Item{}, err
	}
	result, err := s.resolver.Resolve(ctx, code, sess.warehouse.Code)
	if err != nil {
		return Item{}, err
	}
	if result.Type != scan.ResultProduct {
		return Item{}, shared.NewNotFound("product", code)
	}
	product := result.Product

	s.mu.Lock()
	defer s.mu.Unlock()
	lc := sess.current
	if lc == nil || lc.state != StateCounting {
		return Item{}, ErrNoActiveLocation
	}
	if lc.location.Code != locationCode {
		return Item{}, &shared.ConflictError{
			Entity: "count location",
			Code:   locationCode,
			State:  string(StateCounting),
			Reason: "location is not being counted",
		}
	}
	if result.Serial != nil || result.UnregisteredSerial {
		if _, dup := lc.scanned[code]; dup {
			return Item{}, &shared.ConflictError{
				Entity: "count item",
				Code:   code,
				State:  string(StateCounting),
				Reason: "barcode already counted at this location",
			}
		}
		lc.scanned[code] = struct{}{}
	}

	item, ok := lc.items[product.ID]
	if !ok {
		item = &Item{
			ProductID:  product.ID,
			SKU:        product.SKU,
			Name:       product.Name,
			Unexpected: true,
		}
		lc.items[product.ID] = item
		lc.order = append(lc.order, product.ID)
	}
	item.Counted++
	item.Variance = item.Counted - item.Expected
	return *item, nil
}

// SaveLocation freezes the COUNTING location into the session.
func (s *Service) SaveLocation(ctx context.Context, sessionID, locationCode string) (LocationResult, error) {
	sess, err := s.openSession(sessionID)
	if err != nil {
		return LocationResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lc := sess.current
	if lc == nil || lc.location.Code != locationCode {
		return LocationResult{}, &shared.ConflictError{
			Entity: "count location",
			Code:   locationCode,
			State:  string(StateNotStarted),
			Reason: "location is not being counted",
		}
	}
	lc.state = StateSaved
	result := lc.result(time.Now().UTC())
	sess.saved = append(sess.saved, result)
	sess.current = nil
	return result, nil
}

// Finalize persists the session's saved locations as a Report and closes the
// session. A location still mid-count blocks finalization.
func (s *Service) Finalize(ctx context.Context, sessionID, actor string) (Report, error) {
	sess, err := s.openSession(sessionID)
	if err != nil {
		return Report{}, err
	}

	s.mu.Lock()
	if sess.current != nil {
		code := sess.current.location.Code
		s.mu.Unlock()
		return Report{}, &shared.ConflictError{
			Entity: "count location",
			Code:   code,
			State:  string(StateCounting),
			Reason: "save the location before finalizing",
		}
	}
	now := time.Now().UTC()
	sess.status = SessionFinalized
	report := sess.report()
	report.FinalizedBy = actor
	report.FinalizedAt = &now
	s.mu.Unlock()

	if err := s.store.InsertReport(ctx, report); err != nil {
		s.mu.Lock()
		sess.status = SessionOpen
		s.mu.Unlock()
		return Report{}, err
	}

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   "count:finalize",
			Entity:   "count_report",
			EntityID: report.ID,
			Meta: map[string]any{
				"warehouse_id": report.WarehouseID,
				"locations":    len(report.Locations),
				"variance":     report.TotalVariance,
			},
		})
	}
	return report, nil
}

// Get returns a session in flight or a persisted report.
func (s *Service) Get(ctx context.Context, sessionID string) (Report, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[sessionID]; ok {
		report := sess.report()
		s.mu.Unlock()
		return report, nil
	}
	s.mu.Unlock()
	return s.store.GetReport(ctx, sessionID)
}

// List returns persisted reports for one warehouse.
func (s *Service) List(ctx context.Context, warehouseID int64) ([]Report, error) {
	if warehouseID == 0 {
		return nil, fmt.Errorf("count: warehouse required")
	}
	return s.store.ListReports(ctx, warehouseID)
}

func (s *Service) openSession(sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.status != SessionOpen {
		return nil, &shared.ConflictError{
			Entity: "count session",
			Code:   sessionID,
			State:  string(sess.status),
			Reason: "session is closed",
		}
	}
	return sess, nil
}

// result freezes the location's items in snapshot order.
func (lc *locationCount) result(savedAt time.Time) LocationResult {
	result := LocationResult{
		LocationID:   lc.location.ID,
		LocationCode: lc.location.Code,
		Items:        make([]Item, 0, len(lc.order)),
		SavedAt:      savedAt,
	}
	for _, productID := range lc.order {
		item := *lc.items[productID]
		result.Items = append(result.Items, item)
		result.TotalExpected += item.Expected
		result.TotalCounted += item.Counted
		result.TotalVariance += item.Variance
	}
	return result
}

// report snapshots the session's saved locations. Callers hold s.mu.
func (sess *session) report() Report {
	report := Report{
		ID:            sess.id,
		WarehouseID:   sess.warehouse.ID,
		WarehouseCode: sess.warehouse.Code,
		Status:        sess.status,
		StartedBy:     sess.startedBy,
		StartedAt:     sess.startedAt,
		Locations:     append([]LocationResult(nil), sess.saved...),
	}
	for _, location := range report.Locations {
		report.TotalExpected += location.TotalExpected
		report.TotalCounted += location.TotalCounted
		report.TotalVariance += location.TotalVariance
	}
	return report
}
