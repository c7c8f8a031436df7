package stock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/warelane/warelane/internal/masterdata"
	"github.com/warelane/warelane/internal/shared"
)

// qtyEpsilon absorbs float drift when comparing ledger quantities to zero.
const qtyEpsilon = 1e-9

// RepositoryPort abstracts repository usage for the engine.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListOnHand(ctx context.Context, filter OnHandFilter) ([]OnHandRow, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]MovementEntry, error)
}

// MasterDataPort provides the lookups the engine consumes from master data:
// warehouses, locations and batch product resolution.
type MasterDataPort interface {
	GetWarehouseByCode(ctx context.Context, code string) (masterdata.Warehouse, error)
	GetLocationByCode(ctx context.Context, code string, warehouseID int64) (masterdata.Location, error)
	GetLocationByID(ctx context.Context, id int64) (masterdata.Location, error)
	GetProductsByCodes(ctx context.Context, codes []string) ([]masterdata.Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards transaction posting against double submission.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MetricsPort counts engine outcomes.
type MetricsPort interface {
	ObserveTransaction(txType, outcome string)
	ObserveStockRejection()
}

// ServiceConfig tunes engine behavior.
type ServiceConfig struct {
	// AllowNegative disables the insufficient-stock checks, letting ledger
	// rows go below zero. Meant for data-migration environments only.
	AllowNegative bool
}

// Service is the inventory transaction engine: it turns resolved scan input
// into atomic, unit-normalized ledger movements.
type Service struct {
	repo        RepositoryPort
	masterdata  MasterDataPort
	audit       AuditPort
	idempotency IdempotencyPort
	metrics     MetricsPort
	cfg         ServiceConfig
}

// NewService builds Service. Audit, idempotency and metrics are optional.
func NewService(repo RepositoryPort, md MasterDataPort, audit AuditPort, idem IdempotencyPort, metrics MetricsPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, masterdata: md, audit: audit, idempotency: idem, metrics: metrics, cfg: cfg}
}

type resolvedLine struct {
	product masterdata.Product
	qty     float64
	unit    Unit
	base    float64
}

// Create posts one INBOUND or OUTBOUND transaction spanning all of its lines
// as a single unit of work. Reversals are created through Undo only.
func (s *Service) Create(ctx context.Context, input CreateInput) (Transaction, error) {
	header, resolved, sign, err := s.prepare(ctx, input)
	if err != nil {
		s.observe(input.Type, "rejected")
		return Transaction{}, err
	}
	idemKey := ""
	if input.Reference != "" {
		idemKey = fmt.Sprintf("stock:%s:%s", input.Type, input.Reference)
	}
	return s.post(ctx, header, resolved, sign, idemKey)
}

// CreateInTx posts a transaction inside an externally managed unit of work,
// used when a caller needs the movement and its own writes to commit or abort
// together (container opening). No idempotency key is taken; the caller's own
// state machine guards duplicates.
func (s *Service) CreateInTx(ctx context.Context, tx TxRepository, input CreateInput) (Transaction, error) {
	header, resolved, sign, err := s.prepare(ctx, input)
	if err != nil {
		s.observe(input.Type, "rejected")
		return Transaction{}, err
	}
	header.PostedAt = time.Now().UTC()
	committed, err := s.postInTx(ctx, tx, header, resolved, sign)
	if err != nil {
		var stockErr *shared.InsufficientStockError
		if errors.As(err, &stockErr) && s.metrics != nil {
			s.metrics.ObserveStockRejection()
		}
		s.observe(header.Type, "rejected")
		return Transaction{}, err
	}
	s.observe(header.Type, "committed")
	return committed, nil
}

// prepare validates the input and resolves warehouse, effective location and
// every product, returning the unposted header and the signed direction.
func (s *Service) prepare(ctx context.Context, input CreateInput) (Transaction, []resolvedLine, float64, error) {
	if input.Type != TransactionInbound && input.Type != TransactionOutbound {
		return Transaction{}, nil, 0, fmt.Errorf("%w: %s", ErrInvalidType, input.Type)
	}
	if len(input.Lines) == 0 {
		return Transaction{}, nil, 0, ErrEmptyLines
	}
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return Transaction{}, nil, 0, fmt.Errorf("%w: %s", ErrInvalidQuantity, line.Code)
		}
		if _, err := ParseUnit(string(line.Unit)); err != nil {
			return Transaction{}, nil, 0, err
		}
	}

	warehouse, err := s.masterdata.GetWarehouseByCode(ctx, input.WarehouseCode)
	if err != nil {
		return Transaction{}, nil, 0, err
	}
	locationID, err := s.resolveEffectiveLocation(ctx, warehouse, input.LocationCode)
	if err != nil {
		return Transaction{}, nil, 0, err
	}
	resolved, err := s.resolveLines(ctx, input.Lines)
	if err != nil {
		return Transaction{}, nil, 0, err
	}

	sign := 1.0
	if input.Type == TransactionOutbound {
		sign = -1.0
	}
	header := Transaction{
		Type:        input.Type,
		WarehouseID: warehouse.ID,
		LocationID:  locationID,
		Actor:       input.Actor,
		Reference:   input.Reference,
	}
	return header, resolved, sign, nil
}

// Undo creates a REVERSAL transaction with the original's lines inverted. The
// original is never mutated; base quantities are recomputed from the current
// pack ratios so a ratio correction between post and undo still nets out in
// requested units.
func (s *Service) Undo(ctx context.Context, transactionID int64, actor string) (Transaction, error) {
	original, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return Transaction{}, err
	}
	originalSign, err := s.effectiveSign(ctx, original)
	if err != nil {
		return Transaction{}, err
	}

	inputs := make([]LineInput, 0, len(original.Lines))
	for _, line := range original.Lines {
		inputs = append(inputs, LineInput{Code: line.ProductSKU, Quantity: line.RequestedQty, Unit: line.RequestedUnit})
	}
	if len(inputs) == 0 {
		return Transaction{}, fmt.Errorf("%w: transaction %d has no lines", ErrEmptyLines, transactionID)
	}
	resolved, err := s.resolveLines(ctx, inputs)
	if err != nil {
		return Transaction{}, err
	}

	header := Transaction{
		Type:         TransactionReversal,
		WarehouseID:  original.WarehouseID,
		LocationID:   original.LocationID,
		Actor:        actor,
		Reference:    fmt.Sprintf("UNDO-%d", original.ID),
		ReversalOfID: original.ID,
	}
	return s.post(ctx, header, resolved, -originalSign, "")
}

// OnHand lists current ledger rows.
func (s *Service) OnHand(ctx context.Context, filter OnHandFilter) ([]OnHandRow, error) {
	if filter.WarehouseID == 0 {
		return nil, errors.New("stock: warehouse required")
	}
	return s.repo.ListOnHand(ctx, filter)
}

// Movements lists stock card entries.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]MovementEntry, error) {
	if filter.WarehouseID == 0 {
		return nil, errors.New("stock: warehouse required")
	}
	return s.repo.ListMovements(ctx, filter)
}

// Get loads one transaction with lines.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// resolveEffectiveLocation maps an optional requested location code onto the
// location actually used: the named location when it exists in the warehouse,
// otherwise the warehouse's designated default, otherwise no location.
func (s *Service) resolveEffectiveLocation(ctx context.Context, warehouse masterdata.Warehouse, locationCode string) (int64, error) {
	if locationCode != "" {
		location, err := s.masterdata.GetLocationByCode(ctx, locationCode, warehouse.ID)
		if err == nil {
			return location.ID, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return 0, err
		}
	}
	if warehouse.DefaultLocationID != 0 {
		return warehouse.DefaultLocationID, nil
	}
	return 0, nil
}

// resolveLines batch-resolves every line's product in one lookup and converts
// quantities to base units. Any unresolved code aborts the whole operation.
func (s *Service) resolveLines(ctx context.Context, lines []LineInput) ([]resolvedLine, error) {
	codes := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.Code]; ok {
			continue
		}
		seen[line.Code] = struct{}{}
		codes = append(codes, line.Code)
	}
	products, err := s.masterdata.GetProductsByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	set := masterdata.NewProductSet(products)

	resolved := make([]resolvedLine, 0, len(lines))
	for _, line := range lines {
		product, ok := set.Resolve(line.Code)
		if !ok {
			return nil, shared.NewNotFound("product", line.Code)
		}
		resolved = append(resolved, resolvedLine{
			product: product,
			qty:     line.Quantity,
			unit:    line.Unit,
			base:    ToBaseUnits(line.Quantity, line.Unit, product),
		})
	}
	return resolved, nil
}

// post commits the header, every line, and every ledger delta as one atomic
// unit of work. sign is +1 for movements that add stock and -1 for movements
// that remove it.
func (s *Service) post(ctx context.Context, header Transaction, resolved []resolvedLine, sign float64, idemKey string) (Transaction, error) {
	insertedKey := false
	if idemKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "stock"); err != nil {
			s.observe(header.Type, "rejected")
			return Transaction{}, err
		}
		insertedKey = true
	}

	header.PostedAt = time.Now().UTC()
	var committed Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		committed, err = s.postInTx(ctx, tx, header, resolved, sign)
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		var stockErr *shared.InsufficientStockError
		if errors.As(err, &stockErr) && s.metrics != nil {
			s.metrics.ObserveStockRejection()
		}
		s.observe(header.Type, "rejected")
		return Transaction{}, err
	}

	s.observe(header.Type, "committed")
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    header.Actor,
			Action:   fmt.Sprintf("stock:%s", header.Type),
			Entity:   "stock_transaction",
			EntityID: intToString(committed.ID),
			Meta: map[string]any{
				"warehouse_id": header.WarehouseID,
				"location_id":  header.LocationID,
				"lines":        len(resolved),
				"reference":    header.Reference,
			},
		})
	}
	return committed, nil
}

// postInTx writes the header, the lines and the ledger deltas through the
// given TxRepository. The caller owns commit and rollback.
func (s *Service) postInTx(ctx context.Context, tx TxRepository, header Transaction, resolved []resolvedLine, sign float64) (Transaction, error) {
	if sign < 0 && !s.cfg.AllowNegative {
		if err := s.preflightAvailability(ctx, tx, header, resolved); err != nil {
			return Transaction{}, err
		}
	}

	txID, err := tx.InsertTransaction(ctx, header)
	if err != nil {
		return Transaction{}, err
	}
	lines := make([]TransactionLine, 0, len(resolved))
	for _, line := range resolved {
		lines = append(lines, TransactionLine{
			TransactionID: txID,
			ProductID:     line.product.ID,
			ProductSKU:    line.product.SKU,
			RequestedQty:  line.qty,
			RequestedUnit: line.unit,
			BaseQty:       line.base,
		})
	}
	if err := tx.InsertLines(ctx, txID, lines); err != nil {
		return Transaction{}, err
	}

	// Row locks are acquired in SKU order so two transactions touching an
	// overlapping product set can never deadlock each other.
	order := make([]int, len(resolved))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return resolved[order[a]].product.SKU < resolved[order[b]].product.SKU
	})
	for _, idx := range order {
		line := resolved[idx]
		if _, err := s.applyDelta(ctx, tx, line.product, header.WarehouseID, header.LocationID, sign*line.base); err != nil {
			return Transaction{}, err
		}
	}

	committed := header
	committed.ID = txID
	committed.Lines = lines
	return committed, nil
}

// preflightAvailability batch-reads current quantities for every product the
// transaction touches and fails fast before any write. The authoritative check
// still happens per row inside applyDelta under the lock; this exists to give
// the operator a clear message without burning a transaction id.
func (s *Service) preflightAvailability(ctx context.Context, tx TxRepository, header Transaction, resolved []resolvedLine) error {
	required := make(map[int64]float64, len(resolved))
	skuByID := make(map[int64]string, len(resolved))
	ids := make([]int64, 0, len(resolved))
	for _, line := range resolved {
		if _, ok := required[line.product.ID]; !ok {
			ids = append(ids, line.product.ID)
			skuByID[line.product.ID] = line.product.SKU
		}
		required[line.product.ID] += line.base
	}
	available, err := tx.GetBalances(ctx, header.WarehouseID, header.LocationID, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if required[id] > available[id]+qtyEpsilon {
			return &shared.InsufficientStockError{
				ProductCode: skuByID[id],
				Available:   available[id],
				Requested:   required[id],
			}
		}
	}
	return nil
}

// applyDelta is the ledger primitive: lock-or-create the row for the key and
// apply a signed base-unit delta, failing without writing when the result
// would be negative.
func (s *Service) applyDelta(ctx context.Context, tx TxRepository, product masterdata.Product, warehouseID, locationID int64, delta float64) (float64, error) {
	balance, err := tx.GetBalanceForUpdate(ctx, product.ID, warehouseID, locationID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return 0, err
	}
	if errors.Is(err, ErrBalanceNotFound) {
		if delta < 0 && !s.cfg.AllowNegative {
			return 0, &shared.InsufficientStockError{ProductCode: product.SKU, Available: 0, Requested: -delta}
		}
		balance = Balance{ProductID: product.ID, WarehouseID: warehouseID, LocationID: locationID}
	}
	newQty := balance.Qty + delta
	if newQty < -qtyEpsilon && !s.cfg.AllowNegative {
		return 0, &shared.InsufficientStockError{ProductCode: product.SKU, Available: balance.Qty, Requested: -delta}
	}
	if math.Abs(newQty) < qtyEpsilon {
		newQty = 0
	}
	balance.Qty = newQty
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return 0, err
	}
	return newQty, nil
}

// effectiveSign walks the reversal chain down to the first non-reversal
// transaction and reports whether the given transaction added (+1) or removed
// (-1) stock.
func (s *Service) effectiveSign(ctx context.Context, tx Transaction) (float64, error) {
	sign := 1.0
	current := tx
	for depth := 0; current.Type == TransactionReversal; depth++ {
		if depth > 32 {
			return 0, fmt.Errorf("stock: reversal chain too deep at transaction %d", tx.ID)
		}
		if current.ReversalOfID == 0 {
			return 0, fmt.Errorf("stock: reversal %d has no original", current.ID)
		}
		original, err := s.repo.GetTransaction(ctx, current.ReversalOfID)
		if err != nil {
			return 0, err
		}
		sign = -sign
		current = original
	}
	if current.Type == TransactionOutbound {
		sign = -sign
	}
	return sign, nil
}

func (s *Service) observe(txType TransactionType, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransaction(string(txType), outcome)
	}
}
