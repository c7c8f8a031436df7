package container

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warelane/warelane/internal/masterdata"
	"github.com/warelane/warelane/internal/platform/db"
	"github.com/warelane/warelane/internal/shared"
	"github.com/warelane/warelane/internal/stock"
)

// TxPorts bundles the repositories participating in one container unit of
// work. Opening a container flips its state and books its contents back into
// stock, and both writes must commit or abort together.
type TxPorts struct {
	Containers TxRepository
	Stock      stock.TxRepository
}

// Runner executes a function inside one database transaction.
type Runner interface {
	WithTx(ctx context.Context, fn func(context.Context, TxPorts) error) error
}

type pgxRunner struct {
	pool *pgxpool.Pool
}

// NewRunner builds the production Runner over a pgx pool.
func NewRunner(pool *pgxpool.Pool) Runner {
	return &pgxRunner{pool: pool}
}

func (r *pgxRunner) WithTx(ctx context.Context, fn func(context.Context, TxPorts) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, TxPorts{
			Containers: NewTxRepository(tx),
			Stock:      stock.NewTxRepository(tx),
		})
	})
}

// ReaderPort reads containers outside a unit of work.
type ReaderPort interface {
	GetByBarcode(ctx context.Context, barcode string) (Container, error)
}

// MasterDataPort provides the master data lookups the lifecycle needs.
type MasterDataPort interface {
	GetWarehouseByCode(ctx context.Context, code string) (masterdata.Warehouse, error)
	GetWarehouseByID(ctx context.Context, id int64) (masterdata.Warehouse, error)
	GetProductsByCodes(ctx context.Context, codes []string) ([]masterdata.Product, error)
}

// StockPort posts an inbound movement inside an externally owned transaction.
type StockPort interface {
	CreateInTx(ctx context.Context, tx stock.TxRepository, input stock.CreateInput) (stock.Transaction, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements the container lifecycle: create with a generated
// barcode, read, and the one-way ACTIVE to OPENED transition.
type Service struct {
	runner     Runner
	reader     ReaderPort
	masterdata MasterDataPort
	stock      StockPort
	audit      AuditPort
}

// NewService builds Service. Audit is optional.
func NewService(runner Runner, reader ReaderPort, md MasterDataPort, stockSvc StockPort, audit AuditPort) *Service {
	return &Service{runner: runner, reader: reader, masterdata: md, stock: stockSvc, audit: audit}
}

// Create registers a container with a generated barcode and fixed contents.
// The barcode sequence advances inside the same transaction as the insert, so
// concurrent creations can never be handed the same number.
func (s *Service) Create(ctx context.Context, input CreateInput) (Container, error) {
	if _, err := ParseType(string(input.Type)); err != nil {
		return Container{}, err
	}
	if len(input.Contents) == 0 {
		return Container{}, ErrEmptyContents
	}
	for _, line := range input.Contents {
		if line.Quantity <= 0 {
			return Container{}, fmt.Errorf("%w: %s", stock.ErrInvalidQuantity, line.SKU)
		}
	}

	warehouse, err := s.masterdata.GetWarehouseByCode(ctx, input.WarehouseCode)
	if err != nil {
		return Container{}, err
	}
	contents, err := s.resolveContents(ctx, input.Contents)
	if err != nil {
		return Container{}, err
	}

	created := Container{
		Type:      input.Type,
		Status:    StatusActive,
		Warehouse: warehouse.ID,
		CreatedBy: input.Actor,
		CreatedAt: time.Now().UTC(),
	}
	err = s.runner.WithTx(ctx, func(ctx context.Context, ports TxPorts) error {
		seq, err := ports.Containers.NextSequence(ctx, input.Type.BarcodePrefix())
		if err != nil {
			return err
		}
		created.Barcode = FormatBarcode(input.Type.BarcodePrefix(), seq)
		id, err := ports.Containers.InsertContainer(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id
		if err := ports.Containers.InsertContents(ctx, id, contents); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Container{}, err
	}
	for i := range contents {
		contents[i].ContainerID = created.ID
	}
	created.Contents = contents

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    input.Actor,
			Action:   "container:create",
			Entity:   "container",
			EntityID: created.Barcode,
			Meta: map[string]any{
				"type":         string(created.Type),
				"warehouse_id": created.Warehouse,
				"lines":        len(contents),
			},
		})
	}
	return created, nil
}

// Open books the container's contents back into stock and marks it OPENED.
// The row is locked for the duration, so two concurrent opens serialize and
// the loser observes the OPENED state and fails without a second inbound. An
// optional location hint directs the inbound movement; an empty hint falls
// back to the warehouse default.
func (s *Service) Open(ctx context.Context, barcode, actor, locationHint string) (Container, stock.Transaction, error) {
	var opened Container
	var movement stock.Transaction
	err := s.runner.WithTx(ctx, func(ctx context.Context, ports TxPorts) error {
		current, err := ports.Containers.GetByBarcodeForUpdate(ctx, barcode)
		if err != nil {
			return err
		}
		if current.Status != StatusActive {
			return &shared.ConflictError{
				Entity: "container",
				Code:   barcode,
				State:  string(current.Status),
				Reason: "already opened",
			}
		}
		if len(current.Contents) == 0 {
			return &shared.ConflictError{
				Entity: "container",
				Code:   barcode,
				State:  string(current.Status),
				Reason: "container has no contents",
			}
		}
		warehouse, err := s.masterdata.GetWarehouseByID(ctx, current.Warehouse)
		if err != nil {
			return err
		}

		lines := make([]stock.LineInput, 0, len(current.Contents))
		for _, content := range current.Contents {
			lines = append(lines, stock.LineInput{
				Code:     content.SKU,
				Quantity: content.Quantity,
				Unit:     stock.UnitEach,
			})
		}
		movement, err = s.stock.CreateInTx(ctx, ports.Stock, stock.CreateInput{
			Type:          stock.TransactionInbound,
			WarehouseCode: warehouse.Code,
			LocationCode:  locationHint,
			Actor:         actor,
			Reference:     fmt.Sprintf("OPEN-%s", barcode),
			Lines:         lines,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := ports.Containers.MarkOpened(ctx, current.ID, actor, now); err != nil {
			return err
		}
		opened = current
		opened.Status = StatusOpened
		opened.OpenedBy = actor
		opened.OpenedAt = &now
		return nil
	})
	if err != nil {
		return Container{}, stock.Transaction{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    actor,
			Action:   "container:open",
			Entity:   "container",
			EntityID: barcode,
			Meta: map[string]any{
				"stock_transaction_id": strconv.FormatInt(movement.ID, 10),
				"lines":                len(opened.Contents),
			},
		})
	}
	return opened, movement, nil
}

// Get loads a container with contents regardless of state. Enumerating an
// ACTIVE container's contents this way never moves stock.
func (s *Service) Get(ctx context.Context, barcode string) (Container, error) {
	return s.reader.GetByBarcode(ctx, barcode)
}

func (s *Service) resolveContents(ctx context.Context, inputs []ContentInput) ([]ContentLine, error) {
	codes := make([]string, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, line := range inputs {
		if _, ok := seen[line.SKU]; ok {
			continue
		}
		seen[line.SKU] = struct{}{}
		codes = append(codes, line.SKU)
	}
	products, err := s.masterdata.GetProductsByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	set := masterdata.NewProductSet(products)

	contents := make([]ContentLine, 0, len(inputs))
	for _, line := range inputs {
		product, ok := set.Resolve(line.SKU)
		if !ok {
			return nil, shared.NewNotFound("product", line.SKU)
		}
		contents = append(contents, ContentLine{
			ProductID: product.ID,
			SKU:       product.SKU,
			Quantity:  line.Quantity,
		})
	}
	return contents, nil
}
