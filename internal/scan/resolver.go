package scan

import (
	"context"
	"errors"

	"github.com/warelane/warelane/internal/container"
	"github.com/warelane/warelane/internal/masterdata"
	"github.com/warelane/warelane/internal/shared"
)

// MasterDataPort provides the read-only lookups resolution needs.
type MasterDataPort interface {
	GetWarehouseByCode(ctx context.Context, code string) (masterdata.Warehouse, error)
	GetProductByBarcode(ctx context.Context, barcode string) (masterdata.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (masterdata.Product, error)
	GetProductByID(ctx context.Context, id int64) (masterdata.Product, error)
	GetLocationByCode(ctx context.Context, code string, warehouseID int64) (masterdata.Location, error)
	GetSerial(ctx context.Context, code string) (masterdata.Serial, error)
}

// ContainerPort reads containers by barcode.
type ContainerPort interface {
	GetByBarcode(ctx context.Context, barcode string) (container.Container, error)
}

// MetricsPort counts scan outcomes by variant.
type MetricsPort interface {
	ObserveScan(result string)
}

// Service classifies scanned codes. Resolution is pure lookup; it never
// writes anything.
type Service struct {
	masterdata MasterDataPort
	containers ContainerPort
	cache      *ProductCache
	metrics    MetricsPort
	modes      map[string]OperationMode
}

// NewService builds Service. Cache and metrics are optional; a nil modes
// slice installs DefaultModes.
func NewService(md MasterDataPort, containers ContainerPort, cache *ProductCache, metrics MetricsPort, modes []OperationMode) *Service {
	if modes == nil {
		modes = DefaultModes
	}
	byTrigger := make(map[string]OperationMode, len(modes))
	for _, m := range modes {
		byTrigger[m.Code] = m
	}
	return &Service{masterdata: md, containers: containers, cache: cache, metrics: metrics, modes: byTrigger}
}

// Resolve classifies one scanned code within a warehouse. Lookups run in a
// fixed precedence order and the first hit wins: product barcode, container
// barcode, location QR, operation-mode trigger, structured serial, bare SKU.
// A code no lookup matches yields a NOT_FOUND result, not an error; errors
// are reserved for storage faults and an unknown warehouse.
func (s *Service) Resolve(ctx context.Context, code, warehouseCode string) (Result, error) {
	warehouse, err := s.masterdata.GetWarehouseByCode(ctx, warehouseCode)
	if err != nil {
		return Result{}, err
	}

	result, err := s.resolve(ctx, code, warehouse)
	if err != nil {
		return Result{}, err
	}
	if s.metrics != nil {
		s.metrics.ObserveScan(string(result.Type))
	}
	return result, nil
}

func (s *Service) resolve(ctx context.Context, code string, warehouse masterdata.Warehouse) (Result, error) {
	product, ok, err := s.productByBarcode(ctx, code)
	if err != nil {
		return Result{}, err
	}
	if ok {
		return Result{Type: ResultProduct, Code: code, Product: product}, nil
	}

	if container.BarcodePattern.MatchString(code) {
		c, err := s.containers.GetByBarcode(ctx, code)
		if err == nil {
			return Result{Type: ResultContainer, Code: code, Container: &c}, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return Result{}, err
		}
	}

	location, err := s.masterdata.GetLocationByCode(ctx, code, warehouse.ID)
	if err == nil {
		return Result{Type: ResultLocation, Code: code, Location: &location}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Result{}, err
	}

	if mode, ok := s.modes[code]; ok {
		return Result{Type: ResultOperationMode, Code: code, Mode: &mode}, nil
	}

	if match := serialPattern.FindStringSubmatch(code); match != nil {
		result, ok, err := s.resolveSerial(ctx, code, match[1])
		if err != nil {
			return Result{}, err
		}
		if ok {
			return result, nil
		}
	}

	bySKU, err := s.masterdata.GetProductBySKU(ctx, code)
	if err == nil {
		return Result{Type: ResultProduct, Code: code, Product: &bySKU}, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Result{}, err
	}

	return Result{Type: ResultNotFound, Code: code}, nil
}

// resolveSerial handles serial-shaped codes. A registered serial binds to its
// product; an unregistered one still resolves when its SKU prefix is a real
// product. Anything else falls through to the bare SKU lookup, since SKUs
// themselves may contain a dash.
func (s *Service) resolveSerial(ctx context.Context, code, skuPrefix string) (Result, bool, error) {
	serial, err := s.masterdata.GetSerial(ctx, code)
	if err == nil {
		product, err := s.masterdata.GetProductByID(ctx, serial.ProductID)
		if err != nil {
			return Result{}, false, err
		}
		return Result{Type: ResultProduct, Code: code, Product: &product, Serial: &serial}, true, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Result{}, false, err
	}

	product, err := s.masterdata.GetProductBySKU(ctx, skuPrefix)
	if err == nil {
		return Result{Type: ResultProduct, Code: code, Product: &product, UnregisteredSerial: true}, true, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Result{}, false, err
	}
	return Result{}, false, nil
}

// productByBarcode checks the cache first and falls back to master data,
// filling the cache on a hit.
func (s *Service) productByBarcode(ctx context.Context, code string) (*masterdata.Product, bool, error) {
	if cached, ok := s.cache.Get(ctx, code); ok {
		return &cached, true, nil
	}
	product, err := s.masterdata.GetProductByBarcode(ctx, code)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	s.cache.Set(ctx, code, product)
	return &product, true, nil
}
