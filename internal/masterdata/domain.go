package masterdata

import (
	"time"
)

// Product is a stock-keeping item. Pack ratios normalize pack-unit quantities
// down to the base unit before any ledger write.
type Product struct {
	ID                     int64     `json:"id"`
	SKU                    string    `json:"sku"`
	Name                   string    `json:"name"`
	Barcode                string    `json:"barcode,omitempty"`
	BaseUnit               string    `json:"base_unit"`
	UnitsPerInnerPack      int64     `json:"units_per_inner_pack"`
	InnerPacksPerOuterPack int64     `json:"inner_packs_per_outer_pack"`
	IsActive               bool      `json:"is_active"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Warehouse groups storage locations. DefaultLocationID backs the effective
// location fallback when a transaction omits or misnames its location.
type Warehouse struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	DefaultLocationID int64     `json:"default_location_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Location is a storage spot inside a warehouse, identified by its QR code.
type Location struct {
	ID          int64     `json:"id"`
	WarehouseID int64     `json:"warehouse_id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Serial is one registered serialized unit of a product.
type Serial struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}
