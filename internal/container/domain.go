package container

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Type enumerates physical container kinds.
type Type string

const (
	// TypeBox is a carton-sized container.
	TypeBox Type = "BOX"
	// TypePallet is a pallet-sized container.
	TypePallet Type = "PALLET"
)

// BarcodePrefix returns the barcode prefix for the type. Prefixes are disjoint
// from location QR codes and product SKUs so the scan resolver can classify a
// container barcode without ambiguity.
func (t Type) BarcodePrefix() string {
	if t == TypePallet {
		return "PLT"
	}
	return "BOX"
}

// ParseType validates a wire-level container type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeBox, TypePallet:
		return Type(s), nil
	default:
		return "", fmt.Errorf("container: unknown type %q", s)
	}
}

// Status enumerates the container lifecycle. Opening is terminal.
type Status string

const (
	// StatusActive means the container still holds its contents.
	StatusActive Status = "ACTIVE"
	// StatusOpened means the contents have been booked back into stock.
	StatusOpened Status = "OPENED"
)

// BarcodePattern matches generated container barcodes (BOX-000042, PLT-000007).
var BarcodePattern = regexp.MustCompile(`^(BOX|PLT)-\d{6}$`)

// FormatBarcode renders a barcode from a prefix and sequence number.
func FormatBarcode(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%06d", prefix, seq)
}

// Container is a barcoded physical aggregate of product quantities. Contents
// are fixed at creation and survive opening as the historical record.
type Container struct {
	ID        int64         `json:"id"`
	Barcode   string        `json:"barcode"`
	Type      Type          `json:"type"`
	Status    Status        `json:"status"`
	Warehouse int64         `json:"warehouse_id"`
	CreatedBy string        `json:"created_by"`
	CreatedAt time.Time     `json:"created_at"`
	OpenedBy  string        `json:"opened_by,omitempty"`
	OpenedAt  *time.Time    `json:"opened_at,omitempty"`
	Contents  []ContentLine `json:"contents,omitempty"`
}

// ContentLine is one product quantity inside a container, in base units.
type ContentLine struct {
	ID          int64   `json:"id"`
	ContainerID int64   `json:"container_id"`
	ProductID   int64   `json:"product_id"`
	SKU         string  `json:"sku"`
	Quantity    float64 `json:"quantity"`
}

// ContentInput is one requested content row at creation time.
type ContentInput struct {
	SKU      string  `json:"sku" validate:"required"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
}

// CreateInput describes a container creation request.
type CreateInput struct {
	Type          Type
	WarehouseCode string
	Actor         string
	Contents      []ContentInput
}

var (
	// ErrEmptyContents indicates a container without content rows.
	ErrEmptyContents = errors.New("container: at least one content row is required")
)
