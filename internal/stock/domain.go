package stock

import (
	"errors"
	"time"
)

// TransactionType enumerates supported stock movements.
type TransactionType string

const (
	// TransactionInbound represents stock entering a location.
	TransactionInbound TransactionType = "INBOUND"
	// TransactionOutbound represents stock leaving a location.
	TransactionOutbound TransactionType = "OUTBOUND"
	// TransactionReversal undoes the net ledger effect of a prior transaction
	// without mutating it.
	TransactionReversal TransactionType = "REVERSAL"
)

// Transaction is the immutable header of one committed stock movement.
type Transaction struct {
	ID           int64             `json:"id"`
	Type         TransactionType   `json:"type"`
	WarehouseID  int64             `json:"warehouse_id"`
	LocationID   int64             `json:"location_id,omitempty"`
	Actor        string            `json:"actor"`
	Reference    string            `json:"reference,omitempty"`
	ReversalOfID int64             `json:"reversal_of_id,omitempty"`
	PostedAt     time.Time         `json:"posted_at"`
	CreatedAt    time.Time         `json:"created_at"`
	Lines        []TransactionLine `json:"lines,omitempty"`
}

// TransactionLine is one product movement inside a transaction. Products are
// referenced by value (SKU) so later master-data edits never rewrite history.
type TransactionLine struct {
	ID            int64   `json:"id"`
	TransactionID int64   `json:"transaction_id"`
	ProductID     int64   `json:"product_id"`
	ProductSKU    string  `json:"product_sku"`
	RequestedQty  float64 `json:"requested_qty"`
	RequestedUnit Unit    `json:"requested_unit"`
	BaseQty       float64 `json:"base_qty"`
}

// Balance is one inventory ledger row: the on-hand base-unit quantity for a
// (product, warehouse, location) key. LocationID zero means no location.
type Balance struct {
	ProductID   int64     `json:"product_id"`
	WarehouseID int64     `json:"warehouse_id"`
	LocationID  int64     `json:"location_id,omitempty"`
	Qty         float64   `json:"qty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OnHandRow pairs a ledger quantity with its product identity, used for
// on-hand listings and the cycle count snapshot.
type OnHandRow struct {
	ProductID int64   `json:"product_id"`
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	Qty       float64 `json:"qty"`
}

// LineInput is one requested movement line before resolution.
type LineInput struct {
	Code     string
	Quantity float64
	Unit     Unit
}

// CreateInput describes one requested stock transaction.
type CreateInput struct {
	Type          TransactionType
	WarehouseCode string
	LocationCode  string
	Actor         string
	Reference     string
	Lines         []LineInput
}

// OnHandFilter narrows on-hand listings.
type OnHandFilter struct {
	WarehouseID int64
	LocationID  int64
	ProductID   int64
}

// MovementFilter narrows stock card listings.
type MovementFilter struct {
	WarehouseID int64
	LocationID  int64
	ProductID   int64
	From        time.Time
	To          time.Time
	Limit       int
}

// MovementEntry is one stock card row derived from committed transaction lines.
type MovementEntry struct {
	TransactionID int64           `json:"transaction_id"`
	Type          TransactionType `json:"type"`
	ProductSKU    string          `json:"product_sku"`
	QtyIn         float64         `json:"qty_in"`
	QtyOut        float64         `json:"qty_out"`
	PostedAt      time.Time       `json:"posted_at"`
	Actor         string          `json:"actor"`
	Reference     string          `json:"reference,omitempty"`
}

var (
	// ErrInvalidQuantity indicates a non-positive requested quantity.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
	// ErrInvalidType indicates an unsupported transaction type for the operation.
	ErrInvalidType = errors.New("stock: unsupported transaction type")
	// ErrEmptyLines indicates a transaction without lines.
	ErrEmptyLines = errors.New("stock: at least one line is required")
)
