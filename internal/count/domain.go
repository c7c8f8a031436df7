package count

import (
	"errors"
	"time"
)

// LocationState is the per-location counting state machine. Transitions go
// one way: NOT_STARTED to COUNTING to SAVED.
type LocationState string

const (
	// StateNotStarted means counting has not begun at the location.
	StateNotStarted LocationState = "NOT_STARTED"
	// StateCounting means the expected snapshot is taken and scans are being
	// accumulated.
	StateCounting LocationState = "COUNTING"
	// StateSaved means the location's result is frozen into the session.
	StateSaved LocationState = "SAVED"
)

// SessionStatus is the whole-session lifecycle.
type SessionStatus string

const (
	// SessionOpen means locations can still be counted.
	SessionOpen SessionStatus = "OPEN"
	// SessionFinalized means the report has been persisted.
	SessionFinalized SessionStatus = "FINALIZED"
)

// Item is one product's count at one location. Variance is counted minus
// expected; for an unexpected item expected is zero, so variance equals the
// counted surplus.
type Item struct {
	ProductID  int64   `json:"product_id"`
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	Expected   float64 `json:"expected"`
	Counted    float64 `json:"counted"`
	Variance   float64 `json:"variance"`
	Unexpected bool    `json:"unexpected,omitempty"`
}

// LocationResult is a frozen location count.
type LocationResult struct {
	LocationID    int64     `json:"location_id"`
	LocationCode  string    `json:"location_code"`
	Items         []Item    `json:"items"`
	TotalExpected float64   `json:"total_expected"`
	TotalCounted  float64   `json:"total_counted"`
	TotalVariance float64   `json:"total_variance"`
	SavedAt       time.Time `json:"saved_at"`
}

// Report aggregates every saved location of a finalized session. A report is
// an observation of the ledger, never a movement against it.
type Report struct {
	ID            string           `json:"id"`
	WarehouseID   int64            `json:"warehouse_id"`
	WarehouseCode string           `json:"warehouse_code"`
	Status        SessionStatus    `json:"status"`
	StartedBy     string           `json:"started_by"`
	StartedAt     time.Time        `json:"started_at"`
	FinalizedBy   string           `json:"finalized_by,omitempty"`
	FinalizedAt   *time.Time       `json:"finalized_at,omitempty"`
	Locations     []LocationResult `json:"locations"`
	TotalExpected float64          `json:"total_expected"`
	TotalCounted  float64          `json:"total_counted"`
	TotalVariance float64          `json:"total_variance"`
}

var (
	// ErrSessionNotFound indicates an unknown or expired session id.
	ErrSessionNotFound = errors.New("count: session not found")
	// ErrNoActiveLocation indicates a scan with no location in COUNTING state.
	ErrNoActiveLocation = errors.New("count: no location is being counted")
)
