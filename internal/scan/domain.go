package scan

import (
	"regexp"

	"github.com/warelane/warelane/internal/container"
	"github.com/warelane/warelane/internal/masterdata"
)

// ResultType tags the variant a scanned code resolved to.
type ResultType string

const (
	// ResultProduct means the code identified a product, by barcode, serial
	// or bare SKU.
	ResultProduct ResultType = "PRODUCT"
	// ResultContainer means the code identified a container.
	ResultContainer ResultType = "CONTAINER"
	// ResultLocation means the code identified a storage location.
	ResultLocation ResultType = "LOCATION"
	// ResultOperationMode means the code was an operation-mode trigger.
	ResultOperationMode ResultType = "OPERATION_MODE"
	// ResultNotFound means no lookup matched. This is a normal outcome, not
	// an error.
	ResultNotFound ResultType = "NOT_FOUND"
)

// Result is the tagged union a resolve call produces. Exactly the fields of
// the tagged variant are populated.
type Result struct {
	Type      ResultType           `json:"type"`
	Code      string               `json:"code"`
	Product   *masterdata.Product  `json:"product,omitempty"`
	Container *container.Container `json:"container,omitempty"`
	Location  *masterdata.Location `json:"location,omitempty"`
	Mode      *OperationMode       `json:"mode,omitempty"`
	Serial    *masterdata.Serial   `json:"serial,omitempty"`
	// UnregisteredSerial marks a product resolved through a serial-shaped
	// code whose serial is not in the registry.
	UnregisteredSerial bool `json:"unregistered_serial,omitempty"`
}

// OperationMode is a workflow the UI switches into when its trigger code is
// scanned.
type OperationMode struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DefaultModes are the built-in operation-mode triggers. The trigger codes
// are starred so they can never collide with a SKU or barcode.
var DefaultModes = []OperationMode{
	{Code: "*INBOUND*", Name: "Receive stock"},
	{Code: "*OUTBOUND*", Name: "Issue stock"},
	{Code: "*COUNT*", Name: "Cycle count"},
}

// serialPattern matches structured serial barcodes of the form <SKU>-<seq>.
var serialPattern = regexp.MustCompile(`^([A-Za-z0-9]+)-(\d+)$`)
