package stock

// CreateTransactionRequest is the wire payload for posting a movement.
type CreateTransactionRequest struct {
	Type          string        `json:"type" validate:"required,oneof=INBOUND OUTBOUND"`
	WarehouseCode string        `json:"warehouse_code" validate:"required"`
	LocationCode  string        `json:"location_code,omitempty"`
	Reference     string        `json:"reference,omitempty" validate:"omitempty,max=64"`
	Lines         []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// LineRequest is one movement line as scanned.
type LineRequest struct {
	Code     string  `json:"code" validate:"required"`
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
	Unit     string  `json:"unit" validate:"required,oneof=EACH INNER_PACK OUTER_PACK"`
}

// ToInput maps the request onto the engine input.
func (r CreateTransactionRequest) ToInput(actor string) CreateInput {
	lines := make([]LineInput, 0, len(r.Lines))
	for _, line := range r.Lines {
		lines = append(lines, LineInput{Code: line.Code, Quantity: line.Quantity, Unit: Unit(line.Unit)})
	}
	return CreateInput{
		Type:          TransactionType(r.Type),
		WarehouseCode: r.WarehouseCode,
		LocationCode:  r.LocationCode,
		Actor:         actor,
		Reference:     r.Reference,
		Lines:         lines,
	}
}
