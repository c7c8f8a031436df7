package stock

import (
	"fmt"

	"github.com/warelane/warelane/internal/masterdata"
)

// Unit enumerates the pack units a quantity can be scanned in.
type Unit string

const (
	// UnitEach is the base unit, a single item.
	UnitEach Unit = "EACH"
	// UnitInnerPack is one inner pack of a product.
	UnitInnerPack Unit = "INNER_PACK"
	// UnitOuterPack is one outer pack (a pack of inner packs).
	UnitOuterPack Unit = "OUTER_PACK"
)

// ParseUnit validates a wire-level unit string.
func ParseUnit(s string) (Unit, error) {
	switch Unit(s) {
	case UnitEach, UnitInnerPack, UnitOuterPack:
		return Unit(s), nil
	default:
		return "", fmt.Errorf("stock: unknown unit %q", s)
	}
}

// ToBaseUnits converts a quantity expressed in the given pack unit into the
// product's base unit. Total for any valid product; pack ratios below 1 are
// treated as 1 so a product with no pack configuration behaves as EACH-only.
func ToBaseUnits(qty float64, unit Unit, p masterdata.Product) float64 {
	inner := p.UnitsPerInnerPack
	if inner < 1 {
		inner = 1
	}
	outer := p.InnerPacksPerOuterPack
	if outer < 1 {
		outer = 1
	}
	switch unit {
	case UnitInnerPack:
		return qty * float64(inner)
	case UnitOuterPack:
		return qty * float64(inner) * float64(outer)
	default:
		return qty
	}
}
