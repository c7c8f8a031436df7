package stock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warelane/warelane/internal/masterdata"
)

func TestToBaseUnits(t *testing.T) {
	product := masterdata.Product{SKU: "SKU-1", UnitsPerInnerPack: 12, InnerPacksPerOuterPack: 5}

	require.InDelta(t, 7, ToBaseUnits(7, UnitEach, product), 1e-9)
	require.InDelta(t, 36, ToBaseUnits(3, UnitInnerPack, product), 1e-9)
	require.InDelta(t, 120, ToBaseUnits(2, UnitOuterPack, product), 1e-9)
}

func TestToBaseUnitsOuterPackExpansion(t *testing.T) {
	product := masterdata.Product{SKU: "SKU-1", UnitsPerInnerPack: 12, InnerPacksPerOuterPack: 5}
	for n := 0.0; n <= 10; n++ {
		require.InDelta(t, n*12*5, ToBaseUnits(n, UnitOuterPack, product), 1e-9)
	}
}

func TestToBaseUnitsDegenerateRatios(t *testing.T) {
	// Missing pack ratios behave as 1 so legacy products without pack data
	// still convert.
	product := masterdata.Product{SKU: "PLAIN"}
	require.InDelta(t, 4, ToBaseUnits(4, UnitInnerPack, product), 1e-9)
	require.InDelta(t, 4, ToBaseUnits(4, UnitOuterPack, product), 1e-9)
}

func TestParseUnit(t *testing.T) {
	for _, valid := range []string{"EACH", "INNER_PACK", "OUTER_PACK"} {
		unit, err := ParseUnit(valid)
		require.NoError(t, err)
		require.Equal(t, Unit(valid), unit)
	}
	_, err := ParseUnit("DOZEN")
	require.Error(t, err)
}
