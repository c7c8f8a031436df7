package masterdata

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProductSetResolve(t *testing.T) {
	set := NewProductSet([]Product{
		{ID: 1, SKU: "SKU-1", Barcode: "880001"},
		{ID: 2, SKU: "880001X", Barcode: ""},
	})
	require.Equal(t, 2, set.Len())

	bySKU, ok := set.Resolve("SKU-1")
	require.True(t, ok)
	require.EqualValues(t, 1, bySKU.ID)

	byBarcode, ok := set.Resolve("880001")
	require.True(t, ok)
	require.EqualValues(t, 1, byBarcode.ID)

	_, ok = set.Resolve("missing")
	require.False(t, ok)
}

func TestProductSetSKUWinsOverBarcode(t *testing.T) {
	// A code that is one product's SKU and another's barcode resolves to the
	// SKU owner.
	set := NewProductSet([]Product{
		{ID: 1, SKU: "AMBIG"},
		{ID: 2, SKU: "OTHER", Barcode: "AMBIG"},
	})
	p, ok := set.Resolve("AMBIG")
	require.True(t, ok)
	require.EqualValues(t, 1, p.ID)

	p, ok = set.BySKU("OTHER")
	require.True(t, ok)
	require.EqualValues(t, 2, p.ID)
}
