package masterdata

// ProductSet is a typed lookup table over one batch of resolved products,
// indexed by SKU and by barcode. It is built once per engine call so line
// processing never goes back to the database per line.
type ProductSet struct {
	bySKU     map[string]Product
	byBarcode map[string]Product
}

// NewProductSet indexes the given products.
func NewProductSet(products []Product) ProductSet {
	set := ProductSet{
		bySKU:     make(map[string]Product, len(products)),
		byBarcode: make(map[string]Product, len(products)),
	}
	for _, p := range products {
		set.bySKU[p.SKU] = p
		if p.Barcode != "" {
			set.byBarcode[p.Barcode] = p
		}
	}
	return set
}

// Resolve finds a product by SKU first, then by barcode.
func (s ProductSet) Resolve(code string) (Product, bool) {
	if p, ok := s.bySKU[code]; ok {
		return p, true
	}
	p, ok := s.byBarcode[code]
	return p, ok
}

// BySKU finds a product strictly by SKU.
func (s ProductSet) BySKU(sku string) (Product, bool) {
	p, ok := s.bySKU[sku]
	return p, ok
}

// Len reports how many products the set holds.
func (s ProductSet) Len() int {
	return len(s.bySKU)
}
