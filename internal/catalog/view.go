package catalog

import (
	"context"
	"log"
)

// VariantSource fetches a product's variant list and aggregated summary.
// Implemented by the commerce API client.
type VariantSource interface {
	ProductVariants(ctx context.Context, productID string) ([]Variant, Summary, error)
}

// ProductView holds the variant state for one product detail view: an
// immutable variant snapshot fetched once, plus the mutable selection.
type ProductView struct {
	productID string
	source    VariantSource

	variants []Variant
	summary  Summary
	sel      Selection
}

// NewProductView creates an empty view for the given product.
func NewProductView(source VariantSource, productID string) *ProductView {
	return &ProductView{source: source, productID: productID}
}

// LoadVariants fetches the variant list and summary. On success, default
// selections are seeded from the first available value in each dimension
// without overwriting anything the caller already selected. On failure the
// snapshot stays empty and the view renders its neutral state; the error is
// returned for logging only.
func (v *ProductView) LoadVariants(ctx context.Context) error {
	variants, summary, err := v.source.ProductVariants(ctx, v.productID)
	if err != nil {
		log.Printf("[Catalog] Error loading variants for %s: %v", v.productID, err)
		return err
	}

	v.variants = variants
	v.summary = summary
	v.seedDefaults()
	return nil
}

// seedDefaults fills unset selection dimensions from the summary.
// Left-biased merge: an explicit user choice always wins over a default.
func (v *ProductView) seedDefaults() {
	if v.sel.Metal == nil && len(v.summary.MetalTypes) > 0 {
		v.sel.Metal = &v.summary.MetalTypes[0]
	}
	if v.sel.Shape == nil && len(v.summary.AvailableShapes) > 0 {
		v.sel.Shape = &v.summary.AvailableShapes[0]
	}
	if v.sel.Carat == nil && len(v.summary.CenterStoneWeights) > 0 {
		v.sel.Carat = &v.summary.CenterStoneWeights[0]
	}
	if v.sel.RingSize == nil && len(v.summary.RingSizes) > 0 {
		v.sel.RingSize = &v.summary.RingSizes[0]
	}
}

// SelectMetal sets the metal dimension.
func (v *ProductView) SelectMetal(code string) {
	v.sel.Metal = &code
}

// SelectShape sets the shape dimension.
func (v *ProductView) SelectShape(code string) {
	v.sel.Shape = &code
}

// SelectCarat sets the carat dimension from a heterogeneous value.
// Unparseable values are ignored rather than clearing the selection.
func (v *ProductView) SelectCarat(value any) {
	if carat, ok := ParseCarat(value); ok {
		v.sel.Carat = &carat
	}
}

// SelectRingSize sets the ring size. Ring size never affects resolution.
func (v *ProductView) SelectRingSize(size string) {
	v.sel.RingSize = &size
}

// Selection returns the current selection.
func (v *ProductView) Selection() Selection {
	return v.sel
}

// Summary returns the aggregated attribute summary.
func (v *ProductView) Summary() Summary {
	return v.summary
}

// Variants returns the fetched variant snapshot.
func (v *ProductView) Variants() []Variant {
	return v.variants
}

// Resolution returns the variant matching the current selection, or false
// when the chosen combination is unavailable.
func (v *ProductView) Resolution() (Variant, bool) {
	return Resolve(v.sel, v.variants)
}
