package catalog

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Variant is one purchasable configuration of a product.
type Variant struct {
	MetalCode         string  `json:"metalCode"`
	ShapeCode         string  `json:"shapeCode"`
	CenterStoneWeight float64 `json:"centerStoneWeight"`
	ProductSKU        string  `json:"productSku"`
	TotalPrice        float64 `json:"totalPrice"`
	DiamondType       string  `json:"diamondType"`
}

// Summary aggregates the attribute values available across a product's
// variant list, as returned by the variant summary API.
type Summary struct {
	AvailableShapes    []string  `json:"availableShapes"`
	MetalTypes         []string  `json:"metalTypes"`
	CenterStoneWeights []float64 `json:"centerStoneWeights"`
	RingSizes          []string  `json:"ringSizes"`
	DiamondType        string    `json:"diamondType"`
}

// Selection holds the user's independently chosen attributes. Each field uses
// an explicit unset sentinel (nil) so "not chosen yet" is never conflated
// with a legitimate zero value. Ring size is tracked for the order payload
// but is not part of the variant match key.
type Selection struct {
	Metal    *string
	Shape    *string
	Carat    *float64
	RingSize *string
}

// ParseCarat coerces a carat value of heterogeneous origin (number, numeric
// string, json.Number) to a float64. The backend feed mixes types, so every
// carat must pass through here before comparison.
func ParseCarat(v any) (float64, bool) {
	switch c := v.(type) {
	case float64:
		return c, true
	case float32:
		return float64(c), true
	case int:
		return float64(c), true
	case json.Number:
		f, err := c.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Resolve finds the unique variant matching the selection's metal, shape and
// carat weight exactly. A missing match is a valid terminal state (purchase
// actions disabled), not an error, so the second return is a plain bool.
//
// Carat comparison is exact numeric equality, matching the behavior of the
// upstream storefront.
// TODO: if the variant feed ever carries rounding noise (1.5000000001),
// exact equality will stop matching; revisit with an epsilon then.
func Resolve(sel Selection, variants []Variant) (Variant, bool) {
	if sel.Metal == nil || sel.Shape == nil || sel.Carat == nil {
		return Variant{}, false
	}
	for _, v := range variants {
		if v.MetalCode == *sel.Metal && v.ShapeCode == *sel.Shape && v.CenterStoneWeight == *sel.Carat {
			return v, true
		}
	}
	return Variant{}, false
}
