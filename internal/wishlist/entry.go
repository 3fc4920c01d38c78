package wishlist

import (
	"fmt"
	"math"
	"strconv"

	"github.com/example/jewel-storefront/internal/catalog"
	"github.com/example/jewel-storefront/internal/commerce"
)

// Entry kinds. A wishlist row holds either a catalog product or a loose stone.
const (
	KindProduct = "product"
	KindDiamond = "diamond"
)

// Entry is the normalized wishlist row every reader renders from.
// Price is pre-formatted for display; Variants and VariantsHover map a
// color key to an image URL.
type Entry struct {
	WishlistID    string            `json:"wishlistId"`
	ItemID        string            `json:"id"`
	Title         string            `json:"title"`
	Subtitle      string            `json:"subtitle"`
	Price         string            `json:"price"`
	DefaultColor  string            `json:"defaultColor"`
	Variants      map[string]string `json:"variants"`
	VariantsHover map[string]string `json:"variantsHover"`
	Kind          string            `json:"itemKind"`
}

// Normalize maps raw backend rows into entries. Rows carrying neither a
// product nor a diamond payload are dropped silently; order is preserved and
// duplicate item ids are kept as the backend sent them.
func Normalize(rows []commerce.WishlistRow) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		switch {
		case row.Product != nil:
			entries = append(entries, normalizeProduct(row))
		case row.Diamond != nil:
			entries = append(entries, normalizeDiamond(row))
		}
	}
	return entries
}

func normalizeProduct(row commerce.WishlistRow) Entry {
	p := row.Product

	title := p.Title
	if title == "" {
		title = p.SKU
	}
	if title == "" {
		title = "Jewellery Item"
	}

	return Entry{
		WishlistID:    row.ID,
		ItemID:        p.ID,
		Title:         title,
		Subtitle:      p.CategoryName,
		Price:         FormatPrice(p.Price),
		DefaultColor:  p.DefaultColor,
		Variants:      p.Images,
		VariantsHover: p.HoverImages,
		Kind:          KindProduct,
	}
}

func normalizeDiamond(row commerce.WishlistRow) Entry {
	d := row.Diamond

	title := ""
	if carat, ok := catalog.ParseCarat(d.Carat); ok && d.Shape != "" {
		title = fmt.Sprintf("%s Carat %s Diamond", trimFloat(carat), d.Shape)
	}
	if title == "" {
		title = d.SKU
	}
	if title == "" {
		title = "Loose Diamond"
	}

	var images map[string]string
	if d.ImageURL != "" {
		images = map[string]string{"default": d.ImageURL}
	}

	return Entry{
		WishlistID: row.ID,
		ItemID:     d.ID,
		Title:      title,
		Subtitle:   d.Certificate,
		Price:      FormatPrice(d.Price),
		Variants:   images,
		Kind:       KindDiamond,
	}
}

// FormatPrice renders an amount for display: "$1,250" for whole amounts,
// "$1,250.50" otherwise.
func FormatPrice(amount float64) string {
	cents := ""
	if amount != math.Trunc(amount) {
		cents = fmt.Sprintf(".%02d", int(math.Round(amount*100))%100)
	}

	whole := strconv.FormatInt(int64(amount), 10)
	negative := false
	if len(whole) > 0 && whole[0] == '-' {
		negative = true
		whole = whole[1:]
	}

	grouped := ""
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped += ","
		}
		grouped += string(digit)
	}

	if negative {
		return "-$" + grouped + cents
	}
	return "$" + grouped + cents
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
