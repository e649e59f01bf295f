// Package stock defines the product catalog and inventory records shared by
// the catalog builder, the reconciliation engine and the persistence layer.
package stock

import (
	"sort"
	"time"

	"github.com/JonMunkholm/stockcount/internal/normalize"
)

// Status is the reconciliation state of one inventory item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusMatched   Status = "matched"
	StatusDivergent Status = "divergent"
)

// Product is one catalog entry keyed by its reduced (internal) code.
type Product struct {
	ReducedCode string `json:"reduced_code"`
	Barcode     string `json:"barcode,omitempty"`
	Description string `json:"description"`
}

// Item is the count state of one product.
type Item struct {
	ReducedCode string     `json:"reduced_code"`
	SystemQty   float64    `json:"system_qty"`
	CountedQty  float64    `json:"counted_qty"`
	Status      Status     `json:"status"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// NewItem returns a pending item that has not been counted yet.
func NewItem(code string, systemQty float64) Item {
	return Item{
		ReducedCode: code,
		SystemQty:   normalize.Round2(systemQty),
		Status:      StatusPending,
	}
}

// Count records counted as the physical quantity at time at and recomputes
// the status.
func (it Item) Count(counted float64, at time.Time) Item {
	it.CountedQty = normalize.Round2(counted)
	ts := at.UTC()
	it.LastUpdated = &ts
	it.Status = StatusFor(it.SystemQty, it.CountedQty)
	return it
}

// Reset returns the item to pending, keeping its system quantity.
func (it Item) Reset() Item {
	it.CountedQty = 0
	it.LastUpdated = nil
	it.Status = StatusPending
	return it
}

// Difference is counted minus system, rounded to 2 decimals.
func (it Item) Difference() float64 {
	return normalize.Round2(it.CountedQty - it.SystemQty)
}

// StatusFor returns matched when the two quantities agree to 2 decimals and
// divergent otherwise.
func StatusFor(system, counted float64) Status {
	if normalize.Equal2(system, counted) {
		return StatusMatched
	}
	return StatusDivergent
}

// Catalog is the read-mostly index produced by the catalog builder plus the
// inventory the engine mutates.
type Catalog struct {
	Products  map[string]Product // reduced code -> product
	Barcodes  map[string]string  // normalized barcode -> reduced code
	Labels    map[string]string  // description label -> reduced code
	Inventory map[string]Item    // reduced code -> item
}

// NewCatalog returns an empty catalog with all maps allocated.
func NewCatalog() *Catalog {
	return &Catalog{
		Products:  make(map[string]Product),
		Barcodes:  make(map[string]string),
		Labels:    make(map[string]string),
		Inventory: make(map[string]Item),
	}
}

// Lookup resolves a scanned or typed code. The input is normalized with
// scientific expansion and tried as a reduced code first, then as a barcode.
func (c *Catalog) Lookup(raw string) (Product, bool) {
	code := normalize.Scientific(raw)
	if code == "" {
		return Product{}, false
	}
	if p, ok := c.Products[code]; ok {
		return p, true
	}
	if reduced, ok := c.Barcodes[code]; ok {
		if p, ok := c.Products[reduced]; ok {
			return p, true
		}
	}
	return Product{}, false
}

// Codes returns the inventory keys in ascending order.
func (c *Catalog) Codes() []string {
	codes := make([]string, 0, len(c.Inventory))
	for k := range c.Inventory {
		codes = append(codes, k)
	}
	SortCodes(codes)
	return codes
}

// SortCodes orders reduced codes numerically, falling back to string order
// for equal lengths. Codes are digit strings without leading zeros.
func SortCodes(codes []string) {
	sort.Slice(codes, func(i, j int) bool {
		if len(codes[i]) != len(codes[j]) {
			return len(codes[i]) < len(codes[j])
		}
		return codes[i] < codes[j]
	})
}

// Counts tallies inventory statuses.
type Counts struct {
	Total     int `json:"total"`
	Matched   int `json:"matched"`
	Divergent int `json:"divergent"`
	Pending   int `json:"pending"`
}

// Tally counts the statuses of every inventory item.
func (c *Catalog) Tally() Counts {
	var n Counts
	for _, it := range c.Inventory {
		n.Total++
		switch it.Status {
		case StatusMatched:
			n.Matched++
		case StatusDivergent:
			n.Divergent++
		default:
			n.Pending++
		}
	}
	return n
}
