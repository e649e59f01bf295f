// Package catalog turns parsed product and stock tables into the normalized
// indexes the reconciliation engine works against.
package catalog

import (
	"strings"
	"unicode"

	"github.com/JonMunkholm/stockcount/internal/ingest"
	"github.com/JonMunkholm/stockcount/internal/normalize"
	"github.com/JonMunkholm/stockcount/internal/stock"
)

// maxRawCodeLen rejects cells too long to be a reduced code (free text,
// concatenated columns).
const maxRawCodeLen = 20

// Options controls the stock pass.
type Options struct {
	// Controlled selects the controlled-substances quantity column for
	// positional stock exports.
	Controlled bool
}

// ProductIndex is the result of the product pass.
type ProductIndex struct {
	Products map[string]stock.Product
	Barcodes map[string]string
	Labels   map[string]string
	Skipped  int
}

// Inventory is the result of the stock pass.
type Inventory struct {
	Items      map[string]stock.Item
	Duplicates int // Stock rows merged into an existing item
	Backfilled int // Descriptions copied into products that had none
	Created    int // Products created from stock rows with unknown codes
	Skipped    int
}

// Stats summarizes a build for logging and the setup response.
type Stats struct {
	Products          int `json:"products"`
	Barcodes          int `json:"barcodes"`
	Items             int `json:"items"`
	Duplicates        int `json:"duplicates"`
	Backfilled        int `json:"backfilled"`
	Created           int `json:"created"`
	SkippedProductRow int `json:"skipped_product_rows"`
	SkippedStockRow   int `json:"skipped_stock_rows"`
}

// validRawCode filters header echoes and junk rows before normalization.
func validRawCode(raw string) bool {
	if raw == "" || len(raw) > maxRawCodeLen {
		return false
	}
	lower := strings.ToLower(raw)
	if strings.Contains(lower, "cod") || strings.Contains(lower, "reduz") {
		return false
	}
	return strings.IndexFunc(raw, unicode.IsDigit) >= 0
}

// Products indexes a product table by reduced code, barcode and description
// label. Later rows overwrite earlier ones for the same code or barcode.
func Products(t *ingest.Table) (*ProductIndex, error) {
	acc := ProductAccessor(t)
	idx := &ProductIndex{
		Products: make(map[string]stock.Product),
		Barcodes: make(map[string]string),
		Labels:   make(map[string]string),
		Skipped:  t.Skipped,
	}

	for _, row := range t.Rows {
		raw := normalize.Cell(acc.Value(row, FieldCode))
		if !validRawCode(raw) {
			idx.Skipped++
			continue
		}
		code := normalize.Code(raw)
		if code == "" {
			idx.Skipped++
			continue
		}

		p := stock.Product{
			ReducedCode: code,
			Barcode:     normalize.Scientific(normalize.Cell(acc.Value(row, FieldBarcode))),
			Description: normalize.Cell(acc.Value(row, FieldDescription)),
		}
		idx.Products[code] = p

		if p.Barcode != "" {
			idx.Barcodes[p.Barcode] = code
		}
		if label := normalize.Label(p.Description); label != "" {
			idx.Labels[label] = code
		}
	}

	if len(idx.Products) == 0 {
		return nil, &CatalogError{Kind: NoValidProducts, Skipped: idx.Skipped}
	}
	return idx, nil
}

// Stock builds inventory items from a stock table. Duplicate codes have
// their system quantities summed. Descriptions are backfilled into idx, and
// codes missing from idx get a product created so every item has one.
func Stock(t *ingest.Table, idx *ProductIndex, opts Options) (*Inventory, error) {
	acc := StockAccessor(t, opts.Controlled)
	inv := &Inventory{
		Items:   make(map[string]stock.Item),
		Skipped: t.Skipped,
	}

	for _, row := range t.Rows {
		raw := normalize.Cell(acc.Value(row, FieldCode))
		if !validRawCode(raw) {
			inv.Skipped++
			continue
		}
		code := normalize.Code(raw)
		if code == "" {
			inv.Skipped++
			continue
		}

		qty := normalize.LocaleNumber(acc.Value(row, FieldQty))
		if existing, ok := inv.Items[code]; ok {
			existing.SystemQty = normalize.Add2(existing.SystemQty, qty)
			inv.Items[code] = existing
			inv.Duplicates++
		} else {
			inv.Items[code] = stock.NewItem(code, qty)
		}

		desc := normalize.Cell(acc.Value(row, FieldDescription))
		p, ok := idx.Products[code]
		switch {
		case !ok:
			idx.Products[code] = stock.Product{ReducedCode: code, Description: desc}
			if label := normalize.Label(desc); label != "" {
				if _, taken := idx.Labels[label]; !taken {
					idx.Labels[label] = code
				}
			}
			inv.Created++
		case p.Description == "" && desc != "":
			p.Description = desc
			idx.Products[code] = p
			if label := normalize.Label(desc); label != "" {
				if _, taken := idx.Labels[label]; !taken {
					idx.Labels[label] = code
				}
			}
			inv.Backfilled++
		}
	}

	if len(inv.Items) == 0 {
		return nil, &CatalogError{Kind: NoValidStock, Skipped: inv.Skipped}
	}
	return inv, nil
}

// Build runs the product pass then the stock pass and assembles a catalog.
func Build(products, stockTable *ingest.Table, opts Options) (*stock.Catalog, Stats, error) {
	idx, err := Products(products)
	if err != nil {
		return nil, Stats{}, err
	}

	inv, err := Stock(stockTable, idx, opts)
	if err != nil {
		return nil, Stats{}, err
	}

	cat := &stock.Catalog{
		Products:  idx.Products,
		Barcodes:  idx.Barcodes,
		Labels:    idx.Labels,
		Inventory: inv.Items,
	}

	stats := Stats{
		Products:          len(idx.Products),
		Barcodes:          len(idx.Barcodes),
		Items:             len(inv.Items),
		Duplicates:        inv.Duplicates,
		Backfilled:        inv.Backfilled,
		Created:           inv.Created,
		SkippedProductRow: idx.Skipped,
		SkippedStockRow:   inv.Skipped,
	}
	return cat, stats, nil
}
