package catalog

import (
	"strings"

	"github.com/JonMunkholm/stockcount/internal/ingest"
)

// Field names a logical column.
type Field int

const (
	FieldCode Field = iota
	FieldBarcode
	FieldDescription
	FieldQty
)

// Accessor reads logical fields out of a row. One accessor is resolved per
// table so the per-row loop does not re-inspect headers.
type Accessor interface {
	Value(row ingest.Row, f Field) string
}

// Fixed column letters used by workbook exports from the store system.
var (
	productColumns = map[Field][]string{
		FieldCode:        {"C"},
		FieldBarcode:     {"K"},
		FieldDescription: {"D", "B", "A"},
	}

	stockColumns = map[Field][]string{
		FieldCode:        {"B"},
		FieldDescription: {"C"},
	}

	generalQtyColumn    = "O"
	controlledQtyColumn = "L"
)

// positional reads fields from fixed column letters, taking the first
// non-empty candidate.
type positional struct {
	columns map[Field][]string
}

func (p positional) Value(row ingest.Row, f Field) string {
	for _, col := range p.columns[f] {
		if v := strings.TrimSpace(row[col]); v != "" {
			return v
		}
	}
	return ""
}

// semantic reads fields through normalized header names. Each field maps to
// the source headers that normalize to it, in column order.
type semantic struct {
	columns map[Field][]string
}

func newSemantic(headers []string) semantic {
	s := semantic{columns: make(map[Field][]string)}
	for _, h := range headers {
		var f Field
		switch ingest.NormalizeHeader(h) {
		case ingest.KeyReducedCode:
			f = FieldCode
		case ingest.KeyBarcode:
			f = FieldBarcode
		case ingest.KeyDescription:
			f = FieldDescription
		case ingest.KeyQty:
			f = FieldQty
		default:
			continue
		}
		s.columns[f] = append(s.columns[f], h)
	}
	return s
}

func (s semantic) Value(row ingest.Row, f Field) string {
	for _, h := range s.columns[f] {
		if v := strings.TrimSpace(row[h]); v != "" {
			return v
		}
	}
	return ""
}

// ProductAccessor picks the column strategy for a product table.
func ProductAccessor(t *ingest.Table) Accessor {
	if t.Positional {
		return positional{columns: productColumns}
	}
	return newSemantic(t.Headers)
}

// StockAccessor picks the column strategy for a stock table. The quantity
// column of positional exports depends on whether the list is the
// controlled-substances report.
func StockAccessor(t *ingest.Table, controlled bool) Accessor {
	if !t.Positional {
		return newSemantic(t.Headers)
	}

	qty := generalQtyColumn
	if controlled {
		qty = controlledQtyColumn
	}
	cols := make(map[Field][]string, len(stockColumns)+1)
	for f, c := range stockColumns {
		cols[f] = c
	}
	cols[FieldQty] = []string{qty}
	return positional{columns: cols}
}
