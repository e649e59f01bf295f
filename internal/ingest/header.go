package ingest

import "strings"

// Canonical header keys produced by NormalizeHeader.
const (
	KeyReducedCode = "reducedCode"
	KeyBarcode     = "barcode"
	KeyDescription = "description"
	KeyQty         = "qty"
)

// NormalizeHeader maps the many header spellings found in store exports to
// one of the canonical keys. Unknown headers come back lower-cased.
func NormalizeHeader(h string) string {
	lower := strings.ToLower(strings.TrimSpace(h))

	switch {
	case lower == "id" || lower == "cod" || lower == "código" || lower == "codigo":
		return KeyReducedCode
	case strings.Contains(lower, "reduzido"):
		return KeyReducedCode
	case strings.Contains(lower, "produto") && !strings.Contains(lower, "desc"):
		return KeyReducedCode
	case strings.Contains(lower, "barra"), strings.Contains(lower, "gtin"), strings.Contains(lower, "ean"):
		return KeyBarcode
	case strings.Contains(lower, "desc"), strings.Contains(lower, "nome"):
		return KeyDescription
	case lower == "q",
		strings.Contains(lower, "qtd"),
		strings.Contains(lower, "quant"),
		strings.Contains(lower, "estoque"),
		strings.Contains(lower, "saldo"):
		return KeyQty
	default:
		return lower
	}
}
