package core

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/stockcount/internal/normalize"
	"github.com/JonMunkholm/stockcount/internal/stock"
)

// parseQuantity accepts "12", "12.5", "12,5" and "1.234,5".
func parseQuantity(raw string) (float64, bool) {
	v, ok := normalize.ParseLocaleNumber(raw)
	if !ok || v < 0 {
		return 0, false
	}
	return v, true
}

// searchProducts matches query against reduced codes, barcodes and
// descriptions. Exact code or barcode hits come first, then the product whose
// description label equals the query, then code prefixes and description
// substrings.
func searchProducts(st State, query string, limit int) []ProductMatch {
	query = strings.TrimSpace(query)
	if query == "" {
		return []ProductMatch{}
	}

	code := normalize.Scientific(query)
	label := normalize.Label(query)
	needle := strings.ToUpper(query)
	labelCode := ""
	if label != "" {
		labelCode = st.Catalog.Labels[label]
	}

	type hit struct {
		p    stock.Product
		rank int
	}
	var hits []hit
	for _, p := range st.Catalog.Products {
		desc := strings.ToUpper(p.Description)
		rank := -1
		switch {
		case code != "" && (p.ReducedCode == code || p.Barcode == code):
			rank = 0
		case labelCode != "" && p.ReducedCode == labelCode:
			rank = 1
		case code != "" && (strings.HasPrefix(p.ReducedCode, code) || strings.HasPrefix(p.Barcode, code)):
			rank = 2
		case label != "" && strings.Contains(desc, label):
			rank = 3
		case strings.Contains(desc, needle):
			rank = 3
		}
		if rank >= 0 {
			hits = append(hits, hit{p: p, rank: rank})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return codeLess(hits[i].p.ReducedCode, hits[j].p.ReducedCode)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]ProductMatch, len(hits))
	for i, h := range hits {
		out[i] = ProductMatch{Product: h.p}
		if it, ok := st.Catalog.Inventory[h.p.ReducedCode]; ok {
			out[i].Item = &it
		}
	}
	return out
}
