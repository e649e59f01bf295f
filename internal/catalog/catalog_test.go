package catalog

import (
	"errors"
	"testing"

	"github.com/JonMunkholm/stockcount/internal/ingest"
	"github.com/JonMunkholm/stockcount/internal/stock"
)

func positionalTable(rows ...ingest.Row) *ingest.Table {
	return &ingest.Table{Format: ingest.FormatWorkbook, Positional: true, Rows: rows}
}

// ============================================================================
// Product Pass Tests
// ============================================================================

func TestProducts_Positional(t *testing.T) {
	table := positionalTable(
		ingest.Row{"C": "Cód. Reduzido", "D": "Descrição"},
		ingest.Row{"C": "000123", "D": "Dipirona 500mg", "K": "7891000315507"},
		ingest.Row{"C": "456", "B": "AAS 100mg", "K": "7.891234E+12"},
		ingest.Row{"C": "no digits here"},
		ingest.Row{"C": "123456789012345678901"},
	)

	idx, err := Products(table)
	if err != nil {
		t.Fatalf("Products() error: %v", err)
	}

	if len(idx.Products) != 2 {
		t.Fatalf("len(Products) = %d, want 2", len(idx.Products))
	}
	if idx.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", idx.Skipped)
	}

	p := idx.Products["123"]
	if p.Description != "Dipirona 500mg" || p.Barcode != "7891000315507" {
		t.Errorf("product 123 = %+v", p)
	}
	if idx.Barcodes["7891000315507"] != "123" {
		t.Errorf("barcode index = %q, want 123", idx.Barcodes["7891000315507"])
	}
	if idx.Barcodes["7891234000000"] != "456" {
		t.Errorf("scientific barcode not expanded: %v", idx.Barcodes)
	}
	if idx.Products["456"].Description != "AAS 100mg" {
		t.Errorf("description fallback to column B failed: %+v", idx.Products["456"])
	}
	if idx.Labels["DIPIRONA 500MG"] != "123" {
		t.Errorf("label index = %v", idx.Labels)
	}
}

func TestProducts_Semantic(t *testing.T) {
	table := &ingest.Table{
		Format:  ingest.FormatCSV,
		Headers: []string{"código", "cód. barras", "descrição"},
		Rows: []ingest.Row{
			{"código": "10", "cód. barras": "111", "descrição": "A"},
			{"código": "11", "cód. barras": "111", "descrição": "B"},
		},
	}

	idx, err := Products(table)
	if err != nil {
		t.Fatalf("Products() error: %v", err)
	}
	if idx.Barcodes["111"] != "11" {
		t.Errorf("barcode index should be last-write-wins, got %q", idx.Barcodes["111"])
	}
}

func TestProducts_NoValidRows(t *testing.T) {
	table := positionalTable(ingest.Row{"C": "Código"}, ingest.Row{"A": "x"})

	_, err := Products(table)
	var ce *CatalogError
	if !errors.As(err, &ce) || ce.Kind != NoValidProducts {
		t.Fatalf("Products() error = %v, want NoValidProducts", err)
	}
}

// ============================================================================
// Stock Pass Tests
// ============================================================================

func TestStock_AggregatesDuplicates(t *testing.T) {
	idx := &ProductIndex{
		Products: map[string]stock.Product{"77": {ReducedCode: "77", Description: "X"}},
		Barcodes: map[string]string{},
		Labels:   map[string]string{},
	}
	table := positionalTable(
		ingest.Row{"B": "77", "O": "12,5"},
		ingest.Row{"B": "0077", "O": "7,25"},
	)

	inv, err := Stock(table, idx, Options{})
	if err != nil {
		t.Fatalf("Stock() error: %v", err)
	}

	item := inv.Items["77"]
	if item.SystemQty != 19.75 {
		t.Errorf("SystemQty = %v, want 19.75", item.SystemQty)
	}
	if item.Status != stock.StatusPending || item.LastUpdated != nil {
		t.Errorf("new item should be pending and unstamped: %+v", item)
	}
	if inv.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", inv.Duplicates)
	}
}

func TestStock_ControlledColumn(t *testing.T) {
	idx := &ProductIndex{
		Products: map[string]stock.Product{"5": {ReducedCode: "5"}},
		Barcodes: map[string]string{},
		Labels:   map[string]string{},
	}
	row := ingest.Row{"B": "5", "L": "3", "O": "9"}

	general, err := Stock(positionalTable(row), idx, Options{})
	if err != nil {
		t.Fatalf("Stock(general) error: %v", err)
	}
	controlled, err := Stock(positionalTable(row), idx, Options{Controlled: true})
	if err != nil {
		t.Fatalf("Stock(controlled) error: %v", err)
	}

	if general.Items["5"].SystemQty != 9 {
		t.Errorf("general qty = %v, want 9", general.Items["5"].SystemQty)
	}
	if controlled.Items["5"].SystemQty != 3 {
		t.Errorf("controlled qty = %v, want 3", controlled.Items["5"].SystemQty)
	}
}

func TestStock_BackfillAndCreate(t *testing.T) {
	idx := &ProductIndex{
		Products: map[string]stock.Product{"1": {ReducedCode: "1"}},
		Barcodes: map[string]string{},
		Labels:   map[string]string{},
	}
	table := positionalTable(
		ingest.Row{"B": "1", "C": "Soro fisiologico", "O": "2"},
		ingest.Row{"B": "2", "C": "Gaze", "O": "1"},
	)

	inv, err := Stock(table, idx, Options{})
	if err != nil {
		t.Fatalf("Stock() error: %v", err)
	}

	if idx.Products["1"].Description != "Soro fisiologico" {
		t.Errorf("description not backfilled: %+v", idx.Products["1"])
	}
	if idx.Products["2"].Description != "Gaze" {
		t.Errorf("product not created for unknown code: %+v", idx.Products)
	}
	if inv.Backfilled != 1 || inv.Created != 1 {
		t.Errorf("Backfilled=%d Created=%d, want 1 and 1", inv.Backfilled, inv.Created)
	}
}

// ============================================================================
// Build Tests
// ============================================================================

func TestBuild_FromCSV(t *testing.T) {
	products, err := ingest.Parse([]byte("Reduzido;Cód. Barras;Descrição\n000123;7891000315507;Dipirona\n"), "products.csv", ingest.Options{})
	if err != nil {
		t.Fatalf("Parse(products) error: %v", err)
	}
	stockTable, err := ingest.Parse([]byte("Código;Qtd\n123;100,50\n"), "stock.csv", ingest.Options{})
	if err != nil {
		t.Fatalf("Parse(stock) error: %v", err)
	}

	cat, stats, err := Build(products, stockTable, Options{})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	item, ok := cat.Inventory["123"]
	if !ok {
		t.Fatalf("inventory missing 123: %v", cat.Inventory)
	}
	if item.SystemQty != 100.5 {
		t.Errorf("SystemQty = %v, want 100.5", item.SystemQty)
	}
	if cat.Barcodes["7891000315507"] != "123" {
		t.Errorf("barcode index = %v", cat.Barcodes)
	}
	if stats.Items != 1 || stats.Products != 1 {
		t.Errorf("stats = %+v", stats)
	}

	for code := range cat.Inventory {
		if _, ok := cat.Products[code]; !ok {
			t.Errorf("inventory code %s has no product", code)
		}
	}
}

func TestBuild_NoValidStock(t *testing.T) {
	products := positionalTable(ingest.Row{"C": "1"})
	stockTable := positionalTable(ingest.Row{"B": "Reduzido"})

	_, _, err := Build(products, stockTable, Options{})
	var ce *CatalogError
	if !errors.As(err, &ce) || ce.Kind != NoValidStock {
		t.Fatalf("Build() error = %v, want NoValidStock", err)
	}
}
