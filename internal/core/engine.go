package core

import (
	"math"
	"strings"
	"time"

	"github.com/JonMunkholm/stockcount/internal/normalize"
	"github.com/JonMunkholm/stockcount/internal/stock"
)

// ScanOutcome describes what a successful scan did.
type ScanOutcome struct {
	Product stock.Product `json:"product"`
	Item    stock.Item    `json:"item"`

	// Accumulated is true when the scan added one unit directly. Otherwise
	// the product is now active and awaits a quantity.
	Accumulated bool `json:"accumulated"`
}

// Scan resolves raw against the catalog. In accumulation mode the item's
// count is incremented by one; otherwise the product becomes active.
func Scan(st State, raw string, now time.Time) (State, ScanOutcome, error) {
	if err := requireStep(st, StepConference); err != nil {
		return st, ScanOutcome{}, err
	}

	input := strings.TrimSpace(raw)
	product, ok := st.Catalog.Lookup(input)
	if !ok {
		return st, ScanOutcome{}, &ScanError{Kind: NotFound, Input: input}
	}

	item, ok := st.Catalog.Inventory[product.ReducedCode]
	if !ok {
		return st, ScanOutcome{}, &ScanError{Kind: NotInStockList, Input: input, Code: product.ReducedCode}
	}

	if !st.Accumulate {
		next := st
		p := product
		next.Active = &p
		return next.touch(now), ScanOutcome{Product: product, Item: item}, nil
	}

	next := st.withInventory()
	item = item.Count(normalize.Add2(item.CountedQty, 1), now)
	next.Catalog.Inventory[item.ReducedCode] = item
	next.Active = nil

	return next.touch(now), ScanOutcome{Product: product, Item: item, Accumulated: true}, nil
}

// SubmitQuantity overwrites the counted quantity of the active product.
func SubmitQuantity(st State, qty float64, now time.Time) (State, stock.Item, error) {
	if err := requireStep(st, StepConference); err != nil {
		return st, stock.Item{}, err
	}
	if st.Active == nil {
		return st, stock.Item{}, &ScanError{Kind: NoActiveItem}
	}
	if math.IsNaN(qty) || math.IsInf(qty, 0) || qty < 0 {
		return st, stock.Item{}, &ScanError{Kind: InvalidQuantity, Code: st.Active.ReducedCode}
	}

	code := st.Active.ReducedCode
	item, ok := st.Catalog.Inventory[code]
	if !ok {
		return st, stock.Item{}, &ScanError{Kind: NotInStockList, Code: code}
	}

	next := st.withInventory()
	item = item.Count(qty, now)
	next.Catalog.Inventory[code] = item
	next.Active = nil

	return next.touch(now), item, nil
}

// CancelActive drops the product awaiting a quantity, if any.
func CancelActive(st State, now time.Time) State {
	if st.Active == nil {
		return st
	}
	st.Active = nil
	return st.touch(now)
}

// SetAccumulation toggles accumulation mode and clears the active product.
func SetAccumulation(st State, on bool, now time.Time) State {
	st.Accumulate = on
	st.Active = nil
	return st.touch(now)
}

// EnterReview moves from counting to the divergence review.
func EnterReview(st State, now time.Time) (State, error) {
	if err := requireStep(st, StepConference); err != nil {
		return st, err
	}
	st.Step = StepDivergence
	st.Active = nil
	return st.touch(now), nil
}

// ResumeCounting returns from the divergence review to counting.
func ResumeCounting(st State, now time.Time) (State, error) {
	if err := requireStep(st, StepDivergence); err != nil {
		return st, err
	}
	st.Step = StepConference
	return st.touch(now), nil
}
