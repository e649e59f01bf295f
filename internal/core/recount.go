package core

import (
	"time"

	"github.com/JonMunkholm/stockcount/internal/stock"
)

// InitiateRecount resets every divergent item to pending and makes those
// items the recount targets. It is refused while any item is pending.
func InitiateRecount(st State, now time.Time) (State, error) {
	if err := requireStep(st, StepConference, StepDivergence); err != nil {
		return st, err
	}

	counts := st.Catalog.Tally()
	if counts.Pending > 0 {
		return st, &GateError{Kind: PendingItemsRemain, Pending: counts.Pending}
	}
	if counts.Divergent == 0 {
		return st, &GateError{Kind: NothingToRecount}
	}

	next := st.withInventory()
	targets := make(map[string]struct{}, counts.Divergent)
	for code, item := range next.Catalog.Inventory {
		if item.Status != stock.StatusDivergent {
			continue
		}
		next.Catalog.Inventory[code] = item.Reset()
		targets[code] = struct{}{}
	}

	next.RecountTargets = targets
	next.Mode = ModeRecount
	next.Step = StepConference
	next.Active = nil

	return next.touch(now), nil
}

// PendingTarget is a recount target not yet recounted.
type PendingTarget struct {
	ReducedCode string `json:"reduced_code"`
	Barcode     string `json:"barcode"`
	Description string `json:"description"`
}

// RecountPending lists recount targets still awaiting a count, in code order.
// It is empty outside recount mode.
func RecountPending(st State) []PendingTarget {
	if !st.InRecount() {
		return []PendingTarget{}
	}

	list := make([]PendingTarget, 0)
	for _, code := range st.Targets() {
		item, ok := st.Catalog.Inventory[code]
		if !ok || item.LastUpdated != nil {
			continue
		}

		p := st.Catalog.Products[code]
		target := PendingTarget{ReducedCode: code, Barcode: p.Barcode, Description: p.Description}
		if target.Barcode == "" {
			target.Barcode = "-"
		}
		if target.Description == "" {
			target.Description = code
		}
		list = append(list, target)
	}
	return list
}
