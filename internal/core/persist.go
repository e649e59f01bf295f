package core

import (
	"fmt"
	"sort"

	"github.com/JonMunkholm/stockcount/internal/normalize"
	"github.com/JonMunkholm/stockcount/internal/session"
	"github.com/JonMunkholm/stockcount/internal/stock"
)

// toRecord converts a state into its persisted form. Slices are ordered by
// code so equal states serialize identically.
func toRecord(st State) *session.Record {
	cat := st.Catalog

	products := make([]stock.Product, 0, len(cat.Products))
	for _, p := range cat.Products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		return codeLess(products[i].ReducedCode, products[j].ReducedCode)
	})

	inventory := make([]stock.Item, 0, len(cat.Inventory))
	for _, code := range cat.Codes() {
		inventory = append(inventory, cat.Inventory[code])
	}

	barcodes := make(map[string]string, len(cat.Barcodes))
	for k, v := range cat.Barcodes {
		barcodes[k] = v
	}

	return &session.Record{
		ID:             st.Meta.ID,
		UserEmail:      st.Meta.OperatorEmail,
		UserName:       st.Meta.OperatorName,
		Branch:         st.Meta.Branch,
		Area:           st.Meta.Area,
		CompanyID:      st.Meta.CompanyID,
		Pharmacist:     st.Meta.Pharmacist,
		Manager:        st.Meta.Manager,
		Controlled:     st.Meta.Controlled,
		Products:       products,
		Barcodes:       barcodes,
		Inventory:      inventory,
		RecountTargets: st.Targets(),
		Step:           string(st.Step),
		Mode:           string(st.Mode),
		Accumulate:     st.Accumulate,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
	}
}

func codeLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// fromRecord rebuilds a state from its persisted form. A session saved in
// the report step resumes in conference: the report was never published.
func fromRecord(rec *session.Record) (State, error) {
	if !rec.Restorable() {
		return State{}, fmt.Errorf("session %q has no products or inventory", rec.ID)
	}

	cat := stock.NewCatalog()
	for _, p := range rec.Products {
		cat.Products[p.ReducedCode] = p
		if label := normalize.Label(p.Description); label != "" {
			if _, taken := cat.Labels[label]; !taken {
				cat.Labels[label] = p.ReducedCode
			}
		}
	}

	if len(rec.Barcodes) > 0 {
		for k, v := range rec.Barcodes {
			cat.Barcodes[k] = v
		}
	} else {
		for _, p := range rec.Products {
			if p.Barcode != "" {
				cat.Barcodes[p.Barcode] = p.ReducedCode
			}
		}
	}

	for _, it := range rec.Inventory {
		// Status is derived from the timestamp and quantities, whatever the
		// record says.
		if it.LastUpdated == nil {
			it.Status = stock.StatusPending
		} else {
			it.Status = stock.StatusFor(it.SystemQty, it.CountedQty)
		}
		cat.Inventory[it.ReducedCode] = it
		if _, ok := cat.Products[it.ReducedCode]; !ok {
			cat.Products[it.ReducedCode] = stock.Product{ReducedCode: it.ReducedCode}
		}
	}

	targets := make(map[string]struct{}, len(rec.RecountTargets))
	for _, code := range rec.RecountTargets {
		if _, ok := cat.Inventory[code]; ok {
			targets[code] = struct{}{}
		}
	}

	mode := Mode(rec.Mode)
	if mode != ModeInitial && mode != ModeRecount {
		// Records written without a mode carry it implicitly in the targets.
		mode = ModeInitial
		if len(targets) > 0 {
			mode = ModeRecount
		}
	}
	if mode == ModeInitial {
		targets = map[string]struct{}{}
	}

	step := Step(rec.Step)
	switch step {
	case StepConference, StepDivergence:
	default:
		step = StepConference
	}

	return State{
		Catalog:        cat,
		RecountTargets: targets,
		Step:           step,
		Mode:           mode,
		Accumulate:     rec.Accumulate,
		Meta: Meta{
			ID:            rec.ID,
			OperatorEmail: rec.UserEmail,
			OperatorName:  rec.UserName,
			Branch:        rec.Branch,
			Area:          rec.Area,
			CompanyID:     rec.CompanyID,
			Pharmacist:    rec.Pharmacist,
			Manager:       rec.Manager,
			Controlled:    rec.Controlled,
		},
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}
