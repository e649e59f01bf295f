package core

import (
	"time"

	"github.com/JonMunkholm/stockcount/internal/stock"
)

// Step is the workflow position of a session.
type Step string

const (
	StepSetup      Step = "setup"
	StepConference Step = "conference"
	StepDivergence Step = "divergence"
	StepReport     Step = "report"
)

// Mode distinguishes the initial count from a recount of divergences.
type Mode string

const (
	ModeInitial Mode = "initial"
	ModeRecount Mode = "recount"
)

// Meta identifies who is counting and where.
type Meta struct {
	ID            string `json:"id"`
	OperatorEmail string `json:"operator_email"`
	OperatorName  string `json:"operator_name,omitempty"`
	Branch        string `json:"branch"`
	Area          string `json:"area,omitempty"`
	CompanyID     string `json:"company_id,omitempty"`
	Pharmacist    string `json:"pharmacist"`
	Manager       string `json:"manager"`
	Controlled    bool   `json:"controlled"`
}

// State is one counting session. Transition functions never modify their
// input; they return a new State whose inventory map is a fresh copy.
// Products, barcodes and labels are shared between states and must be
// treated as read-only.
type State struct {
	Catalog        *stock.Catalog
	RecountTargets map[string]struct{}
	Step           Step
	Mode           Mode
	Active         *stock.Product // Product awaiting a quantity, if any
	Accumulate     bool
	Meta           Meta
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewState starts a counting session over a freshly built catalog.
func NewState(cat *stock.Catalog, meta Meta, now time.Time) State {
	now = now.UTC()
	return State{
		Catalog:        cat,
		RecountTargets: map[string]struct{}{},
		Step:           StepConference,
		Mode:           ModeInitial,
		Meta:           meta,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// withInventory returns a copy of st whose catalog has its own inventory map.
func (st State) withInventory() State {
	cat := *st.Catalog
	cat.Inventory = make(map[string]stock.Item, len(st.Catalog.Inventory))
	for k, v := range st.Catalog.Inventory {
		cat.Inventory[k] = v
	}
	st.Catalog = &cat
	return st
}

// touch stamps the state as modified.
func (st State) touch(now time.Time) State {
	st.UpdatedAt = now.UTC()
	return st
}

// InRecount reports whether the session is counting recount targets.
func (st State) InRecount() bool {
	return st.Mode == ModeRecount
}

// IsTarget reports whether code is part of the current recount.
func (st State) IsTarget(code string) bool {
	_, ok := st.RecountTargets[code]
	return ok
}

// Targets returns the recount targets in code order.
func (st State) Targets() []string {
	codes := make([]string, 0, len(st.RecountTargets))
	for k := range st.RecountTargets {
		codes = append(codes, k)
	}
	stock.SortCodes(codes)
	return codes
}
