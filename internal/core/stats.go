package core

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/stockcount/internal/stock"
)

// Stats is the progress of the current phase.
type Stats struct {
	Counted   int  `json:"counted"`
	Total     int  `json:"total"`
	Percent   int  `json:"percent"`
	IsRecount bool `json:"is_recount"`
}

// ComputeStats measures progress over the recount targets in recount mode and
// over the whole inventory otherwise. An item counts once it has a timestamp.
func ComputeStats(st State) Stats {
	var s Stats

	if st.InRecount() {
		s.IsRecount = true
		s.Total = len(st.RecountTargets)
		for code := range st.RecountTargets {
			if item, ok := st.Catalog.Inventory[code]; ok && item.LastUpdated != nil {
				s.Counted++
			}
		}
	} else {
		for _, item := range st.Catalog.Inventory {
			s.Total++
			if item.LastUpdated != nil {
				s.Counted++
			}
		}
	}

	if s.Total > 0 {
		s.Percent = int(math.Round(float64(s.Counted) / float64(s.Total) * 100))
	}
	return s
}

// Summary is the headline of a finalized report.
type Summary struct {
	Total     int `json:"total"`
	Matched   int `json:"matched"`
	Divergent int `json:"divergent"`
	Pending   int `json:"pending"`
	Percent   int `json:"percent"`
}

// ReportItem is one inventory line of a finalized report.
type ReportItem struct {
	ReducedCode string       `json:"reduced_code"`
	Barcode     string       `json:"barcode,omitempty"`
	Description string       `json:"description,omitempty"`
	SystemQty   float64      `json:"system_qty"`
	CountedQty  float64      `json:"counted_qty"`
	Status      stock.Status `json:"status"`
	Difference  float64      `json:"difference"`
	LastUpdated *time.Time   `json:"last_updated,omitempty"`
}

// Report is the immutable result of a finalized session.
type Report struct {
	ID          string       `json:"id"`
	SessionID   string       `json:"session_id"`
	Meta        Meta         `json:"meta"`
	Mode        Mode         `json:"mode"`
	Summary     Summary      `json:"summary"`
	Items       []ReportItem `json:"items"`
	StartedAt   time.Time    `json:"started_at"`
	FinalizedAt time.Time    `json:"finalized_at"`
}

var statusOrder = map[stock.Status]int{
	stock.StatusDivergent: 0,
	stock.StatusPending:   1,
	stock.StatusMatched:   2,
}

// Finalize closes the session and produces its report. It is refused while
// items are pending, and while divergences remain unless a recount was run.
func Finalize(st State, now time.Time) (State, Report, error) {
	if err := requireStep(st, StepConference, StepDivergence); err != nil {
		return st, Report{}, err
	}

	counts := st.Catalog.Tally()
	if counts.Pending > 0 {
		return st, Report{}, &GateError{Kind: PendingItemsRemain, Pending: counts.Pending}
	}
	if counts.Divergent > 0 && !st.InRecount() {
		return st, Report{}, &GateError{Kind: RecountRequired}
	}

	now = now.UTC()
	report := Report{
		ID:        uuid.NewString(),
		SessionID: st.Meta.ID,
		Meta:      st.Meta,
		Mode:      st.Mode,
		Summary: Summary{
			Total:     counts.Total,
			Matched:   counts.Matched,
			Divergent: counts.Divergent,
			Pending:   counts.Pending,
			Percent:   ComputeStats(st).Percent,
		},
		Items:       reportItems(st),
		StartedAt:   st.CreatedAt,
		FinalizedAt: now,
	}

	next := st
	next.Step = StepReport
	next.Active = nil
	return next.touch(now), report, nil
}

func reportItems(st State) []ReportItem {
	items := make([]ReportItem, 0, len(st.Catalog.Inventory))
	for code, it := range st.Catalog.Inventory {
		p := st.Catalog.Products[code]
		items = append(items, ReportItem{
			ReducedCode: code,
			Barcode:     p.Barcode,
			Description: p.Description,
			SystemQty:   it.SystemQty,
			CountedQty:  it.CountedQty,
			Status:      it.Status,
			Difference:  it.Difference(),
			LastUpdated: it.LastUpdated,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		oi, oj := statusOrder[items[i].Status], statusOrder[items[j].Status]
		if oi != oj {
			return oi < oj
		}
		a, b := items[i].ReducedCode, items[j].ReducedCode
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return items
}
