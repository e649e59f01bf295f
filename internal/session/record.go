// Package session checkpoints counting sessions to two stores, a fast local
// cache and a durable remote store, and reconciles them on load.
//
// Either store may be stale or missing a session. On load both are read,
// the copy with more counting progress wins, and it is copied verbatim to
// the other store. Saves go to the local store immediately and to the remote
// store after a quiet period, so bursts of scans produce one remote write.
package session

import (
	"time"

	"github.com/JonMunkholm/stockcount/internal/stock"
)

// Record is the persisted form of a counting session. The JSON shape is
// shared by every store.
type Record struct {
	ID             string            `json:"id"`
	UserEmail      string            `json:"user_email"`
	UserName       string            `json:"user_name,omitempty"`
	Branch         string            `json:"branch"`
	Area           string            `json:"area,omitempty"`
	CompanyID      string            `json:"company_id,omitempty"`
	Pharmacist     string            `json:"pharmacist"`
	Manager        string            `json:"manager"`
	Controlled     bool              `json:"controlled,omitempty"`
	Products       []stock.Product   `json:"products"`
	Barcodes       map[string]string `json:"barcodes,omitempty"`
	Inventory      []stock.Item      `json:"inventory"`
	RecountTargets []string          `json:"recount_targets"`
	Step           string            `json:"step"`
	Mode           string            `json:"mode,omitempty"`
	Accumulate     bool              `json:"accumulate"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Key is the store key of a record.
func (r *Record) Key() string {
	return r.UserEmail
}

// Restorable reports whether r carries enough data to resume counting.
func (r *Record) Restorable() bool {
	return r != nil && len(r.Products) > 0 && len(r.Inventory) > 0
}

// ProgressScore counts inventory entries that show any sign of counting
// work: a timestamp, a positive count, or a non-pending status.
func ProgressScore(r *Record) int {
	if r == nil {
		return 0
	}
	score := 0
	for _, it := range r.Inventory {
		if it.LastUpdated != nil || it.CountedQty > 0 || it.Status != stock.StatusPending {
			score++
		}
	}
	return score
}

// Source names the store a candidate was read from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Candidate is a record read from one store.
type Candidate struct {
	Source Source
	Record *Record
}

// Resolve orders the available records by preference. The local copy comes
// first when it has strictly more progress, or equal progress and a strictly
// newer timestamp; the remote copy comes first otherwise. Nil records are
// omitted.
func Resolve(local, remote *Record) []Candidate {
	var out []Candidate

	switch {
	case local == nil && remote == nil:
		return out
	case remote == nil:
		return append(out, Candidate{SourceLocal, local})
	case local == nil:
		return append(out, Candidate{SourceRemote, remote})
	}

	ls, rs := ProgressScore(local), ProgressScore(remote)
	localFirst := ls > rs || (ls == rs && local.UpdatedAt.After(remote.UpdatedAt))

	if localFirst {
		return append(out, Candidate{SourceLocal, local}, Candidate{SourceRemote, remote})
	}
	return append(out, Candidate{SourceRemote, remote}, Candidate{SourceLocal, local})
}
