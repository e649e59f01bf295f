package core

import (
	"context"
	"log/slog"
	"time"
)

// JournalAction is the type of operation being journaled.
type JournalAction string

const (
	ActionSetup         JournalAction = "setup"
	ActionRestore       JournalAction = "restore"
	ActionScan          JournalAction = "scan"
	ActionQuantity      JournalAction = "quantity"
	ActionCancel        JournalAction = "cancel"
	ActionAccumulation  JournalAction = "accumulation"
	ActionReview        JournalAction = "review"
	ActionResume        JournalAction = "resume"
	ActionRecount       JournalAction = "recount"
	ActionFinalize      JournalAction = "finalize"
	ActionReportPublish JournalAction = "report_publish"
	ActionRestart       JournalAction = "restart"
)

// JournalSeverity ranks journal entries for review.
type JournalSeverity string

const (
	SeverityLow      JournalSeverity = "low"
	SeverityMedium   JournalSeverity = "medium"
	SeverityHigh     JournalSeverity = "high"
	SeverityCritical JournalSeverity = "critical"
)

// JournalEntry is one operation record.
type JournalEntry struct {
	ID          string          `json:"id"`
	Action      JournalAction   `json:"action"`
	Severity    JournalSeverity `json:"severity"`
	SessionID   string          `json:"sessionId,omitempty"`
	UserEmail   string          `json:"userEmail,omitempty"`
	UserName    string          `json:"userName,omitempty"`
	IPAddress   string          `json:"ipAddress,omitempty"`
	UserAgent   string          `json:"userAgent,omitempty"`
	Branch      string          `json:"branch,omitempty"`
	ReducedCode string          `json:"reducedCode,omitempty"`
	OldValue    string          `json:"oldValue,omitempty"`
	NewValue    string          `json:"newValue,omitempty"`
	Outcome     string          `json:"outcome,omitempty"`
	Detail      map[string]any  `json:"detail,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// JournalFilter narrows a journal query.
type JournalFilter struct {
	UserEmail string
	SessionID string
	Action    JournalAction
	StartTime time.Time
	EndTime   time.Time
	Limit     int
	Offset    int
}

// DefaultJournalLimit caps journal queries without an explicit limit.
const DefaultJournalLimit = 100

// Journal stores operation records.
type Journal interface {
	Append(ctx context.Context, entry JournalEntry) error
	List(ctx context.Context, filter JournalFilter) ([]JournalEntry, error)
}

// determineSeverity returns the severity for an action.
func determineSeverity(action JournalAction) JournalSeverity {
	switch action {
	case ActionSetup, ActionRecount, ActionFinalize, ActionReportPublish:
		return SeverityHigh
	case ActionRestart:
		return SeverityCritical
	case ActionScan, ActionCancel, ActionAccumulation, ActionReview, ActionResume, ActionRestore:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// record journals one operation. Journal failures are logged and never fail
// the operation itself.
func (s *Service) record(ctx context.Context, st *State, entry JournalEntry) {
	entry.Severity = determineSeverity(entry.Action)
	req := RequestMetaFromContext(ctx)
	entry.IPAddress = req.IPAddress
	entry.UserAgent = req.UserAgent
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if st != nil {
		entry.SessionID = st.Meta.ID
		entry.UserEmail = st.Meta.OperatorEmail
		entry.UserName = st.Meta.OperatorName
		entry.Branch = st.Meta.Branch
	}

	if s.journal == nil {
		return
	}
	if err := s.journal.Append(ctx, entry); err != nil {
		slog.Warn("journal append failed",
			"action", string(entry.Action),
			"user_email", entry.UserEmail,
			"error", err,
		)
	}
}

// JournalEntries lists journal entries, newest first.
func (s *Service) JournalEntries(ctx context.Context, filter JournalFilter) ([]JournalEntry, error) {
	if s.journal == nil {
		return []JournalEntry{}, nil
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultJournalLimit
	}
	return s.journal.List(ctx, filter)
}
