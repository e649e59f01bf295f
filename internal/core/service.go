package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/stockcount/internal/catalog"
	"github.com/JonMunkholm/stockcount/internal/ingest"
	"github.com/JonMunkholm/stockcount/internal/session"
	"github.com/JonMunkholm/stockcount/internal/stock"
)

// ErrOperatorRequired is returned when a request carries no operator email.
var ErrOperatorRequired = errors.New("operator email required")

// ErrReportNotFound is returned when an operator has no finalized report.
var ErrReportNotFound = errors.New("report not found")

// Persister checkpoints sessions. Satisfied by *session.Coordinator.
type Persister interface {
	Load(ctx context.Context, key string) (*session.Record, bool)
	Save(ctx context.Context, rec *session.Record)
	Flush(ctx context.Context, key string) error
	FlushAll(ctx context.Context) error
	Clear(ctx context.Context, key string) error
	Status(key string) session.SaveStatus
}

// ReportSink stores finalized reports.
type ReportSink interface {
	SaveReport(ctx context.Context, report Report) error
}

// Branch is a company area that a store branch belongs to.
type Branch struct {
	CompanyID   string
	CompanyName string
	Area        string
}

// BranchDirectory resolves a branch name to its company and area.
type BranchDirectory interface {
	LookupBranch(ctx context.Context, name string) (Branch, bool, error)
}

// SessionLocker guards setup across server instances.
type SessionLocker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Recorder receives operational counters.
type Recorder interface {
	ScanResult(result string)
	SessionFinalized(mode string)
	RowsSkipped(file string, n int)
}

type nopRecorder struct{}

func (nopRecorder) ScanResult(string)       {}
func (nopRecorder) SessionFinalized(string) {}
func (nopRecorder) RowsSkipped(string, int) {}

// Deps are the collaborators of a Service. Only Sessions is required.
type Deps struct {
	Sessions Persister
	Reports  ReportSink
	Journal  Journal
	Branches BranchDirectory
	Locker   SessionLocker
	Metrics  Recorder
}

// Options tunes a Service.
type Options struct {
	MaxConcurrentSetups int
	SetupWait           time.Duration
	SetupTimeout        time.Duration
	LockTTL             time.Duration
	SearchLimit         int
}

// Service runs one counting session per operator. Engine transitions are
// pure; Service serializes them per operator, checkpoints every accepted
// transition and journals every operation.
type Service struct {
	sessions Persister
	reports  ReportSink
	journal  Journal
	branches BranchDirectory
	locker   SessionLocker
	metrics  Recorder
	limiter  *Limiter
	validate *validator.Validate
	opts     Options
	now      func() time.Time

	mu   sync.Mutex
	live map[string]*liveSession
}

type liveSession struct {
	mu            sync.Mutex
	loaded        bool
	state         *State
	pendingReport *Report // Finalized but not yet stored
	lastReport    *Report
}

// NewService creates a Service.
func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Sessions == nil {
		return nil, fmt.Errorf("core: session persister is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if opts.SetupTimeout <= 0 {
		opts.SetupTimeout = 2 * time.Minute
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = opts.SetupTimeout
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 20
	}

	return &Service{
		sessions: deps.Sessions,
		reports:  deps.Reports,
		journal:  deps.Journal,
		branches: deps.Branches,
		locker:   deps.Locker,
		metrics:  deps.Metrics,
		limiter:  NewLimiter(opts.MaxConcurrentSetups, opts.SetupWait),
		validate: newValidator(),
		opts:     opts,
		now:      time.Now,
		live:     make(map[string]*liveSession),
	}, nil
}

// Operator identifies who is counting.
type Operator struct {
	Email string `form:"operator_email" validate:"required,email,max=254"`
	Name  string `form:"operator_name" validate:"max=120"`
}

func (o Operator) key() string {
	return strings.ToLower(strings.TrimSpace(o.Email))
}

// File is one uploaded export.
type File struct {
	Name    string `form:"name" validate:"required"`
	Content []byte `form:"-"`
}

// SetupInput is the setup form.
type SetupInput struct {
	Branch     string `form:"branch" validate:"required,max=120"`
	Area       string `form:"area" validate:"max=120"`
	CompanyID  string `form:"company_id" validate:"max=64"`
	Pharmacist string `form:"pharmacist" validate:"required,max=120"`
	Manager    string `form:"manager" validate:"required,max=120"`
	Controlled bool   `form:"controlled"`
	Products   File   `form:"products"`
	Stock      File   `form:"stock"`
}

// SetupResult is returned by Setup.
type SetupResult struct {
	View  View          `json:"session"`
	Stats catalog.Stats `json:"catalog"`
}

// View is a read-only snapshot of a session.
type View struct {
	Meta           Meta               `json:"meta"`
	Step           Step               `json:"step"`
	Mode           Mode               `json:"mode"`
	Accumulate     bool               `json:"accumulate"`
	Active         *stock.Product     `json:"active,omitempty"`
	Products       []stock.Product    `json:"products"`
	Inventory      []stock.Item       `json:"inventory"`
	RecountTargets []string           `json:"recount_targets"`
	Stats          Stats              `json:"stats"`
	Counts         stock.Counts       `json:"counts"`
	SaveStatus     session.SaveStatus `json:"save_status"`
	PendingReport  bool               `json:"pending_report"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// FinalizeResult is returned by Finalize.
type FinalizeResult struct {
	Report Report `json:"report"`

	// Published is false when the report could not be stored yet. It is
	// retried on every autosave tick.
	Published bool `json:"published"`
}

// ProductMatch is one product search hit.
type ProductMatch struct {
	Product stock.Product `json:"product"`
	Item    *stock.Item   `json:"item,omitempty"`
}

// ============================================================================
// Session access
// ============================================================================

func (s *Service) entry(op Operator) (*liveSession, string, error) {
	key := op.key()
	if key == "" {
		return nil, "", ErrOperatorRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ls, ok := s.live[key]
	if !ok {
		ls = &liveSession{}
		s.live[key] = ls
	}
	return ls, key, nil
}

// acquire locks the operator's session, restoring it from the stores on
// first access. The returned func unlocks it.
func (s *Service) acquire(ctx context.Context, op Operator) (*liveSession, string, func(), error) {
	ls, key, err := s.entry(op)
	if err != nil {
		return nil, "", nil, err
	}

	ls.mu.Lock()
	if !ls.loaded {
		s.restore(ctx, key, op, ls)
		ls.loaded = true
	}
	return ls, key, ls.mu.Unlock, nil
}

func (s *Service) restore(ctx context.Context, key string, op Operator, ls *liveSession) {
	rec, ok := s.sessions.Load(ctx, key)
	if !ok {
		return
	}

	st, err := fromRecord(rec)
	if err != nil {
		slog.Warn("stored session not restorable", "user_email", key, "error", err)
		return
	}
	if st.Meta.OperatorEmail == "" {
		st.Meta.OperatorEmail = key
	}
	if st.Meta.OperatorName == "" {
		st.Meta.OperatorName = op.Name
	}
	st.Meta = s.resolveBranch(ctx, st.Meta)

	ls.state = &st
	s.record(ctx, &st, JournalEntry{
		Action:  ActionRestore,
		Outcome: "ok",
		Detail: map[string]any{
			"step":     string(st.Step),
			"mode":     string(st.Mode),
			"progress": session.ProgressScore(rec),
		},
	})
}

// resolveBranch fills a missing company or area from the branch directory.
func (s *Service) resolveBranch(ctx context.Context, meta Meta) Meta {
	if s.branches == nil || meta.Branch == "" || (meta.CompanyID != "" && meta.Area != "") {
		return meta
	}

	b, ok, err := s.branches.LookupBranch(ctx, meta.Branch)
	if err != nil {
		slog.Warn("branch lookup failed", "branch", meta.Branch, "error", err)
		return meta
	}
	if !ok {
		return meta
	}
	if meta.CompanyID == "" {
		meta.CompanyID = b.CompanyID
	}
	if meta.Area == "" {
		meta.Area = b.Area
	}
	return meta
}

// mutate applies fn to the operator's session and checkpoints the result.
// On error the session is left unchanged.
func (s *Service) mutate(ctx context.Context, op Operator, fn func(State, time.Time) (State, error)) (State, error) {
	ls, _, unlock, err := s.acquire(ctx, op)
	if err != nil {
		return State{}, err
	}
	defer unlock()

	if ls.state == nil {
		return State{}, &GateError{Kind: NoSession}
	}

	current := *ls.state
	next, err := fn(current, s.now())
	if err != nil {
		return current, err
	}

	ls.state = &next
	s.sessions.Save(ctx, toRecord(next))
	return next, nil
}

// read runs fn against the operator's session without changing it.
func (s *Service) read(ctx context.Context, op Operator, fn func(key string, ls *liveSession) error) error {
	ls, key, unlock, err := s.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(key, ls)
}

func (s *Service) view(key string, ls *liveSession) View {
	st := *ls.state
	rec := toRecord(st)

	var active *stock.Product
	if st.Active != nil {
		p := *st.Active
		active = &p
	}

	return View{
		Meta:           st.Meta,
		Step:           st.Step,
		Mode:           st.Mode,
		Accumulate:     st.Accumulate,
		Active:         active,
		Products:       rec.Products,
		Inventory:      rec.Inventory,
		RecountTargets: rec.RecountTargets,
		Stats:          ComputeStats(st),
		Counts:         st.Catalog.Tally(),
		SaveStatus:     s.sessions.Status(key),
		PendingReport:  ls.pendingReport != nil,
		CreatedAt:      st.CreatedAt,
		UpdatedAt:      st.UpdatedAt,
	}
}

// recordOp journals the outcome of an operation against st.
func (s *Service) recordOp(ctx context.Context, st State, entry JournalEntry, err error) {
	entry.Outcome = outcomeOf(err)
	if st.Catalog == nil {
		s.record(ctx, nil, entry)
		return
	}
	s.record(ctx, &st, entry)
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var se *ScanError
	if errors.As(err, &se) {
		return string(se.Kind)
	}
	var ge *GateError
	if errors.As(err, &ge) {
		return string(ge.Kind)
	}
	return "error"
}

// ============================================================================
// Setup
// ============================================================================

// Setup parses the two exports, builds the catalog and starts a new session
// for the operator, replacing any session in progress.
func (s *Service) Setup(ctx context.Context, op Operator, in SetupInput) (SetupResult, error) {
	if err := s.validateSetup(op, in); err != nil {
		return SetupResult{}, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return SetupResult{}, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.SetupTimeout)
	defer cancel()

	key := op.key()
	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, key, s.opts.LockTTL)
		if err != nil {
			return SetupResult{}, err
		}
		defer unlock()
	}

	start := time.Now()

	var products, stockTable *ingest.Table
	var g errgroup.Group
	g.Go(func() error {
		t, err := ingest.Parse(in.Products.Content, in.Products.Name, ingest.Options{Positional: true})
		products = t
		return err
	})
	g.Go(func() error {
		t, err := ingest.Parse(in.Stock.Content, in.Stock.Name, ingest.Options{Positional: true})
		stockTable = t
		return err
	})
	if err := g.Wait(); err != nil {
		s.recordOp(ctx, State{}, JournalEntry{Action: ActionSetup, UserEmail: key, Branch: in.Branch}, err)
		return SetupResult{}, err
	}

	cat, stats, err := catalog.Build(products, stockTable, catalog.Options{Controlled: in.Controlled})
	if err != nil {
		s.recordOp(ctx, State{}, JournalEntry{Action: ActionSetup, UserEmail: key, Branch: in.Branch}, err)
		return SetupResult{}, err
	}
	s.metrics.RowsSkipped("products", stats.SkippedProductRow)
	s.metrics.RowsSkipped("stock", stats.SkippedStockRow)

	meta := s.resolveBranch(ctx, Meta{
		ID:            uuid.NewString(),
		OperatorEmail: key,
		OperatorName:  strings.TrimSpace(op.Name),
		Branch:        strings.TrimSpace(in.Branch),
		Area:          strings.TrimSpace(in.Area),
		CompanyID:     strings.TrimSpace(in.CompanyID),
		Pharmacist:    strings.TrimSpace(in.Pharmacist),
		Manager:       strings.TrimSpace(in.Manager),
		Controlled:    in.Controlled,
	})
	st := NewState(cat, meta, s.now())

	ls, _, _ := s.entry(op)
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.state = &st
	ls.loaded = true
	s.sessions.Save(ctx, toRecord(st))
	if err := s.sessions.Flush(ctx, key); err != nil {
		slog.Warn("initial remote checkpoint failed", "user_email", key, "error", err)
	}

	slog.Info("counting session started",
		"user_email", key,
		"session_id", meta.ID,
		"branch", meta.Branch,
		"products", stats.Products,
		"items", stats.Items,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.recordOp(ctx, st, JournalEntry{
		Action: ActionSetup,
		Detail: map[string]any{
			"products_file": in.Products.Name,
			"stock_file":    in.Stock.Name,
			"controlled":    in.Controlled,
			"products":      stats.Products,
			"items":         stats.Items,
			"duplicates":    stats.Duplicates,
			"skipped":       stats.SkippedProductRow + stats.SkippedStockRow,
		},
	}, nil)

	return SetupResult{View: s.view(key, ls), Stats: stats}, nil
}

func (s *Service) validateSetup(op Operator, in SetupInput) error {
	var all ValidationErrors
	for _, obj := range []any{op, in} {
		err := s.validateStruct(obj)
		if err == nil {
			continue
		}
		var verrs ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		all = append(all, verrs...)
	}
	if len(all) > 0 {
		return all
	}
	return nil
}

// ============================================================================
// Reads
// ============================================================================

// Resume returns the operator's session, restoring it from the stores if
// this is the first access since startup.
func (s *Service) Resume(ctx context.Context, op Operator) (View, error) {
	return s.View(ctx, op)
}

// View returns a snapshot of the operator's session.
func (s *Service) View(ctx context.Context, op Operator) (View, error) {
	var v View
	err := s.read(ctx, op, func(key string, ls *liveSession) error {
		if ls.state == nil {
			return &GateError{Kind: NoSession}
		}
		v = s.view(key, ls)
		return nil
	})
	return v, err
}

// Stats returns the progress of the current phase.
func (s *Service) Stats(ctx context.Context, op Operator) (Stats, error) {
	var out Stats
	err := s.read(ctx, op, func(_ string, ls *liveSession) error {
		if ls.state == nil {
			return &GateError{Kind: NoSession}
		}
		out = ComputeStats(*ls.state)
		return nil
	})
	return out, err
}

// RecountPending lists recount targets that still need a count.
func (s *Service) RecountPending(ctx context.Context, op Operator) ([]PendingTarget, error) {
	var out []PendingTarget
	err := s.read(ctx, op, func(_ string, ls *liveSession) error {
		if ls.state == nil {
			return &GateError{Kind: NoSession}
		}
		out = RecountPending(*ls.state)
		return nil
	})
	return out, err
}

// SearchProducts finds products by code, barcode or description.
func (s *Service) SearchProducts(ctx context.Context, op Operator, query string) ([]ProductMatch, error) {
	var out []ProductMatch
	err := s.read(ctx, op, func(_ string, ls *liveSession) error {
		if ls.state == nil {
			return &GateError{Kind: NoSession}
		}
		out = searchProducts(*ls.state, query, s.opts.SearchLimit)
		return nil
	})
	return out, err
}

// LastReport returns the operator's most recent finalized report, published
// or not.
func (s *Service) LastReport(ctx context.Context, op Operator) (Report, error) {
	var out Report
	err := s.read(ctx, op, func(_ string, ls *liveSession) error {
		switch {
		case ls.pendingReport != nil:
			out = *ls.pendingReport
		case ls.lastReport != nil:
			out = *ls.lastReport
		default:
			return ErrReportNotFound
		}
		return nil
	})
	return out, err
}

// ============================================================================
// Counting
// ============================================================================

// Scan resolves a scanned or typed code.
func (s *Service) Scan(ctx context.Context, op Operator, raw string) (ScanOutcome, error) {
	var out ScanOutcome
	st, err := s.mutate(ctx, op, func(st State, now time.Time) (State, error) {
		next, o, err := Scan(st, raw, now)
		out = o
		return next, err
	})

	s.metrics.ScanResult(scanResult(out, err))
	entry := JournalEntry{Action: ActionScan, NewValue: raw, ReducedCode: out.Product.ReducedCode}
	if out.Accumulated {
		entry.Detail = map[string]any{"counted_qty": out.Item.CountedQty, "status": string(out.Item.Status)}
	}
	s.recordOp(ctx, st, entry, err)
	return out, err
}

func scanResult(out ScanOutcome, err error) string {
	switch {
	case err == nil && out.Accumulated:
		return "accumulated"
	case err == nil:
		return "identified"
	default:
		return outcomeOf(err)
	}
}

// SubmitQuantity records the counted quantity for the active product. raw
// may use a comma decimal separator.
func (s *Service) SubmitQuantity(ctx context.Context, op Operator, raw string) (stock.Item, error) {
	qty, ok := parseQuantity(raw)

	var item stock.Item
	var previous float64
	st, err := s.mutate(ctx, op, func(st State, now time.Time) (State, error) {
		if !ok && st.Active != nil && st.Step == StepConference {
			return st, &ScanError{Kind: InvalidQuantity, Input: raw, Code: st.Active.ReducedCode}
		}
		if st.Active != nil {
			previous = st.Catalog.Inventory[st.Active.ReducedCode].CountedQty
		}
		next, it, err := SubmitQuantity(st, qty, now)
		item = it
		return next, err
	})

	s.recordOp(ctx, st, JournalEntry{
		Action:      ActionQuantity,
		ReducedCode: item.ReducedCode,
		OldValue:    fmt.Sprint(previous),
		NewValue:    strings.TrimSpace(raw),
	}, err)
	return item, err
}

// CancelActive drops the product awaiting a quantity.
func (s *Service) CancelActive(ctx context.Context, op Operator) (View, error) {
	return s.transition(ctx, op, ActionCancel, func(st State, now time.Time) (State, error) {
		return CancelActive(st, now), nil
	})
}

// SetAccumulation turns accumulation mode on or off.
func (s *Service) SetAccumulation(ctx context.Context, op Operator, on bool) (View, error) {
	return s.transition(ctx, op, ActionAccumulation, func(st State, now time.Time) (State, error) {
		return SetAccumulation(st, on, now), nil
	})
}

// EnterReview opens the divergence review.
func (s *Service) EnterReview(ctx context.Context, op Operator) (View, error) {
	return s.transition(ctx, op, ActionReview, EnterReview)
}

// ResumeCounting leaves the divergence review.
func (s *Service) ResumeCounting(ctx context.Context, op Operator) (View, error) {
	return s.transition(ctx, op, ActionResume, ResumeCounting)
}

// InitiateRecount starts the recount of every divergent item.
func (s *Service) InitiateRecount(ctx context.Context, op Operator) (View, error) {
	return s.transition(ctx, op, ActionRecount, InitiateRecount)
}

func (s *Service) transition(ctx context.Context, op Operator, action JournalAction, fn func(State, time.Time) (State, error)) (View, error) {
	st, err := s.mutate(ctx, op, fn)

	entry := JournalEntry{Action: action}
	if err == nil && action == ActionRecount {
		entry.Detail = map[string]any{"targets": len(st.RecountTargets)}
	}
	s.recordOp(ctx, st, entry, err)
	if err != nil {
		return View{}, err
	}
	return s.View(ctx, op)
}

// ============================================================================
// Finalize / Restart
// ============================================================================

// Finalize closes the operator's session and publishes its report. When the
// report cannot be stored the session is kept and publishing is retried on
// every autosave tick.
func (s *Service) Finalize(ctx context.Context, op Operator) (FinalizeResult, error) {
	ls, key, unlock, err := s.acquire(ctx, op)
	if err != nil {
		return FinalizeResult{}, err
	}
	defer unlock()

	if ls.state == nil {
		return FinalizeResult{}, &GateError{Kind: NoSession}
	}

	current := *ls.state
	next, report, err := Finalize(current, s.now())
	if err != nil {
		s.recordOp(ctx, current, JournalEntry{Action: ActionFinalize}, err)
		return FinalizeResult{}, err
	}

	ls.state = &next
	s.sessions.Save(ctx, toRecord(next))
	s.metrics.SessionFinalized(string(report.Mode))
	s.recordOp(ctx, next, JournalEntry{
		Action: ActionFinalize,
		Detail: map[string]any{
			"report_id": report.ID,
			"total":     report.Summary.Total,
			"matched":   report.Summary.Matched,
			"divergent": report.Summary.Divergent,
		},
	}, nil)

	published := s.publish(ctx, key, ls, report)
	return FinalizeResult{Report: report, Published: published}, nil
}

// publish stores report and, on success, clears the finalized session from
// both stores. Callers hold ls.mu.
func (s *Service) publish(ctx context.Context, key string, ls *liveSession, report Report) bool {
	if s.reports != nil {
		if err := s.reports.SaveReport(ctx, report); err != nil {
			slog.Error("report publish failed",
				"user_email", key,
				"report_id", report.ID,
				"error", err,
			)
			ls.pendingReport = &report
			return false
		}
	}

	ls.pendingReport = nil
	ls.lastReport = &report

	// The operator may have started a new session while this report waited.
	if ls.state != nil && ls.state.Meta.ID == report.SessionID {
		if err := s.sessions.Clear(ctx, key); err != nil {
			slog.Warn("clearing finalized session failed", "user_email", key, "error", err)
		}
		ls.state = nil
	}

	s.record(ctx, nil, JournalEntry{
		Action:    ActionReportPublish,
		SessionID: report.SessionID,
		UserEmail: report.Meta.OperatorEmail,
		UserName:  report.Meta.OperatorName,
		Branch:    report.Meta.Branch,
		Outcome:   "ok",
		Detail:    map[string]any{"report_id": report.ID},
	})
	return true
}

// Restart discards the operator's session from memory and both stores.
func (s *Service) Restart(ctx context.Context, op Operator) error {
	ls, key, unlock, err := s.acquire(ctx, op)
	if err != nil {
		return err
	}
	defer unlock()

	var st State
	if ls.state != nil {
		st = *ls.state
	}
	ls.state = nil

	err = s.sessions.Clear(ctx, key)
	entry := JournalEntry{Action: ActionRestart, UserEmail: key}
	s.recordOp(ctx, st, entry, err)
	if err != nil {
		return fmt.Errorf("restart session: %w", err)
	}
	return nil
}

// ============================================================================
// Background work
// ============================================================================

// Autosave retries unpublished reports and flushes the pending checkpoints
// of every live session.
func (s *Service) Autosave(ctx context.Context) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.live))
	sessions := make([]*liveSession, 0, len(s.live))
	for k, ls := range s.live {
		keys = append(keys, k)
		sessions = append(sessions, ls)
	}
	s.mu.Unlock()

	for i, ls := range sessions {
		ls.mu.Lock()
		if ls.pendingReport != nil {
			s.publish(ctx, keys[i], ls, *ls.pendingReport)
		}
		if ls.state != nil {
			if err := s.sessions.Flush(ctx, keys[i]); err != nil {
				slog.Warn("autosave flush incomplete", "user_email", keys[i], "error", err)
			}
		}
		ls.mu.Unlock()
	}
}

// Shutdown waits for in-flight setups and flushes everything pending.
func (s *Service) Shutdown(ctx context.Context) error {
	status := s.limiter.Status()
	if status.Active > 0 {
		slog.Info("waiting for setups to complete", "active", status.Active)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("setups did not complete in time", "error", err)
		}
	}

	s.Autosave(ctx)
	if err := s.sessions.FlushAll(ctx); err != nil {
		slog.Warn("session flush incomplete", "error", err)
	}
	return ctx.Err()
}

// LimiterStatus reports setup concurrency for health output.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}
