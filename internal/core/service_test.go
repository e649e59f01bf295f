package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/stockcount/internal/session"
	"github.com/JonMunkholm/stockcount/internal/stock"
	"github.com/JonMunkholm/stockcount/internal/store/memory"
)

const (
	productsCSV = "Reduzido;Cód. Barras;Descrição\n1;7891000000011;Dipirona 500mg\n2;7891000000028;Amoxicilina 250mg\n3;;Soro fisiologico\n"
	stockCSV    = "Código;Qtd\n1;10\n2;5\n"
)

type fakeSink struct {
	mu      sync.Mutex
	fail    bool
	reports []Report
}

func (f *fakeSink) SaveReport(_ context.Context, r Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection refused")
	}
	f.reports = append(f.reports, r)
	return nil
}

func (f *fakeSink) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

type fakeJournal struct {
	mu      sync.Mutex
	entries []JournalEntry
}

func (f *fakeJournal) Append(_ context.Context, e JournalEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeJournal) List(_ context.Context, filter JournalFilter) ([]JournalEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []JournalEntry
	for _, e := range f.entries {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeJournal) has(action JournalAction, outcome string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Action == action && e.Outcome == outcome {
			return true
		}
	}
	return false
}

type fakeBranches map[string]Branch

func (f fakeBranches) LookupBranch(_ context.Context, name string) (Branch, bool, error) {
	b, ok := f[strings.ToLower(name)]
	return b, ok, nil
}

type testEnv struct {
	svc     *Service
	local   *memory.Store
	remote  *memory.Store
	sink    *fakeSink
	journal *fakeJournal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		local:   memory.New(0),
		remote:  memory.New(0),
		sink:    &fakeSink{},
		journal: &fakeJournal{},
	}
	env.svc = env.newService(t)
	return env
}

// newService builds a fresh service over the environment's stores, as a
// restarted server would.
func (e *testEnv) newService(t *testing.T) *Service {
	t.Helper()
	coord := session.NewCoordinator(e.local, e.remote, session.Options{QuietPeriod: time.Hour})
	svc, err := NewService(Deps{
		Sessions: coord,
		Reports:  e.sink,
		Journal:  e.journal,
		Branches: fakeBranches{"centro": {CompanyID: "c-1", CompanyName: "Rede Sul", Area: "Area 2"}},
	}, Options{})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

var testOperator = Operator{Email: "Op@Example.com", Name: "Operator"}

func validSetup() SetupInput {
	return SetupInput{
		Branch:     "Centro",
		Pharmacist: "Ana",
		Manager:    "Bruno",
		Products:   File{Name: "products.csv", Content: []byte(productsCSV)},
		Stock:      File{Name: "stock.csv", Content: []byte(stockCSV)},
	}
}

func (e *testEnv) setup(t *testing.T) View {
	t.Helper()
	res, err := e.svc.Setup(context.Background(), testOperator, validSetup())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return res.View
}

func (e *testEnv) count(t *testing.T, code, qty string) stock.Item {
	t.Helper()
	ctx := context.Background()
	if _, err := e.svc.Scan(ctx, testOperator, code); err != nil {
		t.Fatalf("Scan(%q) error = %v", code, err)
	}
	item, err := e.svc.SubmitQuantity(ctx, testOperator, qty)
	if err != nil {
		t.Fatalf("SubmitQuantity(%q) error = %v", qty, err)
	}
	return item
}

// ============================================================================
// Setup
// ============================================================================

func TestService_Setup(t *testing.T) {
	env := newTestEnv(t)
	view := env.setup(t)

	if view.Step != StepConference || view.Mode != ModeInitial {
		t.Errorf("step/mode = %s/%s", view.Step, view.Mode)
	}
	if view.Meta.OperatorEmail != "op@example.com" {
		t.Errorf("operator = %q, want lower-cased email", view.Meta.OperatorEmail)
	}
	if view.Meta.CompanyID != "c-1" || view.Meta.Area != "Area 2" {
		t.Errorf("branch backfill = %q/%q", view.Meta.CompanyID, view.Meta.Area)
	}
	if len(view.Inventory) != 2 || len(view.Products) != 3 {
		t.Errorf("inventory/products = %d/%d, want 2/3", len(view.Inventory), len(view.Products))
	}
	if view.Stats.Total != 2 {
		t.Errorf("stats total = %d, want 2", view.Stats.Total)
	}
	if env.local.Len() != 1 || env.remote.Len() != 1 {
		t.Errorf("stores local/remote = %d/%d, want both checkpointed", env.local.Len(), env.remote.Len())
	}
	if !env.journal.has(ActionSetup, "ok") {
		t.Error("setup not journaled")
	}
}

func TestService_SetupValidation(t *testing.T) {
	tests := []struct {
		name   string
		op     Operator
		mutate func(*SetupInput)
		field  string
	}{
		{name: "missing branch", op: testOperator, mutate: func(in *SetupInput) { in.Branch = "" }, field: "branch"},
		{name: "missing manager", op: testOperator, mutate: func(in *SetupInput) { in.Manager = "" }, field: "manager"},
		{name: "missing product file name", op: testOperator, mutate: func(in *SetupInput) { in.Products.Name = "" }, field: "products.name"},
		{name: "bad email", op: Operator{Email: "not-an-email"}, mutate: func(*SetupInput) {}, field: "operator_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			in := validSetup()
			tt.mutate(&in)

			_, err := env.svc.Setup(context.Background(), tt.op, in)
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Setup() error = %v, want ValidationErrors", err)
			}
			found := false
			for _, ve := range verrs {
				if ve.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors %v do not name field %q", verrs, tt.field)
			}
		})
	}
}

func TestService_SetupEmptyFile(t *testing.T) {
	env := newTestEnv(t)
	in := validSetup()
	in.Stock.Content = nil

	_, err := env.svc.Setup(context.Background(), testOperator, in)
	if got := MapError(err).Code; got != "ING001" {
		t.Errorf("MapError(Setup()) code = %q, want ING001 (err=%v)", got, err)
	}
	if _, err := env.svc.View(context.Background(), testOperator); gateKind(err) != NoSession {
		t.Errorf("View() after failed setup kind = %q, want %q", gateKind(err), NoSession)
	}
}

// ============================================================================
// Counting
// ============================================================================

func TestService_OperatorRequired(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Scan(context.Background(), Operator{Email: "  "}, "1")
	if !errors.Is(err, ErrOperatorRequired) {
		t.Errorf("Scan() error = %v, want ErrOperatorRequired", err)
	}
}

func TestService_NoSession(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Scan(context.Background(), testOperator, "1")
	if gateKind(err) != NoSession {
		t.Errorf("Scan() kind = %q, want %q", gateKind(err), NoSession)
	}
}

func TestService_SubmitQuantity(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)
	ctx := context.Background()

	if _, err := env.svc.SubmitQuantity(ctx, testOperator, "3"); scanKind(err) != NoActiveItem {
		t.Errorf("SubmitQuantity() without scan kind = %q, want %q", scanKind(err), NoActiveItem)
	}

	if _, err := env.svc.Scan(ctx, testOperator, "7891000000011"); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if _, err := env.svc.SubmitQuantity(ctx, testOperator, "abc"); scanKind(err) != InvalidQuantity {
		t.Errorf("SubmitQuantity(abc) kind = %q, want %q", scanKind(err), InvalidQuantity)
	}

	item, err := env.svc.SubmitQuantity(ctx, testOperator, "9,5")
	if err != nil {
		t.Fatalf("SubmitQuantity(9,5) error = %v", err)
	}
	if item.CountedQty != 9.5 || item.Status != stock.StatusDivergent {
		t.Errorf("item = %+v, want 9.5 divergent", item)
	}
	if !env.journal.has(ActionQuantity, string(InvalidQuantity)) {
		t.Error("rejected quantity not journaled")
	}
}

func TestService_ResumeAfterRestart(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)
	env.count(t, "1", "8")

	// A new process with empty memory restores from the stores.
	restarted := env.newService(t)
	view, err := restarted.Resume(context.Background(), testOperator)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	var found bool
	for _, it := range view.Inventory {
		if it.ReducedCode == "1" {
			found = true
			if it.CountedQty != 8 || it.Status != stock.StatusDivergent {
				t.Errorf("restored item = %+v, want 8 divergent", it)
			}
		}
	}
	if !found {
		t.Fatal("restored inventory missing code 1")
	}
	if view.Stats.Counted != 1 {
		t.Errorf("restored counted = %d, want 1", view.Stats.Counted)
	}
	if !env.journal.has(ActionRestore, "ok") {
		t.Error("restore not journaled")
	}
}

func TestService_SearchProducts(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)

	got, err := env.svc.SearchProducts(context.Background(), testOperator, "amoxi")
	if err != nil {
		t.Fatalf("SearchProducts() error = %v", err)
	}
	if len(got) != 1 || got[0].Product.ReducedCode != "2" || got[0].Item == nil {
		t.Errorf("SearchProducts(amoxi) = %+v", got)
	}

	got, _ = env.svc.SearchProducts(context.Background(), testOperator, "3")
	if len(got) == 0 || got[0].Product.ReducedCode != "3" || got[0].Item != nil {
		t.Errorf("SearchProducts(3) = %+v, want product 3 without stock item", got)
	}
}

// ============================================================================
// Finalize
// ============================================================================

func TestService_FinalizePublishesAndClears(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)
	ctx := context.Background()

	env.count(t, "1", "10")
	env.count(t, "2", "4")

	if _, err := env.svc.Finalize(ctx, testOperator); gateKind(err) != RecountRequired {
		t.Fatalf("Finalize() kind = %q, want %q", gateKind(err), RecountRequired)
	}

	if _, err := env.svc.EnterReview(ctx, testOperator); err != nil {
		t.Fatalf("EnterReview() error = %v", err)
	}
	view, err := env.svc.InitiateRecount(ctx, testOperator)
	if err != nil {
		t.Fatalf("InitiateRecount() error = %v", err)
	}
	if view.Mode != ModeRecount || len(view.RecountTargets) != 1 {
		t.Fatalf("after recount mode = %s targets = %v", view.Mode, view.RecountTargets)
	}

	pending, _ := env.svc.RecountPending(ctx, testOperator)
	if len(pending) != 1 || pending[0].ReducedCode != "2" {
		t.Errorf("RecountPending() = %+v", pending)
	}

	env.count(t, "2", "5")

	res, err := env.svc.Finalize(ctx, testOperator)
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if !res.Published || env.sink.count() != 1 {
		t.Errorf("published = %v, sink reports = %d", res.Published, env.sink.count())
	}
	if res.Report.Summary.Matched != 2 || res.Report.Meta.Pharmacist != "Ana" {
		t.Errorf("report = %+v", res.Report.Summary)
	}
	if env.local.Len() != 0 || env.remote.Len() != 0 {
		t.Errorf("stores local/remote = %d/%d, want cleared", env.local.Len(), env.remote.Len())
	}
	if _, err := env.svc.View(ctx, testOperator); gateKind(err) != NoSession {
		t.Errorf("View() after finalize kind = %q, want %q", gateKind(err), NoSession)
	}

	last, err := env.svc.LastReport(ctx, testOperator)
	if err != nil || last.ID != res.Report.ID {
		t.Errorf("LastReport() = %q, %v", last.ID, err)
	}
}

func TestService_FinalizeRetriesUnpublishedReport(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)
	ctx := context.Background()

	env.count(t, "1", "10")
	env.count(t, "2", "5")

	env.sink.setFail(true)
	res, err := env.svc.Finalize(ctx, testOperator)
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if res.Published {
		t.Error("Published = true with a failing sink")
	}

	view, err := env.svc.View(ctx, testOperator)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if !view.PendingReport || view.Step != StepReport {
		t.Errorf("pending/step = %v/%s, want true/report", view.PendingReport, view.Step)
	}
	if env.local.Len() != 1 {
		t.Error("session cleared before the report was stored")
	}

	env.svc.Autosave(ctx)
	if env.sink.count() != 0 {
		t.Fatal("report stored while the sink is failing")
	}

	env.sink.setFail(false)
	env.svc.Autosave(ctx)
	if env.sink.count() != 1 {
		t.Fatalf("sink reports = %d after retry, want 1", env.sink.count())
	}
	if env.local.Len() != 0 || env.remote.Len() != 0 {
		t.Error("session not cleared after the retried publish")
	}
	if !env.journal.has(ActionReportPublish, "ok") {
		t.Error("report publish not journaled")
	}
}

func TestService_AutosaveFlushesLiveSessions(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)
	ctx := context.Background()

	env.count(t, "1", "10")
	view, err := env.svc.View(ctx, testOperator)
	if err != nil {
		t.Fatalf("View() error = %v", err)
	}
	if !view.SaveStatus.Pending {
		t.Fatalf("save status = %+v, want a pending remote write", view.SaveStatus)
	}

	env.svc.Autosave(ctx)

	view, _ = env.svc.View(ctx, testOperator)
	if view.SaveStatus.Pending || view.SaveStatus.Unsaved {
		t.Errorf("save status after autosave = %+v", view.SaveStatus)
	}
	rec, err := env.remote.Get(ctx, "op@example.com")
	if err != nil {
		t.Fatalf("remote Get() error = %v", err)
	}
	if got := session.ProgressScore(rec); got != 1 {
		t.Errorf("remote progress = %d, want 1", got)
	}
}

func TestService_Restart(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)
	env.count(t, "1", "3")

	if err := env.svc.Restart(context.Background(), testOperator); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if env.local.Len() != 0 || env.remote.Len() != 0 {
		t.Errorf("stores local/remote = %d/%d, want cleared", env.local.Len(), env.remote.Len())
	}

	restarted := env.newService(t)
	if _, err := restarted.View(context.Background(), testOperator); gateKind(err) != NoSession {
		t.Errorf("View() after restart kind = %q, want %q", gateKind(err), NoSession)
	}
}

func TestService_JournalEntries(t *testing.T) {
	env := newTestEnv(t)
	env.setup(t)
	env.count(t, "1", "10")

	entries, err := env.svc.JournalEntries(context.Background(), JournalFilter{Action: ActionScan})
	if err != nil {
		t.Fatalf("JournalEntries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("scan entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Severity != SeverityLow || e.UserEmail != "op@example.com" || e.ReducedCode != "1" || e.SessionID == "" {
		t.Errorf("scan entry = %+v", e)
	}
}
