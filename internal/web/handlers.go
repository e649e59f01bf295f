package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/JonMunkholm/stockcount/internal/core"
)

// multipartMemory is held in memory per setup before spilling to disk.
const multipartMemory = 32 << 20

// ============================================================================
// Session lifecycle
// ============================================================================

// handleGetSession returns the operator's session, restoring it from the
// stores on first access.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Resume(r.Context(), operatorFrom(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// handleSetup starts a session from the product and stock exports.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			err = fmt.Errorf("%w: %v", errFileTooLarge, err)
		} else {
			err = fmt.Errorf("%w: %v", errBadRequest, err)
		}
		respondError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	products, err := s.formFile(r, "products")
	if err != nil {
		respondError(w, r, err)
		return
	}
	stockFile, err := s.formFile(r, "stock")
	if err != nil {
		respondError(w, r, err)
		return
	}

	controlled, _ := strconv.ParseBool(r.FormValue("controlled"))
	in := core.SetupInput{
		Branch:     r.FormValue("branch"),
		Area:       r.FormValue("area"),
		CompanyID:  r.FormValue("company_id"),
		Pharmacist: r.FormValue("pharmacist"),
		Manager:    r.FormValue("manager"),
		Controlled: controlled,
		Products:   products,
		Stock:      stockFile,
	}

	result, err := s.service.Setup(r.Context(), operatorFrom(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// formFile reads one uploaded export. A missing file yields an empty File so
// that validation reports it alongside the other fields.
func (s *Server) formFile(r *http.Request, field string) (core.File, error) {
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return core.File{}, nil
	}
	if err != nil {
		return core.File{}, err
	}
	defer f.Close()

	if header.Size > s.cfg.Upload.MaxFileSize {
		return core.File{}, fmt.Errorf("%s: %w (%d bytes)", field, errFileTooLarge, header.Size)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return core.File{}, fmt.Errorf("read %s: %w", field, err)
	}
	return core.File{Name: header.Filename, Content: content}, nil
}

// handleRestart discards the operator's session.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Restart(r.Context(), operatorFrom(r)); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Counting
// ============================================================================

type scanRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	out, err := s.service.Scan(r.Context(), operatorFrom(r), req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, out)
}

// quantityRequest accepts the quantity as a JSON number or as text typed by
// the operator, which may use a comma decimal separator.
type quantityRequest struct {
	Quantity json.RawMessage `json:"quantity"`
}

func (q quantityRequest) raw() string {
	var text string
	if err := json.Unmarshal(q.Quantity, &text); err == nil {
		return text
	}
	return string(bytes.TrimSpace(q.Quantity))
}

func (s *Server) handleQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	item, err := s.service.SubmitQuantity(r.Context(), operatorFrom(r), req.raw())
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, item)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, r, s.service.CancelActive)
}

type accumulationRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleAccumulation(w http.ResponseWriter, r *http.Request) {
	var req accumulationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	s.respondView(w, r, func(ctx context.Context, op core.Operator) (core.View, error) {
		return s.service.SetAccumulation(ctx, op, req.Enabled)
	})
}

// ============================================================================
// Review, recount and finalize
// ============================================================================

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, r, s.service.EnterReview)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, r, s.service.ResumeCounting)
}

func (s *Server) handleRecount(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, r, s.service.InitiateRecount)
}

func (s *Server) handleRecountPending(w http.ResponseWriter, r *http.Request) {
	pending, err := s.service.RecountPending(r.Context(), operatorFrom(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, pending)
}

// handleFinalize closes the session. A report that could not be stored yet
// is still returned, with 202 instead of 200.
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Finalize(r.Context(), operatorFrom(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !result.Published {
		render.Status(r, http.StatusAccepted)
	}
	render.JSON(w, r, result)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.LastReport(r.Context(), operatorFrom(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// ============================================================================
// Queries
// ============================================================================

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Stats(r.Context(), operatorFrom(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	matches, err := s.service.SearchProducts(r.Context(), operatorFrom(r), r.URL.Query().Get("q"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, matches)
}

// handleJournal lists journal entries. Query parameters: user_email,
// session_id, action, since, until (RFC 3339), limit, offset.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.JournalFilter{
		UserEmail: q.Get("user_email"),
		SessionID: q.Get("session_id"),
		Action:    core.JournalAction(q.Get("action")),
	}

	var err error
	if filter.StartTime, err = parseTimeParam(q.Get("since")); err != nil {
		respondError(w, r, err)
		return
	}
	if filter.EndTime, err = parseTimeParam(q.Get("until")); err != nil {
		respondError(w, r, err)
		return
	}
	if filter.Limit, err = parseIntParam(q.Get("limit")); err != nil {
		respondError(w, r, err)
		return
	}
	if filter.Offset, err = parseIntParam(q.Get("offset")); err != nil {
		respondError(w, r, err)
		return
	}

	entries, err := s.service.JournalEntries(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, entries)
}

// ============================================================================
// Health
// ============================================================================

type healthResponse struct {
	Status string             `json:"status"`
	Checks map[string]string  `json:"checks"`
	Setups core.LimiterStatus `json:"setups"`
}

// handleHealth pings every dependency. Any failure reports 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(s.checks))}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}
	if s.service != nil {
		resp.Setups = s.service.LimiterStatus()
	}

	if resp.Status != "ok" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, resp)
}

// ============================================================================
// Helpers
// ============================================================================

// respondView runs a view-returning operation for the request's operator.
func (s *Server) respondView(w http.ResponseWriter, r *http.Request, fn func(context.Context, core.Operator) (core.View, error)) {
	view, err := fn(r.Context(), operatorFrom(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

func decodeJSON(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not an RFC 3339 time", errBadRequest, v)
	}
	return t, nil
}

func parseIntParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", errBadRequest, v)
	}
	return n, nil
}
