package web

// errors.go turns service errors into JSON responses.
//
// Every error is logged with its technical detail and the request id, then
// mapped through core.MapError so the client only sees a user message, an
// action hint and a stable code. statusFor picks the HTTP status from the
// error's type so handlers never choose one themselves.

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/JonMunkholm/stockcount/internal/catalog"
	"github.com/JonMunkholm/stockcount/internal/core"
	"github.com/JonMunkholm/stockcount/internal/ingest"
	"github.com/JonMunkholm/stockcount/internal/logging"
	"github.com/JonMunkholm/stockcount/internal/store/rediscache"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Action  string                 `json:"action,omitempty"`
	Code    string                 `json:"code"`
	Kind    string                 `json:"kind,omitempty"`
	Fields  []core.ValidationError `json:"fields,omitempty"`
}

var (
	// errBadRequest marks malformed request bodies.
	errBadRequest = errors.New("invalid request body")

	// errFileTooLarge marks uploads over UPLOAD_MAX_FILE_SIZE.
	errFileTooLarge = errors.New("file too large")
)

// respondError logs err and writes its user-facing form.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	level := logger.Warn
	if status >= http.StatusInternalServerError {
		level = logger.Error
	}
	level("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Kind:    kindOf(err),
	}
	var verrs core.ValidationErrors
	if errors.As(err, &verrs) {
		resp.Fields = verrs
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "5")
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

func statusFor(err error) int {
	var (
		scanErr    *core.ScanError
		gateErr    *core.GateError
		verrs      core.ValidationErrors
		ingestErr  *ingest.IngestError
		catalogErr *catalog.CatalogError
		maxBytes   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &scanErr):
		switch scanErr.Kind {
		case core.NotFound:
			return http.StatusNotFound
		case core.NotInStockList:
			return http.StatusUnprocessableEntity
		case core.NoActiveItem:
			return http.StatusConflict
		default:
			return http.StatusBadRequest
		}
	case errors.As(err, &gateErr):
		if gateErr.Kind == core.NoSession {
			return http.StatusNotFound
		}
		return http.StatusConflict
	case errors.As(err, &verrs), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.As(err, &ingestErr), errors.As(err, &catalogErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &maxBytes), errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrOperatorRequired):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrReportNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManySetups):
		return http.StatusTooManyRequests
	case errors.Is(err, rediscache.ErrLocked):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// kindOf exposes the machine-readable kind of scan and gate errors.
func kindOf(err error) string {
	var scanErr *core.ScanError
	if errors.As(err, &scanErr) {
		return string(scanErr.Kind)
	}
	var gateErr *core.GateError
	if errors.As(err, &gateErr) {
		return string(gateErr.Kind)
	}
	var ingestErr *ingest.IngestError
	if errors.As(err, &ingestErr) {
		return string(ingestErr.Kind)
	}
	var catalogErr *catalog.CatalogError
	if errors.As(err, &catalogErr) {
		return string(catalogErr.Kind)
	}
	return ""
}
