package core

// error_messages.go maps technical errors to messages an operator can act on.
//
// Every message carries a code that operators can quote to support staff.
// Typed errors from the counting engine and the file pipeline map directly;
// anything else is matched against known text patterns.
//
// # Scan Errors (SCN001-SCN099)
//
//	SCN001 - Product not found in the product file
//	SCN002 - Product is not in the loaded stock list
//	SCN003 - No product is waiting for a quantity
//	SCN004 - Quantity is not a valid number
//
// # Workflow Errors (GATE001-GATE099)
//
//	GATE001 - Items are still pending count
//	GATE002 - No divergent items to recount
//	GATE003 - Recount required before finalizing
//	GATE004 - Action not available at the current step
//	GATE005 - No active counting session
//
// # File Errors (ING001-ING099, CAT001-CAT099)
//
//	ING001 - The uploaded file is empty
//	ING002 - File format not recognized
//	ING003 - Legacy workbook format
//	CAT001 - Product file has no valid rows
//	CAT002 - Stock file has no valid rows
//
// # Session Errors (SES001-SES099, RPT001-RPT099)
//
//	SES001 - Operator email missing
//	SES002 - Session locked by another request
//	RPT001 - No finalized report
//
// # Database Errors (DB001-DB099)
//
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid email address
//	VAL002 - Field too long
//	VAL003 - Required field is empty
//	VAL004 - Malformed request body
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - File too large
//	UPL002 - Too many setups in progress
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Support staff should check the logs for the
// original error.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"errors"
	"strings"

	"github.com/JonMunkholm/stockcount/internal/catalog"
	"github.com/JonMunkholm/stockcount/internal/ingest"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// coded is implemented by errors that carry their own user message.
type coded interface {
	error
	UserMessage() UserMessage
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Session Errors
	// =========================================================================
	{
		pattern: "operator email required",
		msg: UserMessage{
			Message: "Operator email is missing",
			Action:  "Sign in again and retry",
			Code:    "SES001",
		},
	},
	{
		pattern: "session is locked",
		msg: UserMessage{
			Message: "Another request is setting up this session",
			Action:  "Wait for it to finish and refresh",
			Code:    "SES002",
		},
	},
	{
		pattern: "report not found",
		msg: UserMessage{
			Message: "No finalized report is available",
			Action:  "Finalize a count first",
			Code:    "RPT001",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL003)
	// =========================================================================
	{
		pattern: "invalid email",
		msg: UserMessage{
			Message: "Operator email is not valid",
			Action:  "Check the email address",
			Code:    "VAL001",
		},
	},
	{
		pattern: "must be at most",
		msg: UserMessage{
			Message: "A form field is too long",
			Action:  "Shorten the highlighted field",
			Code:    "VAL002",
		},
	},
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Fill in branch, pharmacist, manager and both files",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid request body",
		msg: UserMessage{
			Message: "Request could not be read",
			Action:  "Check the request format and try again",
			Code:    "VAL004",
		},
	},

	// =========================================================================
	// Upload Errors (UPL001-UPL005)
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Export only the columns and rows you need",
			Code:    "UPL001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Export only the columns and rows you need",
			Code:    "UPL001",
		},
	},
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other setups",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again or use a smaller export",
			Code:    "UPL005",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB007)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

var ingestMessages = map[ingest.ErrorKind]UserMessage{
	ingest.EmptyFile: {
		Message: "The uploaded file is empty",
		Action:  "Export the report again with data rows",
		Code:    "ING001",
	},
	ingest.UnsupportedFormat: {
		Message: "File format not recognized",
		Action:  "Upload a CSV, HTML or XLSX export",
		Code:    "ING002",
	},
	ingest.LibraryUnavailable: {
		Message: "Legacy Excel workbooks cannot be read",
		Action:  "Save the file as .xlsx or .csv and upload again",
		Code:    "ING003",
	},
}

var catalogMessages = map[catalog.ErrorKind]UserMessage{
	catalog.NoValidProducts: {
		Message: "The product file has no valid product rows",
		Action:  "Check that you uploaded the product export in the product field",
		Code:    "CAT001",
	},
	catalog.NoValidStock: {
		Message: "The stock file has no valid stock rows",
		Action:  "Check the controlled option and that the stock export is in the stock field",
		Code:    "CAT002",
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Typed
// errors are checked first, then the known text patterns. If nothing
// matches, the ERR000 fallback is returned.
//
// Example:
//
//	msg := MapError(&GateError{Kind: RecountRequired})
//	// msg.Code == "GATE003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var c coded
	if errors.As(err, &c) {
		return c.UserMessage()
	}

	var ie *ingest.IngestError
	if errors.As(err, &ie) {
		if msg, ok := ingestMessages[ie.Kind]; ok {
			return msg
		}
	}

	var ce *catalog.CatalogError
	if errors.As(err, &ce) {
		if msg, ok := catalogMessages[ce.Kind]; ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}
