package ingest

import "fmt"

// ErrorKind classifies a fatal ingestion failure.
type ErrorKind string

const (
	// EmptyFile means the file had no bytes or no usable rows.
	EmptyFile ErrorKind = "empty_file"
	// UnsupportedFormat means the content matched none of the known shapes.
	UnsupportedFormat ErrorKind = "unsupported_format"
	// LibraryUnavailable means the format is recognized but no reader for it
	// is available (legacy binary .xls).
	LibraryUnavailable ErrorKind = "library_unavailable"
)

// IngestError is returned when a whole file cannot be used. The user must
// supply a different file; retrying the same one will not help.
type IngestError struct {
	Kind ErrorKind
	File string
	Err  error
}

func (e *IngestError) Error() string {
	var msg string
	switch e.Kind {
	case EmptyFile:
		msg = "empty file"
	case UnsupportedFormat:
		msg = "unsupported file format"
	case LibraryUnavailable:
		msg = "no reader available for legacy workbook format, save as .xlsx or .csv"
	default:
		msg = "ingest failed"
	}

	if e.File != "" {
		msg = fmt.Sprintf("%s: %s", e.File, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *IngestError) Unwrap() error {
	return e.Err
}
