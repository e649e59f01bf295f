// Package ingest parses uploaded catalog and stock exports into uniform
// row records.
//
// Three input shapes are supported and detected from the file name and the
// leading bytes of the content:
//
//   - Delimited text (CSV with ";" or "," delimiters)
//   - Markup tables (HTML exports, including HTML saved with an .xls name)
//   - Workbooks (.xlsx, first sheet only)
//
// Row-level defects never abort a parse. Garbled rows are skipped and counted
// in [Table.Skipped]; only an unreadable or empty file yields an [IngestError].
package ingest

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
)

// Format identifies the detected input shape.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatHTML     Format = "html"
	FormatWorkbook Format = "workbook"
)

// Row maps a column key to a cell value. Keys are lower-cased header text,
// or spreadsheet column letters ("A", "B", ...) for positional workbooks.
type Row map[string]string

// Table is the result of parsing one file.
type Table struct {
	Name       string
	Format     Format
	Positional bool     // Keys are column letters rather than header text
	Headers    []string // Header keys in column order (empty for positional tables)
	Rows       []Row
	Skipped    int // Rows dropped as empty or unparseable
}

// Options controls parsing.
type Options struct {
	// Positional requests column-letter keys for workbook input. Header text
	// varies across store exports, so the catalog builder reads workbooks by
	// fixed column positions. Ignored for text formats.
	Positional bool
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Parse detects the format of content and parses it into a Table.
// name is the uploaded file name and is used only as a format hint.
func Parse(content []byte, name string, opts Options) (*Table, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, &IngestError{Kind: EmptyFile, File: name}
	}

	format, err := Detect(content, name)
	if err != nil {
		return nil, err
	}

	var table *Table
	switch format {
	case FormatWorkbook:
		table, err = parseWorkbook(content, opts.Positional)
	case FormatHTML:
		table, err = parseHTML(decodeText(content))
	default:
		table, err = parseDelimited(decodeText(content))
	}
	if err != nil {
		var ie *IngestError
		if errors.As(err, &ie) && ie.File == "" {
			ie.File = name
		}
		return nil, err
	}

	table.Name = name
	if len(table.Rows) == 0 {
		return nil, &IngestError{Kind: EmptyFile, File: name}
	}
	return table, nil
}

// Detect chooses a format from the file name and the leading bytes.
func Detect(content []byte, name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))

	switch {
	case bytes.HasPrefix(content, zipMagic):
		return FormatWorkbook, nil
	case bytes.HasPrefix(content, oleMagic):
		// Legacy BIFF workbooks (Excel 97-2003) have no reader here.
		return "", &IngestError{Kind: LibraryUnavailable, File: name}
	case looksLikeMarkup(content):
		return FormatHTML, nil
	case ext == ".html" || ext == ".htm":
		return FormatHTML, nil
	case ext == ".xlsx" || ext == ".xls":
		return "", &IngestError{Kind: UnsupportedFormat, File: name}
	default:
		return FormatCSV, nil
	}
}

// looksLikeMarkup reports whether content starts with an HTML tag once BOM
// and leading whitespace are removed.
func looksLikeMarkup(content []byte) bool {
	head := bytes.TrimPrefix(content, utf8BOM)
	head = bytes.TrimSpace(head)
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) ||
		bytes.HasPrefix(lower, []byte("<html")) ||
		bytes.HasPrefix(lower, []byte("<table")) ||
		(bytes.HasPrefix(lower, []byte("<")) && bytes.Contains(lower, []byte("<table")))
}
