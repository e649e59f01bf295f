package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// detectDelimiter prefers ';' over ',' when the header line carries one.
// Brazilian exports use ';' because ',' is their decimal separator.
func detectDelimiter(headerLine string) rune {
	if strings.Contains(headerLine, ";") {
		return ';'
	}
	return ','
}

// parseDelimited parses delimited text whose first non-empty line is the header.
func parseDelimited(text string) (*Table, error) {
	text = strings.TrimLeft(text, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, &IngestError{Kind: EmptyFile}
	}

	headerLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		headerLine = text[:i]
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(headerLine)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, &IngestError{Kind: UnsupportedFormat, Err: err}
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = headerKey(h)
	}

	table := &Table{Format: FormatCSV, Headers: headers}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				table.Skipped++
				continue
			}
			return nil, &IngestError{Kind: UnsupportedFormat, Err: err}
		}

		row := rowFromCells(headers, record)
		if row == nil {
			table.Skipped++
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// headerKey lower-cases a header cell and strips quotes and whitespace.
func headerKey(h string) string {
	h = strings.ReplaceAll(h, `"`, "")
	return strings.ToLower(strings.TrimSpace(h))
}

// rowFromCells maps cells to header keys by position. Returns nil when the
// row carries no non-empty value under a named header.
func rowFromCells(headers, cells []string) Row {
	row := make(Row, len(headers))
	hasData := false
	for i, h := range headers {
		if h == "" || i >= len(cells) {
			continue
		}
		v := strings.TrimSpace(strings.ReplaceAll(cells[i], `"`, ""))
		row[h] = v
		if v != "" {
			hasData = true
		}
	}
	if !hasData {
		return nil
	}
	return row
}
