package ingest

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseWorkbook reads the first sheet of an .xlsx workbook.
//
// In positional mode every non-empty row becomes a record keyed by column
// letter, header rows included; the catalog builder filters those out by
// content. Otherwise the first non-empty row supplies the header keys.
func parseWorkbook(content []byte, positional bool) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &IngestError{Kind: UnsupportedFormat, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &IngestError{Kind: EmptyFile}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &IngestError{Kind: UnsupportedFormat, Err: err}
	}

	if positional {
		return positionalTable(rows)
	}
	return headedTable(rows), nil
}

func positionalTable(rows [][]string) (*Table, error) {
	table := &Table{Format: FormatWorkbook, Positional: true}

	var letters []string
	for _, cells := range rows {
		for len(letters) < len(cells) {
			name, err := excelize.ColumnNumberToName(len(letters) + 1)
			if err != nil {
				return nil, &IngestError{Kind: UnsupportedFormat, Err: err}
			}
			letters = append(letters, name)
		}

		row := rowFromCells(letters[:len(cells)], cells)
		if row == nil {
			table.Skipped++
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func headedTable(rows [][]string) *Table {
	table := &Table{Format: FormatWorkbook}

	start := -1
	for i, cells := range rows {
		if !blankRow(cells) {
			start = i
			break
		}
	}
	if start < 0 {
		return table
	}

	for _, h := range rows[start] {
		table.Headers = append(table.Headers, headerKey(h))
	}

	for _, cells := range rows[start+1:] {
		row := rowFromCells(table.Headers, cells)
		if row == nil {
			table.Skipped++
			continue
		}
		table.Rows = append(table.Rows, row)
	}

	return table
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
