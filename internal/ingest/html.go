package ingest

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// parseHTML reads the first <table> in a markup document. The header row is
// the first row of <thead> when present, otherwise the first row of the table.
func parseHTML(text string) (*Table, error) {
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return nil, &IngestError{Kind: UnsupportedFormat, Err: err}
	}

	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil, &IngestError{Kind: EmptyFile}
	}

	var rows []*html.Node
	collectRows(table, &rows)
	if len(rows) == 0 {
		return nil, &IngestError{Kind: EmptyFile}
	}

	headerRow := rows[0]
	if thead := findFirst(table, atom.Thead); thead != nil {
		if tr := findFirst(thead, atom.Tr); tr != nil {
			headerRow = tr
		}
	}

	var headers []string
	for _, cell := range childCells(headerRow, atom.Th, atom.Td) {
		headers = append(headers, headerKey(nodeText(cell)))
	}

	result := &Table{Format: FormatHTML, Headers: headers}

	seenHeader := false
	for _, tr := range rows {
		if tr == headerRow {
			seenHeader = true
			continue
		}
		if !seenHeader || hasAncestor(tr, atom.Thead, table) {
			continue
		}

		tds := childCells(tr, atom.Td)
		if len(tds) == 0 {
			result.Skipped++
			continue
		}

		cells := make([]string, len(tds))
		for i, td := range tds {
			cells[i] = nodeText(td)
		}

		row := rowFromCells(headers, cells)
		if row == nil {
			result.Skipped++
			continue
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

// findFirst returns the first element below n (depth first) with the given atom.
func findFirst(n *html.Node, a atom.Atom) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			return c
		}
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// collectRows appends every <tr> below n in document order, without
// descending into nested tables.
func collectRows(n *html.Node, rows *[]*html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			*rows = append(*rows, c)
		case atom.Table:
			continue
		default:
			collectRows(c, rows)
		}
	}
}

// childCells returns the direct children of tr whose atom is one of kinds.
func childCells(tr *html.Node, kinds ...atom.Atom) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		for _, k := range kinds {
			if c.DataAtom == k {
				cells = append(cells, c)
				break
			}
		}
	}
	return cells
}

func hasAncestor(n *html.Node, a atom.Atom, stop *html.Node) bool {
	for p := n.Parent; p != nil && p != stop; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == a {
			return true
		}
	}
	return false
}

// nodeText returns the concatenated text content of n with runs of
// whitespace collapsed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
