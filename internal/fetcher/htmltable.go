package fetcher

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// htmlTable is one <table> reduced to trimmed cell texts, row by row.
type htmlTable [][]string

// parseTables extracts every table in the document in document order.
func parseTables(r io.Reader) ([]htmlTable, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, Format("parse html: %v", err)
	}

	var tables []htmlTable
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "table" {
			tables = append(tables, tableRows(n))
			return // nested tables are counted once, at the outermost level
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tables, nil
}

func tableRows(table *html.Node) htmlTable {
	var rows htmlTable
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
					cells = append(cells, cellText(c))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(table)
	return rows
}

func cellText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// extractNAVRows locates the first table containing a date-like column and a
// numeric column to its right, and reduces it to (date, value) pairs. Header
// rows and rows that fail either parse are carried through as raw rows and
// dropped later by normalization.
func extractNAVRows(tables []htmlTable) ([]rawRow, bool) {
	for _, table := range tables {
		dateCol, valueCol, ok := locateColumns(table)
		if !ok {
			continue
		}
		rows := make([]rawRow, 0, len(table))
		for _, cells := range table {
			if len(cells) <= valueCol {
				continue
			}
			rows = append(rows, rawRow{date: cells[dateCol], value: cells[valueCol]})
		}
		return rows, true
	}
	return nil, false
}

// locateColumns finds the first column whose cells parse as dates and the
// first later column whose cells parse as numbers, requiring at least one
// row satisfying both.
func locateColumns(table htmlTable) (dateCol, valueCol int, ok bool) {
	width := 0
	for _, cells := range table {
		if len(cells) > width {
			width = len(cells)
		}
	}
	if width < 2 {
		return 0, 0, false
	}

	for d := 0; d < width-1; d++ {
		for v := d + 1; v < width; v++ {
			for _, cells := range table {
				if len(cells) <= v {
					continue
				}
				_, dok := parseDate(cells[d])
				_, vok := parseValue(cells[v])
				if dok && vok {
					return d, v, true
				}
			}
		}
	}
	return 0, 0, false
}
