package source

import (
	"strings"

	"golang.org/x/net/html"
)

// Helpers for scraping loosely structured markup. Tables are located by
// header content and decoded by header-name lookup, never by position, so a
// reordered or extended upstream layout degrades to dropped rows instead of
// garbage records.

// findAll walks the document and collects elements with the given tag name.
func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// nodeText returns the concatenated, whitespace-collapsed text content of n.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// tableCells decodes a table into rows of cell texts. Both th and td count
// as cells so header rows are included. Rows past maxRows are dropped.
func tableCells(table *html.Node, maxRows int) [][]string {
	rows := findAll(table, "tr")
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	out := make([][]string, 0, len(rows))
	for _, tr := range rows {
		var cells []string
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode && (n.Data == "th" || n.Data == "td") {
				cells = append(cells, nodeText(n))
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		// Document order matters: header rows mix th and td upstream.
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		out = append(out, cells)
	}
	return out
}

// headerIndex maps lower-cased header cells to their column index, matched by
// substring. Returns -1 when no header mentions any of the given keys.
func headerIndex(header []string, keys ...string) int {
	for i, cell := range header {
		cell = strings.ToLower(cell)
		for _, key := range keys {
			if strings.Contains(cell, key) {
				return i
			}
		}
	}
	return -1
}

// cellAt safely indexes a row, returning "" past the end.
func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
