package main

import (
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Wide free-text columns wrap instead of stretching the table.
const maxColumnWidth = 72

// renderTable draws rows under headers. Columns whose cells are all numeric
// (counts, percentages, "4 (+1)" deltas) are right aligned.
func renderTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	numeric := make([]bool, len(headers))
	seen := make([]bool, len(headers))
	for i := range numeric {
		numeric[i] = true
	}
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range r {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			r[i] = cell
			if strings.TrimSpace(cell) == "" {
				continue
			}
			seen[i] = true
			numeric[i] = numeric[i] && isNumericCell(cell)
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if numeric[i] && seen[i] {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxColumnWidth,
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func isNumericCell(cell string) bool {
	fields := strings.Fields(cell)
	if len(fields) == 0 {
		return false
	}
	first := strings.TrimSuffix(fields[0], "%")
	if i := strings.IndexByte(first, '/'); i > 0 {
		first = first[:i]
	}
	_, err := strconv.ParseFloat(first, 64)
	return err == nil
}
