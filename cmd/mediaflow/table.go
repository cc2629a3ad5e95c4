package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// statusColors maps outcome words to terminal colors.
var statusColors = map[string]text.Colors{
	"done":      {text.FgGreen},
	"completed": {text.FgGreen},
	"succeeded": {text.FgGreen},
	"available": {text.FgGreen},
	"skipped":   {text.FgCyan},
	"pending":   {text.FgYellow},
	"running":   {text.FgYellow},
	"optional":  {text.FgYellow},
	"aborted":   {text.FgYellow},
	"failed":    {text.FgRed},
	"missing":   {text.FgRed},
}

func colorStatus(value string, colorize bool) string {
	if !colorize {
		return value
	}
	if colors, ok := statusColors[value]; ok {
		return colors.Sprint(value)
	}
	return value
}
