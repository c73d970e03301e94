package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/declsql/pkg/core"
)

func renderResult(w io.Writer, result *core.RequestResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	keys := make([]string, 0, len(result.Data))
	for key := range result.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		tr := result.Data[key]
		_, _ = fmt.Fprintf(w, "%s (%d of %d)\n", key, tr.Count, tr.Total)
		renderRows(w, tr.Rows)
		_, _ = fmt.Fprintln(w)
	}
	return nil
}

func renderRows(w io.Writer, rows []map[string]any) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(cols))
	for i, col := range cols {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, row := range rows {
		cells := make(table.Row, len(cols))
		for i, col := range cols {
			val := row[col]
			if b, ok := val.([]byte); ok {
				val = string(b)
			}
			cells[i] = val
		}
		t.AppendRow(cells)
	}

	t.Render()
}
