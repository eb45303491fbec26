package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
)

type format string

const (
	formatTable format = "table"
	formatJSON  format = "json"
	formatCSV   format = "csv"
)

func parseFormat(s string) (format, error) {
	switch f := format(strings.ToLower(strings.TrimSpace(s))); f {
	case formatTable, formatJSON, formatCSV:
		return f, nil
	case "":
		return formatTable, nil
	}
	return "", eris.Errorf("unknown output format %q (want table, json or csv)", s)
}

// tabular is anything that can be rendered as rows with a header.
type tabular interface {
	header() []string
	rows() [][]string
}

// render writes v as JSON, or t as an aligned table or CSV.
func render(out io.Writer, f format, v any, t tabular) error {
	switch f {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatCSV:
		w := csv.NewWriter(out)
		if err := w.Write(t.header()); err != nil {
			return eris.Wrap(err, "write csv")
		}
		if err := w.WriteAll(t.rows()); err != nil {
			return eris.Wrap(err, "write csv")
		}
		return nil
	default:
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, strings.Join(t.header(), "\t"))
		for _, row := range t.rows() {
			_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return w.Flush()
	}
}

// table is a ready-made tabular value.
type table struct {
	cols []string
	data [][]string
}

func (t table) header() []string { return t.cols }
func (t table) rows() [][]string { return t.data }

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
