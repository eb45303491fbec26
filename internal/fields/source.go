// Package fields resolves canonical field values from raw records that were
// produced by different schema generations.
package fields

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Source is a raw record: a lookup from source column name to its raw text.
// The engine is agnostic to where the record came from.
type Source interface {
	Lookup(name string) (string, bool)
}

// Map is a Source backed by a plain string map.
type Map map[string]string

// Lookup implements Source.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Row is a Source over one row of a delimited file or spreadsheet.
//
// Header names are trimmed. When a header repeats, the first occurrence
// keeps the bare name and later ones are addressable as "name.1",
// "name.2" and so on, matching the convention of the exports that feed the
// dataset.
type Row struct {
	index  map[string]int
	values []string
}

// Header is a precomputed column index shared by every row of a file.
type Header struct {
	index map[string]int
	names []string
}

// NewHeader indexes a header row.
func NewHeader(cols []string) *Header {
	h := &Header{index: make(map[string]int, len(cols))}
	for i, col := range cols {
		base := strings.TrimSpace(col)
		name := base
		for n := 1; ; n++ {
			if _, taken := h.index[name]; !taken {
				break
			}
			name = base + "." + strconv.Itoa(n)
		}
		h.index[name] = i
		h.names = append(h.names, name)
	}
	return h
}

// Names returns the resolved column names in file order.
func (h *Header) Names() []string {
	return h.names
}

// Has reports whether the header defines the named column.
func (h *Header) Has(name string) bool {
	_, ok := h.index[name]
	return ok
}

// Row binds a value slice to the header. Short rows are allowed; missing
// trailing cells are treated as absent.
func (h *Header) Row(values []string) Row {
	return Row{index: h.index, values: values}
}

// Lookup implements Source.
func (r Row) Lookup(name string) (string, bool) {
	idx, ok := r.index[name]
	if !ok || idx >= len(r.values) {
		return "", false
	}
	return r.values[idx], true
}

// Document is a Source over a decoded JSON document, as stored in a
// document table. Non-string values are re-encoded as JSON text so nested
// arrays and objects reach the JSON resolver intact.
type Document map[string]any

// Lookup implements Source.
func (d Document) Lookup(name string) (string, bool) {
	v, ok := d[name]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}
