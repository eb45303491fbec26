package fields

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind is the primitive type a candidate value is coerced to.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindJSON
)

// String returns the kind name used in resolution tables.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindJSON:
		return "json"
	default:
		return "string"
	}
}

// First returns the first candidate whose value is present and non-blank,
// along with the candidate name that supplied it. Candidates are tried
// strictly in the order given, newest schema generation first.
func First(src Source, names ...string) (name, raw string, ok bool) {
	if src == nil {
		return "", "", false
	}
	for _, n := range names {
		v, present := src.Lookup(n)
		if !present {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		return n, v, true
	}
	return "", "", false
}

// Resolve returns the first present candidate coerced to kind, or nil when
// the field is absent or the value cannot be coerced. Booleans never
// resolve to nil; use BoolPtr when absence must be distinguished from
// false.
func Resolve(src Source, names []string, kind Kind) any {
	switch kind {
	case KindBool:
		return Bool(src, names...)
	case KindNumber:
		if v := Number(src, names...); v != nil {
			return *v
		}
		return nil
	case KindJSON:
		v, ok := JSON(src, names...)
		if !ok {
			return nil
		}
		return v
	default:
		if v, ok := String(src, names...); ok {
			return v
		}
		return nil
	}
}

// String resolves a trimmed string. Empty strings and the empty JSON
// containers "[]" and "{}" are absent.
func String(src Source, names ...string) (string, bool) {
	for _, n := range names {
		_, v, ok := First(src, n)
		if !ok || v == "[]" || v == "{}" {
			continue
		}
		return v, true
	}
	return "", false
}

// Number resolves a float. The first present candidate decides: if it does
// not parse, the field is absent.
func Number(src Source, names ...string) *float64 {
	_, raw, ok := First(src, names...)
	if !ok {
		return nil
	}
	return ParseNumber(raw)
}

// ParseNumber parses a float, tolerating thousands separators and a
// trailing percent sign. NaN and infinities are rejected.
func ParseNumber(raw string) *float64 {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Bool resolves a boolean: "true", "1" and "yes" in any case are true,
// everything else (including absence) is false.
func Bool(src Source, names ...string) bool {
	v := BoolPtr(src, names...)
	return v != nil && *v
}

// BoolPtr is the tri-state form of Bool: nil when no candidate is present.
func BoolPtr(src Source, names ...string) *bool {
	_, raw, ok := First(src, names...)
	if !ok {
		return nil
	}
	b := ParseBool(raw)
	return &b
}

// ParseBool reports whether raw is one of the accepted truthy spellings.
func ParseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// JSON resolves a structured value. A value that fails to parse degrades
// to the raw string, so callers always get something to work with.
func JSON(src Source, names ...string) (any, bool) {
	_, raw, ok := First(src, names...)
	if !ok {
		return nil, false
	}
	return ParseJSON(raw), true
}

// ParseJSON decodes raw, or returns raw itself when it is not valid JSON.
func ParseJSON(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
