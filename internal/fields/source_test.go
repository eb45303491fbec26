package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeader_DuplicateColumnsGetSuffixes(t *testing.T) {
	h := NewHeader([]string{" ticker ", "auto_banned", "sector", "auto_banned", "auto_banned"})
	assert.Equal(t, []string{"ticker", "auto_banned", "sector", "auto_banned.1", "auto_banned.2"}, h.Names())
	assert.True(t, h.Has("auto_banned.2"))
	assert.False(t, h.Has("auto_banned.3"))

	row := h.Row([]string{"AAPL", "", "Tech", "true", "false"})

	v, ok := row.Lookup("auto_banned")
	assert.True(t, ok)
	assert.Equal(t, "", v)

	v, ok = row.Lookup("auto_banned.1")
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	// The suffixed duplicate is reachable through the resolver fallback.
	assert.True(t, Bool(row, "auto_banned", "auto_banned.1"))
}

func TestRow_ShortRow(t *testing.T) {
	h := NewHeader([]string{"a", "b", "c"})
	row := h.Row([]string{"1"})

	_, ok := row.Lookup("c")
	assert.False(t, ok)
	_, ok = row.Lookup("missing")
	assert.False(t, ok)
}

func TestDocument_Lookup(t *testing.T) {
	doc := Document{
		"ticker":   "MSFT",
		"debt":     12.5,
		"banned":   true,
		"segments": []any{map[string]any{"name": "Alcohol"}},
		"empty":    nil,
	}

	v, ok := doc.Lookup("ticker")
	assert.True(t, ok)
	assert.Equal(t, "MSFT", v)

	v, _ = doc.Lookup("debt")
	assert.Equal(t, "12.5", v)

	v, _ = doc.Lookup("banned")
	assert.Equal(t, "true", v)

	v, _ = doc.Lookup("segments")
	assert.JSONEq(t, `[{"name":"Alcohol"}]`, v)

	_, ok = doc.Lookup("empty")
	assert.False(t, ok)
}
