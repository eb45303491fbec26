package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamJSONRecords_NotArray(t *testing.T) {
	out, errs := StreamJSONRecords(context.Background(), strings.NewReader(`{"ticker":"AAPL"}`))
	_, err := Collect(out, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected '['")
}

func TestStreamJSONRecords_EmptyInput(t *testing.T) {
	out, errs := StreamJSONRecords(context.Background(), strings.NewReader(""))
	recs, err := Collect(out, errs)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStreamJSONRecords_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 200; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"ticker":"AAPL"}`)
	}
	sb.WriteString("]")

	out, errs := StreamJSONRecords(ctx, strings.NewReader(sb.String()))
	recs, err := Collect(out, errs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
	assert.Less(t, len(recs), 200)
}

func TestStreamJSONRecords(t *testing.T) {
	input := `[
		{"upsert_key": "AAPL-2024", "ticker": "AAPL", "debt_ratio_pct": 12.5, "auto_banned": false,
		 "haram_segments": [{"name": "Interest", "point_estimate": 1.25}]},
		null,
		{"upsertKey": "MSFT-2024", "symbol": "MSFT"}
	]`

	out, errs := StreamJSONRecords(context.Background(), strings.NewReader(input))
	recs, err := Collect(out, errs)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "12.5", lookup(t, recs[0], "debt_ratio_pct"))
	assert.Equal(t, "false", lookup(t, recs[0], "auto_banned"))
	assert.JSONEq(t, `[{"name": "Interest", "point_estimate": 1.25}]`, lookup(t, recs[0], "haram_segments"))
	assert.Equal(t, "MSFT", lookup(t, recs[1], "symbol"))
}

func TestStreamJSONRecords_Malformed(t *testing.T) {
	out, errs := StreamJSONRecords(context.Background(), strings.NewReader(`[{"ticker": "A"}, {"ticker": `))
	recs, err := Collect(out, errs)
	require.Error(t, err)
	assert.Len(t, recs, 1)
}
