package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/shariah-screen/internal/dataset"
	"github.com/sells-group/shariah-screen/internal/fields"
	"github.com/sells-group/shariah-screen/internal/screening"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testDataset() *dataset.Dataset {
	return dataset.Build([]fields.Source{
		fields.Map{
			"upsert_key": "AAPL-2024", "ticker": "AAPL", "company_name": "Apple Inc.",
			"sector": "Technology", "debt_ratio_pct": "10", "cash_inv_ratio_pct": "20",
			"npin_ratio_pct": "2", "auto_banned": "false", "final_classification": "COMPLIANT",
		},
		fields.Map{
			"upsert_key": "JPM-2024", "ticker": "JPM", "company_name": "JPMorgan Chase",
			"sector": "Financials", "auto_banned": "true", "final_classification": "NON_COMPLIANT",
		},
	}, nil)
}

func testRouter(t *testing.T, opts Options) http.Handler {
	t.Helper()
	svc := screening.NewService(dataset.NewStaticRepository(testDataset()), screening.Options{})
	return New(svc, opts).Routes()
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	rr := do(t, testRouter(t, Options{}), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))

	body := decode(t, rr)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["dataset_loaded"])
}

func TestRequestIDPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	testRouter(t, Options{}).ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get(requestIDHeader))
}

func TestGetSecurity(t *testing.T) {
	rr := do(t, testRouter(t, Options{}), http.MethodGet, "/v1/securities/aapl", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, true, body["found"])
	composite := body["composite"].(map[string]any)
	assert.Equal(t, "COMPLIANT", composite["classification"])
	numeric := body["numeric"].(map[string]any)
	assert.Equal(t, "PASS", numeric["status"])
}

func TestGetSecurity_NotFoundIsOK(t *testing.T) {
	rr := do(t, testRouter(t, Options{}), http.MethodGet, "/v1/securities/ZZZZ", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, false, body["found"])
	assert.Nil(t, body["security"])
	assert.Equal(t, false, body["numeric"].(map[string]any)["available"])
	assert.Equal(t, "No screening data available", body["composite"].(map[string]any)["label"])
}

func TestGetRecord(t *testing.T) {
	rr := do(t, testRouter(t, Options{}), http.MethodGet, "/v1/records/JPM-2024", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "Automatically Non-Compliant", body["composite"].(map[string]any)["label"])
}

func TestListSecurities(t *testing.T) {
	h := testRouter(t, Options{})

	rr := do(t, h, http.MethodGet, "/v1/securities?sector=technology", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 25, body["page_size"])

	rr = do(t, h, http.MethodGet, "/v1/securities?auto_banned=true&page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body = decode(t, rr)
	records := body["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "JPM", records[0].(map[string]any)["ticker"])
}

func TestListSecurities_BadParams(t *testing.T) {
	h := testRouter(t, Options{})

	for _, path := range []string{
		"/v1/securities?auto_banned=maybe",
		"/v1/securities?page=two",
		"/v1/securities?page_size=x",
	} {
		rr := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
		assert.NotEmpty(t, decode(t, rr)["error"], path)
	}
}

func TestListValues(t *testing.T) {
	h := testRouter(t, Options{})

	rr := do(t, h, http.MethodGet, "/v1/values/sector", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, []any{"Financials", "Technology"}, body["values"])

	rr = do(t, h, http.MethodGet, "/v1/values/password", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestScreenPortfolio(t *testing.T) {
	payload := []byte(`{"holdings":[{"ticker":"AAPL","quantity":10,"price":100},{"ticker":"ZZZZ","quantity":1,"price":1000}]}`)
	rr := do(t, testRouter(t, Options{}), http.MethodPost, "/v1/portfolio", payload)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decode(t, rr)
	assert.Equal(t, "2000", body["total_value"])
	assert.Len(t, body["summaries"].([]any), 3)
	holdings := body["holdings"].([]any)
	require.Len(t, holdings, 2)
	assert.Equal(t, false, holdings[1].(map[string]any)["found"])

	aapl := holdings[0].(map[string]any)
	assert.Equal(t, true, aapl["found"])
	assert.Equal(t, "COMPLIANT", aapl["composite"].(map[string]any)["classification"])
	assert.Contains(t, aapl, "numeric")
	assert.Contains(t, aapl, "auto_ban")
	assert.Contains(t, aapl, "revenue")
	assert.Contains(t, aapl, "buckets")
}

func TestScreenPortfolio_BadRequests(t *testing.T) {
	h := testRouter(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"holdings":`},
		{"empty", `{"holdings":[]}`},
		{"zero quantity", `{"holdings":[{"ticker":"AAPL","quantity":0,"price":1}]}`},
		{"negative price", `{"holdings":[{"ticker":"AAPL","quantity":1,"price":-5}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/portfolio", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestDatasetStatsAndReload(t *testing.T) {
	h := testRouter(t, Options{})

	rr := do(t, h, http.MethodGet, "/v1/dataset/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 2, decode(t, rr)["loaded"])

	rr = do(t, h, http.MethodPost, "/v1/dataset/reload", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 2, decode(t, rr)["loaded"])
}

func TestDatasetUnavailable(t *testing.T) {
	repo := dataset.NewRepository(func(context.Context) (*dataset.Dataset, error) {
		return nil, errors.New("export missing")
	})
	h := New(screening.NewService(repo, screening.Options{}), Options{}).Routes()

	for _, path := range []string{"/v1/securities/AAPL", "/v1/securities", "/v1/values/sector", "/v1/dataset/stats"} {
		rr := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, path)
	}

	rr := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, decode(t, rr)["dataset_loaded"])
}

func TestRateLimit(t *testing.T) {
	h := testRouter(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	rr := do(t, h, http.MethodGet, "/v1/dataset/stats", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/v1/dataset/stats", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	// health is outside the limited group
	rr = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := testRouter(t, Options{AllowedOrigins: []string{"https://dashboard.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/securities", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "https://dashboard.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
