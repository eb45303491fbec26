package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/shariah-screen/internal/fetcher"
	"github.com/sells-group/shariah-screen/internal/fields"
	"github.com/sells-group/shariah-screen/internal/model"
	"github.com/sells-group/shariah-screen/internal/resilience"
	"github.com/sells-group/shariah-screen/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func ptrBool(v bool) *bool { return &v }

func sampleSources() []fields.Source {
	return []fields.Source{
		fields.Map{
			"upsert_key": "AAPL-2023", "ticker": "AAPL", "company_name": "Apple Inc.",
			"report_date": "2023-12-31", "sector": "Technology", "risk_level": "Low",
			"final_classification": "COMPLIANT", "auto_banned": "false",
			"zakat_status": "Eligible", "zakat_methodology": "AAOIFI",
		},
		fields.Map{
			"upsert_key": "AAPL-2024", "ticker": "aapl", "company_name": "Apple Inc.",
			"report_date": "2024-12-31", "sector": "Technology", "risk_level": "Low",
			"final_classification": "Compliant with purification", "auto_banned": "false",
			"zakat_status": "Eligible", "zakat_methodology": "AAOIFI",
		},
		fields.Map{
			"upsert_key": "JPM-2024", "ticker": "JPM", "company_name": "JPMorgan Chase",
			"report_date": "2024-12-31", "sector": "Financials", "risk_level": "High",
			"final_classification": "NON_COMPLIANT", "auto_banned": "true",
		},
		fields.Map{
			"upsert_key": "MSFT-2024", "ticker": "MSFT", "company_name": "Microsoft",
			"report_date": "2024-06-30", "sector": "Technology", "risk_level": "medium",
			"final_classification": "doubtful",
			"haram_pct_lower":      "5", "haram_pct_point": "2",
		},
		fields.Map{"ticker": "NOKEY"},
		fields.Map{"upsert_key": "ORPHAN"},
	}
}

func sampleDataset(t *testing.T) *Dataset {
	t.Helper()
	return Build(sampleSources(), nil)
}

func TestBuild_Stats(t *testing.T) {
	ds := sampleDataset(t)
	st := ds.Stats()
	assert.Equal(t, 6, st.Rows)
	assert.Equal(t, 4, st.Loaded)
	assert.Equal(t, 2, st.Dropped)
	assert.Equal(t, 1, st.Anomalies)
	assert.NotEmpty(t, st.TableVersion)
	assert.False(t, st.LoadedAt.IsZero())
	assert.Equal(t, 4, ds.Len())
}

func TestFindByTicker(t *testing.T) {
	ds := sampleDataset(t)

	rec, ok := ds.FindByTicker("aapl")
	require.True(t, ok)
	assert.Equal(t, "AAPL-2024", rec.UpsertKey, "latest report date wins")

	rec, ok = ds.FindByTicker(" jpm ")
	require.True(t, ok)
	assert.Equal(t, "JPM-2024", rec.UpsertKey)

	rec, ok = ds.FindByTicker("ZZZZ")
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestFindByTicker_USDateLatestWins(t *testing.T) {
	ds := Build([]fields.Source{
		fields.Map{"upsert_key": "NVDA-OCT", "ticker": "NVDA", "report_date": "10/1/2024"},
		fields.Map{"upsert_key": "NVDA-SEP", "ticker": "NVDA", "report_date": "9/1/2024"},
	}, nil)

	rec, ok := ds.FindByTicker("NVDA")
	require.True(t, ok)
	assert.Equal(t, "NVDA-OCT", rec.UpsertKey)
	assert.Equal(t, "2024-10-01", rec.ReportDate)
}

func TestFindByUpsertKey(t *testing.T) {
	ds := sampleDataset(t)

	rec, ok := ds.FindByUpsertKey("AAPL-2023")
	require.True(t, ok)
	assert.Equal(t, model.ClassificationCompliant, rec.FinalClassification)

	_, ok = ds.FindByUpsertKey("aapl-2023")
	assert.False(t, ok, "upsert keys are exact")
}

func TestBuild_DuplicateKeyReplaces(t *testing.T) {
	ds := Build([]fields.Source{
		fields.Map{"upsert_key": "K", "ticker": "T", "sector": "Old"},
		fields.Map{"upsert_key": "K", "ticker": "T", "sector": "New"},
	}, nil)

	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, 1, ds.Stats().Duplicates)
	rec, ok := ds.FindByUpsertKey("K")
	require.True(t, ok)
	assert.Equal(t, "New", rec.Sector)
}

func TestListDistinctValues(t *testing.T) {
	ds := sampleDataset(t)

	sectors, err := ds.ListDistinctValues("sector")
	require.NoError(t, err)
	assert.Equal(t, []string{"Financials", "Technology"}, sectors)

	zakat, err := ds.ListDistinctValues("zakat_status")
	require.NoError(t, err)
	assert.Equal(t, []string{"Eligible"}, zakat)

	classes, err := ds.ListDistinctValues("final_classification")
	require.NoError(t, err)
	assert.Equal(t, []string{"COMPLIANT", "COMPLIANT_WITH_PURIFICATION", "DOUBTFUL_REVIEW", "NON_COMPLIANT"}, classes)

	banned, err := ds.ListDistinctValues("auto_banned")
	require.NoError(t, err)
	assert.Equal(t, []string{"false", "true"}, banned)

	_, err = ds.ListDistinctValues("password")
	assert.True(t, errors.Is(err, ErrUnknownField))

	assert.Contains(t, DistinctFields(), "sector")
}

func TestListRecords_Filters(t *testing.T) {
	ds := sampleDataset(t)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"AAPL-2024", "AAPL-2023", "JPM-2024", "MSFT-2024"}},
		{"search ticker", Filter{Search: "ms"}, []string{"MSFT-2024"}},
		{"search company", Filter{Search: "chase"}, []string{"JPM-2024"}},
		{"classification variant", Filter{Classification: "non-compliant"}, []string{"JPM-2024"}},
		{"unknown classification", Filter{Classification: "purple"}, nil},
		{"sector", Filter{Sector: "technology"}, []string{"AAPL-2024", "AAPL-2023", "MSFT-2024"}},
		{"risk level", Filter{RiskLevel: "MEDIUM"}, []string{"MSFT-2024"}},
		{"auto banned", Filter{AutoBanned: ptrBool(true)}, []string{"JPM-2024"}},
		{"not auto banned excludes unknown", Filter{AutoBanned: ptrBool(false)}, []string{"AAPL-2024", "AAPL-2023"}},
		{"zakat", Filter{ZakatStatus: "eligible", ZakatMethodology: "aaoifi"}, []string{"AAPL-2024", "AAPL-2023"}},
		{"combined", Filter{Sector: "Technology", Search: "apple", Classification: "COMPLIANT"}, []string{"AAPL-2023"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := ds.ListRecords(tt.filter, 1, 0)
			var keys []string
			for _, r := range page.Records {
				keys = append(keys, r.UpsertKey)
			}
			assert.Equal(t, tt.want, keys)
			assert.Equal(t, len(tt.want), page.Total)
		})
	}
}

func TestListRecords_Paging(t *testing.T) {
	var srcs []fields.Source
	for i := 0; i < 60; i++ {
		srcs = append(srcs, fields.Map{
			"upsert_key": "K" + string(rune('A'+i%26)) + string(rune('a'+i/26)),
			"ticker":     "T" + string(rune('A'+i%26)) + string(rune('a'+i/26)),
		})
	}
	ds := Build(srcs, nil)

	p := ds.ListRecords(Filter{}, 1, 0)
	assert.Equal(t, DefaultPageSize, p.PageSize)
	assert.Len(t, p.Records, 25)
	assert.Equal(t, 60, p.Total)

	p = ds.ListRecords(Filter{}, 3, 25)
	assert.Len(t, p.Records, 10)

	p = ds.ListRecords(Filter{}, 4, 25)
	assert.Empty(t, p.Records)
	assert.NotNil(t, p.Records)
	assert.Equal(t, 60, p.Total)

	p = ds.ListRecords(Filter{}, 0, 10000)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Len(t, p.Records, 60)
}

func TestLoad_StreamError(t *testing.T) {
	in := make(chan fields.Source, 1)
	errs := make(chan error, 1)
	in <- fields.Map{"upsert_key": "K", "ticker": "T"}
	close(in)
	errs <- errors.New("boom")
	close(errs)

	_, err := Load(context.Background(), in, errs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	in := make(chan fields.Source)
	errs := make(chan error)
	close(in)
	close(errs)

	_, err := Load(ctx, in, errs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestFileLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screening.csv")
	content := "\xEF\xBB\xBFupsert_key,ticker,debt_ratio_pct,final_classification\n" +
		"AAPL-2024,AAPL,12.5,COMPLIANT\n" +
		",,,\n" +
		"NOPE,,1,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := FileLoader(path, fetcher.Options{}, nil)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, 1, ds.Stats().Dropped)

	rec, ok := ds.FindByTicker("AAPL")
	require.True(t, ok)
	assert.InDelta(t, 12.5, *rec.Debt.ValuePct, 1e-9)
}

func TestStoreLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screening.db")
	st, err := store.NewSQLite(path, "")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Close())

	open := func(context.Context) (store.Store, error) { return store.NewSQLite(path, "") }
	ds, err := StoreLoader(open, nil)(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())

	failing := func(context.Context) (store.Store, error) { return nil, errors.New("no db") }
	_, err = StoreLoader(failing, nil)(context.Background())
	assert.Error(t, err)
}

func TestWithRetry_TransientStoreError(t *testing.T) {
	var opens int
	open := func(context.Context) (store.Store, error) {
		opens++
		if opens < 3 {
			return nil, syscall.ECONNREFUSED
		}
		return store.NewSQLite(filepath.Join(t.TempDir(), "screening.db"), "")
	}
	load := WithRetry(StoreLoader(open, nil), resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})

	// The fresh sqlite file has no table yet, so the read fails permanently.
	_, err := load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, opens)
}

func TestWithRetry_PermanentErrorNotRetried(t *testing.T) {
	var opens int
	open := func(context.Context) (store.Store, error) {
		opens++
		return nil, errors.New("bad credentials")
	}
	load := WithRetry(StoreLoader(open, nil), resilience.RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
	})

	_, err := load(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, opens)
}

func TestRepository_LazyLoadOnce(t *testing.T) {
	var calls atomic.Int32
	repo := NewRepository(func(context.Context) (*Dataset, error) {
		calls.Add(1)
		return Build(sampleSources(), nil), nil
	})
	assert.False(t, repo.Loaded())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := repo.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 4, ds.Len())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, repo.Loaded())
}

func TestRepository_RetriesAfterFailure(t *testing.T) {
	fail := true
	repo := NewRepository(func(context.Context) (*Dataset, error) {
		if fail {
			return nil, errors.New("source unavailable")
		}
		return Build(sampleSources(), nil), nil
	})

	_, err := repo.Get(context.Background())
	require.Error(t, err)
	assert.False(t, repo.Loaded())

	fail = false
	require.NoError(t, repo.Preload(context.Background()))
	assert.True(t, repo.Loaded())
}

func TestRepository_ReloadKeepsPreviousOnFailure(t *testing.T) {
	n := 0
	repo := NewRepository(func(context.Context) (*Dataset, error) {
		n++
		if n == 2 {
			return nil, errors.New("transient")
		}
		return Build(sampleSources()[:n], nil), nil
	})

	first, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Len())

	_, err = repo.Reload(context.Background())
	require.Error(t, err)
	cur, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, cur)

	next, err := repo.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, next.Len())
}

func TestRepository_Static(t *testing.T) {
	ds := sampleDataset(t)
	repo := NewStaticRepository(ds)
	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, ds, got)
}

func TestRepository_NilLoader(t *testing.T) {
	_, err := NewRepository(nil).Get(context.Background())
	assert.Error(t, err)
}
