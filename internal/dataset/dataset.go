// Package dataset holds the in-memory, read-only set of normalized
// screening records and the lookups served from it.
package dataset

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/shariah-screen/internal/fields"
	"github.com/sells-group/shariah-screen/internal/model"
	"github.com/sells-group/shariah-screen/internal/normalize"
	"github.com/sells-group/shariah-screen/internal/revenue"
)

// LoadStats summarizes a dataset load.
type LoadStats struct {
	Rows         int       `json:"rows"`
	Loaded       int       `json:"loaded"`
	Dropped      int       `json:"dropped"`
	Duplicates   int       `json:"duplicates"`
	Anomalies    int       `json:"anomalies"`
	TableVersion string    `json:"table_version"`
	LoadedAt     time.Time `json:"loaded_at"`
}

// Dataset is immutable once built and safe for concurrent reads.
type Dataset struct {
	records  []*model.ScreeningRecord
	byKey    map[string]*model.ScreeningRecord
	byTicker map[string]*model.ScreeningRecord
	stats    LoadStats
}

// Builder accumulates records. It is not safe for concurrent use.
type Builder struct {
	norm  *normalize.Normalizer
	order []string
	byKey map[string]*model.ScreeningRecord
	stats LoadStats
}

// NewBuilder creates a Builder using n to normalize raw records.
func NewBuilder(n *normalize.Normalizer) *Builder {
	if n == nil {
		n = normalize.New(nil)
	}
	return &Builder{
		norm:  n,
		byKey: make(map[string]*model.ScreeningRecord),
		stats: LoadStats{TableVersion: n.Table().Version},
	}
}

// Add normalizes src and adds it. Records without identity are dropped and
// counted; a repeated upsert key replaces the earlier record.
func (b *Builder) Add(src fields.Source) {
	b.stats.Rows++

	rec, err := b.norm.Normalize(src)
	if err != nil {
		b.stats.Dropped++
		zap.L().Debug("dataset: dropped record", zap.Int("row", b.stats.Rows), zap.Error(err))
		return
	}

	for _, a := range revenue.Validate(rec) {
		b.stats.Anomalies++
		zap.L().Warn("dataset: revenue segment anomaly",
			zap.String("upsert_key", a.UpsertKey),
			zap.String("segment", a.Segment),
			zap.String("anomaly", a.Message),
		)
	}

	if _, dup := b.byKey[rec.UpsertKey]; dup {
		b.stats.Duplicates++
		zap.L().Debug("dataset: duplicate upsert key replaced", zap.String("upsert_key", rec.UpsertKey))
	} else {
		b.order = append(b.order, rec.UpsertKey)
	}
	b.byKey[rec.UpsertKey] = rec
}

// Build freezes the accumulated records into a Dataset.
func (b *Builder) Build() *Dataset {
	ds := &Dataset{
		records:  make([]*model.ScreeningRecord, 0, len(b.order)),
		byKey:    make(map[string]*model.ScreeningRecord, len(b.order)),
		byTicker: make(map[string]*model.ScreeningRecord),
		stats:    b.stats,
	}
	for _, key := range b.order {
		rec := b.byKey[key]
		ds.records = append(ds.records, rec)
		ds.byKey[key] = rec

		tk := tickerKey(rec.Ticker)
		if cur, ok := ds.byTicker[tk]; !ok || newer(rec, cur) {
			ds.byTicker[tk] = rec
		}
	}

	sort.SliceStable(ds.records, func(i, j int) bool {
		a, c := ds.records[i], ds.records[j]
		if ta, tc := tickerKey(a.Ticker), tickerKey(c.Ticker); ta != tc {
			return ta < tc
		}
		return a.ReportDate > c.ReportDate
	})

	ds.stats.Loaded = len(ds.records)
	ds.stats.LoadedAt = time.Now().UTC()
	return ds
}

// Build normalizes all sources into a Dataset.
func Build(sources []fields.Source, n *normalize.Normalizer) *Dataset {
	b := NewBuilder(n)
	for _, src := range sources {
		b.Add(src)
	}
	return b.Build()
}

// Load drains a record stream into a Dataset. A stream error aborts the
// load.
func Load(ctx context.Context, in <-chan fields.Source, errs <-chan error, n *normalize.Normalizer) (*Dataset, error) {
	b := NewBuilder(n)
	for src := range in {
		if ctx.Err() == nil {
			b.Add(src)
		}
	}
	for err := range errs {
		if err != nil {
			return nil, eris.Wrap(err, "dataset: read records")
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "dataset: load cancelled")
	}
	return b.Build(), nil
}

// newer reports whether a should win the ticker index over b. Report
// dates are normalized to ISO form, so they compare lexically; a later
// load wins ties.
func newer(a, b *model.ScreeningRecord) bool {
	return a.ReportDate >= b.ReportDate
}

func tickerKey(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// Stats returns the load statistics.
func (d *Dataset) Stats() LoadStats {
	return d.stats
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return len(d.records)
}

// FindByTicker returns the latest record for ticker, case-insensitively.
func (d *Dataset) FindByTicker(ticker string) (*model.ScreeningRecord, bool) {
	rec, ok := d.byTicker[tickerKey(ticker)]
	return rec, ok
}

// FindByUpsertKey returns the record with the exact upsert key.
func (d *Dataset) FindByUpsertKey(key string) (*model.ScreeningRecord, bool) {
	rec, ok := d.byKey[strings.TrimSpace(key)]
	return rec, ok
}

// Tickers returns the distinct tickers in sorted order.
func (d *Dataset) Tickers() []string {
	out := make([]string, 0, len(d.byTicker))
	for _, rec := range d.byTicker {
		out = append(out, rec.Ticker)
	}
	sort.Strings(out)
	return out
}
