// Package screening assembles per-security and portfolio result bundles
// from the loaded dataset and the three methodology evaluators.
package screening

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/shariah-screen/internal/dataset"
	"github.com/sells-group/shariah-screen/internal/evidence"
	"github.com/sells-group/shariah-screen/internal/methodology"
	"github.com/sells-group/shariah-screen/internal/model"
	"github.com/sells-group/shariah-screen/internal/portfolio"
	"github.com/sells-group/shariah-screen/internal/revenue"
)

// DefaultMaxConcurrency bounds portfolio evaluation when Options leaves it
// unset.
const DefaultMaxConcurrency = 8

// Options tunes the evaluators.
type Options struct {
	StrictThresholds bool
	ResidualEpsilon  float64
	MaxConcurrency   int
}

// SecurityBundle is everything a dashboard needs to render one security.
// When Found is false every methodology is unavailable and Security is nil.
type SecurityBundle struct {
	Query     string                      `json:"query"`
	Found     bool                        `json:"found"`
	Security  *model.ScreeningRecord      `json:"security,omitempty"`
	Numeric   methodology.NumericResult   `json:"numeric"`
	AutoBan   methodology.AutoBanResult   `json:"auto_ban"`
	Composite methodology.CompositeResult `json:"composite"`
	Revenue   revenue.Composition         `json:"revenue"`
	Evidence  []model.EvidenceItem        `json:"evidence"`
	QAIssues  []model.QAIssue             `json:"qa_issues"`
}

// Verdict returns the methodology results used for portfolio weighting.
func (b *SecurityBundle) Verdict() portfolio.Verdict {
	return portfolio.Verdict{Numeric: b.Numeric, AutoBan: b.AutoBan, Composite: b.Composite}
}

// HoldingBundle is a portfolio holding with its weighting buckets and the
// full security result for its ticker.
type HoldingBundle struct {
	portfolio.HoldingResult
	*SecurityBundle
}

// PortfolioBundle is the portfolio-level result.
type PortfolioBundle struct {
	TotalValue decimal.Decimal     `json:"total_value"`
	Summaries  []portfolio.Summary `json:"summaries"`
	Holdings   []HoldingBundle     `json:"holdings"`
}

// Service answers screening requests against a dataset repository.
type Service struct {
	repo           *dataset.Repository
	numeric        methodology.NumericEvaluator
	autoBan        methodology.AutoBanEvaluator
	composite      methodology.CompositeEvaluator
	revenue        revenue.Aggregator
	maxConcurrency int
}

// NewService creates a Service.
func NewService(repo *dataset.Repository, opts Options) *Service {
	n := opts.MaxConcurrency
	if n <= 0 {
		n = DefaultMaxConcurrency
	}
	return &Service{
		repo:           repo,
		numeric:        methodology.NumericEvaluator{Strict: opts.StrictThresholds},
		revenue:        revenue.NewAggregator(opts.ResidualEpsilon),
		maxConcurrency: n,
	}
}

// Repository returns the underlying dataset repository.
func (s *Service) Repository() *dataset.Repository {
	return s.repo
}

// Evaluate builds the bundle for rec. A nil record yields a not-found
// bundle. It does not touch the dataset.
func (s *Service) Evaluate(query string, rec *model.ScreeningRecord) *SecurityBundle {
	return &SecurityBundle{
		Query:     query,
		Found:     rec != nil,
		Security:  rec,
		Numeric:   s.numeric.Evaluate(rec),
		AutoBan:   s.autoBan.Evaluate(rec),
		Composite: s.composite.Evaluate(rec),
		Revenue:   s.revenue.Aggregate(rec),
		Evidence:  evidence.NormalizeEvidence(rec),
		QAIssues:  evidence.NormalizeQAIssues(rec),
	}
}

// ScreenTicker screens the latest record for ticker. An unknown ticker is
// not an error; the bundle reports Found=false.
func (s *Service) ScreenTicker(ctx context.Context, ticker string) (*SecurityBundle, error) {
	ds, err := s.repo.Get(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "screening: dataset")
	}
	rec, _ := ds.FindByTicker(ticker)
	return s.Evaluate(strings.TrimSpace(ticker), rec), nil
}

// ScreenRecord screens the record with the exact upsert key.
func (s *Service) ScreenRecord(ctx context.Context, key string) (*SecurityBundle, error) {
	ds, err := s.repo.Get(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "screening: dataset")
	}
	rec, _ := ds.FindByUpsertKey(key)
	return s.Evaluate(strings.TrimSpace(key), rec), nil
}

// ScreenPortfolio screens every holding and aggregates the value-weighted
// methodology summaries. Holdings whose ticker is unknown count as no data.
func (s *Service) ScreenPortfolio(ctx context.Context, holdings []model.PortfolioHolding) (*PortfolioBundle, error) {
	if len(holdings) == 0 {
		return nil, portfolio.ErrNoHoldings
	}
	ds, err := s.repo.Get(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "screening: dataset")
	}

	bundles := make([]*SecurityBundle, len(holdings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i, h := range holdings {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, _ := ds.FindByTicker(h.Ticker)
			bundles[i] = s.Evaluate(strings.TrimSpace(h.Ticker), rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "screening: portfolio")
	}

	verdicts := make([]portfolio.Verdict, len(bundles))
	missing := 0
	for i, b := range bundles {
		verdicts[i] = b.Verdict()
		if !b.Found {
			missing++
		}
	}

	res, err := portfolio.Aggregate(holdings, verdicts)
	if err != nil {
		return nil, err
	}
	if missing > 0 {
		zap.L().Debug("screening: portfolio holdings without data",
			zap.Int("holdings", len(holdings)),
			zap.Int("missing", missing),
		)
	}

	out := &PortfolioBundle{
		TotalValue: res.TotalValue,
		Summaries:  res.Summaries,
		Holdings:   make([]HoldingBundle, len(res.Holdings)),
	}
	for i, hr := range res.Holdings {
		out.Holdings[i] = HoldingBundle{HoldingResult: hr, SecurityBundle: bundles[i]}
	}
	return out, nil
}
