// Package portfolio folds per-security methodology results into
// value-weighted summaries for a set of holdings.
package portfolio

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/shariah-screen/internal/methodology"
	"github.com/sells-group/shariah-screen/internal/model"
)

var (
	// ErrNoHoldings is returned when Aggregate is called with no holdings.
	ErrNoHoldings = eris.New("portfolio: no holdings")
	// ErrInvalidHolding is returned for a holding with a blank ticker or a
	// non-positive or non-finite quantity or price.
	ErrInvalidHolding = eris.New("portfolio: invalid holding")
)

// Bucket is the compliance category a holding falls into for one
// methodology.
type Bucket string

const (
	BucketCompliant                 Bucket = "compliant"
	BucketCompliantWithPurification Bucket = "compliant_with_purification"
	BucketNonCompliant              Bucket = "non_compliant"
	BucketNoData                    Bucket = "no_data"
)

// Verdict is the set of methodology results for one holding's security.
type Verdict struct {
	Numeric   methodology.NumericResult
	AutoBan   methodology.AutoBanResult
	Composite methodology.CompositeResult
}

// Summary holds the value-weighted buckets for one methodology. The four
// values always sum to the portfolio total.
type Summary struct {
	Methodology               methodology.Methodology `json:"methodology"`
	Compliant                 decimal.Decimal         `json:"compliant"`
	CompliantWithPurification decimal.Decimal         `json:"compliant_with_purification"`
	NonCompliant              decimal.Decimal         `json:"non_compliant"`
	NoData                    decimal.Decimal         `json:"no_data"`
	Percentages               map[Bucket]float64      `json:"percentages"`
}

// Total returns the sum of the four buckets.
func (s Summary) Total() decimal.Decimal {
	return s.Compliant.Add(s.CompliantWithPurification).Add(s.NonCompliant).Add(s.NoData)
}

func (s *Summary) add(b Bucket, v decimal.Decimal) {
	switch b {
	case BucketCompliant:
		s.Compliant = s.Compliant.Add(v)
	case BucketCompliantWithPurification:
		s.CompliantWithPurification = s.CompliantWithPurification.Add(v)
	case BucketNonCompliant:
		s.NonCompliant = s.NonCompliant.Add(v)
	default:
		s.NoData = s.NoData.Add(v)
	}
}

// HoldingResult is one holding with its value and per-methodology bucket.
type HoldingResult struct {
	Holding model.PortfolioHolding             `json:"holding"`
	Value   decimal.Decimal                    `json:"value"`
	Buckets map[methodology.Methodology]Bucket `json:"buckets"`
}

// Result is the aggregated portfolio.
type Result struct {
	TotalValue decimal.Decimal `json:"total_value"`
	Summaries  []Summary       `json:"summaries"`
	Holdings   []HoldingResult `json:"holdings"`
}

// Summary returns the summary for m.
func (r *Result) Summary(m methodology.Methodology) (Summary, bool) {
	for _, s := range r.Summaries {
		if s.Methodology == m {
			return s, true
		}
	}
	return Summary{}, false
}

// Aggregate weights each holding's verdicts by its market value. verdicts
// must be index-aligned with holdings.
func Aggregate(holdings []model.PortfolioHolding, verdicts []Verdict) (*Result, error) {
	if len(holdings) == 0 {
		return nil, ErrNoHoldings
	}
	if len(verdicts) != len(holdings) {
		return nil, eris.Errorf("portfolio: %d verdicts for %d holdings", len(verdicts), len(holdings))
	}

	res := &Result{
		TotalValue: decimal.Zero,
		Holdings:   make([]HoldingResult, 0, len(holdings)),
	}
	summaries := make(map[methodology.Methodology]*Summary, len(methodology.All))
	for _, m := range methodology.All {
		summaries[m] = &Summary{Methodology: m}
	}

	for i, h := range holdings {
		if !h.Valid() {
			return nil, eris.Wrapf(ErrInvalidHolding, "holding %d (%q): quantity %v, price %v", i, h.Ticker, h.Quantity, h.Price)
		}
		value := decimal.NewFromFloat(h.Quantity).Mul(decimal.NewFromFloat(h.Price))
		res.TotalValue = res.TotalValue.Add(value)

		buckets := Classify(verdicts[i])
		for m, b := range buckets {
			summaries[m].add(b, value)
		}
		res.Holdings = append(res.Holdings, HoldingResult{Holding: h, Value: value, Buckets: buckets})
	}

	for _, m := range methodology.All {
		s := summaries[m]
		s.Percentages = map[Bucket]float64{
			BucketCompliant:                 percentOf(s.Compliant, res.TotalValue),
			BucketCompliantWithPurification: percentOf(s.CompliantWithPurification, res.TotalValue),
			BucketNonCompliant:              percentOf(s.NonCompliant, res.TotalValue),
			BucketNoData:                    percentOf(s.NoData, res.TotalValue),
		}
		res.Summaries = append(res.Summaries, *s)
	}
	return res, nil
}

// Classify assigns a bucket per methodology. Ratio-style methodologies have
// no purification bucket.
func Classify(v Verdict) map[methodology.Methodology]Bucket {
	return map[methodology.Methodology]Bucket{
		methodology.MethodologyNumeric:   statusBucket(v.Numeric.Available, v.Numeric.Status),
		methodology.MethodologyAutoBan:   statusBucket(v.AutoBan.Available, v.AutoBan.Status),
		methodology.MethodologyComposite: compositeBucket(v.Composite),
	}
}

func statusBucket(available bool, status model.Status) Bucket {
	switch {
	case !available:
		return BucketNoData
	case status == model.StatusPass:
		return BucketCompliant
	}
	return BucketNonCompliant
}

func compositeBucket(c methodology.CompositeResult) Bucket {
	if !c.Available {
		return BucketNoData
	}
	switch c.Classification {
	case model.ClassificationCompliant:
		return BucketCompliant
	case model.ClassificationCompliantWithPurification:
		return BucketCompliantWithPurification
	}
	return BucketNonCompliant
}

func percentOf(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return part.Mul(decimal.NewFromInt(100)).Div(total).Round(2).InexactFloat64()
}
