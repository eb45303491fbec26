// Package revenue derives the ranked non-compliant revenue composition of a
// screening record.
package revenue

import (
	"fmt"
	"math"
	"sort"

	"github.com/sells-group/shariah-screen/internal/methodology"
	"github.com/sells-group/shariah-screen/internal/model"
)

// DefaultResidualEpsilon is the minimum gap, in percentage points, between
// the record total and the segment sum before a residual bucket is added.
const DefaultResidualEpsilon = 0.5

// ResidualName labels the synthesized gap bucket.
const ResidualName = "Other non-halal"

// Segment is a haram segment with its resolved display percentage.
type Segment struct {
	model.HaramSegment
	ResolvedPct float64 `json:"resolved_pct"`
	Residual    bool    `json:"residual,omitempty"`
}

// Composition is the display-ready revenue breakdown. A composition with
// no segments and a nil HaramPct means no estimate is available.
type Composition struct {
	Available    bool      `json:"available"`
	Segments     []Segment `json:"segments"`
	HaramPct     *float64  `json:"haram_pct,omitempty"`
	HalalPct     *float64  `json:"halal_pct,omitempty"`
	DisplayTotal string    `json:"display_total"`
}

// Aggregator builds compositions.
type Aggregator struct {
	ResidualEpsilon float64
}

// NewAggregator returns an Aggregator with the given epsilon; a
// non-positive epsilon selects DefaultResidualEpsilon.
func NewAggregator(epsilon float64) Aggregator {
	if epsilon <= 0 {
		epsilon = DefaultResidualEpsilon
	}
	return Aggregator{ResidualEpsilon: epsilon}
}

// Aggregate never fails; missing data yields an unavailable composition.
func (a Aggregator) Aggregate(rec *model.ScreeningRecord) Composition {
	comp := Composition{Segments: []Segment{}, DisplayTotal: "N/A"}
	if rec == nil {
		return comp
	}

	src := rec.HaramSegments
	if len(src) == 0 {
		src = rec.HaramSegmentsLegacy
	}

	var sum float64
	for _, s := range src {
		seg := Segment{HaramSegment: s, ResolvedPct: *clampPct(ResolvePct(s))}
		sum += seg.ResolvedPct
		comp.Segments = append(comp.Segments, seg)
	}

	switch {
	case rec.HaramPctPoint != nil:
		comp.HaramPct = clampPct(*rec.HaramPctPoint)
	case len(comp.Segments) > 0:
		comp.HaramPct = clampPct(sum)
	}

	if comp.HaramPct != nil {
		gap := *comp.HaramPct - sum
		if gap > a.epsilon() {
			comp.Segments = append(comp.Segments, Segment{
				HaramSegment: model.HaramSegment{Name: ResidualName, PointEstimate: &gap},
				ResolvedPct:  gap,
				Residual:     true,
			})
		}
		halal := math.Max(0, 100-*comp.HaramPct)
		comp.HalalPct = &halal
		comp.DisplayTotal = methodology.FormatPct(*comp.HaramPct)
	}
	if rec.HaramTotalPctDisplay != "" {
		comp.DisplayTotal = rec.HaramTotalPctDisplay
	}

	sort.SliceStable(comp.Segments, func(i, j int) bool {
		return comp.Segments[i].ResolvedPct > comp.Segments[j].ResolvedPct
	})

	comp.Available = comp.HaramPct != nil || len(comp.Segments) > 0
	return comp
}

func (a Aggregator) epsilon() float64 {
	if a.ResidualEpsilon <= 0 {
		return DefaultResidualEpsilon
	}
	return a.ResidualEpsilon
}

// ResolvePct picks the displayed percentage of a segment: point estimate,
// then upper bound, then lower bound, then 0.
func ResolvePct(s model.HaramSegment) float64 {
	switch {
	case s.PointEstimate != nil:
		return *s.PointEstimate
	case s.Upper != nil:
		return *s.Upper
	case s.Lower != nil:
		return *s.Lower
	}
	return 0
}

// clampPct bounds v to 0-100. Out-of-range source values are reported by
// Validate.
func clampPct(v float64) *float64 {
	v = math.Max(0, math.Min(v, 100))
	return &v
}

// Anomaly is a data-quality observation about a record's segments.
type Anomaly struct {
	UpsertKey string `json:"upsert_key"`
	Segment   string `json:"segment,omitempty"`
	Message   string `json:"message"`
}

func (a Anomaly) String() string {
	if a.Segment == "" {
		return fmt.Sprintf("%s: %s", a.UpsertKey, a.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", a.UpsertKey, a.Segment, a.Message)
}

// Validate reports range and total anomalies. Records are never rejected
// for them.
func Validate(rec *model.ScreeningRecord) []Anomaly {
	if rec == nil {
		return nil
	}
	var out []Anomaly
	add := func(segment, format string, args ...any) {
		out = append(out, Anomaly{UpsertKey: rec.UpsertKey, Segment: segment, Message: fmt.Sprintf(format, args...)})
	}

	if msg := rangeViolation(rec.HaramPctLower, rec.HaramPctPoint, rec.HaramPctUpper); msg != "" {
		add("", "record haram range %s", msg)
	}
	if p := rec.HaramPctPoint; p != nil && (*p < 0 || *p > 100) {
		add("", "record haram percentage %.2f outside 0-100", *p)
	}

	src := rec.HaramSegments
	if len(src) == 0 {
		src = rec.HaramSegmentsLegacy
	}
	var sum float64
	for _, s := range src {
		if msg := rangeViolation(s.Lower, s.PointEstimate, s.Upper); msg != "" {
			add(s.Name, "segment range %s", msg)
		}
		if p := ResolvePct(s); p < 0 || p > 100 {
			add(s.Name, "segment percentage %.2f outside 0-100", p)
		}
		sum += ResolvePct(s)
	}
	if sum > 100 {
		add("", "segment percentages sum to %.2f, above 100", sum)
	}
	return out
}

func rangeViolation(lower, point, upper *float64) string {
	switch {
	case lower != nil && upper != nil && *lower > *upper:
		return fmt.Sprintf("lower %.2f above upper %.2f", *lower, *upper)
	case lower != nil && point != nil && *point < *lower:
		return fmt.Sprintf("point %.2f below lower %.2f", *point, *lower)
	case upper != nil && point != nil && *point > *upper:
		return fmt.Sprintf("point %.2f above upper %.2f", *point, *upper)
	}
	return ""
}
