package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/shariah-screen/internal/fields"
	"github.com/sells-group/shariah-screen/internal/model"
)

// Key variants seen in segment blobs across generations.
var (
	segNameKeys        = []string{"name", "segment", "segment_name", "category", "label"}
	segDescKeys        = []string{"description", "desc", "summary"}
	segPointKeys       = []string{"point_estimate", "pointEstimate", "pct_point", "point", "pct", "percentage", "revenue_pct", "estimate_pct"}
	segLowerKeys       = []string{"lower", "lower_bound", "pct_lower", "low", "min"}
	segUpperKeys       = []string{"upper", "upper_bound", "pct_upper", "high", "max"}
	segConfidenceKeys  = []string{"confidence", "confidence_level"}
	segReasoningKeys   = []string{"reasoning", "rationale", "explanation"}
	segLimitationKeys  = []string{"limitations", "caveats"}
	segCompositionKeys = []string{"composition", "components", "breakdown"}
	segReferenceKeys   = []string{"references", "sources", "citations"}
	segEstimateKeys    = []string{"estimate", "pct_range", "range"}
)

// parseSegments accepts a list of segment objects, a {"segments": [...]}
// wrapper, or a single object. Anything else yields nil.
func parseSegments(v any) []model.HaramSegment {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		if inner, ok := t["segments"].([]any); ok {
			items = inner
		} else {
			items = []any{t}
		}
	default:
		return nil
	}

	var out []model.HaramSegment
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		seg := model.HaramSegment{
			Name:          strField(m, segNameKeys...),
			Description:   strField(m, segDescKeys...),
			PointEstimate: numField(m, segPointKeys...),
			Lower:         numField(m, segLowerKeys...),
			Upper:         numField(m, segUpperKeys...),
			Confidence:    strField(m, segConfidenceKeys...),
			Reasoning:     strField(m, segReasoningKeys...),
			Limitations:   strField(m, segLimitationKeys...),
			Composition:   parseComposition(firstValue(m, segCompositionKeys...)),
			References:    parseReferences(firstValue(m, segReferenceKeys...)),
		}
		if est, ok := firstValue(m, segEstimateKeys...).(map[string]any); ok {
			if seg.PointEstimate == nil {
				seg.PointEstimate = numField(est, segPointKeys...)
			}
			if seg.Lower == nil {
				seg.Lower = numField(est, segLowerKeys...)
			}
			if seg.Upper == nil {
				seg.Upper = numField(est, segUpperKeys...)
			}
		}
		if seg.Name == "" && seg.PointEstimate == nil && seg.Lower == nil && seg.Upper == nil {
			continue
		}
		out = append(out, seg)
	}
	return out
}

func parseComposition(v any) []model.SegmentComponent {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []model.SegmentComponent
	for _, item := range items {
		switch t := item.(type) {
		case map[string]any:
			out = append(out, model.SegmentComponent{
				Name:          strField(t, segNameKeys...),
				PointEstimate: numField(t, segPointKeys...),
				Rationale:     strField(t, segReasoningKeys...),
			})
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, model.SegmentComponent{Name: s})
			}
		}
	}
	return out
}

func parseReferences(v any) []model.SegmentReference {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []model.SegmentReference
	for _, item := range items {
		switch t := item.(type) {
		case map[string]any:
			ref := model.SegmentReference{
				Title:   strField(t, "title", "name"),
				URL:     strField(t, "url", "link", "href"),
				Source:  strField(t, "source", "publisher", "document"),
				Excerpt: strField(t, "excerpt", "quote", "snippet"),
			}
			if ref != (model.SegmentReference{}) {
				out = append(out, ref)
			}
		case string:
			s := strings.TrimSpace(t)
			switch {
			case s == "":
			case strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://"):
				out = append(out, model.SegmentReference{URL: s})
			default:
				out = append(out, model.SegmentReference{Title: s})
			}
		}
	}
	return out
}

// parseEvidenceList reads the structured evidence shape. Bare strings are
// treated as rationales; empty items are dropped.
func parseEvidenceList(v any) []model.EvidenceItem {
	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any, string:
		items = []any{t}
	default:
		return nil
	}

	var out []model.EvidenceItem
	for _, item := range items {
		var ev model.EvidenceItem
		switch t := item.(type) {
		case map[string]any:
			ev = model.EvidenceItem{
				Category:  strField(t, "category", "type", "flag"),
				Severity:  strField(t, "severity", "level"),
				Rationale: strField(t, "rationale", "reason", "reasoning"),
				Snippet:   strField(t, "snippet", "quote", "excerpt"),
				Source:    strField(t, "source", "url", "document"),
			}
		case string:
			ev.Rationale = strings.TrimSpace(t)
		}
		if !ev.IsZero() {
			out = append(out, ev)
		}
	}
	return out
}

// parseStringColumn reads one of the parallel evidence arrays. A value that
// is not a JSON array becomes a single-element column.
func parseStringColumn(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, len(t))
		for i, item := range t {
			out[i] = stringify(item)
		}
		return out
	default:
		s := stringify(t)
		if s == "" {
			return nil
		}
		return []string{s}
	}
}

// parseIssueList keeps the structured QA issue list as decoded JSON values.
func parseIssueList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		if len(t) == 0 {
			return nil
		}
		return t
	default:
		return []any{t}
	}
}

func firstValue(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func strField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringify(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func numField(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		switch t := m[k].(type) {
		case float64:
			v := t
			return &v
		case json.Number:
			if f, err := t.Float64(); err == nil {
				return &f
			}
		case string:
			if f := fields.ParseNumber(t); f != nil {
				return f
			}
		}
	}
	return nil
}

// stringify renders scalar JSON values as trimmed strings. Objects and
// arrays render as compact JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
