// Package evidence unifies the evidence and QA issue representations found
// on screening records into single canonical lists.
package evidence

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/shariah-screen/internal/model"
)

// NormalizeEvidence returns the structured evidence list when present,
// otherwise the parallel columns zipped by index up to the longest column.
// Missing indices in shorter columns leave the field empty, and an index
// that is empty in every column is kept so positions match the source.
func NormalizeEvidence(rec *model.ScreeningRecord) []model.EvidenceItem {
	if rec == nil {
		return []model.EvidenceItem{}
	}
	if len(rec.Evidence) > 0 {
		return append([]model.EvidenceItem(nil), rec.Evidence...)
	}

	cols := rec.EvidenceColumns
	out := make([]model.EvidenceItem, 0, cols.Len())
	for i := 0; i < cols.Len(); i++ {
		out = append(out, model.EvidenceItem{
			Category:  at(cols.Category, i),
			Severity:  at(cols.Severity, i),
			Rationale: at(cols.Rationale, i),
			Snippet:   at(cols.Snippet, i),
			Source:    at(cols.Source, i),
		})
	}
	return out
}

func at(col []string, i int) string {
	if i < len(col) {
		return col[i]
	}
	return ""
}

// qaSource is one representation of QA issues. It returns nil when it has
// nothing to contribute.
type qaSource func(rec *model.ScreeningRecord) []model.QAIssue

// qaSources are tried in order; the first non-empty result wins.
var qaSources = []qaSource{
	fromIssueList,
	func(rec *model.ScreeningRecord) []model.QAIssue { return splitCSV(rec.QAIssuesCSV) },
	func(rec *model.ScreeningRecord) []model.QAIssue { return fromJSONString(rec.QAIssuesJSON) },
}

// NormalizeQAIssues returns the record's QA issues from the first
// representation that yields any. Sources are never concatenated.
func NormalizeQAIssues(rec *model.ScreeningRecord) []model.QAIssue {
	if rec == nil {
		return []model.QAIssue{}
	}
	for _, src := range qaSources {
		if issues := src(rec); len(issues) > 0 {
			return issues
		}
	}
	return []model.QAIssue{}
}

func fromIssueList(rec *model.ScreeningRecord) []model.QAIssue {
	return fromValues(rec.QAIssueList)
}

func fromValues(values []any) []model.QAIssue {
	var out []model.QAIssue
	for _, v := range values {
		if issue, ok := issueFromValue(v); ok {
			out = append(out, issue)
		}
	}
	return out
}

func issueFromValue(v any) (model.QAIssue, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return model.QAIssue{Description: s}, s != ""
	case map[string]any:
		issue := model.QAIssue{
			Description: str(t, "description", "issue", "message", "text"),
			Code:        str(t, "code", "type"),
			Severity:    str(t, "severity", "level"),
			Field:       str(t, "field", "column"),
		}
		return issue, issue != (model.QAIssue{})
	}
	return model.QAIssue{}, false
}

func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func splitCSV(raw string) []model.QAIssue {
	var out []model.QAIssue
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, model.QAIssue{Description: s})
		}
	}
	return out
}

// fromJSONString parses a JSON list, object or string. Input that does not
// parse is split as CSV.
func fromJSONString(raw string) []model.QAIssue {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return splitCSV(raw)
	}
	switch t := v.(type) {
	case []any:
		return fromValues(t)
	case string:
		return splitCSV(t)
	default:
		return fromValues([]any{t})
	}
}
