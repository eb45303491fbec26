package dataset

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shariah-screen/internal/model"
)

// Paging limits for ListRecords.
const (
	DefaultPageSize = 25
	MaxPageSize     = 500
)

// ErrUnknownField is returned by ListDistinctValues for a field that has no
// distinct-value index.
var ErrUnknownField = eris.New("dataset: unknown field")

// distinctFields maps listable field names to their accessors.
var distinctFields = map[string]func(*model.ScreeningRecord) string{
	"sector":               func(r *model.ScreeningRecord) string { return r.Sector },
	"industry":             func(r *model.ScreeningRecord) string { return r.Industry },
	"risk_level":           func(r *model.ScreeningRecord) string { return r.RiskLevel },
	"zakat_status":         func(r *model.ScreeningRecord) string { return r.ZakatStatus },
	"zakat_methodology":    func(r *model.ScreeningRecord) string { return r.ZakatMethodology },
	"final_classification": func(r *model.ScreeningRecord) string { return string(r.FinalClassification) },
	"security_type":        func(r *model.ScreeningRecord) string { return r.SecurityType },
	"methodology_version":  func(r *model.ScreeningRecord) string { return r.MethodologyVersion },
	"business_status":      func(r *model.ScreeningRecord) string { return r.BusinessStatus },
	"qa_status":            func(r *model.ScreeningRecord) string { return r.QAStatus },
	"report_date":          func(r *model.ScreeningRecord) string { return r.ReportDate },
	"auto_banned": func(r *model.ScreeningRecord) string {
		if r.AutoBanned == nil {
			return ""
		}
		return strconv.FormatBool(*r.AutoBanned)
	},
}

// DistinctFields lists the field names accepted by ListDistinctValues.
func DistinctFields() []string {
	out := make([]string, 0, len(distinctFields))
	for f := range distinctFields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ListDistinctValues returns the sorted unique non-empty values of field.
func (d *Dataset) ListDistinctValues(field string) ([]string, error) {
	get, ok := distinctFields[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownField, "field %q", field)
	}
	seen := make(map[string]struct{})
	out := []string{}
	for _, rec := range d.records {
		v := strings.TrimSpace(get(rec))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// Filter narrows ListRecords. Empty fields do not filter. String matches
// are case-insensitive.
type Filter struct {
	// Search matches a substring of the ticker or company name.
	Search           string `json:"search,omitempty"`
	Classification   string `json:"classification,omitempty"`
	Sector           string `json:"sector,omitempty"`
	RiskLevel        string `json:"risk_level,omitempty"`
	AutoBanned       *bool  `json:"auto_banned,omitempty"`
	ZakatStatus      string `json:"zakat_status,omitempty"`
	ZakatMethodology string `json:"zakat_methodology,omitempty"`
}

// Match reports whether rec satisfies every set criterion.
func (f Filter) Match(rec *model.ScreeningRecord) bool {
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		if !strings.Contains(strings.ToLower(rec.Ticker), s) &&
			!strings.Contains(strings.ToLower(rec.CompanyName), s) {
			return false
		}
	}
	if f.Classification != "" {
		want, ok := model.ParseClassification(f.Classification)
		if !ok || rec.FinalClassification != want {
			return false
		}
	}
	if f.AutoBanned != nil {
		if rec.AutoBanned == nil || *rec.AutoBanned != *f.AutoBanned {
			return false
		}
	}
	for _, c := range []struct{ want, got string }{
		{f.Sector, rec.Sector},
		{f.RiskLevel, rec.RiskLevel},
		{f.ZakatStatus, rec.ZakatStatus},
		{f.ZakatMethodology, rec.ZakatMethodology},
	} {
		if w := strings.TrimSpace(c.want); w != "" && !strings.EqualFold(w, c.got) {
			return false
		}
	}
	return true
}

// Page is one page of ListRecords results.
type Page struct {
	Records  []*model.ScreeningRecord `json:"records"`
	Total    int                      `json:"total"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
}

// ListRecords returns the 1-based page of records matching filter, ordered
// by ticker then newest report date. Out-of-range paging values are
// clamped.
func (d *Dataset) ListRecords(filter Filter, page, pageSize int) Page {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}

	var matched []*model.ScreeningRecord
	for _, rec := range d.records {
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}

	res := Page{Records: []*model.ScreeningRecord{}, Total: len(matched), Page: page, PageSize: pageSize}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return res
	}
	end := min(start+pageSize, len(matched))
	res.Records = matched[start:end]
	return res
}
