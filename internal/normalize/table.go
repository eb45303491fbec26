// Package normalize turns raw records from any supported schema generation
// into canonical model.ScreeningRecords.
package normalize

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Unit tags how a numeric source column expresses a percentage.
type Unit string

const (
	// UnitNone marks non-numeric or unit-less columns.
	UnitNone Unit = ""
	// UnitPct columns already hold 0-100 percentages.
	UnitPct Unit = "pct"
	// UnitFraction columns may hold fractions (0.33) or, in some exports,
	// percentages; values are normalized on read.
	UnitFraction Unit = "fraction"
)

// Candidate is one acceptable source column for a canonical field.
type Candidate struct {
	Name string `yaml:"name"`
	Unit Unit   `yaml:"unit,omitempty"`
}

// UnmarshalYAML accepts either a bare column name or a {name, unit} map.
func (c *Candidate) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		c.Name = strings.TrimSpace(node.Value)
		c.Unit = UnitNone
		return nil
	}
	type plain Candidate
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = Candidate(p)
	c.Name = strings.TrimSpace(c.Name)
	return nil
}

// Canonical field keys.
const (
	FieldUpsertKey            = "upsert_key"
	FieldTicker               = "ticker"
	FieldCompanyName          = "company_name"
	FieldReportDate           = "report_date"
	FieldMethodologyVersion   = "methodology_version"
	FieldSecurityType         = "security_type"
	FieldSector               = "sector"
	FieldIndustry             = "industry"
	FieldRiskLevel            = "risk_level"
	FieldZakatStatus          = "zakat_status"
	FieldZakatMethodology     = "zakat_methodology"
	FieldDebtRatio            = "debt_ratio_pct"
	FieldDebtThreshold        = "debt_threshold_pct"
	FieldDebtStatus           = "debt_status"
	FieldCashInvRatio         = "cash_inv_ratio_pct"
	FieldCashInvThreshold     = "cash_inv_threshold_pct"
	FieldCashInvStatus        = "cash_inv_status"
	FieldNPINRatio            = "npin_ratio_pct"
	FieldNPINThreshold        = "npin_threshold_pct"
	FieldNPINStatus           = "npin_status"
	FieldLLMHasFailFlag       = "llm_has_fail_flag"
	FieldLLMHasCautionFlag    = "llm_has_caution_flag"
	FieldBusinessStatus       = "business_status"
	FieldFinalClassification  = "final_classification"
	FieldPurificationRequired = "purification_required"
	FieldPurificationPct      = "purification_pct_recommended"
	FieldNeedsBoardReview     = "needs_board_review"
	FieldHaramPctPoint        = "haram_pct_point"
	FieldHaramPctLower        = "haram_pct_lower"
	FieldHaramPctUpper        = "haram_pct_upper"
	FieldHaramSegments        = "haram_segments"
	FieldHaramSegmentsLegacy  = "haram_segments_legacy"
	FieldHaramTotalDisplay    = "haram_total_pct_display"
	FieldEvidence             = "evidence"
	FieldEvidenceCategory     = "evidence_category"
	FieldEvidenceSeverity     = "evidence_severity"
	FieldEvidenceRationale    = "evidence_rationale"
	FieldEvidenceSnippet      = "evidence_snippet"
	FieldEvidenceSource       = "evidence_source"
	FieldQANeedsReview        = "qa_needs_review"
	FieldQAStatus             = "qa_status"
	FieldQAIssueCount         = "qa_issue_count"
	FieldQAIssues             = "qa_issues"
	FieldQAIssuesCSV          = "qa_issues_csv"
	FieldQAIssuesJSON         = "qa_issues_json"
	FieldAutoBanned           = "auto_banned"
	FieldAutoBannedReason     = "auto_banned_reason_clean"
	FieldAutoBannedSummary    = "auto_banned_summary"
)

// DefaultTableVersion identifies the compiled-in resolution table.
const DefaultTableVersion = "2025.2"

// Table is the declarative, versioned resolution table: for every
// canonical field, the ordered list of source columns that may carry it,
// newest schema generation first.
type Table struct {
	Version string                 `yaml:"version"`
	Fields  map[string][]Candidate `yaml:"fields"`
}

func names(cols ...string) []Candidate {
	out := make([]Candidate, len(cols))
	for i, c := range cols {
		out[i] = Candidate{Name: c}
	}
	return out
}

func pct(name string) Candidate      { return Candidate{Name: name, Unit: UnitPct} }
func fraction(name string) Candidate { return Candidate{Name: name, Unit: UnitFraction} }

// DefaultTable returns the resolution table for the schema generations in
// circulation. The ".1" entries are duplicate columns re-emitted by the
// export when upstream joins collide.
func DefaultTable() *Table {
	return &Table{
		Version: DefaultTableVersion,
		Fields: map[string][]Candidate{
			FieldUpsertKey:          names("upsert_key", "upsertKey", "record_key", "id"),
			FieldTicker:             names("ticker", "Ticker", "symbol", "ticker.1"),
			FieldCompanyName:        names("company_name", "companyName", "name", "Company"),
			FieldReportDate:         names("report_date", "reportDate", "as_of_date", "period_end"),
			FieldMethodologyVersion: names("methodology_version", "methodologyVersion", "screening_version"),
			FieldSecurityType:       names("security_type", "securityType", "asset_type"),
			FieldSector:             names("sector", "gics_sector", "Sector"),
			FieldIndustry:           names("industry", "gics_industry", "Industry"),
			FieldRiskLevel:          names("risk_level", "riskLevel", "compliance_risk"),
			FieldZakatStatus:        names("zakat_status", "zakatStatus"),
			FieldZakatMethodology:   names("zakat_methodology", "zakatMethodology"),

			FieldDebtRatio:        {pct("debt_ratio_pct"), pct("debtRatioPct"), pct("debt_to_mktcap_pct"), fraction("debt_ratio")},
			FieldDebtThreshold:    {pct("debt_threshold_pct"), pct("debtThresholdPct"), fraction("debt_threshold")},
			FieldDebtStatus:       names("debt_status", "debtStatus", "debt_ratio_status"),
			FieldCashInvRatio:     {pct("cash_inv_ratio_pct"), pct("cashInvRatioPct"), pct("cash_investments_pct"), fraction("cash_inv_ratio")},
			FieldCashInvThreshold: {pct("cash_inv_threshold_pct"), pct("cashInvThresholdPct"), fraction("cash_inv_threshold")},
			FieldCashInvStatus:    names("cash_inv_status", "cashInvStatus", "cash_inv_ratio_status"),
			FieldNPINRatio:        {pct("npin_ratio_pct"), pct("npinRatioPct"), pct("non_permissible_income_pct"), fraction("npin_ratio")},
			FieldNPINThreshold:    {pct("npin_threshold_pct"), pct("npinThresholdPct"), fraction("npin_threshold")},
			FieldNPINStatus:       names("npin_status", "npinStatus", "npin_ratio_status"),

			FieldLLMHasFailFlag:    names("llm_has_fail_flag", "llmHasFailFlag", "llm_fail_flag"),
			FieldLLMHasCautionFlag: names("llm_has_caution_flag", "llmHasCautionFlag", "llm_caution_flag"),
			FieldBusinessStatus:    names("business_status", "businessStatus", "business_activity_status"),

			FieldFinalClassification:  names("final_classification", "finalClassification", "final_classification.1", "invesense_classification", "classification"),
			FieldPurificationRequired: names("purification_required", "purificationRequired", "purification_required.1"),
			FieldPurificationPct:      {pct("purification_pct_recommended"), pct("purificationPctRecommended"), fraction("purification_pct")},
			FieldNeedsBoardReview:     names("needs_board_review", "needsBoardReview", "board_review_required"),

			FieldHaramPctPoint:       {pct("haram_pct_point"), pct("haramPctPoint"), pct("haram_revenue_pct")},
			FieldHaramPctLower:       {pct("haram_pct_lower"), pct("haramPctLower"), pct("haram_revenue_pct_low")},
			FieldHaramPctUpper:       {pct("haram_pct_upper"), pct("haramPctUpper"), pct("haram_revenue_pct_high")},
			FieldHaramSegments:       names("haram_segments", "haramSegments"),
			FieldHaramSegmentsLegacy: names("haram_segments_json", "haram_breakdown_json"),
			FieldHaramTotalDisplay:   names("haram_total_pct_display", "haramTotalPctDisplay"),

			FieldEvidence:          names("evidence", "evidence_items", "evidence_json"),
			FieldEvidenceCategory:  names("evidence_category", "evidence_categories"),
			FieldEvidenceSeverity:  names("evidence_severity", "evidence_severities"),
			FieldEvidenceRationale: names("evidence_rationale", "evidence_rationales"),
			FieldEvidenceSnippet:   names("evidence_snippet", "evidence_snippets"),
			FieldEvidenceSource:    names("evidence_source", "evidence_sources"),

			FieldQANeedsReview: names("qa_needs_review", "qaNeedsReview"),
			FieldQAStatus:      names("qa_status", "qaStatus"),
			FieldQAIssueCount:  names("qa_issue_count", "qaIssueCount"),
			FieldQAIssues:      names("qa_issues", "qaIssues"),
			FieldQAIssuesCSV:   names("qa_issues_csv", "qaIssuesCSV"),
			FieldQAIssuesJSON:  names("qa_issues_json", "qaIssuesJSON"),

			FieldAutoBanned:        names("auto_banned", "autoBanned", "auto_banned.1", "is_auto_banned"),
			FieldAutoBannedReason:  names("auto_banned_reason_clean", "autoBannedReasonClean", "auto_banned_reason"),
			FieldAutoBannedSummary: names("auto_banned_summary", "autoBannedSummary"),
		},
	}
}

// Names returns the candidate column names for field, in resolution order.
func (t *Table) Names(field string) []string {
	cands := t.Fields[field]
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Name
	}
	return out
}

// Unit returns the unit of the named candidate for field.
func (t *Table) Unit(field, column string) Unit {
	for _, c := range t.Fields[field] {
		if c.Name == column {
			return c.Unit
		}
	}
	return UnitNone
}

// Validate checks that every canonical field has at least one candidate,
// that no unknown fields are present, and that units are recognised.
func (t *Table) Validate() error {
	var errs []string
	known := DefaultTable().Fields

	for field := range known {
		if len(t.Fields[field]) == 0 {
			errs = append(errs, "no candidates for "+field)
		}
	}
	for field, cands := range t.Fields {
		if _, ok := known[field]; !ok {
			errs = append(errs, "unknown field "+field)
			continue
		}
		for _, c := range cands {
			if c.Name == "" {
				errs = append(errs, "empty candidate name for "+field)
			}
			switch c.Unit {
			case UnitNone, UnitPct, UnitFraction:
			default:
				errs = append(errs, "unknown unit "+string(c.Unit)+" for "+field)
			}
		}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("normalize: invalid resolution table: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadTable reads a YAML override file and applies it on top of the
// default table. A field listed in the file replaces that field's
// candidate list wholesale.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: read table %s", path)
	}
	return ParseTable(data)
}

// ParseTable applies YAML override data on top of the default table.
func ParseTable(data []byte) (*Table, error) {
	var override Table
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, eris.Wrap(err, "normalize: parse table")
	}

	t := DefaultTable()
	if override.Version != "" {
		t.Version = override.Version
	}
	for field, cands := range override.Fields {
		t.Fields[field] = cands
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
