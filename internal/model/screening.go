// Package model defines the canonical screening data shapes shared by the
// normalizer, the methodology evaluators and the aggregators.
package model

import "strings"

// Classification is the composite (Invesense) verdict for a security.
type Classification string

const (
	ClassificationCompliant                 Classification = "COMPLIANT"
	ClassificationCompliantWithPurification Classification = "COMPLIANT_WITH_PURIFICATION"
	ClassificationNonCompliant              Classification = "NON_COMPLIANT"
	ClassificationDoubtfulReview            Classification = "DOUBTFUL_REVIEW"
)

// Classifications lists the four valid verdicts in display order.
var Classifications = []Classification{
	ClassificationCompliant,
	ClassificationCompliantWithPurification,
	ClassificationNonCompliant,
	ClassificationDoubtfulReview,
}

// Valid reports whether c is one of the four known verdicts.
func (c Classification) Valid() bool {
	switch c {
	case ClassificationCompliant, ClassificationCompliantWithPurification,
		ClassificationNonCompliant, ClassificationDoubtfulReview:
		return true
	}
	return false
}

// ParseClassification maps the spellings seen across source generations
// ("Compliant with purification", "non-compliant", "DOUBTFUL") onto a
// Classification. Unknown or empty input returns "" and false.
func ParseClassification(s string) (Classification, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	for strings.Contains(key, "__") {
		key = strings.ReplaceAll(key, "__", "_")
	}
	switch key {
	case "COMPLIANT", "HALAL":
		return ClassificationCompliant, true
	case "COMPLIANT_WITH_PURIFICATION", "COMPLIANT_PURIFICATION", "PURIFICATION_REQUIRED":
		return ClassificationCompliantWithPurification, true
	case "NON_COMPLIANT", "NONCOMPLIANT", "NOT_COMPLIANT", "HARAM":
		return ClassificationNonCompliant, true
	case "DOUBTFUL_REVIEW", "DOUBTFUL", "REVIEW", "NEEDS_REVIEW":
		return ClassificationDoubtfulReview, true
	}
	return "", false
}

// Status is a pass/fail outcome for a ratio or a methodology.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusUnknown Status = "UNKNOWN"
)

// ParseStatus accepts PASS/FAIL in any case (plus a few boolean-ish
// spellings). Anything else returns "" and false.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASS", "PASSED", "OK":
		return StatusPass, true
	case "FAIL", "FAILED":
		return StatusFail, true
	}
	return "", false
}

// Ratio is one balance-sheet or income screen: a percentage value, the
// threshold it is compared to, and an optional precomputed status that
// takes precedence over local recomputation.
type Ratio struct {
	ValuePct     *float64 `json:"value_pct,omitempty"`
	ThresholdPct float64  `json:"threshold_pct"`
	Status       Status   `json:"status,omitempty"`
}

// Default ratio thresholds, in percent.
const (
	DefaultDebtThresholdPct    = 33.0
	DefaultCashInvThresholdPct = 33.0
	DefaultNPINThresholdPct    = 5.0
)

// DefaultBusinessStatus is used when the source carries no business status.
const DefaultBusinessStatus = "UNKNOWN"

// ScreeningRecord is the canonical, schema-version independent view of one
// security on one report date. Records are built once by the normalizer and
// never mutated afterwards.
type ScreeningRecord struct {
	UpsertKey          string `json:"upsert_key"`
	Ticker             string `json:"ticker"`
	CompanyName        string `json:"company_name,omitempty"`
	ReportDate         string `json:"report_date,omitempty"`
	MethodologyVersion string `json:"methodology_version,omitempty"`
	SecurityType       string `json:"security_type,omitempty"`
	Sector             string `json:"sector,omitempty"`
	Industry           string `json:"industry,omitempty"`
	RiskLevel          string `json:"risk_level,omitempty"`
	ZakatStatus        string `json:"zakat_status,omitempty"`
	ZakatMethodology   string `json:"zakat_methodology,omitempty"`

	Debt    Ratio `json:"debt"`
	CashInv Ratio `json:"cash_inv"`
	NPIN    Ratio `json:"npin"`

	LLMHasFailFlag    bool   `json:"llm_has_fail_flag"`
	LLMHasCautionFlag bool   `json:"llm_has_caution_flag"`
	BusinessStatus    string `json:"business_status"`

	FinalClassification  Classification `json:"final_classification,omitempty"`
	PurificationRequired bool           `json:"purification_required"`
	PurificationPct      *float64       `json:"purification_pct_recommended,omitempty"`
	NeedsBoardReview     bool           `json:"needs_board_review"`

	HaramPctPoint        *float64       `json:"haram_pct_point,omitempty"`
	HaramPctLower        *float64       `json:"haram_pct_lower,omitempty"`
	HaramPctUpper        *float64       `json:"haram_pct_upper,omitempty"`
	HaramSegments        []HaramSegment `json:"haram_segments,omitempty"`
	HaramSegmentsLegacy  []HaramSegment `json:"haram_segments_legacy,omitempty"`
	HaramTotalPctDisplay string         `json:"haram_total_pct_display,omitempty"`

	Evidence        []EvidenceItem  `json:"evidence,omitempty"`
	EvidenceColumns EvidenceColumns `json:"evidence_columns"`

	QANeedsReview bool   `json:"qa_needs_review"`
	QAStatus      string `json:"qa_status,omitempty"`
	QAIssueCount  *int   `json:"qa_issue_count,omitempty"`
	QAIssueList   []any  `json:"qa_issue_list,omitempty"`
	QAIssuesCSV   string `json:"qa_issues_csv,omitempty"`
	QAIssuesJSON  string `json:"qa_issues_json,omitempty"`

	AutoBanned            *bool  `json:"auto_banned,omitempty"`
	AutoBannedReasonClean string `json:"auto_banned_reason_clean,omitempty"`
	AutoBannedSummary     string `json:"auto_banned_summary,omitempty"`
}

// IsAutoBanned reports whether the source explicitly marked the security as
// automatically banned.
func (r *ScreeningRecord) IsAutoBanned() bool {
	return r.AutoBanned != nil && *r.AutoBanned
}
