package normalize

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/shariah-screen/internal/fields"
	"github.com/sells-group/shariah-screen/internal/methodology"
	"github.com/sells-group/shariah-screen/internal/model"
)

// ErrMissingIdentity is returned for raw records that resolve no upsert
// key or no ticker. Such records are dropped by the loader.
var ErrMissingIdentity = eris.New("normalize: record missing upsert key or ticker")

// Normalizer builds canonical records from raw field sources using a
// resolution table. It holds no mutable state and is safe for concurrent
// use.
type Normalizer struct {
	table      *Table
	thresholds Thresholds
}

// Thresholds are the fallback ratio thresholds, in percent, for records
// that do not carry their own.
type Thresholds struct {
	DebtPct    float64
	CashInvPct float64
	NPINPct    float64
}

// DefaultThresholds returns 33/33/5.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DebtPct:    model.DefaultDebtThresholdPct,
		CashInvPct: model.DefaultCashInvThresholdPct,
		NPINPct:    model.DefaultNPINThresholdPct,
	}
}

// New creates a Normalizer. A nil table selects DefaultTable.
func New(table *Table) *Normalizer {
	if table == nil {
		table = DefaultTable()
	}
	return &Normalizer{table: table, thresholds: DefaultThresholds()}
}

// WithThresholds returns a copy of n using th as fallback thresholds.
// Non-positive values keep the defaults.
func (n *Normalizer) WithThresholds(th Thresholds) *Normalizer {
	def := DefaultThresholds()
	if th.DebtPct <= 0 {
		th.DebtPct = def.DebtPct
	}
	if th.CashInvPct <= 0 {
		th.CashInvPct = def.CashInvPct
	}
	if th.NPINPct <= 0 {
		th.NPINPct = def.NPINPct
	}
	return &Normalizer{table: n.table, thresholds: th}
}

// Table returns the resolution table in use.
func (n *Normalizer) Table() *Table {
	return n.table
}

// Normalize resolves every canonical field of src. Nested blobs that fail
// to parse yield empty lists; only a missing identity is an error.
func (n *Normalizer) Normalize(src fields.Source) (*model.ScreeningRecord, error) {
	key := n.str(src, FieldUpsertKey)
	ticker := n.str(src, FieldTicker)
	if key == "" || ticker == "" {
		return nil, ErrMissingIdentity
	}

	rec := &model.ScreeningRecord{
		UpsertKey:          key,
		Ticker:             ticker,
		CompanyName:        n.str(src, FieldCompanyName),
		ReportDate:         normalizeDate(n.str(src, FieldReportDate)),
		MethodologyVersion: n.str(src, FieldMethodologyVersion),
		SecurityType:       n.str(src, FieldSecurityType),
		Sector:             n.str(src, FieldSector),
		Industry:           n.str(src, FieldIndustry),
		RiskLevel:          n.str(src, FieldRiskLevel),
		ZakatStatus:        n.str(src, FieldZakatStatus),
		ZakatMethodology:   n.str(src, FieldZakatMethodology),

		Debt:    n.ratio(src, FieldDebtRatio, FieldDebtThreshold, FieldDebtStatus, n.thresholds.DebtPct),
		CashInv: n.ratio(src, FieldCashInvRatio, FieldCashInvThreshold, FieldCashInvStatus, n.thresholds.CashInvPct),
		NPIN:    n.ratio(src, FieldNPINRatio, FieldNPINThreshold, FieldNPINStatus, n.thresholds.NPINPct),

		LLMHasFailFlag:    n.boolean(src, FieldLLMHasFailFlag),
		LLMHasCautionFlag: n.boolean(src, FieldLLMHasCautionFlag),
		BusinessStatus:    n.str(src, FieldBusinessStatus),

		PurificationRequired: n.boolean(src, FieldPurificationRequired),
		PurificationPct:      n.pct(src, FieldPurificationPct),
		NeedsBoardReview:     n.boolean(src, FieldNeedsBoardReview),

		HaramPctPoint:        n.pct(src, FieldHaramPctPoint),
		HaramPctLower:        n.pct(src, FieldHaramPctLower),
		HaramPctUpper:        n.pct(src, FieldHaramPctUpper),
		HaramSegments:        parseSegments(n.json(src, FieldHaramSegments)),
		HaramSegmentsLegacy:  parseSegments(n.json(src, FieldHaramSegmentsLegacy)),
		HaramTotalPctDisplay: n.str(src, FieldHaramTotalDisplay),

		Evidence: parseEvidenceList(n.json(src, FieldEvidence)),
		EvidenceColumns: model.EvidenceColumns{
			Category:  parseStringColumn(n.json(src, FieldEvidenceCategory)),
			Severity:  parseStringColumn(n.json(src, FieldEvidenceSeverity)),
			Rationale: parseStringColumn(n.json(src, FieldEvidenceRationale)),
			Snippet:   parseStringColumn(n.json(src, FieldEvidenceSnippet)),
			Source:    parseStringColumn(n.json(src, FieldEvidenceSource)),
		},

		QANeedsReview: n.boolean(src, FieldQANeedsReview),
		QAStatus:      n.str(src, FieldQAStatus),
		QAIssueCount:  n.count(src, FieldQAIssueCount),
		QAIssueList:   parseIssueList(n.json(src, FieldQAIssues)),
		QAIssuesCSV:   n.str(src, FieldQAIssuesCSV),
		QAIssuesJSON:  n.str(src, FieldQAIssuesJSON),

		AutoBanned:            fields.BoolPtr(src, n.table.Names(FieldAutoBanned)...),
		AutoBannedReasonClean: n.str(src, FieldAutoBannedReason),
		AutoBannedSummary:     n.str(src, FieldAutoBannedSummary),
	}

	if rec.BusinessStatus == "" {
		rec.BusinessStatus = model.DefaultBusinessStatus
	}
	if cls, ok := model.ParseClassification(n.str(src, FieldFinalClassification)); ok {
		rec.FinalClassification = cls
	}
	return rec, nil
}

func (n *Normalizer) str(src fields.Source, field string) string {
	v, _ := fields.String(src, n.table.Names(field)...)
	return v
}

func (n *Normalizer) boolean(src fields.Source, field string) bool {
	return fields.Bool(src, n.table.Names(field)...)
}

func (n *Normalizer) json(src fields.Source, field string) any {
	v, _ := fields.JSON(src, n.table.Names(field)...)
	return v
}

// pct resolves a percentage, converting fraction-tagged columns.
func (n *Normalizer) pct(src fields.Source, field string) *float64 {
	name, raw, ok := fields.First(src, n.table.Names(field)...)
	if !ok {
		return nil
	}
	v := fields.ParseNumber(raw)
	if v == nil {
		return nil
	}
	if n.table.Unit(field, name) == UnitFraction {
		p := methodology.PercentFromRatio(*v)
		return &p
	}
	return v
}

func (n *Normalizer) count(src fields.Source, field string) *int {
	v := fields.Number(src, n.table.Names(field)...)
	if v == nil || *v < 0 {
		return nil
	}
	c := int(math.Round(*v))
	return &c
}

func (n *Normalizer) ratio(src fields.Source, valueField, thresholdField, statusField string, def float64) model.Ratio {
	r := model.Ratio{
		ValuePct:     n.pct(src, valueField),
		ThresholdPct: def,
	}
	if t := n.pct(src, thresholdField); t != nil {
		r.ThresholdPct = *t
	}
	if s, ok := model.ParseStatus(n.str(src, statusField)); ok {
		r.Status = s
	}
	return r
}
