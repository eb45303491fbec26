package methodology

import (
	"github.com/sells-group/shariah-screen/internal/model"
)

// Methodology identifies one of the three evaluation procedures.
type Methodology string

const (
	MethodologyNumeric   Methodology = "numeric_ratios"
	MethodologyAutoBan   Methodology = "auto_ban"
	MethodologyComposite Methodology = "invesense"
)

// All lists the methodologies in display order.
var All = []Methodology{MethodologyNumeric, MethodologyAutoBan, MethodologyComposite}

// RatioResult is the outcome of a single ratio screen.
type RatioResult struct {
	ValuePct     *float64     `json:"value_pct,omitempty"`
	ThresholdPct float64      `json:"threshold_pct"`
	Status       model.Status `json:"status"`
	Precomputed  bool         `json:"precomputed"`
	Display      string       `json:"display"`
}

// NumericResult is the outcome of the numeric ratio methodology.
type NumericResult struct {
	Available bool         `json:"available"`
	Status    model.Status `json:"status,omitempty"`
	Debt      *RatioResult `json:"debt,omitempty"`
	CashInv   *RatioResult `json:"cash_inv,omitempty"`
	NPIN      *RatioResult `json:"npin,omitempty"`
}

// NumericEvaluator applies the debt, cash+investments and non-permissible
// income screens. Thresholds come from each record, so methodology
// versions with different limits evaluate correctly side by side.
type NumericEvaluator struct {
	// Strict switches the comparison from value <= threshold to
	// value < threshold.
	Strict bool
}

// Evaluate screens rec. The methodology is available only when it reaches a
// definite PASS or FAIL; UNKNOWN means there was not enough data.
func (e NumericEvaluator) Evaluate(rec *model.ScreeningRecord) NumericResult {
	if rec == nil {
		return NumericResult{}
	}

	debt := e.evaluateRatio(rec.Debt)
	cash := e.evaluateRatio(rec.CashInv)
	npin := e.evaluateRatio(rec.NPIN)

	status := aggregateStatus(debt.Status, cash.Status, npin.Status)
	return NumericResult{
		Available: status != model.StatusUnknown,
		Status:    status,
		Debt:      &debt,
		CashInv:   &cash,
		NPIN:      &npin,
	}
}

func (e NumericEvaluator) evaluateRatio(r model.Ratio) RatioResult {
	res := RatioResult{
		ValuePct:     r.ValuePct,
		ThresholdPct: r.ThresholdPct,
		Status:       model.StatusUnknown,
		Display:      formatPctPtr(r.ValuePct),
	}

	switch {
	case r.Status == model.StatusPass || r.Status == model.StatusFail:
		res.Status = r.Status
		res.Precomputed = true
	case r.ValuePct != nil:
		if e.passes(*r.ValuePct, r.ThresholdPct) {
			res.Status = model.StatusPass
		} else {
			res.Status = model.StatusFail
		}
	}
	return res
}

func (e NumericEvaluator) passes(valuePct, thresholdPct float64) bool {
	if e.Strict {
		return valuePct < thresholdPct
	}
	return valuePct <= thresholdPct
}

// aggregateStatus is PASS iff all are PASS, FAIL if any is FAIL, else
// UNKNOWN.
func aggregateStatus(statuses ...model.Status) model.Status {
	allPass := true
	for _, s := range statuses {
		if s == model.StatusFail {
			return model.StatusFail
		}
		if s != model.StatusPass {
			allPass = false
		}
	}
	if allPass {
		return model.StatusPass
	}
	return model.StatusUnknown
}
