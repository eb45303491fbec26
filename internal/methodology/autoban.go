package methodology

import "github.com/sells-group/shariah-screen/internal/model"

// AutoBanResult reflects the upstream auto-ban decision.
type AutoBanResult struct {
	Available    bool         `json:"available"`
	Status       model.Status `json:"status,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Summary      string       `json:"summary,omitempty"`
	Industry     string       `json:"industry,omitempty"`
	SecurityType string       `json:"security_type,omitempty"`
}

// AutoBanEvaluator surfaces the precomputed auto-ban flag. The ban list and
// industry taxonomy live upstream; nothing is re-derived here.
type AutoBanEvaluator struct{}

// Evaluate reports FAIL for banned securities and PASS otherwise. A record
// whose source never stated the flag is unavailable.
func (AutoBanEvaluator) Evaluate(rec *model.ScreeningRecord) AutoBanResult {
	if rec == nil || rec.AutoBanned == nil {
		return AutoBanResult{}
	}

	res := AutoBanResult{
		Available:    true,
		Status:       model.StatusPass,
		Industry:     rec.Industry,
		SecurityType: rec.SecurityType,
	}
	if *rec.AutoBanned {
		res.Status = model.StatusFail
		res.Reason = rec.AutoBannedReasonClean
		res.Summary = rec.AutoBannedSummary
	}
	return res
}
