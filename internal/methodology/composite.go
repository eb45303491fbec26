package methodology

import (
	"fmt"

	"github.com/sells-group/shariah-screen/internal/model"
)

// Display labels for composite verdicts.
const (
	LabelCompliant                 = "Compliant"
	LabelCompliantWithPurification = "Compliant with Purification"
	LabelNonCompliant              = "Non-Compliant"
	LabelAutoNonCompliant          = "Automatically Non-Compliant"
	LabelDoubtfulReview            = "Doubtful (Board Review)"
	LabelUnavailable               = "No screening data available"
)

// CompositeResult packages the authoritative composite verdict for display.
type CompositeResult struct {
	Available            bool                 `json:"available"`
	Classification       model.Classification `json:"classification,omitempty"`
	Label                string               `json:"label"`
	AutoBanned           bool                 `json:"auto_banned"`
	PurificationRequired bool                 `json:"purification_required"`
	PurificationPct      *float64             `json:"purification_pct,omitempty"`
	PurificationDisplay  string               `json:"purification_display,omitempty"`
	NeedsBoardReview     bool                 `json:"needs_board_review"`
	Warnings             []string             `json:"warnings,omitempty"`
}

// CompositeEvaluator reads the composite verdict from the record. The
// verdict is authoritative; this evaluator only packages it and flags
// internal inconsistencies.
type CompositeEvaluator struct{}

// Evaluate builds the composite result for rec.
func (CompositeEvaluator) Evaluate(rec *model.ScreeningRecord) CompositeResult {
	if rec == nil || !rec.FinalClassification.Valid() {
		return CompositeResult{Label: LabelUnavailable}
	}

	cls := rec.FinalClassification
	res := CompositeResult{
		Available:            true,
		Classification:       cls,
		Label:                classificationLabel(cls, rec.IsAutoBanned()),
		AutoBanned:           rec.IsAutoBanned(),
		PurificationRequired: rec.PurificationRequired,
		PurificationPct:      rec.PurificationPct,
		NeedsBoardReview:     rec.NeedsBoardReview || cls == model.ClassificationDoubtfulReview,
	}

	switch {
	case rec.PurificationPct != nil:
		res.PurificationDisplay = FormatPct(*rec.PurificationPct)
	case rec.PurificationRequired:
		res.PurificationDisplay = "Required"
	}

	res.Warnings = consistencyWarnings(rec)
	return res
}

func classificationLabel(cls model.Classification, autoBanned bool) string {
	switch cls {
	case model.ClassificationCompliant:
		return LabelCompliant
	case model.ClassificationCompliantWithPurification:
		return LabelCompliantWithPurification
	case model.ClassificationNonCompliant:
		if autoBanned {
			return LabelAutoNonCompliant
		}
		return LabelNonCompliant
	case model.ClassificationDoubtfulReview:
		return LabelDoubtfulReview
	}
	return LabelUnavailable
}

func consistencyWarnings(rec *model.ScreeningRecord) []string {
	var warnings []string
	cls := rec.FinalClassification

	if cls == model.ClassificationCompliant && rec.PurificationRequired {
		warnings = append(warnings, "classified COMPLIANT but purification is required")
	}
	if cls == model.ClassificationCompliantWithPurification && !rec.PurificationRequired {
		warnings = append(warnings, "classified COMPLIANT_WITH_PURIFICATION but purification is not flagged")
	}
	if p := rec.PurificationPct; p != nil && (*p < 0 || *p > 100) {
		warnings = append(warnings, fmt.Sprintf("purification percentage %.2f is outside 0-100", *p))
	}
	if rec.IsAutoBanned() && cls != model.ClassificationNonCompliant {
		warnings = append(warnings, fmt.Sprintf("auto-banned security classified %s", cls))
	}
	return warnings
}
