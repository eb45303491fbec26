package model

// HaramSegment is a named slice of a company's revenue judged
// non-compliant. Percentages are of total revenue (0-100).
type HaramSegment struct {
	Name          string             `json:"name"`
	Description   string             `json:"description,omitempty"`
	PointEstimate *float64           `json:"point_estimate,omitempty"`
	Lower         *float64           `json:"lower,omitempty"`
	Upper         *float64           `json:"upper,omitempty"`
	Confidence    string             `json:"confidence,omitempty"`
	Reasoning     string             `json:"reasoning,omitempty"`
	Limitations   string             `json:"limitations,omitempty"`
	Composition   []SegmentComponent `json:"composition,omitempty"`
	References    []SegmentReference `json:"references,omitempty"`
}

// SegmentComponent is a sub-item of a segment with its own estimate.
type SegmentComponent struct {
	Name          string   `json:"name"`
	PointEstimate *float64 `json:"point_estimate,omitempty"`
	Rationale     string   `json:"rationale,omitempty"`
}

// SegmentReference is a citation backing a segment estimate.
type SegmentReference struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Source  string `json:"source,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// EvidenceItem is one piece of qualitative evidence behind a verdict.
type EvidenceItem struct {
	Category  string `json:"category,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Rationale string `json:"rationale,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
	Source    string `json:"source,omitempty"`
}

// IsZero reports whether every field is empty.
func (e EvidenceItem) IsZero() bool {
	return e == EvidenceItem{}
}

// EvidenceColumns is the older evidence shape: five parallel arrays that are
// zipped index-wise into EvidenceItems.
type EvidenceColumns struct {
	Category  []string `json:"category,omitempty"`
	Severity  []string `json:"severity,omitempty"`
	Rationale []string `json:"rationale,omitempty"`
	Snippet   []string `json:"snippet,omitempty"`
	Source    []string `json:"source,omitempty"`
}

// Len returns the length of the longest column.
func (c EvidenceColumns) Len() int {
	n := 0
	for _, col := range [][]string{c.Category, c.Severity, c.Rationale, c.Snippet, c.Source} {
		if len(col) > n {
			n = len(col)
		}
	}
	return n
}

// QAIssue is a data-quality issue flagged against a screening record.
type QAIssue struct {
	Description string `json:"description"`
	Code        string `json:"code,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Field       string `json:"field,omitempty"`
}
