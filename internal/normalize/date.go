package normalize

import (
	"strings"
	"time"
)

// isoDate is the canonical report date layout. ISO dates order lexically,
// which the dataset relies on to pick a ticker's latest record.
const isoDate = "2006-01-02"

// dateLayouts are the report date formats seen across export generations,
// tried in order. US month-first wins over day-first for slash dates.
var dateLayouts = []string{
	isoDate,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"1/2/2006",
	"1/2/06",
	"20060102",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
}

// normalizeDate rewrites raw into YYYY-MM-DD. Values no layout accepts are
// returned trimmed but otherwise unchanged.
func normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(isoDate)
		}
	}
	return raw
}
