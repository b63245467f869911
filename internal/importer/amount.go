package importer

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// normalizeValue turns a spreadsheet amount such as "$45,000.00", "45.000,50 €"
// or "120000" into a plain decimal string. Unparseable input is returned
// trimmed so validation can report it against the value field.
func normalizeValue(s string) string {
	raw := strings.TrimSpace(s)

	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}

		return -1
	}, raw)

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")

	// Whichever separator comes last is the decimal mark. A lone comma followed
	// by exactly three digits groups thousands.
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		clean = strings.ReplaceAll(clean, ",", "")
	case lastComma >= 0 && (strings.Count(clean, ",") > 1 || len(clean)-lastComma-1 == 3):
		clean = strings.ReplaceAll(clean, ",", "")
	case lastComma >= 0:
		clean = strings.Replace(clean, ",", ".", 1)
	case strings.Count(clean, ".") > 1:
		clean = strings.ReplaceAll(clean, ".", "")
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return raw
	}

	return d.String()
}

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// normalizeDate rewrites a close date into YYYY-MM-DD. Slash dates are read
// month first. Unknown formats pass through for validation to reject.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}

	return s
}

// normalizeProbability drops a trailing percent sign.
func normalizeProbability(s string) string {
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}
