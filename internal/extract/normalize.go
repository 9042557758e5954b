// Package extract validates and normalizes the vision service's raw JSON
// payloads into extraction results.
package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

var (
	canonicalDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	yearRe          = regexp.MustCompile(`(\d{4})`)
	integerRe       = regexp.MustCompile(`^-?\d+$`)
)

// dateLayouts covers the formats Indian documents commonly carry. Tried in
// order; first parse wins.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/06",
	"2006/01/02",
}

// NormalizeDate canonicalizes a date string to YYYY-MM-DD. Already canonical
// input passes through unchanged, so normalization is idempotent. Returns
// false when no known layout matches.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if canonicalDateRe.MatchString(s) {
		if _, err := time.Parse("2006-01-02", s); err == nil {
			return s, true
		}
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// NormalizeCurrency reduces a money string to a plain integer amount.
// Handles the rupee sign, Rs/INR prefixes and Indian digit grouping
// ("1,23,456.78"); fractional paise round to the nearest rupee.
func NormalizeCurrency(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if integerRe.MatchString(s) {
		return s, true
	}

	s = strings.NewReplacer("₹", "", "Rs.", "", "Rs", "", "INR", "", ",", "", " ", "").Replace(s)
	s = strings.TrimSpace(s)

	neg := false
	// Accountants write negatives in parentheses.
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", false
	}
	if neg {
		f = -f
	}
	return strconv.FormatInt(int64(math.Round(f)), 10), true
}

// NormalizePercent reduces a percentage string to a plain number in [0,100].
func NormalizePercent(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 100 {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

// NormalizeYear extracts a four-digit year, accepting assessment-year forms
// like "2023-24".
func NormalizeYear(raw string) (string, bool) {
	m := yearRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// NormalizeName trims whitespace and collapses internal runs, preserving
// case.
func NormalizeName(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// fieldRule maps an entity key to its normalization behavior.
type fieldRule int

const (
	ruleName fieldRule = iota
	ruleDate
	ruleCurrency
	rulePercent
	ruleYear
	rulePAN
	ruleAadhaar
	ruleGSTIN
	ruleIFSC
)

// ruleFor picks the normalization rule from the leaf key name (the last
// segment of a flattened key).
func ruleFor(key string) fieldRule {
	switch {
	case key == "pan_number":
		return rulePAN
	case key == "aadhaar_number":
		return ruleAadhaar
	case key == "gst_number" || key == "gstin":
		return ruleGSTIN
	case key == "ifsc_code":
		return ruleIFSC
	case key == "itr_assessment_year" || key == "year":
		return ruleYear
	case strings.HasSuffix(key, "_date") || strings.HasSuffix(key, "_dob") || key == "dob":
		return ruleDate
	case strings.HasPrefix(key, "percent_") || strings.HasSuffix(key, "_percent"):
		return rulePercent
	case currencyKeys[key]:
		return ruleCurrency
	default:
		return ruleName
	}
}

var currencyKeys = map[string]bool{
	"turnover":            true,
	"net_profit":          true,
	"ebitda":              true,
	"total_assets":        true,
	"total_liabilities":   true,
	"avg_monthly_balance": true,
	"amount":              true,
	"loan_amount":         true,
	"sanctioned_amount":   true,
}

// normalizeField applies the key's rule to a field in place. Sentinel values
// pass through untouched; values that fail a checksum or format rule get the
// INVALID sentinel in NormalizedValue with the raw value preserved, and the
// problem is reported as a defect string.
func normalizeField(key string, f *domain.Field) (defect string) {
	if f.Value == domain.SentinelInsufficientData || f.Value == "" {
		f.NormalizedValue = f.Value
		return ""
	}
	// A field the extractor already marked invalid stays invalid.
	if f.NormalizedValue == domain.SentinelInvalid {
		return ""
	}

	leaf := key
	if i := strings.LastIndexAny(key, "]."); i >= 0 {
		leaf = key[i+1:]
	}
	leaf = strings.TrimPrefix(leaf, ".")

	switch ruleFor(leaf) {
	case rulePAN:
		return validateInto(f, key, ValidPAN, strings.ToUpper(stripSpaces(f.Value)))
	case ruleAadhaar:
		return validateInto(f, key, ValidAadhaar, stripSpaces(f.Value))
	case ruleGSTIN:
		return validateInto(f, key, ValidGSTIN, strings.ToUpper(stripSpaces(f.Value)))
	case ruleIFSC:
		return validateInto(f, key, ValidIFSC, strings.ToUpper(stripSpaces(f.Value)))
	case ruleDate:
		if v, ok := NormalizeDate(f.Value); ok {
			f.NormalizedValue = v
			return ""
		}
		f.NormalizedValue = domain.SentinelInvalid
		return fmt.Sprintf("%s: unparseable date %q", key, f.Value)
	case ruleCurrency:
		if v, ok := NormalizeCurrency(f.Value); ok {
			f.NormalizedValue = v
			return ""
		}
		f.NormalizedValue = domain.SentinelInvalid
		return fmt.Sprintf("%s: unparseable amount %q", key, f.Value)
	case rulePercent:
		if v, ok := NormalizePercent(f.Value); ok {
			f.NormalizedValue = v
			return ""
		}
		f.NormalizedValue = domain.SentinelInvalid
		return fmt.Sprintf("%s: unparseable percentage %q", key, f.Value)
	case ruleYear:
		if v, ok := NormalizeYear(f.Value); ok {
			f.NormalizedValue = v
			return ""
		}
		f.NormalizedValue = domain.SentinelInvalid
		return fmt.Sprintf("%s: unparseable year %q", key, f.Value)
	default:
		f.NormalizedValue = NormalizeName(f.Value)
		return ""
	}
}

func validateInto(f *domain.Field, key string, valid func(string) bool, candidate string) string {
	if valid(candidate) {
		f.NormalizedValue = candidate
		return ""
	}
	f.NormalizedValue = domain.SentinelInvalid
	return fmt.Sprintf("%s: failed validation %q", key, f.Value)
}

func stripSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}
