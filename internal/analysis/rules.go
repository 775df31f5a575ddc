package analysis

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Record is one row of a submitted tabular record set
type Record = map[string]interface{}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// dateLayouts are the formats accepted when validating date-like fields
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// FieldRule maps a field-name fragment to the validator applied to values in
// matching fields. Rules are evaluated in order; the first match wins.
type FieldRule struct {
	Name     string
	Patterns []string
	Validate func(value interface{}) bool
}

// DefaultFieldRules is the validation policy used by the quality scorer.
// Fields not matching any rule only need to be non-empty.
var DefaultFieldRules = []FieldRule{
	{
		Name:     "email",
		Patterns: []string{"email", "e_mail", "mail"},
		Validate: func(v interface{}) bool {
			s, ok := v.(string)
			return ok && emailPattern.MatchString(s)
		},
	},
	{
		Name:     "date",
		Patterns: []string{"date", "time", "timestamp", "created", "updated"},
		Validate: func(v interface{}) bool {
			switch val := v.(type) {
			case time.Time:
				return !val.IsZero()
			case string:
				return parseDate(val)
			default:
				return false
			}
		},
	},
	{
		Name:     "numeric",
		Patterns: []string{"amount", "price", "quantity", "count", "total", "cost", "revenue"},
		Validate: func(v interface{}) bool {
			f, ok := asNumber(v)
			return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
		},
	},
}

// RuleFor returns the rule matching fieldName, or nil when only the
// non-emptiness default applies
func RuleFor(fieldName string, rules []FieldRule) *FieldRule {
	lower := strings.ToLower(fieldName)
	for i := range rules {
		for _, p := range rules[i].Patterns {
			if strings.Contains(lower, p) {
				return &rules[i]
			}
		}
	}
	return nil
}

// ValueType is the coarse classification used for consistency scoring
type ValueType string

const (
	TypeNull        ValueType = "null"
	TypeNumber      ValueType = "number"
	TypeBoolean     ValueType = "boolean"
	TypeDate        ValueType = "date"
	TypeDateString  ValueType = "date_string"
	TypeEmailString ValueType = "email_string"
	TypePlainString ValueType = "string"
	TypeObject      ValueType = "object"
)

// ClassifyValue assigns a value its coarse type
func ClassifyValue(v interface{}) ValueType {
	switch val := v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBoolean
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeNumber
	case time.Time:
		return TypeDate
	case string:
		if val == "" {
			return TypeNull
		}
		if emailPattern.MatchString(val) {
			return TypeEmailString
		}
		if parseDate(val) {
			return TypeDateString
		}
		return TypePlainString
	default:
		return TypeObject
	}
}

// IsFilled reports whether a cell counts toward completeness: non-nil and,
// for strings, non-empty
func IsFilled(v interface{}) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func parseDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// asNumber coerces numeric Go kinds and numeric strings to float64
func asNumber(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
