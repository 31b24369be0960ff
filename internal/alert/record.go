// Package alert holds the Wazuh alert record model and the normalization
// rules that make raw alerts safe for downstream schema validation.
package alert

import (
	"fmt"
	"strconv"
)

// Record is one raw alert as decoded from the alert log. Alerts carry an
// open-ended set of fields, so the record stays a map and normalization
// only touches the fields it knows about.
type Record map[string]any

// Identity returns the stable identity for a record: the alert id when
// present, otherwise "<timestamp>_<rule.id>".
func Identity(r Record) string {
	if id, ok := r["id"].(string); ok && id != "" {
		return id
	}
	ruleID := ""
	if rule, ok := r["rule"].(map[string]any); ok {
		ruleID = asString(rule["id"])
	}
	return fmt.Sprintf("%s_%s", asString(r["timestamp"]), ruleID)
}

// Unwrap extracts the alert body from the envelope forms collectors emit:
// index exports wrap the alert under "_source", API callers may wrap it
// under "alert". A bare record is returned unchanged.
func Unwrap(r Record) Record {
	if src, ok := r["_source"].(map[string]any); ok {
		return Record(src)
	}
	if al, ok := r["alert"].(map[string]any); ok {
		return Record(al)
	}
	return r
}

// asString renders a scalar the way downstream consumers expect: JSON
// numbers without an exponent, booleans lowercase, nil as empty.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// asInt coerces a scalar to int, returning 0 for anything unparseable.
func asInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return n
	case bool:
		if t {
			return 1
		}
		return 0
	default:
		return 0
	}
}
