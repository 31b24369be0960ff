// Package schema holds the validation gates for alert records: a hard
// input gate before enrichment and a strict gate before index submission.
package schema

import (
	"fmt"
	"regexp"
	"time"

	"github.com/linnemanlabs/augur/internal/alert"
)

// Error describes a schema violation on a specific field.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("schema: field %q %s", e.Field, e.Reason)
}

// ValidateInput is the hard gate in front of enrichment. Records that fail
// it are never sent to a provider.
func ValidateInput(r alert.Record) error {
	if r == nil {
		return &Error{Field: "alert", Reason: "is missing"}
	}

	ts, ok := r["timestamp"].(string)
	if !ok || ts == "" {
		return &Error{Field: "timestamp", Reason: "must be a non-empty string"}
	}
	if _, ok := r["id"].(string); !ok {
		return &Error{Field: "id", Reason: "must be a string"}
	}

	rule, ok := r["rule"].(map[string]any)
	if !ok {
		return &Error{Field: "rule", Reason: "must be an object"}
	}
	if v, present := rule["level"]; present {
		if _, ok := v.(int); !ok {
			if _, ok := v.(float64); !ok {
				return &Error{Field: "rule.level", Reason: "must be an integer"}
			}
		}
	}
	for _, f := range []string{"groups", "pci_dss", "gpg13", "gdpr", "hipaa", "nist_800_53", "tsc"} {
		if v, present := rule[f]; present && v != nil {
			if _, ok := v.([]any); !ok {
				return &Error{Field: "rule." + f, Reason: "must be a list"}
			}
		}
	}

	// Agentless alerts (manager-generated, API submissions) are fine; an
	// agent block is only checked when present.
	if v, present := r["agent"]; present && v != nil {
		if _, ok := v.(map[string]any); !ok {
			return &Error{Field: "agent", Reason: "must be an object"}
		}
	}

	return nil
}

var isoTimestampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)

// ValidateForIndex is the strict sink-side gate applied right before a
// document is submitted to the search index. It rejects records the index
// mapping cannot hold, and repairs a malformed timestamp in place rather
// than rejecting the whole document for it.
func ValidateForIndex(r alert.Record) error {
	if r == nil {
		return &Error{Field: "alert", Reason: "is missing"}
	}

	id, ok := r["id"].(string)
	if !ok || id == "" {
		return &Error{Field: "id", Reason: "must be a non-empty string"}
	}

	ts, _ := r["timestamp"].(string)
	if !isoTimestampRe.MatchString(ts) {
		r["timestamp"] = time.Now().UTC().Format("2006-01-02T15:04:05") + "Z"
	}

	rule, ok := r["rule"].(map[string]any)
	if !ok {
		return &Error{Field: "rule", Reason: "must be an object"}
	}
	ruleID, ok := rule["id"].(string)
	if !ok || ruleID == "" {
		return &Error{Field: "rule.id", Reason: "must be a non-empty string"}
	}
	switch rule["level"].(type) {
	case int, float64:
	default:
		return &Error{Field: "rule.level", Reason: "must be an integer"}
	}

	return nil
}
