// Package enrich defines the enrichment contract: the document shape the
// pipeline emits, the provider interface over LLM backends, and the
// degraded results produced when a backend cannot deliver.
package enrich

import (
	"time"

	"github.com/linnemanlabs/augur/internal/alert"
	"github.com/linnemanlabs/augur/internal/scan"
	"github.com/linnemanlabs/augur/internal/schema"
)

// FailureReason is the error marker attached when a record could not be
// enriched at all.
const FailureReason = "Validation or enrichment failed"

// Enrichment is the analysis block attached to an alert. Nullable fields
// are pointers so a degraded result can carry explicit nulls.
type Enrichment struct {
	SummaryText             *string      `json:"summary_text"`
	Tags                    []string     `json:"tags"`
	RiskScore               *int         `json:"risk_score"`
	FalsePositiveLikelihood *float64     `json:"false_positive_likelihood"`
	AlertCategory           *string      `json:"alert_category"`
	RemediationSteps        []string     `json:"remediation_steps"`
	RelatedCVEs             []string     `json:"related_cves"`
	ExternalRefs            []string     `json:"external_refs"`
	LLMModelVersion         *string      `json:"llm_model_version"`
	EnrichedBy              *string      `json:"enriched_by"`
	EnrichmentDurationMS    *int64       `json:"enrichment_duration_ms"`
	YaraMatches             []scan.Match `json:"yara_matches"`
	RawLLMResponse          *string      `json:"raw_llm_response"`
	Error                   string       `json:"error,omitempty"`

	// Degraded marks fallback results for metrics and notifications.
	// It is not part of the wire format.
	Degraded bool `json:"-"`
}

// Document is the final output for one alert: the normalized record plus
// its enrichment, stamped with the processing time.
type Document struct {
	AlertID    string       `json:"alert_id"`
	Timestamp  time.Time    `json:"timestamp"`
	Alert      alert.Record `json:"alert"`
	Enrichment *Enrichment  `json:"enrichment"`
}

// Validate is the soft output gate. Callers log violations and keep the
// document; a structurally broken document is still worth persisting.
func (d *Document) Validate() error {
	if d.AlertID == "" {
		return &schema.Error{Field: "alert_id", Reason: "must be non-empty"}
	}
	if d.Timestamp.IsZero() {
		return &schema.Error{Field: "timestamp", Reason: "must be set"}
	}
	if d.Alert == nil {
		return &schema.Error{Field: "alert", Reason: "is missing"}
	}
	if d.Enrichment == nil {
		return &schema.Error{Field: "enrichment", Reason: "is missing"}
	}
	if s := d.Enrichment.RiskScore; s != nil && (*s < 0 || *s > 100) {
		return &schema.Error{Field: "enrichment.risk_score", Reason: "must be within 0..100"}
	}
	if f := d.Enrichment.FalsePositiveLikelihood; f != nil && (*f < 0 || *f > 1) {
		return &schema.Error{Field: "enrichment.false_positive_likelihood", Reason: "must be within 0..1"}
	}
	return nil
}

// Degraded builds the provider-level fallback: the backend was reached or
// attempted, but no usable analysis came back. Risk is floored and the
// false-positive likelihood pinned to 1.0 so the result never escalates.
func Degraded(model, backend, reason string, matches []scan.Match) *Enrichment {
	if matches == nil {
		matches = []scan.Match{}
	}
	return &Enrichment{
		SummaryText:             ptr("Enrichment failed: " + reason),
		Tags:                    []string{},
		RiskScore:               ptr(0),
		FalsePositiveLikelihood: ptr(1.0),
		AlertCategory:           ptr("Unknown"),
		RemediationSteps:        []string{},
		RelatedCVEs:             []string{},
		ExternalRefs:            []string{},
		LLMModelVersion:         ptr(model),
		EnrichedBy:              ptr(model + "@" + backend),
		EnrichmentDurationMS:    ptr(int64(0)),
		YaraMatches:             matches,
		Degraded:                true,
	}
}

// Empty builds the orchestrator-level fallback used when the provider
// refused the record outright. Every analytical field is null and the
// error marker records why.
func Empty(reason string) *Enrichment {
	return &Enrichment{
		Tags:             []string{},
		RemediationSteps: []string{},
		RelatedCVEs:      []string{},
		ExternalRefs:     []string{},
		YaraMatches:      []scan.Match{},
		Error:            reason,
		Degraded:         true,
	}
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func clampLikelihood(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func ptr[T any](v T) *T { return &v }
