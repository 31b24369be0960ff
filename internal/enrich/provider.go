package enrich

import (
	"context"
	"encoding/json"
	"text/template"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/augur/internal/alert"
	"github.com/linnemanlabs/augur/internal/scan"
	"github.com/linnemanlabs/augur/internal/schema"
)

var tracer = otel.Tracer("github.com/linnemanlabs/augur/internal/enrich")

// Provider enriches one validated alert record. The only error a Provider
// may return is an input validation failure; every other problem yields a
// degraded Enrichment and a nil error.
type Provider interface {
	Enrich(ctx context.Context, rec alert.Record) (*Enrichment, error)
}

// Generator is a thin LLM backend: one prompt in, one raw completion out.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
	// Backend names the API family, e.g. "ollama-api". It becomes the
	// suffix of the enriched_by provenance field.
	Backend() string
}

// Hooks lets the caller observe backend calls without coupling the
// harness to a metrics implementation.
type Hooks struct {
	OnCall func(backend string, ok bool, duration float64)
}

// Harness implements Provider on top of any Generator: validate, scan,
// render, call, clean, decode, clamp.
type Harness struct {
	gen     Generator
	model   string
	tmpl    *template.Template
	scanner *scan.Scanner
	logger  log.Logger
	hooks   Hooks
}

// NewHarness builds a Harness. A nil scanner matches nothing; a nil
// logger is replaced with a no-op.
func NewHarness(gen Generator, model string, tmpl *template.Template, scanner *scan.Scanner, logger log.Logger, hooks Hooks) *Harness {
	if logger == nil {
		logger = log.Nop()
	}
	return &Harness{
		gen:     gen,
		model:   model,
		tmpl:    tmpl,
		scanner: scanner,
		logger:  logger,
		hooks:   hooks,
	}
}

// Enrich runs the full provider path for one record.
func (h *Harness) Enrich(ctx context.Context, rec alert.Record) (*Enrichment, error) {
	if err := schema.ValidateInput(rec); err != nil {
		return nil, err
	}

	backend := h.gen.Backend()
	matches := h.scanner.Matches(rec)

	prompt, err := renderPrompt(h.tmpl, rec, matches)
	if err != nil {
		h.logger.Error(ctx, err, "prompt render failed", "backend", backend)
		return Degraded(h.model, backend, "prompt render failed", matches), nil
	}

	ctx, span := tracer.Start(ctx, "enrich.generate", trace.WithAttributes(
		attribute.String("gen_ai.request.model", h.model),
		attribute.String("augur.llm.backend", backend),
		attribute.String("augur.alert.id", alert.Identity(rec)),
	))
	defer span.End()

	start := time.Now()
	raw, err := h.gen.Generate(ctx, h.model, prompt)
	dur := time.Since(start)

	if h.hooks.OnCall != nil {
		h.hooks.OnCall(backend, err == nil, dur.Seconds())
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Warn(ctx, "llm call failed", "backend", backend, "model", h.model, "error", err)
		return Degraded(h.model, backend, err.Error(), matches), nil
	}

	reply, derr := decodeReply(CleanResponse(raw))
	if derr != nil {
		span.RecordError(derr)
		h.logger.Warn(ctx, "llm returned invalid JSON", "backend", backend, "model", h.model, "error", derr)
		e := Degraded(h.model, backend, "model returned invalid JSON", matches)
		e.RawLLMResponse = ptr(raw)
		return e, nil
	}

	return reply.enrichment(h.model, backend, dur, matches, raw), nil
}

// llmReply is the analytical subset a model is allowed to fill in.
// Provenance is always set by the harness.
type llmReply struct {
	SummaryText             *string  `json:"summary_text"`
	Tags                    []string `json:"tags"`
	RiskScore               *float64 `json:"risk_score"`
	FalsePositiveLikelihood *float64 `json:"false_positive_likelihood"`
	AlertCategory           *string  `json:"alert_category"`
	RemediationSteps        []string `json:"remediation_steps"`
	RelatedCVEs             []string `json:"related_cves"`
	ExternalRefs            []string `json:"external_refs"`

	// Models report match results under either key; yara_results is the
	// legacy alias and is canonicalized to yara_matches.
	YaraMatches []scan.Match `json:"yara_matches"`
	YaraResults []scan.Match `json:"yara_results"`
}

func decodeReply(cleaned string) (*llmReply, error) {
	var r llmReply
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *llmReply) enrichment(model, backend string, dur time.Duration, matches []scan.Match, raw string) *Enrichment {
	e := &Enrichment{
		SummaryText:          r.SummaryText,
		Tags:                 orEmpty(r.Tags),
		AlertCategory:        r.AlertCategory,
		RemediationSteps:     orEmpty(r.RemediationSteps),
		RelatedCVEs:          orEmpty(r.RelatedCVEs),
		ExternalRefs:         orEmpty(r.ExternalRefs),
		LLMModelVersion:      ptr(model),
		EnrichedBy:           ptr(model + "@" + backend),
		EnrichmentDurationMS: ptr(dur.Milliseconds()),
		YaraMatches:          r.matches(matches),
		RawLLMResponse:       ptr(raw),
	}
	if r.RiskScore != nil {
		e.RiskScore = ptr(clampScore(int(*r.RiskScore)))
	}
	if r.FalsePositiveLikelihood != nil {
		e.FalsePositiveLikelihood = ptr(clampLikelihood(*r.FalsePositiveLikelihood))
	}
	return e
}

// matches picks the match list for the enrichment: the model-supplied
// list wins, under either key, and the local scan results fill in when
// the reply carries none. The result is never nil.
func (r *llmReply) matches(local []scan.Match) []scan.Match {
	m := r.YaraMatches
	if m == nil {
		m = r.YaraResults
	}
	if m == nil {
		m = local
	}
	if m == nil {
		m = []scan.Match{}
	}
	return m
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
