// Package slack forwards high-risk enriched alerts to Slack via
// incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/linnemanlabs/augur/internal/enrich"
)

const (
	maxSummaryLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier posts enriched documents whose risk score reaches the
// threshold. Degraded documents are never forwarded; a floored risk
// score says nothing about the alert.
type Notifier struct {
	webhookURL string
	threshold  int
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a
// no-op.
func New(webhookURL string, threshold int) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		threshold:  threshold,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts the document to the configured webhook when it clears
// the risk threshold.
func (n *Notifier) Notify(ctx context.Context, doc *enrich.Document) error {
	if n.webhookURL == "" {
		return nil
	}
	if doc.Enrichment == nil || doc.Enrichment.Degraded {
		return nil
	}
	if doc.Enrichment.RiskScore == nil || *doc.Enrichment.RiskScore < n.threshold {
		return nil
	}

	body, err := json.Marshal(buildMessage(doc))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(d *enrich.Document) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(d),
			{"type": "divider"},
			fieldsBlock(d),
			{"type": "divider"},
			summaryBlock(d),
			{"type": "divider"},
			contextBlock(d),
		},
	}
}

func headerBlock(d *enrich.Document) map[string]any {
	e := d.Enrichment
	text := fmt.Sprintf("%s High-Risk Alert: %s", riskEmoji(*e.RiskScore), category(e))

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(d *enrich.Document) map[string]any {
	e := d.Enrichment

	fpl := "n/a"
	if e.FalsePositiveLikelihood != nil {
		fpl = fmt.Sprintf("%.2f", *e.FalsePositiveLikelihood)
	}
	model := "n/a"
	if e.EnrichedBy != nil {
		model = shortModel(*e.EnrichedBy)
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Risk:* %d/100", *e.RiskScore),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*False positive:* %s", fpl),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Category:* %s", category(e)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Model:* %s", model),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Scan hits:* %d", len(e.YaraMatches)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Rule:* %s", ruleDescription(d)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func summaryBlock(d *enrich.Document) map[string]any {
	text := ""
	if d.Enrichment.SummaryText != nil {
		text = truncate(*d.Enrichment.SummaryText, maxSummaryLen)
	}
	if text == "" {
		text = "_No summary available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Summary*\n\n%s", text),
		},
	}
}

func contextBlock(d *enrich.Document) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("augur • alert %s • %s", d.AlertID, d.Timestamp.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func category(e *enrich.Enrichment) string {
	if e.AlertCategory == nil || *e.AlertCategory == "" {
		return "Unknown"
	}
	return *e.AlertCategory
}

func ruleDescription(d *enrich.Document) string {
	rule, ok := d.Alert["rule"].(map[string]any)
	if !ok {
		return "n/a"
	}
	desc, ok := rule["description"].(string)
	if !ok || desc == "" {
		return "n/a"
	}
	return truncate(desc, 120)
}

func riskEmoji(score int) string {
	switch {
	case score >= 90:
		return "\U0001f534" // red circle
	case score >= 70:
		return "\U0001f7e0" // orange circle
	default:
		return "\U0001f7e1" // yellow circle
	}
}

// dateModelRe matches model names ending with a YYYYMMDD date suffix.
var dateModelRe = regexp.MustCompile(`-\d{8}(@|$)`)

func shortModel(model string) string {
	return dateModelRe.ReplaceAllString(model, "$1")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
