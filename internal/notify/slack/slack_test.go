package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/augur/internal/alert"
	"github.com/linnemanlabs/augur/internal/enrich"
)

func ptr[T any](v T) *T { return &v }

func highRiskDoc() *enrich.Document {
	return &enrich.Document{
		AlertID:   "a1",
		Timestamp: time.Date(2026, 8, 29, 14, 23, 0, 0, time.UTC),
		Alert: alert.Record{
			"rule": map[string]any{"description": "sshd: brute force trying to get access to the system"},
		},
		Enrichment: &enrich.Enrichment{
			SummaryText:             ptr("Sustained SSH brute force from a single source."),
			RiskScore:               ptr(92),
			FalsePositiveLikelihood: ptr(0.05),
			AlertCategory:           ptr("Intrusion Attempt"),
			EnrichedBy:              ptr("claude-sonnet-4-20250514@claude-api"),
		},
	}
}

func TestNotify_PostsToWebhook(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL, 80)
	if err := n.Notify(context.Background(), highRiskDoc()); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	blocks, ok := got["blocks"].([]any)
	if !ok {
		t.Fatal("expected blocks array in payload")
	}

	// header, divider, fields, divider, summary, divider, context = 7 blocks
	if len(blocks) != 7 {
		t.Errorf("blocks count = %d, want 7", len(blocks))
	}

	header := blocks[0].(map[string]any)
	headerText := header["text"].(map[string]any)["text"].(string)
	if !strings.Contains(headerText, "Intrusion Attempt") {
		t.Errorf("header text = %q, want the alert category", headerText)
	}
	if !strings.Contains(headerText, "\U0001f534") {
		t.Error("header should carry the red circle for risk >= 90")
	}
}

func TestNotify_BelowThresholdSkipped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("webhook called for below-threshold document")
	}))
	defer srv.Close()

	doc := highRiskDoc()
	doc.Enrichment.RiskScore = ptr(50)

	n := New(srv.URL, 80)
	if err := n.Notify(context.Background(), doc); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestNotify_DegradedSkipped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("webhook called for degraded document")
	}))
	defer srv.Close()

	doc := highRiskDoc()
	doc.Enrichment.Degraded = true
	doc.Enrichment.RiskScore = ptr(100)

	n := New(srv.URL, 80)
	if err := n.Notify(context.Background(), doc); err != nil {
		t.Fatalf("Notify: %v", err)
	}
}

func TestNotify_NoOpWithoutURL(t *testing.T) {
	t.Parallel()

	n := New("", 80)
	if err := n.Notify(context.Background(), highRiskDoc()); err != nil {
		t.Fatalf("Notify with empty URL should be no-op, got: %v", err)
	}
}

func TestNotify_TruncatesLongSummary(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	doc := highRiskDoc()
	doc.Enrichment.SummaryText = ptr(strings.Repeat("x", 4000))

	n := New(srv.URL, 80)
	if err := n.Notify(context.Background(), doc); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	blocks := got["blocks"].([]any)
	summarySection := blocks[4].(map[string]any)
	text := summarySection["text"].(map[string]any)["text"].(string)

	if len(text) > maxSummaryLen+len("*Summary*\n\n") {
		t.Errorf("summary text length = %d, expected <= %d", len(text), maxSummaryLen+len("*Summary*\n\n"))
	}
	if !strings.HasSuffix(text, "...") {
		t.Error("expected truncated summary to end with ...")
	}
}

func TestNotify_NonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal error"))
	}))
	defer srv.Close()

	n := New(srv.URL, 80)
	err := n.Notify(context.Background(), highRiskDoc())
	if err == nil {
		t.Fatal("expected error on non-OK status")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("error = %q, want to contain status code 500", err.Error())
	}
}

func TestShortModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"claude-sonnet-4-20250514@claude-api", "claude-sonnet-4@claude-api"},
		{"claude-sonnet-4-20250514", "claude-sonnet-4"},
		{"llama3@ollama-api", "llama3@ollama-api"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			if got := shortModel(tt.input); got != tt.want {
				t.Errorf("shortModel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func FuzzSlackBuild(f *testing.F) {
	f.Add("Sustained brute force.", "Intrusion Attempt", 92, "claude-sonnet-4-20250514@claude-api")
	f.Add("", "", 0, "")
	f.Add("*bold* _italic_ ~strike~ <@U123>", "Malware", 100, "model")
	f.Add("summary\x00\x01\x02", "cat\nline", -5, "m\x00del")
	f.Add(strings.Repeat("x", 10000), "Benign", 200, "model-name-20260101")

	f.Fuzz(func(t *testing.T, summary, cat string, risk int, model string) {
		doc := &enrich.Document{
			AlertID:   "fuzz-id",
			Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Alert:     alert.Record{},
			Enrichment: &enrich.Enrichment{
				SummaryText:   ptr(summary),
				AlertCategory: ptr(cat),
				RiskScore:     ptr(risk),
				EnrichedBy:    ptr(model),
			},
		}

		// Must not panic
		msg := buildMessage(doc)

		// Must produce valid JSON
		data, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("buildMessage produced non-marshalable output: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("buildMessage JSON does not round-trip: %v", err)
		}

		blocks, ok := decoded["blocks"].([]any)
		if !ok {
			t.Fatal("expected blocks array")
		}
		if len(blocks) != 7 {
			t.Fatalf("blocks count = %d, want 7", len(blocks))
		}
	})
}
