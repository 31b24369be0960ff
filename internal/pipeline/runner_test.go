package pipeline

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/linnemanlabs/augur/internal/alert"
	"github.com/linnemanlabs/augur/internal/enrich"
	"github.com/linnemanlabs/augur/internal/pipeline/memstore"
	"github.com/linnemanlabs/augur/internal/sink"
)

// chanSource feeds the runner from a channel. A closed channel behaves
// like a cancelled context so Run returns cleanly.
type chanSource struct {
	ch chan string
}

func (s *chanSource) Next(ctx context.Context) (string, error) {
	select {
	case line, ok := <-s.ch:
		if !ok {
			return "", context.Canceled
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type mockProvider struct {
	mu      sync.Mutex
	err     error
	panics  bool
	degrade bool
	calls   int
}

func (p *mockProvider) Enrich(_ context.Context, rec alert.Record) (*enrich.Enrichment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.panics {
		p.panics = false
		panic("provider exploded")
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.degrade {
		return enrich.Degraded("m", "mock-api", "backend down", nil), nil
	}
	return &enrich.Enrichment{Tags: []string{}}, nil
}

func (p *mockProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type testRig struct {
	runner      *Runner
	provider    *mockProvider
	metrics     *Metrics
	source      *chanSource
	journalPath string
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	journalPath := filepath.Join(t.TempDir(), "journal.ndjson")
	journal, err := sink.OpenJournal(journalPath)
	if err != nil {
		t.Fatalf("OpenJournal: %v", err)
	}
	t.Cleanup(func() { journal.Close() })

	provider := &mockProvider{}
	metrics := NewMetrics(prometheus.NewRegistry())
	source := &chanSource{ch: make(chan string, 16)}

	runner := NewRunner(RunnerConfig{
		Source:   source,
		Provider: provider,
		Journal:  journal,
		Seen:     memstore.New(),
		Metrics:  metrics,
		Pace:     -1,
	})

	return &testRig{
		runner:      runner,
		provider:    provider,
		metrics:     metrics,
		source:      source,
		journalPath: journalPath,
	}
}

func (r *testRig) run(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		r.source.ch <- line
	}
	close(r.source.ch)
	if err := r.runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func (r *testRig) journalDocs(t *testing.T) []map[string]any {
	t.Helper()
	f, err := os.Open(r.journalPath)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()

	var docs []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var doc map[string]any
		if err := json.Unmarshal(sc.Bytes(), &doc); err != nil {
			t.Fatalf("journal line is not valid JSON: %v", err)
		}
		docs = append(docs, doc)
	}
	return docs
}

func outcome(m *Metrics, name string) float64 {
	return testutil.ToFloat64(m.RecordsTotal.WithLabelValues(name))
}

func validLine(id string) string {
	return `{"timestamp":"2026-08-29T10:00:00.000+0000","id":"` + id + `","rule":{"id":"5710","level":5}}`
}

func TestRun_ProcessesStream(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	rig.run(t,
		validLine("a1"),
		"",
		"2026/08/29 plain text noise",
		`{"broken": `,
		validLine("a2"),
		validLine("a1"), // duplicate
	)

	docs := rig.journalDocs(t)
	if len(docs) != 2 {
		t.Fatalf("journal has %d documents, want 2", len(docs))
	}
	if docs[0]["alert_id"] != "a1" || docs[1]["alert_id"] != "a2" {
		t.Errorf("journal ids = %v, %v, want a1, a2", docs[0]["alert_id"], docs[1]["alert_id"])
	}

	if got := outcome(rig.metrics, "enriched"); got != 2 {
		t.Errorf("enriched = %v, want 2", got)
	}
	if got := outcome(rig.metrics, "duplicate"); got != 1 {
		t.Errorf("duplicate = %v, want 1", got)
	}
	if got := outcome(rig.metrics, "skipped"); got != 2 {
		t.Errorf("skipped = %v, want 2", got)
	}
	if got := outcome(rig.metrics, "malformed"); got != 1 {
		t.Errorf("malformed = %v, want 1", got)
	}
	if got := rig.provider.callCount(); got != 2 {
		t.Errorf("provider called %d times, want 2", got)
	}
}

func TestRun_InputGateFailureWritesFailureDocument(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	rig.provider.err = errors.New("field timestamp is missing")
	rig.run(t, validLine("a1"))

	docs := rig.journalDocs(t)
	if len(docs) != 1 {
		t.Fatalf("journal has %d documents, want 1", len(docs))
	}
	enr, ok := docs[0]["enrichment"].(map[string]any)
	if !ok {
		t.Fatalf("enrichment = %T, want object", docs[0]["enrichment"])
	}
	if enr["error"] != enrich.FailureReason {
		t.Errorf("error marker = %v, want %q", enr["error"], enrich.FailureReason)
	}
	if enr["summary_text"] != nil {
		t.Errorf("summary_text = %v, want null", enr["summary_text"])
	}
	if got := outcome(rig.metrics, "failed"); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
}

func TestRun_DegradedOutcome(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	rig.provider.degrade = true
	rig.run(t, validLine("a1"))

	if got := outcome(rig.metrics, "degraded"); got != 1 {
		t.Errorf("degraded = %v, want 1", got)
	}
	if len(rig.journalDocs(t)) != 1 {
		t.Error("degraded document not journaled")
	}
}

func TestRun_PanicIsolation(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	rig.provider.panics = true
	rig.run(t, validLine("a1"), validLine("a2"))

	if got := outcome(rig.metrics, "failed"); got != 1 {
		t.Errorf("failed = %v, want 1 for panicked record", got)
	}
	if got := outcome(rig.metrics, "enriched"); got != 1 {
		t.Errorf("enriched = %v, want loop to survive the panic", got)
	}
}

func TestProcessRecord_ValidationErrorPersistsNothing(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	rig.provider.err = errors.New("bad record")

	_, err := rig.runner.ProcessRecord(context.Background(), alert.Record{"id": "x"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(rig.journalDocs(t)) != 0 {
		t.Error("journal written for rejected record")
	}
}

func TestRunSingle(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	path := filepath.Join(t.TempDir(), "alert.json")
	body := `{"_source":{"timestamp":"2026-08-29T10:00:00.000+0000","id":"s1","rule":{"id":"100","level":3}}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if err := rig.runner.RunSingle(context.Background(), path); err != nil {
		t.Fatalf("RunSingle: %v", err)
	}

	docs := rig.journalDocs(t)
	if len(docs) != 1 {
		t.Fatalf("journal has %d documents, want 1", len(docs))
	}
	if docs[0]["alert_id"] != "s1" {
		t.Errorf("alert_id = %v, want the unwrapped record's id", docs[0]["alert_id"])
	}
}

func TestRunSingle_StreamFileFallsBack(t *testing.T) {
	t.Parallel()

	rig := newTestRig(t)
	path := filepath.Join(t.TempDir(), "alerts.json")
	if err := os.WriteFile(path, []byte(validLine("a1")+"\n"+validLine("a2")+"\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	err := rig.runner.RunSingle(context.Background(), path)
	if !errors.Is(err, ErrNotSingleDocument) {
		t.Fatalf("error = %v, want ErrNotSingleDocument", err)
	}
	if len(rig.journalDocs(t)) != 0 {
		t.Error("journal written for unparseable single-document file")
	}
}
