package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/augur/internal/alert"
	"github.com/linnemanlabs/augur/internal/enrich"
	"github.com/linnemanlabs/augur/internal/sink"
)

const (
	// defaultPace spaces out LLM calls so a burst of alerts does not
	// hammer the backend.
	defaultPace = 1500 * time.Millisecond

	// maxLoggedLine caps how much of a malformed input line lands in
	// the log.
	maxLoggedLine = 300
)

// ErrNotSingleDocument reports that an alert file could not be parsed
// as one JSON document, so the caller should tail it instead.
var ErrNotSingleDocument = errors.New("alert file is not a single JSON document")

// Notifier is told about every persisted document. Implementations
// decide what is worth forwarding.
type Notifier interface {
	Notify(ctx context.Context, doc *enrich.Document) error
}

// RunnerConfig wires the runner's collaborators.
type RunnerConfig struct {
	Source   Source
	Provider enrich.Provider
	Journal  *sink.Journal
	Indexer  *sink.Indexer
	Seen     SeenStore
	Notifier Notifier
	Logger   log.Logger
	Metrics  *Metrics

	// Pace is the delay after each processed record. Zero selects the
	// default; a negative value disables pacing.
	Pace time.Duration
}

// Runner is the single-worker enrichment loop. Records are processed
// one at a time; a failure on one record never stops the loop.
type Runner struct {
	source   Source
	provider enrich.Provider
	journal  *sink.Journal
	indexer  *sink.Indexer
	seen     SeenStore
	notifier Notifier
	logger   log.Logger
	metrics  *Metrics
	pace     time.Duration
}

// NewRunner builds a Runner from cfg.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	pace := cfg.Pace
	if pace == 0 {
		pace = defaultPace
	}
	return &Runner{
		source:   cfg.Source,
		provider: cfg.Provider,
		journal:  cfg.Journal,
		indexer:  cfg.Indexer,
		seen:     cfg.Seen,
		notifier: cfg.Notifier,
		logger:   logger,
		metrics:  cfg.Metrics,
		pace:     pace,
	}
}

// Run tails the source until the context ends. Each run gets its own ID
// so log lines from concurrent deployments can be told apart.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.logger.With("run_id", ulid.Make().String())
	logger.Info(ctx, "enrichment loop started")

	for {
		line, err := r.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info(ctx, "enrichment loop stopped")
				return nil
			}
			return fmt.Errorf("read alert source: %w", err)
		}
		r.handleLine(ctx, logger, line)
	}
}

// RunSingle treats path as one JSON document, enriches it, and returns.
// Files holding an NDJSON stream instead report ErrNotSingleDocument.
func (r *Runner) RunSingle(ctx context.Context, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return fmt.Errorf("read alert file: %w", err)
	}

	var rec alert.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("%w: %s", ErrNotSingleDocument, path)
	}

	rec = alert.Normalize(alert.Unwrap(rec))
	r.processRecord(ctx, r.logger, rec, alert.Identity(rec))
	return nil
}

// ProcessRecord enriches one normalized record and persists the result.
// The only returned error is an input validation failure, which is left
// to the caller; in that case nothing is persisted.
func (r *Runner) ProcessRecord(ctx context.Context, rec alert.Record) (*enrich.Document, error) {
	e, err := r.provider.Enrich(ctx, rec)
	if err != nil {
		return nil, err
	}
	doc := &enrich.Document{
		AlertID:    alert.Identity(rec),
		Timestamp:  time.Now().UTC(),
		Alert:      rec,
		Enrichment: e,
	}
	r.persist(ctx, doc)
	return doc, nil
}

func (r *Runner) handleLine(ctx context.Context, logger log.Logger, line string) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error(ctx, fmt.Errorf("panic: %v", p), "record processing panicked")
			r.metrics.RecordsTotal.WithLabelValues("failed").Inc()
		}
	}()

	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "{") {
		r.metrics.RecordsTotal.WithLabelValues("skipped").Inc()
		return
	}

	var rec alert.Record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		logger.Warn(ctx, "skipping malformed alert line", "error", err, "line", truncate(line, maxLoggedLine))
		r.metrics.RecordsTotal.WithLabelValues("malformed").Inc()
		return
	}

	rec = alert.Normalize(rec)
	id := alert.Identity(rec)

	if r.seen != nil {
		seen, err := r.seen.Seen(ctx, id)
		if err != nil {
			logger.Warn(ctx, "dedup lookup failed, processing anyway", "alert_id", id, "error", err)
		} else if seen {
			r.metrics.RecordsTotal.WithLabelValues("duplicate").Inc()
			return
		}
	}

	r.processRecord(ctx, logger, rec, id)

	// Pace between records, not between skips.
	_ = wait(ctx, r.pace)
}

func (r *Runner) processRecord(ctx context.Context, logger log.Logger, rec alert.Record, id string) {
	start := time.Now()

	outcome := "enriched"
	doc, err := r.ProcessRecord(ctx, rec)
	switch {
	case err != nil:
		logger.Warn(ctx, "record rejected by input gate, recording failure document", "alert_id", id, "error", err)
		doc = &enrich.Document{
			AlertID:    id,
			Timestamp:  time.Now().UTC(),
			Alert:      rec,
			Enrichment: enrich.Empty(enrich.FailureReason),
		}
		r.persist(ctx, doc)
		outcome = "failed"
	case doc.Enrichment.Degraded:
		outcome = "degraded"
	}

	if r.seen != nil {
		if err := r.seen.MarkSeen(ctx, id); err != nil {
			logger.Warn(ctx, "dedup mark failed", "alert_id", id, "error", err)
		}
	}

	r.metrics.RecordsTotal.WithLabelValues(outcome).Inc()
	r.metrics.RecordDuration.Observe(time.Since(start).Seconds())
}

// persist writes the document to the journal first, then the index.
// Output gate violations are logged and the document kept; the journal
// is the system of record even for broken documents.
func (r *Runner) persist(ctx context.Context, doc *enrich.Document) {
	if err := doc.Validate(); err != nil {
		r.logger.Warn(ctx, "document failed output gate, keeping it anyway", "alert_id", doc.AlertID, "error", err)
		r.metrics.InvalidDocsTotal.Inc()
	}

	if r.journal != nil {
		if err := r.journal.Append(doc); err != nil {
			r.logger.Error(ctx, err, "journal write failed", "alert_id", doc.AlertID)
		} else {
			r.metrics.JournalWrites.Inc()
		}
	}

	if r.indexer != nil {
		if err := r.indexer.Publish(ctx, doc); err != nil {
			r.logger.Error(ctx, err, "index publish failed", "alert_id", doc.AlertID)
		}
	}

	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, doc); err != nil {
			r.logger.Warn(ctx, "notification failed", "alert_id", doc.AlertID, "error", err)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
