package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/augur/internal/alert"
	"github.com/linnemanlabs/augur/internal/enrich"
	"github.com/linnemanlabs/augur/internal/schema"
)

// reservedFields are index-internal names that must not appear in a
// submitted document.
var reservedFields = []string{
	"_index", "_id", "_version", "_score", "_source",
	"fields", "sort", "highlight",
}

const (
	publishAttempts = 3
	publishPause    = 2 * time.Second
)

// IndexerConfig describes the search index endpoint.
type IndexerConfig struct {
	URL      string
	Index    string
	Username string
	Password string
	// CABundle is a path to a PEM bundle for the index's TLS chain.
	// When empty, certificate verification is disabled.
	CABundle string
}

// Indexer publishes enriched documents to a search index with bounded
// retries. Documents the index can never accept go to the dead letter
// instead of blocking the pipeline.
type Indexer struct {
	cfg        IndexerConfig
	httpClient *http.Client
	dead       *DeadLetter
	logger     log.Logger
	metrics    *Metrics

	// retryPause is shortened by tests.
	retryPause time.Duration
}

// NewIndexer builds an Indexer. The CA bundle is loaded once at
// startup; an unreadable bundle is a configuration error.
func NewIndexer(cfg IndexerConfig, dead *DeadLetter, logger log.Logger, metrics *Metrics) (*Indexer, error) {
	if logger == nil {
		logger = log.Nop()
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CABundle != "" {
		pem, err := os.ReadFile(cfg.CABundle) //nolint:gosec // G304: path comes from operator config
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA bundle %s contains no certificates", cfg.CABundle)
		}
		tlsCfg.RootCAs = pool
	} else if strings.HasPrefix(cfg.URL, "https://") {
		tlsCfg.InsecureSkipVerify = true
		logger.Warn(context.Background(), "index TLS verification disabled, set a CA bundle to enable it", "url", cfg.URL)
	}

	return &Indexer{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		},
		dead:       dead,
		logger:     logger,
		metrics:    metrics,
		retryPause: publishPause,
	}, nil
}

// Publish submits one document to the index. A document that fails the
// index schema gate is dead-lettered and reported as handled; only
// transport exhaustion returns an error.
func (i *Indexer) Publish(ctx context.Context, doc *enrich.Document) error {
	if err := schema.ValidateForIndex(doc.Alert); err != nil {
		i.logger.Warn(ctx, "document rejected by index schema gate", "alert_id", doc.AlertID, "error", err)
		i.deadLetter(ctx, doc)
		i.metrics.PublishesTotal.WithLabelValues("schema_rejected").Inc()
		return nil
	}

	out := *doc
	out.Alert = stripReserved(doc.Alert)

	body, err := json.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	url := strings.TrimRight(i.cfg.URL, "/") + "/" + i.cfg.Index + "/_doc"

	var lastErr error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		start := time.Now()
		lastErr = i.post(ctx, url, body)
		i.metrics.PublishAttempts.Inc()
		i.metrics.PublishDuration.Observe(time.Since(start).Seconds())

		if lastErr == nil {
			i.metrics.PublishesTotal.WithLabelValues("success").Inc()
			i.logger.Info(ctx, "document published",
				"alert_id", doc.AlertID,
				"index", i.cfg.Index,
				"attempt", attempt,
				"duration_ms", time.Since(start).Milliseconds())
			return nil
		}

		i.logger.Warn(ctx, "publish attempt failed",
			"alert_id", doc.AlertID,
			"attempt", attempt,
			"error", lastErr)

		if attempt < publishAttempts {
			select {
			case <-time.After(i.retryPause):
			case <-ctx.Done():
				i.deadLetter(ctx, doc)
				i.metrics.PublishesTotal.WithLabelValues("failed").Inc()
				return ctx.Err()
			}
		}
	}

	i.deadLetter(ctx, doc)
	i.metrics.PublishesTotal.WithLabelValues("failed").Inc()
	return fmt.Errorf("publish %s after %d attempts: %w", doc.AlertID, publishAttempts, lastErr)
}

func (i *Indexer) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if i.cfg.Username != "" {
		req.SetBasicAuth(i.cfg.Username, i.cfg.Password)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("index error %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// deadLetter records the document; a failing dead-letter write is
// logged and swallowed so it never takes the pipeline down.
func (i *Indexer) deadLetter(ctx context.Context, doc *enrich.Document) {
	i.metrics.DeadLettersTotal.Inc()
	if i.dead == nil {
		return
	}
	if err := i.dead.Append(doc); err != nil {
		i.logger.Error(ctx, err, "dead-letter write failed", "alert_id", doc.AlertID)
	}
}

func stripReserved(rec alert.Record) alert.Record {
	out := make(alert.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for _, f := range reservedFields {
		delete(out, f)
	}
	return out
}
