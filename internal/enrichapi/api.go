// Package enrichapi exposes on-demand enrichment over HTTP.
package enrichapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/augur/internal/alert"
	"github.com/linnemanlabs/augur/internal/enrich"
	"github.com/linnemanlabs/augur/internal/schema"
)

// Enricher defines the pipeline operation the API needs.
type Enricher interface {
	ProcessRecord(ctx context.Context, rec alert.Record) (*enrich.Document, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    Enricher
}

// New creates a new API handler.
func New(logger log.Logger, svc Enricher) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("enricher is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/enrich", a.handleEnrich)
	})
}

// handleEnrich accepts one alert in any of its common envelopes: bare,
// wrapped in "_source", or wrapped in "alert".
func (a *API) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var rec alert.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, `{"error":"invalid payload"}`, http.StatusBadRequest)
		return
	}

	rec = alert.Normalize(alert.Unwrap(rec))
	id := alert.Identity(rec)

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("augur.alert.id", id))

	doc, err := a.svc.ProcessRecord(r.Context(), rec)
	if err != nil {
		var serr *schema.Error
		if errors.As(err, &serr) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": serr.Error(),
				"field": serr.Field,
			})
			return
		}
		a.logger.Error(r.Context(), err, "enrichment failed", "alert_id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}
