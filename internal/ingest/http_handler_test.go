package ingest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rpattn/entity-lookup/internal/domain"
	"github.com/rpattn/entity-lookup/internal/metrics"

	"github.com/rs/zerolog"
)

var errRegistryDown = errors.New("registry unavailable")

func newHandlerService(jobs *stubJobLog) *Service {
	resolver := &stubResolver{desc: testDescriptor}
	provisioner := &stubProvisioner{tables: map[string]string{"entity_driver_id": "driver_id"}}
	extractor := &stubExtractor{stream: &stubStream{batches: []domain.RowBatch{testBatch(1)}}}
	return NewService(resolver, provisioner, extractor, &stubLoader{}, jobs, metrics.NewIngestion(), zerolog.Nop())
}

func TestWebhookAcknowledgesCreationEvent(t *testing.T) {
	jobs := &stubJobLog{}
	handler := NewHTTPHandler(newHandlerService(jobs))

	body := `{"EventName":"s3:ObjectCreated:Put","Key":"feast/offline/driver_stats/part-1.parquet"}`
	req := httptest.NewRequest(http.MethodPost, "/minio/events", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "success") {
		t.Fatalf("expected success status in body, got %s", rec.Body.String())
	}
	if len(jobs.records) != 1 {
		t.Fatalf("expected one job record, got %d", len(jobs.records))
	}
}

func TestWebhookAcknowledgesBusinessFailure(t *testing.T) {
	jobs := &stubJobLog{}
	resolver := &stubResolver{err: errRegistryDown}
	service := NewService(resolver, &stubProvisioner{}, &stubExtractor{stream: &stubStream{}}, &stubLoader{}, jobs, metrics.NewIngestion(), zerolog.Nop())
	handler := NewHTTPHandler(service)

	body := `{"EventName":"s3:ObjectCreated:Put","Key":"feast/offline/driver_stats/part-1.parquet"}`
	req := httptest.NewRequest(http.MethodPost, "/minio/events", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	// Business failures are logged, not redelivered.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite failed attempt, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "failed") {
		t.Fatalf("expected failed status in body, got %s", rec.Body.String())
	}
}

func TestWebhookRejectsBadPayloads(t *testing.T) {
	handler := NewHTTPHandler(newHandlerService(&stubJobLog{}))

	cases := []struct {
		name string
		body string
	}{
		{"not json", "nope"},
		{"missing key", `{"EventName":"s3:ObjectCreated:Put"}`},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/minio/events", strings.NewReader(tc.body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestWebhookRejectsNonPost(t *testing.T) {
	handler := NewHTTPHandler(newHandlerService(&stubJobLog{}))

	req := httptest.NewRequest(http.MethodGet, "/minio/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
