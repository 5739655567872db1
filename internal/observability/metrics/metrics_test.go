package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/manual-assistant/internal/core/retrieval"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	raw, _ := io.ReadAll(rec.Body)
	return string(raw)
}

func TestMiddlewareCountsNormalizedPaths(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	for _, path := range []string{"/api/v1/manuals/a", "/api/v1/manuals/b"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m.Handler())
	want := `manuals_http_requests_total{method="GET",path="/api/v1/manuals/{manual_id}",service="api",status="202"} 2`
	if !strings.Contains(out, want) {
		t.Fatalf("expected %q in:\n%s", want, out)
	}
}

func TestObserveRetrievalAndChat(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.ObserveRetrieval(retrieval.Stats{ExpandedTerms: 3, KeywordHits: 2, Included: 0, Truncated: true})
	m.ObserveChat("answered", 1500*time.Millisecond)
	m.ObserveBreaker("gemini.generate", gobreaker.StateClosed, gobreaker.StateOpen)

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`manuals_retrieval_context_truncated_total{service="api"} 1`,
		`manuals_retrieval_empty_context_total{service="api"} 1`,
		`manuals_chat_requests_total{outcome="answered",service="api"} 1`,
		`manuals_upstream_circuit_open{operation="gemini.generate",service="api"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestWorkerMetrics(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartManual(time.Now().Add(-time.Second))
	m.FinishManual(time.Second, nil)
	m.StartManual(time.Time{})
	m.FinishManual(time.Second, errors.New("boom"))

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`manuals_worker_manual_process_total{service="worker",status="success"} 1`,
		`manuals_worker_manual_process_total{service="worker",status="error"} 1`,
		`manuals_worker_manual_process_in_flight{service="worker"} 0`,
		`manuals_worker_queue_lag_seconds_count{service="worker"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}
