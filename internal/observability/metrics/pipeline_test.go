package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/pdf-digest/internal/core/domain"
)

func TestPipelineMetricsRecordsOutcomes(t *testing.T) {
	m := NewPipelineMetrics("pdf-pipeline")

	m.StartDocument()
	m.StartDocument()
	if got := testutil.ToFloat64(m.processInFlight); got != 2 {
		t.Fatalf("expected 2 in flight, got %v", got)
	}

	m.ObserveGateDeferral()
	m.FinishDocument(domain.ProcessingOutcome{Succeeded: true, Attempts: 2, Elapsed: time.Second})
	m.FinishDocument(domain.ProcessingOutcome{Attempts: 5, Err: errors.New("down")})

	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("expected 0 in flight, got %v", got)
	}
	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected 1 success, got %v", got)
	}
	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(m.gateDeferrals); got != 1 {
		t.Fatalf("expected 1 deferral, got %v", got)
	}
}

func TestPipelineMetricsHandlerExposesRegistry(t *testing.T) {
	m := NewPipelineMetrics("pdf-worker")
	m.ObserveGateDeferral()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `pdfdigest_pipeline_memory_gate_deferrals_total{service="pdf-worker"} 1`) {
		t.Fatalf("expected deferral counter in output, got:\n%s", body)
	}
}
