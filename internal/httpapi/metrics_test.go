package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_UsesRoutePattern(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/sessions/{id}", http.MethodGet, "404"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/abc", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/sessions/{id}", http.MethodGet, "404"))
	if after != before+1 {
		t.Fatalf("expected pattern label to increment: before=%v after=%v", before, after)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "answerd_http_requests_total") {
		t.Fatalf("metrics endpoint missing counters: %d", w.Code)
	}
}

func TestIncrementBackpressure_IncrementsCounter(t *testing.T) {
	baseline := testutil.ToFloat64(backpressureTotal.WithLabelValues("queue"))
	IncrementBackpressure("queue")
	IncrementBackpressure("queue")
	if got := testutil.ToFloat64(backpressureTotal.WithLabelValues("queue")); got != baseline+2 {
		t.Fatalf("expected %v, got %v", baseline+2, got)
	}
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified"))
	IncrementBackpressure("")
	if after := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified")); after != before+1 {
		t.Fatalf("unspecified reason: before=%v after=%v", before, after)
	}
}

func TestStatusRecorder_Flushes(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: 200}
	var f http.Flusher = sr
	f.Flush()
	if !rec.Flushed {
		t.Fatalf("flush not forwarded")
	}
}

func TestStatusRecorder_ImplicitOKAndFirstStatusWins(t *testing.T) {
	sr := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	sr.Write([]byte("x"))
	sr.WriteHeader(http.StatusTeapot)
	if sr.code() != http.StatusOK {
		t.Fatalf("code = %d", sr.code())
	}
	if (&statusRecorder{}).code() != http.StatusOK {
		t.Fatal("no write should report 200")
	}
}

func TestMetrics_CountsStreamBytes(t *testing.T) {
	svc := &mockService{}
	r := NewMux(svc)
	before := testutil.ToFloat64(streamBytesTotal.WithLabelValues("generate"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, postJSON("/generate", `{"query":"hi"}`))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("generate: %d %q", w.Code, w.Body.String())
	}
	if got := testutil.ToFloat64(streamBytesTotal.WithLabelValues("generate")) - before; got != float64(w.Body.Len()) {
		t.Fatalf("stream bytes = %v, body = %d", got, w.Body.Len())
	}
}
