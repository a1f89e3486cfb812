package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/onnwee/forcemap/internal/metrics"
)

func TestMetricsMiddleware_RecordsRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics)
	r.HandleFunc("/things/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods("GET")

	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("/things/{id}", "GET", "418"))

	req := httptest.NewRequest(http.MethodGet, "/things/abc123", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rr.Code)
	}

	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("/things/{id}", "GET", "418"))
	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestMetricsMiddleware_DefaultsTo200(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics)
	r.HandleFunc("/plain", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok")) // implicit 200, WriteHeader never called
	}).Methods("GET")

	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("/plain", "GET", "200"))

	req := httptest.NewRequest(http.MethodGet, "/plain", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("/plain", "GET", "200"))
	if after != before+1 {
		t.Errorf("expected counter to increment by 1, got %v -> %v", before, after)
	}
}
