package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandler_ExposesPortalMetrics(t *testing.T) {
	AuthFailures.WithLabelValues("expired").Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "portal_auth_failures_total") {
		t.Error("expected portal_auth_failures_total in exposition output")
	}
}

func TestAuditEntries_CountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(AuditEntries.WithLabelValues("dropped"))
	AuditEntries.WithLabelValues("dropped").Inc()
	after := testutil.ToFloat64(AuditEntries.WithLabelValues("dropped"))
	if after-before != 1 {
		t.Errorf("expected dropped counter to grow by 1, grew by %v", after-before)
	}
}
