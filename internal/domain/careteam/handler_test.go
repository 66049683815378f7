package careteam

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/internal/platform/auth"
	"github.com/healthportal/portal/internal/platform/hipaa"
	"github.com/healthportal/portal/internal/platform/middleware"
)

func newTestApp(t *testing.T, f *fakeRecords, audit hipaa.Recorder) (*echo.Echo, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService([]byte("careteam-test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	e := echo.New()
	e.HTTPErrorHandler = middleware.ErrorHandler(zerolog.Nop())
	api := e.Group("/api", auth.Authenticate(auth.GuardConfig{Verifier: tokens, Skipper: auth.AuthSkipper}))
	NewHandler(newTestService(f), audit).RegisterRoutes(api)
	return e, tokens
}

func get(t *testing.T, e *echo.Echo, tokens *auth.TokenService, subject string, role auth.Role, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	tok, err := tokens.Issue(subject, "x@example.com", role)
	if err != nil {
		t.Fatal(err)
	}
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, hipaa.Entry) {}

func newAuditLogger(store hipaa.Store) *hipaa.AuditLogger {
	return hipaa.NewAuditLogger(store, zerolog.Nop(), hipaa.Options{QueueSize: 16, Workers: 1})
}

func TestHandler_PatientRoleGets403(t *testing.T) {
	store := hipaa.NewMemoryStore()
	audit := newAuditLogger(store)
	e, tokens := newTestApp(t, newFakeRecords(), audit)

	for _, path := range []string{"/api/provider/patients", "/api/provider/compliance", "/api/provider/patients/" + patA} {
		rec := get(t, e, tokens, patA, auth.RolePatient, http.MethodGet, path, "")
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s: expected 403, got %d", path, rec.Code)
		}
	}

	_ = audit.Close(context.Background())
	if n := len(store.Entries()); n != 0 {
		t.Errorf("expected no audit entries for rejected requests, got %d", n)
	}
}

func TestHandler_PatientDetails(t *testing.T) {
	store := hipaa.NewMemoryStore()
	audit := newAuditLogger(store)
	e, tokens := newTestApp(t, newFakeRecords(), audit)

	rec := get(t, e, tokens, drOne, auth.RoleProvider, http.MethodGet, "/api/provider/patients/"+patA, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Patient struct {
			ID        string `json:"id"`
			Email     string `json:"email"`
			FirstName string `json:"firstName"`
		} `json:"patient"`
		Goals     []json.RawMessage `json:"goals"`
		Reminders []json.RawMessage `json:"reminders"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Patient.ID != patA || body.Patient.FirstName != "Ann" || body.Goals == nil || body.Reminders == nil {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	rec = get(t, e, tokens, drOne, auth.RoleProvider, http.MethodGet, "/api/provider/patients/"+patC, "")
	if rec.Code != http.StatusForbidden || !strings.Contains(rec.Body.String(), "Access denied") {
		t.Errorf("expected 403 Access denied, got %d %s", rec.Code, rec.Body.String())
	}
	rec = get(t, e, tokens, drOne, auth.RoleProvider, http.MethodGet, "/api/provider/patients/missing", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "Patient not found") {
		t.Errorf("expected 404 Patient not found, got %d %s", rec.Code, rec.Body.String())
	}

	if err := audit.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	entries := store.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	e0 := entries[0]
	if e0.UserID != drOne || e0.Action != hipaa.ActionViewPatientDetails || e0.Resource != hipaa.ResourcePatient || e0.ResourceID != patA {
		t.Errorf("unexpected audit entry: %+v", e0)
	}
}

func TestHandler_AuditFailureDoesNotChangeResponse(t *testing.T) {
	run := func(store hipaa.Store) (int, string) {
		audit := newAuditLogger(store)
		defer audit.Close(context.Background())
		e, tokens := newTestApp(t, newFakeRecords(), audit)
		rec := get(t, e, tokens, drOne, auth.RoleProvider, http.MethodGet, "/api/provider/compliance", "")
		return rec.Code, rec.Body.String()
	}

	okCode, okBody := run(hipaa.NewMemoryStore())
	failCode, failBody := run(&hipaa.MemoryStore{Err: errors.New("audit table unavailable")})

	if okCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", okCode)
	}
	if failCode != okCode || failBody != okBody {
		t.Errorf("audit failure changed the response: %d %q vs %d %q", failCode, failBody, okCode, okBody)
	}
}

func TestHandler_Compliance(t *testing.T) {
	e, tokens := newTestApp(t, newFakeRecords(), nopAudit{})

	rec := get(t, e, tokens, drOne, auth.RoleProvider, http.MethodGet, "/api/provider/compliance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Compliance []struct {
			PatientID        string `json:"patientId"`
			PatientName      string `json:"patientName"`
			ComplianceStatus string `json:"complianceStatus"`
		} `json:"compliance"`
		Failures []json.RawMessage `json:"failures"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Compliance) != 2 || body.Compliance[0].PatientName != "Ann Lee" {
		t.Errorf("unexpected compliance body: %s", rec.Body.String())
	}
	if body.Compliance[0].ComplianceStatus != "needs_attention" {
		t.Errorf("expected needs_attention with no goals, got %s", body.Compliance[0].ComplianceStatus)
	}
	if body.Failures != nil {
		t.Errorf("expected failures to be omitted, got %s", rec.Body.String())
	}
}

func TestHandler_CreateReminder(t *testing.T) {
	f := newFakeRecords()
	e, tokens := newTestApp(t, f, nopAudit{})

	body := `{"type":"medication","title":"Refill","dueDate":"2026-04-20"}`
	rec := get(t, e, tokens, drOne, auth.RoleProvider, http.MethodPost, "/api/provider/patients/"+patA+"/reminders", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = get(t, e, tokens, drOne, auth.RoleProvider, http.MethodPost, "/api/provider/patients/"+patA+"/reminders", `{"type":"medication"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = get(t, e, tokens, drOne, auth.RoleProvider, http.MethodPost, "/api/provider/patients/"+patC+"/reminders", body)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if len(f.reminders[patC]) != 0 {
		t.Error("reminder written for unassigned patient")
	}
}
