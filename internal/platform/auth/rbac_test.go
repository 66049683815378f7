package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newRoleContext(id *Identity) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id != nil {
		req = req.WithContext(WithIdentity(req.Context(), id))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequireRole_Allowed(t *testing.T) {
	c, rec := newRoleContext(&Identity{SubjectID: "p1", Role: RolePatient})

	if err := RequireRole(RolePatient)(okHandler)(c); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_MultipleRoles(t *testing.T) {
	for _, role := range []Role{RolePatient, RoleProvider} {
		c, _ := newRoleContext(&Identity{SubjectID: "s", Role: role})
		if err := RequireRole(RolePatient, RoleProvider)(okHandler)(c); err != nil {
			t.Errorf("role %s: expected no error, got %v", role, err)
		}
	}
}

func TestRequireRole_WrongRoleIsForbiddenNotUnauthorized(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		required Role
	}{
		{"patient on provider route", RolePatient, RoleProvider},
		{"provider on patient route", RoleProvider, RolePatient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newRoleContext(&Identity{SubjectID: "s", Role: tt.role})
			err := RequireRole(tt.required)(okHandler)(c)
			assertHTTPError(t, err, http.StatusForbidden, "Forbidden: Insufficient permissions")
			if rec.Body.Len() != 0 {
				t.Error("handler must not run on role mismatch")
			}
		})
	}
}

func TestRequireRole_NoIdentity(t *testing.T) {
	c, _ := newRoleContext(nil)
	err := RequireRole(RolePatient)(okHandler)(c)
	assertHTTPError(t, err, http.StatusUnauthorized, "Unauthorized")
}

func TestRequireRole_AfterAuthenticate(t *testing.T) {
	svc := newTestTokenService(t)
	tok, _ := svc.Issue("patient-1", "p@example.com", RolePatient)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/provider/compliance", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Authenticate(GuardConfig{Verifier: svc})(RequireRole(RoleProvider)(okHandler))
	assertHTTPError(t, h(c), http.StatusForbidden, "")
}

func TestRequireIdentity(t *testing.T) {
	c, _ := newRoleContext(nil)
	if _, err := RequireIdentity(c); err == nil {
		t.Error("expected error without identity")
	}

	c, _ = newRoleContext(&Identity{SubjectID: "p1", Role: RolePatient})
	id, err := RequireIdentity(c)
	if err != nil {
		t.Fatalf("expected identity, got %v", err)
	}
	if id.SubjectID != "p1" {
		t.Errorf("expected p1, got %s", id.SubjectID)
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"patient", RolePatient, false},
		{"provider", RoleProvider, false},
		{"admin", "", true},
		{"", "", true},
		{"Patient", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
