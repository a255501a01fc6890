package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medicore/portal/pkg/common/models"
)

func TestAuthorize(t *testing.T) {
	doctor := &models.Identity{Role: models.RoleDoctor, Name: "Doctor Wu"}
	patient := &models.Identity{Role: models.RolePatient, Name: "Liao"}

	tests := []struct {
		name     string
		identity *models.Identity
		roles    []models.Role
		want     bool
	}{
		{"nil identity denied", nil, nil, false},
		{"nil identity denied for role", nil, []models.Role{models.RoleDoctor}, false},
		{"any authenticated allows patient", patient, nil, true},
		{"matching role allows", doctor, []models.Role{models.RoleDoctor}, true},
		{"role mismatch denies", patient, []models.Role{models.RoleDoctor}, false},
		{"any of several roles", patient, []models.Role{models.RoleDoctor, models.RolePatient}, true},
	}

	for _, tt := range tests {
		if got := Authorize(tt.identity, tt.roles...); got != tt.want {
			t.Fatalf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestGateDenialsAreIndistinguishable(t *testing.T) {
	service := NewService(DefaultCredentials(), NewMemorySessionStore(time.Hour))
	gate := NewGate(service, "portal_session")

	protected := gate.Require(models.RoleDoctor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// No session at all.
	anonReq := httptest.NewRequest(http.MethodGet, "/emergency", nil)
	anonRec := httptest.NewRecorder()
	protected.ServeHTTP(anonRec, anonReq)

	// Authenticated but wrong role.
	session, err := service.Login(context.Background(), "Patient", "AAAAAAAA")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	patientReq := httptest.NewRequest(http.MethodGet, "/emergency", nil)
	patientReq.AddCookie(&http.Cookie{Name: "portal_session", Value: session.Token})
	patientRec := httptest.NewRecorder()
	protected.ServeHTTP(patientRec, patientReq)

	if anonRec.Code != http.StatusForbidden || patientRec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for both, got %d and %d", anonRec.Code, patientRec.Code)
	}
	anonBody, _ := io.ReadAll(anonRec.Body)
	patientBody, _ := io.ReadAll(patientRec.Body)
	if string(anonBody) != string(patientBody) {
		t.Fatalf("denial bodies differ: %q vs %q", anonBody, patientBody)
	}
}

func TestGateAttachesIdentity(t *testing.T) {
	service := NewService(DefaultCredentials(), NewMemorySessionStore(time.Hour))
	gate := NewGate(service, "portal_session")

	session, err := service.Login(context.Background(), "DoctorWu", "DDDDDDDD")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	var seen *models.Identity
	protected := gate.Require()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = IdentityFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: session.Token})
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if seen == nil || seen.Name != "Doctor Wu" || seen.Role != models.RoleDoctor {
		t.Fatalf("identity not attached: %+v", seen)
	}
}
