package portal

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/medicore/portal/pkg/auth"
	"github.com/medicore/portal/pkg/common/logger"
	"github.com/medicore/portal/pkg/records"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func newTestRouter() *mux.Router {
	store := records.NewMemoryStore()
	recordService := records.NewService(store, nil)
	authService := auth.NewService(auth.DefaultCredentials(), auth.NewMemorySessionStore(time.Hour))
	handler := NewHandler(recordService, authService, "portal_session")

	router := mux.NewRouter()
	handler.Register(router)
	return router
}

func login(t *testing.T, router *mux.Router, username, password string) *http.Cookie {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login for %s failed with %d: %s", username, rec.Code, rec.Body.String())
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "portal_session" && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func do(router *mux.Router, method, path string, cookie *http.Cookie, payload interface{}) *httptest.ResponseRecorder {
	var req *http.Request
	if payload != nil {
		body, _ := json.Marshal(payload)
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router := newTestRouter()
	rec := do(router, http.MethodPost, "/login", nil, map[string]string{"username": "Patient", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestDashboardRequiresSession(t *testing.T) {
	router := newTestRouter()
	rec := do(router, http.MethodGet, "/", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected restricted, got %d", rec.Code)
	}
}

func TestPatientDashboard(t *testing.T) {
	router := newTestRouter()
	cookie := login(t, router, "Patient", "AAAAAAAA")

	rec := do(router, http.MethodGet, "/", cookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decode(t, rec)
	user, ok := payload["user"].(map[string]interface{})
	if !ok || user["name"] != "Liao" || user["role"] != "patient" {
		t.Fatalf("unexpected user payload: %v", payload)
	}
}

func TestDoctorOnlyDenialMatchesAnonymous(t *testing.T) {
	router := newTestRouter()
	patientCookie := login(t, router, "Patient", "AAAAAAAA")

	body := map[string]string{"content": "note"}
	anon := do(router, http.MethodPost, "/add_history/Liao", nil, body)
	asPatient := do(router, http.MethodPost, "/add_history/Liao", patientCookie, body)

	if anon.Code != http.StatusForbidden || asPatient.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for both, got %d and %d", anon.Code, asPatient.Code)
	}
	if anon.Body.String() != asPatient.Body.String() {
		t.Fatalf("denial bodies differ: %q vs %q", anon.Body.String(), asPatient.Body.String())
	}
}

func TestHistoryRoundTripOverHTTP(t *testing.T) {
	router := newTestRouter()
	doctorCookie := login(t, router, "DoctorWu", "DDDDDDDD")

	rec := do(router, http.MethodPost, "/add_history/Liao", doctorCookie, map[string]string{"content": "Diagnosis - stable"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("append failed with %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/history", doctorCookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list failed with %d", rec.Code)
	}
	payload := decode(t, rec)
	histories, ok := payload["history"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected history map, got %v", payload)
	}
	entries, ok := histories["Liao"].([]interface{})
	if !ok || len(entries) != 1 {
		t.Fatalf("expected one entry for Liao, got %v", histories)
	}

	// Out-of-range delete is a silent no-op.
	rec = do(router, http.MethodPost, "/delete_history/Liao/5", doctorCookie, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("out-of-range delete should 204, got %d", rec.Code)
	}

	rec = do(router, http.MethodPost, "/delete_history/Liao/0", doctorCookie, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete failed with %d", rec.Code)
	}

	rec = do(router, http.MethodGet, "/history", doctorCookie, nil)
	payload = decode(t, rec)
	histories = payload["history"].(map[string]interface{})
	entries, _ = histories["Liao"].([]interface{})
	if len(entries) != 0 {
		t.Fatalf("expected history cleared, got %v", histories)
	}
}

func TestEditHistoryRejectsBadIndex(t *testing.T) {
	router := newTestRouter()
	doctorCookie := login(t, router, "DoctorWu", "DDDDDDDD")

	rec := do(router, http.MethodPost, "/edit_history/Liao/notanumber", doctorCookie, map[string]string{"content": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric index, got %d", rec.Code)
	}
}

func TestHomecareFlow(t *testing.T) {
	router := newTestRouter()
	patientCookie := login(t, router, "Patient", "AAAAAAAA")
	doctorCookie := login(t, router, "DoctorWu", "DDDDDDDD")

	for _, reason := range []string{"fever at home", "still feverish"} {
		rec := do(router, http.MethodPost, "/apply_homecare", patientCookie, map[string]string{"reason": reason})
		if rec.Code != http.StatusCreated {
			t.Fatalf("submit failed with %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := do(router, http.MethodGet, "/apply_homecare", doctorCookie, nil)
	payload := decode(t, rec)
	requests, ok := payload["requests"].([]interface{})
	if !ok || len(requests) != 2 {
		t.Fatalf("doctor should see both pending requests, got %v", payload)
	}

	rec = do(router, http.MethodGet, "/apply_homecare", patientCookie, nil)
	payload = decode(t, rec)
	info, ok := payload["request_info"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected current request, got %v", payload)
	}
	if info["reason"] != "still feverish" {
		t.Fatalf("expected the later request, got %v", info)
	}
	if info["status"] != "pending" {
		t.Fatalf("expected pending status, got %v", info)
	}
}

func TestHomecareSubmitIsPatientOnly(t *testing.T) {
	router := newTestRouter()
	doctorCookie := login(t, router, "DoctorWu", "DDDDDDDD")

	rec := do(router, http.MethodPost, "/apply_homecare", doctorCookie, map[string]string{"reason": "nope"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("doctor submit should be restricted, got %d", rec.Code)
	}
}

func TestEmergencyFlowCreatesUnknownPatient(t *testing.T) {
	router := newTestRouter()
	doctorCookie := login(t, router, "DoctorWu", "DDDDDDDD")

	rec := do(router, http.MethodPost, "/emergency/add", doctorCookie, map[string]string{
		"patient": "Patient D",
		"event":   "sudden BP spike",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("emergency add failed with %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/emergency", doctorCookie, nil)
	payload := decode(t, rec)
	events, ok := payload["events"].([]interface{})
	if !ok || len(events) != 1 {
		t.Fatalf("expected one event, got %v", payload)
	}
	event := events[0].(map[string]interface{})
	if event["patient"] != "Patient D" || event["status"] != "in progress" {
		t.Fatalf("unexpected event: %v", event)
	}

	// The named patient was created implicitly.
	rec = do(router, http.MethodGet, "/history", doctorCookie, nil)
	payload = decode(t, rec)
	histories := payload["history"].(map[string]interface{})
	if _, ok := histories["Patient D"]; !ok {
		t.Fatalf("expected implicit patient row, got %v", histories)
	}
}

func TestReportsForPatient(t *testing.T) {
	router := newTestRouter()
	doctorCookie := login(t, router, "DoctorWu", "DDDDDDDD")
	patientCookie := login(t, router, "Patient", "AAAAAAAA")

	rec := do(router, http.MethodPost, "/add_log/Liao", doctorCookie, map[string]string{"content": "2024-09-03: Heart rate 80"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add log failed with %d", rec.Code)
	}

	rec = do(router, http.MethodGet, "/reports", patientCookie, nil)
	payload := decode(t, rec)
	if payload["is_doctor"] != false {
		t.Fatalf("expected patient report, got %v", payload)
	}
	latest, ok := payload["latest_data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected latest_data, got %v", payload)
	}
	snapshot, ok := latest["Liao"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected snapshot for Liao, got %v", latest)
	}
	metrics := snapshot["metrics"].(map[string]interface{})
	if metrics["heart_rate"] != float64(80) {
		t.Fatalf("expected parsed heart rate, got %v", metrics)
	}
}

func TestModelEditorIsManagerOnly(t *testing.T) {
	router := newTestRouter()
	managerCookie := login(t, router, "Manager", "XXXXXXXX")
	patientCookie := login(t, router, "Patient", "AAAAAAAA")

	rec := do(router, http.MethodGet, "/model_editor", managerCookie, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("manager should reach model editor, got %d", rec.Code)
	}
	rec = do(router, http.MethodGet, "/model_editor", patientCookie, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("patient should be restricted, got %d", rec.Code)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	router := newTestRouter()
	cookie := login(t, router, "Patient", "AAAAAAAA")

	rec := do(router, http.MethodGet, "/logout", cookie, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout failed with %d", rec.Code)
	}
	rec = do(router, http.MethodGet, "/logout", cookie, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("second logout should succeed, got %d", rec.Code)
	}

	rec = do(router, http.MethodGet, "/", cookie, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cleared session should be restricted, got %d", rec.Code)
	}
}
