package portal

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/medicore/portal/pkg/auth"
	"github.com/medicore/portal/pkg/common/logger"
	"github.com/medicore/portal/pkg/common/models"
	"github.com/medicore/portal/pkg/records"
)

// Handler exposes the portal routes. Role checks run in the access gate;
// handlers only dispatch on the already-verified identity.
type Handler struct {
	records *records.Service
	auth    *auth.Service
	gate    *auth.Gate
	cookie  string
}

func NewHandler(recordsService *records.Service, authService *auth.Service, cookieName string) *Handler {
	return &Handler{
		records: recordsService,
		auth:    authService,
		gate:    auth.NewGate(authService, cookieName),
		cookie:  cookieName,
	}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/login", h.handleLoginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", h.handleLogout).Methods(http.MethodGet)

	authed := h.gate.Require()
	doctor := h.gate.Require(models.RoleDoctor)
	patient := h.gate.Require(models.RolePatient)
	manager := h.gate.Require(models.RoleManager)

	r.Handle("/", authed(http.HandlerFunc(h.handleHome))).Methods(http.MethodGet)

	r.Handle("/history", authed(http.HandlerFunc(h.handleHistory))).Methods(http.MethodGet)
	r.Handle("/add_history/{patient}", doctor(http.HandlerFunc(h.handleAddHistoryContext))).Methods(http.MethodGet)
	r.Handle("/add_history/{patient}", doctor(http.HandlerFunc(h.handleAddHistory))).Methods(http.MethodPost)
	r.Handle("/edit_history/{patient}/{index}", doctor(http.HandlerFunc(h.handleEditHistory))).Methods(http.MethodPost)
	r.Handle("/delete_history/{patient}/{index}", doctor(http.HandlerFunc(h.handleDeleteHistory))).Methods(http.MethodPost)

	r.Handle("/logs", authed(http.HandlerFunc(h.handleLogs))).Methods(http.MethodGet)
	r.Handle("/add_log/{patient}", doctor(http.HandlerFunc(h.handleAddLog))).Methods(http.MethodPost)
	r.Handle("/edit_log/{patient}/{index}", doctor(http.HandlerFunc(h.handleEditLog))).Methods(http.MethodPost)
	r.Handle("/delete_log/{patient}/{index}", doctor(http.HandlerFunc(h.handleDeleteLog))).Methods(http.MethodPost)

	r.Handle("/apply_homecare", authed(http.HandlerFunc(h.handleHomecareView))).Methods(http.MethodGet)
	r.Handle("/apply_homecare", patient(http.HandlerFunc(h.handleHomecareSubmit))).Methods(http.MethodPost)

	r.Handle("/emergency", doctor(http.HandlerFunc(h.handleEmergency))).Methods(http.MethodGet)
	r.Handle("/emergency/add", doctor(http.HandlerFunc(h.handleEmergencyAdd))).Methods(http.MethodPost)

	r.Handle("/reports", authed(http.HandlerFunc(h.handleReports))).Methods(http.MethodGet)
	r.Handle("/modules", authed(http.HandlerFunc(h.handleModules))).Methods(http.MethodGet)
	r.Handle("/model_editor", manager(http.HandlerFunc(h.handleModelEditor))).Methods(http.MethodGet)
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	identity := h.gate.Identity(r)
	writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": identity != nil})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	session, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		logger.Log.WithField("username", req.Username).Warn("login failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid username or password"}`))
		return
	}

	// Login-time seed: the identity's patient or doctor row exists from the
	// first session onward.
	switch session.Identity.Role {
	case models.RolePatient:
		if _, err := h.records.EnsurePatient(r.Context(), session.Identity.Name); err != nil {
			logger.Log.WithError(err).Error("failed to ensure patient at login")
		}
	case models.RoleDoctor:
		if _, err := h.records.EnsureDoctor(r.Context(), session.Identity.Name); err != nil {
			logger.Log.WithError(err).Error("failed to ensure doctor at login")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie,
		Value:    session.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": session.Identity})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookie); err == nil && cookie.Value != "" {
		if err := h.auth.Logout(r.Context(), cookie.Value); err != nil {
			logger.Log.WithError(err).Error("failed to clear session")
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())
	switch identity.Role {
	case models.RoleDoctor:
		dashboard, err := h.records.DoctorDashboard(r.Context())
		if err != nil {
			h.serverError(w, err, "failed to build doctor dashboard")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": identity, "dashboard": dashboard})
	case models.RolePatient:
		dashboard, err := h.records.PatientDashboard(r.Context(), identity.Name)
		if err != nil {
			h.serverError(w, err, "failed to build patient dashboard")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": identity, "dashboard": dashboard})
	default:
		writeJSON(w, http.StatusOK, map[string]interface{}{"user": identity})
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())
	if identity.Role == models.RoleDoctor {
		patients, err := h.records.Patients(r.Context())
		if err != nil {
			h.serverError(w, err, "failed to list patients")
			return
		}
		histories := make(map[string][]models.HistoryEntry, len(patients))
		names := make([]string, 0, len(patients))
		for _, patient := range patients {
			entries, err := h.records.ListHistory(r.Context(), patient.Name)
			if err != nil {
				h.serverError(w, err, "failed to list history")
				return
			}
			histories[patient.Name] = entries
			names = append(names, patient.Name)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"patients": names, "history": histories})
		return
	}

	entries, err := h.records.ListHistory(r.Context(), identity.Name)
	if err != nil {
		h.serverError(w, err, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patient": identity.Name, "history": entries})
}

func (h *Handler) handleAddHistoryContext(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"patient": mux.Vars(r)["patient"]})
}

func (h *Handler) handleAddHistory(w http.ResponseWriter, r *http.Request) {
	patient := mux.Vars(r)["patient"]
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}
	entry, err := h.records.AppendHistory(r.Context(), patient, content)
	if err != nil {
		h.serverError(w, err, "failed to append history")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"entry": entry})
}

func (h *Handler) handleEditHistory(w http.ResponseWriter, r *http.Request) {
	patient, index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}
	if err := h.records.EditHistoryAt(r.Context(), patient, index, content); err != nil {
		h.serverError(w, err, "failed to edit history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	patient, index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if err := h.records.DeleteHistoryAt(r.Context(), patient, index); err != nil {
		h.serverError(w, err, "failed to delete history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())
	if identity.Role == models.RoleDoctor {
		patients, err := h.records.Patients(r.Context())
		if err != nil {
			h.serverError(w, err, "failed to list patients")
			return
		}
		logs := make(map[string][]models.LogEntry, len(patients))
		names := make([]string, 0, len(patients))
		for _, patient := range patients {
			entries, err := h.records.ListLogs(r.Context(), patient.Name)
			if err != nil {
				h.serverError(w, err, "failed to list logs")
				return
			}
			logs[patient.Name] = entries
			names = append(names, patient.Name)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"patients": names, "logs": logs})
		return
	}

	entries, err := h.records.ListLogs(r.Context(), identity.Name)
	if err != nil {
		h.serverError(w, err, "failed to list logs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patient": identity.Name, "logs": entries})
}

func (h *Handler) handleAddLog(w http.ResponseWriter, r *http.Request) {
	patient := mux.Vars(r)["patient"]
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}
	entry, err := h.records.AppendLog(r.Context(), patient, content)
	if err != nil {
		h.serverError(w, err, "failed to append log")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"entry": entry})
}

func (h *Handler) handleEditLog(w http.ResponseWriter, r *http.Request) {
	patient, index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	content, ok := decodeContent(w, r)
	if !ok {
		return
	}
	if err := h.records.EditLogAt(r.Context(), patient, index, content); err != nil {
		h.serverError(w, err, "failed to edit log")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteLog(w http.ResponseWriter, r *http.Request) {
	patient, index, ok := pathIndex(w, r)
	if !ok {
		return
	}
	if err := h.records.DeleteLogAt(r.Context(), patient, index); err != nil {
		h.serverError(w, err, "failed to delete log")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHomecareView(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())
	switch identity.Role {
	case models.RolePatient:
		request, err := h.records.CurrentHomecare(r.Context(), identity.Name)
		if err != nil {
			h.serverError(w, err, "failed to load homecare request")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"request_info": request})
	case models.RoleDoctor:
		requests, err := h.records.AllHomecareRequests(r.Context())
		if err != nil {
			h.serverError(w, err, "failed to list homecare requests")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"requests": requests})
	default:
		auth.WriteRestricted(w)
	}
}

func (h *Handler) handleHomecareSubmit(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}
	request, err := h.records.SubmitHomecare(r.Context(), identity.Name, req.Reason)
	if err != nil {
		h.serverError(w, err, "failed to submit homecare request")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"request": request})
}

func (h *Handler) handleEmergency(w http.ResponseWriter, r *http.Request) {
	events, err := h.records.EmergencyEvents(r.Context())
	if err != nil {
		h.serverError(w, err, "failed to list emergency events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (h *Handler) handleEmergencyAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Patient string `json:"patient"`
		Event   string `json:"event"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Patient == "" || req.Event == "" {
		http.Error(w, "patient and event are required", http.StatusBadRequest)
		return
	}
	event, err := h.records.AddEmergency(r.Context(), req.Patient, req.Event)
	if err != nil {
		h.serverError(w, err, "failed to add emergency event")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"event": event})
}

func (h *Handler) handleReports(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())
	if identity.Role == models.RoleDoctor {
		report, err := h.records.DoctorReport(r.Context())
		if err != nil {
			h.serverError(w, err, "failed to build report")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"is_doctor":   true,
			"username":    identity.Name,
			"report_data": report.ReportData,
			"latest_data": report.LatestData,
		})
		return
	}

	report, err := h.records.PatientReport(r.Context(), identity.Name)
	if err != nil {
		h.serverError(w, err, "failed to build report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_doctor":   false,
		"username":    identity.Name,
		"report_data": report.ReportData,
		"latest_data": report.LatestData,
	})
}

func (h *Handler) handleModules(w http.ResponseWriter, r *http.Request) {
	identity := auth.IdentityFrom(r.Context())
	if identity.Role == models.RoleDoctor {
		modules, err := h.records.AllModules(r.Context())
		if err != nil {
			h.serverError(w, err, "failed to list modules")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"modules": modules})
		return
	}

	modules, err := h.records.PatientModules(r.Context(), identity.Name)
	if err != nil {
		h.serverError(w, err, "failed to list modules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"patient": identity.Name, "modules": modules})
}

func (h *Handler) handleModelEditor(w http.ResponseWriter, r *http.Request) {
	modules, err := h.records.AllModules(r.Context())
	if err != nil {
		h.serverError(w, err, "failed to list modules")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"modules": modules})
}

func (h *Handler) serverError(w http.ResponseWriter, err error, message string) {
	logger.Log.WithError(err).Error(message)
	http.Error(w, "server error", http.StatusInternalServerError)
}

func pathIndex(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	vars := mux.Vars(r)
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return "", 0, false
	}
	return vars["patient"], index, true
}

func decodeContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return "", false
	}
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return "", false
	}
	return req.Content, true
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
