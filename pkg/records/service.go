package records

import (
	"context"
	"errors"

	"github.com/medicore/portal/pkg/common/logger"
	"github.com/medicore/portal/pkg/common/models"
)

// EventPublisher is the alert bus seam; nil disables publishing.
type EventPublisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Service implements the record operations of the portal. Role enforcement
// happens at the HTTP gate; the service scopes reads and writes to the
// patient names it is handed. Positional indexes from the interface are
// resolved to stable record IDs here, and mutations key on the ID.
type Service struct {
	store  Store
	alerts EventPublisher
}

func NewService(store Store, alerts EventPublisher) *Service {
	return &Service{store: store, alerts: alerts}
}

func (s *Service) EnsurePatient(ctx context.Context, name string) (models.Patient, error) {
	return s.store.EnsurePatient(ctx, name)
}

func (s *Service) EnsureDoctor(ctx context.Context, name string) (models.Doctor, error) {
	return s.store.EnsureDoctor(ctx, name)
}

// Patients enumerates every patient currently in the store; the store is
// the single source of truth for the doctor's roster.
func (s *Service) Patients(ctx context.Context) ([]models.Patient, error) {
	return s.store.ListPatients(ctx)
}

func (s *Service) ListHistory(ctx context.Context, patient string) ([]models.HistoryEntry, error) {
	record, err := s.store.GetPatient(ctx, patient)
	if errors.Is(err, ErrPatientNotFound) {
		return []models.HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListHistories(ctx, record.ID)
}

func (s *Service) AppendHistory(ctx context.Context, patient, content string) (models.HistoryEntry, error) {
	record, err := s.store.EnsurePatient(ctx, patient)
	if err != nil {
		return models.HistoryEntry{}, err
	}
	return s.store.AppendHistory(ctx, record.ID, content)
}

// EditHistoryAt rewrites the index-th history entry in creation order.
// Unknown patients and out-of-range indexes are silent no-ops.
func (s *Service) EditHistoryAt(ctx context.Context, patient string, index int, content string) error {
	entries, err := s.ListHistory(ctx, patient)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return nil
	}
	return s.store.UpdateHistory(ctx, entries[index].ID, content)
}

func (s *Service) DeleteHistoryAt(ctx context.Context, patient string, index int) error {
	entries, err := s.ListHistory(ctx, patient)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return nil
	}
	return s.store.DeleteHistory(ctx, entries[index].ID)
}

func (s *Service) ListLogs(ctx context.Context, patient string) ([]models.LogEntry, error) {
	record, err := s.store.GetPatient(ctx, patient)
	if errors.Is(err, ErrPatientNotFound) {
		return []models.LogEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListLogs(ctx, record.ID)
}

func (s *Service) AppendLog(ctx context.Context, patient, content string) (models.LogEntry, error) {
	record, err := s.store.EnsurePatient(ctx, patient)
	if err != nil {
		return models.LogEntry{}, err
	}
	return s.store.AppendLog(ctx, record.ID, content)
}

func (s *Service) EditLogAt(ctx context.Context, patient string, index int, content string) error {
	entries, err := s.ListLogs(ctx, patient)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return nil
	}
	return s.store.UpdateLog(ctx, entries[index].ID, content)
}

func (s *Service) DeleteLogAt(ctx context.Context, patient string, index int) error {
	entries, err := s.ListLogs(ctx, patient)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return nil
	}
	return s.store.DeleteLog(ctx, entries[index].ID)
}

// SubmitHomecare inserts a fresh pending request every time; earlier
// pending requests for the same patient are left untouched.
func (s *Service) SubmitHomecare(ctx context.Context, patient, reason string) (models.HomecareRequest, error) {
	record, err := s.store.EnsurePatient(ctx, patient)
	if err != nil {
		return models.HomecareRequest{}, err
	}
	return s.store.CreateHomecareRequest(ctx, record.ID, reason)
}

// CurrentHomecare returns the most recently created request, or nil.
func (s *Service) CurrentHomecare(ctx context.Context, patient string) (*models.HomecareRequest, error) {
	record, err := s.store.GetPatient(ctx, patient)
	if errors.Is(err, ErrPatientNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.CurrentHomecareRequest(ctx, record.ID)
}

func (s *Service) AllHomecareRequests(ctx context.Context) ([]models.HomecareRequest, error) {
	return s.store.ListHomecareRequests(ctx)
}

func (s *Service) PendingHomecareRequests(ctx context.Context) ([]models.HomecareRequest, error) {
	requests, err := s.store.ListHomecareRequests(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]models.HomecareRequest, 0, len(requests))
	for _, request := range requests {
		if request.Status == models.HomecareStatusPending {
			pending = append(pending, request)
		}
	}
	return pending, nil
}

// AddEmergency records the event and, when an alert bus is wired, notifies
// it best-effort. A publish failure never fails the event itself.
func (s *Service) AddEmergency(ctx context.Context, patient, event string) (models.EmergencyEvent, error) {
	record, err := s.store.EnsurePatient(ctx, patient)
	if err != nil {
		return models.EmergencyEvent{}, err
	}
	emergency, err := s.store.CreateEmergencyEvent(ctx, record.ID, event)
	if err != nil {
		return models.EmergencyEvent{}, err
	}
	if s.alerts != nil {
		if err := s.alerts.PublishEvent(ctx, "emergency.created", "portal", map[string]interface{}{
			"patient": emergency.Patient,
			"event":   emergency.Event,
			"status":  emergency.Status,
			"time":    emergency.Time,
		}); err != nil {
			logger.Log.WithError(err).Warn("emergency alert publish failed")
		}
	}
	return emergency, nil
}

func (s *Service) EmergencyEvents(ctx context.Context) ([]models.EmergencyEvent, error) {
	return s.store.ListEmergencyEvents(ctx)
}

func (s *Service) PatientModules(ctx context.Context, patient string) ([]string, error) {
	record, err := s.store.GetPatient(ctx, patient)
	if errors.Is(err, ErrPatientNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if record.Modules == nil {
		return []string{}, nil
	}
	return record.Modules, nil
}

func (s *Service) AllModules(ctx context.Context) (map[string][]string, error) {
	patients, err := s.store.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	modules := make(map[string][]string, len(patients))
	for _, patient := range patients {
		if patient.Modules == nil {
			modules[patient.Name] = []string{}
			continue
		}
		modules[patient.Name] = patient.Modules
	}
	return modules, nil
}

// Snapshot pairs the latest heuristic metrics with the raw last log line.
func (s *Service) Snapshot(ctx context.Context, patient string) (models.PatientSnapshot, error) {
	entries, err := s.ListLogs(ctx, patient)
	if err != nil {
		return models.PatientSnapshot{}, err
	}
	return snapshotFromLogs(entries), nil
}

func snapshotFromLogs(entries []models.LogEntry) models.PatientSnapshot {
	contents := make([]string, 0, len(entries))
	for _, entry := range entries {
		contents = append(contents, entry.Content)
	}
	snapshot := models.PatientSnapshot{Metrics: LatestMetrics(contents)}
	if len(contents) > 0 {
		snapshot.LastLog = contents[len(contents)-1]
	}
	return snapshot
}

type DoctorDashboard struct {
	PendingHomecare []models.HomecareRequest          `json:"pending_homecare"`
	LatestData      map[string]models.PatientSnapshot `json:"latest_data"`
}

type PatientDashboard struct {
	LatestData      models.PatientSnapshot  `json:"latest_data"`
	HomecareRequest *models.HomecareRequest `json:"homecare_request,omitempty"`
}

func (s *Service) DoctorDashboard(ctx context.Context) (DoctorDashboard, error) {
	pending, err := s.PendingHomecareRequests(ctx)
	if err != nil {
		return DoctorDashboard{}, err
	}
	patients, err := s.store.ListPatients(ctx)
	if err != nil {
		return DoctorDashboard{}, err
	}
	latest := make(map[string]models.PatientSnapshot, len(patients))
	for _, patient := range patients {
		entries, err := s.store.ListLogs(ctx, patient.ID)
		if err != nil {
			return DoctorDashboard{}, err
		}
		latest[patient.Name] = snapshotFromLogs(entries)
	}
	return DoctorDashboard{PendingHomecare: pending, LatestData: latest}, nil
}

func (s *Service) PatientDashboard(ctx context.Context, patient string) (PatientDashboard, error) {
	snapshot, err := s.Snapshot(ctx, patient)
	if err != nil {
		return PatientDashboard{}, err
	}
	request, err := s.CurrentHomecare(ctx, patient)
	if err != nil {
		return PatientDashboard{}, err
	}
	return PatientDashboard{LatestData: snapshot, HomecareRequest: request}, nil
}

type Report struct {
	ReportData map[string]models.ReportEntry     `json:"report_data"`
	LatestData map[string]models.PatientSnapshot `json:"latest_data"`
}

// DoctorReport aggregates modules, logs, and histories for every patient
// in the store.
func (s *Service) DoctorReport(ctx context.Context) (Report, error) {
	patients, err := s.store.ListPatients(ctx)
	if err != nil {
		return Report{}, err
	}
	report := Report{
		ReportData: make(map[string]models.ReportEntry, len(patients)),
		LatestData: make(map[string]models.PatientSnapshot, len(patients)),
	}
	for _, patient := range patients {
		entry, snapshot, err := s.reportEntry(ctx, patient)
		if err != nil {
			return Report{}, err
		}
		report.ReportData[patient.Name] = entry
		report.LatestData[patient.Name] = snapshot
	}
	return report, nil
}

// PatientReport is the single-patient view of the same aggregation.
func (s *Service) PatientReport(ctx context.Context, patient string) (Report, error) {
	report := Report{
		ReportData: make(map[string]models.ReportEntry, 1),
		LatestData: make(map[string]models.PatientSnapshot, 1),
	}
	record, err := s.store.GetPatient(ctx, patient)
	if errors.Is(err, ErrPatientNotFound) {
		report.ReportData[patient] = models.ReportEntry{Modules: []string{}, Logs: []models.LogEntry{}, History: []models.HistoryEntry{}}
		report.LatestData[patient] = models.PatientSnapshot{Metrics: map[string]interface{}{}}
		return report, nil
	}
	if err != nil {
		return Report{}, err
	}
	entry, snapshot, err := s.reportEntry(ctx, record)
	if err != nil {
		return Report{}, err
	}
	report.ReportData[patient] = entry
	report.LatestData[patient] = snapshot
	return report, nil
}

func (s *Service) reportEntry(ctx context.Context, patient models.Patient) (models.ReportEntry, models.PatientSnapshot, error) {
	histories, err := s.store.ListHistories(ctx, patient.ID)
	if err != nil {
		return models.ReportEntry{}, models.PatientSnapshot{}, err
	}
	logs, err := s.store.ListLogs(ctx, patient.ID)
	if err != nil {
		return models.ReportEntry{}, models.PatientSnapshot{}, err
	}
	modules := patient.Modules
	if modules == nil {
		modules = []string{}
	}
	entry := models.ReportEntry{Modules: modules, Logs: logs, History: histories}
	return entry, snapshotFromLogs(logs), nil
}
