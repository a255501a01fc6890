package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medicore/portal/pkg/common/models"
)

// MemoryStore keeps all records in process memory behind a single lock.
// It mirrors the relational layout closely enough that the service layer
// cannot tell the backends apart; it also serves as the test double.
type MemoryStore struct {
	mu            sync.RWMutex
	patients      map[string]*memPatient
	doctors       map[string]models.Doctor
	nextPatientID uint
	nextDoctorID  uint
	nextHistoryID uint
	nextLogID     uint
	nextRequestID uint
	nextEventID   uint
}

type memPatient struct {
	patient     models.Patient
	histories   []models.HistoryEntry
	logs        []models.LogEntry
	requests    []models.HomecareRequest
	emergencies []models.EmergencyEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		patients: make(map[string]*memPatient),
		doctors:  make(map[string]models.Doctor),
	}
}

func (s *MemoryStore) EnsurePatient(ctx context.Context, name string) (models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensurePatientLocked(name), nil
}

func (s *MemoryStore) ensurePatientLocked(name string) models.Patient {
	if entry, ok := s.patients[name]; ok {
		return entry.patient
	}
	s.nextPatientID++
	patient := models.Patient{
		ID:        s.nextPatientID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	s.patients[name] = &memPatient{patient: patient}
	return patient
}

func (s *MemoryStore) GetPatient(ctx context.Context, name string) (models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.patients[name]
	if !ok {
		return models.Patient{}, ErrPatientNotFound
	}
	return entry.patient, nil
}

func (s *MemoryStore) ListPatients(ctx context.Context) ([]models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patients := make([]models.Patient, 0, len(s.patients))
	for _, entry := range s.patients {
		patients = append(patients, entry.patient)
	}
	sort.Slice(patients, func(i, j int) bool { return patients[i].ID < patients[j].ID })
	return patients, nil
}

// DeletePatient removes the patient and every owned row in one step,
// matching the relational backend's cascade.
func (s *MemoryStore) DeletePatient(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patients, name)
	return nil
}

func (s *MemoryStore) SetModules(ctx context.Context, name string, modules []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.patients[name]
	if !ok {
		return ErrPatientNotFound
	}
	entry.patient.Modules = append([]string(nil), modules...)
	return nil
}

func (s *MemoryStore) EnsureDoctor(ctx context.Context, name string) (models.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doctor, ok := s.doctors[name]; ok {
		return doctor, nil
	}
	s.nextDoctorID++
	doctor := models.Doctor{ID: s.nextDoctorID, Name: name}
	s.doctors[name] = doctor
	return doctor, nil
}

func (s *MemoryStore) ListHistories(ctx context.Context, patientID uint) ([]models.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.byIDLocked(patientID)
	if entry == nil {
		return nil, nil
	}
	return append([]models.HistoryEntry(nil), entry.histories...), nil
}

func (s *MemoryStore) AppendHistory(ctx context.Context, patientID uint, content string) (models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.byIDLocked(patientID)
	if entry == nil {
		return models.HistoryEntry{}, ErrPatientNotFound
	}
	s.nextHistoryID++
	history := models.HistoryEntry{
		ID:        s.nextHistoryID,
		PatientID: patientID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	entry.histories = append(entry.histories, history)
	return history, nil
}

func (s *MemoryStore) UpdateHistory(ctx context.Context, id uint, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.patients {
		for i := range entry.histories {
			if entry.histories[i].ID == id {
				entry.histories[i].Content = content
				return nil
			}
		}
	}
	return nil
}

func (s *MemoryStore) DeleteHistory(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.patients {
		for i := range entry.histories {
			if entry.histories[i].ID == id {
				entry.histories = append(entry.histories[:i], entry.histories[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (s *MemoryStore) ListLogs(ctx context.Context, patientID uint) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.byIDLocked(patientID)
	if entry == nil {
		return nil, nil
	}
	return append([]models.LogEntry(nil), entry.logs...), nil
}

func (s *MemoryStore) AppendLog(ctx context.Context, patientID uint, content string) (models.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.byIDLocked(patientID)
	if entry == nil {
		return models.LogEntry{}, ErrPatientNotFound
	}
	s.nextLogID++
	log := models.LogEntry{
		ID:        s.nextLogID,
		PatientID: patientID,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	entry.logs = append(entry.logs, log)
	return log, nil
}

func (s *MemoryStore) UpdateLog(ctx context.Context, id uint, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.patients {
		for i := range entry.logs {
			if entry.logs[i].ID == id {
				entry.logs[i].Content = content
				return nil
			}
		}
	}
	return nil
}

func (s *MemoryStore) DeleteLog(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.patients {
		for i := range entry.logs {
			if entry.logs[i].ID == id {
				entry.logs = append(entry.logs[:i], entry.logs[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (s *MemoryStore) CreateHomecareRequest(ctx context.Context, patientID uint, reason string) (models.HomecareRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.byIDLocked(patientID)
	if entry == nil {
		return models.HomecareRequest{}, ErrPatientNotFound
	}
	s.nextRequestID++
	request := models.HomecareRequest{
		ID:          s.nextRequestID,
		PatientID:   patientID,
		Patient:     entry.patient.Name,
		Reason:      reason,
		Status:      models.HomecareStatusPending,
		RequestedAt: time.Now().UTC(),
	}
	entry.requests = append(entry.requests, request)
	return request, nil
}

func (s *MemoryStore) CurrentHomecareRequest(ctx context.Context, patientID uint) (*models.HomecareRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.byIDLocked(patientID)
	if entry == nil {
		return nil, nil
	}
	var current *models.HomecareRequest
	for i := range entry.requests {
		r := &entry.requests[i]
		if current == nil || r.RequestedAt.After(current.RequestedAt) ||
			(r.RequestedAt.Equal(current.RequestedAt) && r.ID > current.ID) {
			current = r
		}
	}
	if current == nil {
		return nil, nil
	}
	copied := *current
	return &copied, nil
}

func (s *MemoryStore) ListHomecareRequests(ctx context.Context) ([]models.HomecareRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var requests []models.HomecareRequest
	for _, entry := range s.patients {
		requests = append(requests, entry.requests...)
	}
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].RequestedAt.Equal(requests[j].RequestedAt) {
			return requests[i].RequestedAt.After(requests[j].RequestedAt)
		}
		return requests[i].ID > requests[j].ID
	})
	return requests, nil
}

func (s *MemoryStore) CreateEmergencyEvent(ctx context.Context, patientID uint, event string) (models.EmergencyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.byIDLocked(patientID)
	if entry == nil {
		return models.EmergencyEvent{}, ErrPatientNotFound
	}
	s.nextEventID++
	emergency := models.EmergencyEvent{
		ID:        s.nextEventID,
		PatientID: patientID,
		Patient:   entry.patient.Name,
		Event:     event,
		Status:    models.EmergencyStatusInProgress,
		Time:      time.Now().UTC(),
	}
	entry.emergencies = append(entry.emergencies, emergency)
	return emergency, nil
}

func (s *MemoryStore) ListEmergencyEvents(ctx context.Context) ([]models.EmergencyEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []models.EmergencyEvent
	for _, entry := range s.patients {
		events = append(events, entry.emergencies...)
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.After(events[j].Time)
		}
		return events[i].ID > events[j].ID
	})
	return events, nil
}

func (s *MemoryStore) byIDLocked(patientID uint) *memPatient {
	for _, entry := range s.patients {
		if entry.patient.ID == patientID {
			return entry
		}
	}
	return nil
}
