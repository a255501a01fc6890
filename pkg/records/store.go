package records

import (
	"context"
	"errors"

	"github.com/medicore/portal/pkg/common/models"
)

// ErrPatientNotFound is returned by lookups for names never referenced.
// Write paths that create patients implicitly never see it.
var ErrPatientNotFound = errors.New("patient not found")

// Store is the persistence surface for patient records. Two implementations
// exist: the mutex-guarded in-memory store and the PostgreSQL-backed
// Repository. Deleting a patient cascades to every owned row.
type Store interface {
	EnsurePatient(ctx context.Context, name string) (models.Patient, error)
	GetPatient(ctx context.Context, name string) (models.Patient, error)
	ListPatients(ctx context.Context) ([]models.Patient, error)
	DeletePatient(ctx context.Context, name string) error
	SetModules(ctx context.Context, name string, modules []string) error

	EnsureDoctor(ctx context.Context, name string) (models.Doctor, error)

	ListHistories(ctx context.Context, patientID uint) ([]models.HistoryEntry, error)
	AppendHistory(ctx context.Context, patientID uint, content string) (models.HistoryEntry, error)
	UpdateHistory(ctx context.Context, id uint, content string) error
	DeleteHistory(ctx context.Context, id uint) error

	ListLogs(ctx context.Context, patientID uint) ([]models.LogEntry, error)
	AppendLog(ctx context.Context, patientID uint, content string) (models.LogEntry, error)
	UpdateLog(ctx context.Context, id uint, content string) error
	DeleteLog(ctx context.Context, id uint) error

	CreateHomecareRequest(ctx context.Context, patientID uint, reason string) (models.HomecareRequest, error)
	CurrentHomecareRequest(ctx context.Context, patientID uint) (*models.HomecareRequest, error)
	ListHomecareRequests(ctx context.Context) ([]models.HomecareRequest, error)

	CreateEmergencyEvent(ctx context.Context, patientID uint, event string) (models.EmergencyEvent, error)
	ListEmergencyEvents(ctx context.Context) ([]models.EmergencyEvent, error)
}
