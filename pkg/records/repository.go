package records

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/medicore/portal/pkg/common/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Repository is the PostgreSQL-backed Store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type patientModel struct {
	ID        uint           `gorm:"primaryKey;column:id"`
	Name      string         `gorm:"column:name;uniqueIndex"`
	BloodType string         `gorm:"column:blood_type"`
	Age       int            `gorm:"column:age"`
	Height    int            `gorm:"column:height"`
	Weight    int            `gorm:"column:weight"`
	Modules   datatypes.JSON `gorm:"column:modules"`
	CreatedAt time.Time      `gorm:"column:created_at"`

	Histories   []historyModel   `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE"`
	Logs        []logModel       `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE"`
	Requests    []homecareModel  `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE"`
	Emergencies []emergencyModel `gorm:"foreignKey:PatientID;constraint:OnDelete:CASCADE"`
}

func (patientModel) TableName() string { return "patients" }

type doctorModel struct {
	ID   uint   `gorm:"primaryKey;column:id"`
	Name string `gorm:"column:name;uniqueIndex"`
}

func (doctorModel) TableName() string { return "doctors" }

type historyModel struct {
	ID        uint      `gorm:"primaryKey;column:id"`
	Content   string    `gorm:"column:content;type:text"`
	CreatedAt time.Time `gorm:"column:created_at"`
	PatientID uint      `gorm:"column:patient_id;index"`
}

func (historyModel) TableName() string { return "histories" }

type logModel struct {
	ID        uint      `gorm:"primaryKey;column:id"`
	Content   string    `gorm:"column:content;type:text"`
	Timestamp time.Time `gorm:"column:timestamp"`
	PatientID uint      `gorm:"column:patient_id;index"`
}

func (logModel) TableName() string { return "logs" }

type homecareModel struct {
	ID          uint      `gorm:"primaryKey;column:id"`
	Reason      string    `gorm:"column:reason;type:text"`
	Status      string    `gorm:"column:status"`
	RequestedAt time.Time `gorm:"column:requested_at"`
	PatientID   uint      `gorm:"column:patient_id;index"`
}

func (homecareModel) TableName() string { return "homecare_requests" }

type emergencyModel struct {
	ID        uint      `gorm:"primaryKey;column:id"`
	Event     string    `gorm:"column:event;type:text"`
	Status    string    `gorm:"column:status"`
	Time      time.Time `gorm:"column:time"`
	PatientID uint      `gorm:"column:patient_id;index"`
}

func (emergencyModel) TableName() string { return "emergency_events" }

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&patientModel{},
		&doctorModel{},
		&historyModel{},
		&logModel{},
		&homecareModel{},
		&emergencyModel{},
	)
}

// EnsurePatient looks the name up and creates the row when absent. A lost
// race against a concurrent insert falls back to the winning row, so the
// patient is only ever created once per name.
func (r *Repository) EnsurePatient(ctx context.Context, name string) (models.Patient, error) {
	var row patientModel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if err == nil {
		return buildPatient(&row), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Patient{}, err
	}

	row = patientModel{Name: name, CreatedAt: time.Now().UTC()}
	if createErr := r.db.WithContext(ctx).Create(&row).Error; createErr != nil {
		if err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
			return models.Patient{}, createErr
		}
	}
	return buildPatient(&row), nil
}

func (r *Repository) GetPatient(ctx context.Context, name string) (models.Patient, error) {
	var row patientModel
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Patient{}, ErrPatientNotFound
		}
		return models.Patient{}, err
	}
	return buildPatient(&row), nil
}

func (r *Repository) ListPatients(ctx context.Context) ([]models.Patient, error) {
	var rows []patientModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	patients := make([]models.Patient, 0, len(rows))
	for i := range rows {
		patients = append(patients, buildPatient(&rows[i]))
	}
	return patients, nil
}

// DeletePatient relies on the ON DELETE CASCADE constraints to drop the
// owned histories, logs, requests, and emergency events.
func (r *Repository) DeletePatient(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Where("name = ?", name).Delete(&patientModel{}).Error
}

func (r *Repository) SetModules(ctx context.Context, name string, modules []string) error {
	payload, err := json.Marshal(modules)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&patientModel{}).Where("name = ?", name).
		Update("modules", datatypes.JSON(payload))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *Repository) EnsureDoctor(ctx context.Context, name string) (models.Doctor, error) {
	var row doctorModel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if err == nil {
		return models.Doctor{ID: row.ID, Name: row.Name}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Doctor{}, err
	}
	row = doctorModel{Name: name}
	if createErr := r.db.WithContext(ctx).Create(&row).Error; createErr != nil {
		if err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error; err != nil {
			return models.Doctor{}, createErr
		}
	}
	return models.Doctor{ID: row.ID, Name: row.Name}, nil
}

func (r *Repository) ListHistories(ctx context.Context, patientID uint) ([]models.HistoryEntry, error) {
	var rows []historyModel
	if err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).
		Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]models.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.HistoryEntry{
			ID:        row.ID,
			PatientID: row.PatientID,
			Content:   row.Content,
			CreatedAt: row.CreatedAt,
		})
	}
	return entries, nil
}

func (r *Repository) AppendHistory(ctx context.Context, patientID uint, content string) (models.HistoryEntry, error) {
	row := historyModel{
		Content:   content,
		CreatedAt: time.Now().UTC(),
		PatientID: patientID,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.HistoryEntry{}, err
	}
	return models.HistoryEntry{
		ID:        row.ID,
		PatientID: row.PatientID,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (r *Repository) UpdateHistory(ctx context.Context, id uint, content string) error {
	return r.db.WithContext(ctx).Model(&historyModel{}).Where("id = ?", id).
		Update("content", content).Error
}

func (r *Repository) DeleteHistory(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&historyModel{}).Error
}

func (r *Repository) ListLogs(ctx context.Context, patientID uint) ([]models.LogEntry, error) {
	var rows []logModel
	if err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).
		Order("timestamp ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]models.LogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.LogEntry{
			ID:        row.ID,
			PatientID: row.PatientID,
			Content:   row.Content,
			Timestamp: row.Timestamp,
		})
	}
	return entries, nil
}

func (r *Repository) AppendLog(ctx context.Context, patientID uint, content string) (models.LogEntry, error) {
	row := logModel{
		Content:   content,
		Timestamp: time.Now().UTC(),
		PatientID: patientID,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.LogEntry{}, err
	}
	return models.LogEntry{
		ID:        row.ID,
		PatientID: row.PatientID,
		Content:   row.Content,
		Timestamp: row.Timestamp,
	}, nil
}

func (r *Repository) UpdateLog(ctx context.Context, id uint, content string) error {
	return r.db.WithContext(ctx).Model(&logModel{}).Where("id = ?", id).
		Update("content", content).Error
}

func (r *Repository) DeleteLog(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&logModel{}).Error
}

// CreateHomecareRequest always inserts a new pending row; a patient may
// hold several pending requests at once.
func (r *Repository) CreateHomecareRequest(ctx context.Context, patientID uint, reason string) (models.HomecareRequest, error) {
	var patient patientModel
	if err := r.db.WithContext(ctx).First(&patient, "id = ?", patientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.HomecareRequest{}, ErrPatientNotFound
		}
		return models.HomecareRequest{}, err
	}
	row := homecareModel{
		Reason:      reason,
		Status:      models.HomecareStatusPending,
		RequestedAt: time.Now().UTC(),
		PatientID:   patientID,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.HomecareRequest{}, err
	}
	return buildHomecare(&row, patient.Name), nil
}

func (r *Repository) CurrentHomecareRequest(ctx context.Context, patientID uint) (*models.HomecareRequest, error) {
	var row homecareModel
	err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).
		Order("requested_at DESC, id DESC").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var patient patientModel
	if err := r.db.WithContext(ctx).First(&patient, "id = ?", patientID).Error; err != nil {
		return nil, err
	}
	request := buildHomecare(&row, patient.Name)
	return &request, nil
}

func (r *Repository) ListHomecareRequests(ctx context.Context) ([]models.HomecareRequest, error) {
	var rows []homecareModel
	if err := r.db.WithContext(ctx).Order("requested_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	names, err := r.patientNames(ctx, homecarePatientIDs(rows))
	if err != nil {
		return nil, err
	}
	requests := make([]models.HomecareRequest, 0, len(rows))
	for i := range rows {
		requests = append(requests, buildHomecare(&rows[i], names[rows[i].PatientID]))
	}
	return requests, nil
}

func (r *Repository) CreateEmergencyEvent(ctx context.Context, patientID uint, event string) (models.EmergencyEvent, error) {
	var patient patientModel
	if err := r.db.WithContext(ctx).First(&patient, "id = ?", patientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.EmergencyEvent{}, ErrPatientNotFound
		}
		return models.EmergencyEvent{}, err
	}
	row := emergencyModel{
		Event:     event,
		Status:    models.EmergencyStatusInProgress,
		Time:      time.Now().UTC(),
		PatientID: patientID,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.EmergencyEvent{}, err
	}
	return buildEmergency(&row, patient.Name), nil
}

func (r *Repository) ListEmergencyEvents(ctx context.Context) ([]models.EmergencyEvent, error) {
	var rows []emergencyModel
	if err := r.db.WithContext(ctx).Order("time DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PatientID)
	}
	names, err := r.patientNames(ctx, ids)
	if err != nil {
		return nil, err
	}
	events := make([]models.EmergencyEvent, 0, len(rows))
	for i := range rows {
		events = append(events, buildEmergency(&rows[i], names[rows[i].PatientID]))
	}
	return events, nil
}

func (r *Repository) patientNames(ctx context.Context, ids []uint) (map[uint]string, error) {
	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var rows []patientModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

func homecarePatientIDs(rows []homecareModel) []uint {
	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PatientID)
	}
	return ids
}

func buildPatient(row *patientModel) models.Patient {
	patient := models.Patient{
		ID:        row.ID,
		Name:      row.Name,
		BloodType: row.BloodType,
		Age:       row.Age,
		Height:    row.Height,
		Weight:    row.Weight,
		CreatedAt: row.CreatedAt,
	}
	if len(row.Modules) > 0 {
		var modules []string
		_ = json.Unmarshal(row.Modules, &modules)
		patient.Modules = modules
	}
	return patient
}

func buildHomecare(row *homecareModel, patientName string) models.HomecareRequest {
	return models.HomecareRequest{
		ID:          row.ID,
		PatientID:   row.PatientID,
		Patient:     patientName,
		Reason:      row.Reason,
		Status:      row.Status,
		RequestedAt: row.RequestedAt,
	}
}

func buildEmergency(row *emergencyModel, patientName string) models.EmergencyEvent {
	return models.EmergencyEvent{
		ID:        row.ID,
		PatientID: row.PatientID,
		Patient:   patientName,
		Event:     row.Event,
		Status:    row.Status,
		Time:      row.Time,
	}
}
