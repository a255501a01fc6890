package models

import "time"

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleManager Role = "manager"
)

// Identity is the session-carried principal. It is derived from the
// credential table at login and lives only for the session lifetime.
type Identity struct {
	Role Role   `json:"role"`
	Name string `json:"name"`
}

type Patient struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	BloodType string    `json:"blood_type,omitempty"`
	Age       int       `json:"age,omitempty"`
	Height    int       `json:"height,omitempty"`
	Weight    int       `json:"weight,omitempty"`
	Modules   []string  `json:"modules,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Doctor struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type HistoryEntry struct {
	ID        uint      `json:"id"`
	PatientID uint      `json:"patient_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type LogEntry struct {
	ID        uint      `json:"id"`
	PatientID uint      `json:"patient_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

const HomecareStatusPending = "pending"

type HomecareRequest struct {
	ID          uint      `json:"id"`
	PatientID   uint      `json:"patient_id"`
	Patient     string    `json:"patient"`
	Reason      string    `json:"reason"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requested_at"`
}

const EmergencyStatusInProgress = "in progress"

type EmergencyEvent struct {
	ID        uint      `json:"id"`
	PatientID uint      `json:"patient_id"`
	Patient   string    `json:"patient"`
	Event     string    `json:"event"`
	Status    string    `json:"status"`
	Time      time.Time `json:"time"`
}

// PatientSnapshot pairs the heuristically parsed latest metrics with the
// raw last log line, for dashboards and reports.
type PatientSnapshot struct {
	Metrics map[string]interface{} `json:"metrics"`
	LastLog string                 `json:"last_log,omitempty"`
}

type ReportEntry struct {
	Modules []string       `json:"modules"`
	Logs    []LogEntry     `json:"logs"`
	History []HistoryEntry `json:"history"`
}

// Event is the envelope published to the alert bus.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
