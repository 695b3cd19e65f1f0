package consultation

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

type Type string

const (
	TypeAITriage Type = "AI_TRIAGE"
	TypeHuman    Type = "HUMAN"
)

type TriageStatus string

const (
	TriageInProgress TriageStatus = "IN_PROGRESS"
	TriageCompleted  TriageStatus = "COMPLETED"
)

type MessageType string

const (
	MessageNormal       MessageType = "NORMAL"
	MessageSystem       MessageType = "SYSTEM"
	MessageAITriage     MessageType = "AI_TRIAGE"
	MessageDoctorIntro  MessageType = "DOCTOR_INTRO"
	MessagePrescription MessageType = "PRESCRIPTION"
)

// Consultation is the aggregate the triage hand-off revolves around.
// DoctorID flips from nil to a doctor exactly once, together with
// ConsultationType AI_TRIAGE->HUMAN and AITriageStatus
// IN_PROGRESS->COMPLETED; the three change as one transactional unit.
type Consultation struct {
	ID               string       `gorm:"primaryKey;size:26" json:"id"`
	PatientID        string       `gorm:"size:64;index;not null" json:"patient_id"`
	DoctorID         *string      `gorm:"size:64;index" json:"doctor_id"`
	Title            string       `gorm:"size:191;not null" json:"title"`
	Status           Status       `gorm:"type:varchar(16);index;not null" json:"status"`
	ConsultationType Type         `gorm:"type:varchar(16);not null" json:"consultation_type"`
	AITriageStatus   TriageStatus `gorm:"type:varchar(16)" json:"ai_triage_status,omitempty"`
	TriageSummary    string       `gorm:"type:text" json:"triage_summary,omitempty"`
	Urgency          string       `gorm:"type:varchar(8)" json:"urgency,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (Consultation) TableName() string { return "consultations" }

// Message content is always the original-locale text; translations are
// cache artifacts recomputed on read, never written back here.
type Message struct {
	ID             string      `gorm:"primaryKey;size:26" json:"id"`
	ConsultationID string      `gorm:"size:26;index;not null" json:"consultation_id"`
	SenderID       string      `gorm:"size:64;index;not null" json:"sender_id"`
	Content        string      `gorm:"type:text;not null" json:"content"`
	MessageType    MessageType `gorm:"type:varchar(16);not null" json:"message_type"`
	PrescriptionID *string     `gorm:"size:26;index" json:"prescription_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (Message) TableName() string { return "messages" }

type MessageRead struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID string    `gorm:"size:26;not null;uniqueIndex:uniq_message_read,priority:1" json:"message_id"`
	UserID    string    `gorm:"size:64;not null;uniqueIndex:uniq_message_read,priority:2" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (MessageRead) TableName() string { return "message_reads" }

// Medication is one line of a prescription.
type Medication struct {
	DrugName  string `json:"drug_name"`
	Amount    string `json:"amount"`
	Frequency string `json:"frequency"`
}

type Prescription struct {
	ID             string         `gorm:"primaryKey;size:26" json:"id"`
	ConsultationID string         `gorm:"size:26;index;not null" json:"consultation_id"`
	DoctorID       string         `gorm:"size:64;not null" json:"doctor_id"`
	PatientID      string         `gorm:"size:64;not null" json:"patient_id"`
	Medications    datatypes.JSON `gorm:"not null" json:"medications"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (Prescription) TableName() string { return "prescriptions" }
