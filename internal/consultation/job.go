package consultation

import (
	"time"

	"gorm.io/datatypes"
)

type EmailJobStatus string

const (
	EmailJobQueued    EmailJobStatus = "queued"
	EmailJobRunning   EmailJobStatus = "running"
	EmailJobSucceeded EmailJobStatus = "succeeded"
	EmailJobFailed    EmailJobStatus = "failed"
)

// EmailJob is a queued prescription-email delivery. The row is created
// before the queue publish so the worker always finds its payload; the
// broker handles retry/DLQ routing.
type EmailJob struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	PrescriptionID string `gorm:"size:26;index;not null"`
	Recipient      string `gorm:"size:191;not null"`
	PatientName    string `gorm:"size:191"`
	DoctorName     string `gorm:"size:191"`

	// Medications already translated into the patient's locale.
	Medications datatypes.JSON `gorm:"not null"`

	Status EmailJobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EmailJob) TableName() string { return "email_jobs" }
