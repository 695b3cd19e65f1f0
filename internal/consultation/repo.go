package consultation

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Transaction runs fn against a repo bound to one database transaction.
func (r *Repo) Transaction(ctx context.Context, fn func(tx *Repo) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

func (r *Repo) CreateConsultation(ctx context.Context, c *Consultation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *Repo) GetConsultation(ctx context.Context, id string) (*Consultation, error) {
	var c Consultation
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConsultationsForUser returns a patient's or doctor's
// consultations, most recently updated first.
func (r *Repo) ListConsultationsForUser(ctx context.Context, userID, role string) ([]Consultation, error) {
	q := r.db.WithContext(ctx).Order("updated_at DESC")
	if role == "patient" {
		q = q.Where("patient_id = ?", userID)
	} else {
		q = q.Where("doctor_id = ?", userID)
	}

	var out []Consultation
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) CountConsultationsForUser(ctx context.Context, userID, role string) (int64, error) {
	q := r.db.WithContext(ctx).Model(&Consultation{})
	if role == "patient" {
		q = q.Where("patient_id = ?", userID)
	} else {
		q = q.Where("doctor_id = ?", userID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Repo) RecentConsultationsForUser(ctx context.Context, userID, role string, limit int) ([]Consultation, error) {
	q := r.db.WithContext(ctx).Order("updated_at DESC").Limit(limit)
	if role == "patient" {
		q = q.Where("patient_id = ?", userID)
	} else {
		q = q.Where("doctor_id = ?", userID)
	}
	var out []Consultation
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// AssignDoctor flips the consultation into the human phase. The three
// hand-off fields plus summary/urgency/title change in one UPDATE.
// AssignDoctor flips the consultation from AI triage to a human one.
// The WHERE clause doubles as a compare-and-swap: a concurrent hand-off
// that got there first leaves zero rows to update, and the caller's
// transaction aborts instead of appending a second intro.
func (r *Repo) AssignDoctor(ctx context.Context, id, doctorID, title, summary, urgency string) error {
	res := r.db.WithContext(ctx).Model(&Consultation{}).
		Where("id = ? AND consultation_type = ? AND ai_triage_status = ?", id, TypeAITriage, TriageInProgress).
		Updates(map[string]any{
			"doctor_id":         doctorID,
			"title":             title,
			"consultation_type": TypeHuman,
			"ai_triage_status":  TriageCompleted,
			"triage_summary":    summary,
			"urgency":           urgency,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTriageNotInProgress
	}
	return nil
}

func (r *Repo) UpdateConsultationStatus(ctx context.Context, id string, status Status) error {
	return r.db.WithContext(ctx).Model(&Consultation{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListMessages returns a consultation's messages in creation order.
func (r *Repo) ListMessages(ctx context.Context, consultationID string) ([]Message, error) {
	var out []Message
	if err := r.db.WithContext(ctx).
		Where("consultation_id = ?", consultationID).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) LatestMessage(ctx context.Context, consultationID string) (*Message, error) {
	var m Message
	err := r.db.WithContext(ctx).
		Where("consultation_id = ?", consultationID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *Repo) CountMessagesBySender(ctx context.Context, senderID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Message{}).
		Where("sender_id = ?", senderID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// UpsertRead records a read receipt; repeats are no-ops.
func (r *Repo) UpsertRead(ctx context.Context, messageID, userID string) error {
	return r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		FirstOrCreate(&MessageRead{MessageID: messageID, UserID: userID}).Error
}

func (r *Repo) ListReads(ctx context.Context, messageIDs []string) ([]MessageRead, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var out []MessageRead
	if err := r.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) CreatePrescription(ctx context.Context, p *Prescription) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repo) ListPrescriptions(ctx context.Context, ids []string) ([]Prescription, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []Prescription
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Email job CRUD
func (r *Repo) CreateEmailJob(ctx context.Context, job *EmailJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetEmailJobByID(ctx context.Context, id string) (*EmailJob, error) {
	var j EmailJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// ClaimEmailJob moves a job into running so exactly one worker sends it.
// Queued and failed jobs are claimable (failed covers a broker retry);
// running and succeeded jobs are not, so a redelivery of a job that is
// in flight or already sent reports claimed=false and gets acked
// without a second email.
func (r *Repo) ClaimEmailJob(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&EmailJob{}).
		Where("id = ? AND status IN ?", id, []EmailJobStatus{EmailJobQueued, EmailJobFailed}).
		Update("status", EmailJobRunning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repo) MarkEmailJobSucceeded(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&EmailJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": EmailJobSucceeded,
			"error":  nil,
		}).Error
}

func (r *Repo) MarkEmailJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&EmailJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": EmailJobFailed,
			"error":  errMsg,
		}).Error
}
