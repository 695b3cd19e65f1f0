package consultation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/common"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/identity"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/translation"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/triage"
)

var (
	// ErrTriageNotInProgress means complete-triage was called on a
	// consultation that is not in the AI_TRIAGE/IN_PROGRESS phase.
	ErrTriageNotInProgress = errors.New("consultation is not in ai triage")

	// ErrNoDoctorAssigned means a prescription was attempted before the
	// hand-off.
	ErrNoDoctorAssigned = errors.New("no doctor assigned to this consultation")

	// ErrNoValidMedications means every submitted medication was missing
	// a required field.
	ErrNoValidMedications = errors.New("no valid medications provided")
)

const (
	triageTitle = "AI Health Assessment"

	triageGreeting = "Hello! I'm your AI health assistant. I'm here to understand your symptoms and connect you with the right doctor. What brings you here today?"
)

func doctorIntroContent(doctorName string) string {
	return fmt.Sprintf("Hello! I'm Dr. %s. I've reviewed your symptoms and I'm here to help. How are you feeling right now?", doctorName)
}

// EmailQueue hands a persisted email job to the delivery worker.
type EmailQueue interface {
	PublishEmailJob(ctx context.Context, jobID string) error
}

type Service struct {
	repo       *Repo
	translator *translation.Service
	dir        identity.Directory
	selector   *triage.Selector
	typing     TypingStore
	mailq      EmailQueue
}

func NewService(repo *Repo, translator *translation.Service, dir identity.Directory, selector *triage.Selector, typing TypingStore, mailq EmailQueue) *Service {
	return &Service{
		repo:       repo,
		translator: translator,
		dir:        dir,
		selector:   selector,
		typing:     typing,
		mailq:      mailq,
	}
}

// profileOf is a best-effort identity lookup: failures are logged and
// degrade to a placeholder profile, never propagated.
func (s *Service) profileOf(ctx context.Context, userID, fallbackName string) identity.Profile {
	p, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		log.Printf("identity lookup failed user=%s err=%v", userID, err)
		return identity.Normalize(identity.Profile{ID: userID, Name: fallbackName})
	}
	if p.Name == "" {
		p.Name = fallbackName
	}
	return p
}

// ConsultationView is a consultation enriched with display names for
// the UI.
type ConsultationView struct {
	Consultation
	PatientName          string   `json:"patient_name"`
	DoctorName           string   `json:"doctor_name"`
	DoctorSpecialization string   `json:"doctor_specialization"`
	LastMessage          *Message `json:"last_message,omitempty"`
}

// PrescriptionData is the medication payload attached to a
// PRESCRIPTION message.
type PrescriptionData struct {
	Medications []Medication `json:"medications"`
}

// MessageView is a message as one specific reader sees it: Content is
// in the reader's locale, OriginalContent in the sender's.
type MessageView struct {
	ID              string            `json:"id"`
	ConsultationID  string            `json:"consultation_id"`
	SenderID        string            `json:"sender_id"`
	Content         string            `json:"content"`
	OriginalContent string            `json:"original_content"`
	MessageType     MessageType       `json:"message_type"`
	SenderName      string            `json:"sender_name"`
	SenderLanguage  string            `json:"sender_language"`
	ReadBy          []string          `json:"read_by"`
	Prescription    *PrescriptionData `json:"prescription_data,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// MessageList is the reader-scoped view of a consultation's chat.
type MessageList struct {
	Messages     []MessageView `json:"messages"`
	TypingUsers  []string      `json:"typing_users"`
	UserLanguage string        `json:"user_language"`
}

// TriageResult is what the complete-triage transition emits.
type TriageResult struct {
	Consultation ConsultationView `json:"consultation"`
	Doctor       identity.Profile `json:"doctor"`
	IntroMessage MessageView      `json:"intro_message"`
}

// StartAITriage opens a consultation in the AI triage phase and seeds
// it with the assistant greeting.
func (s *Service) StartAITriage(ctx context.Context, patientID string) (*Consultation, error) {
	cid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	mid, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	c := &Consultation{
		ID:               cid,
		PatientID:        patientID,
		Title:            triageTitle,
		Status:           StatusActive,
		ConsultationType: TypeAITriage,
		AITriageStatus:   TriageInProgress,
	}

	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		if err := tx.CreateConsultation(ctx, c); err != nil {
			return err
		}
		return tx.InsertMessage(ctx, &Message{
			ID:             mid,
			ConsultationID: cid,
			SenderID:       patientID,
			Content:        triageGreeting,
			MessageType:    MessageAITriage,
		})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RecordTriageExchange persists one patient/assistant turn of the
// triage conversation. Both rows carry the patient as sender; the
// assistant has no identity of its own.
func (s *Service) RecordTriageExchange(ctx context.Context, consultationID, patientID, userMessage, assistantReply string) error {
	c, err := s.repo.GetConsultation(ctx, consultationID)
	if err != nil {
		return err
	}
	if c.ConsultationType != TypeAITriage || c.AITriageStatus != TriageInProgress {
		return ErrTriageNotInProgress
	}

	userID, err := common.NewULID()
	if err != nil {
		return err
	}
	replyID, err := common.NewULID()
	if err != nil {
		return err
	}

	return s.repo.Transaction(ctx, func(tx *Repo) error {
		if err := tx.InsertMessage(ctx, &Message{
			ID:             userID,
			ConsultationID: consultationID,
			SenderID:       patientID,
			Content:        userMessage,
			MessageType:    MessageAITriage,
		}); err != nil {
			return err
		}
		return tx.InsertMessage(ctx, &Message{
			ID:             replyID,
			ConsultationID: consultationID,
			SenderID:       patientID,
			Content:        assistantReply,
			MessageType:    MessageAITriage,
		})
	})
}

func deriveTitle(symptoms string) string {
	// Truncate on rune boundaries so a multi-byte symptom never
	// produces an invalid UTF-8 title.
	head := []rune(symptoms)
	if len(head) > 50 {
		head = head[:50]
	}
	return fmt.Sprintf("Consultation - %s...", string(head))
}

// CompleteTriage is the hand-off transition: extract criteria from the
// summary, pick a doctor, then atomically flip the consultation into
// the human phase and append the SYSTEM summary and DOCTOR_INTRO
// messages. Criteria/selection failures abort before any write.
func (s *Service) CompleteTriage(ctx context.Context, consultationID, aiSummary string) (*TriageResult, error) {
	c, err := s.repo.GetConsultation(ctx, consultationID)
	if err != nil {
		return nil, err
	}
	if c.ConsultationType != TypeAITriage || c.AITriageStatus != TriageInProgress {
		return nil, ErrTriageNotInProgress
	}

	patient := s.profileOf(ctx, c.PatientID, "Patient")

	criteria := triage.ExtractSymptoms(aiSummary)

	doctor, err := s.selector.SelectDoctor(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if doctor.Name == "" {
		doctor.Name = "Doctor"
	}

	title := deriveTitle(criteria.Symptoms)
	urgency := strings.ToUpper(string(criteria.Urgency))
	introContent := doctorIntroContent(doctor.Name)

	sysID, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	introID, err := common.NewULID()
	if err != nil {
		return nil, err
	}

	introMsg := &Message{
		ID:             introID,
		ConsultationID: consultationID,
		SenderID:       doctor.ID,
		Content:        introContent,
		MessageType:    MessageDoctorIntro,
	}

	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		if err := tx.AssignDoctor(ctx, consultationID, doctor.ID, title, aiSummary, urgency); err != nil {
			return err
		}
		if err := tx.InsertMessage(ctx, &Message{
			ID:             sysID,
			ConsultationID: consultationID,
			SenderID:       c.PatientID,
			Content:        "AI Triage Summary: " + aiSummary,
			MessageType:    MessageSystem,
		}); err != nil {
			return err
		}
		return tx.InsertMessage(ctx, introMsg)
	})
	if err != nil {
		return nil, err
	}

	// Translate the intro for the patient. The translated text is a
	// cache artifact: the stored message keeps the doctor-locale
	// content, and later reads recompute through the same cache.
	introForPatient := introContent
	if doctor.Locale != patient.Locale {
		translated, terr := s.translator.TranslateMessage(ctx, introID, introContent, doctor.Locale, patient.Locale)
		if terr != nil {
			log.Printf("intro translation failed consultation=%s err=%v", consultationID, terr)
		} else {
			introForPatient = translated
		}
	}

	updated, err := s.repo.GetConsultation(ctx, consultationID)
	if err != nil {
		return nil, err
	}

	return &TriageResult{
		Consultation: ConsultationView{
			Consultation:         *updated,
			PatientName:          patient.Name,
			DoctorName:           doctor.Name,
			DoctorSpecialization: doctor.Specialization,
		},
		Doctor: doctor,
		IntroMessage: MessageView{
			ID:              introMsg.ID,
			ConsultationID:  consultationID,
			SenderID:        doctor.ID,
			Content:         introForPatient,
			OriginalContent: introContent,
			MessageType:     MessageDoctorIntro,
			SenderName:      doctor.Name,
			SenderLanguage:  doctor.Locale,
			CreatedAt:       introMsg.CreatedAt,
		},
	}, nil
}

// Create opens a human consultation directly, assigning the first
// available doctor.
func (s *Service) Create(ctx context.Context, patientID, title string) (*ConsultationView, error) {
	doctors, err := s.dir.ListUsersByRole(ctx, identity.RoleDoctor)
	if err != nil {
		return nil, err
	}
	if len(doctors) == 0 {
		return nil, triage.ErrNoDoctorsAvailable
	}
	doctor := doctors[0]

	cid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	c := &Consultation{
		ID:               cid,
		PatientID:        patientID,
		DoctorID:         &doctor.ID,
		Title:            title,
		Status:           StatusActive,
		ConsultationType: TypeHuman,
	}
	if err := s.repo.CreateConsultation(ctx, c); err != nil {
		return nil, err
	}

	name := doctor.Name
	if name == "" {
		name = "Doctor"
	}
	return &ConsultationView{
		Consultation:         *c,
		PatientName:          s.profileOf(ctx, patientID, "Patient").Name,
		DoctorName:           name,
		DoctorSpecialization: doctor.Specialization,
	}, nil
}

func (s *Service) enrich(ctx context.Context, c Consultation) ConsultationView {
	view := ConsultationView{
		Consultation: c,
		PatientName:  "Unknown Patient",
		DoctorName:   "Unknown Doctor",
	}
	if c.PatientID != "" {
		view.PatientName = s.profileOf(ctx, c.PatientID, "Unknown Patient").Name
	}
	if c.DoctorID != nil {
		doc := s.profileOf(ctx, *c.DoctorID, "Unknown Doctor")
		view.DoctorName = doc.Name
		view.DoctorSpecialization = doc.Specialization
	}
	return view
}

// ListForUser returns a user's consultations with display names and
// the latest message attached.
func (s *Service) ListForUser(ctx context.Context, userID, role string) ([]ConsultationView, error) {
	cs, err := s.repo.ListConsultationsForUser(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	out := make([]ConsultationView, 0, len(cs))
	for _, c := range cs {
		view := s.enrich(ctx, c)
		last, err := s.repo.LatestMessage(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		view.LastMessage = last
		out = append(out, view)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*ConsultationView, error) {
	c, err := s.repo.GetConsultation(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.enrich(ctx, *c)
	return &view, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) error {
	if _, err := s.repo.GetConsultation(ctx, id); err != nil {
		return err
	}
	return s.repo.UpdateConsultationStatus(ctx, id, status)
}

// SendMessage appends a chat message in the sender's locale and marks
// it read by the sender. Translation happens when readers fetch it.
func (s *Service) SendMessage(ctx context.Context, consultationID, senderID, content string) (*MessageView, error) {
	if _, err := s.repo.GetConsultation(ctx, consultationID); err != nil {
		return nil, err
	}

	mid, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	m := &Message{
		ID:             mid,
		ConsultationID: consultationID,
		SenderID:       senderID,
		Content:        content,
		MessageType:    MessageNormal,
	}

	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		if err := tx.InsertMessage(ctx, m); err != nil {
			return err
		}
		return tx.UpsertRead(ctx, mid, senderID)
	})
	if err != nil {
		return nil, err
	}

	sender := s.profileOf(ctx, senderID, "Unknown User")
	return &MessageView{
		ID:              m.ID,
		ConsultationID:  consultationID,
		SenderID:        senderID,
		Content:         content,
		OriginalContent: content,
		MessageType:     MessageNormal,
		SenderName:      sender.Name,
		SenderLanguage:  sender.Locale,
		ReadBy:          []string{senderID},
		CreatedAt:       m.CreatedAt,
	}, nil
}

// ListMessages returns the chat as readerID sees it: message content
// translated into the reader's locale (SYSTEM and DOCTOR_INTRO entries
// excepted), read receipts, prescription payloads and the names of
// users still typing.
func (s *Service) ListMessages(ctx context.Context, consultationID, readerID string) (*MessageList, error) {
	reader := s.profileOf(ctx, readerID, "Unknown User")

	msgs, err := s.repo.ListMessages(ctx, consultationID)
	if err != nil {
		return nil, err
	}

	msgIDs := make([]string, 0, len(msgs))
	prescriptionIDs := make([]string, 0)
	senderProfiles := make(map[string]identity.Profile)
	for _, m := range msgs {
		msgIDs = append(msgIDs, m.ID)
		if m.PrescriptionID != nil {
			prescriptionIDs = append(prescriptionIDs, *m.PrescriptionID)
		}
		if _, ok := senderProfiles[m.SenderID]; !ok {
			senderProfiles[m.SenderID] = s.profileOf(ctx, m.SenderID, "Unknown User")
		}
	}

	reads, err := s.repo.ListReads(ctx, msgIDs)
	if err != nil {
		return nil, err
	}
	readBy := make(map[string][]string, len(msgIDs))
	for _, r := range reads {
		readBy[r.MessageID] = append(readBy[r.MessageID], r.UserID)
	}

	prescriptions, err := s.repo.ListPrescriptions(ctx, prescriptionIDs)
	if err != nil {
		return nil, err
	}
	prescByID := make(map[string]*PrescriptionData, len(prescriptions))
	for i := range prescriptions {
		var meds []Medication
		if err := json.Unmarshal(prescriptions[i].Medications, &meds); err != nil {
			log.Printf("bad medications payload prescription=%s err=%v", prescriptions[i].ID, err)
			continue
		}
		prescByID[prescriptions[i].ID] = &PrescriptionData{Medications: meds}
	}

	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		sender := senderProfiles[m.SenderID]

		content := m.Content
		if m.MessageType != MessageSystem && m.MessageType != MessageDoctorIntro {
			content, err = s.translator.TranslateMessage(ctx, m.ID, m.Content, sender.Locale, reader.Locale)
			if err != nil {
				return nil, err
			}
		}

		view := MessageView{
			ID:              m.ID,
			ConsultationID:  m.ConsultationID,
			SenderID:        m.SenderID,
			Content:         content,
			OriginalContent: m.Content,
			MessageType:     m.MessageType,
			SenderName:      sender.Name,
			SenderLanguage:  sender.Locale,
			ReadBy:          readBy[m.ID],
			CreatedAt:       m.CreatedAt,
		}
		if m.PrescriptionID != nil {
			view.Prescription = prescByID[*m.PrescriptionID]
		}
		out = append(out, view)
	}

	var typingNames []string
	typers, err := s.typing.ActiveTypers(ctx, consultationID)
	if err != nil {
		log.Printf("typing lookup failed consultation=%s err=%v", consultationID, err)
	} else {
		for _, uid := range typers {
			if uid == readerID {
				continue
			}
			typingNames = append(typingNames, s.profileOf(ctx, uid, "Unknown User").Name)
		}
	}

	return &MessageList{
		Messages:     out,
		TypingUsers:  typingNames,
		UserLanguage: reader.Locale,
	}, nil
}

// SetTyping records or clears a typing indicator.
func (s *Service) SetTyping(ctx context.Context, consultationID, userID string, active bool) error {
	if active {
		return s.typing.SetTyping(ctx, consultationID, userID)
	}
	return s.typing.ClearTyping(ctx, consultationID, userID)
}

func (s *Service) MarkRead(ctx context.Context, messageID, userID string) error {
	return s.repo.UpsertRead(ctx, messageID, userID)
}

// Stats summarizes a user's activity.
type Stats struct {
	Consultations       int64          `json:"consultations"`
	Messages            int64          `json:"messages"`
	RecentConsultations []Consultation `json:"recent_consultations"`
}

func (s *Service) StatsForUser(ctx context.Context, userID, role string) (*Stats, error) {
	consultations, err := s.repo.CountConsultationsForUser(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.CountMessagesBySender(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.repo.RecentConsultationsForUser(ctx, userID, role, 3)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Consultations:       consultations,
		Messages:            messages,
		RecentConsultations: recent,
	}, nil
}

func validMedications(meds []Medication) []Medication {
	out := make([]Medication, 0, len(meds))
	for _, m := range meds {
		if strings.TrimSpace(m.DrugName) == "" ||
			strings.TrimSpace(m.Amount) == "" ||
			strings.TrimSpace(m.Frequency) == "" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// CreatePrescription persists a prescription with its PRESCRIPTION
// message and queues the patient email. Email delivery is asynchronous:
// the job row plus a broker publish, never an inline send.
func (s *Service) CreatePrescription(ctx context.Context, consultationID string, meds []Medication) (*Prescription, *MessageView, error) {
	c, err := s.repo.GetConsultation(ctx, consultationID)
	if err != nil {
		return nil, nil, err
	}
	if c.DoctorID == nil {
		return nil, nil, ErrNoDoctorAssigned
	}
	doctorID := *c.DoctorID

	valid := validMedications(meds)
	if len(valid) == 0 {
		return nil, nil, ErrNoValidMedications
	}

	doctor := s.profileOf(ctx, doctorID, "Doctor")
	patient := s.profileOf(ctx, c.PatientID, "Patient")

	medsJSON, err := json.Marshal(valid)
	if err != nil {
		return nil, nil, err
	}

	pid, err := common.NewULID()
	if err != nil {
		return nil, nil, err
	}
	mid, err := common.NewULID()
	if err != nil {
		return nil, nil, err
	}

	plural := ""
	if len(valid) > 1 {
		plural = "s"
	}
	content := fmt.Sprintf("Prescription sent with %d medication%s", len(valid), plural)

	p := &Prescription{
		ID:             pid,
		ConsultationID: consultationID,
		DoctorID:       doctorID,
		PatientID:      c.PatientID,
		Medications:    medsJSON,
	}
	m := &Message{
		ID:             mid,
		ConsultationID: consultationID,
		SenderID:       doctorID,
		Content:        content,
		MessageType:    MessagePrescription,
		PrescriptionID: &pid,
	}

	err = s.repo.Transaction(ctx, func(tx *Repo) error {
		if err := tx.CreatePrescription(ctx, p); err != nil {
			return err
		}
		return tx.InsertMessage(ctx, m)
	})
	if err != nil {
		return nil, nil, err
	}

	s.queuePrescriptionEmail(ctx, p, valid, doctor, patient)

	return p, &MessageView{
		ID:              m.ID,
		ConsultationID:  consultationID,
		SenderID:        doctorID,
		Content:         content,
		OriginalContent: content,
		MessageType:     MessagePrescription,
		SenderName:      doctor.Name,
		SenderLanguage:  doctor.Locale,
		Prescription:    &PrescriptionData{Medications: valid},
		CreatedAt:       m.CreatedAt,
	}, nil
}

// queuePrescriptionEmail translates the medication fields into the
// patient's locale and enqueues the delivery job. Failures are logged;
// the prescription itself already committed and must not be rolled back
// over mail trouble.
func (s *Service) queuePrescriptionEmail(ctx context.Context, p *Prescription, meds []Medication, doctor, patient identity.Profile) {
	if patient.Email == "" {
		log.Printf("no patient email, prescription email skipped prescription=%s", p.ID)
		return
	}
	if s.mailq == nil {
		return
	}

	translated := meds
	if doctor.Locale != patient.Locale {
		translated = make([]Medication, 0, len(meds))
		for _, med := range meds {
			translated = append(translated, Medication{
				DrugName:  s.translateField(ctx, "med-"+p.ID+"-"+med.DrugName, med.DrugName, doctor.Locale, patient.Locale),
				Amount:    s.translateField(ctx, "amount-"+p.ID+"-"+med.Amount, med.Amount, doctor.Locale, patient.Locale),
				Frequency: s.translateField(ctx, "freq-"+p.ID+"-"+med.Frequency, med.Frequency, doctor.Locale, patient.Locale),
			})
		}
	}

	medsJSON, err := json.Marshal(translated)
	if err != nil {
		log.Printf("email job payload marshal failed prescription=%s err=%v", p.ID, err)
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		log.Printf("email job id failed prescription=%s err=%v", p.ID, err)
		return
	}
	job := &EmailJob{
		ID:             jobID,
		PrescriptionID: p.ID,
		Recipient:      patient.Email,
		PatientName:    patient.Name,
		DoctorName:     doctor.Name,
		Medications:    medsJSON,
		Status:         EmailJobQueued,
	}
	if err := s.repo.CreateEmailJob(ctx, job); err != nil {
		log.Printf("email job create failed prescription=%s err=%v", p.ID, err)
		return
	}
	if err := s.mailq.PublishEmailJob(ctx, jobID); err != nil {
		log.Printf("email job publish failed job=%s err=%v", jobID, err)
		_ = s.repo.MarkEmailJobFailed(ctx, jobID, err.Error())
	}
}

// translateField goes through the message-scoped cache with a synthetic
// per-field id, so a re-sent prescription reuses earlier translations.
func (s *Service) translateField(ctx context.Context, key, text, src, dst string) string {
	out, err := s.translator.TranslateMessage(ctx, key, text, src, dst)
	if err != nil {
		log.Printf("field translation failed key=%s err=%v", key, err)
		return text
	}
	return out
}
