package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/identity"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/translation"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/triage"
)

type countingProvider struct {
	calls int
}

func (p *countingProvider) LocalizeText(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	p.calls++
	return fmt.Sprintf("[%s] %s", targetLocale, text), nil
}

type staticDirectory struct {
	users map[string]identity.Profile
}

func (d *staticDirectory) GetUser(ctx context.Context, userID string) (identity.Profile, error) {
	p, ok := d.users[userID]
	if !ok {
		return identity.Profile{}, errors.New("user not found")
	}
	return identity.Normalize(p), nil
}

func (d *staticDirectory) ListUsersByRole(ctx context.Context, role string) ([]identity.Profile, error) {
	var out []identity.Profile
	for _, p := range d.users {
		if p.Role == role {
			out = append(out, identity.Normalize(p))
		}
	}
	return out, nil
}

type memTyping struct {
	mu     sync.Mutex
	typers map[string]map[string]bool
}

func newMemTyping() *memTyping {
	return &memTyping{typers: make(map[string]map[string]bool)}
}

func (m *memTyping) SetTyping(ctx context.Context, consultationID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.typers[consultationID] == nil {
		m.typers[consultationID] = make(map[string]bool)
	}
	m.typers[consultationID][userID] = true
	return nil
}

func (m *memTyping) ClearTyping(ctx context.Context, consultationID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.typers[consultationID], userID)
	return nil
}

func (m *memTyping) ActiveTypers(ctx context.Context, consultationID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for uid := range m.typers[consultationID] {
		out = append(out, uid)
	}
	return out, nil
}

type recordingQueue struct {
	published []string
}

func (q *recordingQueue) PublishEmailJob(ctx context.Context, jobID string) error {
	q.published = append(q.published, jobID)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = gdb.AutoMigrate(
		&Consultation{}, &Message{}, &MessageRead{}, &Prescription{}, &EmailJob{},
		&translation.CacheEntry{}, &translation.MessageTranslation{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func testUsers() map[string]identity.Profile {
	return map[string]identity.Profile{
		"patient-1": {ID: "patient-1", Email: "ada@example.com", Name: "Ada", Role: identity.RolePatient, Locale: "fr"},
		"doctor-1":  {ID: "doctor-1", Email: "greg@example.com", Name: "Greg House", Role: identity.RoleDoctor, Locale: "en", Specialization: "Cardiology"},
	}
}

func newTestService(t *testing.T) (*Service, *countingProvider, *recordingQueue, *Repo) {
	t.Helper()
	gdb := openTestDB(t)
	repo := NewRepo(gdb)
	provider := &countingProvider{}
	translator := translation.NewService(translation.NewRepo(gdb), provider)
	dir := &staticDirectory{users: testUsers()}
	queue := &recordingQueue{}
	svc := NewService(repo, translator, dir, triage.NewSelector(dir), newMemTyping(), queue)
	return svc, provider, queue, repo
}

func TestStartAITriageSeedsGreeting(t *testing.T) {
	svc, _, _, repo := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartAITriage(ctx, "patient-1")
	if err != nil {
		t.Fatalf("StartAITriage: %v", err)
	}
	if c.ConsultationType != TypeAITriage || c.AITriageStatus != TriageInProgress {
		t.Fatalf("unexpected phase: %s/%s", c.ConsultationType, c.AITriageStatus)
	}
	if c.Title != "AI Health Assessment" {
		t.Fatalf("unexpected title %q", c.Title)
	}

	msgs, err := repo.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].MessageType != MessageAITriage {
		t.Fatalf("expected single AI_TRIAGE greeting, got %+v", msgs)
	}
}

func TestCompleteTriageHandOff(t *testing.T) {
	svc, provider, _, repo := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartAITriage(ctx, "patient-1")
	if err != nil {
		t.Fatalf("StartAITriage: %v", err)
	}

	res, err := svc.CompleteTriage(ctx, c.ID, "TRIAGE_COMPLETE: shortness of breath and chest pain")
	if err != nil {
		t.Fatalf("CompleteTriage: %v", err)
	}

	got := res.Consultation
	if got.ConsultationType != TypeHuman {
		t.Fatalf("expected HUMAN consultation, got %s", got.ConsultationType)
	}
	if got.AITriageStatus != TriageCompleted {
		t.Fatalf("expected triage COMPLETED, got %s", got.AITriageStatus)
	}
	if got.DoctorID == nil || *got.DoctorID != "doctor-1" {
		t.Fatalf("expected doctor-1 assigned, got %v", got.DoctorID)
	}
	if got.Urgency != "MEDIUM" {
		t.Fatalf("expected MEDIUM urgency, got %q", got.Urgency)
	}
	if !strings.HasPrefix(got.Title, "Consultation - ") {
		t.Fatalf("unexpected title %q", got.Title)
	}

	msgs, err := repo.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	// Greeting, SYSTEM summary, DOCTOR_INTRO.
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].MessageType != MessageSystem || !strings.HasPrefix(msgs[1].Content, "AI Triage Summary:") {
		t.Fatalf("unexpected system message %+v", msgs[1])
	}
	if msgs[2].MessageType != MessageDoctorIntro {
		t.Fatalf("unexpected intro message %+v", msgs[2])
	}

	// The intro was translated into the patient's locale once and went
	// through the message cache.
	if provider.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.calls)
	}
	if !strings.HasPrefix(res.IntroMessage.Content, "[fr] ") {
		t.Fatalf("intro not translated: %q", res.IntroMessage.Content)
	}

	// A second attempt must be rejected.
	if _, err := svc.CompleteTriage(ctx, c.ID, "TRIAGE_COMPLETE: again"); !errors.Is(err, ErrTriageNotInProgress) {
		t.Fatalf("expected ErrTriageNotInProgress, got %v", err)
	}
}

func TestCompleteTriageUrgentSummary(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartAITriage(ctx, "patient-1")
	if err != nil {
		t.Fatalf("StartAITriage: %v", err)
	}
	res, err := svc.CompleteTriage(ctx, c.ID, "URGENT_TRIAGE_COMPLETE: crushing chest pain")
	if err != nil {
		t.Fatalf("CompleteTriage: %v", err)
	}
	if res.Consultation.Urgency != "HIGH" {
		t.Fatalf("expected HIGH urgency, got %q", res.Consultation.Urgency)
	}
}

func TestCompleteTriageTitleStaysValidUTF8(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartAITriage(ctx, "patient-1")
	if err != nil {
		t.Fatalf("StartAITriage: %v", err)
	}

	// A multi-byte rune straddling the truncation point must not be
	// split into invalid UTF-8.
	symptoms := strings.Repeat("a", 49) + "é vertiges et nausées"
	res, err := svc.CompleteTriage(ctx, c.ID, "TRIAGE_COMPLETE: "+symptoms)
	if err != nil {
		t.Fatalf("CompleteTriage: %v", err)
	}

	title := res.Consultation.Title
	if !utf8.ValidString(title) {
		t.Fatalf("title is not valid UTF-8: %q", title)
	}
	if !strings.HasSuffix(title, "é...") {
		t.Fatalf("unexpected truncation %q", title)
	}
}

func TestAssignDoctorRejectsCompletedHandOff(t *testing.T) {
	svc, _, _, repo := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartAITriage(ctx, "patient-1")
	if err != nil {
		t.Fatalf("StartAITriage: %v", err)
	}
	if err := repo.AssignDoctor(ctx, c.ID, "doctor-1", "Consultation - headache...", "headache", "MEDIUM"); err != nil {
		t.Fatalf("AssignDoctor: %v", err)
	}

	// A second hand-off racing past the service precondition must fail
	// at the update itself.
	err = repo.AssignDoctor(ctx, c.ID, "doctor-1", "Consultation - headache...", "headache", "MEDIUM")
	if !errors.Is(err, ErrTriageNotInProgress) {
		t.Fatalf("expected ErrTriageNotInProgress, got %v", err)
	}
}

func TestCompleteTriageNoDoctorsLeavesStateUntouched(t *testing.T) {
	gdb := openTestDB(t)
	repo := NewRepo(gdb)
	provider := &countingProvider{}
	translator := translation.NewService(translation.NewRepo(gdb), provider)
	dir := &staticDirectory{users: map[string]identity.Profile{
		"patient-1": {ID: "patient-1", Name: "Ada", Role: identity.RolePatient, Locale: "fr"},
	}}
	svc := NewService(repo, translator, dir, triage.NewSelector(dir), newMemTyping(), &recordingQueue{})
	ctx := context.Background()

	c, err := svc.StartAITriage(ctx, "patient-1")
	if err != nil {
		t.Fatalf("StartAITriage: %v", err)
	}
	if _, err := svc.CompleteTriage(ctx, c.ID, "TRIAGE_COMPLETE: headache"); !errors.Is(err, triage.ErrNoDoctorsAvailable) {
		t.Fatalf("expected ErrNoDoctorsAvailable, got %v", err)
	}

	got, err := repo.GetConsultation(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetConsultation: %v", err)
	}
	if got.ConsultationType != TypeAITriage || got.AITriageStatus != TriageInProgress || got.DoctorID != nil {
		t.Fatalf("consultation mutated: %+v", got)
	}
	msgs, err := repo.ListMessages(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected greeting only, got %d messages", len(msgs))
	}
}

func TestSendAndListMessagesTranslatesForReader(t *testing.T) {
	svc, provider, _, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartAITriage(ctx, "patient-1")
	if err != nil {
		t.Fatalf("StartAITriage: %v", err)
	}
	if _, err := svc.CompleteTriage(ctx, c.ID, "TRIAGE_COMPLETE: skin rash"); err != nil {
		t.Fatalf("CompleteTriage: %v", err)
	}
	callsAfterTriage := provider.calls

	sent, err := svc.SendMessage(ctx, c.ID, "doctor-1", "Does the rash itch?")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if len(sent.ReadBy) != 1 || sent.ReadBy[0] != "doctor-1" {
		t.Fatalf("sender not marked as reader: %+v", sent.ReadBy)
	}

	// Patient reads in French: only the NORMAL doctor message needs a
	// provider call. SYSTEM and DOCTOR_INTRO stay verbatim, and the
	// patient's own greeting is same-locale for the sender check below.
	list, err := svc.ListMessages(ctx, c.ID, "patient-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if list.UserLanguage != "fr" {
		t.Fatalf("expected reader language fr, got %q", list.UserLanguage)
	}
	if len(list.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(list.Messages))
	}
	last := list.Messages[3]
	if last.Content != "[fr] Does the rash itch?" {
		t.Fatalf("doctor message not translated: %q", last.Content)
	}
	if last.OriginalContent != "Does the rash itch?" {
		t.Fatalf("original content lost: %q", last.OriginalContent)
	}
	for _, m := range list.Messages {
		if m.MessageType == MessageSystem || m.MessageType == MessageDoctorIntro {
			if m.Content != m.OriginalContent {
				t.Fatalf("%s message must not be translated: %+v", m.MessageType, m)
			}
		}
	}

	if provider.calls != callsAfterTriage+1 {
		t.Fatalf("expected 1 new provider call, got %d", provider.calls-callsAfterTriage)
	}

	// A second read is served from the message cache.
	if _, err := svc.ListMessages(ctx, c.ID, "patient-1"); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if provider.calls != callsAfterTriage+1 {
		t.Fatalf("cache miss on second read, calls=%d", provider.calls-callsAfterTriage)
	}
}

func TestTypingIndicatorsExcludeReader(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartAITriage(ctx, "patient-1")
	if err != nil {
		t.Fatalf("StartAITriage: %v", err)
	}
	if err := svc.SetTyping(ctx, c.ID, "doctor-1", true); err != nil {
		t.Fatalf("SetTyping: %v", err)
	}
	if err := svc.SetTyping(ctx, c.ID, "patient-1", true); err != nil {
		t.Fatalf("SetTyping: %v", err)
	}

	list, err := svc.ListMessages(ctx, c.ID, "patient-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(list.TypingUsers) != 1 || list.TypingUsers[0] != "Greg House" {
		t.Fatalf("expected only the doctor typing, got %v", list.TypingUsers)
	}

	if err := svc.SetTyping(ctx, c.ID, "doctor-1", false); err != nil {
		t.Fatalf("ClearTyping: %v", err)
	}
	list, err = svc.ListMessages(ctx, c.ID, "patient-1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(list.TypingUsers) != 0 {
		t.Fatalf("expected nobody typing, got %v", list.TypingUsers)
	}
}

func TestCreatePrescriptionQueuesEmail(t *testing.T) {
	svc, _, queue, repo := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartAITriage(ctx, "patient-1")
	if err != nil {
		t.Fatalf("StartAITriage: %v", err)
	}
	if _, err := svc.CompleteTriage(ctx, c.ID, "TRIAGE_COMPLETE: hypertension"); err != nil {
		t.Fatalf("CompleteTriage: %v", err)
	}

	meds := []Medication{
		{DrugName: "Lisinopril", Amount: "10mg", Frequency: "once daily"},
		{DrugName: "  ", Amount: "5mg", Frequency: "twice daily"}, // dropped
	}
	p, msg, err := svc.CreatePrescription(ctx, c.ID, meds)
	if err != nil {
		t.Fatalf("CreatePrescription: %v", err)
	}
	if msg.MessageType != MessagePrescription {
		t.Fatalf("expected PRESCRIPTION message, got %s", msg.MessageType)
	}
	if msg.Content != "Prescription sent with 1 medication" {
		t.Fatalf("unexpected content %q", msg.Content)
	}
	if msg.Prescription == nil || len(msg.Prescription.Medications) != 1 {
		t.Fatalf("expected 1 medication attached, got %+v", msg.Prescription)
	}

	if len(queue.published) != 1 {
		t.Fatalf("expected 1 published job, got %d", len(queue.published))
	}
	job, err := repo.GetEmailJobByID(ctx, queue.published[0])
	if err != nil {
		t.Fatalf("GetEmailJobByID: %v", err)
	}
	if job.PrescriptionID != p.ID || job.Recipient != "ada@example.com" || job.Status != EmailJobQueued {
		t.Fatalf("unexpected job %+v", job)
	}
	// Medication fields were translated into the patient's locale for
	// the email payload.
	if !strings.Contains(string(job.Medications), "[fr] Lisinopril") {
		t.Fatalf("medications not translated in job payload: %s", job.Medications)
	}
}

func TestCreatePrescriptionValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.StartAITriage(ctx, "patient-1")
	if err != nil {
		t.Fatalf("StartAITriage: %v", err)
	}

	// Still in triage: no doctor yet.
	if _, _, err := svc.CreatePrescription(ctx, c.ID, []Medication{{DrugName: "X", Amount: "1", Frequency: "1"}}); !errors.Is(err, ErrNoDoctorAssigned) {
		t.Fatalf("expected ErrNoDoctorAssigned, got %v", err)
	}

	if _, err := svc.CompleteTriage(ctx, c.ID, "TRIAGE_COMPLETE: cough"); err != nil {
		t.Fatalf("CompleteTriage: %v", err)
	}
	if _, _, err := svc.CreatePrescription(ctx, c.ID, []Medication{{DrugName: "", Amount: "", Frequency: ""}}); !errors.Is(err, ErrNoValidMedications) {
		t.Fatalf("expected ErrNoValidMedications, got %v", err)
	}
}

func TestStatsForUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		c, err := svc.StartAITriage(ctx, "patient-1")
		if err != nil {
			t.Fatalf("StartAITriage: %v", err)
		}
		if _, err := svc.SendMessage(ctx, c.ID, "patient-1", fmt.Sprintf("note %d", i)); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}

	stats, err := svc.StatsForUser(ctx, "patient-1", identity.RolePatient)
	if err != nil {
		t.Fatalf("StatsForUser: %v", err)
	}
	if stats.Consultations != 4 {
		t.Fatalf("expected 4 consultations, got %d", stats.Consultations)
	}
	// 4 greetings seeded with the patient as sender plus 4 notes.
	if stats.Messages != 8 {
		t.Fatalf("expected 8 messages, got %d", stats.Messages)
	}
	if len(stats.RecentConsultations) != 3 {
		t.Fatalf("expected 3 recent consultations, got %d", len(stats.RecentConsultations))
	}
}

func TestClaimEmailJobOncePerDelivery(t *testing.T) {
	_, _, _, repo := newTestService(t)
	ctx := context.Background()

	job := &EmailJob{
		ID:             "01JOBCLAIMTEST00000000000X",
		PrescriptionID: "rx-1",
		Recipient:      "ada@example.com",
		PatientName:    "Ada",
		DoctorName:     "Greg House",
		Medications:    datatypes.JSON("[]"),
		Status:         EmailJobQueued,
	}
	if err := repo.CreateEmailJob(ctx, job); err != nil {
		t.Fatalf("CreateEmailJob: %v", err)
	}

	claimed, err := repo.ClaimEmailJob(ctx, job.ID)
	if err != nil || !claimed {
		t.Fatalf("expected first claim to win, claimed=%v err=%v", claimed, err)
	}

	// While running, a redelivery must not claim it again.
	claimed, err = repo.ClaimEmailJob(ctx, job.ID)
	if err != nil || claimed {
		t.Fatalf("expected running job to stay unclaimable, claimed=%v err=%v", claimed, err)
	}

	if err := repo.MarkEmailJobSucceeded(ctx, job.ID); err != nil {
		t.Fatalf("MarkEmailJobSucceeded: %v", err)
	}
	claimed, err = repo.ClaimEmailJob(ctx, job.ID)
	if err != nil || claimed {
		t.Fatalf("expected sent job to stay unclaimable, claimed=%v err=%v", claimed, err)
	}

	// A failed job is retriable.
	if err := repo.MarkEmailJobFailed(ctx, job.ID, "smtp timeout"); err != nil {
		t.Fatalf("MarkEmailJobFailed: %v", err)
	}
	claimed, err = repo.ClaimEmailJob(ctx, job.ID)
	if err != nil || !claimed {
		t.Fatalf("expected failed job to be claimable, claimed=%v err=%v", claimed, err)
	}
}
