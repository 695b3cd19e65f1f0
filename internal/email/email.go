// Package email sends transactional mail over SMTP.
package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

type Config struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

type Sender struct {
	cfg Config
}

func NewSender(cfg Config) *Sender {
	return &Sender{cfg: cfg}
}

// SendText delivers a plain-text message to a single recipient.
func (s *Sender) SendText(to, subject, body string) error {
	if s.cfg.Host == "" {
		return fmt.Errorf("smtp host not configured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	addr := s.cfg.Host + ":" + s.cfg.Port
	var auth smtp.Auth
	if s.cfg.User != "" {
		auth = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// MedicationLine is one prescription entry as rendered in the mail.
type MedicationLine struct {
	DrugName  string `json:"drug_name"`
	Amount    string `json:"amount"`
	Frequency string `json:"frequency"`
}

// PrescriptionBody renders the plain-text prescription email.
func PrescriptionBody(patientName, doctorName string, meds []MedicationLine, issuedAt time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", patientName)
	fmt.Fprintf(&b, "Dr. %s has issued you a new prescription on %s.\n\n", doctorName, issuedAt.Format("January 2, 2006"))
	b.WriteString("Medications:\n")
	for i, m := range meds {
		fmt.Fprintf(&b, "  %d. %s - %s, %s\n", i+1, m.DrugName, m.Amount, m.Frequency)
	}
	b.WriteString("\nPlease follow the dosage instructions carefully. If you have any questions, reply to your doctor in the consultation chat.\n")
	b.WriteString("\nConsultify\n")
	return b.String()
}
