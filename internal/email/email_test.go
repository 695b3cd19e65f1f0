package email

import (
	"strings"
	"testing"
	"time"
)

func TestPrescriptionBody(t *testing.T) {
	meds := []MedicationLine{
		{DrugName: "Lisinopril", Amount: "10mg", Frequency: "once daily"},
		{DrugName: "Aspirin", Amount: "81mg", Frequency: "once daily"},
	}
	body := PrescriptionBody("Ada", "Greg House", meds, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))

	for _, want := range []string{
		"Hello Ada,",
		"Dr. Greg House",
		"March 14, 2026",
		"1. Lisinopril - 10mg, once daily",
		"2. Aspirin - 81mg, once daily",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestSendTextRequiresHost(t *testing.T) {
	s := NewSender(Config{})
	if err := s.SendText("a@example.com", "subject", "body"); err == nil {
		t.Fatal("expected error for unconfigured host")
	}
}
