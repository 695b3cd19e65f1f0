package triage

import "testing"

func TestExtractSymptoms_StandardMarker(t *testing.T) {
	got := ExtractSymptoms("TRIAGE_COMPLETE: patient reports chest pain")

	if got.Symptoms != "patient reports chest pain" {
		t.Fatalf("unexpected symptoms: %q", got.Symptoms)
	}
	if got.Urgency != UrgencyMedium {
		t.Fatalf("expected medium urgency, got %q", got.Urgency)
	}
	if got.Specialization != "Cardiology" {
		t.Fatalf("expected Cardiology, got %q", got.Specialization)
	}
}

func TestExtractSymptoms_UrgentMarker(t *testing.T) {
	got := ExtractSymptoms("URGENT_TRIAGE_COMPLETE: severe rash")

	if got.Symptoms != "severe rash" {
		t.Fatalf("unexpected symptoms: %q", got.Symptoms)
	}
	if got.Urgency != UrgencyHigh {
		t.Fatalf("expected high urgency, got %q", got.Urgency)
	}
	if got.Specialization != "Dermatology" {
		t.Fatalf("expected Dermatology, got %q", got.Specialization)
	}
}

func TestExtractSymptoms_NoSpecializationMatch(t *testing.T) {
	got := ExtractSymptoms("TRIAGE_COMPLETE: persistent headache for three days")

	if got.Specialization != "" {
		t.Fatalf("expected no specialization, got %q", got.Specialization)
	}
	if got.Urgency != UrgencyMedium {
		t.Fatalf("expected medium urgency, got %q", got.Urgency)
	}
}

func TestIsComplete(t *testing.T) {
	cases := []struct {
		reply string
		want  bool
	}{
		{"Could you tell me more about the pain?", false},
		{"TRIAGE_COMPLETE: shortness of breath", true},
		{"URGENT_TRIAGE_COMPLETE: crushing chest pain", true},
		{"Thanks for the details. TRIAGE_COMPLETE: mild fever", true},
	}
	for _, c := range cases {
		if got := IsComplete(c.reply); got != c.want {
			t.Fatalf("IsComplete(%q) = %v, want %v", c.reply, got, c.want)
		}
	}
}
