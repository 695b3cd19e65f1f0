package triage

import (
	"regexp"
	"strings"
)

// Completion markers the triage assistant is prompted to emit once it
// has gathered enough symptom information.
const (
	MarkerComplete       = "TRIAGE_COMPLETE:"
	MarkerUrgentComplete = "URGENT_TRIAGE_COMPLETE:"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// DoctorSelectionCriteria is derived from a triage summary; it is never
// persisted.
type DoctorSelectionCriteria struct {
	Symptoms       string
	Urgency        Urgency
	Specialization string
}

var markerPrefix = regexp.MustCompile(`^(URGENT_)?TRIAGE_COMPLETE:\s*`)

// IsComplete reports whether an assistant reply contains a completion
// marker. URGENT_TRIAGE_COMPLETE contains TRIAGE_COMPLETE, so one
// substring check covers both.
func IsComplete(reply string) bool {
	return strings.Contains(reply, "TRIAGE_COMPLETE")
}

// ExtractSymptoms parses the completion marker text into selection
// criteria. The URGENT_ prefix maps to high urgency, everything else to
// medium. Specialization is a best-effort keyword heuristic, not a
// classifier.
func ExtractSymptoms(aiSummary string) DoctorSelectionCriteria {
	symptoms := markerPrefix.ReplaceAllString(aiSummary, "")

	urgency := UrgencyMedium
	if strings.HasPrefix(aiSummary, "URGENT_TRIAGE_COMPLETE") {
		urgency = UrgencyHigh
	}

	var specialization string
	lower := strings.ToLower(symptoms)
	switch {
	case strings.Contains(lower, "heart") || strings.Contains(lower, "chest"):
		specialization = "Cardiology"
	case strings.Contains(lower, "skin") || strings.Contains(lower, "rash"):
		specialization = "Dermatology"
	}

	return DoctorSelectionCriteria{
		Symptoms:       symptoms,
		Urgency:        urgency,
		Specialization: specialization,
	}
}
