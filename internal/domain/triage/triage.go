// Package triage holds the symptom triage request and assessment types.
package triage

import (
	"fmt"
	"strings"
	"time"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/fingerprint"
)

const (
	minSymptomsLen = 3
	maxAge         = 150
)

// Urgency levels of an assessment.
const (
	UrgencyRoutine  = "Routine"
	UrgencyUrgent   = "Urgent"
	UrgencyCritical = "Critical"
)

// Confidence levels of an assessment.
const (
	ConfidenceLow    = "Low"
	ConfidenceMedium = "Medium"
	ConfidenceHigh   = "High"
)

// PatientInfo is optional patient context supplied by the health worker.
type PatientInfo struct {
	Age            *int   `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	MedicalHistory string `json:"medical_history,omitempty"`
}

// Request is a validated triage request.
type Request struct {
	symptoms string
	language string
	patient  *PatientInfo
}

// NewRequest validates and builds a triage request.
func NewRequest(symptoms, language string, patient *PatientInfo) (Request, error) {
	s := strings.TrimSpace(symptoms)
	if len(s) < minSymptomsLen {
		return Request{}, fmt.Errorf("%w: symptoms must be at least %d characters", domain.ErrInvalidInput, minSymptomsLen)
	}
	lang, ok := domain.NormalizeLanguage(language)
	if !ok {
		return Request{}, fmt.Errorf("%w: unsupported language %q", domain.ErrInvalidInput, language)
	}
	if patient != nil && patient.Age != nil && (*patient.Age < 0 || *patient.Age > maxAge) {
		return Request{}, fmt.Errorf("%w: age must be between 0 and %d", domain.ErrInvalidInput, maxAge)
	}
	return Request{symptoms: s, language: lang, patient: patient}, nil
}

// Symptoms returns the trimmed symptom description.
func (r Request) Symptoms() string { return r.symptoms }

// Language returns the normalized response language.
func (r Request) Language() string { return r.language }

// Patient returns the optional patient info.
func (r Request) Patient() *PatientInfo { return r.patient }

// Content returns the fields that identify a repeated triage query.
func (r Request) Content() map[string]any {
	c := map[string]any{
		"symptoms": r.symptoms,
		"language": r.language,
	}
	if r.patient != nil {
		if r.patient.Age != nil {
			c["age"] = *r.patient.Age
		}
		if r.patient.Gender != "" {
			c["gender"] = r.patient.Gender
		}
	}
	return c
}

// ContentHasher fingerprints triage content over a fixed field set, so a
// request without patient info hashes like one with explicit nulls.
func ContentHasher() *fingerprint.Hasher {
	return fingerprint.NewHasher(
		fingerprint.Field{Name: "symptoms"},
		fingerprint.Field{Name: "age"},
		fingerprint.Field{Name: "gender"},
		fingerprint.Field{Name: "language", Default: domain.DefaultLanguage},
	)
}

// Result is a triage assessment.
type Result struct {
	LikelyDiagnosis      string    `json:"likely_diagnosis"`
	UrgencyLevel         string    `json:"urgency_level"`
	Confidence           string    `json:"confidence"`
	RecommendedAction    string    `json:"recommended_action"`
	TestsNeeded          []string  `json:"tests_needed"`
	TreatmentSuggestions []string  `json:"treatment_suggestions"`
	RedFlags             []string  `json:"red_flags"`
	ReferralNeeded       bool      `json:"referral_needed"`
	Explanation          string    `json:"explanation"`
	Timestamp            time.Time `json:"timestamp"`
}

// ApplyDefaults fills fields the model left empty.
func (r *Result) ApplyDefaults() {
	if r.LikelyDiagnosis == "" {
		r.LikelyDiagnosis = "Unknown"
	}
	if r.UrgencyLevel == "" {
		r.UrgencyLevel = UrgencyRoutine
	}
	if r.Confidence == "" {
		r.Confidence = ConfidenceMedium
	}
	if r.RecommendedAction == "" {
		r.RecommendedAction = "Consult healthcare worker"
	}
	if r.TestsNeeded == nil {
		r.TestsNeeded = []string{}
	}
	if r.TreatmentSuggestions == nil {
		r.TreatmentSuggestions = []string{}
	}
	if r.RedFlags == nil {
		r.RedFlags = []string{}
	}
}

var (
	criticalKeywords = []string{"chest pain", "difficulty breathing", "severe bleeding", "unconscious"}
	urgentKeywords   = []string{"high fever", "severe pain", "vomiting", "diarrhea"}
)

// Fallback returns a keyword-based assessment for when no model is available.
func Fallback(symptoms string, now time.Time) Result {
	s := strings.ToLower(symptoms)

	urgency := UrgencyRoutine
	action := "Schedule regular consultation. Provide symptomatic treatment."
	var flags []string
	switch {
	case containsAny(s, criticalKeywords, &flags):
		urgency = UrgencyCritical
		action = "Immediate medical attention required. Transfer to emergency department."
	case containsAny(s, urgentKeywords, &flags):
		urgency = UrgencyUrgent
		action = "Patient should be seen within 1-2 hours. Monitor vital signs."
	}

	r := Result{
		LikelyDiagnosis:   "Preliminary assessment - requires clinical evaluation",
		UrgencyLevel:      urgency,
		Confidence:        ConfidenceLow,
		RecommendedAction: action,
		TestsNeeded:       []string{"Complete physical examination", "Vital signs check"},
		RedFlags:          flags,
		ReferralNeeded:    urgency == UrgencyCritical,
		Explanation:       "Fallback assessment: the language model is not available.",
		Timestamp:         now,
	}
	r.ApplyDefaults()
	return r
}

func containsAny(s string, keywords []string, matched *[]string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			*matched = append(*matched, k)
		}
	}
	return len(*matched) > 0
}
