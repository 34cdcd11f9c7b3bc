// Package dashboard holds facility, patient and workforce records and the
// aggregates shown on the monitoring dashboard.
package dashboard

import (
	"sort"
	"strings"
	"time"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain/inventory"
)

// StatusOperational is the operational_status value of a working facility.
const StatusOperational = "Operational"

// RecentWindow is how far back patient visits count as recent.
const RecentWindow = 30 * 24 * time.Hour

const topDiagnoses = 5

// Facility is a primary health care centre.
type Facility struct {
	ID                string  `json:"facility_id"`
	Name              string  `json:"facility_name"`
	State             string  `json:"state"`
	LGA               string  `json:"lga"`
	Ward              string  `json:"ward,omitempty"`
	OperationalStatus string  `json:"operational_status"`
	Latitude          float64 `json:"latitude,omitempty"`
	Longitude         float64 `json:"longitude,omitempty"`
}

// Operational reports whether the facility is working.
func (f Facility) Operational() bool {
	return strings.EqualFold(f.OperationalStatus, StatusOperational)
}

// Patient is one recorded visit.
type Patient struct {
	ID         string    `json:"patient_id"`
	FacilityID string    `json:"facility_id"`
	VisitDate  time.Time `json:"visit_date"`
	Diagnosis  string    `json:"diagnosis"`
	Age        int       `json:"age"`
	Gender     string    `json:"gender"`
}

// Worker is a health worker assigned to a facility.
type Worker struct {
	ID         string `json:"worker_id"`
	FacilityID string `json:"facility_id"`
	Role       string `json:"role"`
}

// DiagnosisCount is a diagnosis with its visit count.
type DiagnosisCount struct {
	Diagnosis string `json:"diagnosis"`
	Count     int    `json:"count"`
}

// PatientStats aggregates recent visits.
type PatientStats struct {
	WindowDays   int              `json:"window_days"`
	RecentVisits int              `json:"recent_visits"`
	ByGender     map[string]int   `json:"by_gender"`
	TopDiagnoses []DiagnosisCount `json:"top_diagnoses"`
}

// WorkerStats aggregates the workforce.
type WorkerStats struct {
	Total  int            `json:"total"`
	ByRole map[string]int `json:"by_role"`
}

// Summary is the dashboard overview.
type Summary struct {
	TotalFacilities       int          `json:"total_facilities"`
	OperationalFacilities int          `json:"operational_facilities"`
	TotalPatients         int          `json:"total_patients"`
	TotalInventoryItems   int          `json:"total_inventory_items"`
	LowStockItems         int          `json:"low_stock_items"`
	TotalHealthWorkers    int          `json:"total_health_workers"`
	RecentPatientStats    PatientStats `json:"recent_patient_stats"`
	WorkerStats           WorkerStats  `json:"worker_stats"`
	LastUpdated           time.Time    `json:"last_updated"`
}

// Summarize builds the dashboard overview.
func Summarize(facilities []Facility, patients []Patient, items []inventory.Item, workers []Worker, now time.Time) Summary {
	s := Summary{
		TotalFacilities:     len(facilities),
		TotalPatients:       len(patients),
		TotalInventoryItems: len(items),
		TotalHealthWorkers:  len(workers),
		RecentPatientStats:  RecentPatients(patients, now),
		WorkerStats:         Workforce(workers),
		LastUpdated:         now,
	}
	for _, f := range facilities {
		if f.Operational() {
			s.OperationalFacilities++
		}
	}
	for _, it := range items {
		if it.IsCritical() {
			s.LowStockItems++
		}
	}
	return s
}

// RecentPatients aggregates visits within RecentWindow of now.
func RecentPatients(patients []Patient, now time.Time) PatientStats {
	return PatientsWithin(patients, RecentWindow, now)
}

// PatientsWithin aggregates visits within window of now.
func PatientsWithin(patients []Patient, window time.Duration, now time.Time) PatientStats {
	cutoff := now.Add(-window)
	st := PatientStats{
		WindowDays: int(window / (24 * time.Hour)),
		ByGender:   make(map[string]int),
	}
	byDiag := make(map[string]int)
	for _, p := range patients {
		if p.VisitDate.Before(cutoff) || p.VisitDate.After(now) {
			continue
		}
		st.RecentVisits++
		if p.Gender != "" {
			st.ByGender[p.Gender]++
		}
		if p.Diagnosis != "" {
			byDiag[p.Diagnosis]++
		}
	}
	st.TopDiagnoses = make([]DiagnosisCount, 0, len(byDiag))
	for d, n := range byDiag {
		st.TopDiagnoses = append(st.TopDiagnoses, DiagnosisCount{Diagnosis: d, Count: n})
	}
	sort.Slice(st.TopDiagnoses, func(i, j int) bool {
		a, b := st.TopDiagnoses[i], st.TopDiagnoses[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Diagnosis < b.Diagnosis
	})
	if len(st.TopDiagnoses) > topDiagnoses {
		st.TopDiagnoses = st.TopDiagnoses[:topDiagnoses]
	}
	return st
}

// Workforce counts workers per role.
func Workforce(workers []Worker) WorkerStats {
	st := WorkerStats{Total: len(workers), ByRole: make(map[string]int)}
	for _, w := range workers {
		role := w.Role
		if role == "" {
			role = "Unknown"
		}
		st.ByRole[role]++
	}
	return st
}

// Filter selects facilities.
type Filter struct {
	State           string `json:"state,omitempty"`
	LGA             string `json:"lga,omitempty"`
	OperationalOnly bool   `json:"operational_only"`
}

// Match reports whether f passes the filter. State and LGA compare
// case-insensitively.
func (flt Filter) Match(f Facility) bool {
	if flt.State != "" && !strings.EqualFold(flt.State, f.State) {
		return false
	}
	if flt.LGA != "" && !strings.EqualFold(flt.LGA, f.LGA) {
		return false
	}
	return !flt.OperationalOnly || f.Operational()
}

// SearchResult is a filtered facility listing.
type SearchResult struct {
	Facilities []Facility     `json:"facilities"`
	Total      int            `json:"total"`
	States     map[string]int `json:"states"`
	Filters    Filter         `json:"filters"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Search filters facilities and counts the matches per state.
func Search(facilities []Facility, flt Filter, now time.Time) SearchResult {
	r := SearchResult{
		Facilities: []Facility{},
		States:     make(map[string]int),
		Filters:    flt,
		Timestamp:  now,
	}
	for _, f := range facilities {
		if !flt.Match(f) {
			continue
		}
		r.Facilities = append(r.Facilities, f)
		r.States[f.State]++
	}
	r.Total = len(r.Facilities)
	return r
}

// PatientReport is patient statistics for one facility, or all of them when
// FacilityID is empty.
type PatientReport struct {
	Statistics   PatientStats `json:"statistics"`
	FacilityID   string       `json:"facility_id,omitempty"`
	DaysAnalyzed int          `json:"days_analyzed"`
	Timestamp    time.Time    `json:"timestamp"`
}

// WorkerReport is workforce statistics for one facility, or all of them.
type WorkerReport struct {
	Statistics WorkerStats `json:"statistics"`
	FacilityID string      `json:"facility_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// MonthlyCases is the visit count of one calendar month ("2006-01").
type MonthlyCases struct {
	Month string `json:"month"`
	Cases int    `json:"total_cases"`
}

// DiseaseTrend is the monthly case count of one diagnosis.
type DiseaseTrend struct {
	Disease        string         `json:"disease"`
	MonthsAnalyzed int            `json:"months_analyzed"`
	Trends         []MonthlyCases `json:"trends"`
	TotalCases     int            `json:"total_cases"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Trend counts visits diagnosed as disease in each of the last months
// calendar months, the current one included. Months without cases are
// reported as zero, oldest first. Diagnoses compare case-insensitively.
func Trend(patients []Patient, disease string, months int, now time.Time) DiseaseTrend {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	t := DiseaseTrend{
		Disease:        disease,
		MonthsAnalyzed: months,
		Trends:         make([]MonthlyCases, months),
		Timestamp:      now,
	}
	index := make(map[string]int, months)
	for i := 0; i < months; i++ {
		m := start.AddDate(0, i, 0).Format("2006-01")
		t.Trends[i] = MonthlyCases{Month: m}
		index[m] = i
	}
	for _, p := range patients {
		if !strings.EqualFold(strings.TrimSpace(p.Diagnosis), disease) {
			continue
		}
		if p.VisitDate.Before(start) || p.VisitDate.After(now) {
			continue
		}
		if i, ok := index[p.VisitDate.UTC().Format("2006-01")]; ok {
			t.Trends[i].Cases++
			t.TotalCases++
		}
	}
	return t
}
