package domain

import (
	"time"

	"github.com/google/uuid"
)

// PatientStatus is where a patient is in treatment.
type PatientStatus string

const (
	PatientActive     PatientStatus = "active"
	PatientInactive   PatientStatus = "inactive"
	PatientDischarged PatientStatus = "discharged"
	PatientWaitlist   PatientStatus = "waiting_list"
)

// Valid reports whether s is a known status.
func (s PatientStatus) Valid() bool {
	switch s {
	case PatientActive, PatientInactive, PatientDischarged, PatientWaitlist:
		return true
	}
	return false
}

// Patient is a person treated by the clinic. Patients count toward the
// patient limit while live.
type Patient struct {
	ID               uuid.UUID     `json:"id"`
	TenantID         uuid.UUID     `json:"tenant_id"`
	Name             string        `json:"name"`
	BirthDate        time.Time     `json:"birth_date"`
	Gender           string        `json:"gender,omitempty"`
	Phone            string        `json:"phone,omitempty"`
	EmergencyContact string        `json:"emergency_contact,omitempty"`
	PrimaryDiagnosis string        `json:"primary_diagnosis,omitempty"`
	Status           PatientStatus `json:"status"`
	Notes            string        `json:"notes,omitempty"`
	IsActive         bool          `json:"is_active"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	DeletedAt        *time.Time    `json:"deleted_at,omitempty"`
}

// Age in whole years at now.
func (p Patient) Age(now time.Time) int {
	years := now.Year() - p.BirthDate.Year()
	if now.YearDay() < p.BirthDate.YearDay() {
		years--
	}
	return max(years, 0)
}
