// Package domain defines the persistence models for the clinic back office:
// appointments on the agenda, patients, staff, and the clinical records kept
// per patient (tooth chart entries, treatment plans, notes). These types are
// mapped with GORM and form the core data layer of the service.
package domain

import (
	"time"
)

// DateLayout and ClockLayout are the storage formats of Appointment.Date and
// Appointment.Time.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// DefaultDurationMinutes is the duration assumed for an appointment whose
// stored duration is zero or absent.
const DefaultDurationMinutes = 60

// Appointment is a booking on the clinic agenda. Date and Time are kept as
// local calendar strings (yyyy-MM-dd and HH:mm); they are only turned into
// absolute instants, in the configured clinic zone, when intervals are
// compared.
//
// Fields:
//   - ID: UUID primary key (char(36)), immutable.
//   - Date/Time: start of the appointment; (date, time) is indexed since every
//     conflict check reads a whole day.
//   - Duration: minutes; zero is treated as DefaultDurationMinutes.
//   - ClientID/ClientName: the patient, denormalized as in the source agenda.
//   - Value: price charged for the appointment.
//   - Completed: set once the appointment took place.
type Appointment struct {
	ID               string    `json:"id"                          gorm:"type:char(36);primaryKey"`
	Date             string    `json:"date"                        gorm:"type:char(10);not null;index:idx_agenda_day,priority:1"`
	Time             string    `json:"time"                        gorm:"type:char(5);not null;index:idx_agenda_day,priority:2"`
	Duration         int       `json:"duration"                    gorm:"not null;default:60"`
	Title            string    `json:"title"                       gorm:"type:varchar(255);not null"`
	ClientID         string    `json:"client_id"                   gorm:"type:varchar(64);not null;index"`
	ClientName       string    `json:"client_name"                 gorm:"type:varchar(255);not null"`
	Value            float64   `json:"value"                       gorm:"not null;default:0"`
	Note             string    `json:"note"                        gorm:"type:text;not null;default:''"`
	ProfessionalID   *string   `json:"professional_id,omitempty"   gorm:"type:varchar(64);index"`
	ProfessionalName *string   `json:"professional_name,omitempty" gorm:"type:varchar(255)"`
	Completed        bool      `json:"completed"                   gorm:"not null;default:false"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for Appointment.
func (Appointment) TableName() string { return "appointments" }

// EffectiveDuration returns the stored duration, substituting the default
// for zero or negative values.
func (a Appointment) EffectiveDuration() int {
	if a.Duration <= 0 {
		return DefaultDurationMinutes
	}
	return a.Duration
}

// Patient is a clinic client. Email is unique across patients.
type Patient struct {
	ID                    string     `json:"id"                                gorm:"type:char(36);primaryKey"`
	Name                  string     `json:"name"                              gorm:"type:varchar(255);not null;index"`
	Email                 string     `json:"email"                             gorm:"type:varchar(255);not null;uniqueIndex:ux_patients_email"`
	Phone                 *string    `json:"phone,omitempty"                   gorm:"type:varchar(32)"`
	CPF                   *string    `json:"cpf,omitempty"                     gorm:"type:varchar(14)"`
	BirthDate             *time.Time `json:"birth_date,omitempty"`
	Address               *string    `json:"address,omitempty"                 gorm:"type:text"`
	MedicalHistory        *string    `json:"medical_history,omitempty"         gorm:"type:text"`
	Allergies             *string    `json:"allergies,omitempty"               gorm:"type:text"`
	EmergencyContactName  *string    `json:"emergency_contact_name,omitempty"  gorm:"type:varchar(255)"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone,omitempty" gorm:"type:varchar(32)"`
	Active                bool       `json:"active"                            gorm:"not null;default:true"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Patient.
func (Patient) TableName() string { return "patients" }

// Staff roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Staff is a clinic employee. Credentials are not stored here; identities
// are asserted by bearer tokens issued elsewhere.
type Staff struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	Email     string    `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex:ux_staff_email"`
	Role      string    `json:"role"       gorm:"type:varchar(16);not null;default:'staff';check:role IN ('admin','staff')"`
	Active    bool      `json:"active"     gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Staff.
func (Staff) TableName() string { return "staff" }

// ToothRecord is a single procedure entry on a patient's tooth chart.
// ToothNumber uses FDI notation.
type ToothRecord struct {
	ID          string     `json:"id"                     gorm:"type:char(36);primaryKey"`
	PatientID   string     `json:"patient_id"             gorm:"type:char(36);not null;index:idx_tooth_patient,priority:1"`
	ToothNumber int        `json:"tooth_number"           gorm:"not null;index:idx_tooth_patient,priority:2"`
	Procedure   string     `json:"procedure"              gorm:"type:varchar(128);not null"`
	Status      string     `json:"status"                 gorm:"type:varchar(16);not null;default:'planned'"`
	Priority    string     `json:"priority"               gorm:"type:varchar(16);not null;default:'medium'"`
	Notes       *string    `json:"notes,omitempty"        gorm:"type:text"`
	Cost        *float64   `json:"cost,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Patient Patient `json:"-" gorm:"foreignKey:PatientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ToothRecord.
func (ToothRecord) TableName() string { return "tooth_records" }

// TreatmentPlan groups planned work for a patient with cost/session estimates.
type TreatmentPlan struct {
	ID                string    `json:"id"                           gorm:"type:char(36);primaryKey"`
	PatientID         string    `json:"patient_id"                   gorm:"type:char(36);not null;index"`
	Title             string    `json:"title"                        gorm:"type:varchar(255);not null"`
	Description       string    `json:"description"                  gorm:"type:text;not null;default:''"`
	Status            string    `json:"status"                       gorm:"type:varchar(16);not null;default:'draft'"`
	EstimatedCost     *float64  `json:"estimated_cost,omitempty"`
	EstimatedSessions *int      `json:"estimated_sessions,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	Patient Patient `json:"-" gorm:"foreignKey:PatientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for TreatmentPlan.
func (TreatmentPlan) TableName() string { return "treatment_plans" }

// PatientNote is a free-text note attached to a patient record.
type PatientNote struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	PatientID string    `json:"patient_id" gorm:"type:char(36);not null;index"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	NoteType  string    `json:"note_type"  gorm:"type:varchar(16);not null;default:'general'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Patient Patient `json:"-" gorm:"foreignKey:PatientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PatientNote.
func (PatientNote) TableName() string { return "patient_notes" }

// Allowed values for the enumerated clinical fields.
var (
	ToothStatuses = []string{"planned", "in-progress", "completed", "cancelled"}
	Priorities    = []string{"low", "medium", "high", "urgent"}
	PlanStatuses  = []string{"draft", "approved", "in-progress", "completed"}
	NoteTypes     = []string{"general", "treatment", "payment", "alert"}
)

// OneOf reports whether v is one of allowed.
func OneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// ValidToothNumber reports whether n is an FDI tooth number: quadrants 1–4
// with positions 1–8 (permanent) or quadrants 5–8 with positions 1–5
// (deciduous).
func ValidToothNumber(n int) bool {
	q, p := n/10, n%10
	switch {
	case q >= 1 && q <= 4:
		return p >= 1 && p <= 8
	case q >= 5 && q <= 8:
		return p >= 1 && p <= 5
	}
	return false
}
