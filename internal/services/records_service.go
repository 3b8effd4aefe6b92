// Package services – RecordsService
//
// RecordsService manages the clinical records kept per patient: the tooth
// chart (FDI numbered procedure entries), treatment plans, and free-text
// notes. Records are only reachable through their patient; adding to or
// listing the records of an unknown patient yields ErrPatientNotFound.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-dental-backend/internal/domain"
	"github.com/tbourn/go-dental-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordsService provides clinical record operations.
type RecordsService struct {
	DB *gorm.DB
}

func NewRecordsService(db *gorm.DB) *RecordsService { return &RecordsService{DB: db} }

// NewToothRecord is the input of AddToothRecord. Empty Status and Priority
// default to planned and medium.
type NewToothRecord struct {
	ToothNumber int
	Procedure   string
	Status      string
	Priority    string
	Notes       *string
	Cost        *float64
}

// ToothRecordChanges carries the fields present in a tooth record update.
type ToothRecordChanges struct {
	Procedure *string
	Status    *string
	Priority  *string
	Notes     *string
	Cost      *float64
}

// NewTreatmentPlan is the input of AddTreatmentPlan.
type NewTreatmentPlan struct {
	Title             string
	Description       string
	Status            string
	EstimatedCost     *float64
	EstimatedSessions *int
}

// TreatmentPlanChanges carries the fields present in a plan update.
type TreatmentPlanChanges struct {
	Title             *string
	Description       *string
	Status            *string
	EstimatedCost     *float64
	EstimatedSessions *int
}

// PatientNoteChanges carries the fields present in a note update.
type PatientNoteChanges struct {
	Content  *string
	NoteType *string
}

func (s *RecordsService) span(ctx context.Context, op, patientID string) (context.Context, trace.Span) {
	return otel.Tracer("services/RecordsService").Start(ctx, op,
		trace.WithAttributes(attribute.String("patient.id", patientID)),
	)
}

// requirePatient returns ErrPatientNotFound unless the patient exists.
func (s *RecordsService) requirePatient(ctx context.Context, patientID string) error {
	ok, err := repo.PatientExists(ctx, s.DB, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPatientNotFound
	}
	return nil
}

// --- tooth chart ---

// AddToothRecord records a procedure on one tooth.
func (s *RecordsService) AddToothRecord(ctx context.Context, patientID string, in NewToothRecord) (*domain.ToothRecord, error) {
	ctx, span := s.span(ctx, "AddToothRecord", patientID)
	defer span.End()

	procedure := strings.TrimSpace(in.Procedure)
	if procedure == "" {
		return nil, missing("procedure")
	}
	if !domain.ValidToothNumber(in.ToothNumber) {
		return nil, invalid("tooth_number", "must be an FDI tooth number (11-48, 51-85)")
	}
	status, err := enumOr(in.Status, "planned", "status", domain.ToothStatuses)
	if err != nil {
		return nil, err
	}
	priority, err := enumOr(in.Priority, "medium", "priority", domain.Priorities)
	if err != nil {
		return nil, err
	}
	if in.Cost != nil && *in.Cost < 0 {
		return nil, invalid("cost", "must not be negative")
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}

	r := &domain.ToothRecord{
		PatientID:   patientID,
		ToothNumber: in.ToothNumber,
		Procedure:   procedure,
		Status:      status,
		Priority:    priority,
		Notes:       blankToNil(in.Notes),
		Cost:        in.Cost,
	}
	if status == "completed" {
		now := time.Now().UTC()
		r.CompletedAt = &now
	}
	if err := repo.CreateToothRecord(ctx, s.DB, r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateToothRecord applies the sent fields. Moving to completed stamps
// CompletedAt; moving away from it clears the stamp.
func (s *RecordsService) UpdateToothRecord(ctx context.Context, patientID, id string, ch ToothRecordChanges) (*domain.ToothRecord, error) {
	ctx, span := s.span(ctx, "UpdateToothRecord", patientID)
	defer span.End()

	cols := map[string]any{}
	if ch.Procedure != nil {
		p := strings.TrimSpace(*ch.Procedure)
		if p == "" {
			return nil, invalid("procedure", "must not be empty")
		}
		cols["procedure"] = p
	}
	if ch.Status != nil {
		status, err := enumOr(*ch.Status, "", "status", domain.ToothStatuses)
		if err != nil {
			return nil, err
		}
		if status != "" {
			cols["status"] = status
			if status == "completed" {
				cols["completed_at"] = time.Now().UTC()
			} else {
				cols["completed_at"] = nil
			}
		}
	}
	if ch.Priority != nil {
		priority, err := enumOr(*ch.Priority, "", "priority", domain.Priorities)
		if err != nil {
			return nil, err
		}
		if priority != "" {
			cols["priority"] = priority
		}
	}
	if ch.Notes != nil {
		cols["notes"] = blankToNil(ch.Notes)
	}
	if ch.Cost != nil {
		if *ch.Cost < 0 {
			return nil, invalid("cost", "must not be negative")
		}
		cols["cost"] = *ch.Cost
	}

	if len(cols) > 0 {
		if err := repo.UpdateToothRecord(ctx, s.DB, patientID, id, cols); err != nil {
			return nil, recordErr(err)
		}
	}
	r, err := repo.GetToothRecord(ctx, s.DB, patientID, id)
	return r, recordErr(err)
}

// ListToothRecords returns the tooth chart ordered by tooth number.
func (s *RecordsService) ListToothRecords(ctx context.Context, patientID string) ([]domain.ToothRecord, error) {
	ctx, span := s.span(ctx, "ListToothRecords", patientID)
	defer span.End()

	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	return repo.ListToothRecords(ctx, s.DB, patientID)
}

// --- treatment plans ---

// AddTreatmentPlan creates a plan; status defaults to draft.
func (s *RecordsService) AddTreatmentPlan(ctx context.Context, patientID string, in NewTreatmentPlan) (*domain.TreatmentPlan, error) {
	ctx, span := s.span(ctx, "AddTreatmentPlan", patientID)
	defer span.End()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, missing("title")
	}
	status, err := enumOr(in.Status, "draft", "status", domain.PlanStatuses)
	if err != nil {
		return nil, err
	}
	if err := validateEstimates(in.EstimatedCost, in.EstimatedSessions); err != nil {
		return nil, err
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}

	p := &domain.TreatmentPlan{
		PatientID:         patientID,
		Title:             title,
		Description:       strings.TrimSpace(in.Description),
		Status:            status,
		EstimatedCost:     in.EstimatedCost,
		EstimatedSessions: in.EstimatedSessions,
	}
	if err := repo.CreateTreatmentPlan(ctx, s.DB, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateTreatmentPlan applies the sent fields.
func (s *RecordsService) UpdateTreatmentPlan(ctx context.Context, patientID, id string, ch TreatmentPlanChanges) (*domain.TreatmentPlan, error) {
	ctx, span := s.span(ctx, "UpdateTreatmentPlan", patientID)
	defer span.End()

	cols := map[string]any{}
	if ch.Title != nil {
		t := strings.TrimSpace(*ch.Title)
		if t == "" {
			return nil, invalid("title", "must not be empty")
		}
		cols["title"] = t
	}
	if ch.Description != nil {
		cols["description"] = strings.TrimSpace(*ch.Description)
	}
	if ch.Status != nil {
		status, err := enumOr(*ch.Status, "", "status", domain.PlanStatuses)
		if err != nil {
			return nil, err
		}
		if status != "" {
			cols["status"] = status
		}
	}
	if err := validateEstimates(ch.EstimatedCost, ch.EstimatedSessions); err != nil {
		return nil, err
	}
	if ch.EstimatedCost != nil {
		cols["estimated_cost"] = *ch.EstimatedCost
	}
	if ch.EstimatedSessions != nil {
		cols["estimated_sessions"] = *ch.EstimatedSessions
	}

	if len(cols) > 0 {
		if err := repo.UpdateTreatmentPlan(ctx, s.DB, patientID, id, cols); err != nil {
			return nil, recordErr(err)
		}
	}
	p, err := repo.GetTreatmentPlan(ctx, s.DB, patientID, id)
	return p, recordErr(err)
}

// DeleteTreatmentPlan removes a plan.
func (s *RecordsService) DeleteTreatmentPlan(ctx context.Context, patientID, id string) error {
	ctx, span := s.span(ctx, "DeleteTreatmentPlan", patientID)
	defer span.End()

	return recordErr(repo.DeleteTreatmentPlan(ctx, s.DB, patientID, id))
}

// ListTreatmentPlans returns the patient's plans, newest first.
func (s *RecordsService) ListTreatmentPlans(ctx context.Context, patientID string) ([]domain.TreatmentPlan, error) {
	ctx, span := s.span(ctx, "ListTreatmentPlans", patientID)
	defer span.End()

	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	return repo.ListTreatmentPlans(ctx, s.DB, patientID)
}

// --- notes ---

// AddNote attaches a note; the type defaults to general.
func (s *RecordsService) AddNote(ctx context.Context, patientID, content, noteType string) (*domain.PatientNote, error) {
	ctx, span := s.span(ctx, "AddNote", patientID)
	defer span.End()

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, missing("content")
	}
	noteType, err := enumOr(noteType, "general", "note_type", domain.NoteTypes)
	if err != nil {
		return nil, err
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}

	n := &domain.PatientNote{PatientID: patientID, Content: content, NoteType: noteType}
	if err := repo.CreatePatientNote(ctx, s.DB, n); err != nil {
		return nil, err
	}
	return n, nil
}

// UpdateNote applies the sent fields.
func (s *RecordsService) UpdateNote(ctx context.Context, patientID, id string, ch PatientNoteChanges) (*domain.PatientNote, error) {
	ctx, span := s.span(ctx, "UpdateNote", patientID)
	defer span.End()

	cols := map[string]any{}
	if ch.Content != nil {
		c := strings.TrimSpace(*ch.Content)
		if c == "" {
			return nil, invalid("content", "must not be empty")
		}
		cols["content"] = c
	}
	if ch.NoteType != nil {
		t, err := enumOr(*ch.NoteType, "", "note_type", domain.NoteTypes)
		if err != nil {
			return nil, err
		}
		if t != "" {
			cols["note_type"] = t
		}
	}

	if len(cols) > 0 {
		if err := repo.UpdatePatientNote(ctx, s.DB, patientID, id, cols); err != nil {
			return nil, recordErr(err)
		}
	}
	n, err := repo.GetPatientNote(ctx, s.DB, patientID, id)
	return n, recordErr(err)
}

// DeleteNote removes a note.
func (s *RecordsService) DeleteNote(ctx context.Context, patientID, id string) error {
	ctx, span := s.span(ctx, "DeleteNote", patientID)
	defer span.End()

	return recordErr(repo.DeletePatientNote(ctx, s.DB, patientID, id))
}

// ListNotes returns the patient's notes, newest first.
func (s *RecordsService) ListNotes(ctx context.Context, patientID string) ([]domain.PatientNote, error) {
	ctx, span := s.span(ctx, "ListNotes", patientID)
	defer span.End()

	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	return repo.ListPatientNotes(ctx, s.DB, patientID)
}

// enumOr lowercases v and checks it against allowed; blank v yields def.
func enumOr(v, def, field string, allowed []string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return def, nil
	}
	if !domain.OneOf(v, allowed) {
		return "", invalid(field, "must be one of "+strings.Join(allowed, ", "))
	}
	return v, nil
}

func validateEstimates(cost *float64, sessions *int) error {
	if cost != nil && *cost < 0 {
		return invalid("estimated_cost", "must not be negative")
	}
	if sessions != nil && *sessions < 0 {
		return invalid("estimated_sessions", "must not be negative")
	}
	return nil
}

func recordErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrRecordNotFound
	}
	return err
}
