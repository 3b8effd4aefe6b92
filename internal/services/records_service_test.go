package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

func newRecords(t *testing.T) (*RecordsService, string) {
	t.Helper()
	db := newSvcDB(t, &domain.Patient{}, &domain.ToothRecord{}, &domain.TreatmentPlan{}, &domain.PatientNote{})
	p, err := NewPatientService(db).Create(context.Background(), NewPatient{Name: "Ana", Email: "ana@example.com"})
	if err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	return NewRecordsService(db), p.ID
}

func TestRecordsService_ToothRecords(t *testing.T) {
	s, pid := newRecords(t)
	ctx := context.Background()

	r, err := s.AddToothRecord(ctx, pid, NewToothRecord{ToothNumber: 36, Procedure: "Restauração"})
	if err != nil {
		t.Fatalf("AddToothRecord: %v", err)
	}
	if r.Status != "planned" || r.Priority != "medium" || r.CompletedAt != nil {
		t.Fatalf("defaults not applied: %+v", r)
	}

	var ve *ValidationError
	for _, n := range []int{10, 19, 49, 56, 90} {
		if _, err := s.AddToothRecord(ctx, pid, NewToothRecord{ToothNumber: n, Procedure: "x"}); !errors.As(err, &ve) {
			t.Fatalf("tooth %d: expected ValidationError, got %v", n, err)
		}
	}
	if _, err := s.AddToothRecord(ctx, pid, NewToothRecord{ToothNumber: 11, Procedure: "x", Status: "done"}); !errors.As(err, &ve) {
		t.Fatalf("expected status ValidationError, got %v", err)
	}
	if _, err := s.AddToothRecord(ctx, pid, NewToothRecord{ToothNumber: 11}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
	if _, err := s.AddToothRecord(ctx, "nope", NewToothRecord{ToothNumber: 11, Procedure: "x"}); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}

	got, err := s.UpdateToothRecord(ctx, pid, r.ID, ToothRecordChanges{Status: ptr("Completed"), Notes: ptr("ok")})
	if err != nil || got.Status != "completed" || got.CompletedAt == nil || got.Notes == nil {
		t.Fatalf("complete: %+v %v", got, err)
	}
	got, err = s.UpdateToothRecord(ctx, pid, r.ID, ToothRecordChanges{Status: ptr("in-progress")})
	if err != nil || got.CompletedAt != nil {
		t.Fatalf("reopen should clear completed_at: %+v %v", got, err)
	}
	if _, err := s.UpdateToothRecord(ctx, pid, "nope", ToothRecordChanges{Notes: ptr("x")}); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	if _, err := s.AddToothRecord(ctx, pid, NewToothRecord{ToothNumber: 11, Procedure: "Limpeza"}); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListToothRecords(ctx, pid)
	if err != nil || len(list) != 2 || list[0].ToothNumber != 11 {
		t.Fatalf("list: %+v %v", list, err)
	}
	if _, err := s.ListToothRecords(ctx, "nope"); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestRecordsService_TreatmentPlans(t *testing.T) {
	s, pid := newRecords(t)
	ctx := context.Background()

	p, err := s.AddTreatmentPlan(ctx, pid, NewTreatmentPlan{Title: "Ortodontia", EstimatedSessions: ptr(12)})
	if err != nil || p.Status != "draft" {
		t.Fatalf("AddTreatmentPlan: %+v %v", p, err)
	}
	if _, err := s.AddTreatmentPlan(ctx, pid, NewTreatmentPlan{Title: "x", EstimatedCost: ptr(-1.0)}); err == nil {
		t.Fatal("expected ValidationError for negative cost")
	}

	got, err := s.UpdateTreatmentPlan(ctx, pid, p.ID, TreatmentPlanChanges{Status: ptr("approved"), EstimatedCost: ptr(3200.0)})
	if err != nil || got.Status != "approved" || got.EstimatedCost == nil || *got.EstimatedCost != 3200 {
		t.Fatalf("update: %+v %v", got, err)
	}

	list, err := s.ListTreatmentPlans(ctx, pid)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %+v %v", list, err)
	}
	if err := s.DeleteTreatmentPlan(ctx, pid, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteTreatmentPlan(ctx, pid, p.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRecordsService_Notes(t *testing.T) {
	s, pid := newRecords(t)
	ctx := context.Background()

	n, err := s.AddNote(ctx, pid, " Alérgico a penicilina ", "ALERT")
	if err != nil || n.NoteType != "alert" || n.Content != "Alérgico a penicilina" {
		t.Fatalf("AddNote: %+v %v", n, err)
	}
	if def, err := s.AddNote(ctx, pid, "retorno em 6 meses", ""); err != nil || def.NoteType != "general" {
		t.Fatalf("default type: %+v %v", def, err)
	}
	if _, err := s.AddNote(ctx, pid, "  ", ""); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}

	got, err := s.UpdateNote(ctx, pid, n.ID, PatientNoteChanges{NoteType: ptr("payment")})
	if err != nil || got.NoteType != "payment" {
		t.Fatalf("update: %+v %v", got, err)
	}
	// Other patients cannot reach the note.
	if _, err := s.UpdateNote(ctx, "other", n.ID, PatientNoteChanges{Content: ptr("x")}); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	list, err := s.ListNotes(ctx, pid)
	if err != nil || len(list) != 2 {
		t.Fatalf("list: %+v %v", list, err)
	}
	if err := s.DeleteNote(ctx, pid, n.ID); err != nil {
		t.Fatal(err)
	}
}
