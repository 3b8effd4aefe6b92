package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

func TestToothRecords_Lifecycle(t *testing.T) {
	e := newTestEnv(t)
	p := e.register(t, "Ana Lima", "ana@example.com", nil)
	base := "/patients/" + p.ID + "/teeth"

	w := e.do(t, http.MethodPost, base, map[string]any{"tooth_number": 36, "procedure": "root canal", "cost": 850})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	rec := decode[domain.ToothRecord](t, w)
	if rec.Status != "planned" || rec.Priority != "medium" || rec.CompletedAt != nil {
		t.Fatalf("defaults not applied: %+v", rec)
	}

	// 19 is not an FDI tooth
	w = e.do(t, http.MethodPost, base, map[string]any{"tooth_number": 19, "procedure": "filling"})
	er := expectError(t, w, http.StatusBadRequest, ErrCodeValidation)
	if len(er.Fields) != 1 || er.Fields[0] != "tooth_number" {
		t.Fatalf("fields = %v", er.Fields)
	}
	expectError(t, e.do(t, http.MethodPost, base, map[string]any{"tooth_number": 36, "procedure": "x", "status": "lost"}),
		http.StatusBadRequest, ErrCodeValidation)
	expectError(t, e.do(t, http.MethodPost, base, map[string]any{"procedure": "x"}),
		http.StatusBadRequest, ErrCodeMissingFields)

	w = e.do(t, http.MethodPatch, base+"/"+rec.ID, map[string]any{"status": "completed"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body.String())
	}
	if got := decode[domain.ToothRecord](t, w); got.Status != "completed" || got.CompletedAt == nil {
		t.Fatalf("completion not stamped: %+v", got)
	}
	expectError(t, e.do(t, http.MethodPatch, base+"/missing", map[string]any{"status": "completed"}),
		http.StatusNotFound, ErrCodeNotFound)

	w = e.do(t, http.MethodGet, base, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	if chart := decode[[]domain.ToothRecord](t, w); len(chart) != 1 || chart[0].ToothNumber != 36 {
		t.Fatalf("chart = %+v", chart)
	}
}

func TestTreatmentPlansAndNotes(t *testing.T) {
	e := newTestEnv(t)
	p := e.register(t, "Bruno Reis", "bruno@example.com", nil)
	plans := "/patients/" + p.ID + "/plans"
	notes := "/patients/" + p.ID + "/notes"

	w := e.do(t, http.MethodPost, plans, map[string]any{"title": "Full rehabilitation", "estimated_sessions": 6})
	if w.Code != http.StatusCreated {
		t.Fatalf("create plan: %d %s", w.Code, w.Body.String())
	}
	plan := decode[domain.TreatmentPlan](t, w)
	if plan.Status != "draft" {
		t.Fatalf("plan status = %q", plan.Status)
	}

	w = e.do(t, http.MethodPatch, plans+"/"+plan.ID, map[string]any{"status": "approved"})
	if w.Code != http.StatusOK || decode[domain.TreatmentPlan](t, w).Status != "approved" {
		t.Fatalf("patch plan: %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPost, notes, map[string]any{"content": "Prefers morning slots"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create note: %d %s", w.Code, w.Body.String())
	}
	note := decode[domain.PatientNote](t, w)
	if note.NoteType != "general" {
		t.Fatalf("note type = %q", note.NoteType)
	}
	expectError(t, e.do(t, http.MethodPatch, notes+"/"+note.ID, map[string]any{"content": "   "}),
		http.StatusBadRequest, ErrCodeValidation)

	if w = e.do(t, http.MethodGet, notes, nil); len(decode[[]domain.PatientNote](t, w)) != 1 {
		t.Fatalf("notes = %s", w.Body.String())
	}

	if w = e.do(t, http.MethodDelete, plans+"/"+plan.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete plan: %d", w.Code)
	}
	expectError(t, e.do(t, http.MethodDelete, plans+"/"+plan.ID, nil), http.StatusNotFound, ErrCodeNotFound)
	if w = e.do(t, http.MethodDelete, notes+"/"+note.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete note: %d", w.Code)
	}
	if w = e.do(t, http.MethodGet, plans, nil); len(decode[[]domain.TreatmentPlan](t, w)) != 0 {
		t.Fatalf("plans after delete = %s", w.Body.String())
	}
}

func TestRecords_UnknownPatient(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/patients/nope/teeth", "/patients/nope/plans", "/patients/nope/notes"} {
		expectError(t, e.do(t, http.MethodGet, path, nil), http.StatusNotFound, ErrCodeNotFound)
	}
	expectError(t, e.do(t, http.MethodPost, "/patients/nope/notes", map[string]any{"content": "hi"}),
		http.StatusNotFound, ErrCodeNotFound)
}
