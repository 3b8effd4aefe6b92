package services

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/text/language"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

func newPatients(t *testing.T) *PatientService {
	t.Helper()
	return NewPatientService(newSvcDB(t, &domain.Patient{}))
}

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  joão   da silva ": "João da Silva",
		"MARIA DOS SANTOS":   "Maria dos Santos",
		"McDonald Souza":     "McDonald Souza",
		"de souza":           "De Souza",
		"":                   "",
	}
	for in, want := range cases {
		if got := normalizeName(in, language.BrazilianPortuguese); got != want {
			t.Errorf("normalizeName(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestPatientService_Create(t *testing.T) {
	s := newPatients(t)
	ctx := context.Background()

	p, err := s.Create(ctx, NewPatient{
		Name: "ana lima", Email: " Ana@Example.com ", Phone: ptr(""), BirthDate: ptr("1990-02-30"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Name != "Ana Lima" || p.Email != "ana@example.com" || !p.Active {
		t.Fatalf("unexpected patient: %+v", p)
	}
	if p.Phone != nil || p.BirthDate != nil {
		t.Fatalf("blank phone and invalid birth date should be dropped: %+v", p)
	}

	if _, err := s.Create(ctx, NewPatient{Name: "Outra", Email: "ANA@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := s.Create(ctx, NewPatient{}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}

	withDate, err := s.Create(ctx, NewPatient{Name: "Bia", Email: "bia@example.com", BirthDate: ptr("1985-07-14")})
	if err != nil || withDate.BirthDate == nil || withDate.BirthDate.Year() != 1985 {
		t.Fatalf("birth date: %+v %v", withDate, err)
	}
}

func TestPatientService_PatchGetDelete(t *testing.T) {
	s := newPatients(t)
	ctx := context.Background()
	a, _ := s.Create(ctx, NewPatient{Name: "Ana", Email: "ana@example.com", Allergies: ptr("látex")})
	b, _ := s.Create(ctx, NewPatient{Name: "Bruno", Email: "bruno@example.com"})

	if _, err := s.Patch(ctx, b.ID, PatientChanges{Email: ptr("ana@example.com")}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	got, err := s.Patch(ctx, a.ID, PatientChanges{
		Email: ptr("ANA@example.com"), Allergies: ptr(" "), Active: ptr(false), Phone: ptr("11 9999-0000"),
	})
	if err != nil {
		t.Fatalf("own email should be allowed: %v", err)
	}
	if got.Allergies != nil || got.Active || got.Phone == nil {
		t.Fatalf("patch not applied: %+v", got)
	}
	if _, err := s.Patch(ctx, a.ID, PatientChanges{Name: ptr(" ")}); err == nil {
		t.Fatal("expected ValidationError for blank name")
	}
	if _, err := s.Patch(ctx, "nope", PatientChanges{Name: ptr("X")}); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, a.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	if err := s.Delete(ctx, a.ID); !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound on second delete, got %v", err)
	}
}

func TestPatientService_ListPage(t *testing.T) {
	s := newPatients(t)
	ctx := context.Background()

	items, total, err := s.ListPage(ctx, 0, 0)
	if err != nil || total != 0 || len(items) != 0 || items == nil {
		t.Fatalf("empty: %v %d %v", items, total, err)
	}
	for _, e := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		if _, err := s.Create(ctx, NewPatient{Name: e, Email: e}); err != nil {
			t.Fatal(err)
		}
	}
	items, total, err = s.ListPage(ctx, 2, 2)
	if err != nil || total != 3 || len(items) != 1 {
		t.Fatalf("page 2: %v %d %v", items, total, err)
	}
	n, latest, err := s.Fingerprint(ctx)
	if err != nil || n != 3 || latest == nil {
		t.Fatalf("fingerprint: %d %v %v", n, latest, err)
	}
}

func TestPatientService_Search(t *testing.T) {
	s := newPatients(t)
	ctx := context.Background()
	joao, _ := s.Create(ctx, NewPatient{Name: "João da Silva", Email: "joao@example.com", CPF: ptr("123.456.789-00")})
	maria, _ := s.Create(ctx, NewPatient{Name: "Maria Silva", Email: "maria@example.com"})
	s.Create(ctx, NewPatient{Name: "Carlos Souza", Email: "carlos@example.com"})

	got, err := s.Search(ctx, "joao", 0)
	if err != nil || len(got) != 1 || got[0].ID != joao.ID {
		t.Fatalf("joao: %+v %v", got, err)
	}

	got, err = s.Search(ctx, "silva", 10)
	if err != nil || len(got) != 2 {
		t.Fatalf("silva: %+v %v", got, err)
	}
	if got[0].ID != maria.ID {
		t.Fatalf("shorter record should rank first, got %s", got[0].Name)
	}

	if got, _ := s.Search(ctx, "789", 5); len(got) != 1 || got[0].ID != joao.ID {
		t.Fatalf("cpf digits: %+v", got)
	}
	if got, _ := s.Search(ctx, "da", 5); len(got) != 0 {
		t.Fatalf("particles alone should not match: %+v", got)
	}
	if got, _ := s.Search(ctx, "  ", 5); len(got) != 0 {
		t.Fatalf("blank query: %+v", got)
	}
}
