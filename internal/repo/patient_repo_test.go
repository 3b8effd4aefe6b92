package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

func TestPatientCRUD(t *testing.T) {
	db := newTestDB(t, &domain.Patient{})
	ctx := context.Background()

	p := &domain.Patient{Name: "Ana Souza", Email: "ana@example.com", Active: true}
	if err := CreatePatient(ctx, db, p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	if p.ID == "" {
		t.Fatal("expected generated ID")
	}

	dup := &domain.Patient{Name: "Other", Email: "ana@example.com", Active: true}
	if err := CreatePatient(ctx, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on same email, got %v", err)
	}

	ok, err := PatientExists(ctx, db, p.ID)
	if err != nil || !ok {
		t.Fatalf("PatientExists = %v, %v", ok, err)
	}
	ok, _ = PatientExists(ctx, db, "nope")
	if ok {
		t.Fatal("PatientExists(nope) = true")
	}

	phone := "+55 11 99999-0000"
	if err := UpdatePatient(ctx, db, p.ID, map[string]any{"phone": phone, "active": false}); err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	got, err := GetPatient(ctx, db, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Phone == nil || *got.Phone != phone || got.Active {
		t.Fatalf("update not applied: %+v", got)
	}

	if err := UpdatePatient(ctx, db, "nope", map[string]any{"name": "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := DeletePatient(ctx, db, p.ID); err != nil {
		t.Fatalf("DeletePatient: %v", err)
	}
	if err := DeletePatient(ctx, db, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPatientEmailTaken(t *testing.T) {
	db := newTestDB(t, &domain.Patient{})
	ctx := context.Background()

	a := &domain.Patient{Name: "A", Email: "a@example.com", Active: true}
	b := &domain.Patient{Name: "B", Email: "b@example.com", Active: true}
	for _, p := range []*domain.Patient{a, b} {
		if err := CreatePatient(ctx, db, p); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		email, exclude string
		want           bool
	}{
		{"a@example.com", "", true},
		{" A@Example.com ", "", true},
		{"a@example.com", a.ID, false},
		{"a@example.com", b.ID, true},
		{"c@example.com", "", false},
	}
	for _, c := range cases {
		got, err := PatientEmailTaken(ctx, db, c.email, c.exclude)
		if err != nil || got != c.want {
			t.Errorf("PatientEmailTaken(%q, %q) = %v, %v; want %v", c.email, c.exclude, got, err, c.want)
		}
	}

	if err := UpdatePatient(ctx, db, b.ID, map[string]any{"email": "a@example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate when moving email onto another patient, got %v", err)
	}
}

func TestListPatients(t *testing.T) {
	db := newTestDB(t, &domain.Patient{})
	ctx := context.Background()

	for _, e := range []string{"1@x.io", "2@x.io", "3@x.io"} {
		if err := CreatePatient(ctx, db, &domain.Patient{Name: e, Email: e, Active: true}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := CountPatients(ctx, db)
	if err != nil || n != 3 {
		t.Fatalf("CountPatients = %d, %v", n, err)
	}
	page, err := ListPatientsPage(ctx, db, 0, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("ListPatientsPage = %d rows, %v", len(page), err)
	}
	all, err := ListAllPatients(ctx, db)
	if err != nil || len(all) != 3 {
		t.Fatalf("ListAllPatients = %d rows, %v", len(all), err)
	}

	some, err := GetPatientsByIDs(ctx, db, []string{all[0].ID, all[2].ID, "ghost"})
	if err != nil || len(some) != 2 {
		t.Fatalf("GetPatientsByIDs = %d rows, %v", len(some), err)
	}
	none, err := GetPatientsByIDs(ctx, db, nil)
	if err != nil || none != nil {
		t.Fatalf("GetPatientsByIDs(nil) = %v, %v", none, err)
	}
}
