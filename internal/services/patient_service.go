// Package services – PatientService
//
// PatientService manages the clinic's patient registry: creation with unique
// emails, paginated listing, partial updates, deletion (clinical records go
// with the patient), and a ranked free-text search over name, email, phone
// and CPF backed by internal/search.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-dental-backend/internal/domain"
	"github.com/tbourn/go-dental-backend/internal/repo"
	"github.com/tbourn/go-dental-backend/internal/search"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/language"
)

// searchStopwords are Portuguese name particles ignored by patient search.
var searchStopwords = []string{"da", "das", "de", "do", "dos", "e"}

// PatientService provides patient registry operations.
type PatientService struct {
	DB *gorm.DB

	// NameLocale drives name casing rules.
	NameLocale language.Tag
	// SearchLimit caps search results when the caller asks for none.
	SearchLimit int
}

// NewPatientService constructs a PatientService with Brazilian Portuguese
// casing and up to 20 search hits.
func NewPatientService(db *gorm.DB) *PatientService {
	return &PatientService{DB: db, NameLocale: language.BrazilianPortuguese, SearchLimit: 20}
}

// NewPatient is the input of Create. BirthDate is yyyy-mm-dd; values that do
// not parse are dropped.
type NewPatient struct {
	Name                  string
	Email                 string
	Phone                 *string
	CPF                   *string
	BirthDate             *string
	Address               *string
	MedicalHistory        *string
	Allergies             *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
}

// PatientChanges carries the fields present in a patch; nil means "not sent".
type PatientChanges struct {
	Name                  *string
	Email                 *string
	Phone                 *string
	CPF                   *string
	BirthDate             *string
	Address               *string
	MedicalHistory        *string
	Allergies             *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
	Active                *bool
}

// Create registers a patient. Name and email are required and the email
// must not belong to another patient.
func (s *PatientService) Create(ctx context.Context, in NewPatient) (*domain.Patient, error) {
	tr := otel.Tracer("services/PatientService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	name := normalizeName(in.Name, s.NameLocale)
	email := normalizeEmail(in.Email)
	var miss []string
	if name == "" {
		miss = append(miss, "name")
	}
	if email == "" {
		miss = append(miss, "email")
	}
	if len(miss) > 0 {
		return nil, missing(miss...)
	}

	taken, err := repo.PatientEmailTaken(ctx, s.DB, email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	p := &domain.Patient{
		Name:                  name,
		Email:                 email,
		Phone:                 blankToNil(in.Phone),
		CPF:                   blankToNil(in.CPF),
		BirthDate:             parseBirthDate(in.BirthDate),
		Address:               blankToNil(in.Address),
		MedicalHistory:        blankToNil(in.MedicalHistory),
		Allergies:             blankToNil(in.Allergies),
		EmergencyContactName:  blankToNil(in.EmergencyContactName),
		EmergencyContactPhone: blankToNil(in.EmergencyContactPhone),
		Active:                true,
	}
	if err := repo.CreatePatient(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("patient.id", p.ID))
	return p, nil
}

// Get returns one patient.
func (s *PatientService) Get(ctx context.Context, id string) (*domain.Patient, error) {
	p, err := repo.GetPatient(ctx, s.DB, id)
	return p, patientErr(err)
}

// ListPage returns patients newest first with the total count.
func (s *PatientService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Patient, int64, error) {
	tr := otel.Tracer("services/PatientService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	total, err := repo.CountPatients(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Patient{}, 0, nil
	}
	items, err := repo.ListPatientsPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Fingerprint returns the count and latest update of the registry, the
// inputs of the list ETag.
func (s *PatientService) Fingerprint(ctx context.Context) (int64, *time.Time, error) {
	return repo.PatientsStats(ctx, s.DB)
}

// Patch applies the sent fields. A new email is checked against every other
// patient; an empty birth date clears it.
func (s *PatientService) Patch(ctx context.Context, id string, ch PatientChanges) (*domain.Patient, error) {
	tr := otel.Tracer("services/PatientService")
	ctx, span := tr.Start(ctx, "Patch",
		trace.WithAttributes(attribute.String("patient.id", id)),
	)
	defer span.End()

	cols := map[string]any{}
	if ch.Name != nil {
		name := normalizeName(*ch.Name, s.NameLocale)
		if name == "" {
			return nil, invalid("name", "must not be empty")
		}
		cols["name"] = name
	}
	if ch.Email != nil {
		email := normalizeEmail(*ch.Email)
		if email == "" {
			return nil, invalid("email", "must not be empty")
		}
		taken, err := repo.PatientEmailTaken(ctx, s.DB, email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailTaken
		}
		cols["email"] = email
	}
	if ch.BirthDate != nil {
		if strings.TrimSpace(*ch.BirthDate) == "" {
			cols["birth_date"] = nil
		} else if bd := parseBirthDate(ch.BirthDate); bd != nil {
			cols["birth_date"] = *bd
		}
	}
	for col, v := range map[string]*string{
		"phone":                   ch.Phone,
		"cpf":                     ch.CPF,
		"address":                 ch.Address,
		"medical_history":         ch.MedicalHistory,
		"allergies":               ch.Allergies,
		"emergency_contact_name":  ch.EmergencyContactName,
		"emergency_contact_phone": ch.EmergencyContactPhone,
	} {
		if v != nil {
			cols[col] = blankToNil(v)
		}
	}
	if ch.Active != nil {
		cols["active"] = *ch.Active
	}

	if err := repo.UpdatePatient(ctx, s.DB, id, cols); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, patientErr(err)
	}
	p, err := repo.GetPatient(ctx, s.DB, id)
	return p, patientErr(err)
}

// Delete removes a patient and, by cascade, their clinical records.
func (s *PatientService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/PatientService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("patient.id", id)),
	)
	defer span.End()

	return patientErr(repo.DeletePatient(ctx, s.DB, id))
}

// Search ranks patients against q by token overlap over name, email, phone
// and CPF. Accents and case are ignored. limit <= 0 uses SearchLimit.
func (s *PatientService) Search(ctx context.Context, q string, limit int) ([]domain.Patient, error) {
	tr := otel.Tracer("services/PatientService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(
			attribute.Int("query.len", len(q)),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	if strings.TrimSpace(q) == "" {
		return []domain.Patient{}, nil
	}
	if limit <= 0 {
		limit = s.SearchLimit
	}

	all, err := repo.ListAllPatients(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	docs := make([]search.Document, 0, len(all))
	byID := make(map[string]domain.Patient, len(all))
	for _, p := range all {
		docs = append(docs, search.Document{ID: p.ID, Text: patientText(p)})
		byID[p.ID] = p
	}

	hits := search.NewIndex(docs, search.WithStopwords(searchStopwords)).TopK(q, limit)
	out := make([]domain.Patient, 0, len(hits))
	for _, h := range hits {
		out = append(out, byID[h.ID])
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

func patientText(p domain.Patient) string {
	parts := []string{p.Name, p.Email}
	for _, v := range []*string{p.Phone, p.CPF} {
		if v != nil {
			parts = append(parts, *v)
		}
	}
	return strings.Join(parts, " ")
}

// parseBirthDate returns nil for absent or unparseable dates.
func parseBirthDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(domain.DateLayout, strings.TrimSpace(*s))
	if err != nil {
		return nil
	}
	return &t
}

func patientErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrPatientNotFound
	}
	return err
}
