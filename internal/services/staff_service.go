// Package services – StaffService
//
// StaffService manages clinic employees. No credentials are stored: staff
// identities are asserted by bearer tokens, and the role recorded here is
// what admin-only routes check against.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-dental-backend/internal/domain"
	"github.com/tbourn/go-dental-backend/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/language"
)

// StaffService provides staff registry operations.
type StaffService struct {
	DB         *gorm.DB
	NameLocale language.Tag
}

func NewStaffService(db *gorm.DB) *StaffService {
	return &StaffService{DB: db, NameLocale: language.BrazilianPortuguese}
}

// StaffChanges carries the fields present in a patch.
type StaffChanges struct {
	Name   *string
	Email  *string
	Role   *string
	Active *bool
}

// Create registers a staff member. Only the email is required; the name
// defaults to the email's local part and the role to staff.
func (s *StaffService) Create(ctx context.Context, name, email, role string) (*domain.Staff, error) {
	tr := otel.Tracer("services/StaffService")
	ctx, span := tr.Start(ctx, "Create")
	defer span.End()

	email = normalizeEmail(email)
	if email == "" {
		return nil, missing("email")
	}
	name = normalizeName(name, s.NameLocale)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	role, err := normalizeRole(role)
	if err != nil {
		return nil, err
	}

	taken, err := repo.StaffEmailTaken(ctx, s.DB, email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrEmailTaken
	}

	m := &domain.Staff{Name: name, Email: email, Role: role, Active: true}
	if err := repo.CreateStaff(ctx, s.DB, m); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("staff.id", m.ID), attribute.String("staff.role", m.Role))
	return m, nil
}

// Get returns one staff member.
func (s *StaffService) Get(ctx context.Context, id string) (*domain.Staff, error) {
	m, err := repo.GetStaff(ctx, s.DB, id)
	return m, staffErr(err)
}

// ListPage returns staff ordered by name with the total count.
func (s *StaffService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Staff, int64, error) {
	tr := otel.Tracer("services/StaffService")
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
	total, err := repo.CountStaff(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Staff{}, 0, nil
	}
	items, err := repo.ListStaffPage(ctx, s.DB, (page-1)*pageSize, pageSize)
	return items, total, err
}

// Patch applies the sent fields.
func (s *StaffService) Patch(ctx context.Context, id string, ch StaffChanges) (*domain.Staff, error) {
	tr := otel.Tracer("services/StaffService")
	ctx, span := tr.Start(ctx, "Patch",
		trace.WithAttributes(attribute.String("staff.id", id)),
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
		taken, err := repo.StaffEmailTaken(ctx, s.DB, email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailTaken
		}
		cols["email"] = email
	}
	if ch.Role != nil {
		role, err := normalizeRole(*ch.Role)
		if err != nil {
			return nil, err
		}
		cols["role"] = role
	}
	if ch.Active != nil {
		cols["active"] = *ch.Active
	}

	if err := repo.UpdateStaff(ctx, s.DB, id, cols); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, staffErr(err)
	}
	m, err := repo.GetStaff(ctx, s.DB, id)
	return m, staffErr(err)
}

// Delete removes a staff member.
func (s *StaffService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/StaffService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(attribute.String("staff.id", id)),
	)
	defer span.End()

	return staffErr(repo.DeleteStaff(ctx, s.DB, id))
}

func normalizeRole(role string) (string, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case "":
		return domain.RoleStaff, nil
	case domain.RoleAdmin, domain.RoleStaff:
		return role, nil
	}
	return "", invalid("role", "must be admin or staff")
}

func staffErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrStaffNotFound
	}
	return err
}
