// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Appointment model, i.e. the clinic agenda.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They perform no scheduling logic: the
// conflict rules live in the scheduling package and are applied by
// services.AppointmentService, which calls ListAppointmentsOnDate and the
// write functions inside one transaction.
//
// Error semantics:
//   - When an appointment is not found, functions return ErrNotFound.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

// AppointmentFilter narrows agenda listings. Date selects a single day;
// otherwise StartDate/EndDate select an inclusive range (either bound may be
// empty). Query is a case-insensitive substring matched against title,
// client name and note.
type AppointmentFilter struct {
	Date           string
	StartDate      string
	EndDate        string
	Query          string
	ProfessionalID string
	ClientID       string
}

// "date" and "time" are keywords in Postgres, so they go through clause
// expressions to get quoted by the dialector.
var agendaOrder = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "date"}},
	{Column: clause.Column{Name: "time"}},
	{Column: clause.Column{Name: "id"}},
}}

func (f AppointmentFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Date != "" {
		q = q.Where(clause.Eq{Column: clause.Column{Name: "date"}, Value: f.Date})
	} else {
		if f.StartDate != "" {
			q = q.Where(clause.Gte{Column: clause.Column{Name: "date"}, Value: f.StartDate})
		}
		if f.EndDate != "" {
			q = q.Where(clause.Lte{Column: clause.Column{Name: "date"}, Value: f.EndDate})
		}
	}
	if f.ProfessionalID != "" {
		q = q.Where("professional_id = ?", f.ProfessionalID)
	}
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(client_name) LIKE ? OR LOWER(note) LIKE ?)", like, like, like)
	}
	return q
}

// CreateAppointment inserts a. A missing ID is generated and timestamps are
// set to UTC now.
func CreateAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	return db.WithContext(ctx).Create(a).Error
}

// GetAppointment fetches one appointment by ID or returns ErrNotFound.
func GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error) {
	var a domain.Appointment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAppointmentsOnDate returns every appointment stored on date except the
// one with excludeID (pass "" to exclude nothing). This is the partition the
// conflict checker compares a candidate against.
func ListAppointmentsOnDate(ctx context.Context, db *gorm.DB, date, excludeID string) ([]domain.Appointment, error) {
	var out []domain.Appointment
	q := db.WithContext(ctx).Where(clause.Eq{Column: clause.Column{Name: "date"}, Value: date})
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Order(agendaOrder).Find(&out).Error
	return out, err
}

// CountAppointments returns the number of appointments matching f.
func CountAppointments(ctx context.Context, db *gorm.DB, f AppointmentFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Appointment{})).Count(&total).Error
	return total, err
}

// ListAppointmentsPage returns a page of appointments matching f ordered by
// date then time ascending.
func ListAppointmentsPage(ctx context.Context, db *gorm.DB, f AppointmentFilter, offset, limit int) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := f.apply(db.WithContext(ctx)).
		Order(agendaOrder).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateAppointment applies column updates to the appointment id. It returns
// ErrNotFound when no row matched.
func UpdateAppointment(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	if len(updates) == 0 {
		_, err := GetAppointment(ctx, db, id)
		return err
	}
	res := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAppointment removes the appointment id. It returns ErrNotFound when
// no row matched.
func DeleteAppointment(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Appointment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppointmentTotals aggregates the agenda over f. Revenue is the expected
// revenue (every booked value); CompletedRevenue only counts appointments
// that took place.
type AppointmentTotals struct {
	Total            int64   `json:"total"`
	Completed        int64   `json:"completed"`
	Revenue          float64 `json:"revenue"`
	CompletedRevenue float64 `json:"completed_revenue"`
}

// SumAppointments computes AppointmentTotals for f.
func SumAppointments(ctx context.Context, db *gorm.DB, f AppointmentFilter) (AppointmentTotals, error) {
	var out AppointmentTotals
	scoped := func() *gorm.DB {
		return f.apply(db.WithContext(ctx).Model(&domain.Appointment{}))
	}

	if err := scoped().Count(&out.Total).Error; err != nil {
		return AppointmentTotals{}, err
	}
	if out.Total == 0 {
		return out, nil
	}
	if err := scoped().Where("completed = ?", true).Count(&out.Completed).Error; err != nil {
		return AppointmentTotals{}, err
	}
	var rev struct {
		Revenue          float64
		CompletedRevenue float64
	}
	if err := scoped().
		Select("COALESCE(SUM(value), 0) AS revenue, " +
			"COALESCE(SUM(CASE WHEN completed THEN value ELSE 0 END), 0) AS completed_revenue").
		Scan(&rev).Error; err != nil {
		return AppointmentTotals{}, err
	}
	out.Revenue, out.CompletedRevenue = rev.Revenue, rev.CompletedRevenue
	return out, nil
}
