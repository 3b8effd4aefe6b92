// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Patient
// model.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

// CreatePatient inserts p. Duplicate emails surface as ErrDuplicate.
func CreatePatient(ctx context.Context, db *gorm.DB, p *domain.Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetPatient fetches a patient by ID or returns ErrNotFound.
func GetPatient(ctx context.Context, db *gorm.DB, id string) (*domain.Patient, error) {
	var p domain.Patient
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// PatientExists reports whether a patient with id exists.
func PatientExists(ctx context.Context, db *gorm.DB, id string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Patient{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

// PatientEmailTaken reports whether email belongs to a patient other than
// excludeID. Comparison is case-insensitive.
func PatientEmailTaken(ctx context.Context, db *gorm.DB, email, excludeID string) (bool, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.Patient{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// CountPatients returns the total number of patients.
func CountPatients(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Patient{}).Count(&total).Error
	return total, err
}

// ListPatientsPage returns a page of patients ordered by creation time
// descending.
func ListPatientsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Patient, error) {
	var out []domain.Patient
	err := db.WithContext(ctx).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListAllPatients returns every patient; used to (re)build the search index.
func ListAllPatients(ctx context.Context, db *gorm.DB) ([]domain.Patient, error) {
	var out []domain.Patient
	err := db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&out).Error
	return out, err
}

// GetPatientsByIDs returns the patients whose IDs are in ids, in no
// particular order.
func GetPatientsByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Patient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []domain.Patient
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

// UpdatePatient applies column updates to the patient id. It returns
// ErrNotFound when no row matched and ErrDuplicate on an email clash.
func UpdatePatient(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	if len(updates) == 0 {
		_, err := GetPatient(ctx, db, id)
		return err
	}
	res := db.WithContext(ctx).Model(&domain.Patient{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if IsDuplicate(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeletePatient removes the patient id together with its clinical records
// (cascade). It returns ErrNotFound when no row matched.
func DeletePatient(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Patient{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
