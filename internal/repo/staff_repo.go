// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Staff
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

// CreateStaff inserts s. Duplicate emails surface as ErrDuplicate.
func CreateStaff(ctx context.Context, db *gorm.DB, s *domain.Staff) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetStaff fetches a staff member by ID or returns ErrNotFound.
func GetStaff(ctx context.Context, db *gorm.DB, id string) (*domain.Staff, error) {
	var s domain.Staff
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// StaffEmailTaken reports whether email belongs to a staff member other
// than excludeID.
func StaffEmailTaken(ctx context.Context, db *gorm.DB, email, excludeID string) (bool, error) {
	var n int64
	q := db.WithContext(ctx).Model(&domain.Staff{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// CountStaff returns the total number of staff members.
func CountStaff(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Staff{}).Count(&total).Error
	return total, err
}

// ListStaffPage returns a page of staff ordered by name.
func ListStaffPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Staff, error) {
	var out []domain.Staff
	err := db.WithContext(ctx).
		Order("name ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateStaff applies column updates to the staff member id.
func UpdateStaff(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	if len(updates) == 0 {
		_, err := GetStaff(ctx, db, id)
		return err
	}
	res := db.WithContext(ctx).Model(&domain.Staff{}).Where("id = ?", id).Updates(updates)
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

// DeleteStaff removes the staff member id.
func DeleteStaff(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Staff{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
