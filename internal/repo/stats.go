// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

// AppointmentsStats returns aggregate metadata for the agenda rows matching
// f: the total number of rows and the maximum UpdatedAt among them.
//
// When nothing matches, the returned count is 0 and maxUpdatedAt is nil.
func AppointmentsStats(ctx context.Context, db *gorm.DB, f AppointmentFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	return latest(f.apply(db.WithContext(ctx).Model(&domain.Appointment{})))
}

// PatientsStats returns the number of patients and the maximum UpdatedAt
// among them.
func PatientsStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	return latest(db.WithContext(ctx).Model(&domain.Patient{}))
}

func latest(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	// Count
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
