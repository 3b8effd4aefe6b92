// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the clinical
// records attached to a patient: tooth chart entries, treatment plans and
// notes.
//
// Every lookup, update and delete is scoped by patient ID as well as record
// ID, so a record can only be reached through the patient it belongs to.
// Missing rows are reported as ErrNotFound.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

func stamp(id *string, created, updated *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	now := time.Now().UTC()
	*created, *updated = now, now
}

func updateScoped(ctx context.Context, db *gorm.DB, model any, patientID, id string, updates map[string]any) error {
	res := db.WithContext(ctx).Model(model).
		Where("id = ? AND patient_id = ?", id, patientID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteScoped(ctx context.Context, db *gorm.DB, model any, patientID, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND patient_id = ?", id, patientID).
		Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- tooth chart ---

// CreateToothRecord inserts r.
func CreateToothRecord(ctx context.Context, db *gorm.DB, r *domain.ToothRecord) error {
	stamp(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	return db.WithContext(ctx).Omit("Patient").Create(r).Error
}

// GetToothRecord fetches one tooth record of a patient.
func GetToothRecord(ctx context.Context, db *gorm.DB, patientID, id string) (*domain.ToothRecord, error) {
	var r domain.ToothRecord
	if err := db.WithContext(ctx).
		Where("id = ? AND patient_id = ?", id, patientID).
		First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ListToothRecords returns a patient's chart ordered by tooth number, then
// creation time.
func ListToothRecords(ctx context.Context, db *gorm.DB, patientID string) ([]domain.ToothRecord, error) {
	var out []domain.ToothRecord
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("tooth_number ASC, created_at ASC").
		Find(&out).Error
	return out, err
}

// UpdateToothRecord applies column updates to a patient's tooth record.
func UpdateToothRecord(ctx context.Context, db *gorm.DB, patientID, id string, updates map[string]any) error {
	return updateScoped(ctx, db, &domain.ToothRecord{}, patientID, id, updates)
}

// --- treatment plans ---

// CreateTreatmentPlan inserts p.
func CreateTreatmentPlan(ctx context.Context, db *gorm.DB, p *domain.TreatmentPlan) error {
	stamp(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return db.WithContext(ctx).Omit("Patient").Create(p).Error
}

// GetTreatmentPlan fetches one treatment plan of a patient.
func GetTreatmentPlan(ctx context.Context, db *gorm.DB, patientID, id string) (*domain.TreatmentPlan, error) {
	var p domain.TreatmentPlan
	if err := db.WithContext(ctx).
		Where("id = ? AND patient_id = ?", id, patientID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListTreatmentPlans returns a patient's plans, newest first.
func ListTreatmentPlans(ctx context.Context, db *gorm.DB, patientID string) ([]domain.TreatmentPlan, error) {
	var out []domain.TreatmentPlan
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC, id ASC").
		Find(&out).Error
	return out, err
}

// UpdateTreatmentPlan applies column updates to a patient's plan.
func UpdateTreatmentPlan(ctx context.Context, db *gorm.DB, patientID, id string, updates map[string]any) error {
	return updateScoped(ctx, db, &domain.TreatmentPlan{}, patientID, id, updates)
}

// DeleteTreatmentPlan removes a patient's plan.
func DeleteTreatmentPlan(ctx context.Context, db *gorm.DB, patientID, id string) error {
	return deleteScoped(ctx, db, &domain.TreatmentPlan{}, patientID, id)
}

// --- notes ---

// CreatePatientNote inserts n.
func CreatePatientNote(ctx context.Context, db *gorm.DB, n *domain.PatientNote) error {
	stamp(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	return db.WithContext(ctx).Omit("Patient").Create(n).Error
}

// GetPatientNote fetches one note of a patient.
func GetPatientNote(ctx context.Context, db *gorm.DB, patientID, id string) (*domain.PatientNote, error) {
	var n domain.PatientNote
	if err := db.WithContext(ctx).
		Where("id = ? AND patient_id = ?", id, patientID).
		First(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// ListPatientNotes returns a patient's notes, newest first.
func ListPatientNotes(ctx context.Context, db *gorm.DB, patientID string) ([]domain.PatientNote, error) {
	var out []domain.PatientNote
	err := db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC, id ASC").
		Find(&out).Error
	return out, err
}

// UpdatePatientNote applies column updates to a patient's note.
func UpdatePatientNote(ctx context.Context, db *gorm.DB, patientID, id string, updates map[string]any) error {
	return updateScoped(ctx, db, &domain.PatientNote{}, patientID, id, updates)
}

// DeletePatientNote removes a patient's note.
func DeletePatientNote(ctx context.Context, db *gorm.DB, patientID, id string) error {
	return deleteScoped(ctx, db, &domain.PatientNote{}, patientID, id)
}
