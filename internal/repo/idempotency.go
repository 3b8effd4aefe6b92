package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-dental-backend/internal/domain"
)

// ErrDuplicate reports a unique-key violation, such as a second record for
// the same idempotency key.
var ErrDuplicate = errors.New("duplicate")

// IdemKey addresses one idempotency record. Keys are namespaced by caller
// and by scope (the kind of resource the key creates).
type IdemKey struct {
	UserID string
	Scope  string
	Key    string
}

func (k IdemKey) where(q *gorm.DB) *gorm.DB {
	return q.Where("user_id = ? AND scope = ? AND key = ?", k.UserID, k.Scope, k.Key)
}

// GetIdempotency returns the record for k that is still live at now, or
// ErrNotFound. A blank scope never matches.
func GetIdempotency(ctx context.Context, db *gorm.DB, k IdemKey, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(k.Scope) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := k.where(db.WithContext(ctx)).Where("expires_at > ?", now).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveIdempotency records that k produced resourceID with status, valid for
// ttl from now. An expired record under the same key is replaced; a live one
// yields ErrDuplicate.
func SaveIdempotency(ctx context.Context, db *gorm.DB, k IdemKey, resourceID string, status int, now time.Time, ttl time.Duration) (*domain.Idempotency, error) {
	q := db.WithContext(ctx)
	if err := k.where(q).Where("expires_at <= ?", now).Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}
	rec := &domain.Idempotency{
		ID:         uuid.NewString(),
		UserID:     k.UserID,
		Scope:      k.Scope,
		Key:        k.Key,
		ResourceID: resourceID,
		Status:     status,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	if err := q.Create(rec).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// DeleteIdempotency forgets k whether or not it has expired.
func DeleteIdempotency(ctx context.Context, db *gorm.DB, k IdemKey) error {
	return k.where(db.WithContext(ctx)).Delete(&domain.Idempotency{}).Error
}

// PurgeExpiredIdempotency removes every record expired at now and reports
// how many went.
func PurgeExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
