package domain

import (
	"testing"
	"time"
)

func TestIdempotency_Schema(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	m := db.Migrator()
	if !m.HasTable("idempotency") || !m.HasIndex(&Idempotency{}, "ux_user_scope_key") {
		t.Fatalf("table or unique index missing")
	}
	if !m.HasIndex(&Idempotency{}, "ExpiresAt") {
		t.Fatalf("expires_at should be indexed for the purge")
	}

	now := time.Date(2030, 5, 10, 9, 0, 0, 0, time.UTC)
	rec := func(id, user, scope, key string) *Idempotency {
		return &Idempotency{ID: id, UserID: user, Scope: scope, Key: key, ResourceID: "apt-" + id,
			Status: 201, CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour)}
	}

	if err := db.Create(rec("1", "reception", "appointments", "k1")).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := db.Create(rec("2", "reception", "appointments", "k1")).Error; err == nil {
		t.Fatalf("same (user, scope, key) must be rejected")
	}
	// The key namespace is per caller and per scope.
	if err := db.Create(rec("3", "dentist", "appointments", "k1")).Error; err != nil {
		t.Fatalf("other caller, same key: %v", err)
	}
	if err := db.Create(rec("4", "reception", "patients", "k1")).Error; err != nil {
		t.Fatalf("other scope, same key: %v", err)
	}

	var got Idempotency
	if err := db.First(&got, "id = ?", "1").Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.ResourceID != "apt-1" || got.Status != 201 || !got.ExpiresAt.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("row = %+v", got)
	}

	for _, col := range []string{"user_id", "scope", "key", "resource_id"} {
		err := db.Exec(`INSERT INTO idempotency (id, user_id, scope, "key", resource_id, status, created_at, expires_at)
			VALUES ('null-`+col+`', 'u', 's', 'k', 'r', 201, ?, ?)`, now, now).Error
		if err != nil {
			t.Fatalf("baseline insert for %s: %v", col, err)
		}
		err = db.Exec(`UPDATE idempotency SET "`+col+`" = NULL WHERE id = ?`, "null-"+col).Error
		if err == nil {
			t.Fatalf("%s must be NOT NULL", col)
		}
		db.Exec(`DELETE FROM idempotency WHERE id = ?`, "null-"+col)
	}
}
