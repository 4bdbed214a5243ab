// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package transfers

import (
	"database/sql"
	"time"

	"github.com/raynmakr/bigfin/internal/database"
	"github.com/raynmakr/bigfin/pkg/id"
)

// idempotencyTTL is how long a captured response replays before the key
// may be reused.
const idempotencyTTL = 24 * time.Hour

// IdempotencyRecord is a captured response for replay.
type IdempotencyRecord struct {
	Key        string
	TenantID   id.Tenant
	Response   []byte
	StatusCode int
	ExpiresAt  time.Time
}

type IdempotencyStore interface {
	Lookup(tenantID id.Tenant, key string) (*IdempotencyRecord, error)
	Capture(record *IdempotencyRecord) error
}

func NewIdempotencyStore(db *sql.DB) *SQLIdempotencyStore {
	return &SQLIdempotencyStore{db: db}
}

type SQLIdempotencyStore struct {
	db *sql.DB
}

// Lookup returns a live captured response for the key, or nil when the
// key is unknown or expired.
func (s *SQLIdempotencyStore) Lookup(tenantID id.Tenant, key string) (*IdempotencyRecord, error) {
	row := s.db.QueryRow(`select idempotency_key, response, status_code, expires_at from idempotency_records where idempotency_key = ? and tenant_id = ? limit 1`, key, tenantID)

	record := &IdempotencyRecord{TenantID: tenantID}
	if err := row.Scan(&record.Key, &record.Response, &record.StatusCode, &record.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if time.Now().After(record.ExpiresAt) {
		return nil, nil
	}
	return record, nil
}

// Capture stores a response under the key. A primary-key collision
// means a concurrent request already captured it, which callers treat
// as a replay.
func (s *SQLIdempotencyStore) Capture(record *IdempotencyRecord) error {
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = time.Now().Add(idempotencyTTL)
	}
	_, err := s.db.Exec(`insert into idempotency_records (idempotency_key, tenant_id, response, status_code, expires_at, created_at) values (?, ?, ?, ?, ?, ?)`,
		record.Key, record.TenantID, record.Response, record.StatusCode, record.ExpiresAt, time.Now())
	if err != nil && database.UniqueViolation(err) {
		return nil
	}
	return err
}
