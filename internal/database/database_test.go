// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package database

import (
	"errors"
	"testing"

	"github.com/mattn/go-sqlite3"
)

func TestDatabase__UniqueViolation(t *testing.T) {
	if UniqueViolation(nil) {
		t.Error("nil error isn't a unique violation")
	}
	if UniqueViolation(errors.New("other error")) {
		t.Error("unrelated error isn't a unique violation")
	}

	err := errors.New(`problem upserting depository="7d676c65eccd48090ff238a0d5e35eb6126c23f2", userId="80cfe1311d9eb7659d02cba9ee6cb04ed3739a85": UNIQUE constraint failed: depositories.depository_id`)
	if !UniqueViolation(err) {
		t.Error("should have matched unique violation")
	}
}

func TestDatabase__migrationsApply(t *testing.T) {
	db := CreateTestSqliteDB(t)
	defer db.Close()

	tables := []string{
		"accounts", "journals", "entries",
		"contracts", "schedule_items",
		"disbursements", "repayments",
		"funding_instruments", "prefund_transactions",
		"reconciliation_exceptions", "reconciliation_runs",
		"idempotency_records",
	}
	for i := range tables {
		var name string
		row := db.DB.QueryRow(`select name from sqlite_master where type='table' and name=?`, tables[i])
		if err := row.Scan(&name); err != nil {
			t.Errorf("table %s: %v", tables[i], err)
		}
	}
}

func TestSqlite__UniqueViolation(t *testing.T) {
	err := sqlite3.Error{Code: sqlite3.ErrConstraint}
	if !SqliteUniqueViolation(err) {
		t.Error("should have matched sqlite unique violation")
	}
}
