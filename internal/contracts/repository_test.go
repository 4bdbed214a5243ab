// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package contracts

import (
	"testing"
	"time"

	"github.com/raynmakr/bigfin/internal/accounts"
	"github.com/raynmakr/bigfin/internal/database"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/internal/ledger"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
)

func testRepo(t *testing.T) (*SQLRepo, *ledger.Engine, *database.TestSQLiteDB) {
	t.Helper()

	db := database.CreateTestSqliteDB(t)
	accountRepo := accounts.NewRepo(log.NewNopLogger(), db.DB)
	if err := accounts.SeedSystemChart(accountRepo); err != nil {
		t.Fatal(err)
	}
	engine := ledger.NewEngine(log.NewNopLogger(), db.DB, accountRepo)
	return NewRepo(log.NewNopLogger(), db.DB), engine, db
}

func writeContract(t *testing.T, repo *SQLRepo, tenant id.Tenant) *Contract {
	t.Helper()

	contract := testContract()
	contract.ID = ""
	contract.TenantID = tenant
	schedule, err := BuildSchedule(contract)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateContract(contract, schedule); err != nil {
		t.Fatal(err)
	}
	return contract
}

func TestContracts__repository(t *testing.T) {
	repo, _, db := testRepo(t)
	defer db.Close()

	tenant := id.Tenant("tenant-1")
	contract := writeContract(t, repo, tenant)
	if contract.ID == "" {
		t.Fatal("missing generated id")
	}
	if contract.Status != PendingDisbursement {
		t.Errorf("status=%s", contract.Status)
	}

	read, err := repo.GetContract(tenant, contract.ID)
	if err != nil {
		t.Fatal(err)
	}
	if read == nil || read.PrincipalBalanceCents != contract.PrincipalCents {
		t.Fatalf("got %#v", read)
	}

	// tenant isolation
	if c, err := repo.GetContract(id.Tenant("tenant-2"), contract.ID); c != nil || err != nil {
		t.Errorf("contract=%#v err=%v", c, err)
	}

	schedule, err := repo.GetSchedule(tenant, contract.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedule) != 12 {
		t.Fatalf("got %d installments", len(schedule))
	}
	if err := repo.MarkScheduleItemPaid(tenant, schedule[0].ID); err != nil {
		t.Fatal(err)
	}
	schedule, _ = repo.GetSchedule(tenant, contract.ID)
	if schedule[0].Status != ItemPaid {
		t.Errorf("status=%s", schedule[0].Status)
	}

	list, err := repo.GetContracts(tenant, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("got %d contracts", len(list))
	}
}

func TestContracts__ActivateAndRepay(t *testing.T) {
	repo, _, db := testRepo(t)
	defer db.Close()

	tenant := id.Tenant("tenant-1")
	contract := writeContract(t, repo, tenant)

	tx, err := db.DB.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := Activate(tx, tenant, contract.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	read, _ := repo.GetContract(tenant, contract.ID)
	if read.Status != Active || read.DisbursedAt == nil {
		t.Fatalf("got %#v", read)
	}

	// a second activation fails
	tx, _ = db.DB.Begin()
	if err := Activate(tx, tenant, contract.ID, time.Now()); errcode.CodeOf(err) != errcode.InvalidState {
		t.Errorf("got %v", err)
	}
	tx.Rollback()

	// partial repayment
	tx, _ = db.DB.Begin()
	paidOff, err := ApplyRepayment(tx, tenant, contract.ID, Applied{PrincipalCents: 20000}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if paidOff {
		t.Error("should not be paid off")
	}
	tx.Commit()

	read, _ = repo.GetContract(tenant, contract.ID)
	if read.PrincipalBalanceCents != 100000 {
		t.Errorf("balance=%d", read.PrincipalBalanceCents)
	}

	// applying more than the balance fails and changes nothing
	tx, _ = db.DB.Begin()
	if _, err := ApplyRepayment(tx, tenant, contract.ID, Applied{PrincipalCents: 999999}, time.Now()); errcode.CodeOf(err) != errcode.InvalidState {
		t.Errorf("got %v", err)
	}
	tx.Rollback()

	// repaying the rest pays the contract off
	tx, _ = db.DB.Begin()
	paidOff, err = ApplyRepayment(tx, tenant, contract.ID, Applied{PrincipalCents: 100000}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !paidOff {
		t.Error("expected payoff")
	}
	tx.Commit()

	read, _ = repo.GetContract(tenant, contract.ID)
	if read.Status != PaidOff || read.PaidOffAt == nil || read.OutstandingCents() != 0 {
		t.Fatalf("got %#v", read)
	}

	// a returned repayment restores the split and reopens the contract
	tx, _ = db.DB.Begin()
	if err := RestoreRepayment(tx, tenant, contract.ID, Applied{PrincipalCents: 100000}); err != nil {
		t.Fatal(err)
	}
	tx.Commit()

	read, _ = repo.GetContract(tenant, contract.ID)
	if read.Status != Active || read.PaidOffAt != nil {
		t.Fatalf("got %#v", read)
	}
	if read.PrincipalBalanceCents != 100000 {
		t.Errorf("balance=%d", read.PrincipalBalanceCents)
	}
}

func TestContracts__Service(t *testing.T) {
	repo, engine, db := testRepo(t)
	defer db.Close()

	tenant := id.Tenant("tenant-1")
	service := NewService(log.NewNopLogger(), repo, engine)

	contract := testContract()
	contract.ID = ""
	contract.TenantID = tenant
	contract, schedule, err := service.Originate(contract)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedule) != 12 {
		t.Fatalf("got %d installments", len(schedule))
	}

	if err := service.AssessFee(tenant, contract.ID, ledger.LateFee, 1500, "test"); err != nil {
		t.Fatal(err)
	}
	if err := service.AccrueInterest(tenant, contract.ID, 1200, "test"); err != nil {
		t.Fatal(err)
	}

	read, _ := repo.GetContract(tenant, contract.ID)
	if read.FeesBalanceCents != 1500 || read.InterestBalanceCents != 1200 {
		t.Errorf("fees=%d interest=%d", read.FeesBalanceCents, read.InterestBalanceCents)
	}

	// the charges posted through the ledger
	balances, err := engine.GetContractBalances(tenant, contract.ID)
	if err != nil {
		t.Fatal(err)
	}
	if balances.FeesCents != 1500 || balances.InterestCents != 1200 {
		t.Errorf("got %#v", balances)
	}

	if err := service.WriteOff(tenant, contract.ID, "test"); err != nil {
		t.Fatal(err)
	}
	read, _ = repo.GetContract(tenant, contract.ID)
	if read.Status != Defaulted || read.OutstandingCents() != 0 {
		t.Fatalf("got %#v", read)
	}

	// servicing a terminal contract fails
	if err := service.AssessFee(tenant, contract.ID, ledger.LateFee, 100, "test"); errcode.CodeOf(err) != errcode.InvalidState {
		t.Errorf("got %v", err)
	}
}

func TestContracts__Cancel(t *testing.T) {
	repo, engine, db := testRepo(t)
	defer db.Close()

	tenant := id.Tenant("tenant-1")
	service := NewService(log.NewNopLogger(), repo, engine)
	contract := writeContract(t, repo, tenant)

	if err := service.Cancel(tenant, contract.ID); err != nil {
		t.Fatal(err)
	}
	read, _ := repo.GetContract(tenant, contract.ID)
	if read.Status != Cancelled {
		t.Errorf("status=%s", read.Status)
	}

	// cancelling twice fails
	if err := service.Cancel(tenant, contract.ID); errcode.CodeOf(err) != errcode.InvalidState {
		t.Errorf("got %v", err)
	}
}
