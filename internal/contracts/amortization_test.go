// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package contracts

import (
	"testing"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/pkg/id"
)

func testContract() *Contract {
	return &Contract{
		ID:               id.Contract("contract-1"),
		CustomerID:       id.Customer("cust"),
		PrincipalCents:   120000, // $1,200
		APRBps:           1200,   // 12%
		TermMonths:       12,
		PaymentFrequency: Monthly,
		FirstPaymentDate: base.NewTime(time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)),
	}
}

func TestAmortization__MonthlySchedule(t *testing.T) {
	schedule, err := BuildSchedule(testContract())
	if err != nil {
		t.Fatal(err)
	}
	if len(schedule) != 12 {
		t.Fatalf("got %d installments", len(schedule))
	}

	// principal across the schedule sums exactly to the loan amount
	var principal int64
	for i := range schedule {
		principal += schedule[i].PrincipalCents
		if schedule[i].PaymentCents != schedule[i].PrincipalCents+schedule[i].InterestCents {
			t.Errorf("installment %d: payment != principal + interest", i+1)
		}
		if schedule[i].Status != ItemScheduled {
			t.Errorf("installment %d: status=%s", i+1, schedule[i].Status)
		}
	}
	if principal != 120000 {
		t.Errorf("principal total=%d", principal)
	}

	// first installment's interest is balance * apr / 12
	if schedule[0].InterestCents != 1200 {
		t.Errorf("first interest=%d", schedule[0].InterestCents)
	}

	// due dates advance monthly
	first := schedule[0].DueDate.Time
	second := schedule[1].DueDate.Time
	if !second.Equal(first.AddDate(0, 1, 0)) {
		t.Errorf("due dates: %v then %v", first, second)
	}

	// interest decreases as the balance amortizes
	if schedule[11].InterestCents >= schedule[0].InterestCents {
		t.Errorf("interest did not decrease: %d vs %d", schedule[11].InterestCents, schedule[0].InterestCents)
	}
}

func TestAmortization__WeeklyAndBiweekly(t *testing.T) {
	contract := testContract()
	contract.PaymentFrequency = Weekly
	contract.TermMonths = 3

	schedule, err := BuildSchedule(contract)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedule) != 13 { // 3 * 52 / 12
		t.Errorf("got %d weekly installments", len(schedule))
	}
	if !schedule[1].DueDate.Time.Equal(schedule[0].DueDate.Time.AddDate(0, 0, 7)) {
		t.Error("weekly due dates should be 7 days apart")
	}

	contract.PaymentFrequency = Biweekly
	contract.TermMonths = 6
	schedule, err = BuildSchedule(contract)
	if err != nil {
		t.Fatal(err)
	}
	if len(schedule) != 13 { // 6 * 26 / 12
		t.Errorf("got %d biweekly installments", len(schedule))
	}

	var principal int64
	for i := range schedule {
		principal += schedule[i].PrincipalCents
	}
	if principal != contract.PrincipalCents {
		t.Errorf("principal total=%d", principal)
	}
}

func TestAmortization__ZeroInterest(t *testing.T) {
	contract := testContract()
	contract.APRBps = 0

	schedule, err := BuildSchedule(contract)
	if err != nil {
		t.Fatal(err)
	}
	var principal, interest int64
	for i := range schedule {
		principal += schedule[i].PrincipalCents
		interest += schedule[i].InterestCents
	}
	if principal != contract.PrincipalCents || interest != 0 {
		t.Errorf("principal=%d interest=%d", principal, interest)
	}
}

func TestAmortization__RejectsInvalid(t *testing.T) {
	contract := testContract()
	contract.PrincipalCents = 0
	if _, err := BuildSchedule(contract); err == nil {
		t.Error("expected error for zero principal")
	}

	contract = testContract()
	contract.TermMonths = -1
	if _, err := BuildSchedule(contract); err == nil {
		t.Error("expected error for negative term")
	}

	contract = testContract()
	contract.PaymentFrequency = PaymentFrequency("DAILY")
	if _, err := BuildSchedule(contract); err == nil {
		t.Error("expected error for bad frequency")
	}
}

func TestWaterfall__Order(t *testing.T) {
	contract := &Contract{
		PrincipalBalanceCents: 90000,
		InterestBalanceCents:  2000,
		FeesBalanceCents:      1500,
	}

	applied, err := ApplyWaterfall(contract, 10000)
	if err != nil {
		t.Fatal(err)
	}
	if applied.FeeCents != 1500 || applied.InterestCents != 2000 || applied.PrincipalCents != 6500 {
		t.Errorf("got %#v", applied)
	}
	if applied.TotalCents() != 10000 {
		t.Errorf("total=%d", applied.TotalCents())
	}

	// small receipts stop inside the fee bucket
	applied, err = ApplyWaterfall(contract, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if applied.FeeCents != 1000 || applied.InterestCents != 0 || applied.PrincipalCents != 0 {
		t.Errorf("got %#v", applied)
	}

	// paying the full outstanding works; a cent more is rejected
	if _, err := ApplyWaterfall(contract, contract.OutstandingCents()); err != nil {
		t.Error(err)
	}
	if _, err := ApplyWaterfall(contract, contract.OutstandingCents()+1); err == nil {
		t.Error("expected overpayment rejection")
	}
	if _, err := ApplyWaterfall(contract, 0); err == nil {
		t.Error("expected rejection of zero amount")
	}
}
