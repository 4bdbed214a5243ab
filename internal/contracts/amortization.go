// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package contracts

import (
	"math"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/errcode"
)

// BuildSchedule computes a level-payment amortization schedule. The
// annuity payment is derived once in floating point, then every money
// amount is exact integer cents: per-period interest rounds half-up
// from basis points and the final installment clears the residual
// balance exactly.
func BuildSchedule(contract *Contract) ([]*ScheduleItem, error) {
	if err := contract.Validate(); err != nil {
		return nil, err
	}

	periodsPerYear := contract.PaymentFrequency.PeriodsPerYear()
	periods := contract.TermMonths * periodsPerYear / 12
	if periods <= 0 {
		return nil, errcode.New(errcode.InvalidRequest, "term %dmo too short for %s payments", contract.TermMonths, contract.PaymentFrequency)
	}

	payment := levelPayment(contract.PrincipalCents, contract.APRBps, periodsPerYear, periods)

	var items []*ScheduleItem
	balance := contract.PrincipalCents
	due := contract.FirstPaymentDate.Time
	for seq := 1; seq <= periods; seq++ {
		interest := periodInterest(balance, contract.APRBps, periodsPerYear)
		principal := payment - interest
		if seq == periods || principal >= balance {
			// final installment clears the loan
			principal = balance
		}

		items = append(items, &ScheduleItem{
			ContractID:     contract.ID,
			Sequence:       seq,
			DueDate:        base.NewTime(due),
			PaymentCents:   principal + interest,
			PrincipalCents: principal,
			InterestCents:  interest,
			Status:         ItemScheduled,
		})

		balance -= principal
		if balance == 0 {
			break
		}
		due = nextDueDate(due, contract.PaymentFrequency)
	}
	return items, nil
}

// levelPayment computes the constant installment for the annuity,
// rounded to the nearest cent.
func levelPayment(principalCents, aprBps int64, periodsPerYear, periods int) int64 {
	if aprBps == 0 {
		// zero-interest loans split evenly, rounding up so the final
		// installment is never larger than the others
		return (principalCents + int64(periods) - 1) / int64(periods)
	}
	rate := float64(aprBps) / 10000 / float64(periodsPerYear)
	factor := math.Pow(1+rate, float64(periods))
	payment := float64(principalCents) * rate * factor / (factor - 1)
	return int64(math.Round(payment))
}

// periodInterest is balance * apr / periods, rounded half-up in exact
// integer arithmetic.
func periodInterest(balanceCents, aprBps int64, periodsPerYear int) int64 {
	denominator := int64(10000) * int64(periodsPerYear)
	return (balanceCents*aprBps + denominator/2) / denominator
}

func nextDueDate(t time.Time, frequency PaymentFrequency) time.Time {
	switch frequency {
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Biweekly:
		return t.AddDate(0, 0, 14)
	default:
		return t.AddDate(0, 1, 0)
	}
}
