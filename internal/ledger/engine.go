// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package ledger

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/accounts"
	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
	kitprom "github.com/go-kit/kit/metrics/prometheus"
	stdprom "github.com/prometheus/client_golang/prometheus"
)

var (
	journalsPosted = kitprom.NewCounterFrom(stdprom.CounterOpts{
		Name: "ledger_journals_posted",
		Help: "Count of journals posted by type",
	}, []string{"type"})
)

// Engine posts balanced journals and reports balances. Posting
// serializes on the accounts a journal touches, acquired in canonical
// (sorted code) order so overlapping journals can't deadlock.
type Engine struct {
	logger      log.Logger
	db          *sql.DB
	accountRepo accounts.Repository

	locks accountLocks
}

func NewEngine(logger log.Logger, db *sql.DB, accountRepo accounts.Repository) *Engine {
	return &Engine{
		logger:      logger,
		db:          db,
		accountRepo: accountRepo,
		locks:       accountLocks{held: make(map[string]*sync.Mutex)},
	}
}

// accountLocks hands out one mutex per account code.
type accountLocks struct {
	mu   sync.Mutex
	held map[string]*sync.Mutex
}

func (l *accountLocks) forCode(code string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m, exists := l.held[code]; exists {
		return m
	}
	m := &sync.Mutex{}
	l.held[code] = m
	return m
}

// lock acquires every code's mutex in sorted order and returns an
// unlock function releasing them in reverse.
func (l *accountLocks) lock(codes []string) func() {
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)

	var ms []*sync.Mutex
	for i := range sorted {
		if i > 0 && sorted[i] == sorted[i-1] {
			continue
		}
		m := l.forCode(sorted[i])
		m.Lock()
		ms = append(ms, m)
	}
	return func() {
		for i := len(ms) - 1; i >= 0; i-- {
			ms[i].Unlock()
		}
	}
}

// InTransaction runs fn inside a database transaction while holding the
// account locks for codes. Callers composing record updates with journal
// posting (e.g. settlement ingestion) use this to keep everything in one
// commit.
func (e *Engine) InTransaction(codes []string, fn func(tx *sql.Tx) error) error {
	unlock := e.locks.lock(codes)
	defer unlock()

	tx, err := e.db.Begin()
	if err != nil {
		return errcode.Wrap(errcode.InternalError, err, "ledger: begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errcode.Wrap(errcode.InternalError, err, "ledger: commit")
	}
	return nil
}

// CreateJournal validates and atomically posts a journal with its
// entries and running balances. No partial journal can ever appear in
// the store.
func (e *Engine) CreateJournal(tenantID id.Tenant, req JournalRequest) (*Journal, error) {
	var journal *Journal
	err := e.InTransaction(req.AccountCodes(), func(tx *sql.Tx) error {
		j, err := e.PostJournal(tx, tenantID, req)
		if err != nil {
			return err
		}
		journal = j
		return nil
	})
	return journal, err
}

// PostJournal writes a journal and its entries inside the caller's
// transaction. The caller must hold the account locks (see
// InTransaction) so the balance reads below are stable.
func (e *Engine) PostJournal(tx *sql.Tx, tenantID id.Tenant, req JournalRequest) (*Journal, error) {
	if tenantID == "" {
		return nil, errcode.New(errcode.InvalidRequest, "missing tenant")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	for _, code := range req.AccountCodes() {
		acct, err := e.accountRepo.GetAccount(code)
		if err != nil {
			return nil, errcode.Wrap(errcode.InternalError, err, "ledger: account lookup %s", code)
		}
		if acct == nil {
			return nil, errcode.New(errcode.InvalidRequest, "account %s does not exist", code)
		}
	}

	now := time.Now()
	journal := &Journal{
		ID:                id.Journal(base.ID()),
		TenantID:          tenantID,
		ContractID:        req.ContractID,
		Type:              req.Type,
		Description:       req.Description,
		IsReversal:        req.isReversal,
		ReversesJournalID: req.reversesJournalID,
		ReversalReason:    req.reversalReason,
		CreatedBy:         req.CreatedBy,
		Created:           base.NewTime(now),
	}

	query := `insert into journals (journal_id, tenant_id, contract_id, journal_type, description, is_reversal, reverses_journal_id, reversed_by_journal_id, reversal_reason, created_by, created_at) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.Prepare(query)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: prepare journal insert")
	}
	defer stmt.Close()

	_, err = stmt.Exec(journal.ID, tenantID, nullable(string(journal.ContractID)), journal.Type, journal.Description, journal.IsReversal, nullable(string(journal.ReversesJournalID)), nil, nullable(journal.ReversalReason), journal.CreatedBy, now)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: insert journal")
	}

	entryStmt, err := tx.Prepare(`insert into entries (entry_id, journal_id, tenant_id, account_code, debit_cents, credit_cents, balance_after_cents, created_at) values (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: prepare entry insert")
	}
	defer entryStmt.Close()

	// The cascade within this journal respects input order; carry the
	// running total for accounts touched more than once.
	running := make(map[string]int64)
	for i := range req.Entries {
		in := req.Entries[i]

		previous, seen := running[in.AccountCode]
		if !seen {
			prev, err := e.lastBalance(tx, tenantID, in.AccountCode)
			if err != nil {
				return nil, err
			}
			previous = prev
		}

		acct, err := e.accountRepo.GetAccount(in.AccountCode)
		if err != nil || acct == nil {
			return nil, errcode.Wrap(errcode.InternalError, err, "ledger: account lookup %s", in.AccountCode)
		}
		var balanceAfter int64
		if acct.Type.NormalSide() == accounts.Debit {
			balanceAfter = previous + in.DebitCents - in.CreditCents
		} else {
			balanceAfter = previous + in.CreditCents - in.DebitCents
		}
		running[in.AccountCode] = balanceAfter

		entry := &Entry{
			EntryID:           base.ID(),
			JournalID:         journal.ID,
			AccountCode:       in.AccountCode,
			DebitCents:        in.DebitCents,
			CreditCents:       in.CreditCents,
			BalanceAfterCents: balanceAfter,
			Created:           base.NewTime(now.Add(time.Duration(i) * time.Microsecond)),
		}
		_, err = entryStmt.Exec(entry.EntryID, entry.JournalID, tenantID, entry.AccountCode, entry.DebitCents, entry.CreditCents, entry.BalanceAfterCents, entry.Created.Time)
		if err != nil {
			return nil, errcode.Wrap(errcode.InternalError, err, "ledger: insert entry %d", i)
		}
		journal.Entries = append(journal.Entries, entry)
	}

	journalsPosted.With("type", string(journal.Type)).Add(1)
	return journal, nil
}

// ReverseJournal creates a REVERSAL journal swapping each original
// entry's debit and credit, and marks the original as reversed, all in
// one transaction. A journal can be reversed at most once and reversals
// themselves can't be reversed.
func (e *Engine) ReverseJournal(tenantID id.Tenant, journalID id.Journal, reason, actor string) (*Journal, error) {
	original, err := e.GetJournal(tenantID, journalID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, errcode.New(errcode.NotFound, "journal %s not found", journalID)
	}

	var reversal *Journal
	err = e.InTransaction(original.AccountCodes(), func(tx *sql.Tx) error {
		var err error
		reversal, err = e.PostReversal(tx, tenantID, original, reason, actor)
		return err
	})
	return reversal, err
}

// PostReversal writes the reversing journal for original inside the
// caller's transaction. Callers composing a reversal with other writes
// must hold locks covering original.AccountCodes().
func (e *Engine) PostReversal(tx *sql.Tx, tenantID id.Tenant, original *Journal, reason, actor string) (*Journal, error) {
	if original.IsReversal {
		return nil, errcode.New(errcode.InvalidState, "journal %s is a reversal and can't be reversed", original.ID)
	}
	if original.ReversedByJournalID != "" {
		return nil, errcode.New(errcode.InvalidState, "journal %s already reversed by %s", original.ID, original.ReversedByJournalID)
	}

	req := JournalRequest{
		Type:              Reversal,
		Description:       fmt.Sprintf("Reversal of %s: %s", original.ID, reason),
		ContractID:        original.ContractID,
		CreatedBy:         actor,
		isReversal:        true,
		reversesJournalID: original.ID,
		reversalReason:    reason,
	}
	for i := range original.Entries {
		req.Entries = append(req.Entries, EntryInput{
			AccountCode: original.Entries[i].AccountCode,
			DebitCents:  original.Entries[i].CreditCents,
			CreditCents: original.Entries[i].DebitCents,
		})
	}

	reversal, err := e.PostJournal(tx, tenantID, req)
	if err != nil {
		return nil, err
	}

	// Guard against a concurrent reversal of the same journal.
	res, err := tx.Exec(`update journals set reversed_by_journal_id = ? where journal_id = ? and tenant_id = ? and reversed_by_journal_id is null`, reversal.ID, original.ID, tenantID)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: mark reversed")
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, errcode.New(errcode.InvalidState, "journal %s already reversed", original.ID)
	}
	return reversal, nil
}

// lastBalance reads the most recent balance_after_cents for an account
// under the tenant, or 0 when no entries exist.
func (e *Engine) lastBalance(tx *sql.Tx, tenantID id.Tenant, accountCode string) (int64, error) {
	row := tx.QueryRow(`select balance_after_cents from entries where tenant_id = ? and account_code = ? order by created_at desc, entry_id desc limit 1`, tenantID, accountCode)
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, errcode.Wrap(errcode.InternalError, err, "ledger: read balance %s", accountCode)
	}
	return balance, nil
}

// AccountBalance returns the running balance for an account.
func (e *Engine) AccountBalance(tenantID id.Tenant, accountCode string) (int64, error) {
	row := e.db.QueryRow(`select balance_after_cents from entries where tenant_id = ? and account_code = ? order by created_at desc, entry_id desc limit 1`, tenantID, accountCode)
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, errcode.Wrap(errcode.InternalError, err, "ledger: read balance %s", accountCode)
	}
	return balance, nil
}

// GetContractBalances sums a contract's journal entries into its
// principal, interest and fee receivable components.
func (e *Engine) GetContractBalances(tenantID id.Tenant, contractID id.Contract) (*ContractBalances, error) {
	query := `select en.account_code, sum(en.debit_cents) - sum(en.credit_cents)
from entries as en
inner join journals as j on en.journal_id = j.journal_id
where j.tenant_id = ? and j.contract_id = ? and en.account_code in (?, ?, ?)
group by en.account_code`
	stmt, err := e.db.Prepare(query)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: prepare contract balances")
	}
	defer stmt.Close()

	rows, err := stmt.Query(tenantID, contractID, accounts.LoansPrincipal, accounts.LoansInterest, accounts.LoansFees)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: query contract balances")
	}
	defer rows.Close()

	out := &ContractBalances{}
	for rows.Next() {
		var code string
		var net int64
		if err := rows.Scan(&code, &net); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, err, "ledger: scan contract balances")
		}
		switch code {
		case accounts.LoansPrincipal:
			out.PrincipalCents = net
		case accounts.LoansInterest:
			out.InterestCents = net
		case accounts.LoansFees:
			out.FeesCents = net
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: contract balances")
	}
	out.TotalCents = out.PrincipalCents + out.InterestCents + out.FeesCents
	return out, nil
}

// GetTrialBalance reports every account's debit/credit totals and
// whether the ledger balances overall.
func (e *Engine) GetTrialBalance(tenantID id.Tenant) (*TrialBalance, error) {
	query := `select account_code, sum(debit_cents), sum(credit_cents) from entries where tenant_id = ? group by account_code order by account_code asc`
	stmt, err := e.db.Prepare(query)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: prepare trial balance")
	}
	defer stmt.Close()

	rows, err := stmt.Query(tenantID)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: query trial balance")
	}
	defer rows.Close()

	out := &TrialBalance{}
	for rows.Next() {
		var acct TrialBalanceAccount
		if err := rows.Scan(&acct.AccountCode, &acct.DebitCents, &acct.CreditCents); err != nil {
			return nil, errcode.Wrap(errcode.InternalError, err, "ledger: scan trial balance")
		}

		registry, err := e.accountRepo.GetAccount(acct.AccountCode)
		if err != nil {
			return nil, errcode.Wrap(errcode.InternalError, err, "ledger: account lookup %s", acct.AccountCode)
		}
		if registry != nil && registry.Type.NormalSide() == accounts.Credit {
			acct.NetCents = acct.CreditCents - acct.DebitCents
		} else {
			acct.NetCents = acct.DebitCents - acct.CreditCents
		}

		out.TotalDebits += acct.DebitCents
		out.TotalCredits += acct.CreditCents
		out.Accounts = append(out.Accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: trial balance")
	}
	out.IsBalanced = out.TotalDebits == out.TotalCredits
	return out, nil
}

// GetJournal reads one journal with its entries.
func (e *Engine) GetJournal(tenantID id.Tenant, journalID id.Journal) (*Journal, error) {
	query := `select journal_id, contract_id, journal_type, description, is_reversal, reverses_journal_id, reversed_by_journal_id, reversal_reason, created_by, created_at from journals where journal_id = ? and tenant_id = ? limit 1`
	row := e.db.QueryRow(query, journalID, tenantID)

	journal, err := scanJournal(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: read journal %s", journalID)
	}
	journal.TenantID = tenantID

	if err := e.loadEntries(journal); err != nil {
		return nil, err
	}
	return journal, nil
}

// JournalFilter bounds a contract journal listing.
type JournalFilter struct {
	StartDate time.Time
	EndDate   time.Time
	Limit     int64
	Offset    int64
}

// GetContractJournals pages a contract's journals inside the filter's
// date window, most recent first, each populated with its entries. A
// zero EndDate leaves the window open and a zero Limit reads 100.
func (e *Engine) GetContractJournals(tenantID id.Tenant, contractID id.Contract, filter JournalFilter) ([]*Journal, error) {
	if filter.EndDate.IsZero() {
		filter.EndDate = time.Now().Add(24 * time.Hour)
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}

	query := `select journal_id, contract_id, journal_type, description, is_reversal, reverses_journal_id, reversed_by_journal_id, reversal_reason, created_by, created_at
from journals where tenant_id = ? and contract_id = ? and created_at >= ? and created_at <= ?
order by created_at desc limit ? offset ?`
	stmt, err := e.db.Prepare(query)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: prepare contract journals")
	}
	defer stmt.Close()

	rows, err := stmt.Query(tenantID, contractID, filter.StartDate, filter.EndDate, filter.Limit, filter.Offset)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: query contract journals")
	}
	defer rows.Close()

	var journals []*Journal
	for rows.Next() {
		journal, err := scanJournal(rows)
		if err != nil {
			return nil, errcode.Wrap(errcode.InternalError, err, "ledger: scan contract journal")
		}
		journal.TenantID = tenantID
		journals = append(journals, journal)
	}
	if err := rows.Err(); err != nil {
		return nil, errcode.Wrap(errcode.InternalError, err, "ledger: contract journals")
	}

	for i := range journals {
		if err := e.loadEntries(journals[i]); err != nil {
			return nil, err
		}
	}
	return journals, nil
}

func (e *Engine) loadEntries(journal *Journal) error {
	rows, err := e.db.Query(`select entry_id, account_code, debit_cents, credit_cents, balance_after_cents, created_at from entries where journal_id = ? order by created_at asc, entry_id asc`, journal.ID)
	if err != nil {
		return errcode.Wrap(errcode.InternalError, err, "ledger: query entries %s", journal.ID)
	}
	defer rows.Close()

	for rows.Next() {
		entry := &Entry{JournalID: journal.ID}
		var created time.Time
		if err := rows.Scan(&entry.EntryID, &entry.AccountCode, &entry.DebitCents, &entry.CreditCents, &entry.BalanceAfterCents, &created); err != nil {
			return errcode.Wrap(errcode.InternalError, err, "ledger: scan entry")
		}
		entry.Created = base.NewTime(created)
		journal.Entries = append(journal.Entries, entry)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJournal(row rowScanner) (*Journal, error) {
	journal := &Journal{}
	var (
		contractID     *string
		reverses       *string
		reversedBy     *string
		reversalReason *string
		createdBy      *string
		created        time.Time
	)
	err := row.Scan(&journal.ID, &contractID, &journal.Type, &journal.Description, &journal.IsReversal, &reverses, &reversedBy, &reversalReason, &createdBy, &created)
	if err != nil {
		return nil, err
	}
	if contractID != nil {
		journal.ContractID = id.Contract(*contractID)
	}
	if reverses != nil {
		journal.ReversesJournalID = id.Journal(*reverses)
	}
	if reversedBy != nil {
		journal.ReversedByJournalID = id.Journal(*reversedBy)
	}
	if reversalReason != nil {
		journal.ReversalReason = *reversalReason
	}
	if createdBy != nil {
		journal.CreatedBy = *createdBy
	}
	journal.Created = base.NewTime(created)
	return journal, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
