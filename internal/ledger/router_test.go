// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package ledger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/accounts"
	"github.com/raynmakr/bigfin/internal/util"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

func TestRouter__CreateAndListJournals(t *testing.T) {
	engine, db := testEngine(t)
	defer db.Close()

	router := mux.NewRouter()
	NewRouter(log.NewNopLogger(), engine).RegisterRoutes(router)

	body, err := json.Marshal(JournalRequest{
		Type:        Disbursement,
		Description: "loan disbursement",
		ContractID:  id.Contract("contract-1"),
		CreatedBy:   "test",
		Entries: []EntryInput{
			{AccountCode: accounts.LoansPrincipal, DebitCents: 50000},
			{AccountCode: accounts.CashOperating, CreditCents: 50000},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/ledger/journals", bytes.NewReader(body))
	req.Header.Set("X-Tenant-Id", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}

	var journal Journal
	if err := json.Unmarshal(w.Body.Bytes(), &journal); err != nil {
		t.Fatal(err)
	}
	if journal.ID == "" || len(journal.Entries) != 2 {
		t.Fatalf("journal=%#v", journal)
	}

	req = httptest.NewRequest("GET", "/contracts/contract-1/journals", nil)
	req.Header.Set("X-Tenant-Id", "tenant-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}

	var journals []*Journal
	if err := json.Unmarshal(w.Body.Bytes(), &journals); err != nil {
		t.Fatal(err)
	}
	if len(journals) != 1 || journals[0].ID != journal.ID {
		t.Fatalf("journals=%#v", journals)
	}

	// a window ending before the posting is empty
	endDate := time.Now().Add(-1 * time.Hour).UTC().Format(base.ISO8601Format)
	req = httptest.NewRequest("GET", "/contracts/contract-1/journals?endDate="+url.QueryEscape(endDate), nil)
	req.Header.Set("X-Tenant-Id", "tenant-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d: %s", w.Code, w.Body.String())
	}
	journals = nil
	if err := json.Unmarshal(w.Body.Bytes(), &journals); err != nil {
		t.Fatal(err)
	}
	if len(journals) != 0 {
		t.Errorf("journals=%#v", journals)
	}
}

func TestRouter__CreateJournalRejectsUnbalanced(t *testing.T) {
	engine, db := testEngine(t)
	defer db.Close()

	router := mux.NewRouter()
	NewRouter(log.NewNopLogger(), engine).RegisterRoutes(router)

	body := []byte(`{"type": "ADJUSTMENT", "entries": [
{"accountCode": "Cash:Operating", "debitCents": 100},
{"accountCode": "Loans:Principal", "creditCents": 99}
]}`)
	req := httptest.NewRequest("POST", "/ledger/journals", bytes.NewReader(body))
	req.Header.Set("X-Tenant-Id", "tenant-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter__MissingTenant(t *testing.T) {
	engine, db := testEngine(t)
	defer db.Close()

	router := mux.NewRouter()
	NewRouter(log.NewNopLogger(), engine).RegisterRoutes(router)

	req := httptest.NewRequest("GET", "/ledger/trial-balance", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("got %d: %s", w.Code, w.Body.String())
	}
}

func TestRouter__readJournalFilter(t *testing.T) {
	u, _ := url.Parse("http://localhost:8082/contracts/abc/journals?startDate=2026-04-06&limit=10")
	filter := readJournalFilter(&http.Request{URL: u})

	if filter.StartDate.Format(util.YYMMDDTimeFormat) != "2026-04-06" {
		t.Errorf("unexpected StartDate: %v", filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		t.Errorf("unexpected EndDate: %v", filter.EndDate)
	}
	if filter.Limit != 10 {
		t.Errorf("unexpected limit: %d", filter.Limit)
	}
	if filter.Offset != 0 {
		t.Errorf("unexpected offset: %d", filter.Offset)
	}
}
