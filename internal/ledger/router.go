// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package ledger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/route"
	"github.com/raynmakr/bigfin/internal/util"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	logger log.Logger
	engine *Engine
}

func NewRouter(logger log.Logger, engine *Engine) *Router {
	return &Router{
		logger: logger,
		engine: engine,
	}
}

func (c *Router) RegisterRoutes(router *mux.Router) {
	router.Methods("POST").Path("/ledger/journals").HandlerFunc(c.createJournal())
	router.Methods("POST").Path("/ledger/journals/{journalId}/reversal").HandlerFunc(c.reverseJournal())
	router.Methods("GET").Path("/ledger/trial-balance").HandlerFunc(c.getTrialBalance())
	router.Methods("GET").Path("/ledger/accounts/{accountCode}/balance").HandlerFunc(c.getAccountBalance())
	router.Methods("GET").Path("/contracts/{contractId}/journals").HandlerFunc(c.getContractJournals())
	router.Methods("GET").Path("/contracts/{contractId}/balances").HandlerFunc(c.getContractBalances())
}

func (c *Router) createJournal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req JournalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}

		journal, err := c.engine.CreateJournal(responder.XTenantID, req)
		if err != nil {
			responder.Log("ledger", fmt.Sprintf("error creating journal: %v", err))
			responder.Problem(err)
			return
		}
		responder.Log("ledger", fmt.Sprintf("created journal=%s type=%s", journal.ID, journal.Type))

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(journal)
		})
	}
}

type reverseJournalRequest struct {
	Reason string `json:"reason"`
}

func (c *Router) reverseJournal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req reverseJournalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}
		if req.Reason == "" {
			responder.Problem(fmt.Errorf("missing reversal reason"))
			return
		}

		journalID := id.Journal(route.ReadPathID("journalId", r))
		reversal, err := c.engine.ReverseJournal(responder.XTenantID, journalID, req.Reason, "api")
		if err != nil {
			responder.Log("ledger", fmt.Sprintf("error reversing journal=%s: %v", journalID, err))
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(reversal)
		})
	}
}

func (c *Router) getTrialBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		tb, err := c.engine.GetTrialBalance(responder.XTenantID)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(tb)
		})
	}
}

func (c *Router) getAccountBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		code := route.ReadPathID("accountCode", r)
		balance, err := c.engine.AccountBalance(responder.XTenantID, code)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"accountCode":  code,
				"balanceCents": balance,
			})
		})
	}
}

// readJournalFilter pulls the optional startDate, endDate, limit, and
// offset query parameters off a journal listing request.
func readJournalFilter(r *http.Request) JournalFilter {
	filter := JournalFilter{
		Limit:  route.ReadLimit(r),
		Offset: route.ReadOffset(r),
	}
	q := r.URL.Query()
	if v := q.Get("startDate"); v != "" {
		filter.StartDate = util.FirstParsedTime(v, base.ISO8601Format, util.YYMMDDTimeFormat)
	}
	if v := q.Get("endDate"); v != "" {
		filter.EndDate, _ = time.Parse(base.ISO8601Format, v)
	}
	return filter
}

func (c *Router) getContractJournals() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		contractID := id.Contract(route.ReadPathID("contractId", r))
		journals, err := c.engine.GetContractJournals(responder.XTenantID, contractID, readJournalFilter(r))
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(journals)
		})
	}
}

func (c *Router) getContractBalances() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		contractID := id.Contract(route.ReadPathID("contractId", r))
		balances, err := c.engine.GetContractBalances(responder.XTenantID, contractID)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(balances)
		})
	}
}
