// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package prefund

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raynmakr/bigfin/internal/route"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	logger  log.Logger
	service *Service
	repo    Repository
}

func NewRouter(logger log.Logger, service *Service, repo Repository) *Router {
	return &Router{logger: logger, service: service, repo: repo}
}

func (c *Router) RegisterRoutes(router *mux.Router) {
	router.Methods("POST").Path("/customers/{customerId}/prefund/deposits").HandlerFunc(c.deposit())
	router.Methods("POST").Path("/customers/{customerId}/prefund/withdrawals").HandlerFunc(c.withdraw())
	router.Methods("POST").Path("/customers/{customerId}/prefund/fees").HandlerFunc(c.chargeFee())
	router.Methods("GET").Path("/customers/{customerId}/prefund/balance").HandlerFunc(c.getBalance())
	router.Methods("GET").Path("/customers/{customerId}/prefund/transactions").HandlerFunc(c.getTransactions())
}

type amountRequest struct {
	AmountCents int64 `json:"amountCents"`
}

func (c *Router) deposit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req amountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}

		customerID := id.Customer(route.ReadPathID("customerId", r))
		transaction, err := c.service.Deposit(responder.XTenantID, customerID, req.AmountCents)
		if err != nil {
			responder.Log("prefund", fmt.Sprintf("error depositing for customer=%s: %v", customerID, err))
			responder.Problem(err)
			return
		}
		responder.Log("prefund", fmt.Sprintf("deposit customer=%s amount=%d", customerID, req.AmountCents))

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(transaction)
		})
	}
}

func (c *Router) withdraw() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req amountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}

		customerID := id.Customer(route.ReadPathID("customerId", r))
		transaction, err := c.service.Withdraw(responder.XTenantID, customerID, req.AmountCents)
		if err != nil {
			responder.Log("prefund", fmt.Sprintf("error withdrawing for customer=%s: %v", customerID, err))
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(transaction)
		})
	}
}

func (c *Router) chargeFee() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req amountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}

		customerID := id.Customer(route.ReadPathID("customerId", r))
		transaction, err := c.service.ChargeFee(responder.XTenantID, customerID, req.AmountCents)
		if err != nil {
			responder.Log("prefund", fmt.Sprintf("error charging fee for customer=%s: %v", customerID, err))
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(transaction)
		})
	}
}

func (c *Router) getBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		customerID := id.Customer(route.ReadPathID("customerId", r))
		available, ok, err := c.service.AvailableBalance(responder.XTenantID, customerID)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"customerId":        customerID,
				"availableCents":    available,
				"hasPrefundHistory": ok,
			})
		})
	}
}

func (c *Router) getTransactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		customerID := id.Customer(route.ReadPathID("customerId", r))
		transactions, err := c.repo.GetCustomerTransactions(responder.XTenantID, customerID)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(transactions)
		})
	}
}
