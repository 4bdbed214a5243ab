// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package contracts

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/moov-io/base"
	"github.com/raynmakr/bigfin/internal/ledger"
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
	router.Methods("POST").Path("/contracts").HandlerFunc(c.createContract())
	router.Methods("GET").Path("/contracts").HandlerFunc(c.getContracts())
	router.Methods("GET").Path("/contracts/{contractId}").HandlerFunc(c.getContract())
	router.Methods("GET").Path("/contracts/{contractId}/schedule").HandlerFunc(c.getSchedule())
	router.Methods("POST").Path("/contracts/{contractId}/fees").HandlerFunc(c.assessFee())
	router.Methods("POST").Path("/contracts/{contractId}/interest").HandlerFunc(c.accrueInterest())
	router.Methods("POST").Path("/contracts/{contractId}/writeoff").HandlerFunc(c.writeOff())
	router.Methods("DELETE").Path("/contracts/{contractId}").HandlerFunc(c.cancelContract())
}

type createContractRequest struct {
	CustomerID       id.Customer      `json:"customerId"`
	PrincipalCents   int64            `json:"principalCents"`
	APRBps           int64            `json:"aprBps"`
	TermMonths       int              `json:"termMonths"`
	PaymentFrequency PaymentFrequency `json:"paymentFrequency"`
	FirstPaymentDate time.Time        `json:"firstPaymentDate"`
}

func (c *Router) createContract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req createContractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}

		contract := &Contract{
			TenantID:         responder.XTenantID,
			CustomerID:       req.CustomerID,
			PrincipalCents:   req.PrincipalCents,
			APRBps:           req.APRBps,
			TermMonths:       req.TermMonths,
			PaymentFrequency: req.PaymentFrequency,
			FirstPaymentDate: base.NewTime(req.FirstPaymentDate),
		}
		contract, schedule, err := c.service.Originate(contract)
		if err != nil {
			responder.Log("contracts", fmt.Sprintf("error originating contract: %v", err))
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"contract": contract,
				"schedule": schedule,
			})
		})
	}
}

func (c *Router) getContracts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		contracts, err := c.repo.GetContracts(responder.XTenantID, route.ReadLimit(r), route.ReadOffset(r))
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(contracts)
		})
	}
}

func (c *Router) getContract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		contract, err := c.repo.GetContract(responder.XTenantID, id.Contract(route.ReadPathID("contractId", r)))
		if err != nil {
			responder.Problem(err)
			return
		}
		if contract == nil {
			http.NotFound(w, r)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(contract)
		})
	}
}

func (c *Router) getSchedule() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		schedule, err := c.repo.GetSchedule(responder.XTenantID, id.Contract(route.ReadPathID("contractId", r)))
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(schedule)
		})
	}
}

type assessFeeRequest struct {
	Kind        ledger.FeeKind `json:"kind"`
	AmountCents int64          `json:"amountCents"`
}

func (c *Router) assessFee() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req assessFeeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}

		contractID := id.Contract(route.ReadPathID("contractId", r))
		if err := c.service.AssessFee(responder.XTenantID, contractID, req.Kind, req.AmountCents, "api"); err != nil {
			responder.Log("contracts", fmt.Sprintf("error assessing fee on contract=%s: %v", contractID, err))
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
		})
	}
}

type accrueInterestRequest struct {
	AmountCents int64 `json:"amountCents"`
}

func (c *Router) accrueInterest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req accrueInterestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}

		contractID := id.Contract(route.ReadPathID("contractId", r))
		if err := c.service.AccrueInterest(responder.XTenantID, contractID, req.AmountCents, "api"); err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
		})
	}
}

func (c *Router) writeOff() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		contractID := id.Contract(route.ReadPathID("contractId", r))
		if err := c.service.WriteOff(responder.XTenantID, contractID, "api"); err != nil {
			responder.Log("contracts", fmt.Sprintf("error writing off contract=%s: %v", contractID, err))
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
		})
	}
}

func (c *Router) cancelContract() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		contractID := id.Contract(route.ReadPathID("contractId", r))
		if err := c.service.Cancel(responder.XTenantID, contractID); err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
		})
	}
}
