// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package instruments

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/raynmakr/bigfin/internal/route"
	"github.com/raynmakr/bigfin/internal/secrets"
	"github.com/raynmakr/bigfin/pkg/id"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	logger log.Logger
	repo   Repository
	keeper *secrets.StringKeeper
}

func NewRouter(logger log.Logger, repo Repository, keeper *secrets.StringKeeper) *Router {
	return &Router{logger: logger, repo: repo, keeper: keeper}
}

func (c *Router) RegisterRoutes(router *mux.Router) {
	router.Methods("POST").Path("/customers/{customerId}/instruments").HandlerFunc(c.createInstrument())
	router.Methods("GET").Path("/customers/{customerId}/instruments").HandlerFunc(c.getCustomerInstruments())
	router.Methods("GET").Path("/instruments/{instrumentId}").HandlerFunc(c.getInstrument())
	router.Methods("PUT").Path("/instruments/{instrumentId}/status").HandlerFunc(c.updateStatus())
}

type createInstrumentRequest struct {
	Type           InstrumentType `json:"type"`
	Status         Status         `json:"status"`
	ProviderRef    string         `json:"providerRef"`
	SupportedRails []string       `json:"supportedRails"`
	AccountNumber  string         `json:"accountNumber"`
}

func (c *Router) createInstrument() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req createInstrumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}
		if req.Status == "" {
			req.Status = Pending
		}

		instrument := &FundingInstrument{
			TenantID:       responder.XTenantID,
			CustomerID:     id.Customer(route.ReadPathID("customerId", r)),
			Type:           req.Type,
			Status:         req.Status,
			ProviderRef:    id.ProviderRef(req.ProviderRef),
			SupportedRails: req.SupportedRails,
		}
		if req.AccountNumber != "" {
			encrypted, err := c.keeper.EncryptString(req.AccountNumber)
			if err != nil {
				responder.Log("instruments", fmt.Sprintf("error encrypting account number: %v", err))
				responder.Problem(err)
				return
			}
			instrument.EncryptedAccountNumber = encrypted
			instrument.MaskedAccountNumber = maskAccountNumber(req.AccountNumber)
		}
		if err := c.repo.CreateInstrument(instrument); err != nil {
			responder.Log("instruments", fmt.Sprintf("error creating instrument: %v", err))
			responder.Problem(err)
			return
		}
		responder.Log("instruments", fmt.Sprintf("created instrument=%s type=%s", instrument.ID, instrument.Type))

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(instrument)
		})
	}
}

func (c *Router) getCustomerInstruments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		customerID := id.Customer(route.ReadPathID("customerId", r))
		instruments, err := c.repo.GetCustomerInstruments(responder.XTenantID, customerID)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(instruments)
		})
	}
}

func (c *Router) getInstrument() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		instrumentID := id.Instrument(route.ReadPathID("instrumentId", r))
		instrument, err := c.repo.GetInstrument(responder.XTenantID, instrumentID)
		if err != nil {
			responder.Problem(err)
			return
		}
		if instrument == nil {
			http.NotFound(w, r)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(instrument)
		})
	}
}

type updateStatusRequest struct {
	Status Status `json:"status"`
}

func (c *Router) updateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}

		instrumentID := id.Instrument(route.ReadPathID("instrumentId", r))
		if err := c.repo.UpdateStatus(responder.XTenantID, instrumentID, req.Status); err != nil {
			responder.Problem(err)
			return
		}
		responder.Log("instruments", fmt.Sprintf("updated instrument=%s status=%s", instrumentID, req.Status))

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
		})
	}
}
