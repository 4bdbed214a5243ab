// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package transfers

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"

	"github.com/raynmakr/bigfin/internal/provider"
	"github.com/raynmakr/bigfin/internal/route"
	"github.com/raynmakr/bigfin/pkg/id"
	"github.com/raynmakr/bigfin/x/trace"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	logger        log.Logger
	orchestrator  *Orchestrator
	repo          Repository
	idempotency   IdempotencyStore
	webhookSecret string
}

func NewRouter(logger log.Logger, orchestrator *Orchestrator, repo Repository, idempotency IdempotencyStore, webhookSecret string) *Router {
	return &Router{
		logger:        logger,
		orchestrator:  orchestrator,
		repo:          repo,
		idempotency:   idempotency,
		webhookSecret: webhookSecret,
	}
}

func (c *Router) RegisterRoutes(router *mux.Router) {
	router.Methods("POST").Path("/contracts/{contractId}/disbursements").HandlerFunc(c.initiateDisbursement())
	router.Methods("GET").Path("/contracts/{contractId}/disbursements").HandlerFunc(c.getContractDisbursements())
	router.Methods("POST").Path("/contracts/{contractId}/repayments").HandlerFunc(c.initiateRepayment())
	router.Methods("GET").Path("/contracts/{contractId}/repayments").HandlerFunc(c.getContractRepayments())
	router.Methods("GET").Path("/transfers/{providerRef}").HandlerFunc(c.getTransfer())
	router.Methods("DELETE").Path("/transfers/{providerRef}").HandlerFunc(c.cancelTransfer())
	router.HandleFunc("/webhooks/provider", c.providerWebhook()).Methods("POST")
}

// replay writes a previously captured response when the caller repeats
// an idempotency key, and reports whether it did.
func (c *Router) replay(responder *route.Responder, key string) bool {
	if key == "" {
		return false
	}
	record, err := c.idempotency.Lookup(responder.XTenantID, key)
	if err != nil {
		responder.Log("transfers", fmt.Sprintf("idempotency lookup failed: %v", err))
		return false
	}
	if record == nil {
		return false
	}
	responder.Log("transfers", fmt.Sprintf("replaying response for idempotency key %s", key))
	responder.Respond(func(w http.ResponseWriter) {
		w.WriteHeader(record.StatusCode)
		w.Write(record.Response)
	})
	return true
}

func (c *Router) capture(responder *route.Responder, key string, statusCode int, body []byte) {
	if key == "" {
		return
	}
	err := c.idempotency.Capture(&IdempotencyRecord{
		Key:        key,
		TenantID:   responder.XTenantID,
		Response:   body,
		StatusCode: statusCode,
	})
	if err != nil {
		responder.Log("transfers", fmt.Sprintf("idempotency capture failed: %v", err))
	}
}

type initiationResponse struct {
	Disbursement *Disbursement   `json:"disbursement,omitempty"`
	Repayment    *Repayment      `json:"repayment,omitempty"`
	Transfer     *TransferResult `json:"transfer,omitempty"`
}

func (c *Router) initiateDisbursement() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		key := route.GetIdempotencyKey(r)
		if c.replay(responder, key) {
			return
		}

		var req DisbursementRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}
		req.ContractID = id.Contract(route.ReadPathID("contractId", r))
		req.IdempotencyKey = key

		disbursement, result, err := c.orchestrator.InitiateDisbursement(responder.XTenantID, req)
		if err != nil {
			responder.Log("transfers", fmt.Sprintf("error initiating disbursement: %v", err))
			responder.Problem(err)
			return
		}
		responder.Log("transfers", fmt.Sprintf("initiated disbursement=%s rail=%s", disbursement.ID, result.Rail))

		body, _ := json.Marshal(initiationResponse{Disbursement: disbursement, Transfer: result})
		c.capture(responder, key, http.StatusOK, body)
		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			w.Write(body)
		})
	}
}

func (c *Router) initiateRepayment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		key := route.GetIdempotencyKey(r)
		if c.replay(responder, key) {
			return
		}

		var req RepaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}
		req.ContractID = id.Contract(route.ReadPathID("contractId", r))
		req.IdempotencyKey = key

		repayment, result, err := c.orchestrator.InitiateRepayment(responder.XTenantID, req)
		if err != nil {
			responder.Log("transfers", fmt.Sprintf("error initiating repayment: %v", err))
			responder.Problem(err)
			return
		}

		body, _ := json.Marshal(initiationResponse{Repayment: repayment, Transfer: result})
		c.capture(responder, key, http.StatusOK, body)
		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			w.Write(body)
		})
	}
}

func (c *Router) getContractDisbursements() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		contractID := id.Contract(route.ReadPathID("contractId", r))
		disbursements, err := c.repo.GetContractDisbursements(responder.XTenantID, contractID)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(disbursements)
		})
	}
}

func (c *Router) getContractRepayments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		contractID := id.Contract(route.ReadPathID("contractId", r))
		repayments, err := c.repo.GetContractRepayments(responder.XTenantID, contractID)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(repayments)
		})
	}
}

func (c *Router) getTransfer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		providerRef := id.ProviderRef(route.ReadPathID("providerRef", r))
		result, err := c.orchestrator.Get(responder.XTenantID, providerRef)
		if err != nil {
			responder.Problem(err)
			return
		}
		if result == nil {
			http.NotFound(w, r)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(result)
		})
	}
}

func (c *Router) cancelTransfer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		providerRef := id.ProviderRef(route.ReadPathID("providerRef", r))
		if err := c.orchestrator.Cancel(responder.XTenantID, providerRef); err != nil {
			responder.Log("transfers", fmt.Sprintf("error canceling transfer=%s: %v", providerRef, err))
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
		})
	}
}

// providerWebhook ingests signed provider events. The tenant header is
// not required here; records are found by provider reference.
func (c *Router) providerWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		span := trace.FromRequest("webhook", r)
		defer span.Finish()

		body, err := ioutil.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "unreadable body", http.StatusBadRequest)
			return
		}

		timestamp := r.Header.Get("X-Timestamp")
		signature := r.Header.Get("X-Signature")
		if err := provider.VerifySignature(c.webhookSecret, timestamp, signature, body); err != nil {
			c.logger.Log("transfers", fmt.Sprintf("webhook signature rejected: %v", err))
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		event, err := provider.ParseEvent(body)
		if err != nil {
			c.logger.Log("transfers", fmt.Sprintf("webhook parse failed: %v", err))
			http.Error(w, "malformed event", http.StatusBadRequest)
			return
		}

		// Unknown and non-transfer events are acknowledged so the
		// provider stops redelivering them.
		if !provider.KnownEventType(event.Type) {
			c.logger.Log("transfers", fmt.Sprintf("ignoring unknown webhook event type=%s id=%s", event.Type, event.EventID))
			w.WriteHeader(http.StatusOK)
			return
		}
		status, err := provider.StatusFromEventType(event.Type)
		if err != nil {
			w.WriteHeader(http.StatusOK)
			return
		}

		data, err := event.TransferData()
		if err != nil {
			c.logger.Log("transfers", fmt.Sprintf("webhook data rejected: %v", err))
			http.Error(w, "malformed event data", http.StatusBadRequest)
			return
		}

		err = c.orchestrator.ProcessStatusUpdate(StatusUpdate{
			ProviderRef:    id.ProviderRef(data.TransferID),
			ProviderStatus: status,
		})
		if err != nil {
			c.logger.Log("transfers", fmt.Sprintf("webhook event=%s failed: %v", event.EventID, err))
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

const maxWebhookBody = 1 << 20
