// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package reconciliation

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/raynmakr/bigfin/internal/errcode"
	"github.com/raynmakr/bigfin/internal/route"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
)

type Router struct {
	logger log.Logger
	engine *Engine
	repo   Repository
}

func NewRouter(logger log.Logger, engine *Engine, repo Repository) *Router {
	return &Router{
		logger: logger,
		engine: engine,
		repo:   repo,
	}
}

func (c *Router) RegisterRoutes(router *mux.Router) {
	router.Methods("POST").Path("/reconciliation/runs").HandlerFunc(c.triggerRun())
	router.Methods("GET").Path("/reconciliation/runs").HandlerFunc(c.getRuns())
	router.Methods("GET").Path("/reconciliation/runs/{runId}").HandlerFunc(c.getRun())
	router.Methods("GET").Path("/reconciliation/runs/{runId}/exceptions").HandlerFunc(c.getRunExceptions())
	router.Methods("GET").Path("/reconciliation/exceptions").HandlerFunc(c.getOpenExceptions())
	router.Methods("PUT").Path("/reconciliation/exceptions/{exceptionId}/status").HandlerFunc(c.updateExceptionStatus())
	router.Methods("PUT").Path("/reconciliation/exceptions/{exceptionId}/resolve").HandlerFunc(c.resolveException())
}

func (c *Router) triggerRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		// an empty body runs everything over the default period
		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			responder.Problem(err)
			return
		}

		run, err := c.engine.Run(responder.XTenantID, req)
		if err != nil {
			responder.Log("reconciliation", fmt.Sprintf("error running reconciliation: %v", err))
			responder.Problem(err)
			return
		}
		responder.Log("reconciliation", fmt.Sprintf("triggered run=%s", run.ID))

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(run)
		})
	}
}

func (c *Router) getRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		runs, err := c.repo.GetRuns(responder.XTenantID, route.ReadLimit(r), route.ReadOffset(r))
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(runs)
		})
	}
}

func (c *Router) getRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		run, err := c.repo.GetRun(responder.XTenantID, route.ReadPathID("runId", r))
		if err != nil {
			responder.Problem(err)
			return
		}
		if run == nil {
			http.NotFound(w, r)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(run)
		})
	}
}

func (c *Router) getRunExceptions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		exceptions, err := c.repo.GetRunExceptions(responder.XTenantID, route.ReadPathID("runId", r))
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(exceptions)
		})
	}
}

func (c *Router) getOpenExceptions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		exceptions, err := c.repo.GetOpenExceptions(responder.XTenantID)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(exceptions)
		})
	}
}

func (c *Router) updateExceptionStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		var req struct {
			Status ExceptionStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			responder.Problem(err)
			return
		}
		if err := req.Status.Validate(); err != nil {
			responder.Problem(err)
			return
		}
		if req.Status == Resolved {
			responder.Problem(errcode.New(errcode.InvalidRequest, "resolving requires a resolution, use /resolve"))
			return
		}

		exceptionID := route.ReadPathID("exceptionId", r)
		if err := c.repo.UpdateExceptionStatus(responder.XTenantID, exceptionID, req.Status); err != nil {
			responder.Log("reconciliation", fmt.Sprintf("error updating exception=%s: %v", exceptionID, err))
			responder.Problem(err)
			return
		}

		exception, err := c.repo.GetException(responder.XTenantID, exceptionID)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(exception)
		})
	}
}

func (c *Router) resolveException() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responder := route.NewResponder(c.logger, w, r)
		if responder == nil {
			return
		}

		exceptionID := route.ReadPathID("exceptionId", r)
		if err := c.repo.ResolveException(responder.XTenantID, exceptionID, Manual); err != nil {
			responder.Log("reconciliation", fmt.Sprintf("error resolving exception=%s: %v", exceptionID, err))
			responder.Problem(err)
			return
		}

		exception, err := c.repo.GetException(responder.XTenantID, exceptionID)
		if err != nil {
			responder.Problem(err)
			return
		}

		responder.Respond(func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(exception)
		})
	}
}
