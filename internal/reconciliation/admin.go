// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package reconciliation

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/moov-io/base/admin"
	moovhttp "github.com/moov-io/base/http"
	"github.com/raynmakr/bigfin/internal/transfers"

	"github.com/go-kit/kit/log"
)

// RegisterAdminRoutes adds an operator endpoint that sweeps every
// active tenant through a reconciliation run, outside the daily
// schedule.
func RegisterAdminRoutes(logger log.Logger, svc *admin.Server, engine *Engine, transferRepo transfers.Repository) {
	svc.AddHandler("/reconciliation/run", sweepAllTenants(logger, engine, transferRepo))
}

func sweepAllTenants(logger log.Logger, engine *Engine, transferRepo transfers.Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			moovhttp.Problem(w, fmt.Errorf("unsupported method %s", r.Method))
			return
		}

		tenants, err := transferRepo.GetActiveTenants()
		if err != nil {
			moovhttp.Problem(w, err)
			return
		}

		var runs []*Run
		for i := range tenants {
			run, err := engine.Run(tenants[i], RunRequest{})
			if err != nil {
				logger.Log("reconciliation", fmt.Sprintf("admin sweep tenant=%s error=%v", tenants[i], err))
				continue
			}
			runs = append(runs, run)
		}
		logger.Log("reconciliation", fmt.Sprintf("admin sweep started %d runs across %d tenants", len(runs), len(tenants)))

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(runs)
	}
}
