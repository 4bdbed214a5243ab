// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package route

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

var (
	errMissingTenant = errors.New("missing X-Tenant-Id header")
)

// ReadPathID returns the variable from the request's routed path.
func ReadPathID(name string, r *http.Request) string {
	vars := mux.Vars(r)
	if v, ok := vars[name]; ok {
		return v
	}
	return ""
}

// ReadLimit returns the "limit" query parameter (capped at 100).
func ReadLimit(r *http.Request) int64 {
	limit := readIntQuery(r, "limit")
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

// ReadOffset returns the "offset" query parameter.
func ReadOffset(r *http.Request) int64 {
	if off := readIntQuery(r, "offset"); off > 0 {
		return off
	}
	return 0
}

func readIntQuery(r *http.Request, name string) int64 {
	if r == nil {
		return 0
	}
	n, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return n
}
