// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package secrets

import (
	"testing"
	"time"
)

// TestStringKeeper returns a StringKeeper backed by the fixed local
// development key.
func TestStringKeeper(t *testing.T) *StringKeeper {
	t.Helper()

	keeper, err := OpenLocal("")
	if err != nil {
		t.Fatal(err)
	}
	return NewStringKeeper(keeper, 1*time.Second)
}
