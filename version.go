// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package bigfin

// Version is the semantic version of this build.
var Version = "v0.6.0-dev"
