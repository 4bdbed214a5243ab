// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package util

import (
	"strings"
	"time"
)

// Or returns primary if non-empty and backup otherwise
func Or(primary, backup string) string {
	primary = strings.TrimSpace(primary)
	if primary == "" {
		return strings.TrimSpace(backup)
	}
	return primary
}

// Yes returns true only if the provided case-insensitive value equals "yes"
func Yes(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "yes")
}

// YYMMDDTimeFormat is a time.Parse layout for dates like 2006-01-02
const YYMMDDTimeFormat = "2006-01-02"

// FirstParsedTime attempts to parse value against each layout in order and
// returns the first non-zero result.
func FirstParsedTime(value string, layouts ...string) time.Time {
	for i := range layouts {
		if t, err := time.Parse(layouts[i], value); err == nil {
			return t
		}
	}
	return time.Time{}
}
