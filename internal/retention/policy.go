// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package retention

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/auditkeep/internal/settings"
)

// Policy is the retention policy in force for one prune run.
type Policy struct {
	DateEnabled  bool   `json:"date_enabled"`
	MaxAge       string `json:"max_age,omitempty"`
	CountEnabled bool   `json:"count_enabled"`
	MaxCount     int64  `json:"max_count,omitempty"`
}

// Enabled reports whether any part of the policy is on.
func (p Policy) Enabled() bool {
	return p.DateEnabled || p.CountEnabled
}

// PolicyFromSettings reads the retention.* settings.
func PolicyFromSettings(p settings.Provider) Policy {
	return Policy{
		DateEnabled:  p.GetBool(settings.KeyRetentionDateEnabled),
		MaxAge:       settings.String(p, settings.KeyRetentionMaxAge, ""),
		CountEnabled: p.GetBool(settings.KeyRetentionCountEnabled),
		MaxCount:     settings.Int64(p, settings.KeyRetentionMaxCount, 0),
	}
}

// ParseMaxAge parses a retention age and returns a function that computes
// the cutoff for a given "now".
//
// Accepted forms are "N unit" (for example "6 months", "1 year", "90 days")
// and Go duration strings ("720h"). Months and years use calendar
// arithmetic, so "1 month" before March 31 is March 3 in non-leap years,
// the same as time.AddDate.
func ParseMaxAge(s string) (func(time.Time) time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidMaxAge)
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("%w: %q must be positive", ErrInvalidMaxAge, s)
		}
		return func(now time.Time) time.Time { return now.Add(-d) }, nil
	}

	num, unit := splitAge(s)
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMaxAge, s)
	}

	switch strings.TrimSuffix(unit, "s") {
	case "second", "sec":
		return shift(time.Duration(n) * time.Second), nil
	case "minute", "min":
		return shift(time.Duration(n) * time.Minute), nil
	case "hour":
		return shift(time.Duration(n) * time.Hour), nil
	case "day":
		return func(now time.Time) time.Time { return now.AddDate(0, 0, -n) }, nil
	case "week":
		return func(now time.Time) time.Time { return now.AddDate(0, 0, -7*n) }, nil
	case "month":
		return func(now time.Time) time.Time { return now.AddDate(0, -n, 0) }, nil
	case "year":
		return func(now time.Time) time.Time { return now.AddDate(-n, 0, 0) }, nil
	default:
		return nil, fmt.Errorf("%w: unknown unit in %q", ErrInvalidMaxAge, s)
	}
}

// splitAge splits "6 months" and "6months" into number and unit.
func splitAge(s string) (string, string) {
	if fields := strings.Fields(s); len(fields) == 2 {
		return fields[0], fields[1]
	}
	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if i <= 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func shift(d time.Duration) func(time.Time) time.Time {
	return func(now time.Time) time.Time { return now.Add(-d) }
}
