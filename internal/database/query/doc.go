// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package query builds the parameterized WHERE clauses of the retention
// statements.
//
// Values are always bound as arguments; only table names and LIMIT values,
// both produced by the database package itself, are formatted into SQL.
//
//	where, args := query.NewWhereBuilder().
//	    AddCutoff(sel.Cutoff).
//	    BuildWithPrefix()
//	sql := "SELECT id FROM " + table + where + query.OldestFirst + query.Limit(sel.Limit)
package query
