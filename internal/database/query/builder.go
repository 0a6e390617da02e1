// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package query

import (
	"strconv"
	"strings"
)

// WhereBuilder constructs parameterized WHERE clauses with "?" placeholders.
// Dialects that number their placeholders rebind the result afterwards.
//
//	wb := query.NewWhereBuilder().AddMaxID(hwm).AddCutoff(cutoff)
//	where, args := wb.Build()
//	// id <= ? AND created_on <= ?
type WhereBuilder struct {
	clauses []string
	args    []any
}

// NewWhereBuilder creates an empty WhereBuilder.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// AddClause adds a raw condition with its arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...any) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddCutoff adds "created_on <= ?". A nil cutoff is skipped.
func (wb *WhereBuilder) AddCutoff(cutoff *float64) *WhereBuilder {
	if cutoff != nil {
		wb.AddClause("created_on <= ?", *cutoff)
	}
	return wb
}

// AddMaxID adds "id <= ?".
func (wb *WhereBuilder) AddMaxID(maxID int64) *WhereBuilder {
	return wb.AddClause("id <= ?", maxID)
}

// AddIDIn adds "id IN (<subquery>)" with the subquery's arguments.
func (wb *WhereBuilder) AddIDIn(subquery string, args ...any) *WhereBuilder {
	return wb.AddClause("id IN ("+subquery+")", args...)
}

// Build joins the clauses with AND. It returns "1=1" when empty.
func (wb *WhereBuilder) Build() (string, []any) {
	if len(wb.clauses) == 0 {
		return "1=1", []any{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns " WHERE <clauses>", or "" when empty, ready to be
// appended to a statement.
func (wb *WhereBuilder) BuildWithPrefix() (string, []any) {
	if wb.IsEmpty() {
		return "", nil
	}
	where, args := wb.Build()
	return " WHERE " + where, args
}

// Count returns the number of clauses.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty reports whether no clause was added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}

// OldestFirst is the ORDER BY used for every retention selection.
const OldestFirst = " ORDER BY created_on ASC, id ASC"

// Limit returns " LIMIT n", or "" when n <= 0.
func Limit(n int64) string {
	if n <= 0 {
		return ""
	}
	return " LIMIT " + strconv.FormatInt(n, 10)
}
