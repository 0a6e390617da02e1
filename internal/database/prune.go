// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/auditkeep/internal/database/query"
	"github.com/tomtom215/auditkeep/internal/metrics"
)

// Selection picks the oldest occurrences for deletion. Both bounds apply
// together when set.
type Selection struct {
	// Cutoff keeps only rows with created_on <= *Cutoff.
	Cutoff *float64

	// Limit caps the selection to the oldest Limit rows. Zero means no cap.
	Limit int64
}

func (s Selection) where() *query.WhereBuilder {
	return query.NewWhereBuilder().AddCutoff(s.Cutoff)
}

// subquery returns the ids of the selected rows, oldest first.
func (s Selection) subquery(table string) (string, []any) {
	where, args := s.where().BuildWithPrefix()
	return "SELECT id FROM " + table + where + query.OldestFirst + query.Limit(s.Limit), args
}

// Statement is an executed statement with its arguments, kept for audit
// trails.
type Statement struct {
	SQL  string
	Args []any
}

// String renders the statement with its arguments inlined.
func (s Statement) String() string {
	out := s.SQL
	for i, a := range s.Args {
		lit := literal(a)
		if idx := strings.Index(out, "?"); idx >= 0 {
			out = out[:idx] + lit + out[idx+1:]
			continue
		}
		out = strings.Replace(out, "$"+strconv.Itoa(i+1), lit, 1)
	}
	return out
}

func literal(a any) string {
	switch v := a.(type) {
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case float64:
		return strconv.FormatFloat(v, 'f', 6, 64)
	default:
		return fmt.Sprint(v)
	}
}

// HighWaterMark returns the largest id in the selection. ok is false when
// the selection is empty.
func (c *Conn) HighWaterMark(ctx context.Context, sel Selection) (hwm int64, ok bool, err error) {
	if err := c.ConnectErr(); err != nil {
		return 0, false, err
	}

	sub, args := sel.subquery(c.tables.Occurrences)
	query := c.dialect.Rebind("SELECT MAX(id) FROM (" + sub + ") sel")

	start := time.Now()
	var top sql.NullInt64
	err = c.db.QueryRowContext(ctx, query, args...).Scan(&top)
	metrics.RecordDBQuery("high_water_mark", c.dialect.Name, time.Since(start), err)
	if err != nil {
		return 0, false, classify("high water mark", err)
	}
	return top.Int64, top.Valid, nil
}

// DeleteMetadataUpTo deletes metadata rows with occurrence_id <= hwm in one
// statement.
func (c *Conn) DeleteMetadataUpTo(ctx context.Context, hwm int64) (int64, Statement, error) {
	where, args := query.NewWhereBuilder().AddClause("occurrence_id <= ?", hwm).Build()
	stmt := Statement{
		SQL:  c.rebind(fmt.Sprintf("DELETE FROM %s WHERE %s", c.tables.Metadata, where)),
		Args: args,
	}
	n, err := c.exec(ctx, "delete_metadata", stmt)
	return n, stmt, err
}

// DeleteOccurrences deletes the selected rows in one statement, bounded by
// id <= hwm so rows inserted after the high-water mark was taken are never
// touched.
func (c *Conn) DeleteOccurrences(ctx context.Context, sel Selection, hwm int64) (int64, Statement, error) {
	var stmt Statement
	table := c.tables.Occurrences

	if c.dialect != nil && c.dialect.orderedDelete {
		where, args := query.NewWhereBuilder().AddMaxID(hwm).AddCutoff(sel.Cutoff).Build()
		q := "DELETE FROM " + table + " WHERE " + where + query.OldestFirst + query.Limit(sel.Limit)
		stmt = Statement{SQL: c.rebind(q), Args: args}
	} else {
		sub, subArgs := sel.subquery(table)
		where, args := query.NewWhereBuilder().AddIDIn(sub, subArgs...).AddMaxID(hwm).Build()
		stmt = Statement{SQL: c.rebind("DELETE FROM " + table + " WHERE " + where), Args: args}
	}

	n, err := c.exec(ctx, "delete_occurrences", stmt)
	return n, stmt, err
}

func (c *Conn) rebind(q string) string {
	if c.dialect == nil {
		return q
	}
	return c.dialect.Rebind(q)
}

func (c *Conn) exec(ctx context.Context, op string, stmt Statement) (int64, error) {
	if err := c.ConnectErr(); err != nil {
		return 0, err
	}

	start := time.Now()
	res, err := c.db.ExecContext(ctx, stmt.SQL, stmt.Args...)
	metrics.RecordDBQuery(op, c.dialect.Name, time.Since(start), err)
	if err != nil {
		return 0, classify(strings.ReplaceAll(op, "_", " "), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n, nil
}
