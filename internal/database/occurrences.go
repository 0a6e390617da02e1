// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/auditkeep/internal/metrics"
	"github.com/tomtom215/auditkeep/internal/models"
)

// InsertOccurrence inserts occ and sets occ.ID from the store's
// auto-increment.
func (c *Conn) InsertOccurrence(ctx context.Context, occ *models.Occurrence) (int64, error) {
	if err := c.ConnectErr(); err != nil {
		return 0, err
	}
	if occ == nil {
		return 0, errors.New("insert occurrence: nil occurrence")
	}

	query := fmt.Sprintf(`INSERT INTO %s (site_id, alert_id, created_on, is_migrated) VALUES (?, ?, ?, ?)`,
		c.tables.Occurrences)
	args := []any{occ.SiteID, occ.AlertID, occ.CreatedOn, occ.IsMigrated}

	start := time.Now()
	var id int64
	var err error
	if c.dialect.returning {
		err = c.db.QueryRowContext(ctx, c.dialect.Rebind(query+" RETURNING id"), args...).Scan(&id)
	} else {
		var res sql.Result
		res, err = c.db.ExecContext(ctx, c.dialect.Rebind(query), args...)
		if err == nil {
			id, err = res.LastInsertId()
		}
	}
	metrics.RecordDBQuery("insert_occurrence", c.dialect.Name, time.Since(start), err)
	if err != nil {
		return 0, classify("insert occurrence", err)
	}

	occ.ID = id
	return id, nil
}

// InsertMetadata inserts one metadata row for occurrenceID.
func (c *Conn) InsertMetadata(ctx context.Context, occurrenceID int64, name string, value models.Value) error {
	if err := c.ConnectErr(); err != nil {
		return err
	}
	encoded, err := value.Encode()
	if err != nil {
		return fmt.Errorf("insert metadata %q: %w", name, err)
	}

	query := c.dialect.Rebind(fmt.Sprintf(`INSERT INTO %s (occurrence_id, name, value) VALUES (?, ?, ?)`,
		c.tables.Metadata))

	start := time.Now()
	_, err = c.db.ExecContext(ctx, query, occurrenceID, name, encoded)
	metrics.RecordDBQuery("insert_metadata", c.dialect.Name, time.Since(start), err)
	return classify("insert metadata", err)
}

// GetOccurrence returns the occurrence with id, or ErrNotFound.
func (c *Conn) GetOccurrence(ctx context.Context, id int64) (*models.Occurrence, error) {
	if err := c.ConnectErr(); err != nil {
		return nil, err
	}

	query := c.dialect.Rebind(fmt.Sprintf(
		`SELECT id, site_id, alert_id, created_on, is_migrated FROM %s WHERE id = ?`, c.tables.Occurrences))

	start := time.Now()
	var occ models.Occurrence
	err := c.db.QueryRowContext(ctx, query, id).
		Scan(&occ.ID, &occ.SiteID, &occ.AlertID, &occ.CreatedOn, &occ.IsMigrated)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordDBQuery("get_occurrence", c.dialect.Name, time.Since(start), nil)
		return nil, fmt.Errorf("occurrence %d: %w", id, ErrNotFound)
	}
	metrics.RecordDBQuery("get_occurrence", c.dialect.Name, time.Since(start), err)
	if err != nil {
		return nil, classify("get occurrence", err)
	}
	return &occ, nil
}

// ListOccurrences returns up to limit occurrences ordered by id, oldest
// first unless newestFirst is set.
func (c *Conn) ListOccurrences(ctx context.Context, limit int, newestFirst bool) ([]models.Occurrence, error) {
	if err := c.ConnectErr(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}

	query := fmt.Sprintf(`SELECT id, site_id, alert_id, created_on, is_migrated FROM %s ORDER BY id %s LIMIT %d`,
		c.tables.Occurrences, order, limit)

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		metrics.RecordDBQuery("list_occurrences", c.dialect.Name, time.Since(start), err)
		return nil, classify("list occurrences", err)
	}
	defer closeWithLog(rows, "occurrence rows")

	out := make([]models.Occurrence, 0, limit)
	for rows.Next() {
		var occ models.Occurrence
		if err := rows.Scan(&occ.ID, &occ.SiteID, &occ.AlertID, &occ.CreatedOn, &occ.IsMigrated); err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		out = append(out, occ)
	}
	err = rows.Err()
	metrics.RecordDBQuery("list_occurrences", c.dialect.Name, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	return out, nil
}

// ListMetadata returns the metadata of one occurrence. Rows whose value
// cannot be decoded are returned as their raw text.
func (c *Conn) ListMetadata(ctx context.Context, occurrenceID int64) (models.Data, error) {
	if err := c.ConnectErr(); err != nil {
		return nil, err
	}

	query := c.dialect.Rebind(fmt.Sprintf(`SELECT name, value FROM %s WHERE occurrence_id = ?`, c.tables.Metadata))

	start := time.Now()
	rows, err := c.db.QueryContext(ctx, query, occurrenceID)
	if err != nil {
		metrics.RecordDBQuery("list_metadata", c.dialect.Name, time.Since(start), err)
		return nil, classify("list metadata", err)
	}
	defer closeWithLog(rows, "metadata rows")

	data := make(models.Data)
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		v, err := models.ParseValue(raw)
		if err != nil {
			v = models.String(raw)
		}
		data[name] = v
	}
	err = rows.Err()
	metrics.RecordDBQuery("list_metadata", c.dialect.Name, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	return data, nil
}

// CountOccurrences returns the number of occurrence rows.
func (c *Conn) CountOccurrences(ctx context.Context) (int64, error) {
	if err := c.ConnectErr(); err != nil {
		return 0, err
	}

	start := time.Now()
	var n int64
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.tables.Occurrences)).Scan(&n)
	metrics.RecordDBQuery("count_occurrences", c.dialect.Name, time.Since(start), err)
	if err != nil {
		return 0, classify("count occurrences", err)
	}
	return n, nil
}

// CountMetadata returns the number of metadata rows.
func (c *Conn) CountMetadata(ctx context.Context) (int64, error) {
	if err := c.ConnectErr(); err != nil {
		return 0, err
	}
	var n int64
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.tables.Metadata)).Scan(&n)
	if err != nil {
		return 0, classify("count metadata", err)
	}
	return n, nil
}
