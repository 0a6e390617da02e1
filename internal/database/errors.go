// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package database

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/tomtom215/auditkeep/internal/logging"
)

// Errors
var (
	// ErrNoConnection is the connect error of a nil or never-opened handle.
	ErrNoConnection = errors.New("no database connection")

	// ErrTableNotFound wraps driver errors that mean a table does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownDialect is returned for an unsupported driver name.
	ErrUnknownDialect = errors.New("unknown database dialect")

	// ErrNoArchive is the connect error of the archive handle when no
	// archive store is configured.
	ErrNoArchive = errors.New("archive store not configured")
)

const (
	mysqlErrNoSuchTable  = 1146
	pqErrUndefinedTable  = "42P01"
	duckdbCatalogErrText = "catalog error"
)

// IsTableNotFound reports whether err means a table is missing, for every
// supported dialect.
func IsTableNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTableNotFound) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrNoSuchTable
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqErrUndefinedTable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such table"):
		// sqlite
		return true
	case strings.Contains(msg, duckdbCatalogErrText) && strings.Contains(msg, "does not exist"):
		return true
	case strings.Contains(msg, "error 1146"):
		return true
	case strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"):
		return true
	}
	return false
}

// classify wraps err with ErrTableNotFound when applicable so callers can
// use errors.Is.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsTableNotFound(err) && !errors.Is(err, ErrTableNotFound) {
		return fmt.Errorf("%s: %w: %w", op, ErrTableNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// closeWithLog closes a resource and logs a failure.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}
