// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package database

import (
	"fmt"
	"strconv"
	"strings"

	// Embedded drivers. mysql and pq register through errors.go.
	_ "github.com/duckdb/duckdb-go/v2"
	_ "modernc.org/sqlite"
)

// Dialect names.
const (
	DialectDuckDB   = "duckdb"
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// Dialect captures the SQL differences between the supported stores.
type Dialect struct {
	// Name is one of the Dialect* constants.
	Name string

	// Driver is the database/sql driver name.
	Driver string

	// dollarParams rewrites ? placeholders to $1, $2, ...
	dollarParams bool

	// returning means INSERT ... RETURNING id is available; otherwise
	// LastInsertId is used.
	returning bool

	// orderedDelete means DELETE ... ORDER BY ... LIMIT is supported and
	// a self-referencing IN subquery is not (MySQL).
	orderedDelete bool

	// external dialects are client/server stores rather than embedded files.
	external bool
}

var dialects = map[string]*Dialect{
	DialectDuckDB:   {Name: DialectDuckDB, Driver: "duckdb", returning: true},
	DialectSQLite:   {Name: DialectSQLite, Driver: "sqlite", returning: true},
	DialectMySQL:    {Name: DialectMySQL, Driver: "mysql", orderedDelete: true, external: true},
	DialectPostgres: {Name: DialectPostgres, Driver: "postgres", dollarParams: true, returning: true, external: true},
}

// DialectFor returns the dialect registered under name. "postgresql" and
// "sqlite3" are accepted as aliases.
func DialectFor(name string) (*Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgresql", "pgx":
		name = DialectPostgres
	case "sqlite3":
		name = DialectSQLite
	}
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return d, nil
}

// External reports whether the dialect is a client/server store.
func (d *Dialect) External() bool { return d.external }

// Rebind rewrites ? placeholders for the dialect.
func (d *Dialect) Rebind(query string) string {
	if !d.dollarParams {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Logical table names.
const (
	TableOccurrences = "occurrences"
	TableMetadata    = "metadata"
)

// DefaultTablePrefix is prepended to the logical table names.
const DefaultTablePrefix = "auditkeep_"

// ValidTablePrefix reports whether prefix is safe to splice into SQL:
// ASCII letters, digits and underscores only.
func ValidTablePrefix(prefix string) bool {
	for _, r := range prefix {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// Tables holds the physical table names.
type Tables struct {
	Occurrences string
	Metadata    string
}

// TablesWithPrefix builds physical names from a prefix.
func TablesWithPrefix(prefix string) Tables {
	return Tables{
		Occurrences: prefix + TableOccurrences,
		Metadata:    prefix + TableMetadata,
	}
}

// Physical maps a logical table name to its physical name.
func (t Tables) Physical(logical string) (string, bool) {
	switch logical {
	case TableOccurrences, t.Occurrences:
		return t.Occurrences, true
	case TableMetadata, t.Metadata:
		return t.Metadata, true
	}
	return "", false
}
