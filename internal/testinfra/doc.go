// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

// Package testinfra provides test infrastructure for integration testing with containers.
//
// This package uses testcontainers-go to start the external services the
// audit store and buffer talk to in production: MySQL and PostgreSQL for the
// external audit store, Redis for the shared buffer.
//
// All files carry the integration build tag:
//
//	go test -tags integration ./...
//
// # Redis Container
//
//	func TestRedisBuffer(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    rc, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, rc)
//
//	    store, err := buffer.OpenRedis(ctx, buffer.Config{RedisAddr: rc.Addr, KeyPrefix: "test"})
//	    ...
//	}
//
// # SQL Containers
//
// NewMySQLContainer and NewPostgresContainer return a DSN ready for
// database.ExternalConfig.
package testinfra
