// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

//go:build integration

package testinfra

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
)

const (
	// DefaultRedisImage is the Redis image used for the shared buffer.
	DefaultRedisImage = "redis:7-alpine"

	// DefaultMySQLImage is the MySQL image used for the external audit store.
	DefaultMySQLImage = "mysql:8.0"

	// DefaultPostgresImage is the PostgreSQL image used for the external audit store.
	DefaultPostgresImage = "postgres:16-alpine"

	testDatabase = "auditkeep"
	testUser     = "auditkeep"
	testPassword = "auditkeep"
)

// RedisContainer is a running Redis server.
type RedisContainer struct {
	testcontainers.Container
	Addr string
}

// NewRedisContainer creates and starts a Redis container.
func NewRedisContainer(ctx context.Context, opts ...ContainerOption) (*RedisContainer, error) {
	cfg := applyOptions(DefaultRedisImage, opts)

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   listening("6379/tcp", "Ready to accept connections", 1, cfg.startTimeout),
	}

	container, addr, err := startContainer(ctx, req, "6379/tcp")
	if err != nil {
		return nil, err
	}
	return &RedisContainer{Container: container, Addr: addr}, nil
}

// SQLContainer is a running SQL server with a DSN for the test database.
type SQLContainer struct {
	testcontainers.Container
	Driver string
	DSN    string
}

// NewMySQLContainer creates and starts a MySQL container. The DSN is in
// go-sql-driver/mysql format.
func NewMySQLContainer(ctx context.Context, opts ...ContainerOption) (*SQLContainer, error) {
	cfg := applyOptions(DefaultMySQLImage, opts)

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": testPassword,
			"MYSQL_DATABASE":      testDatabase,
			"MYSQL_USER":          testUser,
			"MYSQL_PASSWORD":      testPassword,
		},
		// MySQL logs this line once for the init server and once for the real one.
		WaitingFor: listening("3306/tcp", "ready for connections", 2, cfg.startTimeout),
	}

	container, addr, err := startContainer(ctx, req, "3306/tcp")
	if err != nil {
		return nil, err
	}
	return &SQLContainer{
		Container: container,
		Driver:    "mysql",
		DSN:       fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", testUser, testPassword, addr, testDatabase),
	}, nil
}

// NewPostgresContainer creates and starts a PostgreSQL container. The DSN is
// in lib/pq URL format.
func NewPostgresContainer(ctx context.Context, opts ...ContainerOption) (*SQLContainer, error) {
	cfg := applyOptions(DefaultPostgresImage, opts)

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDatabase,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: listening("5432/tcp", "database system is ready to accept connections", 2, cfg.startTimeout),
	}

	container, addr, err := startContainer(ctx, req, "5432/tcp")
	if err != nil {
		return nil, err
	}
	return &SQLContainer{
		Container: container,
		Driver:    "postgres",
		DSN:       fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", testUser, testPassword, addr, testDatabase),
	}, nil
}
