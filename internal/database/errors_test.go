// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package database

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tomtom215/auditkeep/internal/logging"
)

// mockCloser implements io.Closer for testing
type mockCloser struct {
	closed bool
	err    error
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.err
}

// Not parallel: swaps the global logger.
func TestCloseWithLog(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(prev) })

	t.Run("nil closer does not panic", func(t *testing.T) {
		buf.Reset()
		closeWithLog(nil, "test")
		if buf.Len() > 0 {
			t.Errorf("expected no log output, got: %s", buf.String())
		}
	})

	t.Run("successful close logs nothing", func(t *testing.T) {
		buf.Reset()
		c := &mockCloser{}
		closeWithLog(c, "rows")
		if !c.closed {
			t.Error("closer was not closed")
		}
		if buf.Len() > 0 {
			t.Errorf("expected no log output, got: %s", buf.String())
		}
	})

	t.Run("failed close logs warning", func(t *testing.T) {
		buf.Reset()
		closeWithLog(&mockCloser{err: errors.New("close failed")}, "rows")
		out := buf.String()
		if !strings.Contains(out, "close failed") || !strings.Contains(out, `"type":"rows"`) {
			t.Errorf("log output = %s", out)
		}
	})
}

func TestClassify(t *testing.T) {
	t.Parallel()

	if classify("op", nil) != nil {
		t.Error("classify(nil) should be nil")
	}

	missing := classify("insert occurrence", errors.New("no such table: auditkeep_occurrences"))
	if !errors.Is(missing, ErrTableNotFound) {
		t.Errorf("classify = %v, want ErrTableNotFound", missing)
	}
	if !strings.HasPrefix(missing.Error(), "insert occurrence: ") {
		t.Errorf("classify = %q, want op prefix", missing)
	}

	already := classify("count", fmt.Errorf("inner: %w", ErrTableNotFound))
	if strings.Count(already.Error(), ErrTableNotFound.Error()) != 1 {
		t.Errorf("classify double-wrapped: %q", already)
	}

	other := classify("count", errors.New("connection refused"))
	if errors.Is(other, ErrTableNotFound) {
		t.Errorf("classify(%v) should not be table-not-found", other)
	}
}
