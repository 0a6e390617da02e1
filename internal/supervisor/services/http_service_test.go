// Auditkeep - Security Audit Event Logging and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auditkeep

package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*HTTPServerService)(nil)

// stubServer blocks in ListenAndServe until Shutdown, or fails at once
// with listenErr.
type stubServer struct {
	listenErr   error
	shutdownErr error

	once     sync.Once
	stopped  chan struct{}
	mu       sync.Mutex
	shutdown int
}

func newStubServer() *stubServer {
	return &stubServer{stopped: make(chan struct{})}
}

func (s *stubServer) ListenAndServe() error {
	if s.listenErr != nil {
		return s.listenErr
	}
	<-s.stopped
	return http.ErrServerClosed
}

func (s *stubServer) Shutdown(context.Context) error {
	s.mu.Lock()
	s.shutdown++
	s.mu.Unlock()
	s.once.Do(func() { close(s.stopped) })
	return s.shutdownErr
}

func (s *stubServer) shutdownCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shutdown
}

func TestNewHTTPServerService_Timeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, 10 * time.Second},
		{-time.Second, 10 * time.Second},
		{3 * time.Second, 3 * time.Second},
	}
	for _, tt := range tests {
		svc := NewHTTPServerService(newStubServer(), tt.in)
		if svc.shutdownTimeout != tt.want {
			t.Errorf("shutdownTimeout(%v) = %v, want %v", tt.in, svc.shutdownTimeout, tt.want)
		}
	}
	if got := NewHTTPServerService(newStubServer(), 0).String(); got != "http-server" {
		t.Errorf("String() = %q, want http-server", got)
	}
}

func TestHTTPServerService_Serve(t *testing.T) {
	t.Parallel()

	listenFail := errors.New("address already in use")
	shutdownFail := errors.New("shutdown deadline exceeded")

	tests := []struct {
		name         string
		server       func() *stubServer
		cancel       bool
		wantErr      error
		wantShutdown int
	}{
		{
			name:         "cancel shuts down",
			server:       newStubServer,
			cancel:       true,
			wantErr:      context.Canceled,
			wantShutdown: 1,
		},
		{
			name: "listen failure",
			server: func() *stubServer {
				s := newStubServer()
				s.listenErr = listenFail
				return s
			},
			wantErr: listenFail,
		},
		{
			name: "shutdown failure",
			server: func() *stubServer {
				s := newStubServer()
				s.shutdownErr = shutdownFail
				return s
			},
			cancel:       true,
			wantErr:      shutdownFail,
			wantShutdown: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := tt.server()
			svc := NewHTTPServerService(srv, time.Second)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- svc.Serve(ctx) }()

			if tt.cancel {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}

			select {
			case err := <-done:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Serve() error = %v, want %v", err, tt.wantErr)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("Serve() did not return")
			}
			if got := srv.shutdownCalls(); got != tt.wantShutdown {
				t.Errorf("Shutdown calls = %d, want %d", got, tt.wantShutdown)
			}
		})
	}
}

// freeAddr returns a loopback address that was free a moment ago.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestHTTPServerService_DrainsInFlightRequest(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/buffer/drain", func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	addr := freeAddr(t)
	svc := NewHTTPServerService(&http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: time.Second}, 5*time.Second)

	sup := suture.NewSimple("test-api")
	sup.Add(svc)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	var resp *http.Response
	var reqErr error
	reqDone := make(chan struct{})
	go func() {
		defer close(reqDone)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			resp, reqErr = http.Post("http://"+addr+"/api/v1/buffer/drain", "application/json", nil)
			if reqErr == nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		cancel()
		t.Fatal("request never reached the handler")
	}

	// Shutdown begins while the request is still in flight.
	cancel()
	time.Sleep(20 * time.Millisecond)
	close(release)

	<-reqDone
	if reqErr != nil {
		t.Fatalf("in-flight request failed: %v", reqErr)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
