// Package server exposes fingerprint and coverage diagnostics over
// Connect (HTTP/JSON).
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/codeprint/codeunit"
)

var log = commonlog.GetLogger("codeprint.server")

// Procedure paths.
const (
	ComputeProcedure       = "/codeprint.v1.FingerprintService/Compute"
	EncodeProcedure        = "/codeprint.v1.FingerprintService/Encode"
	DecodeProcedure        = "/codeprint.v1.FingerprintService/Decode"
	HasExecutedAtProcedure = "/codeprint.v1.CoverageService/HasExecutedAt"
	RangesProcedure        = "/codeprint.v1.CoverageService/Ranges"
	LookupProcedure        = "/codeprint.v1.CoverageService/Lookup"
	StatsProcedure         = "/codeprint.v1.CoverageService/Stats"
)

// CodeprintServer serves the diagnostics services for one registry.
type CodeprintServer struct {
	mux *http.ServeMux

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

// ServerOption configures a CodeprintServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	handlerOptions []connect.HandlerOption
}

// WithHandlerOptions adds connect handler options (interceptors, limits)
// to every procedure.
func WithHandlerOptions(opts ...connect.HandlerOption) ServerOption {
	return func(c *serverConfig) { c.handlerOptions = append(c.handlerOptions, opts...) }
}

// New creates a CodeprintServer over reg.
func New(reg *codeunit.Registry, opts ...ServerOption) *CodeprintServer {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	hopts := append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, cfg.handlerOptions...)

	s := &CodeprintServer{mux: http.NewServeMux()}

	fpSvc := NewFingerprintService(reg.Hasher())
	covSvc := NewCoverageService(reg)

	s.mux.Handle(ComputeProcedure, connect.NewUnaryHandler(ComputeProcedure, fpSvc.Compute, hopts...))
	s.mux.Handle(EncodeProcedure, connect.NewUnaryHandler(EncodeProcedure, fpSvc.Encode, hopts...))
	s.mux.Handle(DecodeProcedure, connect.NewUnaryHandler(DecodeProcedure, fpSvc.Decode, hopts...))
	s.mux.Handle(HasExecutedAtProcedure, connect.NewUnaryHandler(HasExecutedAtProcedure, covSvc.HasExecutedAt, hopts...))
	s.mux.Handle(RangesProcedure, connect.NewUnaryHandler(RangesProcedure, covSvc.Ranges, hopts...))
	s.mux.Handle(LookupProcedure, connect.NewUnaryHandler(LookupProcedure, covSvc.Lookup, hopts...))
	s.mux.Handle(StatsProcedure, connect.NewUnaryHandler(StatsProcedure, covSvc.Stats, hopts...))

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *CodeprintServer) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
// It returns nil after Shutdown.
func (s *CodeprintServer) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.http = srv
	s.mu.Unlock()

	log.Noticef("codeprint diagnostics listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, ComputeProcedure)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops a server started with ListenAndServe. A
// ListenAndServe call that has not started listening yet returns nil
// without serving.
func (s *CodeprintServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.closed = true
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
