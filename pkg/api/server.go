// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package api serves the local status, health and telemetry endpoints.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"

	"github.com/DataDog/datadog-collector-core/pkg/status"
	"github.com/DataDog/datadog-collector-core/pkg/status/health"
	"github.com/DataDog/datadog-collector-core/pkg/telemetry"
	"github.com/DataDog/datadog-collector-core/pkg/util/log"
)

const defaultTimeout = 5 * time.Second

// StatusProvider builds the status document
type StatusProvider interface {
	Status() *status.Status
}

// Server is the local API server
type Server struct {
	addr     string
	provider StatusProvider
}

// NewServer returns a server listening on addr once run
func NewServer(addr string, provider StatusProvider) *Server {
	return &Server{addr: addr, provider: provider}
}

// Router returns the routes served by s
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	r.HandleFunc("/status/formatted", s.formattedStatusHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)
	return r
}

// Run serves until ctx is done, then shuts the server down
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadTimeout:       defaultTimeout,
		ReadHeaderTimeout: defaultTimeout,
		WriteTimeout:      defaultTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(ln)
	}()
	log.Infof("api: listening on %s", ln.Addr())

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	timeout, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(timeout); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	body, err := jsoniter.Marshal(s.provider.Status())
	if err != nil {
		setJSONError(w, log.Errorf("Error marshalling status. Error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body) //nolint:errcheck
}

func (s *Server) formattedStatusHandler(w http.ResponseWriter, _ *http.Request) {
	out, err := status.Render(s.provider.Status())
	if err != nil {
		setJSONError(w, log.Errorf("Error rendering status. Error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(out)) //nolint:errcheck
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	h := health.GetStatus()
	if !h.IsHealthy() {
		log.Infof("Healthcheck failed on: %v", h.Unhealthy)
	}

	body, err := jsoniter.Marshal(h)
	if err != nil {
		setJSONError(w, log.Errorf("Error marshalling health. Error: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if !h.IsHealthy() {
		w.WriteHeader(http.StatusInternalServerError)
	}
	w.Write(body) //nolint:errcheck
}

func setJSONError(w http.ResponseWriter, err error, code int) {
	body, _ := jsoniter.Marshal(map[string]string{"error": err.Error()})
	http.Error(w, string(body), code)
}
