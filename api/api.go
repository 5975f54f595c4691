// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/blinklabs-io/realms/event"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	DefaultListenAddress   = ":8080"
	DefaultMaxStreamsPerIP = 4

	replayPruneInterval = time.Minute
)

// APIConfig configures the governance REST API server.
type APIConfig struct {
	ListenAddress string
	// RequestTTL is the longest lifetime accepted for a request token
	RequestTTL time.Duration
	// Faucet routes the token issuing operations
	Faucet          bool
	MaxStreamsPerIP int
	PromRegistry    prometheus.Registerer
	Version         string
}

// API is the governance REST API server.
type API struct {
	config   APIConfig
	logger   *slog.Logger
	node     GovernanceNode
	ledger   Ledger
	bus      *event.EventBus
	verifier *requestVerifier
	metrics  *apiMetrics
	ops      map[string]opHandler
	handler  http.Handler

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	stopCh     chan struct{}

	streamsMu sync.Mutex
	ipStreams map[string]int
}

// New creates a new API server instance. The ledger and bus are optional;
// their endpoints answer 404 without them.
func New(
	cfg APIConfig,
	node GovernanceNode,
	ledger Ledger,
	bus *event.EventBus,
	logger *slog.Logger,
) *API {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.MaxStreamsPerIP <= 0 {
		cfg.MaxStreamsPerIP = DefaultMaxStreamsPerIP
	}
	if cfg.Version == "" {
		cfg.Version = "devel"
	}
	a := &API{
		config:    cfg,
		logger:    logger.With("component", "api"),
		node:      node,
		ledger:    ledger,
		bus:       bus,
		verifier:  newRequestVerifier(cfg.RequestTTL, node.Now),
		metrics:   newAPIMetrics(cfg.PromRegistry),
		stopCh:    make(chan struct{}),
		ipStreams: make(map[string]int),
	}
	a.ops = a.operations()
	a.handler = a.routes()
	return a
}

// Handler returns the HTTP handler serving every route
func (a *API) Handler() http.Handler {
	return a.handler
}

func (a *API) routes() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, a.instrument(pattern, fn))
	}
	handle("GET /{$}", a.handleRoot)
	handle("GET /health", a.handleHealth)
	handle("GET /api/v0/realms", a.handleRealms)
	handle("GET /api/v0/realms/{realm}", a.handleRealm)
	handle("GET /api/v0/realms/{realm}/config", a.handleRealmConfig)
	handle("GET /api/v0/realms/{realm}/governance", a.handleRealmGovernance)
	handle("GET /api/v0/realms/{realm}/owners/{owner}", a.handleTokenOwnerRecord)
	handle("GET /api/v0/owners/{owner}/records", a.handleOwnerRecords)
	handle("GET /api/v0/governances/{governance}", a.handleGovernance)
	handle("GET /api/v0/governances/{governance}/proposals", a.handleGovernanceProposals)
	handle("GET /api/v0/proposals", a.handleProposalsInState)
	handle("GET /api/v0/proposals/{proposal}", a.handleProposal)
	handle("GET /api/v0/proposals/{proposal}/transaction", a.handleProposalTransaction)
	handle("GET /api/v0/proposals/{proposal}/signatories", a.handleSignatories)
	handle("GET /api/v0/proposals/{proposal}/signatories/{signatory}", a.handleSignatory)
	handle("GET /api/v0/proposals/{proposal}/votes", a.handleVotes)
	handle("GET /api/v0/proposals/{proposal}/votes/{owner}", a.handleVote)
	handle("GET /api/v0/proposals/{proposal}/deposits/{depositor}", a.handleDeposit)
	handle("GET /api/v0/signatories/{signatory}/pending", a.handlePendingSignatures)
	handle("GET /api/v0/mints/{mint}", a.handleMint)
	handle("GET /api/v0/mints/{mint}/balances/{owner}", a.handleBalance)
	handle("POST /api/v0/ops/{operation}", a.handleOperation)
	handle("GET /api/v0/events", a.handleEvents)
	return withRequestID(mux)
}

// Start starts the HTTP server in a background goroutine. HTTP/2 is served
// in cleartext alongside HTTP/1.1.
func (a *API) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr:              a.config.ListenAddress,
		Handler:           h2c.NewHandler(a.handler, &http2.Server{}),
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.httpServer = server
	a.stopCh = make(chan struct{})
	stopCh := a.stopCh
	a.mu.Unlock()

	if err := a.startServer(ctx, server); err != nil {
		a.mu.Lock()
		a.httpServer = nil
		a.mu.Unlock()
		return err
	}

	a.logger.Info(
		"API listener started",
		"address", a.Addr().String(),
	)

	go a.pruneReplayCache(stopCh)

	// Monitor context for cancellation
	go func() {
		select {
		case <-ctx.Done():
		case <-stopCh:
			return
		}
		a.logger.Debug("context cancelled, shutting down API server")
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			30*time.Second,
		)
		defer cancel()
		//nolint:contextcheck
		if err := a.Stop(shutdownCtx); err != nil {
			a.logger.Error(
				"failed to shutdown API server on context cancellation",
				"error", err,
			)
		}
	}()

	return nil
}

// Stop closes open event streams and gracefully shuts down the server.
func (a *API) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.listener = nil
	if srv != nil {
		close(a.stopCh)
	}
	a.mu.Unlock()

	if srv != nil {
		a.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown API server: %w", err)
		}
	}
	return nil
}

// Addr returns the bound listen address, or nil when not started
func (a *API) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// startServer binds first so port conflicts are reported to the caller,
// then serves in a background goroutine.
func (a *API) startServer(ctx context.Context, server *http.Server) error {
	lc := net.ListenConfig{Control: socketControl}
	ln, err := lc.Listen(ctx, "tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

func (a *API) pruneReplayCache(stopCh <-chan struct{}) {
	ticker := time.NewTicker(replayPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			a.verifier.prune()
		}
	}
}

// stopped is closed by Stop so event streams end before shutdown waits
// on their connections
func (a *API) stopped() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopCh
}
