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

package realms

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/blinklabs-io/realms/api"
	"github.com/blinklabs-io/realms/crank"
	"github.com/blinklabs-io/realms/database"
	"github.com/blinklabs-io/realms/event"
	"github.com/blinklabs-io/realms/governance"
	"go.opentelemetry.io/otel/trace"
)

const defaultShutdownTimeout = 30 * time.Second

var ErrNodeStopped = errors.New("node has been stopped")

type Node struct {
	config         Config
	eventBus       *event.EventBus
	db             *database.Database
	engine         *governance.Engine
	crank          *crank.Crank
	api            *api.API
	tracerProvider trace.TracerProvider
	shutdownFuncs  []func(context.Context) error
	mu             sync.Mutex
	started        bool
	ready          chan struct{}
	done           chan struct{}
	shutdownOnce   sync.Once
}

func New(cfg Config) (*Node, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	return n, nil
}

// Run starts every component and blocks until the context is done or Stop
// is called. It does not release resources itself; call Stop afterward.
func (n *Node) Run(ctx context.Context) error {
	if err := n.start(ctx); err != nil {
		return err
	}
	close(n.ready)
	select {
	case <-ctx.Done():
	case <-n.done:
	}
	return nil
}

func (n *Node) start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	select {
	case <-n.done:
		return ErrNodeStopped
	default:
	}
	if n.started {
		return errors.New("node already running")
	}
	n.started = true
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(ctx); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		Logger:         n.config.logger,
		PromRegistry:   n.config.promRegistry,
		BlobPlugin:     n.config.blobPlugin,
		MetadataPlugin: n.config.metadataPlugin,
		DataDir:        n.config.dataDir,
	})
	if db == nil {
		if err == nil {
			err = errors.New("empty database returned")
		}
		n.config.logger.Error(
			"failed to create database",
			"error", err,
		)
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	if err != nil {
		var dbErr database.CommitTimestampError
		if errors.As(err, &dbErr) {
			// One store holds a write the other never saw, so the secondary
			// index no longer describes the account records
			n.config.logger.Error(
				"database stores are out of sync",
				"error", err,
				"data_dir", n.config.dataDir,
			)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	// Governance engine
	n.engine, err = governance.NewEngine(
		n.db,
		governance.EngineConfig{
			Logger:         n.config.logger,
			PromRegistry:   n.config.promRegistry,
			EventBus:       n.eventBus,
			Clock:          n.config.clock,
			TracerProvider: n.tracerProvider,
			ProgramID:      n.config.programID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create governance engine: %w", err)
	}
	// Finalize crank
	if n.config.crankSchedule != "" {
		n.crank, err = crank.NewCrank(crank.CrankConfig{
			Logger:       n.config.logger,
			PromRegistry: n.config.promRegistry,
			Engine:       n.engine,
			Schedule:     n.config.crankSchedule,
			TryEarly:     n.config.crankTryEarly,
		})
		if err != nil {
			return fmt.Errorf("failed to create finalize crank: %w", err)
		}
		n.crank.Start()
	}
	// REST API
	n.api = api.New(
		api.APIConfig{
			ListenAddress:   n.config.apiListenAddress,
			RequestTTL:      n.config.requestTTL,
			Faucet:          n.config.faucet,
			MaxStreamsPerIP: n.config.maxStreamsPerIP,
			PromRegistry:    n.config.promRegistry,
			Version:         n.config.version,
		},
		n.engine,
		api.NewLedgerAdapter(n.db),
		n.eventBus,
		n.config.logger,
	)
	if err := n.api.Start(ctx); err != nil {
		return fmt.Errorf("failed to start API: %w", err)
	}
	n.config.logger.Info(
		"governance node started",
		"program_id", n.engine.Addresses().ProgramID.String(),
		"data_dir", n.config.dataDir,
	)
	return nil
}

// Ready is closed once every component has started
func (n *Node) Ready() <-chan struct{} {
	return n.ready
}

// Engine returns the governance engine, or nil before Run
func (n *Node) Engine() *governance.Engine {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine
}

// EventBus returns the node's event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// APIAddr returns the bound REST API address, or nil when not listening
func (n *Node) APIAddr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.api == nil {
		return nil
	}
	return n.api.Addr()
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	shutdownTimeout := defaultShutdownTimeout
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	n.mu.Lock()
	defer n.mu.Unlock()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	if n.crank != nil {
		if stopErr := n.crank.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("crank shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain event delivery
	n.config.logger.Debug("shutdown phase 2: draining events")

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	// Phase 3: Close database
	n.config.logger.Debug("shutdown phase 3: closing database")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
