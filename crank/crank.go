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

// Package crank finalizes proposals whose voting window has closed. Nothing
// in the engine finalizes on its own, so a node runs the crank on a cron
// schedule.
package crank

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/governance"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule = "@every 30s"
	defaultTimeout  = 20 * time.Second
)

// Finalizer is the part of the governance engine the crank drives
type Finalizer interface {
	Now() time.Time
	ProposalsReadyToFinalize(context.Context, time.Time) ([]address.Address, error)
	ProposalsInState(context.Context, governance.ProposalState) ([]governance.Listed[governance.Proposal], error)
	FinalizeVote(context.Context, address.Address) (governance.ProposalState, error)
}

type CrankConfig struct {
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	Engine       Finalizer
	// Schedule is a cron spec with an optional seconds field
	Schedule string
	// Timeout bounds a single run
	Timeout time.Duration
	// TryEarly also attempts proposals still inside their window, which
	// succeeds only for governances that tip early
	TryEarly bool
}

type Crank struct {
	config  CrankConfig
	logger  *slog.Logger
	cron    *cron.Cron
	metrics *crankMetrics
	runMu   sync.Mutex
}

type crankMetrics struct {
	runs      prometheus.Counter
	finalized *prometheus.CounterVec
	failures  prometheus.Counter
}

// cronLogger routes cron's internal logging through slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

func NewCrank(cfg CrankConfig) (*Crank, error) {
	if cfg.Engine == nil {
		return nil, errors.New("crank: engine is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Crank{
		config: cfg,
		logger: cfg.Logger.With("component", "crank"),
	}
	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	logger := cronLogger{logger: c.logger}
	c.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)
	if _, err := c.cron.AddFunc(cfg.Schedule, c.tick); err != nil {
		return nil, err
	}
	if cfg.PromRegistry != nil {
		c.initMetrics(cfg.PromRegistry)
	}
	return c, nil
}

func (c *Crank) initMetrics(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	c.metrics = &crankMetrics{
		runs: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "realms_crank_runs_total",
			Help: "finalize crank runs",
		}),
		finalized: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "realms_crank_finalized_total",
				Help: "proposals finalized by the crank, by resulting state",
			},
			[]string{"state"},
		),
		failures: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "realms_crank_failures_total",
			Help: "finalize attempts that failed unexpectedly",
		}),
	}
}

// Start begins running on the configured schedule
func (c *Crank) Start() {
	c.logger.Info("starting finalize crank", "schedule", c.config.Schedule)
	c.cron.Start()
}

// Stop halts the schedule and waits for a running pass to finish or ctx to
// expire
func (c *Crank) Stop(ctx context.Context) error {
	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Crank) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()
	if _, err := c.RunOnce(ctx); err != nil {
		c.logger.Error("finalize crank run failed", "error", err)
	}
}

// RunOnce finalizes every proposal that is ready and returns how many were
// finalized
func (c *Crank) RunOnce(ctx context.Context) (int, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.metrics != nil {
		c.metrics.runs.Inc()
	}
	candidates, err := c.config.Engine.ProposalsReadyToFinalize(ctx, c.config.Engine.Now())
	if err != nil {
		return 0, err
	}
	if c.config.TryEarly {
		voting, err := c.config.Engine.ProposalsInState(ctx, governance.ProposalStateVoting)
		if err != nil {
			return 0, err
		}
		seen := make(map[address.Address]struct{}, len(candidates))
		for _, addr := range candidates {
			seen[addr] = struct{}{}
		}
		for _, p := range voting {
			if _, ok := seen[p.Address]; !ok {
				candidates = append(candidates, p.Address)
			}
		}
	}
	var count int
	var errs []error
	for _, addr := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		state, err := c.config.Engine.FinalizeVote(ctx, addr)
		if err != nil {
			switch governance.KindOf(err) {
			case governance.KindVotingNotEnded, governance.KindInvalidState:
				// Still open, or finalized by someone else since listing
				continue
			}
			if c.metrics != nil {
				c.metrics.failures.Inc()
			}
			c.logger.Warn(
				"failed to finalize proposal",
				"proposal", addr.String(),
				"error", err,
			)
			errs = append(errs, err)
			continue
		}
		count++
		if c.metrics != nil {
			c.metrics.finalized.WithLabelValues(state.String()).Inc()
		}
		c.logger.Info(
			"finalized proposal",
			"proposal", addr.String(),
			"state", state.String(),
		)
	}
	return count, errors.Join(errs...)
}
