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

// Package governance implements the token-weighted governance engine. Every
// operation runs as one read-write database transaction: it reads the
// records it needs, validates, writes, and either commits everything or
// nothing.
package governance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/database"
	"github.com/blinklabs-io/realms/event"
	"github.com/blinklabs-io/realms/governance/program"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/blinklabs-io/realms/governance"

// Clock supplies the time used for every deadline comparison
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

type EngineConfig struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	EventBus       *event.EventBus
	Clock          Clock
	Programs       *program.Registry
	TracerProvider trace.TracerProvider
	// ProgramID owns every record address. Defaults to DefaultProgramID.
	ProgramID address.Address
}

type Engine struct {
	db        *database.Database
	config    EngineConfig
	logger    *slog.Logger
	addresses Addresses
	metrics   *engineMetrics
	tracer    trace.Tracer
}

func NewEngine(db *database.Database, cfg EngineConfig) (*Engine, error) {
	if db == nil {
		return nil, errors.New("governance: database is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Programs == nil {
		cfg.Programs = program.DefaultRegistry()
	}
	if cfg.ProgramID.IsZero() {
		cfg.ProgramID = DefaultProgramID
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	e := &Engine{
		db:        db,
		config:    cfg,
		logger:    cfg.Logger.With("component", "governance"),
		addresses: NewAddresses(cfg.ProgramID),
		tracer:    cfg.TracerProvider.Tracer(tracerName),
	}
	if cfg.PromRegistry != nil {
		e.metrics = newEngineMetrics(cfg.PromRegistry)
	}
	return e, nil
}

// Addresses returns the record address derivation for this engine
func (e *Engine) Addresses() Addresses {
	return e.addresses
}

// Now returns the current time of the engine clock
func (e *Engine) Now() time.Time {
	return e.config.Clock.Now()
}

// opContext carries the state of one operation
type opContext struct {
	engine *Engine
	txn    *database.Txn
	op     string
	now    time.Time
	events []event.Event
	after  []func()
}

func (oc *opContext) nowUnix() int64 {
	return oc.now.Unix()
}

// emit queues an event for publication once the transaction commits
func (oc *opContext) emit(eventType event.EventType, data any) {
	evt := event.NewEvent(eventType, data)
	evt.Timestamp = oc.now
	oc.events = append(oc.events, evt)
}

// onCommit runs fn after a successful commit
func (oc *opContext) onCommit(fn func()) {
	oc.after = append(oc.after, fn)
}

func (oc *opContext) errorf(kind ErrorKind, format string, args ...any) *Error {
	return newError(kind, oc.op, format, args...)
}

// storeErr wraps an unexpected store failure
func (oc *opContext) storeErr(err error) error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return err
	}
	return fmt.Errorf("%s: %w", oc.op, err)
}

// update runs fn as a single read-write transaction
func (e *Engine) update(
	ctx context.Context,
	op string,
	fn func(*opContext) error,
) error {
	ctx, span := e.tracer.Start(ctx, "governance."+op)
	defer span.End()
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	oc := &opContext{
		engine: e,
		op:     op,
		now:    e.config.Clock.Now(),
	}
	err := e.db.Update(func(txn *database.Txn) error {
		oc.txn = txn
		return fn(oc)
	})
	e.observe(op, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if kind := KindOf(err); kind != 0 {
			span.SetAttributes(attribute.String("governance.error_kind", kind.String()))
			e.logger.Debug(
				"operation rejected",
				"op", op,
				"kind", kind.String(),
				"error", err,
			)
		} else {
			e.logger.Error(
				"operation failed",
				"op", op,
				"error", err,
			)
		}
		return err
	}
	for _, fn := range oc.after {
		fn()
	}
	if e.config.EventBus != nil {
		for _, evt := range oc.events {
			e.config.EventBus.Publish(evt.Type, evt)
		}
	}
	return nil
}

// view runs fn in a read-only transaction
func (e *Engine) view(
	ctx context.Context,
	op string,
	fn func(*opContext) error,
) error {
	ctx, span := e.tracer.Start(ctx, "governance."+op)
	defer span.End()
	if err := ctx.Err(); err != nil {
		return err
	}
	oc := &opContext{
		engine: e,
		op:     op,
		now:    e.config.Clock.Now(),
	}
	err := e.db.View(func(txn *database.Txn) error {
		oc.txn = txn
		return fn(oc)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		if kind := KindOf(err); kind != 0 {
			result = kind.String()
		}
	}
	e.metrics.operations.WithLabelValues(op, result).Inc()
	e.metrics.operationDuration.WithLabelValues(op).Observe(
		time.Since(start).Seconds(),
	)
}
