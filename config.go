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
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/api"
	"github.com/blinklabs-io/realms/governance"
	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	clock            governance.Clock
	programID        address.Address
	dataDir          string
	blobPlugin       string
	metadataPlugin   string
	apiListenAddress string
	crankSchedule    string
	version          string
	requestTTL       time.Duration
	shutdownTimeout  time.Duration
	maxStreamsPerIP  int
	faucet           bool
	crankTryEarly    bool
	tracing          bool
	tracingStdout    bool
}

func (c *Config) validate() error {
	if c.requestTTL < 0 {
		return errors.New("request TTL must not be negative")
	}
	if c.shutdownTimeout < 0 {
		return errors.New("shutdown timeout must not be negative")
	}
	if c.maxStreamsPerIP < 0 {
		return errors.New("max streams per IP must not be negative")
	}
	if c.tracingStdout && !c.tracing {
		return errors.New("stdout tracing requires tracing to be enabled")
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the Realms config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new Realms config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:           slog.New(slog.NewJSONHandler(io.Discard, nil)),
		apiListenAddress: api.DefaultListenAddress,
		maxStreamsPerIP:  api.DefaultMaxStreamsPerIP,
		programID:        governance.DefaultProgramID,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithDatabasePath specifies the persistent data directory to use. The default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithBlobPlugin specifies the blob storage plugin to use.
func WithBlobPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.blobPlugin = plugin
	}
}

// WithMetadataPlugin specifies the metadata storage plugin to use.
func WithMetadataPlugin(plugin string) ConfigOptionFunc {
	return func(c *Config) {
		c.metadataPlugin = plugin
	}
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. Metrics are not recorded without one
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithClock replaces the wall clock used for voting deadlines
func WithClock(clock governance.Clock) ConfigOptionFunc {
	return func(c *Config) {
		c.clock = clock
	}
}

// WithProgramID specifies the program address that owns every governance record
func WithProgramID(programID address.Address) ConfigOptionFunc {
	return func(c *Config) {
		c.programID = programID
	}
}

// WithApiListenAddress specifies the host:port for the REST API
func WithApiListenAddress(addr string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = addr
	}
}

// WithRequestTTL specifies the longest lifetime accepted for a signed request token
func WithRequestTTL(ttl time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.requestTTL = ttl
	}
}

// WithFaucet enables the token mint and airdrop operations on the API
func WithFaucet(faucet bool) ConfigOptionFunc {
	return func(c *Config) {
		c.faucet = faucet
	}
}

// WithMaxStreamsPerIP limits concurrent event streams per client address
func WithMaxStreamsPerIP(limit int) ConfigOptionFunc {
	return func(c *Config) {
		c.maxStreamsPerIP = limit
	}
}

// WithCrankSchedule specifies the cron schedule for finalizing expired proposals. An empty schedule disables the crank
func WithCrankSchedule(schedule string) ConfigOptionFunc {
	return func(c *Config) {
		c.crankSchedule = schedule
	}
}

// WithCrankTryEarly makes the crank also attempt proposals still inside their voting window
func WithCrankTryEarly(tryEarly bool) ConfigOptionFunc {
	return func(c *Config) {
		c.crankTryEarly = tryEarly
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithVersion specifies the version string reported by the API
func WithVersion(version string) ConfigOptionFunc {
	return func(c *Config) {
		c.version = version
	}
}
