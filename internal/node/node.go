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

package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/realms"
	"github.com/blinklabs-io/realms/internal/config"
	"github.com/blinklabs-io/realms/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Run starts a governance node from the loaded configuration and blocks
// until SIGINT or SIGTERM.
func Run(cfg *config.Config, logger *slog.Logger) error {
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()
	return run(signalCtx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func run(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	registerer prometheus.Registerer,
	gatherer prometheus.Gatherer,
) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")
	shutdownTimeout := cfg.ShutdownTimeoutDuration()
	d, err := realms.New(
		realms.NewConfig(
			realms.WithLogger(logger),
			realms.WithDatabasePath(cfg.DatabasePath),
			realms.WithBlobPlugin(cfg.BlobPlugin),
			realms.WithMetadataPlugin(cfg.MetadataPlugin),
			realms.WithProgramID(cfg.ProgramID()),
			realms.WithApiListenAddress(
				fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort),
			),
			realms.WithRequestTTL(cfg.RequestTTLDuration()),
			realms.WithFaucet(cfg.Faucet),
			realms.WithMaxStreamsPerIP(cfg.MaxStreamsPerIp),
			realms.WithCrankSchedule(cfg.CrankSchedule),
			realms.WithCrankTryEarly(cfg.CrankTryEarly),
			realms.WithTracing(cfg.Tracing),
			realms.WithTracingStdout(cfg.TracingStdout),
			realms.WithShutdownTimeout(shutdownTimeout),
			realms.WithVersion(version.GetVersionString()),
			// Enable metrics with default prometheus registry
			realms.WithPrometheusRegistry(registerer),
		),
	)
	if err != nil {
		return err
	}

	var metricsServer *http.Server
	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr: fmt.Sprintf(
				"%s:%d",
				cfg.BindAddr,
				cfg.MetricsPort,
			),
			Handler:           mux,
			ReadHeaderTimeout: 60 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := d.Run(gctx); err != nil {
			return fmt.Errorf("node error: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		logger.Info(
			"serving prometheus metrics on "+metricsServer.Addr,
			"component",
			"node",
		)
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to start metrics listener: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("signal received, initiating graceful shutdown")
		}
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		var err error
		if metricsServer != nil {
			if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Error("metrics server shutdown error", "error", shutdownErr)
				err = errors.Join(err, shutdownErr)
			}
		}
		if stopErr := d.Stop(); stopErr != nil {
			logger.Error("shutdown errors occurred", "error", stopErr)
			err = errors.Join(err, stopErr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("node stopped with errors", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
