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
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/blinklabs-io/realms/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) uint {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return uint(port) // #nosec G115
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DatabasePath = ""
	cfg.BindAddr = "127.0.0.1"
	cfg.ApiPort = 0
	cfg.MetricsPort = 0
	cfg.ShutdownTimeout = "5s"
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRunServesMetricsUntilCanceled(t *testing.T) {
	cfg := testConfig(t)
	cfg.MetricsPort = freePort(t)
	reg := prometheus.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, discardLogger(), reg, reg)
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/metrics", cfg.MetricsPort)
	require.Eventually(t, func() bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunWithoutMetrics(t *testing.T) {
	cfg := testConfig(t)
	reg := prometheus.NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, run(ctx, cfg, discardLogger(), reg, reg))
}

func TestRunStartupFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.BlobPlugin = "does-not-exist"
	reg := prometheus.NewRegistry()
	err := run(context.Background(), cfg, discardLogger(), reg, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node error")
}

func TestRunMetricsPortInUse(t *testing.T) {
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.MetricsPort = uint(ln.Addr().(*net.TCPAddr).Port) // #nosec G115
	reg := prometheus.NewRegistry()
	err = run(context.Background(), cfg, discardLogger(), reg, reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics listener")
}
