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

package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Register a blob plugin so option sections have a target
	_ "github.com/blinklabs-io/realms/database/plugin/blob/badger"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "realms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCompareFullStruct(t *testing.T) {
	path := writeConfig(t, `
databasePath: "/var/lib/realms"
bindAddr: "127.0.0.1"
apiPort: 9000
metricsPort: 9001
programId: "GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw"
crankSchedule: "*/10 * * * * *"
crankTryEarly: true
tracing: true
tracingStdout: true
requestTtl: "2m"
shutdownTimeout: "10s"
faucet: true
maxStreamsPerIp: 8
`)
	expected := &Config{
		DatabasePath:    "/var/lib/realms",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		BindAddr:        "127.0.0.1",
		ApiPort:         9000,
		MetricsPort:     9001,
		ProgramId:       "GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw",
		CrankSchedule:   "*/10 * * * * *",
		CrankTryEarly:   true,
		Tracing:         true,
		TracingStdout:   true,
		RequestTtl:      "2m",
		ShutdownTimeout: "10s",
		Faucet:          true,
		MaxStreamsPerIp: 8,
	}
	actual, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, expected, actual)
	assert.Equal(t, actual, GetConfig())
	assert.Equal(t, 2*time.Minute, actual.RequestTTLDuration())
	assert.Equal(t, 10*time.Second, actual.ShutdownTimeoutDuration())
	assert.Equal(t, address.MustParse(expected.ProgramId), actual.ProgramID())
}

func TestLoadConfigSection(t *testing.T) {
	path := writeConfig(t, `
config:
  apiPort: 7000
database:
  metadata:
    plugin: postgres
  blob:
    plugin: badger
    badger:
      gc: false
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint(7000), cfg.ApiPort)
	assert.Equal(t, "postgres", cfg.MetadataPlugin)
	assert.Equal(t, "badger", cfg.BlobPlugin)
	// Untouched keys keep their defaults
	assert.Equal(t, DefaultConfig().MetricsPort, cfg.MetricsPort)
}

func TestLoadBadPluginOption(t *testing.T) {
	path := writeConfig(t, `
database:
  blob:
    badger:
      gc: maybe
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin config")
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
apiPort: 9000
faucet: false
`)
	t.Setenv("REALMS_API_PORT", "9100")
	t.Setenv("REALMS_FAUCET", "true")
	t.Setenv("REALMS_DATABASE_METADATA_PLUGIN", "mysql")
	t.Setenv("REALMS_MAX_STREAMS_PER_IP", "2")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint(9100), cfg.ApiPort)
	assert.True(t, cfg.Faucet)
	assert.Equal(t, "mysql", cfg.MetadataPlugin)
	assert.Equal(t, 2, cfg.MaxStreamsPerIp)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"program id":       `programId: "not base58 0OIl"`,
		"request ttl":      `requestTtl: "soon"`,
		"negative timeout": `shutdownTimeout: "-5s"`,
		"port":             `apiPort: 70000`,
		"yaml":             `apiPort: [`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5*time.Minute, cfg.RequestTTLDuration())
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeoutDuration())
	cfg.RequestTtl = ""
	cfg.ShutdownTimeout = ""
	assert.Zero(t, cfg.RequestTTLDuration())
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeoutDuration())
	assert.Equal(t, address.Zero, cfg.ProgramID())
}

func TestListPlugins(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	require.NoError(t, cfg.ListPlugins(&buf))
	assert.Empty(t, buf.String())

	cfg.BlobPlugin = "list"
	require.ErrorIs(t, cfg.ListPlugins(&buf), ErrPluginListRequested)
	assert.Contains(t, buf.String(), "Available blob plugins")
	assert.Contains(t, buf.String(), "badger")
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	cfg := DefaultConfig()
	ctx := WithContext(context.Background(), cfg)
	assert.Same(t, cfg, FromContext(ctx))
}
