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
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/database/plugin"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "realms.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultRequestTTL      = "5m"
	DefaultCrankSchedule   = "@every 30s"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

// ErrPluginListRequested is returned when the user requests to list available plugins
// This is not an error condition but a successful operation that displays plugin information
var ErrPluginListRequested = errors.New("plugin list requested")

type tempConfig struct {
	Config   *yaml.Node                `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	DatabasePath   string `yaml:"databasePath"   split_words:"true"`
	BlobPlugin     string `yaml:"blobPlugin"     envconfig:"DATABASE_BLOB_PLUGIN"`
	MetadataPlugin string `yaml:"metadataPlugin" envconfig:"DATABASE_METADATA_PLUGIN"`
	BindAddr       string `yaml:"bindAddr"       split_words:"true"`
	ApiPort        uint   `yaml:"apiPort"        split_words:"true"`
	MetricsPort    uint   `yaml:"metricsPort"    split_words:"true"`
	// ProgramId owns every record address, empty for the default
	ProgramId       string `yaml:"programId"       split_words:"true"`
	CrankSchedule   string `yaml:"crankSchedule"   split_words:"true"`
	CrankTryEarly   bool   `yaml:"crankTryEarly"   split_words:"true"`
	Tracing         bool   `yaml:"tracing"`
	TracingStdout   bool   `yaml:"tracingStdout"   split_words:"true"`
	RequestTtl      string `yaml:"requestTtl"      split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`
	// Faucet routes the token issuing API operations. Development only.
	Faucet          bool `yaml:"faucet"`
	MaxStreamsPerIp int  `yaml:"maxStreamsPerIp" split_words:"true"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		DatabasePath:    ".realms",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		BindAddr:        "0.0.0.0",
		ApiPort:         8080,
		MetricsPort:     12799,
		CrankSchedule:   DefaultCrankSchedule,
		RequestTtl:      DefaultRequestTTL,
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxStreamsPerIp: 4,
	}
}

var globalConfig = DefaultConfig()

// Validate checks values that the loaders cannot type check
func (c *Config) Validate() error {
	if c.ProgramId != "" {
		if _, err := address.Parse(c.ProgramId); err != nil {
			return fmt.Errorf("invalid programId: %w", err)
		}
	}
	for name, value := range map[string]string{
		"requestTtl":      c.RequestTtl,
		"shutdownTimeout": c.ShutdownTimeout,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s: %s is negative", name, value)
		}
	}
	if c.ApiPort > 65535 || c.MetricsPort > 65535 {
		return errors.New("ports must be at most 65535")
	}
	return nil
}

// ProgramID returns the configured program address, or the zero address
// to select the default
func (c *Config) ProgramID() address.Address {
	if c.ProgramId == "" {
		return address.Zero
	}
	ret, err := address.Parse(c.ProgramId)
	if err != nil {
		return address.Zero
	}
	return ret
}

// RequestTTLDuration returns the parsed request token lifetime, zero when unset
func (c *Config) RequestTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.RequestTtl)
	return d
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout, falling back
// to the default
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(c.ShutdownTimeout); err == nil {
		return d
	}
	d, _ := time.ParseDuration(DefaultShutdownTimeout)
	return d
}

// ListPlugins writes the available plugins to w and returns
// ErrPluginListRequested when either plugin option is "list"
func (c *Config) ListPlugins(w io.Writer) error {
	var pluginType plugin.PluginType
	switch {
	case c.BlobPlugin == "list":
		pluginType = plugin.PluginTypeBlob
	case c.MetadataPlugin == "list":
		pluginType = plugin.PluginTypeMetadata
	default:
		return nil
	}
	fmt.Fprintf(w, "Available %s plugins:\n", plugin.PluginTypeName(pluginType))
	for _, p := range plugin.GetPlugins(pluginType) {
		fmt.Fprintf(w, "  %s: %s\n", p.Name, p.Description)
	}
	return ErrPluginListRequested
}

// findConfigFile looks for ~/.realms/realms.yaml, then
// /etc/realms/realms.yaml
func findConfigFile() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, ".realms", "realms.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return userPath
		}
	}
	systemPath := "/etc/realms/realms.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath
	}
	return ""
}

// pluginSection splits a database.blob or database.metadata section into
// the selected plugin name and per-plugin option maps
func pluginSection(section map[string]any, kind string) (string, map[string]map[string]any) {
	var name string
	if pluginVal, exists := section["plugin"]; exists {
		if pluginName, ok := pluginVal.(string); ok {
			name = pluginName
		}
	}
	ret := make(map[string]map[string]any)
	for k, v := range section {
		if k == "plugin" {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			ret[k] = val
		case map[any]any:
			stringAnyMap := make(map[string]any, len(val))
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			ret[k] = stringAnyMap
		default:
			fmt.Fprintf(os.Stderr, "warning: skipping %s config entry %q: expected map, got %T\n", kind, k, v)
		}
	}
	return name, ret
}

func mergePluginConfig(dst map[string]map[string]map[string]any, kind string, src map[string]map[string]any) {
	if dst[kind] == nil {
		dst[kind] = src
		return
	}
	maps.Copy(dst[kind], src)
}

func loadConfigFile(cfg *Config, configFile string) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	if tempCfg.Config != nil {
		// Decode the config section straight onto the defaults so unset keys
		// keep their values
		if err := tempCfg.Config.Decode(cfg); err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Blob != nil {
		pluginConfig["blob"] = tempCfg.Blob
	}
	if tempCfg.Metadata != nil {
		pluginConfig["metadata"] = tempCfg.Metadata
	}
	if tempCfg.Database != nil {
		if tempCfg.Database.Blob != nil {
			name, section := pluginSection(tempCfg.Database.Blob, "blob")
			if name != "" {
				cfg.BlobPlugin = name
			}
			mergePluginConfig(pluginConfig, "blob", section)
		}
		if tempCfg.Database.Metadata != nil {
			name, section := pluginSection(tempCfg.Database.Metadata, "metadata")
			if name != "" {
				cfg.MetadataPlugin = name
			}
			mergePluginConfig(pluginConfig, "metadata", section)
		}
	}
	if len(pluginConfig) > 0 {
		if err := plugin.ProcessConfig(pluginConfig); err != nil {
			return fmt.Errorf("error processing plugin config: %w", err)
		}
	}
	return nil
}

// LoadConfig builds the config from the defaults, the config file and
// REALMS_* environment variables, in that order. An empty configFile
// selects the first of ~/.realms/realms.yaml and /etc/realms/realms.yaml
// that exists.
func LoadConfig(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		if err := loadConfigFile(cfg, configFile); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("realms", cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := plugin.ProcessEnvVars(); err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

// GetConfig returns the most recently loaded config, or the defaults
func GetConfig() *Config {
	return globalConfig
}
