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

package plugin

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Plugin interface {
	Start() error
	Stop() error
}

// ErrorPlugin is a plugin that always returns an error on Start()
type ErrorPlugin struct {
	Err error
}

func (e *ErrorPlugin) Start() error {
	return e.Err
}

func (e *ErrorPlugin) Stop() error {
	return nil
}

// NewErrorPlugin creates a new error plugin that returns the given error on Start()
func NewErrorPlugin(err error) Plugin {
	return &ErrorPlugin{Err: err}
}

// StartPlugin gets a plugin from the registry and starts it
func StartPlugin(pluginType PluginType, pluginName string) (Plugin, error) {
	p := GetPlugin(pluginType, pluginName)
	if p == nil {
		return nil, fmt.Errorf(
			"%s plugin '%s' not found",
			PluginTypeName(pluginType),
			pluginName,
		)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf(
			"failed to start %s plugin '%s': %w",
			PluginTypeName(pluginType),
			pluginName,
			err,
		)
	}
	return p, nil
}

// SetPluginOption sets the value of a named option for a plugin entry. This
// is used by callers that need to override plugin defaults before starting a
// plugin (for example to point data-dir at a temp directory). Setting an
// option the plugin does not define is a no-op so callers can set options
// like data-dir without knowing which implementation is selected.
//
// It must be called before the plugin is instantiated.
func SetPluginOption(
	pluginType PluginType,
	pluginName string,
	optionName string,
	value any,
) error {
	pluginEntriesMutex.RLock()
	defer pluginEntriesMutex.RUnlock()
	for i := range pluginEntries {
		p := &pluginEntries[i]
		if p.Type != pluginType || p.Name != pluginName {
			continue
		}
		for j := range p.Options {
			opt := &p.Options[j]
			if opt.Name != optionName {
				continue
			}
			return opt.setValue(value)
		}
		return nil
	}
	return fmt.Errorf(
		"plugin %s of type %s not found",
		pluginName,
		PluginTypeName(pluginType),
	)
}

var (
	sharedMutex        sync.RWMutex
	sharedLogger       *slog.Logger
	sharedPromRegistry prometheus.Registerer
)

// SetLogger sets the logger handed to plugins created from the registry
func SetLogger(logger *slog.Logger) {
	sharedMutex.Lock()
	defer sharedMutex.Unlock()
	sharedLogger = logger
}

// Logger returns the logger for plugins, which may be nil
func Logger() *slog.Logger {
	sharedMutex.RLock()
	defer sharedMutex.RUnlock()
	return sharedLogger
}

// SetPromRegistry sets the metrics registry handed to plugins created from
// the registry
func SetPromRegistry(registry prometheus.Registerer) {
	sharedMutex.Lock()
	defer sharedMutex.Unlock()
	sharedPromRegistry = registry
}

// PromRegistry returns the metrics registry for plugins, which may be nil
func PromRegistry() prometheus.Registerer {
	sharedMutex.RLock()
	defer sharedMutex.RUnlock()
	return sharedPromRegistry
}
