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
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/pflag"
)

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota + 1
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

var ErrOptionTypeMismatch = errors.New("option value has wrong type")

// PluginOption describes a single plugin setting. Dest must be a pointer
// matching Type: *string, *bool, *int or *uint64.
type PluginOption struct {
	Name         string
	Type         PluginOptionType
	Description  string
	DefaultValue any
	Dest         any
}

// AddToFlagSet registers the option on fs with the prefix <type>-<plugin>-
func (p *PluginOption) AddToFlagSet(
	fs *pflag.FlagSet,
	pluginType string,
	pluginName string,
) error {
	flagName := fmt.Sprintf("%s-%s-%s", pluginType, pluginName, p.Name)
	switch p.Type {
	case PluginOptionTypeString:
		dest, ok := p.Dest.(*string)
		def, defOk := p.DefaultValue.(string)
		if !ok || !defOk {
			return fmt.Errorf("%s: %w", flagName, ErrOptionTypeMismatch)
		}
		fs.StringVar(dest, flagName, def, p.Description)
	case PluginOptionTypeBool:
		dest, ok := p.Dest.(*bool)
		def, defOk := p.DefaultValue.(bool)
		if !ok || !defOk {
			return fmt.Errorf("%s: %w", flagName, ErrOptionTypeMismatch)
		}
		fs.BoolVar(dest, flagName, def, p.Description)
	case PluginOptionTypeInt:
		dest, ok := p.Dest.(*int)
		def, defOk := p.DefaultValue.(int)
		if !ok || !defOk {
			return fmt.Errorf("%s: %w", flagName, ErrOptionTypeMismatch)
		}
		fs.IntVar(dest, flagName, def, p.Description)
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		def, defOk := p.DefaultValue.(uint64)
		if !ok || !defOk {
			return fmt.Errorf("%s: %w", flagName, ErrOptionTypeMismatch)
		}
		fs.Uint64Var(dest, flagName, def, p.Description)
	default:
		return fmt.Errorf("%s: unknown option type %d", flagName, p.Type)
	}
	return nil
}

// setValue stores a Go value of the exact option type
func (p *PluginOption) setValue(value any) error {
	switch p.Type {
	case PluginOptionTypeString:
		dest, ok := p.Dest.(*string)
		v, vOk := value.(string)
		if !ok || !vOk {
			return fmt.Errorf("%s: %w", p.Name, ErrOptionTypeMismatch)
		}
		*dest = v
	case PluginOptionTypeBool:
		dest, ok := p.Dest.(*bool)
		v, vOk := value.(bool)
		if !ok || !vOk {
			return fmt.Errorf("%s: %w", p.Name, ErrOptionTypeMismatch)
		}
		*dest = v
	case PluginOptionTypeInt:
		dest, ok := p.Dest.(*int)
		v, vOk := value.(int)
		if !ok || !vOk {
			return fmt.Errorf("%s: %w", p.Name, ErrOptionTypeMismatch)
		}
		*dest = v
	case PluginOptionTypeUint:
		dest, ok := p.Dest.(*uint64)
		if !ok {
			return fmt.Errorf("%s: %w", p.Name, ErrOptionTypeMismatch)
		}
		switch v := value.(type) {
		case uint64:
			*dest = v
		case uint:
			*dest = uint64(v)
		case int:
			if v < 0 {
				return fmt.Errorf("%s: negative value %d", p.Name, v)
			}
			*dest = uint64(v)
		default:
			return fmt.Errorf("%s: %w", p.Name, ErrOptionTypeMismatch)
		}
	default:
		return fmt.Errorf("%s: unknown option type %d", p.Name, p.Type)
	}
	return nil
}

// setString parses a textual value, as found in environment variables
func (p *PluginOption) setString(value string) error {
	switch p.Type {
	case PluginOptionTypeString:
		return p.setValue(value)
	case PluginOptionTypeBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		return p.setValue(v)
	case PluginOptionTypeInt:
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		return p.setValue(v)
	case PluginOptionTypeUint:
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		return p.setValue(v)
	default:
		return fmt.Errorf("%s: unknown option type %d", p.Name, p.Type)
	}
}

// setConfigValue accepts values decoded from YAML, where numbers arrive as
// int and strings may hold numbers
func (p *PluginOption) setConfigValue(value any) error {
	if s, ok := value.(string); ok {
		return p.setString(s)
	}
	if p.Type == PluginOptionTypeUint {
		if v, ok := value.(int); ok {
			return p.setValue(v)
		}
	}
	return p.setValue(value)
}
