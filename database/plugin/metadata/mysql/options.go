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

package mysql

import (
	"log/slog"
	"time"

	"github.com/blinklabs-io/realms/database/plugin/metadata/internal/gormstore"
	"github.com/prometheus/client_golang/prometheus"
)

type MysqlOptionFunc func(*MetadataStoreMysql)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.logger = logger
	}
}

// WithPromRegistry specifies the registry for the connection pool stats
func WithPromRegistry(
	registry prometheus.Registerer,
) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.promRegistry = registry
	}
}

// WithConn replaces every connection setting at once. Zero fields fall back
// to the MySQL defaults
func WithConn(conn gormstore.Conn) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn = conn
	}
}

func WithHost(host string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.Host = host
	}
}

func WithPort(port uint) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.Port = port
	}
}

func WithUser(user string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.User = user
	}
}

func WithPassword(password string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.Password = password
	}
}

// WithDatabase names the schema holding the realm and proposal indexes
func WithDatabase(database string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.Database = database
	}
}

// WithSSLMode sets the tls DSN parameter
func WithSSLMode(sslMode string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.SSLMode = sslMode
	}
}

func WithTimeZone(timeZone string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.TimeZone = timeZone
	}
}

// WithDSN takes precedence over the individual connection options
func WithDSN(dsn string) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.DSN = dsn
	}
}

// WithMaxOpenConns caps the pool. The crank and the API share it
func WithMaxOpenConns(n int) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.MaxOpenConns = n
	}
}

func WithMaxIdleConns(n int) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.MaxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) MysqlOptionFunc {
	return func(m *MetadataStoreMysql) {
		m.conn.ConnMaxLifetime = d
	}
}
