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

package postgres

import (
	"log/slog"
	"time"

	"github.com/blinklabs-io/realms/database/plugin/metadata/internal/gormstore"
	"github.com/prometheus/client_golang/prometheus"
)

type PostgresOptionFunc func(*MetadataStorePostgres)

// WithLogger specifies the logger object to use for logging messages
func WithLogger(logger *slog.Logger) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.logger = logger
	}
}

// WithPromRegistry specifies the registry for the connection pool stats
func WithPromRegistry(
	registry prometheus.Registerer,
) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.promRegistry = registry
	}
}

// WithConn replaces every connection setting at once. Zero fields fall back
// to the Postgres defaults
func WithConn(conn gormstore.Conn) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn = conn
	}
}

func WithHost(host string) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.Host = host
	}
}

func WithPort(port uint) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.Port = port
	}
}

func WithUser(user string) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.User = user
	}
}

func WithPassword(password string) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.Password = password
	}
}

// WithDatabase names the schema holding the realm and proposal indexes
func WithDatabase(database string) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.Database = database
	}
}

// WithSSLMode sets the sslmode keyword
func WithSSLMode(sslMode string) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.SSLMode = sslMode
	}
}

func WithTimeZone(timeZone string) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.TimeZone = timeZone
	}
}

// WithDSN takes precedence over the individual connection options
func WithDSN(dsn string) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.DSN = dsn
	}
}

// WithMaxOpenConns caps the pool. The crank and the API share it
func WithMaxOpenConns(n int) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.MaxOpenConns = n
	}
}

func WithMaxIdleConns(n int) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.MaxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) PostgresOptionFunc {
	return func(m *MetadataStorePostgres) {
		m.conn.ConnMaxLifetime = d
	}
}
