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
	"testing"
	"time"

	"github.com/blinklabs-io/realms/database/plugin/metadata/internal/gormstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d, err := NewWithOptions()
	require.NoError(t, err)
	assert.Equal(t, "localhost", d.conn.Host)
	assert.Equal(t, uint(3306), d.conn.Port)
	assert.Equal(t, "root", d.conn.User)
	assert.Equal(t, "realms", d.conn.Database)
	assert.Equal(t, "UTC", d.conn.TimeZone)
}

func TestBuildDSN(t *testing.T) {
	d, err := NewWithOptions(
		WithHost("db.internal"),
		WithPort(3307),
		WithUser("gov"),
		WithPassword("secret"),
		WithDatabase("realms_test"),
		WithSSLMode("skip-verify"),
	)
	require.NoError(t, err)
	dsn, dbName := d.buildDSN()
	assert.Equal(t, "realms_test", dbName)
	assert.Contains(t, dsn, "gov:secret@tcp(db.internal:3307)/realms_test?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "tls=skip-verify")
}

func TestBuildDSNOverride(t *testing.T) {
	d, err := NewWithOptions(WithDSN("u:p@tcp(h:3306)/custom?parseTime=true"))
	require.NoError(t, err)
	dsn, dbName := d.buildDSN()
	assert.Equal(t, "u:p@tcp(h:3306)/custom?parseTime=true", dsn)
	assert.Equal(t, "custom", dbName)
}

func TestDSNHelpers(t *testing.T) {
	tests := []struct {
		dsn      string
		dbName   string
		dbOk     bool
		stripped string
		stripOk  bool
	}{
		{
			dsn:      "u:p@tcp(h:3306)/realms?parseTime=true",
			dbName:   "realms",
			dbOk:     true,
			stripped: "u:p@tcp(h:3306)/?parseTime=true",
			stripOk:  true,
		},
		{
			dsn:      "u:p@tcp(h:3306)/",
			dbOk:     false,
			stripped: "u:p@tcp(h:3306)/",
			stripOk:  true,
		},
		{
			dsn:     "garbage",
			dbOk:    false,
			stripOk: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.dsn, func(t *testing.T) {
			dbName, ok := parseMysqlDatabaseFromDSN(tc.dsn)
			assert.Equal(t, tc.dbOk, ok)
			assert.Equal(t, tc.dbName, dbName)
			stripped, ok := stripDatabaseFromDSN(tc.dsn)
			assert.Equal(t, tc.stripOk, ok)
			assert.Equal(t, tc.stripped, stripped)
		})
	}
}

func TestPoolOptions(t *testing.T) {
	d, err := NewWithOptions(
		WithMaxOpenConns(4),
		WithMaxIdleConns(8),
		WithConnMaxLifetime(time.Minute),
	)
	require.NoError(t, err)
	assert.Equal(t, 4, d.conn.MaxOpenConns)
	// Idle connections never exceed the pool size
	assert.Equal(t, 4, d.conn.MaxIdleConns)
	assert.Equal(t, time.Minute, d.conn.ConnMaxLifetime)
}

func TestWithConn(t *testing.T) {
	d, err := NewWithOptions(
		WithConn(gormstore.Conn{Host: "db.internal", Database: "gov"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", d.conn.Host)
	assert.Equal(t, "gov", d.conn.Database)
	assert.Equal(t, gormstore.DefaultMaxOpenConns, d.conn.MaxOpenConns)
	assert.NotZero(t, d.conn.Port)
}

func TestCloseBeforeStart(t *testing.T) {
	d, err := NewWithOptions()
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}
