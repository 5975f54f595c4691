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

package database

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/realms/database/plugin"
	"github.com/blinklabs-io/realms/database/plugin/blob"
	"github.com/blinklabs-io/realms/database/plugin/metadata"
	"github.com/prometheus/client_golang/prometheus"

	// Register storage plugins
	_ "github.com/blinklabs-io/realms/database/plugin/blob/badger"
	_ "github.com/blinklabs-io/realms/database/plugin/metadata/mysql"
	_ "github.com/blinklabs-io/realms/database/plugin/metadata/postgres"
	_ "github.com/blinklabs-io/realms/database/plugin/metadata/sqlite"
)

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

type Config struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	BlobPlugin     string
	MetadataPlugin string
	// DataDir is passed to plugins that store data locally. An empty value
	// keeps everything in memory.
	DataDir string
}

// Database pairs the account blob store with the metadata index store.
// Read-write transactions are applied one at a time in the order they are
// opened.
type Database struct {
	logger   *slog.Logger
	config   *Config
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	writeMu  sync.Mutex
}

// New opens both stores through the plugin registry
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if config.BlobPlugin == "" {
		config.BlobPlugin = DefaultBlobPlugin
	}
	if config.MetadataPlugin == "" {
		config.MetadataPlugin = DefaultMetadataPlugin
	}
	plugin.SetLogger(config.Logger)
	plugin.SetPromRegistry(config.PromRegistry)
	if err := plugin.SetPluginOption(
		plugin.PluginTypeBlob,
		config.BlobPlugin,
		"data-dir",
		config.DataDir,
	); err != nil {
		return nil, err
	}
	if err := plugin.SetPluginOption(
		plugin.PluginTypeMetadata,
		config.MetadataPlugin,
		"data-dir",
		config.DataDir,
	); err != nil {
		return nil, err
	}
	metadataDb, err := metadata.New(config.MetadataPlugin)
	if err != nil {
		return nil, fmt.Errorf("metadata store: %w", err)
	}
	blobDb, err := blob.New(config.BlobPlugin)
	if err != nil {
		_ = metadataDb.Close()
		return nil, fmt.Errorf("blob store: %w", err)
	}
	db := &Database{
		logger:   config.Logger,
		config:   config,
		blob:     blobDb,
		metadata: metadataDb,
	}
	if err := db.checkCommitTimestamp(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}

// NewFromStores wraps already opened stores
func NewFromStores(
	logger *slog.Logger,
	blobStore blob.BlobStore,
	metadataStore metadata.MetadataStore,
) (*Database, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	db := &Database{
		logger:   logger,
		config:   &Config{Logger: logger},
		blob:     blobStore,
		metadata: metadataStore,
	}
	if err := db.checkCommitTimestamp(); err != nil {
		return db, err
	}
	return db, nil
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.config.DataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Transaction starts a new database transaction and returns a handle to it.
// A read-write transaction blocks until every earlier read-write transaction
// has finished.
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Update runs fn in a read-write transaction, committing on success
func (d *Database) Update(fn func(*Txn) error) error {
	return d.Transaction(true).Do(fn)
}

// View runs fn in a read-only transaction
func (d *Database) View(fn func(*Txn) error) error {
	txn := d.Transaction(false)
	defer txn.Release()
	return fn(txn)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}
