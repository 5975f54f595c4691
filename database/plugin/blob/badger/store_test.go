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

package badger_test

import (
	"testing"

	"github.com/blinklabs-io/realms/database/plugin/blob/badger"
	"github.com/blinklabs-io/realms/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts ...badger.BlobStoreBadgerOptionFunc) *badger.BlobStoreBadger {
	t.Helper()
	store, err := badger.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetGetDelete(t *testing.T) {
	store := newTestStore(t)

	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k1"), []byte("v1")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	val, err := store.Get(txn, []byte("k1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), val)
	_, err = store.Get(txn, []byte("missing"))
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
	require.NoError(t, txn.Rollback())

	txn = store.NewTransaction(true)
	require.NoError(t, store.Delete(txn, []byte("k1")))
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err = store.Get(txn, []byte("k1"))
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("v")))
	require.NoError(t, txn.Rollback())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	_, err := store.Get(txn, []byte("k"))
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)
}

func TestTxnValidation(t *testing.T) {
	store := newTestStore(t)
	other := newTestStore(t)

	ro := store.NewTransaction(false)
	assert.ErrorIs(t, store.Set(ro, []byte("k"), []byte("v")), types.ErrReadOnlyTxn)
	require.NoError(t, ro.Rollback())
	_, err := store.Get(ro, []byte("k"))
	assert.ErrorIs(t, err, badger.ErrTxnFinished)

	_, err = store.Get(nil, []byte("k"))
	assert.ErrorIs(t, err, types.ErrNilTxn)

	foreign := other.NewTransaction(false)
	defer foreign.Rollback() //nolint:errcheck
	_, err = store.Get(foreign, []byte("k"))
	assert.ErrorIs(t, err, badger.ErrTxnForeignStore)

	iter := store.NewIterator(nil, types.BlobIteratorOptions{})
	assert.False(t, iter.Valid())
	assert.ErrorIs(t, iter.Err(), types.ErrNilTxn)
}

func TestIteratorPrefix(t *testing.T) {
	store := newTestStore(t)
	txn := store.NewTransaction(true)
	for _, k := range []string{"a1", "a2", "a3", "b1"} {
		require.NoError(t, store.Set(txn, []byte(k), []byte("x"+k)))
	}
	require.NoError(t, txn.Commit())

	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	iter := store.NewIterator(txn, types.BlobIteratorOptions{Prefix: []byte("a")})
	defer iter.Close()
	var keys []string
	for iter.Rewind(); iter.ValidForPrefix([]byte("a")); iter.Next() {
		item := iter.Item()
		keys = append(keys, string(item.Key()))
		val, err := item.ValueCopy(nil)
		require.NoError(t, err)
		assert.Equal(t, "x"+string(item.Key()), string(val))
	}
	assert.Equal(t, []string{"a1", "a2", "a3"}, keys)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetCommitTimestamp()
	assert.ErrorIs(t, err, types.ErrBlobKeyNotFound)

	txn := store.NewTransaction(true)
	require.NoError(t, store.SetCommitTimestamp(1234567890123, txn))
	require.NoError(t, txn.Commit())

	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(1234567890123), ts)
	assert.ErrorIs(t, store.SetCommitTimestamp(1, nil), types.ErrNilTxn)
}

func TestPersistentStore(t *testing.T) {
	dir := t.TempDir()
	store, err := badger.New(badger.WithDataDir(dir), badger.WithGc(true))
	require.NoError(t, err)
	txn := store.NewTransaction(true)
	require.NoError(t, store.Set(txn, []byte("k"), []byte("v")))
	require.NoError(t, txn.Commit())
	require.NoError(t, store.Close())

	store, err = badger.New(badger.WithDataDir(dir), badger.WithGc(false))
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck
	txn = store.NewTransaction(false)
	defer txn.Rollback() //nolint:errcheck
	val, err := store.Get(txn, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
}

func TestMetricsRegistered(t *testing.T) {
	registry := prometheus.NewRegistry()
	newTestStore(t, badger.WithPromRegistry(registry))
	families, err := registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["database_blob_lsm_size_bytes"])
	assert.True(t, names["database_blob_block_cache_hits_total"])
}
