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

package database_test

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/blinklabs-io/realms/database"
	"github.com/blinklabs-io/realms/database/models"
	"github.com/blinklabs-io/realms/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func addr(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestAccountRoundTrip(t *testing.T) {
	db := newTestDB(t)
	err := db.Update(func(txn *database.Txn) error {
		return txn.SetAccount(addr(1), []byte("hello"))
	})
	require.NoError(t, err)

	err = db.View(func(txn *database.Txn) error {
		data, err := txn.GetAccount(addr(1))
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)
		ok, err := txn.HasAccount(addr(2))
		require.NoError(t, err)
		assert.False(t, ok)
		_, err = txn.GetAccount(addr(2))
		assert.ErrorIs(t, err, database.ErrAccountNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestReadOnlyTxnRejectsWrites(t *testing.T) {
	db := newTestDB(t)
	err := db.View(func(txn *database.Txn) error {
		return txn.SetAccount(addr(1), []byte("x"))
	})
	assert.ErrorIs(t, err, types.ErrReadOnlyTxn)
}

func TestFailedUpdateRollsBackBothStores(t *testing.T) {
	db := newTestDB(t)
	boom := errors.New("boom")
	err := db.Update(func(txn *database.Txn) error {
		if err := txn.SetAccount(addr(1), []byte("x")); err != nil {
			return err
		}
		if err := db.Metadata().SetRealm(&models.Realm{
			Address:   addr(1),
			Name:      "r",
			Mint:      addr(2),
			Authority: addr(3),
		}, txn.Metadata()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = db.View(func(txn *database.Txn) error {
		ok, err := txn.HasAccount(addr(1))
		require.NoError(t, err)
		assert.False(t, ok)
		realms, err := db.Metadata().GetRealms(txn.Metadata())
		require.NoError(t, err)
		assert.Empty(t, realms)
		return nil
	})
	require.NoError(t, err)
}

func TestCommitUpdatesTimestamps(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Update(func(txn *database.Txn) error {
		return txn.SetAccount(addr(1), []byte("x"))
	}))
	metaTs, err := db.Metadata().GetCommitTimestamp()
	require.NoError(t, err)
	blobTs, err := db.Blob().GetCommitTimestamp()
	require.NoError(t, err)
	assert.Positive(t, metaTs)
	assert.Equal(t, metaTs, blobTs)
}

func TestDeleteAndIterate(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Update(func(txn *database.Txn) error {
		for i := byte(1); i <= 3; i++ {
			if err := txn.SetAccount(addr(i), []byte{i}); err != nil {
				return err
			}
		}
		return txn.DeleteAccount(addr(2))
	}))
	var seen [][]byte
	require.NoError(t, db.View(func(txn *database.Txn) error {
		return txn.IterateAccounts(func(a []byte, data []byte) error {
			seen = append(seen, a)
			assert.Equal(t, []byte{a[0]}, data)
			return nil
		})
	}))
	assert.Equal(t, [][]byte{addr(1), addr(3)}, seen)
}

func TestWritersAreSerialized(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Update(func(txn *database.Txn) error {
		return txn.SetAccount(addr(1), []byte{0})
	}))
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Update(func(txn *database.Txn) error {
				data, err := txn.GetAccount(addr(1))
				if err != nil {
					return err
				}
				return txn.SetAccount(addr(1), []byte{data[0] + 1})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.NoError(t, db.View(func(txn *database.Txn) error {
		data, err := txn.GetAccount(addr(1))
		require.NoError(t, err)
		assert.Equal(t, []byte{20}, data)
		return nil
	}))
}

func TestReleaseAfterCommitIsNoop(t *testing.T) {
	db := newTestDB(t)
	txn := db.Transaction(true)
	require.NoError(t, txn.SetAccount(addr(1), []byte("x")))
	require.NoError(t, txn.Commit())
	txn.Release()
	// The write lock was released exactly once
	txn2 := db.Transaction(true)
	txn2.Release()
}
