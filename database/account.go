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

	"github.com/blinklabs-io/realms/database/types"
)

var ErrAccountNotFound = errors.New("account not found")

// GetAccount returns the raw bytes stored at addr
func (t *Txn) GetAccount(addr []byte) ([]byte, error) {
	if t.blobTxn == nil {
		return nil, types.ErrBlobStoreUnavailable
	}
	data, err := t.db.Blob().Get(t.blobTxn, types.AccountBlobKey(addr))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return data, nil
}

// HasAccount reports whether any data is stored at addr
func (t *Txn) HasAccount(addr []byte) (bool, error) {
	_, err := t.GetAccount(addr)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetAccount stores data at addr, replacing any previous value
func (t *Txn) SetAccount(addr []byte, data []byte) error {
	if !t.readWrite {
		return types.ErrReadOnlyTxn
	}
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	return t.db.Blob().Set(t.blobTxn, types.AccountBlobKey(addr), data)
}

// DeleteAccount removes the data at addr
func (t *Txn) DeleteAccount(addr []byte) error {
	if !t.readWrite {
		return types.ErrReadOnlyTxn
	}
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	return t.db.Blob().Delete(t.blobTxn, types.AccountBlobKey(addr))
}

// IterateAccounts calls fn for every stored account in key order. Iteration
// stops at the first error from fn.
func (t *Txn) IterateAccounts(fn func(addr []byte, data []byte) error) error {
	if t.blobTxn == nil {
		return types.ErrBlobStoreUnavailable
	}
	prefix := []byte(types.AccountBlobKeyPrefix)
	iter := t.db.Blob().NewIterator(
		t.blobTxn,
		types.BlobIteratorOptions{Prefix: prefix},
	)
	defer iter.Close()
	for iter.Rewind(); iter.ValidForPrefix(prefix); iter.Next() {
		item := iter.Item()
		addr := types.AccountAddressFromKey(item.Key())
		if addr == nil {
			continue
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(addr, data); err != nil {
			return err
		}
	}
	return iter.Err()
}
