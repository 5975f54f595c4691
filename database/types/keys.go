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

package types

import (
	"slices"
)

const AccountBlobKeyPrefix = "a"

// AccountBlobKey returns the blob key holding the serialized record at the
// given address
func AccountBlobKey(addr []byte) []byte {
	return slices.Concat([]byte(AccountBlobKeyPrefix), addr)
}

// AccountAddressFromKey strips the account prefix from a blob key. It returns
// nil for keys outside the account keyspace.
func AccountAddressFromKey(key []byte) []byte {
	if len(key) <= len(AccountBlobKeyPrefix) ||
		string(key[:len(AccountBlobKeyPrefix)]) != AccountBlobKeyPrefix {
		return nil
	}
	return slices.Clone(key[len(AccountBlobKeyPrefix):])
}
