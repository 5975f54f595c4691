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

package models

import "github.com/blinklabs-io/realms/database/types"

// Realm indexes realm records for listing
type Realm struct {
	ID        uint         `gorm:"primarykey"`
	Address   []byte       `gorm:"uniqueIndex;size:32;not null"`
	RealmID   types.Uint64 `gorm:"not null"`
	Name      string       `gorm:"size:50;not null"`
	Mint      []byte       `gorm:"index;size:32;not null"`
	Authority []byte       `gorm:"index;size:32;not null"`
}

// TableName returns the table name
func (Realm) TableName() string {
	return "realm"
}

// TokenOwner indexes token owner records by realm and owner
type TokenOwner struct {
	ID            uint         `gorm:"primarykey"`
	Address       []byte       `gorm:"uniqueIndex;size:32;not null"`
	Realm         []byte       `gorm:"uniqueIndex:idx_token_owner_realm_owner,priority:1;size:32;not null"`
	Owner         []byte       `gorm:"uniqueIndex:idx_token_owner_realm_owner,priority:2;index;size:32;not null"`
	DepositAmount types.Uint64 `gorm:"not null"`
}

// TableName returns the table name
func (TokenOwner) TableName() string {
	return "token_owner"
}
