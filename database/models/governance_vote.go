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

// Vote side constants mirror the ordinal encoding of the vote record
const (
	VoteYes = 0
	VoteNo  = 1
)

// GovernanceVote indexes vote records by proposal and voter
type GovernanceVote struct {
	ID               uint         `gorm:"primarykey"`
	Address          []byte       `gorm:"uniqueIndex;size:32;not null"`
	Proposal         []byte       `gorm:"uniqueIndex:idx_vote_unique,priority:1;size:32;not null"`
	TokenOwnerRecord []byte       `gorm:"uniqueIndex:idx_vote_unique,priority:2;size:32;not null"`
	Voter            []byte       `gorm:"index;size:32;not null"`
	Side             uint8        `gorm:"not null"`
	Weight           types.Uint64 `gorm:"not null"`
	Relinquished     bool         `gorm:"index;not null"`
}

// TableName returns the table name
func (GovernanceVote) TableName() string {
	return "governance_vote"
}
