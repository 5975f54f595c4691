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

// GovernanceProposal indexes proposal records by governance and lifecycle
// state. VotingEndsAt is set once voting starts so expired proposals can be
// found without decoding every record.
type GovernanceProposal struct {
	ID               uint   `gorm:"primarykey"`
	Address          []byte `gorm:"uniqueIndex;size:32;not null"`
	Governance       []byte `gorm:"index:idx_proposal_governance_state,priority:1;size:32;not null"`
	State            uint8  `gorm:"index:idx_proposal_governance_state,priority:2;index:idx_proposal_state_ends,priority:1;not null"`
	TokenOwnerRecord []byte `gorm:"index;size:32;not null"`
	Owner            []byte `gorm:"index;size:32;not null"`
	Sequence         uint8  `gorm:"not null"`
	Name             string `gorm:"size:50;not null"`
	VotingEndsAt     *int64 `gorm:"index:idx_proposal_state_ends,priority:2"`
	CreatedAt        int64  `gorm:"not null"`
}

// TableName returns the table name
func (GovernanceProposal) TableName() string {
	return "governance_proposal"
}

// GovernanceSignatory indexes signatory records so pending sign-offs can be
// looked up by signatory
type GovernanceSignatory struct {
	ID        uint   `gorm:"primarykey"`
	Address   []byte `gorm:"uniqueIndex;size:32;not null"`
	Proposal  []byte `gorm:"uniqueIndex:idx_signatory_unique,priority:1;size:32;not null"`
	Signatory []byte `gorm:"uniqueIndex:idx_signatory_unique,priority:2;index:idx_signatory_pending,priority:1;size:32;not null"`
	SignedOff bool   `gorm:"index:idx_signatory_pending,priority:2;not null"`
}

// TableName returns the table name
func (GovernanceSignatory) TableName() string {
	return "governance_signatory"
}
