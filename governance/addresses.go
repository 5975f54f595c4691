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

package governance

import (
	"github.com/blinklabs-io/realms/address"
)

// DefaultProgramID owns every governance record unless configured otherwise
var DefaultProgramID = address.MustParse(
	"6fZhpaeYWCjy6gy4kB2HqTBTdMGpeLK9gvY6jrwF8rP9",
)

const (
	realmSeed               = "realm"
	realmConfigSeed         = "realm_config"
	communityTokenSeed      = "community_token"
	tokenOwnerRecordSeed    = "governance"
	governanceSeed          = "governance"
	requiredSignatorySeed   = "required_signatory"
	proposalDepositSeed     = "proposal-deposit"
	signatoryRecordSeed     = "signatory_record"
	voteRecordSeed          = "vote_record"
	proposalTransactionSeed = "proposal_transaction"
)

// Addresses derives record addresses for one program
type Addresses struct {
	ProgramID address.Address
}

func NewAddresses(programID address.Address) Addresses {
	return Addresses{ProgramID: programID}
}

func (a Addresses) find(seeds ...[]byte) (address.Address, uint8, error) {
	return address.FindProgramAddress(seeds, a.ProgramID)
}

func (a Addresses) Realm(id uint64) (address.Address, uint8, error) {
	return a.find(address.U64Seed(id), []byte(realmSeed))
}

func (a Addresses) RealmConfig(id uint64) (address.Address, uint8, error) {
	return a.find(address.U64Seed(id), []byte(realmConfigSeed))
}

// CommunityTokenHolding is the bank holder that receives deposited tokens
func (a Addresses) CommunityTokenHolding(
	mint address.Address,
	realm address.Address,
) (address.Address, uint8, error) {
	return a.find(mint[:], realm[:], []byte(communityTokenSeed))
}

func (a Addresses) TokenOwnerRecord(
	realm address.Address,
	mint address.Address,
	owner address.Address,
) (address.Address, uint8, error) {
	return a.find([]byte(tokenOwnerRecordSeed), realm[:], mint[:], owner[:])
}

func (a Addresses) Governance(realm address.Address) (address.Address, uint8, error) {
	return a.find(realm[:], []byte(governanceSeed))
}

func (a Addresses) RequiredSignatory(
	governance address.Address,
	signatory address.Address,
) (address.Address, uint8, error) {
	return a.find([]byte(requiredSignatorySeed), governance[:], signatory[:])
}

func (a Addresses) Proposal(
	governance address.Address,
	tokenOwnerRecord address.Address,
	sequence uint8,
) (address.Address, uint8, error) {
	return a.find(governance[:], tokenOwnerRecord[:], []byte{sequence})
}

func (a Addresses) ProposalDeposit(
	depositor address.Address,
	proposal address.Address,
) (address.Address, uint8, error) {
	return a.find([]byte(proposalDepositSeed), depositor[:], proposal[:])
}

func (a Addresses) SignatoryRecord(
	proposal address.Address,
	signatory address.Address,
) (address.Address, uint8, error) {
	return a.find([]byte(signatoryRecordSeed), proposal[:], signatory[:])
}

func (a Addresses) VoteRecord(
	proposal address.Address,
	tokenOwnerRecord address.Address,
) (address.Address, uint8, error) {
	return a.find([]byte(voteRecordSeed), proposal[:], tokenOwnerRecord[:])
}

func (a Addresses) ProposalTransaction(
	proposal address.Address,
) (address.Address, uint8, error) {
	return a.find([]byte(proposalTransactionSeed), proposal[:])
}
