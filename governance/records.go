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
	"fmt"
	"math"
	"math/big"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/realms/address"
	"github.com/shopspring/decimal"
)

const (
	MaxNameLength            = 50
	MaxDescriptionLinkLength = 255
	MaxInstructionAccounts   = 32
	MaxInstructionDataLength = 1024

	// SupplyFractionBase is the denominator of a supply fraction
	SupplyFractionBase uint64 = 10_000_000
)

// MaxVoterWeightSource bounds the total weight that can be cast in a realm
type MaxVoterWeightSource struct {
	cbor.StructAsArray
	Kind  MaxVoterWeightKind `json:"kind"`
	Value uint64             `json:"value"`
}

func SupplyFraction(numerator uint64) MaxVoterWeightSource {
	return MaxVoterWeightSource{Kind: MaxVoterWeightSupplyFraction, Value: numerator}
}

func AbsoluteMaxVoterWeight(amount uint64) MaxVoterWeightSource {
	return MaxVoterWeightSource{Kind: MaxVoterWeightAbsolute, Value: amount}
}

// FullSupply counts every issued token
var FullSupply = SupplyFraction(SupplyFractionBase)

// ParseSupplyFraction reads a decimal fraction of the supply such as
// "0.25". At most seven decimal places are representable.
func ParseSupplyFraction(s string) (MaxVoterWeightSource, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return MaxVoterWeightSource{}, fmt.Errorf("invalid supply fraction %q: %w", s, err)
	}
	if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1)) {
		return MaxVoterWeightSource{}, fmt.Errorf("supply fraction %s is outside (0, 1]", d)
	}
	scaled := d.Mul(decimal.NewFromInt(int64(SupplyFractionBase)))
	if !scaled.IsInteger() {
		return MaxVoterWeightSource{}, fmt.Errorf("supply fraction %s is finer than 1/%d", d, SupplyFractionBase)
	}
	return SupplyFraction(uint64(scaled.IntPart())), nil
}

// Fraction returns the supply fraction as a decimal, or zero for an
// absolute source
func (s MaxVoterWeightSource) Fraction() decimal.Decimal {
	if s.Kind != MaxVoterWeightSupplyFraction {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(new(big.Int).SetUint64(s.Value), 0).
		Div(decimal.NewFromInt(int64(SupplyFractionBase)))
}

func (s MaxVoterWeightSource) valid() bool {
	switch s.Kind {
	case MaxVoterWeightAbsolute:
		return s.Value > 0
	case MaxVoterWeightSupplyFraction:
		return s.Value > 0 && s.Value <= SupplyFractionBase
	}
	return false
}

// RealmConfig holds the weight rules of a realm
type RealmConfig struct {
	cbor.StructAsArray
	MinCommunityWeightToCreateGovernance uint64               `json:"minCommunityWeightToCreateGovernance"`
	MaxVoterWeight                       MaxVoterWeightSource `json:"maxVoterWeight"`
}

// TokenConfig holds the governing token rules of a realm
type TokenConfig struct {
	cbor.StructAsArray
	TokenType TokenType `json:"tokenType"`
}

type Realm struct {
	cbor.StructAsArray
	Type                  AccountType     `json:"-" cbor:"type"`
	ID                    uint64          `json:"id"`
	Name                  string          `json:"name"`
	CommunityMint         address.Address `json:"communityMint"`
	CommunityTokenHolding address.Address `json:"communityTokenHolding"`
	Config                RealmConfig     `json:"config"`
	Authority             address.Address `json:"authority"`
	Bump                  uint8           `json:"bump"`
}

type RealmConfigAccount struct {
	cbor.StructAsArray
	Type        AccountType     `json:"-" cbor:"type"`
	Realm       address.Address `json:"realm"`
	TokenConfig TokenConfig     `json:"tokenConfig"`
	Bump        uint8           `json:"bump"`
}

// GovernanceConfig holds the voting rules of a governance. Durations are in
// seconds.
type GovernanceConfig struct {
	cbor.StructAsArray
	VoteThresholdPercentage            uint8       `json:"voteThresholdPercentage"`
	MinCommunityWeightToCreateProposal uint64      `json:"minCommunityWeightToCreateProposal"`
	TransactionsHoldUpTime             int64       `json:"transactionsHoldUpTime"`
	VotingBaseTime                     int64       `json:"votingBaseTime"`
	VotingCoolOffTime                  int64       `json:"votingCoolOffTime"`
	VoteTipping                        VoteTipping `json:"voteTipping"`
}

type Governance struct {
	cbor.StructAsArray
	Type                     AccountType      `json:"-" cbor:"type"`
	Realm                    address.Address  `json:"realm"`
	Config                   GovernanceConfig `json:"config"`
	RequiredSignatoriesCount uint64           `json:"requiredSignatoriesCount"`
	ActiveProposalCount      uint64           `json:"activeProposalCount"`
	Bump                     uint8            `json:"bump"`
}

type RequiredSignatory struct {
	cbor.StructAsArray
	Type       AccountType     `json:"-" cbor:"type"`
	Governance address.Address `json:"governance"`
	Signatory  address.Address `json:"signatory"`
	Bump       uint8           `json:"bump"`
}

type TokenOwnerRecord struct {
	cbor.StructAsArray
	Type                     AccountType     `json:"-" cbor:"type"`
	Realm                    address.Address `json:"realm"`
	Mint                     address.Address `json:"mint"`
	Owner                    address.Address `json:"owner"`
	DepositAmount            uint64          `json:"depositAmount"`
	UnrelinquishedVotesCount uint64          `json:"unrelinquishedVotesCount"`
	OutstandingProposalCount uint64          `json:"outstandingProposalCount"`
	// ProposalIndex is the sequence number of the next proposal
	ProposalIndex uint64 `json:"proposalIndex"`
	Bump          uint8  `json:"bump"`
}

// Proposal timestamps are unix seconds, zero while unset
type Proposal struct {
	cbor.StructAsArray
	Type                      AccountType     `json:"-" cbor:"type"`
	Governance                address.Address `json:"governance"`
	Mint                      address.Address `json:"mint"`
	TokenOwnerRecord          address.Address `json:"tokenOwnerRecord"`
	Owner                     address.Address `json:"owner"`
	Sequence                  uint8           `json:"sequence"`
	State                     ProposalState   `json:"state"`
	Name                      string          `json:"name"`
	DescriptionLink           string          `json:"descriptionLink"`
	SignatoriesCount          uint64          `json:"signatoriesCount"`
	SignatoriesSignedOffCount uint64          `json:"signatoriesSignedOffCount"`
	YesVoteWeight             uint64          `json:"yesVoteWeight"`
	NoVoteWeight              uint64          `json:"noVoteWeight"`
	DraftAt                   int64           `json:"draftAt"`
	SigningOffAt              int64           `json:"signingOffAt,omitempty"`
	VotingStartedAt           int64           `json:"votingStartedAt,omitempty"`
	VotingCompletedAt         int64           `json:"votingCompletedAt,omitempty"`
	ClosedAt                  int64           `json:"closedAt,omitempty"`
	VoteThreshold             uint8           `json:"voteThreshold,omitempty"`
	HasTransaction            bool            `json:"hasTransaction"`
	Bump                      uint8           `json:"bump"`
}

// votingEndsAt is the end of the voting window including cool-off
func (p *Proposal) votingEndsAt(config GovernanceConfig) int64 {
	return addSeconds(addSeconds(p.VotingStartedAt, config.VotingBaseTime), config.VotingCoolOffTime)
}

// holdUpEndsAt is the earliest time the proposal transaction may execute
func (p *Proposal) holdUpEndsAt(config GovernanceConfig) int64 {
	return addSeconds(p.VotingCompletedAt, config.TransactionsHoldUpTime)
}

// addSeconds adds a non-negative duration to a unix time, saturating at
// the largest representable time
func addSeconds(t, d int64) int64 {
	if d > 0 && t > math.MaxInt64-d {
		return math.MaxInt64
	}
	return t + d
}

type ProposalDeposit struct {
	cbor.StructAsArray
	Type      AccountType     `json:"-" cbor:"type"`
	Proposal  address.Address `json:"proposal"`
	Depositor address.Address `json:"depositor"`
	Amount    uint64          `json:"amount"`
	Bump      uint8           `json:"bump"`
}

type SignatoryRecord struct {
	cbor.StructAsArray
	Type      AccountType     `json:"-" cbor:"type"`
	Proposal  address.Address `json:"proposal"`
	Signatory address.Address `json:"signatory"`
	Kind      SignerKind      `json:"kind"`
	SignedOff bool            `json:"signedOff"`
	Bump      uint8           `json:"bump"`
}

type VoteRecord struct {
	cbor.StructAsArray
	Type             AccountType     `json:"-" cbor:"type"`
	Proposal         address.Address `json:"proposal"`
	TokenOwnerRecord address.Address `json:"tokenOwnerRecord"`
	Voter            address.Address `json:"voter"`
	Side             VoteSide        `json:"side"`
	Weight           uint64          `json:"weight"`
	Relinquished     bool            `json:"relinquished"`
	Bump             uint8           `json:"bump"`
}

// AccountMeta declares one account used by an instruction
type AccountMeta struct {
	cbor.StructAsArray
	Address    address.Address `json:"address"`
	IsSigner   bool            `json:"isSigner"`
	IsWritable bool            `json:"isWritable"`
}

// InstructionData is the payload executed when a proposal passes
type InstructionData struct {
	cbor.StructAsArray
	ProgramID address.Address `json:"programId"`
	Data      []byte          `json:"data"`
	Accounts  []AccountMeta   `json:"accounts"`
}

type ProposalTransaction struct {
	cbor.StructAsArray
	Type        AccountType       `json:"-" cbor:"type"`
	Proposal    address.Address   `json:"proposal"`
	Instruction InstructionData   `json:"instruction"`
	Status      TransactionStatus `json:"status"`
	ExecutedAt  int64             `json:"executedAt,omitempty"`
	Error       string            `json:"error,omitempty"`
	Bump        uint8             `json:"bump"`
}

// record is implemented by every stored governance record
type record interface {
	accountType() AccountType
}

func (r *Realm) accountType() AccountType               { return r.Type }
func (r *RealmConfigAccount) accountType() AccountType  { return r.Type }
func (r *Governance) accountType() AccountType          { return r.Type }
func (r *RequiredSignatory) accountType() AccountType   { return r.Type }
func (r *TokenOwnerRecord) accountType() AccountType    { return r.Type }
func (r *Proposal) accountType() AccountType            { return r.Type }
func (r *ProposalDeposit) accountType() AccountType     { return r.Type }
func (r *SignatoryRecord) accountType() AccountType     { return r.Type }
func (r *VoteRecord) accountType() AccountType          { return r.Type }
func (r *ProposalTransaction) accountType() AccountType { return r.Type }
