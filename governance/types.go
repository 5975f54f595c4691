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
	"encoding/json"
	"fmt"
	"strings"
)

// AccountType is the leading discriminant of every stored record
type AccountType uint8

const (
	AccountTypeUninitialized AccountType = iota
	AccountTypeRealm
	AccountTypeRealmConfig
	AccountTypeTokenOwnerRecord
	AccountTypeGovernance
	AccountTypeRequiredSignatory
	AccountTypeProposal
	AccountTypeProposalDeposit
	AccountTypeSignatoryRecord
	AccountTypeVoteRecord
	AccountTypeProposalTransaction
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeUninitialized:
		return "Uninitialized"
	case AccountTypeRealm:
		return "Realm"
	case AccountTypeRealmConfig:
		return "RealmConfig"
	case AccountTypeTokenOwnerRecord:
		return "TokenOwnerRecord"
	case AccountTypeGovernance:
		return "Governance"
	case AccountTypeRequiredSignatory:
		return "RequiredSignatory"
	case AccountTypeProposal:
		return "Proposal"
	case AccountTypeProposalDeposit:
		return "ProposalDeposit"
	case AccountTypeSignatoryRecord:
		return "SignatoryRecord"
	case AccountTypeVoteRecord:
		return "VoteRecord"
	case AccountTypeProposalTransaction:
		return "ProposalTransaction"
	}
	return fmt.Sprintf("AccountType(%d)", uint8(t))
}

// ProposalState is the lifecycle state of a proposal
type ProposalState uint8

const (
	ProposalStateDraft ProposalState = iota
	ProposalStateSigningOff
	ProposalStateVoting
	ProposalStateSucceeded
	ProposalStateDefeated
	ProposalStateExecuting
	ProposalStateCompleted
	ProposalStateExecutionFailed
)

var proposalStateNames = map[ProposalState]string{
	ProposalStateDraft:           "Draft",
	ProposalStateSigningOff:      "SigningOff",
	ProposalStateVoting:          "Voting",
	ProposalStateSucceeded:       "Succeeded",
	ProposalStateDefeated:        "Defeated",
	ProposalStateExecuting:       "Executing",
	ProposalStateCompleted:       "Completed",
	ProposalStateExecutionFailed: "ExecutionFailed",
}

func (s ProposalState) String() string {
	if name, ok := proposalStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ProposalState(%d)", uint8(s))
}

// IsTerminal reports whether no further lifecycle transition is possible
func (s ProposalState) IsTerminal() bool {
	switch s {
	case ProposalStateCompleted,
		ProposalStateDefeated,
		ProposalStateExecutionFailed:
		return true
	case ProposalStateDraft,
		ProposalStateSigningOff,
		ProposalStateVoting,
		ProposalStateSucceeded,
		ProposalStateExecuting:
		return false
	}
	return false
}

// canTransition reports whether from -> to is a legal lifecycle step
func canTransition(from, to ProposalState) bool {
	switch from {
	case ProposalStateDraft:
		return to == ProposalStateSigningOff || to == ProposalStateVoting
	case ProposalStateSigningOff:
		return to == ProposalStateVoting
	case ProposalStateVoting:
		return to == ProposalStateSucceeded ||
			to == ProposalStateDefeated ||
			to == ProposalStateCompleted
	case ProposalStateSucceeded:
		return to == ProposalStateExecuting
	case ProposalStateExecuting:
		return to == ProposalStateCompleted ||
			to == ProposalStateExecutionFailed
	case ProposalStateDefeated,
		ProposalStateCompleted,
		ProposalStateExecutionFailed:
		return false
	}
	return false
}

// ParseProposalState accepts the names returned by String, ignoring case
func ParseProposalState(s string) (ProposalState, error) {
	for state, name := range proposalStateNames {
		if strings.EqualFold(name, s) {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown proposal state: %q", s)
}

func (s ProposalState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *ProposalState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	tmp, err := ParseProposalState(name)
	if err != nil {
		return err
	}
	*s = tmp
	return nil
}

// VoteSide is the choice recorded in a vote
type VoteSide uint8

const (
	VoteYes VoteSide = iota
	VoteNo
)

func (v VoteSide) String() string {
	switch v {
	case VoteYes:
		return "Yes"
	case VoteNo:
		return "No"
	}
	return fmt.Sprintf("VoteSide(%d)", uint8(v))
}

func ParseVoteSide(s string) (VoteSide, error) {
	switch strings.ToLower(s) {
	case "yes":
		return VoteYes, nil
	case "no":
		return VoteNo, nil
	}
	return 0, fmt.Errorf("unknown vote side: %q", s)
}

func (v VoteSide) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *VoteSide) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	tmp, err := ParseVoteSide(name)
	if err != nil {
		return err
	}
	*v = tmp
	return nil
}

// VoteTipping controls whether a decided vote may be finalized before its
// deadline
type VoteTipping uint8

const (
	VoteTippingStrict VoteTipping = iota
	VoteTippingEarly
	VoteTippingDisabled
)

func (v VoteTipping) String() string {
	switch v {
	case VoteTippingStrict:
		return "Strict"
	case VoteTippingEarly:
		return "Early"
	case VoteTippingDisabled:
		return "Disabled"
	}
	return fmt.Sprintf("VoteTipping(%d)", uint8(v))
}

func ParseVoteTipping(s string) (VoteTipping, error) {
	switch strings.ToLower(s) {
	case "", "strict":
		return VoteTippingStrict, nil
	case "early":
		return VoteTippingEarly, nil
	case "disabled":
		return VoteTippingDisabled, nil
	}
	return 0, fmt.Errorf("unknown vote tipping: %q", s)
}

func (v VoteTipping) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *VoteTipping) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	tmp, err := ParseVoteTipping(name)
	if err != nil {
		return err
	}
	*v = tmp
	return nil
}

// TokenType restricts how governing tokens move in and out of a realm
type TokenType uint8

const (
	// TokenTypeLiquid tokens can be deposited and withdrawn
	TokenTypeLiquid TokenType = iota
	// TokenTypeMembership tokens can be deposited but never withdrawn
	TokenTypeMembership
	// TokenTypeDormant tokens cannot be deposited
	TokenTypeDormant
)

func (t TokenType) String() string {
	switch t {
	case TokenTypeLiquid:
		return "Liquid"
	case TokenTypeMembership:
		return "Membership"
	case TokenTypeDormant:
		return "Dormant"
	}
	return fmt.Sprintf("TokenType(%d)", uint8(t))
}

func ParseTokenType(s string) (TokenType, error) {
	switch strings.ToLower(s) {
	case "", "liquid":
		return TokenTypeLiquid, nil
	case "membership":
		return TokenTypeMembership, nil
	case "dormant":
		return TokenTypeDormant, nil
	}
	return 0, fmt.Errorf("unknown token type: %q", s)
}

func (t TokenType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TokenType) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	tmp, err := ParseTokenType(name)
	if err != nil {
		return err
	}
	*t = tmp
	return nil
}

// TransactionStatus is the execution status of a proposal transaction
type TransactionStatus uint8

const (
	TransactionStatusPending TransactionStatus = iota
	TransactionStatusSuccess
	TransactionStatusError
)

func (s TransactionStatus) String() string {
	switch s {
	case TransactionStatusPending:
		return "Pending"
	case TransactionStatusSuccess:
		return "Success"
	case TransactionStatusError:
		return "Error"
	}
	return fmt.Sprintf("TransactionStatus(%d)", uint8(s))
}

func ParseTransactionStatus(s string) (TransactionStatus, error) {
	switch strings.ToLower(s) {
	case "pending":
		return TransactionStatusPending, nil
	case "success":
		return TransactionStatusSuccess, nil
	case "error":
		return TransactionStatusError, nil
	}
	return 0, fmt.Errorf("unknown transaction status: %q", s)
}

func (s TransactionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TransactionStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	tmp, err := ParseTransactionStatus(name)
	if err != nil {
		return err
	}
	*s = tmp
	return nil
}

// MaxVoterWeightKind selects how the maximum voter weight is derived
type MaxVoterWeightKind uint8

const (
	// MaxVoterWeightSupplyFraction takes a fraction of the mint supply
	MaxVoterWeightSupplyFraction MaxVoterWeightKind = iota
	// MaxVoterWeightAbsolute is a fixed cap
	MaxVoterWeightAbsolute
)

func (k MaxVoterWeightKind) String() string {
	switch k {
	case MaxVoterWeightSupplyFraction:
		return "SupplyFraction"
	case MaxVoterWeightAbsolute:
		return "Absolute"
	}
	return fmt.Sprintf("MaxVoterWeightKind(%d)", uint8(k))
}

func (k MaxVoterWeightKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *MaxVoterWeightKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch strings.ToLower(name) {
	case "supplyfraction":
		*k = MaxVoterWeightSupplyFraction
	case "absolute":
		*k = MaxVoterWeightAbsolute
	default:
		return fmt.Errorf("unknown max voter weight kind: %q", name)
	}
	return nil
}

// SignerKind tags a SignerRef
type SignerKind uint8

const (
	// SignerRequired fills one of the governance's required signatory slots
	SignerRequired SignerKind = iota
	// SignerGeneral adds a token holder once the required slots are filled
	SignerGeneral
)

func (k SignerKind) String() string {
	switch k {
	case SignerRequired:
		return "Required"
	case SignerGeneral:
		return "General"
	}
	return fmt.Sprintf("SignerKind(%d)", uint8(k))
}

func (k SignerKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func ParseSignerKind(s string) (SignerKind, error) {
	switch strings.ToLower(s) {
	case "required":
		return SignerRequired, nil
	case "general":
		return SignerGeneral, nil
	}
	return 0, fmt.Errorf("unknown signer kind: %q", s)
}

func (k *SignerKind) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	tmp, err := ParseSignerKind(name)
	if err != nil {
		return err
	}
	*k = tmp
	return nil
}
