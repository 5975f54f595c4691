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

package event

import "github.com/blinklabs-io/realms/address"

const (
	RealmEventType             EventType = "realm"
	GovernanceEventType        EventType = "governance"
	RequiredSignatoryEventType EventType = "governance.required_signatory"
	TokenOwnerEventType        EventType = "token_owner"
	ProposalCreatedEventType   EventType = "proposal.created"
	ProposalStateEventType     EventType = "proposal.state"
	SignatoryEventType         EventType = "proposal.signatory"
	TransactionEventType       EventType = "proposal.transaction"
	VoteEventType              EventType = "proposal.vote"
	DepositEventType           EventType = "proposal.deposit"
)

// GovernanceEventTypes lists every event type published by the engine
var GovernanceEventTypes = []EventType{
	RealmEventType,
	GovernanceEventType,
	RequiredSignatoryEventType,
	TokenOwnerEventType,
	ProposalCreatedEventType,
	ProposalStateEventType,
	SignatoryEventType,
	TransactionEventType,
	VoteEventType,
	DepositEventType,
}

type RealmEvent struct {
	Realm     address.Address `json:"realm"`
	Name      string          `json:"name"`
	Authority address.Address `json:"authority"`
	Created   bool            `json:"created"`
}

type GovernanceEvent struct {
	Realm      address.Address `json:"realm"`
	Governance address.Address `json:"governance"`
	Created    bool            `json:"created"`
}

type RequiredSignatoryEvent struct {
	Governance address.Address `json:"governance"`
	Signatory  address.Address `json:"signatory"`
	Removed    bool            `json:"removed"`
}

type TokenOwnerEvent struct {
	Realm     address.Address `json:"realm"`
	Owner     address.Address `json:"owner"`
	Record    address.Address `json:"record"`
	Amount    uint64          `json:"amount"`
	Deposited uint64          `json:"deposited"`
	Withdrawn bool            `json:"withdrawn"`
}

type ProposalCreatedEvent struct {
	Proposal   address.Address `json:"proposal"`
	Governance address.Address `json:"governance"`
	Owner      address.Address `json:"owner"`
	Name       string          `json:"name"`
}

type ProposalStateEvent struct {
	Proposal address.Address `json:"proposal"`
	From     string          `json:"from"`
	To       string          `json:"to"`
}

type SignatoryEvent struct {
	Proposal  address.Address `json:"proposal"`
	Signatory address.Address `json:"signatory"`
	SignedOff bool            `json:"signedOff"`
}

type TransactionEvent struct {
	Proposal address.Address `json:"proposal"`
	Executed bool            `json:"executed"`
	Status   string          `json:"status"`
}

type VoteEvent struct {
	Proposal     address.Address `json:"proposal"`
	Voter        address.Address `json:"voter"`
	Side         string          `json:"side"`
	Weight       uint64          `json:"weight"`
	Relinquished bool            `json:"relinquished"`
}

type DepositEvent struct {
	Proposal  address.Address `json:"proposal"`
	Depositor address.Address `json:"depositor"`
	Amount    uint64          `json:"amount"`
	Refunded  bool            `json:"refunded"`
}
