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

package api

import (
	"context"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/governance"
)

// GovernanceNode is the engine surface served by the API. It is
// implemented by *governance.Engine.
type GovernanceNode interface {
	Addresses() governance.Addresses
	Now() time.Time

	CreateRealm(ctx context.Context, params governance.CreateRealmParams) (address.Address, error)
	SetRealmAuthority(ctx context.Context, realm, authority, newAuthority address.Address) error
	SetRealmConfig(ctx context.Context, params governance.SetRealmConfigParams) error
	CreateGovernance(ctx context.Context, params governance.CreateGovernanceParams) (address.Address, error)
	SetGovernanceConfig(ctx context.Context, gov, authority address.Address, cfg governance.GovernanceConfig) error
	CreateRequiredSignatory(ctx context.Context, gov, authority, signatory address.Address) (address.Address, error)
	RemoveRequiredSignatory(ctx context.Context, gov, authority, signatory address.Address) error
	CreateTokenOwnerRecord(ctx context.Context, realm, owner address.Address) (address.Address, error)
	DepositGoverningTokens(ctx context.Context, realm, owner address.Address, amount uint64) error
	WithdrawGoverningTokens(ctx context.Context, realm, owner address.Address) (uint64, error)
	CreateProposal(ctx context.Context, params governance.CreateProposalParams) (address.Address, error)
	AddSignatory(ctx context.Context, authority, proposal address.Address, ref governance.SignerRef) (address.Address, error)
	SignOffProposal(ctx context.Context, signer, proposal address.Address) error
	AddTransaction(ctx context.Context, authority, proposal address.Address, ix governance.InstructionData) (address.Address, error)
	CastVote(ctx context.Context, authority, proposal address.Address, side governance.VoteSide) (address.Address, error)
	RelinquishVote(ctx context.Context, authority, proposal address.Address) error
	FinalizeVote(ctx context.Context, proposal address.Address) (governance.ProposalState, error)
	RefundProposalDeposit(ctx context.Context, proposal, depositor address.Address) (uint64, error)
	ExecuteTransaction(
		ctx context.Context,
		proposal address.Address,
		accounts []governance.AccountMeta,
		signers []address.Address,
	) (governance.TransactionStatus, error)

	GetRealm(ctx context.Context, realm address.Address) (*governance.Realm, error)
	GetRealmConfig(ctx context.Context, realm address.Address) (*governance.RealmConfigAccount, error)
	GetGovernance(ctx context.Context, gov address.Address) (*governance.Governance, error)
	GetTokenOwnerRecord(
		ctx context.Context,
		realm, owner address.Address,
	) (address.Address, *governance.TokenOwnerRecord, error)
	GetProposal(ctx context.Context, proposal address.Address) (*governance.Proposal, error)
	GetProposalTransaction(ctx context.Context, proposal address.Address) (*governance.ProposalTransaction, error)
	GetProposalDeposit(
		ctx context.Context,
		proposal, depositor address.Address,
	) (*governance.ProposalDeposit, uint64, error)
	GetSignatoryRecord(ctx context.Context, proposal, signatory address.Address) (*governance.SignatoryRecord, error)
	GetVoteRecord(ctx context.Context, proposal, owner address.Address) (*governance.VoteRecord, error)
	ListRealms(ctx context.Context) ([]governance.Listed[governance.Realm], error)
	ListProposals(
		ctx context.Context,
		gov address.Address,
		states ...governance.ProposalState,
	) ([]governance.Listed[governance.Proposal], error)
	ProposalsInState(
		ctx context.Context,
		state governance.ProposalState,
	) ([]governance.Listed[governance.Proposal], error)
	PendingSignatures(
		ctx context.Context,
		signatory address.Address,
	) ([]governance.Listed[governance.SignatoryRecord], error)
	ListSignatories(
		ctx context.Context,
		proposal address.Address,
	) ([]governance.Listed[governance.SignatoryRecord], error)
	ListVotes(ctx context.Context, proposal address.Address) ([]governance.Listed[governance.VoteRecord], error)
	TokenOwnerRecordsByOwner(
		ctx context.Context,
		owner address.Address,
	) ([]governance.Listed[governance.TokenOwnerRecord], error)
}

// Ledger exposes token balances. Issuing operations are only routed when
// the faucet is enabled.
type Ledger interface {
	Balance(ctx context.Context, mint, owner address.Address) (uint64, error)
	Mint(ctx context.Context, mint address.Address) (MintInfo, error)
	CreateMint(ctx context.Context, mint, authority address.Address, decimals uint8) error
	MintTo(ctx context.Context, mint, authority, holder address.Address, amount uint64) error
	Airdrop(ctx context.Context, holder address.Address, lamports uint64) error
}

// MintInfo describes a token mint
type MintInfo struct {
	Address   address.Address `json:"address"`
	Authority address.Address `json:"authority"`
	Decimals  uint8           `json:"decimals"`
	Supply    uint64          `json:"supply"`
}

var _ GovernanceNode = (*governance.Engine)(nil)
