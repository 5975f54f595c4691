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
	"context"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
)

// Listed pairs a record with the address it is stored under
type Listed[T any] struct {
	Address address.Address `json:"address"`
	Record  *T              `json:"record"`
}

// loadListed resolves index rows back into their canonical records. Rows
// whose record no longer exists are skipped.
func loadListed[T any, PT interface {
	*T
	record
}](
	oc *opContext,
	want AccountType,
	rows [][]byte,
) ([]Listed[T], error) {
	ret := make([]Listed[T], 0, len(rows))
	for _, raw := range rows {
		addr, err := address.New(raw)
		if err != nil {
			return nil, oc.storeErr(err)
		}
		rec := PT(new(T))
		if err := oc.load(addr, want, rec); err != nil {
			if KindOf(err) == KindNotFound {
				continue
			}
			return nil, err
		}
		ret = append(ret, Listed[T]{Address: addr, Record: (*T)(rec)})
	}
	return ret, nil
}

func (e *Engine) GetRealm(ctx context.Context, addr address.Address) (*Realm, error) {
	var ret *Realm
	err := e.view(ctx, "getRealm", func(oc *opContext) error {
		var err error
		ret, err = oc.getRealm(addr)
		return err
	})
	return ret, err
}

// GetRealmConfig returns the token configuration account of a realm
func (e *Engine) GetRealmConfig(
	ctx context.Context,
	realmAddr address.Address,
) (*RealmConfigAccount, error) {
	var ret *RealmConfigAccount
	err := e.view(ctx, "getRealmConfig", func(oc *opContext) error {
		realm, err := oc.getRealm(realmAddr)
		if err != nil {
			return err
		}
		_, ret, err = oc.getRealmConfig(realm)
		return err
	})
	return ret, err
}

func (e *Engine) GetGovernance(ctx context.Context, addr address.Address) (*Governance, error) {
	var ret *Governance
	err := e.view(ctx, "getGovernance", func(oc *opContext) error {
		var err error
		ret, err = oc.getGovernance(addr)
		return err
	})
	return ret, err
}

// GetTokenOwnerRecord returns the record of owner in realm
func (e *Engine) GetTokenOwnerRecord(
	ctx context.Context,
	realmAddr address.Address,
	owner address.Address,
) (address.Address, *TokenOwnerRecord, error) {
	var addr address.Address
	var ret *TokenOwnerRecord
	err := e.view(ctx, "getTokenOwnerRecord", func(oc *opContext) error {
		realm, err := oc.getRealm(realmAddr)
		if err != nil {
			return err
		}
		addr, ret, err = oc.getOwnerRecord(realmAddr, realm, owner)
		return err
	})
	return addr, ret, err
}

func (e *Engine) GetProposal(ctx context.Context, addr address.Address) (*Proposal, error) {
	var ret *Proposal
	err := e.view(ctx, "getProposal", func(oc *opContext) error {
		var err error
		ret, err = oc.getProposal(addr)
		return err
	})
	return ret, err
}

func (e *Engine) GetProposalTransaction(
	ctx context.Context,
	proposalAddr address.Address,
) (*ProposalTransaction, error) {
	ret := &ProposalTransaction{}
	err := e.view(ctx, "getProposalTransaction", func(oc *opContext) error {
		addr, _, err := oc.derive(oc.addresses().ProposalTransaction(proposalAddr))
		if err != nil {
			return err
		}
		return oc.load(addr, AccountTypeProposalTransaction, ret)
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// GetProposalDeposit returns the escrow record together with the lamports it
// currently holds
func (e *Engine) GetProposalDeposit(
	ctx context.Context,
	proposalAddr address.Address,
	depositor address.Address,
) (*ProposalDeposit, uint64, error) {
	ret := &ProposalDeposit{}
	var held uint64
	err := e.view(ctx, "getProposalDeposit", func(oc *opContext) error {
		addr, _, err := oc.derive(oc.addresses().ProposalDeposit(depositor, proposalAddr))
		if err != nil {
			return err
		}
		if err := oc.load(addr, AccountTypeProposalDeposit, ret); err != nil {
			return err
		}
		held, err = bank.BalanceOf(oc.txn, bank.NativeMint, addr)
		if err != nil {
			return oc.storeErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return ret, held, nil
}

func (e *Engine) GetSignatoryRecord(
	ctx context.Context,
	proposalAddr address.Address,
	signatory address.Address,
) (*SignatoryRecord, error) {
	ret := &SignatoryRecord{}
	err := e.view(ctx, "getSignatoryRecord", func(oc *opContext) error {
		addr, _, err := oc.derive(oc.addresses().SignatoryRecord(proposalAddr, signatory))
		if err != nil {
			return err
		}
		return oc.load(addr, AccountTypeSignatoryRecord, ret)
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

// GetVoteRecord returns the vote of owner on a proposal
func (e *Engine) GetVoteRecord(
	ctx context.Context,
	proposalAddr address.Address,
	owner address.Address,
) (*VoteRecord, error) {
	ret := &VoteRecord{}
	err := e.view(ctx, "getVoteRecord", func(oc *opContext) error {
		pc, err := oc.loadProposalContext(proposalAddr)
		if err != nil {
			return err
		}
		torAddr, _, err := oc.derive(
			oc.addresses().TokenOwnerRecord(pc.realmAddr, pc.realm.CommunityMint, owner),
		)
		if err != nil {
			return err
		}
		addr, _, err := oc.derive(oc.addresses().VoteRecord(proposalAddr, torAddr))
		if err != nil {
			return err
		}
		return oc.load(addr, AccountTypeVoteRecord, ret)
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (e *Engine) ListRealms(ctx context.Context) ([]Listed[Realm], error) {
	var ret []Listed[Realm]
	err := e.view(ctx, "listRealms", func(oc *opContext) error {
		rows, err := oc.txn.DB().Metadata().GetRealms(oc.metadataTxn())
		if err != nil {
			return oc.storeErr(err)
		}
		addrs := make([][]byte, 0, len(rows))
		for _, row := range rows {
			addrs = append(addrs, row.Address)
		}
		ret, err = loadListed[Realm](oc, AccountTypeRealm, addrs)
		return err
	})
	return ret, err
}

// ListProposals returns the proposals of a governance in creation order,
// optionally restricted to the given states
func (e *Engine) ListProposals(
	ctx context.Context,
	govAddr address.Address,
	states ...ProposalState,
) ([]Listed[Proposal], error) {
	var ret []Listed[Proposal]
	err := e.view(ctx, "listProposals", func(oc *opContext) error {
		filter := make([]uint8, 0, len(states))
		for _, s := range states {
			filter = append(filter, uint8(s))
		}
		rows, err := oc.txn.DB().Metadata().GetProposals(
			govAddr.Bytes(),
			filter,
			oc.metadataTxn(),
		)
		if err != nil {
			return oc.storeErr(err)
		}
		addrs := make([][]byte, 0, len(rows))
		for _, row := range rows {
			addrs = append(addrs, row.Address)
		}
		ret, err = loadListed[Proposal](oc, AccountTypeProposal, addrs)
		return err
	})
	return ret, err
}

// ProposalsInState returns every proposal in a state across all governances
func (e *Engine) ProposalsInState(
	ctx context.Context,
	state ProposalState,
) ([]Listed[Proposal], error) {
	var ret []Listed[Proposal]
	err := e.view(ctx, "proposalsInState", func(oc *opContext) error {
		rows, err := oc.txn.DB().Metadata().GetProposalsInState(
			uint8(state),
			oc.metadataTxn(),
		)
		if err != nil {
			return oc.storeErr(err)
		}
		addrs := make([][]byte, 0, len(rows))
		for _, row := range rows {
			addrs = append(addrs, row.Address)
		}
		ret, err = loadListed[Proposal](oc, AccountTypeProposal, addrs)
		return err
	})
	return ret, err
}

// ProposalsReadyToFinalize returns the Voting proposals whose voting window
// has closed at now
func (e *Engine) ProposalsReadyToFinalize(
	ctx context.Context,
	now time.Time,
) ([]address.Address, error) {
	var ret []address.Address
	err := e.view(ctx, "proposalsReadyToFinalize", func(oc *opContext) error {
		rows, err := oc.txn.DB().Metadata().GetProposalsEndingBefore(
			uint8(ProposalStateVoting),
			now.Unix(),
			oc.metadataTxn(),
		)
		if err != nil {
			return oc.storeErr(err)
		}
		ret = make([]address.Address, 0, len(rows))
		for _, row := range rows {
			addr, err := address.New(row.Address)
			if err != nil {
				return oc.storeErr(err)
			}
			ret = append(ret, addr)
		}
		return nil
	})
	return ret, err
}

// PendingSignatures returns the signatory records of signatory that are not
// yet signed off
func (e *Engine) PendingSignatures(
	ctx context.Context,
	signatory address.Address,
) ([]Listed[SignatoryRecord], error) {
	var ret []Listed[SignatoryRecord]
	err := e.view(ctx, "pendingSignatures", func(oc *opContext) error {
		rows, err := oc.txn.DB().Metadata().GetPendingSignatories(
			signatory.Bytes(),
			oc.metadataTxn(),
		)
		if err != nil {
			return oc.storeErr(err)
		}
		addrs := make([][]byte, 0, len(rows))
		for _, row := range rows {
			addrs = append(addrs, row.Address)
		}
		ret, err = loadListed[SignatoryRecord](oc, AccountTypeSignatoryRecord, addrs)
		return err
	})
	return ret, err
}

func (e *Engine) ListSignatories(
	ctx context.Context,
	proposalAddr address.Address,
) ([]Listed[SignatoryRecord], error) {
	var ret []Listed[SignatoryRecord]
	err := e.view(ctx, "listSignatories", func(oc *opContext) error {
		rows, err := oc.txn.DB().Metadata().GetSignatories(
			proposalAddr.Bytes(),
			oc.metadataTxn(),
		)
		if err != nil {
			return oc.storeErr(err)
		}
		addrs := make([][]byte, 0, len(rows))
		for _, row := range rows {
			addrs = append(addrs, row.Address)
		}
		ret, err = loadListed[SignatoryRecord](oc, AccountTypeSignatoryRecord, addrs)
		return err
	})
	return ret, err
}

func (e *Engine) ListVotes(
	ctx context.Context,
	proposalAddr address.Address,
) ([]Listed[VoteRecord], error) {
	var ret []Listed[VoteRecord]
	err := e.view(ctx, "listVotes", func(oc *opContext) error {
		rows, err := oc.txn.DB().Metadata().GetVotes(
			proposalAddr.Bytes(),
			oc.metadataTxn(),
		)
		if err != nil {
			return oc.storeErr(err)
		}
		addrs := make([][]byte, 0, len(rows))
		for _, row := range rows {
			addrs = append(addrs, row.Address)
		}
		ret, err = loadListed[VoteRecord](oc, AccountTypeVoteRecord, addrs)
		return err
	})
	return ret, err
}

// TokenOwnerRecordsByOwner returns the records of owner across all realms
func (e *Engine) TokenOwnerRecordsByOwner(
	ctx context.Context,
	owner address.Address,
) ([]Listed[TokenOwnerRecord], error) {
	var ret []Listed[TokenOwnerRecord]
	err := e.view(ctx, "tokenOwnerRecordsByOwner", func(oc *opContext) error {
		rows, err := oc.txn.DB().Metadata().GetTokenOwnersByOwner(
			owner.Bytes(),
			oc.metadataTxn(),
		)
		if err != nil {
			return oc.storeErr(err)
		}
		addrs := make([][]byte, 0, len(rows))
		for _, row := range rows {
			addrs = append(addrs, row.Address)
		}
		ret, err = loadListed[TokenOwnerRecord](oc, AccountTypeTokenOwnerRecord, addrs)
		return err
	})
	return ret, err
}
