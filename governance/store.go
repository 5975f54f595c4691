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
	"errors"
	"fmt"
	"math"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/database"
	"github.com/blinklabs-io/realms/database/models"
	"github.com/blinklabs-io/realms/database/types"
	"github.com/blinklabs-io/realms/event"
)

// load decodes the record stored at addr into dst. A missing or foreign
// record is reported as NotFound.
func (oc *opContext) load(addr address.Address, want AccountType, dst record) error {
	data, err := oc.txn.GetAccount(addr[:])
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			return oc.errorf(KindNotFound, "%s %s", want, addr)
		}
		return oc.storeErr(err)
	}
	// Records of other shapes share the address space, so the leading
	// discriminant is checked before the full decode
	if got, ok := recordType(data); !ok || got != want {
		return oc.errorf(KindNotFound, "%s %s holds a %s", want, addr, got)
	}
	if _, err := cbor.Decode(data, dst); err != nil {
		return oc.storeErr(fmt.Errorf("decode %s %s: %w", want, addr, err))
	}
	return nil
}

// recordType reads the leading discriminant of an encoded record
func recordType(data []byte) (AccountType, bool) {
	if len(data) < 2 {
		return AccountTypeUninitialized, false
	}
	id, err := cbor.DecodeIdFromList(data)
	if err != nil || id < 0 || id > math.MaxUint8 {
		return AccountTypeUninitialized, false
	}
	return AccountType(id), true
}

func (oc *opContext) exists(addr address.Address) (bool, error) {
	ok, err := oc.txn.HasAccount(addr[:])
	if err != nil {
		return false, oc.storeErr(err)
	}
	return ok, nil
}

func (oc *opContext) store(addr address.Address, r record) error {
	data, err := cbor.Encode(r)
	if err != nil {
		return oc.storeErr(fmt.Errorf("encode %s: %w", r.accountType(), err))
	}
	if err := oc.txn.SetAccount(addr[:], data); err != nil {
		return oc.storeErr(err)
	}
	return nil
}

func (oc *opContext) remove(addr address.Address) error {
	if err := oc.txn.DeleteAccount(addr[:]); err != nil {
		return oc.storeErr(err)
	}
	return nil
}

func (oc *opContext) derive(addr address.Address, bump uint8, err error) (address.Address, uint8, error) {
	if err != nil {
		return address.Zero, 0, oc.storeErr(fmt.Errorf("derive address: %w", err))
	}
	return addr, bump, nil
}

func (oc *opContext) addresses() Addresses {
	return oc.engine.addresses
}

func (oc *opContext) metadataTxn() types.Txn {
	return oc.txn.Metadata()
}

func (oc *opContext) getRealm(addr address.Address) (*Realm, error) {
	ret := &Realm{}
	if err := oc.load(addr, AccountTypeRealm, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (oc *opContext) getRealmConfig(realm *Realm) (address.Address, *RealmConfigAccount, error) {
	addr, _, err := oc.derive(oc.addresses().RealmConfig(realm.ID))
	if err != nil {
		return address.Zero, nil, err
	}
	ret := &RealmConfigAccount{}
	if err := oc.load(addr, AccountTypeRealmConfig, ret); err != nil {
		return address.Zero, nil, err
	}
	return addr, ret, nil
}

func (oc *opContext) getGovernance(addr address.Address) (*Governance, error) {
	ret := &Governance{}
	if err := oc.load(addr, AccountTypeGovernance, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (oc *opContext) getTokenOwnerRecord(addr address.Address) (*TokenOwnerRecord, error) {
	ret := &TokenOwnerRecord{}
	if err := oc.load(addr, AccountTypeTokenOwnerRecord, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// getOwnerRecord loads the token owner record of owner in realm
func (oc *opContext) getOwnerRecord(
	realmAddr address.Address,
	realm *Realm,
	owner address.Address,
) (address.Address, *TokenOwnerRecord, error) {
	addr, _, err := oc.derive(
		oc.addresses().TokenOwnerRecord(realmAddr, realm.CommunityMint, owner),
	)
	if err != nil {
		return address.Zero, nil, err
	}
	tor, err := oc.getTokenOwnerRecord(addr)
	if err != nil {
		return address.Zero, nil, err
	}
	return addr, tor, nil
}

func (oc *opContext) getProposal(addr address.Address) (*Proposal, error) {
	ret := &Proposal{}
	if err := oc.load(addr, AccountTypeProposal, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// proposalContext loads a proposal with its governance and realm
type proposalContext struct {
	addr       address.Address
	proposal   *Proposal
	govAddr    address.Address
	governance *Governance
	realmAddr  address.Address
	realm      *Realm
}

func (oc *opContext) loadProposalContext(addr address.Address) (*proposalContext, error) {
	proposal, err := oc.getProposal(addr)
	if err != nil {
		return nil, err
	}
	gov, err := oc.getGovernance(proposal.Governance)
	if err != nil {
		return nil, err
	}
	realm, err := oc.getRealm(gov.Realm)
	if err != nil {
		return nil, err
	}
	return &proposalContext{
		addr:       addr,
		proposal:   proposal,
		govAddr:    proposal.Governance,
		governance: gov,
		realmAddr:  gov.Realm,
		realm:      realm,
	}, nil
}

// setState moves a proposal to a new state, rejecting illegal transitions
func (oc *opContext) setState(pc *proposalContext, to ProposalState) error {
	from := pc.proposal.State
	if from == to {
		return nil
	}
	if !canTransition(from, to) {
		return oc.errorf(
			KindInvalidState,
			"proposal %s cannot move from %s to %s",
			pc.addr,
			from,
			to,
		)
	}
	pc.proposal.State = to
	oc.emit(event.ProposalStateEventType, event.ProposalStateEvent{
		Proposal: pc.addr,
		From:     from.String(),
		To:       to.String(),
	})
	oc.record(func(m *engineMetrics) {
		m.proposalStates.WithLabelValues(to.String()).Inc()
	})
	return nil
}

func (oc *opContext) putRealm(addr address.Address, realm *Realm) error {
	if err := oc.store(addr, realm); err != nil {
		return err
	}
	err := oc.txn.DB().Metadata().SetRealm(&models.Realm{
		Address:   addr.Bytes(),
		RealmID:   types.Uint64(realm.ID),
		Name:      realm.Name,
		Mint:      realm.CommunityMint.Bytes(),
		Authority: realm.Authority.Bytes(),
	}, oc.metadataTxn())
	if err != nil {
		return oc.storeErr(fmt.Errorf("index realm: %w", err))
	}
	return nil
}

func (oc *opContext) putTokenOwnerRecord(addr address.Address, tor *TokenOwnerRecord) error {
	if err := oc.store(addr, tor); err != nil {
		return err
	}
	err := oc.txn.DB().Metadata().SetTokenOwner(&models.TokenOwner{
		Address:       addr.Bytes(),
		Realm:         tor.Realm.Bytes(),
		Owner:         tor.Owner.Bytes(),
		DepositAmount: types.Uint64(tor.DepositAmount),
	}, oc.metadataTxn())
	if err != nil {
		return oc.storeErr(fmt.Errorf("index token owner record: %w", err))
	}
	return nil
}

func (oc *opContext) putProposal(pc *proposalContext) error {
	p := pc.proposal
	if err := oc.store(pc.addr, p); err != nil {
		return err
	}
	idx := &models.GovernanceProposal{
		Address:          pc.addr.Bytes(),
		Governance:       p.Governance.Bytes(),
		State:            uint8(p.State),
		TokenOwnerRecord: p.TokenOwnerRecord.Bytes(),
		Owner:            p.Owner.Bytes(),
		Sequence:         p.Sequence,
		Name:             p.Name,
		CreatedAt:        p.DraftAt,
	}
	if p.VotingStartedAt != 0 {
		endsAt := p.votingEndsAt(pc.governance.Config)
		idx.VotingEndsAt = &endsAt
	}
	if err := oc.txn.DB().Metadata().SetProposal(idx, oc.metadataTxn()); err != nil {
		return oc.storeErr(fmt.Errorf("index proposal: %w", err))
	}
	return nil
}

func (oc *opContext) putSignatoryRecord(addr address.Address, sr *SignatoryRecord) error {
	if err := oc.store(addr, sr); err != nil {
		return err
	}
	err := oc.txn.DB().Metadata().SetSignatory(&models.GovernanceSignatory{
		Address:   addr.Bytes(),
		Proposal:  sr.Proposal.Bytes(),
		Signatory: sr.Signatory.Bytes(),
		SignedOff: sr.SignedOff,
	}, oc.metadataTxn())
	if err != nil {
		return oc.storeErr(fmt.Errorf("index signatory record: %w", err))
	}
	return nil
}

func (oc *opContext) putVoteRecord(addr address.Address, vr *VoteRecord) error {
	if err := oc.store(addr, vr); err != nil {
		return err
	}
	err := oc.txn.DB().Metadata().SetVote(&models.GovernanceVote{
		Address:          addr.Bytes(),
		Proposal:         vr.Proposal.Bytes(),
		TokenOwnerRecord: vr.TokenOwnerRecord.Bytes(),
		Voter:            vr.Voter.Bytes(),
		Side:             uint8(vr.Side),
		Weight:           types.Uint64(vr.Weight),
		Relinquished:     vr.Relinquished,
	}, oc.metadataTxn())
	if err != nil {
		return oc.storeErr(fmt.Errorf("index vote record: %w", err))
	}
	return nil
}
