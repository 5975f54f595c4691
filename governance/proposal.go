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

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/event"
)

type CreateProposalParams struct {
	Realm           address.Address
	Mint            address.Address
	Authority       address.Address
	Name            string
	DescriptionLink string
}

// CreateProposal creates a Draft proposal and escrows its deposit. The
// proposal address comes from the creator's next sequence number.
func (e *Engine) CreateProposal(
	ctx context.Context,
	params CreateProposalParams,
) (address.Address, error) {
	var ret address.Address
	err := e.update(ctx, "createProposal", func(oc *opContext) error {
		if err := validateName(oc, params.Name); err != nil {
			return err
		}
		if len(params.DescriptionLink) > MaxDescriptionLinkLength {
			return oc.errorf(
				KindInvalidConfig,
				"description link is %d bytes, limit is %d",
				len(params.DescriptionLink),
				MaxDescriptionLinkLength,
			)
		}
		realm, err := oc.getRealm(params.Realm)
		if err != nil {
			return err
		}
		if params.Mint != realm.CommunityMint {
			return oc.errorf(
				KindInvalidConfig,
				"mint %s does not govern realm %s",
				params.Mint,
				params.Realm,
			)
		}
		govAddr, _, err := oc.derive(oc.addresses().Governance(params.Realm))
		if err != nil {
			return err
		}
		gov, err := oc.getGovernance(govAddr)
		if err != nil {
			return err
		}
		torAddr, tor, err := oc.getOwnerRecord(params.Realm, realm, params.Authority)
		if err != nil {
			return err
		}
		if tor.DepositAmount < gov.Config.MinCommunityWeightToCreateProposal {
			return oc.errorf(
				KindInsufficientWeight,
				"deposited weight %d is below %d",
				tor.DepositAmount,
				gov.Config.MinCommunityWeightToCreateProposal,
			)
		}
		if tor.ProposalIndex > 255 {
			return oc.errorf(KindOverflow, "proposal sequence exhausted for %s", params.Authority)
		}
		sequence := uint8(tor.ProposalIndex)
		addr, bump, err := oc.derive(oc.addresses().Proposal(govAddr, torAddr, sequence))
		if err != nil {
			return err
		}
		exists, err := oc.exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return oc.errorf(KindAlreadyExists, "proposal %s", addr)
		}
		tor.ProposalIndex++
		tor.OutstandingProposalCount++
		gov.ActiveProposalCount++
		pc := &proposalContext{
			addr: addr,
			proposal: &Proposal{
				Type:             AccountTypeProposal,
				Governance:       govAddr,
				Mint:             realm.CommunityMint,
				TokenOwnerRecord: torAddr,
				Owner:            params.Authority,
				Sequence:         sequence,
				State:            ProposalStateDraft,
				Name:             params.Name,
				DescriptionLink:  params.DescriptionLink,
				DraftAt:          oc.nowUnix(),
				Bump:             bump,
			},
			govAddr:    govAddr,
			governance: gov,
			realmAddr:  params.Realm,
			realm:      realm,
		}
		if err := oc.putProposal(pc); err != nil {
			return err
		}
		if err := oc.putTokenOwnerRecord(torAddr, tor); err != nil {
			return err
		}
		if err := oc.store(govAddr, gov); err != nil {
			return err
		}
		if err := oc.escrowDeposit(addr, params.Authority); err != nil {
			return err
		}
		oc.emit(event.ProposalCreatedEventType, event.ProposalCreatedEvent{
			Proposal:   addr,
			Governance: govAddr,
			Owner:      params.Authority,
			Name:       params.Name,
		})
		oc.record(func(m *engineMetrics) {
			m.proposalsCreated.Inc()
		})
		ret = addr
		return nil
	})
	if err != nil {
		return address.Zero, err
	}
	e.logger.Info(
		"proposal created",
		"proposal", ret.String(),
		"owner", params.Authority.String(),
		"name", params.Name,
	)
	return ret, nil
}

// SignerRef names the signatory being added and the slot it fills
type SignerRef struct {
	Kind      SignerKind
	Signatory address.Address
}

// Required refers to a signatory holding a required slot on the governance
func Required(signatory address.Address) SignerRef {
	return SignerRef{Kind: SignerRequired, Signatory: signatory}
}

// General refers to any token holder of the realm
func General(signatory address.Address) SignerRef {
	return SignerRef{Kind: SignerGeneral, Signatory: signatory}
}

// AddSignatory adds a signatory to a Draft proposal. Required slots must be
// filled before general signatories can be added.
func (e *Engine) AddSignatory(
	ctx context.Context,
	authority address.Address,
	proposalAddr address.Address,
	ref SignerRef,
) (address.Address, error) {
	var ret address.Address
	err := e.update(ctx, "addSignatory", func(oc *opContext) error {
		pc, err := oc.loadProposalContext(proposalAddr)
		if err != nil {
			return err
		}
		p := pc.proposal
		if p.State != ProposalStateDraft {
			return oc.errorf(KindInvalidState, "proposal %s is %s", proposalAddr, p.State)
		}
		requiredPending := p.SignatoriesCount < pc.governance.RequiredSignatoriesCount
		switch ref.Kind {
		case SignerRequired:
			if !requiredPending {
				return oc.errorf(KindUnauthorized, "required signatory slots are already filled")
			}
			if authority != p.Owner && authority != ref.Signatory {
				return oc.errorf(KindUnauthorized, "%s cannot add signatories", authority)
			}
			reqAddr, _, err := oc.derive(
				oc.addresses().RequiredSignatory(pc.govAddr, ref.Signatory),
			)
			if err != nil {
				return err
			}
			exists, err := oc.exists(reqAddr)
			if err != nil {
				return err
			}
			if !exists {
				return oc.errorf(KindUnauthorized, "%s is not a required signatory", ref.Signatory)
			}
		case SignerGeneral:
			if requiredPending {
				return oc.errorf(
					KindUnauthorized,
					"%d required signatories must be added first",
					pc.governance.RequiredSignatoriesCount-p.SignatoriesCount,
				)
			}
			if authority != p.Owner {
				return oc.errorf(KindUnauthorized, "%s cannot add signatories", authority)
			}
			if _, _, err := oc.getOwnerRecord(pc.realmAddr, pc.realm, ref.Signatory); err != nil {
				return err
			}
		default:
			return oc.errorf(KindInvalidConfig, "unknown signer kind %s", ref.Kind)
		}
		addr, bump, err := oc.derive(oc.addresses().SignatoryRecord(proposalAddr, ref.Signatory))
		if err != nil {
			return err
		}
		exists, err := oc.exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return oc.errorf(KindAlreadyExists, "signatory %s on proposal %s", ref.Signatory, proposalAddr)
		}
		p.SignatoriesCount++
		if err := oc.putSignatoryRecord(addr, &SignatoryRecord{
			Type:      AccountTypeSignatoryRecord,
			Proposal:  proposalAddr,
			Signatory: ref.Signatory,
			Kind:      ref.Kind,
			Bump:      bump,
		}); err != nil {
			return err
		}
		if err := oc.putProposal(pc); err != nil {
			return err
		}
		oc.emit(event.SignatoryEventType, event.SignatoryEvent{
			Proposal:  proposalAddr,
			Signatory: ref.Signatory,
		})
		ret = addr
		return nil
	})
	if err != nil {
		return address.Zero, err
	}
	return ret, nil
}

// SignOffProposal records the signer's approval. The proposal enters Voting
// once every signatory has signed, or immediately when the creator signs a
// proposal without signatories.
func (e *Engine) SignOffProposal(
	ctx context.Context,
	signer address.Address,
	proposalAddr address.Address,
) error {
	return e.update(ctx, "signOffProposal", func(oc *opContext) error {
		pc, err := oc.loadProposalContext(proposalAddr)
		if err != nil {
			return err
		}
		p := pc.proposal
		switch p.State {
		case ProposalStateDraft, ProposalStateSigningOff:
		default:
			return oc.errorf(KindInvalidState, "proposal %s is %s", proposalAddr, p.State)
		}
		if p.SignatoriesCount < pc.governance.RequiredSignatoriesCount {
			return oc.errorf(
				KindInvalidState,
				"proposal has %d of %d required signatories",
				p.SignatoriesCount,
				pc.governance.RequiredSignatoriesCount,
			)
		}
		if p.SignatoriesCount == 0 {
			if signer != p.Owner {
				return oc.errorf(KindUnauthorized, "only the creator can sign off %s", proposalAddr)
			}
			p.SigningOffAt = oc.nowUnix()
		} else {
			addr, _, err := oc.derive(oc.addresses().SignatoryRecord(proposalAddr, signer))
			if err != nil {
				return err
			}
			sr := &SignatoryRecord{}
			if err := oc.load(addr, AccountTypeSignatoryRecord, sr); err != nil {
				if KindOf(err) == KindNotFound {
					return oc.errorf(KindUnauthorized, "%s is not a signatory of %s", signer, proposalAddr)
				}
				return err
			}
			if sr.SignedOff {
				return oc.errorf(KindAlreadySignedOff, "%s already signed off", signer)
			}
			sr.SignedOff = true
			if p.SignatoriesSignedOffCount == 0 {
				p.SigningOffAt = oc.nowUnix()
				if err := oc.setState(pc, ProposalStateSigningOff); err != nil {
					return err
				}
			}
			p.SignatoriesSignedOffCount++
			if err := oc.putSignatoryRecord(addr, sr); err != nil {
				return err
			}
			oc.emit(event.SignatoryEventType, event.SignatoryEvent{
				Proposal:  proposalAddr,
				Signatory: signer,
				SignedOff: true,
			})
		}
		if p.SignatoriesSignedOffCount == p.SignatoriesCount {
			p.VotingStartedAt = oc.nowUnix()
			if err := oc.setState(pc, ProposalStateVoting); err != nil {
				return err
			}
		}
		return oc.putProposal(pc)
	})
}

// AddTransaction attaches the instruction executed when the proposal passes
func (e *Engine) AddTransaction(
	ctx context.Context,
	authority address.Address,
	proposalAddr address.Address,
	ix InstructionData,
) (address.Address, error) {
	var ret address.Address
	err := e.update(ctx, "addTransaction", func(oc *opContext) error {
		pc, err := oc.loadProposalContext(proposalAddr)
		if err != nil {
			return err
		}
		p := pc.proposal
		if p.State != ProposalStateDraft {
			return oc.errorf(KindInvalidState, "proposal %s is %s", proposalAddr, p.State)
		}
		if authority != p.Owner {
			return oc.errorf(KindUnauthorized, "only the creator can attach a transaction")
		}
		if ix.ProgramID.IsZero() {
			return oc.errorf(KindInvalidConfig, "program id is unset")
		}
		if len(ix.Accounts) > MaxInstructionAccounts {
			return oc.errorf(
				KindInvalidConfig,
				"%d accounts, limit is %d",
				len(ix.Accounts),
				MaxInstructionAccounts,
			)
		}
		if len(ix.Data) > MaxInstructionDataLength {
			return oc.errorf(
				KindInvalidConfig,
				"instruction data is %d bytes, limit is %d",
				len(ix.Data),
				MaxInstructionDataLength,
			)
		}
		addr, bump, err := oc.derive(oc.addresses().ProposalTransaction(proposalAddr))
		if err != nil {
			return err
		}
		exists, err := oc.exists(addr)
		if err != nil {
			return err
		}
		if p.HasTransaction || exists {
			return oc.errorf(KindAlreadyExists, "proposal %s already has a transaction", proposalAddr)
		}
		p.HasTransaction = true
		if err := oc.store(addr, &ProposalTransaction{
			Type:        AccountTypeProposalTransaction,
			Proposal:    proposalAddr,
			Instruction: ix,
			Status:      TransactionStatusPending,
			Bump:        bump,
		}); err != nil {
			return err
		}
		if err := oc.putProposal(pc); err != nil {
			return err
		}
		oc.emit(event.TransactionEventType, event.TransactionEvent{
			Proposal: proposalAddr,
			Status:   TransactionStatusPending.String(),
		})
		ret = addr
		return nil
	})
	if err != nil {
		return address.Zero, err
	}
	return ret, nil
}
