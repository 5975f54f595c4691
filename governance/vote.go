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
	"math/bits"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/event"
)

// CastVote records the caller's full deposited weight on one side. Voting is
// open until the end of the cool-off window.
func (e *Engine) CastVote(
	ctx context.Context,
	authority address.Address,
	proposalAddr address.Address,
	side VoteSide,
) (address.Address, error) {
	var ret address.Address
	var weight uint64
	err := e.update(ctx, "castVote", func(oc *opContext) error {
		switch side {
		case VoteYes, VoteNo:
		default:
			return oc.errorf(KindInvalidConfig, "unknown vote side %s", side)
		}
		pc, err := oc.loadProposalContext(proposalAddr)
		if err != nil {
			return err
		}
		p := pc.proposal
		if p.State != ProposalStateVoting {
			return oc.errorf(KindInvalidState, "proposal %s is %s", proposalAddr, p.State)
		}
		if oc.nowUnix() >= p.votingEndsAt(pc.governance.Config) {
			return oc.errorf(KindInvalidState, "voting on %s has ended", proposalAddr)
		}
		torAddr, tor, err := oc.getOwnerRecord(pc.realmAddr, pc.realm, authority)
		if err != nil {
			return err
		}
		addr, bump, err := oc.derive(oc.addresses().VoteRecord(proposalAddr, torAddr))
		if err != nil {
			return err
		}
		exists, err := oc.exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return oc.errorf(KindAlreadyVoted, "%s already voted on %s", authority, proposalAddr)
		}
		if tor.DepositAmount == 0 {
			return oc.errorf(KindNoWeight, "%s has no deposited weight", authority)
		}
		weight = tor.DepositAmount
		var carry uint64
		switch side {
		case VoteYes:
			p.YesVoteWeight, carry = bits.Add64(p.YesVoteWeight, weight, 0)
		case VoteNo:
			p.NoVoteWeight, carry = bits.Add64(p.NoVoteWeight, weight, 0)
		}
		if carry != 0 {
			return oc.errorf(KindOverflow, "vote weight overflow")
		}
		tor.UnrelinquishedVotesCount++
		if err := oc.putVoteRecord(addr, &VoteRecord{
			Type:             AccountTypeVoteRecord,
			Proposal:         proposalAddr,
			TokenOwnerRecord: torAddr,
			Voter:            authority,
			Side:             side,
			Weight:           weight,
			Bump:             bump,
		}); err != nil {
			return err
		}
		if err := oc.putTokenOwnerRecord(torAddr, tor); err != nil {
			return err
		}
		if err := oc.putProposal(pc); err != nil {
			return err
		}
		oc.emit(event.VoteEventType, event.VoteEvent{
			Proposal: proposalAddr,
			Voter:    authority,
			Side:     side.String(),
			Weight:   weight,
		})
		oc.record(func(m *engineMetrics) {
			m.votesCast.WithLabelValues(side.String()).Inc()
		})
		ret = addr
		return nil
	})
	if err != nil {
		return address.Zero, err
	}
	e.logger.Debug(
		"vote cast",
		"proposal", proposalAddr.String(),
		"voter", authority.String(),
		"side", side.String(),
		"weight", weight,
	)
	return ret, nil
}

// RelinquishVote withdraws the caller's vote. While the proposal is Voting
// the weight is removed from the tally; afterwards only the voter's
// unrelinquished count changes.
func (e *Engine) RelinquishVote(
	ctx context.Context,
	authority address.Address,
	proposalAddr address.Address,
) error {
	return e.update(ctx, "relinquishVote", func(oc *opContext) error {
		pc, err := oc.loadProposalContext(proposalAddr)
		if err != nil {
			return err
		}
		p := pc.proposal
		torAddr, tor, err := oc.getOwnerRecord(pc.realmAddr, pc.realm, authority)
		if err != nil {
			return err
		}
		addr, _, err := oc.derive(oc.addresses().VoteRecord(proposalAddr, torAddr))
		if err != nil {
			return err
		}
		vr := &VoteRecord{}
		if err := oc.load(addr, AccountTypeVoteRecord, vr); err != nil {
			return err
		}
		if vr.Voter != authority {
			return oc.errorf(KindUnauthorized, "%s did not cast vote %s", authority, addr)
		}
		if vr.Relinquished {
			return oc.errorf(KindAlreadyRelinquished, "vote %s", addr)
		}
		if p.State == ProposalStateVoting {
			var borrow uint64
			switch vr.Side {
			case VoteYes:
				p.YesVoteWeight, borrow = bits.Sub64(p.YesVoteWeight, vr.Weight, 0)
			case VoteNo:
				p.NoVoteWeight, borrow = bits.Sub64(p.NoVoteWeight, vr.Weight, 0)
			}
			if borrow != 0 {
				return oc.errorf(KindOverflow, "vote weight underflow")
			}
			if err := oc.putProposal(pc); err != nil {
				return err
			}
		}
		if tor.UnrelinquishedVotesCount == 0 {
			return oc.errorf(KindOverflow, "unrelinquished vote count underflow")
		}
		tor.UnrelinquishedVotesCount--
		vr.Relinquished = true
		if err := oc.putVoteRecord(addr, vr); err != nil {
			return err
		}
		if err := oc.putTokenOwnerRecord(torAddr, tor); err != nil {
			return err
		}
		oc.emit(event.VoteEventType, event.VoteEvent{
			Proposal:     proposalAddr,
			Voter:        authority,
			Side:         vr.Side.String(),
			Weight:       vr.Weight,
			Relinquished: true,
		})
		oc.record(func(m *engineMetrics) {
			m.votesRelinquished.Inc()
		})
		return nil
	})
}
