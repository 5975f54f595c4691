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
	"github.com/blinklabs-io/realms/bank"
	"github.com/sjatsh/uint128"
)

// votePasses applies the threshold rule yes*100 >= threshold*(yes+no). No
// cast weight at all is a defeat.
func votePasses(yes, no uint64, threshold uint8) bool {
	cast := uint128.From64(yes).Add64(no)
	if cast.IsZero() {
		return false
	}
	return uint128.From64(yes).Mul64(100).Cmp(cast.Mul64(uint64(threshold))) >= 0
}

// maxVoterWeight returns the most weight that could be cast in a realm
func maxVoterWeight(src MaxVoterWeightSource, supply uint64) uint128.Uint128 {
	switch src.Kind {
	case MaxVoterWeightAbsolute:
		return uint128.From64(src.Value)
	case MaxVoterWeightSupplyFraction:
		return uint128.From64(supply).Mul64(src.Value).Div64(SupplyFractionBase)
	}
	return uint128.Uint128{}
}

// decidedOutcome reports whether the uncast weight can no longer change the
// result, and the result if so. The uncast weight is limit minus the weight
// already cast, with limit raised to at least the cast weight.
func decidedOutcome(yes, no uint64, limit uint128.Uint128, threshold uint8) (bool, bool) {
	cast := uint128.From64(yes).Add64(no)
	if cast.IsZero() {
		return false, false
	}
	if limit.Cmp(cast) < 0 {
		limit = cast
	}
	remaining := limit.Sub(cast)
	needed := limit.Mul64(uint64(threshold))
	if uint128.From64(yes).Mul64(100).Cmp(needed) >= 0 {
		return true, true
	}
	if uint128.From64(yes).Add(remaining).Mul64(100).Cmp(needed) < 0 {
		return true, false
	}
	return false, false
}

// FinalizeVote closes voting and applies the threshold. It is refused until
// the voting window including cool-off has passed, unless the governance
// tips early and the outcome is already decided.
func (e *Engine) FinalizeVote(
	ctx context.Context,
	proposalAddr address.Address,
) (ProposalState, error) {
	var ret ProposalState
	err := e.update(ctx, "finalizeVote", func(oc *opContext) error {
		pc, err := oc.loadProposalContext(proposalAddr)
		if err != nil {
			return err
		}
		p := pc.proposal
		if p.State != ProposalStateVoting {
			return oc.errorf(KindInvalidState, "proposal %s is %s", proposalAddr, p.State)
		}
		cfg := pc.governance.Config
		endsAt := p.votingEndsAt(cfg)
		if oc.nowUnix() < endsAt {
			if cfg.VoteTipping != VoteTippingEarly {
				return oc.errorf(KindVotingNotEnded, "voting ends at %d", endsAt)
			}
			mint, err := bank.GetMint(oc.txn, pc.realm.CommunityMint)
			if err != nil {
				return oc.storeErr(err)
			}
			decided, _ := decidedOutcome(
				p.YesVoteWeight,
				p.NoVoteWeight,
				maxVoterWeight(pc.realm.Config.MaxVoterWeight, mint.Supply),
				cfg.VoteThresholdPercentage,
			)
			if !decided {
				return oc.errorf(
					KindVotingNotEnded,
					"voting ends at %d and the outcome is open",
					endsAt,
				)
			}
		}
		var next ProposalState
		switch {
		case !votePasses(p.YesVoteWeight, p.NoVoteWeight, cfg.VoteThresholdPercentage):
			next = ProposalStateDefeated
		case p.HasTransaction:
			next = ProposalStateSucceeded
		default:
			next = ProposalStateCompleted
		}
		if err := oc.setState(pc, next); err != nil {
			return err
		}
		now := oc.nowUnix()
		p.VotingCompletedAt = now
		p.VoteThreshold = cfg.VoteThresholdPercentage
		if next.IsTerminal() {
			p.ClosedAt = now
		}
		if pc.governance.ActiveProposalCount == 0 {
			return oc.errorf(KindOverflow, "active proposal count underflow")
		}
		pc.governance.ActiveProposalCount--
		tor, err := oc.getTokenOwnerRecord(p.TokenOwnerRecord)
		if err != nil {
			return err
		}
		if tor.OutstandingProposalCount > 0 {
			tor.OutstandingProposalCount--
		}
		if err := oc.store(pc.govAddr, pc.governance); err != nil {
			return err
		}
		if err := oc.putTokenOwnerRecord(p.TokenOwnerRecord, tor); err != nil {
			return err
		}
		if err := oc.putProposal(pc); err != nil {
			return err
		}
		ret = next
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info(
		"proposal finalized",
		"proposal", proposalAddr.String(),
		"state", ret.String(),
	)
	return ret, nil
}
