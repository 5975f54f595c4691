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
	"testing"

	"github.com/blinklabs-io/realms/bank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefundProposalDeposit(t *testing.T) {
	cfg := defaultGovernanceConfig()
	env := newTestEnv(t, cfg)
	creator := holder(1)
	env.join(creator, 10)
	env.fund(creator, 0, 77)
	proposal := env.propose(creator, "refund")
	assert.Equal(t, uint64(77), env.balance(bank.NativeMint, creator))

	// Draft, SigningOff and Voting proposals keep their deposit
	_, err := env.engine.RefundProposalDeposit(env.ctx, proposal, creator)
	require.ErrorIs(t, err, ErrInvalidState)
	require.NoError(t, env.engine.SignOffProposal(env.ctx, creator, proposal))
	_, err = env.engine.RefundProposalDeposit(env.ctx, proposal, creator)
	require.ErrorIs(t, err, ErrInvalidState)

	env.clock.Advance(votingWindow(cfg))
	state, err := env.engine.FinalizeVote(env.ctx, proposal)
	require.NoError(t, err)
	require.Equal(t, ProposalStateDefeated, state)

	// Only the depositor's record exists
	_, err = env.engine.RefundProposalDeposit(env.ctx, proposal, holder(2))
	require.ErrorIs(t, err, ErrNotFound)

	amount, err := env.engine.RefundProposalDeposit(env.ctx, proposal, creator)
	require.NoError(t, err)
	assert.Equal(t, ProposalDepositAmount(), amount)
	assert.Equal(t, ProposalDepositAmount()+77, env.balance(bank.NativeMint, creator))
	_, _, err = env.engine.GetProposalDeposit(env.ctx, proposal, creator)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.engine.RefundProposalDeposit(env.ctx, proposal, creator)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRefundUnknownProposal(t *testing.T) {
	env := newTestEnv(t, defaultGovernanceConfig())
	_, err := env.engine.RefundProposalDeposit(env.ctx, testKey(0x42), holder(1))
	require.ErrorIs(t, err, ErrNotFound)
}
