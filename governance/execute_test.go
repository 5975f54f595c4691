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
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
	"github.com/blinklabs-io/realms/governance/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHoldUp = 300

// succeeded returns a proposal that passed with ix attached
func (env *testEnv) succeeded(ix InstructionData) address.Address {
	env.t.Helper()
	creator := holder(1)
	env.join(creator, 10)
	proposal := env.propose(creator, "execute")
	_, err := env.engine.AddTransaction(env.ctx, creator, proposal, ix)
	require.NoError(env.t, err)
	require.NoError(env.t, env.engine.SignOffProposal(env.ctx, creator, proposal))
	env.vote(creator, proposal, VoteYes)
	env.clock.Advance(votingWindow(env.governance().Config))
	state, err := env.engine.FinalizeVote(env.ctx, proposal)
	require.NoError(env.t, err)
	require.Equal(env.t, ProposalStateSucceeded, state)
	return proposal
}

func executeConfig() GovernanceConfig {
	cfg := defaultGovernanceConfig()
	cfg.TransactionsHoldUpTime = testHoldUp
	return cfg
}

func TestExecuteMemo(t *testing.T) {
	env := newTestEnv(t, executeConfig())
	accounts := []AccountMeta{{Address: env.gov, IsSigner: true}}
	proposal := env.succeeded(InstructionData{
		ProgramID: program.MemoProgramID,
		Data:      []byte("approved"),
		Accounts:  accounts,
	})

	_, err := env.engine.ExecuteTransaction(env.ctx, proposal, accounts, nil)
	require.ErrorIs(t, err, ErrVotingNotEnded)
	env.clock.Advance(testHoldUp * time.Second)

	status, err := env.engine.ExecuteTransaction(env.ctx, proposal, accounts, nil)
	require.NoError(t, err)
	assert.Equal(t, TransactionStatusSuccess, status)
	p := env.proposal(proposal)
	assert.Equal(t, ProposalStateCompleted, p.State)
	assert.Equal(t, env.clock.Now().Unix(), p.ClosedAt)
	tx, err := env.engine.GetProposalTransaction(env.ctx, proposal)
	require.NoError(t, err)
	assert.Equal(t, TransactionStatusSuccess, tx.Status)
	assert.Equal(t, env.clock.Now().Unix(), tx.ExecutedAt)
	assert.Empty(t, tx.Error)

	_, err = env.engine.ExecuteTransaction(env.ctx, proposal, accounts, nil)
	require.ErrorIs(t, err, ErrAlreadyExecuted)
}

func TestExecuteBankTransfer(t *testing.T) {
	env := newTestEnv(t, executeConfig())
	recipient := holder(9)
	env.fund(env.gov, 0, 1000)
	data, err := program.EncodeTransfer(bank.NativeMint, 400)
	require.NoError(t, err)
	accounts := []AccountMeta{
		{Address: env.gov, IsSigner: true, IsWritable: true},
		{Address: recipient, IsWritable: true},
	}
	proposal := env.succeeded(InstructionData{
		ProgramID: program.BankTransferProgramID,
		Data:      data,
		Accounts:  accounts,
	})
	env.clock.Advance(testHoldUp * time.Second)
	status, err := env.engine.ExecuteTransaction(env.ctx, proposal, accounts, nil)
	require.NoError(t, err)
	assert.Equal(t, TransactionStatusSuccess, status)
	assert.Equal(t, uint64(600), env.balance(bank.NativeMint, env.gov))
	assert.Equal(t, uint64(400), env.balance(bank.NativeMint, recipient))
}

func TestExecuteFailureIsRecorded(t *testing.T) {
	env := newTestEnv(t, executeConfig())
	data, err := program.EncodeTransfer(bank.NativeMint, 400)
	require.NoError(t, err)
	accounts := []AccountMeta{
		{Address: env.gov, IsSigner: true, IsWritable: true},
		{Address: holder(9), IsWritable: true},
	}
	proposal := env.succeeded(InstructionData{
		ProgramID: program.BankTransferProgramID,
		Data:      data,
		Accounts:  accounts,
	})
	env.clock.Advance(testHoldUp * time.Second)

	// The governance holds no lamports
	status, err := env.engine.ExecuteTransaction(env.ctx, proposal, accounts, nil)
	require.NoError(t, err)
	assert.Equal(t, TransactionStatusError, status)
	p := env.proposal(proposal)
	assert.Equal(t, ProposalStateExecutionFailed, p.State)
	tx, err := env.engine.GetProposalTransaction(env.ctx, proposal)
	require.NoError(t, err)
	assert.Equal(t, TransactionStatusError, tx.Status)
	assert.Contains(t, tx.Error, "insufficient")
	assert.Zero(t, env.balance(bank.NativeMint, holder(9)))

	_, err = env.engine.ExecuteTransaction(env.ctx, proposal, accounts, nil)
	require.ErrorIs(t, err, ErrAlreadyExecuted)
	// A failed proposal is terminal, so its deposit can be reclaimed
	amount, err := env.engine.RefundProposalDeposit(env.ctx, proposal, holder(1))
	require.NoError(t, err)
	assert.Equal(t, ProposalDepositAmount(), amount)
}

func TestExecuteUnknownProgram(t *testing.T) {
	env := newTestEnv(t, executeConfig())
	proposal := env.succeeded(InstructionData{
		ProgramID: program.ID("missing"),
		Data:      []byte{1},
	})
	env.clock.Advance(testHoldUp * time.Second)
	status, err := env.engine.ExecuteTransaction(env.ctx, proposal, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TransactionStatusError, status)
	assert.Equal(t, ProposalStateExecutionFailed, env.proposal(proposal).State)
}

func TestExecuteAccountChecks(t *testing.T) {
	env := newTestEnv(t, executeConfig())
	cosigner := holder(8)
	declared := []AccountMeta{
		{Address: env.gov, IsSigner: true},
		{Address: cosigner, IsSigner: true},
	}
	proposal := env.succeeded(InstructionData{
		ProgramID: program.MemoProgramID,
		Data:      []byte("two signers"),
		Accounts:  declared,
	})
	env.clock.Advance(testHoldUp * time.Second)

	testCases := []struct {
		name     string
		accounts []AccountMeta
		signers  []address.Address
	}{
		{"missing account", declared[:1], []address.Address{cosigner}},
		{"extra account", append(append([]AccountMeta{}, declared...), AccountMeta{Address: holder(3)}), []address.Address{cosigner}},
		{"wrong address", []AccountMeta{declared[0], {Address: holder(3), IsSigner: true}}, []address.Address{holder(3)}},
		{"signer flag dropped", []AccountMeta{declared[0], {Address: cosigner}}, []address.Address{cosigner}},
		{"writable flag added", []AccountMeta{declared[0], {Address: cosigner, IsSigner: true, IsWritable: true}}, []address.Address{cosigner}},
		{"signature missing", declared, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.engine.ExecuteTransaction(env.ctx, proposal, tc.accounts, tc.signers)
			require.ErrorIs(t, err, ErrAccountMismatch)
			assert.Equal(t, ProposalStateSucceeded, env.proposal(proposal).State)
		})
	}
	status, err := env.engine.ExecuteTransaction(env.ctx, proposal, declared, []address.Address{cosigner})
	require.NoError(t, err)
	assert.Equal(t, TransactionStatusSuccess, status)
}

func TestExecutePreconditions(t *testing.T) {
	env := newTestEnv(t, executeConfig())
	creator := holder(1)
	env.join(creator, 10)

	// Passed without a transaction
	plain := env.startVoting(creator, "plain")
	env.vote(creator, plain, VoteYes)
	env.clock.Advance(votingWindow(executeConfig()) + testHoldUp*time.Second)
	state, err := env.engine.FinalizeVote(env.ctx, plain)
	require.NoError(t, err)
	require.Equal(t, ProposalStateCompleted, state)
	_, err = env.engine.ExecuteTransaction(env.ctx, plain, nil, nil)
	require.ErrorIs(t, err, ErrNotFound)

	// Still voting
	voting := env.propose(creator, "voting")
	_, err = env.engine.AddTransaction(env.ctx, creator, voting, InstructionData{
		ProgramID: program.MemoProgramID,
		Data:      []byte("memo"),
	})
	require.NoError(t, err)
	require.NoError(t, env.engine.SignOffProposal(env.ctx, creator, voting))
	_, err = env.engine.ExecuteTransaction(env.ctx, voting, nil, nil)
	require.ErrorIs(t, err, ErrInvalidState)

	_, err = env.engine.ExecuteTransaction(env.ctx, testKey(0x77), nil, nil)
	require.ErrorIs(t, err, ErrNotFound)
}
