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
	"github.com/blinklabs-io/realms/governance/program"
)

// validateAccounts checks the caller-supplied accounts against the stored
// instruction and resolves signatures. The governance signs for itself.
func validateAccounts(
	oc *opContext,
	govAddr address.Address,
	declared []AccountMeta,
	attached []AccountMeta,
	signers []address.Address,
) ([]program.Account, error) {
	if len(declared) != len(attached) {
		return nil, oc.errorf(
			KindAccountMismatch,
			"expected %d accounts, got %d",
			len(declared),
			len(attached),
		)
	}
	signed := make(map[address.Address]struct{}, len(signers)+1)
	signed[govAddr] = struct{}{}
	for _, s := range signers {
		signed[s] = struct{}{}
	}
	ret := make([]program.Account, 0, len(declared))
	for i, want := range declared {
		got := attached[i]
		if got.Address != want.Address ||
			got.IsSigner != want.IsSigner ||
			got.IsWritable != want.IsWritable {
			return nil, oc.errorf(
				KindAccountMismatch,
				"account %d: expected %s (signer=%t writable=%t), got %s (signer=%t writable=%t)",
				i,
				want.Address,
				want.IsSigner,
				want.IsWritable,
				got.Address,
				got.IsSigner,
				got.IsWritable,
			)
		}
		if want.IsSigner {
			if _, ok := signed[want.Address]; !ok {
				return nil, oc.errorf(
					KindAccountMismatch,
					"account %d: %s did not sign",
					i,
					want.Address,
				)
			}
		}
		ret = append(ret, program.Account{
			Address:    want.Address,
			IsSigner:   want.IsSigner,
			IsWritable: want.IsWritable,
		})
	}
	return ret, nil
}

// ExecuteTransaction runs the transaction of a Succeeded proposal once the
// hold-up time has passed. A failing program is recorded as ExecutionFailed
// and the call itself succeeds.
func (e *Engine) ExecuteTransaction(
	ctx context.Context,
	proposalAddr address.Address,
	accounts []AccountMeta,
	signers []address.Address,
) (TransactionStatus, error) {
	var status TransactionStatus
	var execErr error
	err := e.update(ctx, "executeTransaction", func(oc *opContext) error {
		pc, err := oc.loadProposalContext(proposalAddr)
		if err != nil {
			return err
		}
		p := pc.proposal
		if !p.HasTransaction {
			return oc.errorf(KindNotFound, "proposal %s has no transaction", proposalAddr)
		}
		txAddr, _, err := oc.derive(oc.addresses().ProposalTransaction(proposalAddr))
		if err != nil {
			return err
		}
		tx := &ProposalTransaction{}
		if err := oc.load(txAddr, AccountTypeProposalTransaction, tx); err != nil {
			return err
		}
		if tx.Status != TransactionStatusPending {
			return oc.errorf(
				KindAlreadyExecuted,
				"transaction of %s finished with %s",
				proposalAddr,
				tx.Status,
			)
		}
		if p.State != ProposalStateSucceeded {
			return oc.errorf(KindInvalidState, "proposal %s is %s", proposalAddr, p.State)
		}
		readyAt := p.holdUpEndsAt(pc.governance.Config)
		if oc.nowUnix() < readyAt {
			return oc.errorf(KindVotingNotEnded, "transaction is held until %d", readyAt)
		}
		resolved, err := validateAccounts(
			oc,
			pc.govAddr,
			tx.Instruction.Accounts,
			accounts,
			signers,
		)
		if err != nil {
			return err
		}
		if err := oc.setState(pc, ProposalStateExecuting); err != nil {
			return err
		}
		execErr = oc.engine.config.Programs.Execute(
			&program.Context{
				Txn:    oc.txn,
				Now:    oc.now,
				Logger: oc.engine.logger,
			},
			tx.Instruction.ProgramID,
			tx.Instruction.Data,
			resolved,
		)
		next := ProposalStateCompleted
		status = TransactionStatusSuccess
		if execErr != nil {
			next = ProposalStateExecutionFailed
			status = TransactionStatusError
			tx.Error = execErr.Error()
		}
		tx.Status = status
		tx.ExecutedAt = oc.nowUnix()
		if err := oc.setState(pc, next); err != nil {
			return err
		}
		p.ClosedAt = oc.nowUnix()
		if err := oc.store(txAddr, tx); err != nil {
			return err
		}
		if err := oc.putProposal(pc); err != nil {
			return err
		}
		oc.emit(event.TransactionEventType, event.TransactionEvent{
			Proposal: proposalAddr,
			Executed: true,
			Status:   status.String(),
		})
		oc.record(func(m *engineMetrics) {
			m.executions.WithLabelValues(status.String()).Inc()
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	if execErr != nil {
		e.logger.Warn(
			"proposal transaction failed",
			"proposal", proposalAddr.String(),
			"error", execErr,
		)
	} else {
		e.logger.Info(
			"proposal transaction executed",
			"proposal", proposalAddr.String(),
		)
	}
	return status, nil
}
