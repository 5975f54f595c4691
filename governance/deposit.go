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
	"errors"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
	"github.com/blinklabs-io/realms/event"
)

const (
	// AccountStorageOverhead is charged on top of every record's data size
	AccountStorageOverhead = 128
	// LamportsPerByte is the rent-exempt price of one stored byte
	LamportsPerByte = 6960
	// ProposalRecordSize is the storage size charged for a proposal
	ProposalRecordSize = 458
	// ProposalDepositSurcharge is added to every proposal deposit
	ProposalDepositSurcharge = 100_000_000
)

// MinimumBalance returns the rent-exempt balance for a record of size bytes
func MinimumBalance(size uint64) uint64 {
	return (AccountStorageOverhead + size) * LamportsPerByte
}

// ProposalDepositAmount is the lamports escrowed when a proposal is created
func ProposalDepositAmount() uint64 {
	return MinimumBalance(ProposalRecordSize) + ProposalDepositSurcharge
}

// escrowDeposit funds the deposit record of a new proposal from the
// depositor's native balance
func (oc *opContext) escrowDeposit(
	proposalAddr address.Address,
	depositor address.Address,
) error {
	addr, bump, err := oc.derive(oc.addresses().ProposalDeposit(depositor, proposalAddr))
	if err != nil {
		return err
	}
	exists, err := oc.exists(addr)
	if err != nil {
		return err
	}
	if exists {
		return oc.errorf(KindAlreadyExists, "proposal deposit %s", addr)
	}
	amount := ProposalDepositAmount()
	if err := bank.Transfer(oc.txn, bank.NativeMint, depositor, addr, amount); err != nil {
		if errors.Is(err, bank.ErrInsufficientFunds) {
			return wrapError(
				KindInsufficientWeight,
				oc.op,
				err,
				"cannot pay proposal deposit of %d lamports",
				amount,
			)
		}
		return oc.storeErr(err)
	}
	if err := oc.store(addr, &ProposalDeposit{
		Type:      AccountTypeProposalDeposit,
		Proposal:  proposalAddr,
		Depositor: depositor,
		Amount:    amount,
		Bump:      bump,
	}); err != nil {
		return err
	}
	oc.emit(event.DepositEventType, event.DepositEvent{
		Proposal:  proposalAddr,
		Depositor: depositor,
		Amount:    amount,
	})
	oc.record(func(m *engineMetrics) {
		m.depositsEscrowed.Add(float64(amount))
	})
	return nil
}

// RefundProposalDeposit returns the escrowed deposit of a terminal proposal
// and closes the deposit record
func (e *Engine) RefundProposalDeposit(
	ctx context.Context,
	proposalAddr address.Address,
	depositor address.Address,
) (uint64, error) {
	var amount uint64
	err := e.update(ctx, "refundProposalDeposit", func(oc *opContext) error {
		proposal, err := oc.getProposal(proposalAddr)
		if err != nil {
			return err
		}
		if !proposal.State.IsTerminal() {
			return oc.errorf(
				KindInvalidState,
				"proposal %s is %s",
				proposalAddr,
				proposal.State,
			)
		}
		addr, _, err := oc.derive(oc.addresses().ProposalDeposit(depositor, proposalAddr))
		if err != nil {
			return err
		}
		deposit := &ProposalDeposit{}
		if err := oc.load(addr, AccountTypeProposalDeposit, deposit); err != nil {
			return err
		}
		if deposit.Amount > 0 {
			if err := bank.Transfer(
				oc.txn,
				bank.NativeMint,
				addr,
				deposit.Depositor,
				deposit.Amount,
			); err != nil {
				return oc.storeErr(err)
			}
		}
		if err := bank.CloseAccount(oc.txn, bank.NativeMint, addr); err != nil {
			return oc.storeErr(err)
		}
		if err := oc.remove(addr); err != nil {
			return err
		}
		amount = deposit.Amount
		oc.emit(event.DepositEventType, event.DepositEvent{
			Proposal:  proposalAddr,
			Depositor: deposit.Depositor,
			Amount:    deposit.Amount,
			Refunded:  true,
		})
		oc.record(func(m *engineMetrics) {
			m.depositsRefunded.Add(float64(deposit.Amount))
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}
