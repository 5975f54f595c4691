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
	"math/bits"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
	"github.com/blinklabs-io/realms/event"
)

// CreateTokenOwnerRecord opens an empty token owner record for owner
func (e *Engine) CreateTokenOwnerRecord(
	ctx context.Context,
	realmAddr address.Address,
	owner address.Address,
) (address.Address, error) {
	var ret address.Address
	err := e.update(ctx, "createTokenOwnerRecord", func(oc *opContext) error {
		realm, err := oc.getRealm(realmAddr)
		if err != nil {
			return err
		}
		if owner.IsZero() {
			return oc.errorf(KindInvalidConfig, "owner is unset")
		}
		addr, bump, err := oc.derive(
			oc.addresses().TokenOwnerRecord(realmAddr, realm.CommunityMint, owner),
		)
		if err != nil {
			return err
		}
		exists, err := oc.exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return oc.errorf(KindAlreadyExists, "token owner record for %s", owner)
		}
		if err := oc.putTokenOwnerRecord(addr, &TokenOwnerRecord{
			Type:  AccountTypeTokenOwnerRecord,
			Realm: realmAddr,
			Mint:  realm.CommunityMint,
			Owner: owner,
			Bump:  bump,
		}); err != nil {
			return err
		}
		oc.emit(event.TokenOwnerEventType, event.TokenOwnerEvent{
			Realm:  realmAddr,
			Owner:  owner,
			Record: addr,
		})
		ret = addr
		return nil
	})
	if err != nil {
		return address.Zero, err
	}
	return ret, nil
}

// DepositGoverningTokens moves tokens from the owner into the realm holding
// and adds them to the owner's voting weight
func (e *Engine) DepositGoverningTokens(
	ctx context.Context,
	realmAddr address.Address,
	owner address.Address,
	amount uint64,
) error {
	return e.update(ctx, "depositGoverningTokens", func(oc *opContext) error {
		if amount == 0 {
			return oc.errorf(KindInvalidConfig, "deposit amount must be positive")
		}
		realm, err := oc.getRealm(realmAddr)
		if err != nil {
			return err
		}
		_, realmConfig, err := oc.getRealmConfig(realm)
		if err != nil {
			return err
		}
		if realmConfig.TokenConfig.TokenType == TokenTypeDormant {
			return oc.errorf(KindInvalidConfig, "dormant tokens cannot be deposited")
		}
		torAddr, tor, err := oc.getOwnerRecord(realmAddr, realm, owner)
		if err != nil {
			return err
		}
		total, carry := bits.Add64(tor.DepositAmount, amount, 0)
		if carry != 0 {
			return oc.errorf(KindOverflow, "deposit amount overflow")
		}
		if err := bank.Transfer(
			oc.txn,
			realm.CommunityMint,
			owner,
			realm.CommunityTokenHolding,
			amount,
		); err != nil {
			if errors.Is(err, bank.ErrInsufficientFunds) {
				return wrapError(KindInsufficientWeight, oc.op, err, "token balance too low")
			}
			return oc.storeErr(err)
		}
		tor.DepositAmount = total
		if err := oc.putTokenOwnerRecord(torAddr, tor); err != nil {
			return err
		}
		oc.emit(event.TokenOwnerEventType, event.TokenOwnerEvent{
			Realm:     realmAddr,
			Owner:     owner,
			Record:    torAddr,
			Amount:    amount,
			Deposited: total,
		})
		oc.record(func(m *engineMetrics) {
			m.tokensDeposited.Add(float64(amount))
		})
		return nil
	})
}

// WithdrawGoverningTokens returns the whole deposit to the owner. It is
// refused while the owner has unrelinquished votes or open proposals.
func (e *Engine) WithdrawGoverningTokens(
	ctx context.Context,
	realmAddr address.Address,
	owner address.Address,
) (uint64, error) {
	var amount uint64
	err := e.update(ctx, "withdrawGoverningTokens", func(oc *opContext) error {
		realm, err := oc.getRealm(realmAddr)
		if err != nil {
			return err
		}
		_, realmConfig, err := oc.getRealmConfig(realm)
		if err != nil {
			return err
		}
		if realmConfig.TokenConfig.TokenType == TokenTypeMembership {
			return oc.errorf(KindInvalidConfig, "membership tokens cannot be withdrawn")
		}
		torAddr, tor, err := oc.getOwnerRecord(realmAddr, realm, owner)
		if err != nil {
			return err
		}
		if tor.UnrelinquishedVotesCount > 0 {
			return oc.errorf(
				KindInvalidState,
				"%d votes are not relinquished",
				tor.UnrelinquishedVotesCount,
			)
		}
		if tor.OutstandingProposalCount > 0 {
			return oc.errorf(
				KindInvalidState,
				"%d proposals are still open",
				tor.OutstandingProposalCount,
			)
		}
		if tor.DepositAmount == 0 {
			return oc.errorf(KindNoWeight, "nothing deposited")
		}
		amount = tor.DepositAmount
		if err := bank.Transfer(
			oc.txn,
			realm.CommunityMint,
			realm.CommunityTokenHolding,
			owner,
			amount,
		); err != nil {
			return oc.storeErr(err)
		}
		tor.DepositAmount = 0
		if err := oc.putTokenOwnerRecord(torAddr, tor); err != nil {
			return err
		}
		oc.emit(event.TokenOwnerEventType, event.TokenOwnerEvent{
			Realm:     realmAddr,
			Owner:     owner,
			Record:    torAddr,
			Amount:    amount,
			Withdrawn: true,
		})
		oc.record(func(m *engineMetrics) {
			m.tokensWithdrawn.Add(float64(amount))
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}
