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
	"math"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/event"
)

// MaxDuration bounds every governance duration, in seconds
const MaxDuration = math.MaxUint32

type CreateGovernanceParams struct {
	Realm     address.Address
	Config    GovernanceConfig
	Authority address.Address
}

func validateGovernanceConfig(oc *opContext, cfg GovernanceConfig) error {
	if cfg.VoteThresholdPercentage < 1 || cfg.VoteThresholdPercentage > 100 {
		return oc.errorf(
			KindInvalidConfig,
			"vote threshold %d%% is outside 1..100",
			cfg.VoteThresholdPercentage,
		)
	}
	if cfg.VotingBaseTime <= 0 {
		return oc.errorf(KindInvalidConfig, "voting base time must be positive")
	}
	if cfg.VotingCoolOffTime < 0 || cfg.TransactionsHoldUpTime < 0 {
		return oc.errorf(KindInvalidConfig, "durations cannot be negative")
	}
	if cfg.VotingBaseTime > MaxDuration ||
		cfg.VotingCoolOffTime > MaxDuration ||
		cfg.TransactionsHoldUpTime > MaxDuration {
		return oc.errorf(KindInvalidConfig, "durations cannot exceed %d seconds", int64(MaxDuration))
	}
	switch cfg.VoteTipping {
	case VoteTippingStrict, VoteTippingEarly, VoteTippingDisabled:
	default:
		return oc.errorf(KindInvalidConfig, "unknown vote tipping %s", cfg.VoteTipping)
	}
	return nil
}

// CreateGovernance creates the single governance of a realm
func (e *Engine) CreateGovernance(
	ctx context.Context,
	params CreateGovernanceParams,
) (address.Address, error) {
	var govAddr address.Address
	err := e.update(ctx, "createGovernance", func(oc *opContext) error {
		realm, err := oc.getRealm(params.Realm)
		if err != nil {
			return err
		}
		if err := oc.requireRealmAuthority(realm, params.Authority); err != nil {
			return err
		}
		if err := validateGovernanceConfig(oc, params.Config); err != nil {
			return err
		}
		addr, bump, err := oc.derive(oc.addresses().Governance(params.Realm))
		if err != nil {
			return err
		}
		exists, err := oc.exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return oc.errorf(KindAlreadyExists, "realm %s already has a governance", params.Realm)
		}
		var weight uint64
		_, tor, err := oc.getOwnerRecord(params.Realm, realm, params.Authority)
		switch {
		case err == nil:
			weight = tor.DepositAmount
		case errors.Is(err, ErrNotFound):
		default:
			return err
		}
		if weight < realm.Config.MinCommunityWeightToCreateGovernance {
			return oc.errorf(
				KindInsufficientWeight,
				"deposited weight %d is below %d",
				weight,
				realm.Config.MinCommunityWeightToCreateGovernance,
			)
		}
		if err := oc.store(addr, &Governance{
			Type:   AccountTypeGovernance,
			Realm:  params.Realm,
			Config: params.Config,
			Bump:   bump,
		}); err != nil {
			return err
		}
		oc.emit(event.GovernanceEventType, event.GovernanceEvent{
			Realm:      params.Realm,
			Governance: addr,
			Created:    true,
		})
		govAddr = addr
		return nil
	})
	if err != nil {
		return address.Zero, err
	}
	e.logger.Info(
		"governance created",
		"realm", params.Realm.String(),
		"governance", govAddr.String(),
	)
	return govAddr, nil
}

// loadGovernanceAsAuthority loads a governance and checks that caller
// administers its realm
func (oc *opContext) loadGovernanceAsAuthority(
	govAddr address.Address,
	caller address.Address,
) (*Governance, error) {
	gov, err := oc.getGovernance(govAddr)
	if err != nil {
		return nil, err
	}
	realm, err := oc.getRealm(gov.Realm)
	if err != nil {
		return nil, err
	}
	if err := oc.requireRealmAuthority(realm, caller); err != nil {
		return nil, err
	}
	return gov, nil
}

// SetGovernanceConfig replaces the voting rules. Proposals already in
// Voting are judged by the rules in force when they are finalized.
func (e *Engine) SetGovernanceConfig(
	ctx context.Context,
	govAddr address.Address,
	authority address.Address,
	cfg GovernanceConfig,
) error {
	return e.update(ctx, "setGovernanceConfig", func(oc *opContext) error {
		gov, err := oc.loadGovernanceAsAuthority(govAddr, authority)
		if err != nil {
			return err
		}
		if err := validateGovernanceConfig(oc, cfg); err != nil {
			return err
		}
		gov.Config = cfg
		if err := oc.store(govAddr, gov); err != nil {
			return err
		}
		if err := oc.reindexVoting(govAddr, gov); err != nil {
			return err
		}
		oc.emit(event.GovernanceEventType, event.GovernanceEvent{
			Realm:      gov.Realm,
			Governance: govAddr,
		})
		return nil
	})
}

// reindexVoting refreshes the indexed voting deadline of every open proposal
// of the governance, since the window is measured against the current config
func (oc *opContext) reindexVoting(govAddr address.Address, gov *Governance) error {
	rows, err := oc.txn.DB().Metadata().GetProposals(
		govAddr.Bytes(),
		[]uint8{uint8(ProposalStateVoting)},
		oc.metadataTxn(),
	)
	if err != nil {
		return oc.storeErr(err)
	}
	addrs := make([][]byte, 0, len(rows))
	for _, row := range rows {
		addrs = append(addrs, row.Address)
	}
	voting, err := loadListed[Proposal](oc, AccountTypeProposal, addrs)
	if err != nil {
		return err
	}
	for _, p := range voting {
		err := oc.putProposal(&proposalContext{
			addr:       p.Address,
			proposal:   p.Record,
			govAddr:    govAddr,
			governance: gov,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// CreateRequiredSignatory adds a signatory that every proposal of the
// governance must collect before voting
func (e *Engine) CreateRequiredSignatory(
	ctx context.Context,
	govAddr address.Address,
	authority address.Address,
	signatory address.Address,
) (address.Address, error) {
	var ret address.Address
	err := e.update(ctx, "createRequiredSignatory", func(oc *opContext) error {
		gov, err := oc.loadGovernanceAsAuthority(govAddr, authority)
		if err != nil {
			return err
		}
		if signatory.IsZero() {
			return oc.errorf(KindInvalidConfig, "signatory is unset")
		}
		addr, bump, err := oc.derive(oc.addresses().RequiredSignatory(govAddr, signatory))
		if err != nil {
			return err
		}
		exists, err := oc.exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return oc.errorf(KindAlreadyExists, "required signatory %s", signatory)
		}
		gov.RequiredSignatoriesCount++
		if err := oc.store(addr, &RequiredSignatory{
			Type:       AccountTypeRequiredSignatory,
			Governance: govAddr,
			Signatory:  signatory,
			Bump:       bump,
		}); err != nil {
			return err
		}
		if err := oc.store(govAddr, gov); err != nil {
			return err
		}
		oc.emit(event.RequiredSignatoryEventType, event.RequiredSignatoryEvent{
			Governance: govAddr,
			Signatory:  signatory,
		})
		ret = addr
		return nil
	})
	if err != nil {
		return address.Zero, err
	}
	return ret, nil
}

// RemoveRequiredSignatory drops a required signatory. Signatory records
// already added to proposals are kept.
func (e *Engine) RemoveRequiredSignatory(
	ctx context.Context,
	govAddr address.Address,
	authority address.Address,
	signatory address.Address,
) error {
	return e.update(ctx, "removeRequiredSignatory", func(oc *opContext) error {
		gov, err := oc.loadGovernanceAsAuthority(govAddr, authority)
		if err != nil {
			return err
		}
		addr, _, err := oc.derive(oc.addresses().RequiredSignatory(govAddr, signatory))
		if err != nil {
			return err
		}
		if err := oc.load(addr, AccountTypeRequiredSignatory, &RequiredSignatory{}); err != nil {
			return err
		}
		if gov.RequiredSignatoriesCount == 0 {
			return oc.errorf(KindOverflow, "required signatory count underflow")
		}
		gov.RequiredSignatoriesCount--
		if err := oc.remove(addr); err != nil {
			return err
		}
		if err := oc.store(govAddr, gov); err != nil {
			return err
		}
		oc.emit(event.RequiredSignatoryEventType, event.RequiredSignatoryEvent{
			Governance: govAddr,
			Signatory:  signatory,
			Removed:    true,
		})
		return nil
	})
}

// IsRequiredSignatory reports whether signatory holds a required slot
func (e *Engine) IsRequiredSignatory(
	ctx context.Context,
	govAddr address.Address,
	signatory address.Address,
) (bool, error) {
	var ret bool
	err := e.view(ctx, "isRequiredSignatory", func(oc *opContext) error {
		addr, _, err := oc.derive(oc.addresses().RequiredSignatory(govAddr, signatory))
		if err != nil {
			return err
		}
		err = oc.load(addr, AccountTypeRequiredSignatory, &RequiredSignatory{})
		switch {
		case err == nil:
			ret = true
		case errors.Is(err, ErrNotFound):
		default:
			return err
		}
		return nil
	})
	return ret, err
}

// RequiredSignatoryCount returns the number of required signatories
func (e *Engine) RequiredSignatoryCount(
	ctx context.Context,
	govAddr address.Address,
) (uint64, error) {
	gov, err := e.GetGovernance(ctx, govAddr)
	if err != nil {
		return 0, err
	}
	return gov.RequiredSignatoriesCount, nil
}
