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

type CreateRealmParams struct {
	ID          uint64
	Name        string
	Config      RealmConfig
	TokenConfig TokenConfig
	// Authority signs the creation and administers the realm
	Authority address.Address
	// Mint is the governing token
	Mint address.Address
}

func validateRealmConfig(oc *opContext, cfg RealmConfig) error {
	if cfg.MinCommunityWeightToCreateGovernance == 0 {
		return oc.errorf(
			KindInvalidConfig,
			"minimum community weight to create a governance is unset",
		)
	}
	if !cfg.MaxVoterWeight.valid() {
		return oc.errorf(
			KindInvalidConfig,
			"max voter weight source %s(%d) is malformed",
			cfg.MaxVoterWeight.Kind,
			cfg.MaxVoterWeight.Value,
		)
	}
	return nil
}

func validateTokenConfig(oc *opContext, cfg TokenConfig) error {
	switch cfg.TokenType {
	case TokenTypeLiquid, TokenTypeMembership, TokenTypeDormant:
		return nil
	}
	return oc.errorf(KindInvalidConfig, "unknown token type %s", cfg.TokenType)
}

func validateName(oc *opContext, name string) error {
	if name == "" {
		return oc.errorf(KindInvalidConfig, "name is empty")
	}
	if len(name) > MaxNameLength {
		return oc.errorf(
			KindInvalidConfig,
			"name is %d bytes, limit is %d",
			len(name),
			MaxNameLength,
		)
	}
	return nil
}

// CreateRealm creates a realm with its config record and community token
// holding
func (e *Engine) CreateRealm(
	ctx context.Context,
	params CreateRealmParams,
) (address.Address, error) {
	var realmAddr address.Address
	err := e.update(ctx, "createRealm", func(oc *opContext) error {
		if err := validateName(oc, params.Name); err != nil {
			return err
		}
		if err := validateRealmConfig(oc, params.Config); err != nil {
			return err
		}
		if err := validateTokenConfig(oc, params.TokenConfig); err != nil {
			return err
		}
		if params.Authority.IsZero() {
			return oc.errorf(KindInvalidConfig, "realm authority is unset")
		}
		addr, bump, err := oc.derive(oc.addresses().Realm(params.ID))
		if err != nil {
			return err
		}
		exists, err := oc.exists(addr)
		if err != nil {
			return err
		}
		if exists {
			return oc.errorf(KindAlreadyExists, "realm %d at %s", params.ID, addr)
		}
		if _, err := bank.GetMint(oc.txn, params.Mint); err != nil {
			if errors.Is(err, bank.ErrMintNotFound) {
				return oc.errorf(KindInvalidConfig, "mint %s does not exist", params.Mint)
			}
			return oc.storeErr(err)
		}
		if params.Mint == bank.NativeMint {
			return oc.errorf(KindInvalidConfig, "native lamports cannot govern a realm")
		}
		configAddr, configBump, err := oc.derive(oc.addresses().RealmConfig(params.ID))
		if err != nil {
			return err
		}
		holding, _, err := oc.derive(
			oc.addresses().CommunityTokenHolding(params.Mint, addr),
		)
		if err != nil {
			return err
		}
		if err := bank.OpenAccount(oc.txn, params.Mint, holding); err != nil {
			if errors.Is(err, bank.ErrAccountExists) {
				return oc.errorf(KindAlreadyExists, "community token holding %s", holding)
			}
			return oc.storeErr(err)
		}
		realm := &Realm{
			Type:                  AccountTypeRealm,
			ID:                    params.ID,
			Name:                  params.Name,
			CommunityMint:         params.Mint,
			CommunityTokenHolding: holding,
			Config:                params.Config,
			Authority:             params.Authority,
			Bump:                  bump,
		}
		if err := oc.putRealm(addr, realm); err != nil {
			return err
		}
		if err := oc.store(configAddr, &RealmConfigAccount{
			Type:        AccountTypeRealmConfig,
			Realm:       addr,
			TokenConfig: params.TokenConfig,
			Bump:        configBump,
		}); err != nil {
			return err
		}
		oc.emit(event.RealmEventType, event.RealmEvent{
			Realm:     addr,
			Name:      realm.Name,
			Authority: realm.Authority,
			Created:   true,
		})
		realmAddr = addr
		return nil
	})
	if err != nil {
		return address.Zero, err
	}
	e.logger.Info(
		"realm created",
		"realm", realmAddr.String(),
		"id", params.ID,
		"name", params.Name,
	)
	return realmAddr, nil
}

func (oc *opContext) requireRealmAuthority(realm *Realm, caller address.Address) error {
	if realm.Authority != caller {
		return oc.errorf(KindUnauthorized, "%s is not the realm authority", caller)
	}
	return nil
}

// SetRealmAuthority hands the realm to a new authority
func (e *Engine) SetRealmAuthority(
	ctx context.Context,
	realmAddr address.Address,
	authority address.Address,
	newAuthority address.Address,
) error {
	return e.update(ctx, "setRealmAuthority", func(oc *opContext) error {
		realm, err := oc.getRealm(realmAddr)
		if err != nil {
			return err
		}
		if err := oc.requireRealmAuthority(realm, authority); err != nil {
			return err
		}
		if newAuthority.IsZero() {
			return oc.errorf(KindInvalidConfig, "realm authority is unset")
		}
		realm.Authority = newAuthority
		if err := oc.putRealm(realmAddr, realm); err != nil {
			return err
		}
		oc.emit(event.RealmEventType, event.RealmEvent{
			Realm:     realmAddr,
			Name:      realm.Name,
			Authority: newAuthority,
		})
		return nil
	})
}

type SetRealmConfigParams struct {
	Realm       address.Address
	Authority   address.Address
	Config      RealmConfig
	TokenConfig TokenConfig
}

// SetRealmConfig replaces the weight rules and token config of a realm. The
// realm id and mint never change.
func (e *Engine) SetRealmConfig(ctx context.Context, params SetRealmConfigParams) error {
	return e.update(ctx, "setRealmConfig", func(oc *opContext) error {
		realm, err := oc.getRealm(params.Realm)
		if err != nil {
			return err
		}
		if err := oc.requireRealmAuthority(realm, params.Authority); err != nil {
			return err
		}
		if err := validateRealmConfig(oc, params.Config); err != nil {
			return err
		}
		if err := validateTokenConfig(oc, params.TokenConfig); err != nil {
			return err
		}
		configAddr, realmConfig, err := oc.getRealmConfig(realm)
		if err != nil {
			return err
		}
		realm.Config = params.Config
		realmConfig.TokenConfig = params.TokenConfig
		if err := oc.putRealm(params.Realm, realm); err != nil {
			return err
		}
		if err := oc.store(configAddr, realmConfig); err != nil {
			return err
		}
		oc.emit(event.RealmEventType, event.RealmEvent{
			Realm:     params.Realm,
			Name:      realm.Name,
			Authority: realm.Authority,
		})
		return nil
	})
}
