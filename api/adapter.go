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

package api

import (
	"context"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
	"github.com/blinklabs-io/realms/database"
)

// LedgerAdapter serves Ledger from the token bank in a database
type LedgerAdapter struct {
	db *database.Database
}

// NewLedgerAdapter creates a LedgerAdapter over db. Panics if db is nil.
func NewLedgerAdapter(db *database.Database) *LedgerAdapter {
	if db == nil {
		panic("NewLedgerAdapter: Database must not be nil")
	}
	return &LedgerAdapter{db: db}
}

func (a *LedgerAdapter) Balance(
	ctx context.Context,
	mint address.Address,
	owner address.Address,
) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var ret uint64
	err := a.db.View(func(txn *database.Txn) error {
		var err error
		ret, err = bank.BalanceOf(txn, mint, owner)
		return err
	})
	return ret, err
}

func (a *LedgerAdapter) Mint(
	ctx context.Context,
	mint address.Address,
) (MintInfo, error) {
	if err := ctx.Err(); err != nil {
		return MintInfo{}, err
	}
	var ret MintInfo
	err := a.db.View(func(txn *database.Txn) error {
		m, err := bank.GetMint(txn, mint)
		if err != nil {
			return err
		}
		ret = MintInfo{
			Address:   mint,
			Authority: m.Authority,
			Decimals:  m.Decimals,
			Supply:    m.Supply,
		}
		return nil
	})
	return ret, err
}

func (a *LedgerAdapter) CreateMint(
	ctx context.Context,
	mint address.Address,
	authority address.Address,
	decimals uint8,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.db.Update(func(txn *database.Txn) error {
		return bank.CreateMint(txn, mint, authority, decimals)
	})
}

func (a *LedgerAdapter) MintTo(
	ctx context.Context,
	mint address.Address,
	authority address.Address,
	holder address.Address,
	amount uint64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.db.Update(func(txn *database.Txn) error {
		return bank.MintTo(txn, mint, authority, holder, amount)
	})
}

func (a *LedgerAdapter) Airdrop(
	ctx context.Context,
	holder address.Address,
	lamports uint64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.db.Update(func(txn *database.Txn) error {
		return bank.Airdrop(txn, holder, lamports)
	})
}
