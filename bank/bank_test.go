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

package bank_test

import (
	"bytes"
	"testing"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
	"github.com/blinklabs-io/realms/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testAddr(b byte) address.Address {
	a, _ := address.New(bytes.Repeat([]byte{b}, address.Size))
	return a
}

func balanceOf(t *testing.T, db *database.Database, mint, holder address.Address) uint64 {
	t.Helper()
	var ret uint64
	require.NoError(t, db.View(func(txn *database.Txn) error {
		var err error
		ret, err = bank.BalanceOf(txn, mint, holder)
		return err
	}))
	return ret
}

func TestMintLifecycle(t *testing.T) {
	db := newTestDB(t)
	mint := testAddr(1)
	authority := testAddr(2)
	holder := testAddr(3)

	require.NoError(t, db.Update(func(txn *database.Txn) error {
		return bank.CreateMint(txn, mint, authority, 6)
	}))
	err := db.Update(func(txn *database.Txn) error {
		return bank.CreateMint(txn, mint, authority, 6)
	})
	require.ErrorIs(t, err, bank.ErrMintExists)

	err = db.Update(func(txn *database.Txn) error {
		return bank.MintTo(txn, mint, holder, holder, 10)
	})
	require.ErrorIs(t, err, bank.ErrUnauthorized)

	require.NoError(t, db.Update(func(txn *database.Txn) error {
		return bank.MintTo(txn, mint, authority, holder, 500)
	}))
	assert.Equal(t, uint64(500), balanceOf(t, db, mint, holder))

	require.NoError(t, db.View(func(txn *database.Txn) error {
		m, err := bank.GetMint(txn, mint)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), m.Supply)
		assert.Equal(t, uint8(6), m.Decimals)
		assert.Equal(t, authority, m.Authority)
		_, err = bank.GetMint(txn, testAddr(9))
		assert.ErrorIs(t, err, bank.ErrMintNotFound)
		return nil
	}))
}

func TestMintSupplyOverflow(t *testing.T) {
	db := newTestDB(t)
	mint := testAddr(1)
	authority := testAddr(2)
	require.NoError(t, db.Update(func(txn *database.Txn) error {
		if err := bank.CreateMint(txn, mint, authority, 0); err != nil {
			return err
		}
		return bank.MintTo(txn, mint, authority, testAddr(3), ^uint64(0))
	}))
	err := db.Update(func(txn *database.Txn) error {
		return bank.MintTo(txn, mint, authority, testAddr(4), 1)
	})
	require.ErrorIs(t, err, bank.ErrOverflow)
	assert.Zero(t, balanceOf(t, db, mint, testAddr(4)))
}

func TestTransfer(t *testing.T) {
	db := newTestDB(t)
	mint := testAddr(1)
	authority := testAddr(2)
	alice := testAddr(3)
	bob := testAddr(4)
	require.NoError(t, db.Update(func(txn *database.Txn) error {
		if err := bank.CreateMint(txn, mint, authority, 0); err != nil {
			return err
		}
		return bank.MintTo(txn, mint, authority, alice, 100)
	}))

	tests := []struct {
		name    string
		from    address.Address
		to      address.Address
		amount  uint64
		wantErr error
	}{
		{name: "zero amount", from: alice, to: bob, amount: 0, wantErr: bank.ErrInvalidAmount},
		{name: "too much", from: alice, to: bob, amount: 101, wantErr: bank.ErrInsufficientFunds},
		{name: "no account", from: bob, to: alice, amount: 1, wantErr: bank.ErrInsufficientFunds},
		{name: "ok", from: alice, to: bob, amount: 40},
		{name: "self", from: alice, to: alice, amount: 60},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := db.Update(func(txn *database.Txn) error {
				return bank.Transfer(txn, mint, test.from, test.to, test.amount)
			})
			if test.wantErr != nil {
				require.ErrorIs(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
	assert.Equal(t, uint64(60), balanceOf(t, db, mint, alice))
	assert.Equal(t, uint64(40), balanceOf(t, db, mint, bob))
}

func TestNativeAirdropAndAccounts(t *testing.T) {
	db := newTestDB(t)
	holder := testAddr(5)
	escrow := testAddr(6)

	require.NoError(t, db.Update(func(txn *database.Txn) error {
		return bank.Airdrop(txn, holder, 1_000)
	}))
	err := db.Update(func(txn *database.Txn) error {
		return bank.MintTo(txn, bank.NativeMint, holder, holder, 1)
	})
	require.ErrorIs(t, err, bank.ErrUnauthorized)

	require.NoError(t, db.Update(func(txn *database.Txn) error {
		if err := bank.OpenAccount(txn, bank.NativeMint, escrow); err != nil {
			return err
		}
		return bank.Transfer(txn, bank.NativeMint, holder, escrow, 400)
	}))
	err = db.Update(func(txn *database.Txn) error {
		return bank.OpenAccount(txn, bank.NativeMint, escrow)
	})
	require.ErrorIs(t, err, bank.ErrAccountExists)
	err = db.Update(func(txn *database.Txn) error {
		return bank.CloseAccount(txn, bank.NativeMint, escrow)
	})
	require.ErrorIs(t, err, bank.ErrAccountNotEmpty)

	require.NoError(t, db.Update(func(txn *database.Txn) error {
		if err := bank.Transfer(txn, bank.NativeMint, escrow, holder, 400); err != nil {
			return err
		}
		return bank.CloseAccount(txn, bank.NativeMint, escrow)
	}))
	assert.Equal(t, uint64(1_000), balanceOf(t, db, bank.NativeMint, holder))
	require.NoError(t, db.View(func(txn *database.Txn) error {
		addr, err := bank.BalanceAddress(bank.NativeMint, escrow)
		require.NoError(t, err)
		ok, err := txn.HasAccount(addr[:])
		require.NoError(t, err)
		assert.False(t, ok)
		m, err := bank.GetMint(txn, bank.NativeMint)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000), m.Supply)
		return nil
	}))
}

func TestOpenAccountUnknownMint(t *testing.T) {
	db := newTestDB(t)
	err := db.Update(func(txn *database.Txn) error {
		return bank.OpenAccount(txn, testAddr(7), testAddr(8))
	})
	assert.ErrorIs(t, err, bank.ErrMintNotFound)
}

func TestBalanceAddressIsDeterministic(t *testing.T) {
	a, err := bank.BalanceAddress(testAddr(1), testAddr(2))
	require.NoError(t, err)
	b, err := bank.BalanceAddress(testAddr(1), testAddr(2))
	require.NoError(t, err)
	c, err := bank.BalanceAddress(testAddr(2), testAddr(1))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.False(t, a.IsOnCurve())
}

func TestForeignRecordTypes(t *testing.T) {
	db := newTestDB(t)
	mint := testAddr(1)
	authority := testAddr(2)
	holder := testAddr(3)
	require.NoError(t, db.Update(func(txn *database.Txn) error {
		if err := bank.CreateMint(txn, mint, authority, 0); err != nil {
			return err
		}
		return bank.MintTo(txn, mint, authority, holder, 5)
	}))
	balAddr, err := bank.BalanceAddress(mint, holder)
	require.NoError(t, err)
	otherBal, err := bank.BalanceAddress(mint, testAddr(4))
	require.NoError(t, err)
	require.NoError(t, db.Update(func(txn *database.Txn) error {
		// A mint sitting where a balance is expected
		if err := bank.CreateMint(txn, otherBal, authority, 0); err != nil {
			return err
		}
		return txn.SetAccount(testAddr(7).Bytes(), []byte{0x01})
	}))

	require.NoError(t, db.View(func(txn *database.Txn) error {
		_, err := bank.GetMint(txn, balAddr)
		assert.ErrorIs(t, err, bank.ErrWrongRecordType)
		_, err = bank.GetMint(txn, testAddr(7))
		assert.ErrorIs(t, err, bank.ErrWrongRecordType)
		_, err = bank.BalanceOf(txn, mint, testAddr(4))
		assert.ErrorIs(t, err, bank.ErrWrongRecordType)
		return nil
	}))
}
