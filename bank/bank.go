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

// Package bank keeps fungible token balances in the account store. Balances
// are addressed per (mint, holder) and the zero address denominates native
// lamports, which fund proposal deposits.
package bank

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/bits"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/database"
)

const (
	NativeDecimals = 9

	recordTypeMint    uint8 = 0x80
	recordTypeBalance uint8 = 0x81
)

var (
	ErrMintNotFound      = errors.New("mint not found")
	ErrMintExists        = errors.New("mint already exists")
	ErrAccountExists     = errors.New("token account already exists")
	ErrAccountNotFound   = errors.New("token account not found")
	ErrAccountNotEmpty   = errors.New("token account is not empty")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorized      = errors.New("not the mint authority")
	ErrOverflow          = errors.New("amount overflow")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrWrongRecordType   = errors.New("account holds a different record type")
)

// NativeMint denominates native lamports
var NativeMint = address.Zero

// ProgramID owns every balance account
var ProgramID = address.Address(sha256.Sum256([]byte("realms:bank")))

// Mint describes a fungible token
type Mint struct {
	cbor.StructAsArray
	Type      uint8
	Authority address.Address
	Decimals  uint8
	Supply    uint64
}

// Balance is the amount of one mint held by one holder
type Balance struct {
	cbor.StructAsArray
	Type   uint8
	Mint   address.Address
	Holder address.Address
	Amount uint64
}

// BalanceAddress returns the account address of the (mint, holder) balance
func BalanceAddress(mint, holder address.Address) (address.Address, error) {
	addr, _, err := address.FindProgramAddress(
		[][]byte{mint[:], holder[:], []byte("balance")},
		ProgramID,
	)
	return addr, err
}

// CreateMint registers a new mint at the given address
func CreateMint(
	txn *database.Txn,
	mint address.Address,
	authority address.Address,
	decimals uint8,
) error {
	if mint == NativeMint {
		return ErrMintExists
	}
	exists, err := txn.HasAccount(mint[:])
	if err != nil {
		return err
	}
	if exists {
		return ErrMintExists
	}
	return putMint(txn, mint, &Mint{
		Type:      recordTypeMint,
		Authority: authority,
		Decimals:  decimals,
	})
}

// GetMint returns the mint stored at the given address. The native mint
// always exists.
func GetMint(txn *database.Txn, mint address.Address) (*Mint, error) {
	data, err := txn.GetAccount(mint[:])
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			if mint == NativeMint {
				return &Mint{
					Type:     recordTypeMint,
					Decimals: NativeDecimals,
				}, nil
			}
			return nil, ErrMintNotFound
		}
		return nil, err
	}
	if !hasRecordType(data, recordTypeMint) {
		return nil, fmt.Errorf("%w: %s", ErrWrongRecordType, mint)
	}
	ret := &Mint{}
	if _, err := cbor.Decode(data, ret); err != nil {
		return nil, fmt.Errorf("decode mint %s: %w", mint, err)
	}
	return ret, nil
}

// MintTo issues new tokens to a holder. Only the mint authority may issue.
func MintTo(
	txn *database.Txn,
	mint address.Address,
	authority address.Address,
	holder address.Address,
	amount uint64,
) error {
	if mint == NativeMint {
		return ErrUnauthorized
	}
	m, err := GetMint(txn, mint)
	if err != nil {
		return err
	}
	if m.Authority != authority {
		return ErrUnauthorized
	}
	return issue(txn, mint, m, holder, amount)
}

// Airdrop credits native lamports to a holder
func Airdrop(txn *database.Txn, holder address.Address, lamports uint64) error {
	m, err := GetMint(txn, NativeMint)
	if err != nil {
		return err
	}
	return issue(txn, NativeMint, m, holder, lamports)
}

func issue(
	txn *database.Txn,
	mintAddr address.Address,
	m *Mint,
	holder address.Address,
	amount uint64,
) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	supply, carry := bits.Add64(m.Supply, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	bal, balAddr, err := getOrNewBalance(txn, mintAddr, holder)
	if err != nil {
		return err
	}
	// Supply bounds every balance, so this cannot overflow
	bal.Amount += amount
	m.Supply = supply
	if err := putMint(txn, mintAddr, m); err != nil {
		return err
	}
	return putBalance(txn, balAddr, bal)
}

// BalanceOf returns the amount held, which is zero when no account exists
func BalanceOf(
	txn *database.Txn,
	mint address.Address,
	holder address.Address,
) (uint64, error) {
	bal, _, err := getBalance(txn, mint, holder)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return bal.Amount, nil
}

// OpenAccount creates an empty balance account
func OpenAccount(
	txn *database.Txn,
	mint address.Address,
	holder address.Address,
) error {
	if _, err := GetMint(txn, mint); err != nil {
		return err
	}
	_, balAddr, err := getBalance(txn, mint, holder)
	if err == nil {
		return ErrAccountExists
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return err
	}
	return putBalance(txn, balAddr, &Balance{
		Type:   recordTypeBalance,
		Mint:   mint,
		Holder: holder,
	})
}

// CloseAccount removes an empty balance account
func CloseAccount(
	txn *database.Txn,
	mint address.Address,
	holder address.Address,
) error {
	bal, balAddr, err := getBalance(txn, mint, holder)
	if err != nil {
		return err
	}
	if bal.Amount != 0 {
		return ErrAccountNotEmpty
	}
	return txn.DeleteAccount(balAddr[:])
}

// Transfer moves tokens between holders, opening the destination account
// when needed
func Transfer(
	txn *database.Txn,
	mint address.Address,
	from address.Address,
	to address.Address,
	amount uint64,
) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	src, srcAddr, err := getBalance(txn, mint, from)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return fmt.Errorf("%w: %s has no balance", ErrInsufficientFunds, from)
		}
		return err
	}
	if src.Amount < amount {
		return fmt.Errorf(
			"%w: %s holds %d, need %d",
			ErrInsufficientFunds,
			from,
			src.Amount,
			amount,
		)
	}
	if from == to {
		return nil
	}
	dst, dstAddr, err := getOrNewBalance(txn, mint, to)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	src.Amount -= amount
	dst.Amount = sum
	if err := putBalance(txn, srcAddr, src); err != nil {
		return err
	}
	return putBalance(txn, dstAddr, dst)
}

func getBalance(
	txn *database.Txn,
	mint address.Address,
	holder address.Address,
) (*Balance, address.Address, error) {
	balAddr, err := BalanceAddress(mint, holder)
	if err != nil {
		return nil, address.Zero, err
	}
	data, err := txn.GetAccount(balAddr[:])
	if err != nil {
		if errors.Is(err, database.ErrAccountNotFound) {
			return nil, balAddr, ErrAccountNotFound
		}
		return nil, balAddr, err
	}
	if !hasRecordType(data, recordTypeBalance) {
		return nil, balAddr, fmt.Errorf("%w: %s", ErrWrongRecordType, balAddr)
	}
	ret := &Balance{}
	if _, err := cbor.Decode(data, ret); err != nil {
		return nil, balAddr, fmt.Errorf("decode balance %s: %w", balAddr, err)
	}
	return ret, balAddr, nil
}

// hasRecordType checks the leading type of an encoded record without
// decoding the rest
func hasRecordType(data []byte, want uint8) bool {
	if len(data) < 2 {
		return false
	}
	id, err := cbor.DecodeIdFromList(data)
	return err == nil && id == int(want)
}

func getOrNewBalance(
	txn *database.Txn,
	mint address.Address,
	holder address.Address,
) (*Balance, address.Address, error) {
	bal, balAddr, err := getBalance(txn, mint, holder)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			return nil, balAddr, err
		}
		bal = &Balance{
			Type:   recordTypeBalance,
			Mint:   mint,
			Holder: holder,
		}
	}
	return bal, balAddr, nil
}

func putMint(txn *database.Txn, addr address.Address, m *Mint) error {
	data, err := cbor.Encode(m)
	if err != nil {
		return fmt.Errorf("encode mint: %w", err)
	}
	return txn.SetAccount(addr[:], data)
}

func putBalance(txn *database.Txn, addr address.Address, b *Balance) error {
	data, err := cbor.Encode(b)
	if err != nil {
		return fmt.Errorf("encode balance: %w", err)
	}
	return txn.SetAccount(addr[:], data)
}
