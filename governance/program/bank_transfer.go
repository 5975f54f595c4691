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

package program

import (
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
)

var BankTransferProgramID = ID("bank-transfer")

// TransferArgs is the instruction data of a bank transfer
type TransferArgs struct {
	cbor.StructAsArray
	Mint   address.Address
	Amount uint64
}

// EncodeTransfer builds bank transfer instruction data
func EncodeTransfer(mint address.Address, amount uint64) ([]byte, error) {
	return cbor.Encode(&TransferArgs{Mint: mint, Amount: amount})
}

// BankTransfer moves tokens from accounts[0] to accounts[1]. The source must
// have signed, which lets a governance pay out of its own balance.
type BankTransfer struct{}

func (b *BankTransfer) Name() string {
	return "bank-transfer"
}

func (b *BankTransfer) Execute(ctx *Context, data []byte, accounts []Account) error {
	var args TransferArgs
	if _, err := cbor.Decode(data, &args); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	if err := requireAccounts(accounts, 2); err != nil {
		return err
	}
	src, dst := accounts[0], accounts[1]
	if !src.IsSigner {
		return fmt.Errorf("%w: %s", ErrMissingSignature, src.Address)
	}
	if !src.IsWritable {
		return fmt.Errorf("%w: %s", ErrReadOnlyAccount, src.Address)
	}
	if !dst.IsWritable {
		return fmt.Errorf("%w: %s", ErrReadOnlyAccount, dst.Address)
	}
	if err := bank.Transfer(
		ctx.Txn,
		args.Mint,
		src.Address,
		dst.Address,
		args.Amount,
	); err != nil {
		return err
	}
	ctx.Logger.Info(
		"bank transfer executed",
		"component", "program",
		"mint", args.Mint.String(),
		"from", src.Address.String(),
		"to", dst.Address.String(),
		"amount", args.Amount,
	)
	return nil
}
