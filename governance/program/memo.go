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
	"unicode/utf8"
)

const MaxMemoLength = 566

var MemoProgramID = ID("memo")

// Memo records a UTF-8 note. Every account passed must have signed.
type Memo struct{}

func (m *Memo) Name() string {
	return "memo"
}

func (m *Memo) Execute(ctx *Context, data []byte, accounts []Account) error {
	if len(data) == 0 || len(data) > MaxMemoLength {
		return fmt.Errorf("%w: memo length %d", ErrInvalidData, len(data))
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: memo is not valid UTF-8", ErrInvalidData)
	}
	signers := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		if !acct.IsSigner {
			return fmt.Errorf("%w: %s", ErrMissingSignature, acct.Address)
		}
		signers = append(signers, acct.Address.String())
	}
	ctx.Logger.Info(
		"memo",
		"component", "program",
		"memo", string(data),
		"signers", signers,
	)
	return nil
}
