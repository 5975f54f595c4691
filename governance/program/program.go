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

// Package program dispatches the instruction attached to a passed proposal
// to a registered in-process program
package program

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/database"
)

var (
	ErrUnknownProgram   = errors.New("unknown program")
	ErrProgramExists    = errors.New("program already registered")
	ErrMissingAccount   = errors.New("missing account")
	ErrMissingSignature = errors.New("missing required signature")
	ErrReadOnlyAccount  = errors.New("account is not writable")
	ErrInvalidData      = errors.New("invalid instruction data")
)

// Account is one account passed to a program
type Account struct {
	Address    address.Address
	IsSigner   bool
	IsWritable bool
}

// Context is handed to a program for one execution. Writes go through Txn
// and commit together with the proposal state change.
type Context struct {
	Txn    *database.Txn
	Now    time.Time
	Logger *slog.Logger
}

// Program executes instructions addressed to its program ID
type Program interface {
	Name() string
	Execute(ctx *Context, data []byte, accounts []Account) error
}

// ID returns a stable program ID for a built-in program name
func ID(name string) address.Address {
	return address.Address(sha256.Sum256([]byte("realms:program:" + name)))
}

type Registry struct {
	programs map[address.Address]Program
	mu       sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		programs: make(map[address.Address]Program),
	}
}

// DefaultRegistry returns a registry with the built-in programs
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(MemoProgramID, &Memo{})
	_ = r.Register(BankTransferProgramID, &BankTransfer{})
	return r
}

func (r *Registry) Register(id address.Address, p Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.programs[id]; ok {
		return fmt.Errorf("%w: %s", ErrProgramExists, id)
	}
	r.programs[id] = p
	return nil
}

func (r *Registry) Lookup(id address.Address) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[id]
	return p, ok
}

// Programs returns the registered program IDs in a stable order
func (r *Registry) Programs() []address.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]address.Address, 0, len(r.programs))
	for id := range r.programs {
		ret = append(ret, id)
	}
	slices.SortFunc(ret, func(a, b address.Address) int {
		return slices.Compare(a[:], b[:])
	})
	return ret
}

// Execute runs one instruction. A panicking program is reported as an error.
func (r *Registry) Execute(
	ctx *Context,
	id address.Address,
	data []byte,
	accounts []Account,
) (err error) {
	p, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, id)
	}
	if ctx.Logger == nil {
		ctx.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("program %s panic: %v", p.Name(), rec)
		}
	}()
	return p.Execute(ctx, data, accounts)
}

func requireAccounts(accounts []Account, count int) error {
	if len(accounts) < count {
		return fmt.Errorf(
			"%w: expected %d accounts, got %d",
			ErrMissingAccount,
			count,
			len(accounts),
		)
	}
	return nil
}
