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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
	"github.com/blinklabs-io/realms/database"
	"github.com/blinklabs-io/realms/governance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{
			"engine error",
			&governance.Error{Kind: governance.KindAlreadyVoted, Op: "castVote"},
			http.StatusConflict,
			"AlreadyVoted",
		},
		{
			"wrapped engine error",
			fmt.Errorf("request: %w", &governance.Error{Kind: governance.KindNotFound}),
			http.StatusNotFound,
			"NotFound",
		},
		{
			"bad issuer",
			fmt.Errorf("%w: %w", ErrTokenInvalid, address.ErrInvalidAddress),
			http.StatusUnauthorized,
			"",
		},
		{"bad address", fmt.Errorf("realm: %w", address.ErrInvalidAddress), http.StatusBadRequest, ""},
		{"bad request", errBadRequest, http.StatusBadRequest, ""},
		{"pagination", ErrInvalidPaginationParameters, http.StatusBadRequest, ""},
		{"mint authority", bank.ErrUnauthorized, http.StatusForbidden, ""},
		{"missing mint", bank.ErrMintNotFound, http.StatusNotFound, ""},
		{"mint exists", bank.ErrMintExists, http.StatusConflict, ""},
		{"funds", bank.ErrInsufficientFunds, http.StatusUnprocessableEntity, ""},
		{"amount", bank.ErrInvalidAmount, http.StatusBadRequest, ""},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, ""},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, kind := statusForError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, kind)
		})
	}
}

func TestStatusForKind(t *testing.T) {
	tests := map[governance.ErrorKind]int{
		governance.KindUnauthorized:        http.StatusForbidden,
		governance.KindNotFound:            http.StatusNotFound,
		governance.KindInvalidState:        http.StatusConflict,
		governance.KindAlreadyExists:       http.StatusConflict,
		governance.KindAlreadyVoted:        http.StatusConflict,
		governance.KindAlreadySignedOff:    http.StatusConflict,
		governance.KindAlreadyRelinquished: http.StatusConflict,
		governance.KindAlreadyExecuted:     http.StatusConflict,
		governance.KindVotingNotEnded:      http.StatusTooEarly,
		governance.KindInsufficientWeight:  http.StatusUnprocessableEntity,
		governance.KindNoWeight:            http.StatusUnprocessableEntity,
		governance.KindOverflow:            http.StatusUnprocessableEntity,
		governance.KindInvalidConfig:       http.StatusBadRequest,
		governance.KindAccountMismatch:     http.StatusBadRequest,
		governance.ErrorKind(200):          http.StatusInternalServerError,
	}
	for kind, status := range tests {
		assert.Equal(t, status, statusForKind(kind), kind.String())
	}
}

func TestInternalErrorsAreWithheld(t *testing.T) {
	ts := newTestServer(t, APIConfig{})
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, "/", nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	status := ts.api.writeError(rec, req, errors.New("secret detail"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
	assert.Contains(t, rec.Body.String(), "internal error")
}

func TestLedgerAdapter(t *testing.T) {
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck
	ledger := NewLedgerAdapter(db)
	authority := newUser(t, 1).addr
	holder := newUser(t, 2).addr
	mint := newUser(t, 3).addr
	ctx := t.Context()

	require.NoError(t, ledger.CreateMint(ctx, mint, authority, 9))
	require.ErrorIs(t, ledger.CreateMint(ctx, mint, authority, 9), bank.ErrMintExists)
	require.NoError(t, ledger.MintTo(ctx, mint, authority, holder, 500))
	require.ErrorIs(t, ledger.MintTo(ctx, mint, holder, holder, 1), bank.ErrUnauthorized)
	balance, err := ledger.Balance(ctx, mint, holder)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), balance)

	info, err := ledger.Mint(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, MintInfo{Address: mint, Authority: authority, Decimals: 9, Supply: 500}, info)
	_, err = ledger.Mint(ctx, holder)
	require.ErrorIs(t, err, bank.ErrMintNotFound)

	require.NoError(t, ledger.Airdrop(ctx, holder, 1_000))
	lamports, err := ledger.Balance(ctx, bank.NativeMint, holder)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), lamports)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	require.ErrorIs(t, ledger.Airdrop(canceled, holder, 1), context.Canceled)
	_, err = ledger.Balance(canceled, mint, holder)
	require.ErrorIs(t, err, context.Canceled)

	assert.Panics(t, func() { NewLedgerAdapter(nil) })
}
