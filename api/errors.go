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
	"net/http"

	"github.com/blinklabs-io/realms/address"
	"github.com/blinklabs-io/realms/bank"
	"github.com/blinklabs-io/realms/governance"
)

// StatusTooEarly is returned while a deadline has not passed
const StatusTooEarly = http.StatusTooEarly

// errBadRequest marks malformed input
var errBadRequest = errors.New("bad request")

// statusForError maps an operation error to its HTTP status and kind name
func statusForError(err error) (int, string) {
	if kind := governance.KindOf(err); kind != 0 {
		return statusForKind(kind), kind.String()
	}
	switch {
	case errors.Is(err, ErrTokenMissing),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenReplayed),
		errors.Is(err, ErrOperationMismatch):
		return http.StatusUnauthorized, ""
	case errors.Is(err, errBadRequest),
		errors.Is(err, address.ErrInvalidAddress),
		errors.Is(err, ErrInvalidPaginationParameters):
		return http.StatusBadRequest, ""
	case errors.Is(err, bank.ErrUnauthorized):
		return http.StatusForbidden, ""
	case errors.Is(err, bank.ErrMintNotFound),
		errors.Is(err, bank.ErrAccountNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, bank.ErrMintExists),
		errors.Is(err, bank.ErrAccountExists):
		return http.StatusConflict, ""
	case errors.Is(err, bank.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, ""
	case errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrOverflow):
		return http.StatusBadRequest, ""
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ""
	}
	return http.StatusInternalServerError, ""
}

func statusForKind(kind governance.ErrorKind) int {
	switch kind {
	case governance.KindUnauthorized:
		return http.StatusForbidden
	case governance.KindNotFound:
		return http.StatusNotFound
	case governance.KindInvalidState,
		governance.KindAlreadyExists,
		governance.KindAlreadyVoted,
		governance.KindAlreadySignedOff,
		governance.KindAlreadyRelinquished,
		governance.KindAlreadyExecuted:
		return http.StatusConflict
	case governance.KindVotingNotEnded:
		return StatusTooEarly
	case governance.KindInsufficientWeight,
		governance.KindNoWeight,
		governance.KindOverflow:
		return http.StatusUnprocessableEntity
	case governance.KindInvalidConfig,
		governance.KindAccountMismatch:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
