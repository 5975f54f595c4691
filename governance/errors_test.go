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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	sentinels := map[ErrorKind]error{
		KindUnauthorized:        ErrUnauthorized,
		KindInvalidState:        ErrInvalidState,
		KindInsufficientWeight:  ErrInsufficientWeight,
		KindAlreadyExists:       ErrAlreadyExists,
		KindAlreadyVoted:        ErrAlreadyVoted,
		KindAlreadySignedOff:    ErrAlreadySignedOff,
		KindAlreadyRelinquished: ErrAlreadyRelinquished,
		KindAlreadyExecuted:     ErrAlreadyExecuted,
		KindNotFound:            ErrNotFound,
		KindVotingNotEnded:      ErrVotingNotEnded,
		KindAccountMismatch:     ErrAccountMismatch,
		KindInvalidConfig:       ErrInvalidConfig,
		KindNoWeight:            ErrNoWeight,
		KindOverflow:            ErrOverflow,
	}
	for kind, sentinel := range sentinels {
		err := fmt.Errorf("outer: %w", newError(kind, "op", "detail %d", 1))
		require.ErrorIs(t, err, sentinel, kind.String())
		assert.Equal(t, kind, KindOf(err))
		for other, otherSentinel := range sentinels {
			if other != kind {
				assert.NotErrorIs(t, err, otherSentinel)
			}
		}
	}
	assert.Zero(t, KindOf(errors.New("plain")))
	assert.Zero(t, KindOf(nil))
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("disk full")
	err := wrapError(KindInsufficientWeight, "createProposal", cause, "need %d", 5)
	assert.Equal(t, "createProposal: InsufficientWeight: need 5: disk full", err.Error())
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "NotFound", ErrNotFound.Error())
	assert.Equal(t, "ErrorKind(99)", ErrorKind(99).String())
}
