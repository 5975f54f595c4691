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
)

// ErrorKind classifies engine failures
type ErrorKind uint8

const (
	KindUnauthorized ErrorKind = iota + 1
	KindInvalidState
	KindInsufficientWeight
	KindAlreadyExists
	KindAlreadyVoted
	KindAlreadySignedOff
	KindAlreadyRelinquished
	KindAlreadyExecuted
	KindNotFound
	KindVotingNotEnded
	KindAccountMismatch
	KindInvalidConfig
	KindNoWeight
	KindOverflow
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "Unauthorized"
	case KindInvalidState:
		return "InvalidState"
	case KindInsufficientWeight:
		return "InsufficientWeight"
	case KindAlreadyExists:
		return "AlreadyExists"
	case KindAlreadyVoted:
		return "AlreadyVoted"
	case KindAlreadySignedOff:
		return "AlreadySignedOff"
	case KindAlreadyRelinquished:
		return "AlreadyRelinquished"
	case KindAlreadyExecuted:
		return "AlreadyExecuted"
	case KindNotFound:
		return "NotFound"
	case KindVotingNotEnded:
		return "VotingNotEnded"
	case KindAccountMismatch:
		return "AccountMismatch"
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindNoWeight:
		return "NoWeight"
	case KindOverflow:
		return "Overflow"
	}
	return fmt.Sprintf("ErrorKind(%d)", uint8(k))
}

// Error is returned by every engine operation that is rejected. Compare
// against the Err* sentinels with errors.Is.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	ret := e.Kind.String()
	if e.Op != "" {
		ret = e.Op + ": " + ret
	}
	if e.Msg != "" {
		ret += ": " + e.Msg
	}
	if e.Err != nil {
		ret += ": " + e.Err.Error()
	}
	return ret
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrInsufficientWeight  = &Error{Kind: KindInsufficientWeight}
	ErrAlreadyExists       = &Error{Kind: KindAlreadyExists}
	ErrAlreadyVoted        = &Error{Kind: KindAlreadyVoted}
	ErrAlreadySignedOff    = &Error{Kind: KindAlreadySignedOff}
	ErrAlreadyRelinquished = &Error{Kind: KindAlreadyRelinquished}
	ErrAlreadyExecuted     = &Error{Kind: KindAlreadyExecuted}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrVotingNotEnded      = &Error{Kind: KindVotingNotEnded}
	ErrAccountMismatch     = &Error{Kind: KindAccountMismatch}
	ErrInvalidConfig       = &Error{Kind: KindInvalidConfig}
	ErrNoWeight            = &Error{Kind: KindNoWeight}
	ErrOverflow            = &Error{Kind: KindOverflow}
)

// KindOf returns the kind of an engine error, or 0 for other errors
func KindOf(err error) ErrorKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return 0
}

func newError(kind ErrorKind, op string, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
	}
}

func wrapError(kind ErrorKind, op string, err error, format string, args ...any) *Error {
	ret := newError(kind, op, format, args...)
	ret.Err = err
	return ret
}
