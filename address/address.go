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

// Package address implements 32-byte account addresses and the
// deterministic program-derived address scheme used to locate every
// governance record.
package address

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/mr-tron/base58"
)

const (
	Size          = 32
	MaxSeeds      = 16
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrSeedTooLong    = errors.New("seed exceeds maximum length")
	ErrTooManySeeds   = errors.New("too many seeds")
	ErrOnCurve        = errors.New("derived address is on the ed25519 curve")
	ErrNoViableBump   = errors.New("unable to find a viable program address bump seed")
)

// Address identifies an account in the store
type Address [Size]byte

// Zero is the empty address
var Zero Address

// New copies a 32-byte slice into an Address
func New(b []byte) (Address, error) {
	var a Address
	if len(b) != Size {
		return a, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrInvalidAddress,
			Size,
			len(b),
		)
	}
	copy(a[:], b)
	return a, nil
}

// FromPublicKey returns the address owned by an ed25519 key
func FromPublicKey(pub ed25519.PublicKey) (Address, error) {
	return New(pub)
}

// Parse decodes the base58 text form of an address
func Parse(s string) (Address, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return New(b)
}

// MustParse is like Parse but panics on error. It is meant for constants.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return base58.Encode(a[:])
}

func (a Address) Bytes() []byte {
	ret := make([]byte, Size)
	copy(ret, a[:])
	return ret
}

func (a Address) IsZero() bool {
	return a == Zero
}

// PublicKey returns the address as an ed25519 verification key
func (a Address) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(a.Bytes())
}

// IsOnCurve reports whether the address decodes to an ed25519 point
func (a Address) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	tmp, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = tmp
	return nil
}

func (a Address) MarshalCBOR() ([]byte, error) {
	return cbor.Encode(a[:])
}

func (a *Address) UnmarshalCBOR(data []byte) error {
	var tmp []byte
	if _, err := cbor.Decode(data, &tmp); err != nil {
		return err
	}
	addr, err := New(tmp)
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// U64Seed encodes a uint64 as a little-endian seed
func U64Seed(v uint64) []byte {
	ret := make([]byte, 8)
	binary.LittleEndian.PutUint64(ret, v)
	return ret
}

// CreateProgramAddress hashes the seeds with the program ID. It fails with
// ErrOnCurve when the result could have a private key.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Zero, ErrTooManySeeds
	}
	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Zero, ErrSeedTooLong
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	var ret Address
	copy(ret[:], h.Sum(nil))
	if ret.IsOnCurve() {
		return Zero, ErrOnCurve
	}
	return ret, nil
}

// FindProgramAddress searches bump seeds from 255 downward and returns the
// first off-curve address along with its bump
func FindProgramAddress(
	seeds [][]byte,
	programID Address,
) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Zero, 0, ErrTooManySeeds
	}
	bumpSeeds := make([][]byte, len(seeds)+1)
	copy(bumpSeeds, seeds)
	for bump := 255; bump >= 0; bump-- {
		bumpSeeds[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(bumpSeeds, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}
