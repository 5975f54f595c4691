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
	"crypto"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/blinklabs-io/realms/address"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	// TokenAudience must appear in the aud claim of every request token
	TokenAudience     = "realms"
	DefaultRequestTTL = 5 * time.Minute
)

var (
	ErrTokenMissing      = errors.New("request token is required")
	ErrTokenInvalid      = errors.New("request token is invalid")
	ErrTokenExpired      = errors.New("request token is expired")
	ErrTokenReplayed     = errors.New("request token was already used")
	ErrOperationMismatch = errors.New("request token is for another operation")
)

// OpClaims are the claims of a signed operation request. The issuer is the
// caller's address and the subject names the operation.
type OpClaims struct {
	jwt.RegisteredClaims
	Params json.RawMessage `json:"params,omitempty"`
}

// NewRequestToken signs an operation request with an ed25519 key. The
// token is valid from now until now+ttl and carries a fresh jti.
func NewRequestToken(
	signer crypto.Signer,
	op string,
	params any,
	ttl time.Duration,
	now time.Time,
) (string, error) {
	pub, ok := signer.Public().(ed25519.PublicKey)
	if !ok {
		return "", errors.New("request tokens need an ed25519 key")
	}
	issuer, err := address.FromPublicKey(pub)
	if err != nil {
		return "", err
	}
	var raw json.RawMessage
	switch p := params.(type) {
	case nil:
	case json.RawMessage:
		raw = p
	default:
		if raw, err = json.Marshal(p); err != nil {
			return "", fmt.Errorf("failed to encode params: %w", err)
		}
	}
	claims := OpClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer.String(),
			Subject:   op,
			Audience:  jwt.ClaimStrings{TokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Params: raw,
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(signer)
}

// requestVerifier checks request tokens and remembers every accepted jti
// until its token expires
type requestVerifier struct {
	ttl  time.Duration
	now  func() time.Time
	seen *cache.Cache
}

func newRequestVerifier(ttl time.Duration, now func() time.Time) *requestVerifier {
	if ttl <= 0 {
		ttl = DefaultRequestTTL
	}
	if now == nil {
		now = time.Now
	}
	return &requestVerifier{
		ttl: ttl,
		now: now,
		// No janitor goroutine; the server prunes on its own ticker
		seen: cache.New(ttl, 0),
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrTokenMissing
	}
	return strings.TrimSpace(token), nil
}

// verify checks the token for op and returns the caller and parameters
func (v *requestVerifier) verify(token string, op string) (address.Address, *OpClaims, error) {
	var claims OpClaims
	var caller address.Address
	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (any, error) {
			var err error
			caller, err = address.Parse(claims.Issuer)
			if err != nil {
				return nil, fmt.Errorf("issuer: %w", err)
			}
			if !caller.IsOnCurve() {
				return nil, errors.New("issuer is not a public key")
			}
			return caller.PublicKey(), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return address.Zero, nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if claims.Subject != op {
		return address.Zero, nil, fmt.Errorf(
			"%w: token is for %q",
			ErrOperationMismatch,
			claims.Subject,
		)
	}
	if !slices.Contains(claims.Audience, TokenAudience) {
		return address.Zero, nil, fmt.Errorf("%w: audience mismatch", ErrTokenInvalid)
	}
	if claims.ID == "" {
		return address.Zero, nil, fmt.Errorf("%w: jti is required", ErrTokenInvalid)
	}
	if claims.ExpiresAt == nil {
		return address.Zero, nil, fmt.Errorf("%w: exp is required", ErrTokenInvalid)
	}
	now := v.now()
	exp := claims.ExpiresAt.Time
	if !exp.After(now) {
		return address.Zero, nil, ErrTokenExpired
	}
	if exp.Sub(now) > v.ttl {
		return address.Zero, nil, fmt.Errorf(
			"%w: lifetime exceeds %s",
			ErrTokenInvalid,
			v.ttl,
		)
	}
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return address.Zero, nil, fmt.Errorf("%w: not active yet", ErrTokenInvalid)
	}
	// Add fails while an unexpired entry exists
	if err := v.seen.Add(claims.Issuer+"/"+claims.ID, struct{}{}, exp.Sub(now)); err != nil {
		return address.Zero, nil, ErrTokenReplayed
	}
	return caller, &claims, nil
}

func (v *requestVerifier) prune() {
	v.seen.DeleteExpired()
}
