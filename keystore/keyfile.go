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

package keystore

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blinklabs-io/gouroboros/cbor"
)

const (
	SigningKeyType      = "GovernanceSigningKey_ed25519"
	VerificationKeyType = "GovernanceVerificationKey_ed25519"
)

// keyFileEnvelope is the JSON text envelope shared by signing and
// verification key files.
type keyFileEnvelope struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	CborHex     string `json:"cborHex"`
}

// loadedKey holds the parsed contents of a key file.
type loadedKey struct {
	Type        string
	Description string
	VKey        ed25519.PublicKey
	SKey        ed25519.PrivateKey
}

// loadKeyFromFile loads a signing key from a file path.
// Returns ErrInsecureFileMode if the file has group or other access.
//
// Permissions are checked on the open handle to avoid a race between the
// check and the read.
func loadKeyFromFile(path string) (*loadedKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key file %q: %w", path, err)
	}
	defer f.Close()

	if err := checkOpenFilePermissions(f); err != nil {
		return nil, err
	}

	// Valid key files are well under 1 MiB
	const maxKeyFileSize = 1 << 20
	data, err := io.ReadAll(io.LimitReader(f, maxKeyFileSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	key, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	if key.SKey == nil {
		return nil, fmt.Errorf(
			"expected %s in %q, got %s",
			SigningKeyType,
			path,
			key.Type,
		)
	}
	return key, nil
}

// loadVerificationKeyFromFile loads a public key. Verification keys are
// public data, so file permissions are not checked.
func loadVerificationKeyFromFile(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %q: %w", path, err)
	}
	key, err := parseKeyEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key file %q: %w", path, err)
	}
	return key.VKey, nil
}

func parseKeyEnvelope(fileBytes []byte) (*loadedKey, error) {
	var env keyFileEnvelope
	if err := json.Unmarshal(fileBytes, &env); err != nil {
		return nil, fmt.Errorf("could not parse key file envelope: %w", err)
	}

	cborData, err := hex.DecodeString(env.CborHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode key from hex: %w", err)
	}
	var keyBytes []byte
	if _, err := cbor.Decode(cborData, &keyBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key CBOR: %w", err)
	}

	lk := &loadedKey{
		Type:        env.Type,
		Description: env.Description,
	}
	switch env.Type {
	case SigningKeyType:
		sk, err := decodeSigningKey(keyBytes)
		if err != nil {
			return nil, err
		}
		lk.SKey = sk
		lk.VKey = sk.Public().(ed25519.PublicKey)
		return lk, nil
	case VerificationKeyType:
		if len(keyBytes) != ed25519.PublicKeySize {
			return nil, fmt.Errorf(
				"invalid verification key bytes: expected %d, got %d",
				ed25519.PublicKeySize,
				len(keyBytes),
			)
		}
		lk.VKey = ed25519.PublicKey(keyBytes)
		return lk, nil
	default:
		return nil, fmt.Errorf("unknown key type: %s", env.Type)
	}
}

// decodeSigningKey accepts a bare seed or seed || public key. The public
// half is always derived from the seed.
func decodeSigningKey(keyBytes []byte) (ed25519.PrivateKey, error) {
	switch len(keyBytes) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(keyBytes), nil
	case ed25519.PrivateKeySize:
		sk := ed25519.NewKeyFromSeed(keyBytes[:ed25519.SeedSize])
		if !sk.Public().(ed25519.PublicKey).Equal(
			ed25519.PublicKey(keyBytes[ed25519.SeedSize:]),
		) {
			return nil, errors.New("signing key public half does not match seed")
		}
		return sk, nil
	default:
		return nil, fmt.Errorf(
			"invalid signing key bytes: expected %d or %d, got %d",
			ed25519.SeedSize,
			ed25519.PrivateKeySize,
			len(keyBytes),
		)
	}
}

func encodeKeyEnvelope(keyType, description string, keyBytes []byte) ([]byte, error) {
	cborData, err := cbor.Encode(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key CBOR: %w", err)
	}
	return json.MarshalIndent(
		keyFileEnvelope{
			Type:        keyType,
			Description: description,
			CborHex:     hex.EncodeToString(cborData),
		},
		"",
		"    ",
	)
}

// writeKeyFile creates path exclusively with owner-only permissions.
func writeKeyFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrKeyExists, path)
		}
		return fmt.Errorf("failed to create key file %q: %w", path, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write key file %q: %w", path, err)
	}
	return f.Close()
}
