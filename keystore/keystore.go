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
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/blinklabs-io/realms/address"
)

// Common errors returned by KeyStore operations.
var (
	ErrKeysNotLoaded    = errors.New("keys not loaded")
	ErrInsecureFileMode = errors.New("insecure file permissions")
	ErrKeyExists        = errors.New("key file already exists")
)

// KeyStoreConfig holds configuration for the KeyStore.
type KeyStoreConfig struct {
	// SigningKeyPath is the path to the ed25519 signing key file.
	SigningKeyPath string
	Logger         *slog.Logger
}

// KeyStore holds the signing key a caller uses to authorize governance
// operations. The key's public half is the caller's address.
type KeyStore struct {
	config KeyStoreConfig
	logger *slog.Logger

	mu      sync.RWMutex
	sKey    ed25519.PrivateKey
	address address.Address
}

// NewKeyStore creates a new KeyStore with the given configuration.
func NewKeyStore(config KeyStoreConfig) *KeyStore {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &KeyStore{
		config: config,
		logger: config.Logger.With("component", "keystore"),
	}
}

// LoadFromFiles loads the signing key from the configured path. The file
// must not be readable by group or other.
func (ks *KeyStore) LoadFromFiles() error {
	if ks.config.SigningKeyPath == "" {
		return errors.New("no signing key path configured")
	}
	key, err := loadKeyFromFile(ks.config.SigningKeyPath)
	if err != nil {
		return err
	}
	addr, err := address.FromPublicKey(key.VKey)
	if err != nil {
		return err
	}
	ks.mu.Lock()
	ks.sKey = key.SKey
	ks.address = addr
	ks.mu.Unlock()
	ks.logger.Debug(
		"loaded signing key",
		"path", ks.config.SigningKeyPath,
		"address", addr.String(),
	)
	return nil
}

// IsLoaded returns true once a signing key is loaded.
func (ks *KeyStore) IsLoaded() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.sKey != nil
}

// Address returns the address of the loaded key.
func (ks *KeyStore) Address() (address.Address, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.sKey == nil {
		return address.Zero, ErrKeysNotLoaded
	}
	return ks.address, nil
}

// Signer returns the loaded key as a crypto.Signer.
func (ks *KeyStore) Signer() (crypto.Signer, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.sKey == nil {
		return nil, ErrKeysNotLoaded
	}
	return ks.sKey, nil
}

// Sign signs message with the loaded key.
func (ks *KeyStore) Sign(message []byte) ([]byte, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if ks.sKey == nil {
		return nil, ErrKeysNotLoaded
	}
	return ed25519.Sign(ks.sKey, message), nil
}

// GenerateKeyPair creates a new signing key file and, when vkeyPath is
// set, a matching verification key file. Existing files are never
// overwritten. A nil random uses crypto/rand.
func GenerateKeyPair(
	skeyPath string,
	vkeyPath string,
	random io.Reader,
) (address.Address, error) {
	if random == nil {
		random = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(random)
	if err != nil {
		return address.Zero, fmt.Errorf("failed to generate key: %w", err)
	}
	addr, err := address.FromPublicKey(pub)
	if err != nil {
		return address.Zero, err
	}
	skey, err := encodeKeyEnvelope(SigningKeyType, "Governance Signing Key", priv.Seed())
	if err != nil {
		return address.Zero, err
	}
	if err := writeKeyFile(skeyPath, skey, 0o600); err != nil {
		return address.Zero, err
	}
	if vkeyPath != "" {
		vkey, err := encodeKeyEnvelope(VerificationKeyType, "Governance Verification Key", pub)
		if err != nil {
			return address.Zero, err
		}
		if err := writeKeyFile(vkeyPath, vkey, 0o644); err != nil {
			return address.Zero, err
		}
	}
	return addr, nil
}

// LoadVerificationKey returns the address held in a verification key
// file. A signing key file is accepted too and yields its public half.
func LoadVerificationKey(path string) (address.Address, error) {
	pub, err := loadVerificationKeyFromFile(path)
	if err != nil {
		return address.Zero, err
	}
	return address.FromPublicKey(pub)
}
