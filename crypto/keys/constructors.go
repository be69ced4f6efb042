// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	sagecrypto "github.com/sage-x-project/lockaudit/crypto"
)

// NewEd25519KeyPair wraps an existing Ed25519 private key.
func NewEd25519KeyPair(privateKey ed25519.PrivateKey, id string) (sagecrypto.KeyPair, error) {
	publicKey := privateKey.Public().(ed25519.PublicKey)
	if id == "" {
		hash := sha256.Sum256(publicKey)
		id = hex.EncodeToString(hash[:8])
	}
	return &ed25519KeyPair{privateKey: privateKey, publicKey: publicKey, id: id}, nil
}

// ImportEd25519PublicKey wraps a raw 32-byte Ed25519 public key for
// verification only, the form of the audit public key a device supplies
// when it pairs with the lock server.
func ImportEd25519PublicKey(raw []byte) (sagecrypto.KeyPair, error) {
	if len(raw) != ed25519.PublicKeySize {
		return nil, sagecrypto.ErrInvalidKeyType
	}
	hash := sha256.Sum256(raw)
	return &publicKeyOnlyEd25519{publicKey: ed25519.PublicKey(raw), id: hex.EncodeToString(hash[:8])}, nil
}

// publicKeyOnlyEd25519 wraps an Ed25519 public key for verification only.
type publicKeyOnlyEd25519 struct {
	publicKey ed25519.PublicKey
	id        string
}

func (pk *publicKeyOnlyEd25519) PublicKey() crypto.PublicKey   { return pk.publicKey }
func (pk *publicKeyOnlyEd25519) PrivateKey() crypto.PrivateKey { return nil }
func (pk *publicKeyOnlyEd25519) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeEd25519 }
func (pk *publicKeyOnlyEd25519) ID() string                    { return pk.id }

func (pk *publicKeyOnlyEd25519) Sign(message []byte) ([]byte, error) {
	return nil, errors.New("cannot sign with public key only")
}

func (pk *publicKeyOnlyEd25519) Verify(message, signature []byte) error {
	if !ed25519.Verify(pk.publicKey, message, signature) {
		return sagecrypto.ErrInvalidSignature
	}
	return nil
}
