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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"math/big"

	sagecrypto "github.com/sage-x-project/lockaudit/crypto"
)

// ecdsaP256KeyPair implements the KeyPair interface for ECDSA P-256 keys.
// Signatures are fixed-size 64-byte r||s (not ASN.1 DER), matching the
// encoding devices send over the wire in pairing and unlock envelopes.
type ecdsaP256KeyPair struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	id         string
}

// GenerateECDSAP256KeyPair generates a new ECDSA P-256 key pair.
func GenerateECDSAP256KeyPair() (sagecrypto.KeyPair, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewECDSAP256KeyPair(privateKey, "")
}

// NewECDSAP256KeyPair wraps an existing ECDSA P-256 private key.
func NewECDSAP256KeyPair(privateKey *ecdsa.PrivateKey, id string) (sagecrypto.KeyPair, error) {
	publicKey := &privateKey.PublicKey
	if id == "" {
		der, err := x509.MarshalPKIXPublicKey(publicKey)
		if err != nil {
			return nil, err
		}
		hash := sha256.Sum256(der)
		id = hex.EncodeToString(hash[:8])
	}
	return &ecdsaP256KeyPair{privateKey: privateKey, publicKey: publicKey, id: id}, nil
}

// ImportECDSAP256PublicKey parses a SubjectPublicKeyInfo DER blob (the form
// devices present during pairing) into a verify-only key pair.
func ImportECDSAP256PublicKey(spkiDER []byte) (sagecrypto.KeyPair, error) {
	pub, err := x509.ParsePKIXPublicKey(spkiDER)
	if err != nil {
		return nil, err
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok || ecPub.Curve != elliptic.P256() {
		return nil, sagecrypto.ErrInvalidKeyType
	}
	hash := sha256.Sum256(spkiDER)
	return &publicKeyOnlyECDSA{publicKey: ecPub, id: hex.EncodeToString(hash[:8])}, nil
}

// MarshalECDSAP256PublicKey encodes a P-256 public key as SubjectPublicKeyInfo DER.
func MarshalECDSAP256PublicKey(pub *ecdsa.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(pub)
}

func (kp *ecdsaP256KeyPair) PublicKey() crypto.PublicKey   { return kp.publicKey }
func (kp *ecdsaP256KeyPair) PrivateKey() crypto.PrivateKey { return kp.privateKey }
func (kp *ecdsaP256KeyPair) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeECDSAP256 }
func (kp *ecdsaP256KeyPair) ID() string                    { return kp.id }

func (kp *ecdsaP256KeyPair) Sign(message []byte) ([]byte, error) {
	hash := sha256.Sum256(message)
	r, s, err := ecdsa.Sign(rand.Reader, kp.privateKey, hash[:])
	if err != nil {
		return nil, err
	}
	return encodeRS(r, s), nil
}

func (kp *ecdsaP256KeyPair) Verify(message, signature []byte) error {
	return verifyECDSAP256(kp.publicKey, message, signature)
}

// publicKeyOnlyECDSA wraps a verify-only P-256 public key, used for devices
// whose private key never leaves the hardware-backed keystore.
type publicKeyOnlyECDSA struct {
	publicKey *ecdsa.PublicKey
	id        string
}

func (pk *publicKeyOnlyECDSA) PublicKey() crypto.PublicKey   { return pk.publicKey }
func (pk *publicKeyOnlyECDSA) PrivateKey() crypto.PrivateKey { return nil }
func (pk *publicKeyOnlyECDSA) Type() sagecrypto.KeyType      { return sagecrypto.KeyTypeECDSAP256 }
func (pk *publicKeyOnlyECDSA) ID() string                    { return pk.id }

func (pk *publicKeyOnlyECDSA) Sign(message []byte) ([]byte, error) {
	return nil, sagecrypto.ErrInvalidKeyType
}

func (pk *publicKeyOnlyECDSA) Verify(message, signature []byte) error {
	return verifyECDSAP256(pk.publicKey, message, signature)
}

func verifyECDSAP256(pub *ecdsa.PublicKey, message, signature []byte) error {
	r, s, err := decodeRS(signature)
	if err != nil {
		return sagecrypto.ErrInvalidSignature
	}
	hash := sha256.Sum256(message)
	if !ecdsa.Verify(pub, hash[:], r, s) {
		return sagecrypto.ErrInvalidSignature
	}
	return nil
}

// encodeRS produces the fixed-width 32||32 byte encoding used on the wire.
func encodeRS(r, s *big.Int) []byte {
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out
}

func decodeRS(sig []byte) (*big.Int, *big.Int, error) {
	if len(sig) == 64 {
		r := new(big.Int).SetBytes(sig[:32])
		s := new(big.Int).SetBytes(sig[32:])
		return r, s, nil
	}
	// Fall back to ASN.1 DER for clients that send a standard signature.
	var parsed struct {
		R, S *big.Int
	}
	if _, err := asn1.Unmarshal(sig, &parsed); err != nil {
		return nil, nil, err
	}
	return parsed.R, parsed.S, nil
}
