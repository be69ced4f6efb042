package crypto

import (
	"crypto"
	"errors"
)

// KeyType represents the type of cryptographic key.
type KeyType string

const (
	KeyTypeEd25519  KeyType = "Ed25519"
	KeyTypeECDSAP256 KeyType = "ECDSA-P256"
)

// KeyPair represents a cryptographic key pair.
type KeyPair interface {
	// PublicKey returns the public key.
	PublicKey() crypto.PublicKey

	// PrivateKey returns the private key.
	PrivateKey() crypto.PrivateKey

	// Type returns the key type.
	Type() KeyType

	// Sign signs the given message.
	Sign(message []byte) ([]byte, error)

	// Verify verifies the signature.
	Verify(message, signature []byte) error

	// ID returns a unique identifier for this key pair.
	ID() string
}

// KeyStorage provides storage for keys.
type KeyStorage interface {
	// Store stores a key pair with the given ID.
	Store(id string, keyPair KeyPair) error

	// Load loads a key pair by ID.
	Load(id string) (KeyPair, error)

	// Delete removes a key pair by ID.
	Delete(id string) error

	// List returns all stored key IDs.
	List() ([]string, error)

	// Exists checks if a key exists.
	Exists(id string) bool
}

// Common errors.
var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrInvalidKeyType   = errors.New("invalid key type")
	ErrKeyExists        = errors.New("key already exists")
	ErrInvalidSignature = errors.New("invalid signature")
)
