// Package envelope implements the AEAD-sealed request envelope that carries
// every client request between the mobile client and the lock/audit
// servers. It is deliberately stateless: unlike the session-oriented AEAD
// wrapper it is descended from, there is no handshake and no key schedule —
// callers supply the 32-byte symmetric key pinned to a paired device.
package envelope

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/sage-x-project/lockaudit/internal/metrics"
)

// KeySize is the required length, in bytes, of the symmetric key used to
// seal and open envelopes.
const KeySize = 32

// Envelope is the AEAD-sealed payload that travels between client and
// server. Field names are deliberately short: this struct's canonical JSON
// serialization is the exact byte string both the client and audit
// signatures cover, so every byte counts against the signed payload.
type Envelope struct {
	EncPayload []byte `json:"p"`
	EncNonce   []byte `json:"n"`
}

// SealRaw encrypts payload under key with a fresh random 24-byte nonce.
func SealRaw(payload, key []byte) (*Envelope, error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("seal", "xchacha20poly1305").Observe(time.Since(start).Seconds())
	}()
	if len(key) != KeySize {
		metrics.CryptoErrors.WithLabelValues("seal").Inc()
		return nil, fmt.Errorf("envelope: key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("seal").Inc()
		return nil, fmt.Errorf("envelope: init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		metrics.CryptoErrors.WithLabelValues("seal").Inc()
		return nil, fmt.Errorf("envelope: read nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, payload, nil)
	metrics.CryptoOperations.WithLabelValues("seal", "xchacha20poly1305").Inc()
	return &Envelope{EncPayload: ciphertext, EncNonce: nonce}, nil
}

// Seal canonically JSON-encodes v and seals the resulting bytes.
func Seal(v interface{}, key []byte) (*Envelope, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal payload: %w", err)
	}
	return SealRaw(payload, key)
}

// OpenRaw decrypts the envelope under key, returning the plaintext bytes.
func OpenRaw(env *Envelope, key []byte) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.CryptoOperationDuration.WithLabelValues("open", "xchacha20poly1305").Observe(time.Since(start).Seconds())
	}()
	if len(key) != KeySize {
		metrics.CryptoErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("envelope: key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("envelope: init aead: %w", err)
	}
	if len(env.EncNonce) != aead.NonceSize() {
		metrics.CryptoErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("envelope: bad nonce length %d", len(env.EncNonce))
	}
	plaintext, err := aead.Open(nil, env.EncNonce, env.EncPayload, nil)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("open").Inc()
		return nil, fmt.Errorf("envelope: aead open: %w", err)
	}
	metrics.CryptoOperations.WithLabelValues("open", "xchacha20poly1305").Inc()
	return plaintext, nil
}

// Open decrypts the envelope under key and JSON-decodes the plaintext into v.
func Open(env *Envelope, key []byte, v interface{}) error {
	plaintext, err := OpenRaw(env, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("envelope: unmarshal payload: %w", err)
	}
	return nil
}

// Serialize produces the canonical JSON encoding of the envelope itself —
// the exact bytes that client and audit signatures are computed over. Go's
// encoding/json marshals struct fields in declaration order deterministically,
// which is sufficient here since Envelope has a fixed, non-map shape.
func Serialize(env *Envelope) ([]byte, error) {
	return json.Marshal(env)
}
