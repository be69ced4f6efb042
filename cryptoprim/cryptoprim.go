// Package cryptoprim provides the stateless signature and hashing
// primitives shared by the device store, audit co-signer, and lock
// controller: BLAKE3 hashing, ECDSA P-256 and Ed25519 verification, and
// constant-time HMAC-SHA256 verification. Unlike crypto/keys, which manages
// local key pairs capable of signing, this package only ever verifies
// signatures produced by a remote party and hands back a base64 secret
// generator for pairing.
package cryptoprim

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"errors"
	"math/big"
	"time"

	"crypto/ed25519"

	"github.com/zeebo/blake3"

	"github.com/sage-x-project/lockaudit/internal/metrics"
)

// observe records a verify-style operation's outcome and duration against
// the shared crypto metrics, returning err unchanged so call sites can
// wrap a single return statement with it.
func observe(operation, algorithm string, start time.Time, err error) error {
	metrics.CryptoOperationDuration.WithLabelValues(operation, algorithm).Observe(time.Since(start).Seconds())
	metrics.CryptoOperations.WithLabelValues(operation, algorithm).Inc()
	if err != nil {
		metrics.CryptoErrors.WithLabelValues(operation).Inc()
	}
	return err
}

// ErrBadSignature is returned by every Verify* function on any
// verification failure, deliberately without distinguishing malformed
// input from a genuine signature mismatch.
var ErrBadSignature = errors.New("cryptoprim: signature verification failed")

// ErrBadMac is returned by VerifyHMAC on mismatch.
var ErrBadMac = errors.New("cryptoprim: mac verification failed")

// HashSize is the length in bytes of a Hash output.
const HashSize = 32

// Hash returns the 32-byte BLAKE3 digest of b.
func Hash(b []byte) [HashSize]byte {
	start := time.Now()
	h := blake3.Sum256(b)
	metrics.CryptoOperationDuration.WithLabelValues("hash", "blake3").Observe(time.Since(start).Seconds())
	metrics.CryptoOperations.WithLabelValues("hash", "blake3").Inc()
	return h
}

// HashIDShort returns the first 12 bytes of the BLAKE3 digest of b, used
// where a shorter correlation identifier is sufficient.
func HashIDShort(b []byte) []byte {
	h := Hash(b)
	return h[:12]
}

// ecdsaSignature is the ASN.1 structure an ECDSA signature decodes to.
type ecdsaSignature struct {
	R, S *big.Int
}

// VerifyECSignature parses spkiDER as a SubjectPublicKeyInfo, requires it
// to be an ECDSA P-256 key, and verifies sig as a SHA-256 signature over
// data. sig may be either a fixed 64-byte r||s encoding (the wire format
// mobile clients use) or ASN.1 DER, for interoperability.
func VerifyECSignature(data, spkiDER, sig []byte) error {
	start := time.Now()
	pub, err := x509.ParsePKIXPublicKey(spkiDER)
	if err != nil {
		return observe("verify", "ecdsa_p256", start, ErrBadSignature)
	}
	ecPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return observe("verify", "ecdsa_p256", start, ErrBadSignature)
	}
	r, s, err := decodeECSignature(sig)
	if err != nil {
		return observe("verify", "ecdsa_p256", start, ErrBadSignature)
	}
	digest := sha256.Sum256(data)
	if !ecdsa.Verify(ecPub, digest[:], r, s) {
		return observe("verify", "ecdsa_p256", start, ErrBadSignature)
	}
	return observe("verify", "ecdsa_p256", start, nil)
}

// decodeECSignature decodes sig as either a fixed 64-byte r||s pair or an
// ASN.1 DER SEQUENCE{r,s}, tried in that order.
func decodeECSignature(sig []byte) (r, s *big.Int, err error) {
	if len(sig) == 64 {
		return new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:]), nil
	}
	var parsed ecdsaSignature
	if _, err := asn1.Unmarshal(sig, &parsed); err != nil {
		return nil, nil, ErrBadSignature
	}
	return parsed.R, parsed.S, nil
}

// VerifyEd25519 verifies sig as an Ed25519 signature over data under pk.
func VerifyEd25519(data, pk, sig []byte) error {
	start := time.Now()
	if len(pk) != ed25519.PublicKeySize {
		return observe("verify", "ed25519", start, ErrBadSignature)
	}
	if !ed25519.Verify(ed25519.PublicKey(pk), data, sig) {
		return observe("verify", "ed25519", start, ErrBadSignature)
	}
	return observe("verify", "ed25519", start, nil)
}

// VerifyHMAC constant-time-compares an HMAC-SHA256 mac over data under key.
func VerifyHMAC(key, data, mac []byte) error {
	start := time.Now()
	m := hmac.New(sha256.New, key)
	m.Write(data)
	expected := m.Sum(nil)
	if subtle.ConstantTimeCompare(expected, mac) != 1 {
		return observe("hmac", "hmac_sha256", start, ErrBadMac)
	}
	return observe("hmac", "hmac_sha256", start, nil)
}

// GenerateSecret returns a base64-encoded (standard alphabet, padded)
// 32-byte CSPRNG value, used for pairing secrets and encryption keys.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
