// Package lock implements the lock controller (C5): attested device
// pairing (initial and delegated), the unlock challenge/response state
// machine, and entity actuation. It is the largest component of the
// protocol — everything else in this module exists to support it.
package lock

import "encoding/json"

// PairFinishPayload is what an enrolling device builds locally and submits
// (directly for initial pairing, or via a delegator for delegated pairing)
// to claim a slot in the paired-device registry.
type PairFinishPayload struct {
	ChallengeID             string   `json:"challengeId"`
	PublicKey               string   `json:"publicKey"`       // base64 SPKI DER, ECDSA P-256
	DelegationKey            string  `json:"delegationKey"`   // base64 SPKI DER, ECDSA P-256
	EncKey                  string   `json:"encKey"`          // base64, 32 raw bytes
	AuditPublicKey          string   `json:"auditPublicKey"`  // base64, 32 raw bytes (Ed25519)
	MainAttestationChain    []string `json:"mainAttestationChain"`       // base64 DER certs, leaf first
	DelegationAttestationChain []string `json:"delegationAttestationChain"` // base64 DER certs, leaf first
}

// Delegation is the grant an already-enrolled device signs (with its
// delegation_key, audit co-signed) to vouch for a new device's
// PairFinishPayload.
type Delegation struct {
	FinishPayload   json.RawMessage `json:"finishPayload"` // canonical bytes of the enrollee's PairFinishPayload JSON
	ExpiresAt       int64           `json:"expiresAt"`
	AllowedEntities []string        `json:"allowedEntities"`
}

// SignedRequestEnvelope is the unit that travels from client to lock
// server for both delegated-pairing approval and unlock finish: a sealed
// envelope plus the client and audit signatures that authenticate it.
type SignedRequestEnvelope struct {
	DeviceID        string          `json:"deviceId"`
	Envelope        EnvelopeJSON    `json:"envelope"`
	ClientSignature string          `json:"clientSignature"` // base64
	AuditStamp      json.RawMessage `json:"auditStamp"`      // canonical bytes of the audit.Stamp JSON, signed as-is
	AuditSignature  string          `json:"auditSignature"`  // base64 Ed25519
}

// EnvelopeJSON mirrors envelope.Envelope's wire shape so this package does
// not need to import envelope just to unmarshal the field; Serialize
// re-encodes it identically (field order p, n) before use as signed bytes.
type EnvelopeJSON struct {
	EncPayload []byte `json:"p"`
	EncNonce   []byte `json:"n"`
}

// PairingChallengeResponse is the body returned from get_challenge.
type PairingChallengeResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	IsInitial bool   `json:"isInitial"`
}

// UnlockChallengeResponse is the body returned from unlock/start.
type UnlockChallengeResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	EntityID  string `json:"entityId"`
}

// InitialPairingSecret is the JSON rendered into the QR code at
// pair/initial/start.
type InitialPairingSecret struct {
	Secret string `json:"secret"` // base64
}
