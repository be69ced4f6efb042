// Package audit implements the audit co-signer (C4): device registration,
// envelope co-signing, and the append-only per-device log the lock
// server's actions are checked against after the fact.
package audit

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sage-x-project/lockaudit/apperr"
	"github.com/sage-x-project/lockaudit/cryptoprim"
	"github.com/sage-x-project/lockaudit/device"
	"github.com/sage-x-project/lockaudit/internal/logger"
)

// Server is the audit co-signer. It owns the audit-device registry and
// issues the Ed25519 signatures the lock server trusts.
type Server struct {
	store           *device.AuditStore
	log             logger.Logger
	readTokenSecret []byte
	readTokenTTL    time.Duration
}

// New constructs a Server backed by store. readTokenSecret signs the JWTs
// handed out alongside Register so a client can later authenticate its own
// GET /api/device/{id}/logs calls.
func New(store *device.AuditStore, log logger.Logger, readTokenSecret []byte, readTokenTTL time.Duration) *Server {
	return &Server{store: store, log: log, readTokenSecret: readTokenSecret, readTokenTTL: readTokenTTL}
}

// RegisterResult is returned to the client after a successful Register call.
type RegisterResult struct {
	ClientID  string
	ServerPK  string // base64 Ed25519 public key
	ReadToken string // HS256 JWT scoped to ClientID, for GET /api/device/{id}/logs
}

// Register derives a stable client ID from clientMACKey, mints a fresh
// Ed25519 signing keypair for this client, and stores both. Re-registering
// with the same MAC key recovers the same client ID but rotates the
// signing key, by design.
func (s *Server) Register(ctx context.Context, clientMACKey []byte) (*RegisterResult, error) {
	if len(clientMACKey) != 32 {
		return nil, apperr.BadRequest("client_mac_key must be 32 bytes")
	}
	idHash := cryptoprim.Hash(clientMACKey)
	clientID := base64.StdEncoding.EncodeToString(idHash[:])

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, apperr.Internal("generate audit signing keypair", err)
	}

	d := device.AuditDevice{
		ID:            clientID,
		ClientMACKey:  base64.StdEncoding.EncodeToString(clientMACKey),
		ServerPublic:  base64.StdEncoding.EncodeToString(pub),
		ServerPrivate: base64.StdEncoding.EncodeToString(priv),
	}
	if err := s.store.Upsert(ctx, d); err != nil {
		return nil, apperr.Internal("persist audit device", err)
	}

	readToken, err := IssueReadToken(s.readTokenSecret, clientID, s.readTokenTTL)
	if err != nil {
		return nil, apperr.Internal("issue read token", err)
	}

	return &RegisterResult{ClientID: clientID, ServerPK: d.ServerPublic, ReadToken: readToken}, nil
}

// VerifyReadToken checks tokenString against this server's secret and
// returns the client ID it is scoped to.
func (s *Server) VerifyReadToken(tokenString string) (string, error) {
	return VerifyReadToken(s.readTokenSecret, tokenString)
}

// SignResult is returned to the client after a successful Sign call.
type SignResult struct {
	StampJSON []byte // canonical JSON of Stamp, the bytes ServerSig covers and the lock server verifies
	ServerSig string // base64 Ed25519 signature over StampJSON
}

// Sign verifies the client's HMAC over the raw envelope bytes, appends a
// log entry, and returns an Ed25519-signed stamp attesting to it.
func (s *Server) Sign(ctx context.Context, clientID string, envelopeBytes, clientMAC []byte, peerIP string) (*SignResult, error) {
	d, ok := s.store.Get(clientID)
	if !ok {
		return nil, apperr.NotFound("unknown audit client")
	}

	macKey, err := base64.StdEncoding.DecodeString(d.ClientMACKey)
	if err != nil {
		return nil, apperr.Internal("decode stored mac key", err)
	}
	if err := cryptoprim.VerifyHMAC(macKey, envelopeBytes, clientMAC); err != nil {
		return nil, apperr.BadMac("envelope mac verification failed")
	}

	hash := cryptoprim.Hash(envelopeBytes)
	stamp := Stamp{
		EnvelopeHash: base64.StdEncoding.EncodeToString(hash[:]),
		ClientIP:     peerIP,
		Timestamp:    time.Now().UnixMilli(),
	}
	stampJSON, err := json.Marshal(stamp)
	if err != nil {
		return nil, apperr.Internal("marshal stamp", err)
	}

	eventID := ulid.Make().String()
	if err := s.store.AppendLog(ctx, clientID, device.LogEvent{
		ID:       eventID,
		Envelope: json.RawMessage(envelopeBytes),
		Stamp:    json.RawMessage(stampJSON),
	}); err != nil {
		return nil, apperr.Internal("append audit log", err)
	}

	priv, err := base64.StdEncoding.DecodeString(d.ServerPrivate)
	if err != nil || len(priv) != ed25519.PrivateKeySize {
		return nil, apperr.Internal("decode server private key", fmt.Errorf("bad stored key"))
	}
	sig := ed25519.Sign(ed25519.PrivateKey(priv), stampJSON)

	s.log.Debug("audit stamp issued", logger.String("clientId", clientID), logger.String("eventId", eventID))

	return &SignResult{StampJSON: stampJSON, ServerSig: base64.StdEncoding.EncodeToString(sig)}, nil
}

// Logs returns the full log for clientID, or an empty slice if unknown.
func (s *Server) Logs(clientID string) []device.LogEvent {
	return s.store.Logs(clientID)
}
