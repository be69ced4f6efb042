package lock

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/sage-x-project/lockaudit/apperr"
	"github.com/sage-x-project/lockaudit/audit"
	"github.com/sage-x-project/lockaudit/config"
	"github.com/sage-x-project/lockaudit/cryptoprim"
	"github.com/sage-x-project/lockaudit/device"
	"github.com/sage-x-project/lockaudit/envelope"
	"github.com/sage-x-project/lockaudit/internal/logger"
	"github.com/sage-x-project/lockaudit/internal/metrics"
	"github.com/sage-x-project/lockaudit/lock/actuator"
)

// Controller is the lock server's core: attested pairing (initial and
// delegated) and the unlock challenge/response state machine. It owns no
// transport concerns — callers (cmd/lockserver's HTTP handlers) decode
// requests, call a Controller method, and render the result or error.
type Controller struct {
	store    *device.LockStore
	entities map[string]config.Entity
	actuate  actuator.Actuator
	qr       QREncoder
	log      logger.Logger

	trustedRoots  [][]byte
	gracePeriodMs int64
	relockDelayMs int64

	pairingChallenges *challengeStore
	unlockChallenges  *challengeStore
	finishPayloads    *payloadStore
	initialSecret     secretCell
}

// Config bundles the dependencies NewController needs. Kept as a struct
// rather than a long parameter list since several fields are optional.
type Config struct {
	Store         *device.LockStore
	Entities      map[string]config.Entity
	Actuator      actuator.Actuator
	QREncoder     QREncoder
	TrustedRoots  [][]byte
	GracePeriodMs int64
	RelockDelayMs int64
	Logger        logger.Logger
}

// NewController constructs a Controller. If cfg.QREncoder is nil the
// default rsc.io/qr-backed encoder is used.
func NewController(cfg Config) *Controller {
	qrEnc := cfg.QREncoder
	if qrEnc == nil {
		qrEnc = NewQREncoder()
	}
	return &Controller{
		store:             cfg.Store,
		entities:          cfg.Entities,
		actuate:           cfg.Actuator,
		qr:                qrEnc,
		log:               cfg.Logger,
		trustedRoots:      cfg.TrustedRoots,
		gracePeriodMs:     cfg.GracePeriodMs,
		relockDelayMs:     cfg.RelockDelayMs,
		pairingChallenges: newChallengeStore(),
		unlockChallenges:  newChallengeStore(),
		finishPayloads:    newPayloadStore(),
	}
}

// GetPairingChallenge issues a fresh pairing challenge.
func (c *Controller) GetPairingChallenge() (*PairingChallengeResponse, error) {
	id, err := newChallengeID()
	if err != nil {
		return nil, apperr.Internal("generate challenge id", err)
	}
	isInitial := !c.store.HasPairedDevices()
	ch := Challenge{ID: id, Timestamp: nowMillis(), IsInitial: isInitial}
	c.pairingChallenges.save(ch)
	return &PairingChallengeResponse{ID: ch.ID, Timestamp: ch.Timestamp, IsInitial: ch.IsInitial}, nil
}

// StartUnlock issues a fresh unlock challenge for entityID.
func (c *Controller) StartUnlock(entityID string) (*UnlockChallengeResponse, error) {
	if _, ok := c.entities[entityID]; !ok {
		return nil, apperr.NotFound("unknown entity")
	}
	id, err := newChallengeID()
	if err != nil {
		return nil, apperr.Internal("generate challenge id", err)
	}
	ch := Challenge{ID: id, Timestamp: nowMillis(), EntityID: entityID}
	c.unlockChallenges.save(ch)
	return &UnlockChallengeResponse{ID: ch.ID, Timestamp: ch.Timestamp, EntityID: ch.EntityID}, nil
}

// PairInitialStart begins initial pairing: only legal when the registry is
// empty and no initial secret is already outstanding. Returns a rendered
// QR code encoding the pairing secret for the out-of-band channel.
func (c *Controller) PairInitialStart() ([]byte, error) {
	if c.store.HasPairedDevices() {
		return nil, apperr.BadRequest("registry already has a paired device")
	}
	secretB64, err := cryptoprim.GenerateSecret()
	if err != nil {
		return nil, apperr.Internal("generate pairing secret", err)
	}
	secret, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil {
		return nil, apperr.Internal("decode generated secret", err)
	}
	if !c.initialSecret.setIfEmpty(secret) {
		return nil, apperr.BadRequest("initial pairing already in progress")
	}
	payload, err := json.Marshal(InitialPairingSecret{Secret: secretB64})
	if err != nil {
		return nil, apperr.Internal("marshal pairing secret", err)
	}
	png, err := c.qr.Encode(payload)
	if err != nil {
		return nil, apperr.Internal("render qr code", err)
	}
	return png, nil
}

// PairInitialFinish completes initial pairing: finishPayload is the raw
// JSON bytes of a PairFinishPayload, mac is the claimed HMAC-SHA256 of
// those bytes under the stashed secret.
func (c *Controller) PairInitialFinish(ctx context.Context, finishPayload, mac []byte) error {
	secret, ok := c.initialSecret.take()
	if !ok {
		return apperr.BadRequest("no initial pairing in progress")
	}
	if err := cryptoprim.VerifyHMAC(secret, finishPayload, mac); err != nil {
		return apperr.BadMac("initial pairing mac verification failed")
	}
	var payload PairFinishPayload
	if err := json.Unmarshal(finishPayload, &payload); err != nil {
		return apperr.BadRequest("malformed finish payload")
	}
	return c.finishPair(ctx, payload, "", device.NoExpiry, nil)
}

// PairDelegatedUploadPayload stores an enrollee's PairFinishPayload for a
// still-open pairing challenge, once.
func (c *Controller) PairDelegatedUploadPayload(challengeID string, payload []byte) error {
	if _, ok := c.pairingChallenges.peek(challengeID); !ok {
		return apperr.NotFound("unknown pairing challenge")
	}
	if !c.finishPayloads.putIfAbsent(challengeID, json.RawMessage(payload)) {
		return apperr.BadRequest("a payload was already uploaded for this challenge")
	}
	return nil
}

// PairDelegatedGetPayload retrieves the payload uploaded for challengeID,
// for the delegator to sign.
func (c *Controller) PairDelegatedGetPayload(challengeID string) ([]byte, error) {
	payload, ok := c.finishPayloads.get(challengeID)
	if !ok {
		return nil, apperr.NotFound("no payload uploaded for this challenge")
	}
	return payload, nil
}

// PairDelegatedFinish is called by the delegator's signed approval. env is
// the SignedRequestEnvelope carrying an encrypted Delegation, opened under
// delegatorID's delegation key.
func (c *Controller) PairDelegatedFinish(ctx context.Context, challengeID string, env SignedRequestEnvelope, peerIP string) error {
	delegator, ok := c.store.GetDevice(env.DeviceID)
	if !ok {
		return apperr.ExpiredDevice("delegator device not found or expired")
	}

	plaintext, err := c.openEnvelope(env, delegator.DelegationKey, delegator.AuditPublicKey, delegator.EncKey, peerIP)
	if err != nil {
		return err
	}

	var delegation Delegation
	if err := json.Unmarshal(plaintext, &delegation); err != nil {
		return apperr.BadRequest("malformed delegation payload")
	}

	storedPayload, ok := c.finishPayloads.get(challengeID)
	if !ok {
		return apperr.NotFound("no payload uploaded for this challenge")
	}
	if !bytes.Equal(delegation.FinishPayload, storedPayload) {
		return apperr.BadRequest("delegation does not match the uploaded payload")
	}

	var payload PairFinishPayload
	if err := json.Unmarshal(delegation.FinishPayload, &payload); err != nil {
		return apperr.BadRequest("malformed finish payload")
	}

	return c.finishPair(ctx, payload, delegator.ID, delegation.ExpiresAt, delegation.AllowedEntities)
}

// finishPair implements the common tail of both pairing flows: challenge
// consumption, freshness, attestation, delegation clamping, and store
// insertion.
func (c *Controller) finishPair(ctx context.Context, payload PairFinishPayload, delegatedBy string, expiresAt int64, allowedEntities []string) (err error) {
	mode := "initial"
	if delegatedBy != "" {
		mode = "delegated"
	}
	metrics.PairingsInitiated.WithLabelValues(mode).Inc()
	start := time.Now()
	defer func() {
		metrics.PairingDuration.WithLabelValues("finish").Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = "failure"
			metrics.PairingsFailed.WithLabelValues(kindLabel(err)).Inc()
		}
		metrics.PairingsCompleted.WithLabelValues(mode, status).Inc()
	}()

	challenge, ok := c.pairingChallenges.take(payload.ChallengeID)
	if !ok {
		return apperr.NotFound("unknown or already-consumed pairing challenge")
	}
	c.finishPayloads.delete(payload.ChallengeID)

	isDelegated := delegatedBy != ""
	if challenge.IsInitial == isDelegated {
		return apperr.BadRequest("challenge kind does not match pairing mode")
	}

	encKey, err := base64.StdEncoding.DecodeString(payload.EncKey)
	if err != nil || len(encKey) != envelope.KeySize {
		return apperr.BadRequest("enc_key must decode to 32 bytes")
	}

	if nowMillis()-challenge.Timestamp > c.gracePeriodMs {
		return apperr.StaleChallenge("pairing challenge expired")
	}

	attestStart := time.Now()
	if _, err := VerifyAttestationChain(c.trustedRoots, payload.MainAttestationChain, challenge.ID, false, c.gracePeriodMs); err != nil {
		return err
	}
	if _, err := VerifyAttestationChain(c.trustedRoots, payload.DelegationAttestationChain, challenge.ID, true, c.gracePeriodMs); err != nil {
		return err
	}
	metrics.PairingDuration.WithLabelValues("attestation_verify").Observe(time.Since(attestStart).Seconds())

	if isDelegated {
		parent, ok := c.store.GetDevice(delegatedBy)
		if !ok {
			return apperr.ExpiredDevice("delegator device not found or expired")
		}
		if expiresAt > parent.ExpiresAt {
			expiresAt = parent.ExpiresAt
		}
		parentEntities, _ := c.store.EffectiveEntities(delegatedBy)
		allowedEntities = intersectEntities(allowedEntities, parentEntities)
	}

	pubKeyDER, err := base64.StdEncoding.DecodeString(payload.PublicKey)
	if err != nil {
		return apperr.BadRequest("public_key is not valid base64")
	}
	idHash := cryptoprim.Hash(pubKeyDER)
	id := base64.StdEncoding.EncodeToString(idHash[:])

	d := device.PairedDevice{
		ID:              id,
		PublicKey:       payload.PublicKey,
		DelegationKey:   payload.DelegationKey,
		EncKey:          payload.EncKey,
		AuditPublicKey:  payload.AuditPublicKey,
		ExpiresAt:       expiresAt,
		DelegatedBy:     delegatedBy,
		AllowedEntities: allowedEntities,
	}
	if err := c.store.AddDevice(ctx, d); err != nil {
		return apperr.Internal("persist paired device", err)
	}

	c.log.Info("device paired", logger.String("deviceId", id), logger.Bool("delegated", isDelegated))
	return nil
}

// UnlockFinish completes an unlock: verifies the signed envelope, checks
// the decrypted challenge nonce, enforces the entity ACL, and actuates.
func (c *Controller) UnlockFinish(ctx context.Context, challengeID string, env SignedRequestEnvelope, peerIP string) (err error) {
	start := time.Now()
	defer func() {
		metrics.UnlockProcessingDuration.Observe(time.Since(start).Seconds())
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.UnlocksProcessed.WithLabelValues(status).Inc()
	}()
	metrics.EnvelopeSize.Observe(float64(len(env.Envelope.EncPayload) + len(env.Envelope.EncNonce)))

	d, ok := c.store.GetDevice(env.DeviceID)
	if !ok {
		return apperr.ExpiredDevice("device not found or expired")
	}

	plaintext, err := c.openEnvelope(env, d.PublicKey, d.AuditPublicKey, d.EncKey, peerIP)
	if err != nil {
		return err
	}

	challenge, ok := c.unlockChallenges.take(challengeID)
	if !ok {
		metrics.ChallengeReuseDetected.Inc()
		return apperr.NotFound("unknown or already-consumed unlock challenge")
	}

	expectedNonce, err := base64.StdEncoding.DecodeString(challenge.ID)
	if err != nil {
		return apperr.Internal("decode challenge nonce", err)
	}
	if subtle.ConstantTimeCompare(plaintext, expectedNonce) != 1 {
		return apperr.Internal("challenge nonce mismatch", nil)
	}

	if _, ok := c.store.GetDeviceForEntity(env.DeviceID, challenge.EntityID); !ok {
		return apperr.Internal("entity not allowed", nil)
	}

	if nowMillis()-challenge.Timestamp > c.gracePeriodMs {
		metrics.ChallengeValidations.WithLabelValues("stale").Inc()
		return apperr.StaleChallenge("unlock challenge expired")
	}
	metrics.ChallengeValidations.WithLabelValues("valid").Inc()

	entity, ok := c.entities[challenge.EntityID]
	if !ok {
		return apperr.NotFound("unknown entity")
	}

	if err := c.actuate.Actuate(ctx, entity.HAEntity, true); err != nil {
		return apperr.Internal("actuate unlock", err)
	}

	go c.relock(entity)

	return nil
}

func (c *Controller) relock(entity config.Entity) {
	time.Sleep(time.Duration(c.relockDelayMs) * time.Millisecond)
	if err := c.actuate.Actuate(context.Background(), entity.HAEntity, false); err != nil {
		c.log.Warn("re-lock failed", logger.String("entity", entity.ID), logger.Error(err))
	}
}

// openEnvelope verifies a SignedRequestEnvelope's client and audit
// signatures under the given key material, checks the audit stamp's
// envelope-hash/client-ip/freshness, and AEAD-decrypts the payload.
func (c *Controller) openEnvelope(env SignedRequestEnvelope, publicKeyB64, auditPublicKeyB64, encKeyB64, peerIP string) ([]byte, error) {
	envelopeBytes, err := envelope.Serialize(&envelope.Envelope{EncPayload: env.Envelope.EncPayload, EncNonce: env.Envelope.EncNonce})
	if err != nil {
		return nil, apperr.Internal("serialize envelope", err)
	}

	spkiDER, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return nil, apperr.BadRequest("device public key is not valid base64")
	}
	clientSig, err := base64.StdEncoding.DecodeString(env.ClientSignature)
	if err != nil {
		return nil, apperr.BadRequest("client_signature is not valid base64")
	}
	if err := cryptoprim.VerifyECSignature(envelopeBytes, spkiDER, clientSig); err != nil {
		return nil, apperr.BadSignature("client signature verification failed")
	}

	auditPK, err := base64.StdEncoding.DecodeString(auditPublicKeyB64)
	if err != nil {
		return nil, apperr.BadRequest("audit public key is not valid base64")
	}
	auditSig, err := base64.StdEncoding.DecodeString(env.AuditSignature)
	if err != nil {
		return nil, apperr.BadRequest("audit_signature is not valid base64")
	}
	if err := cryptoprim.VerifyEd25519([]byte(env.AuditStamp), auditPK, auditSig); err != nil {
		return nil, apperr.BadSignature("audit signature verification failed")
	}

	var stamp audit.Stamp
	if err := json.Unmarshal(env.AuditStamp, &stamp); err != nil {
		return nil, apperr.BadRequest("malformed audit stamp")
	}

	expectedHash := cryptoprim.Hash(envelopeBytes)
	gotHash, err := base64.StdEncoding.DecodeString(stamp.EnvelopeHash)
	if err != nil || subtle.ConstantTimeCompare(gotHash, expectedHash[:]) != 1 {
		return nil, apperr.BadAead("envelope hash does not match audit stamp")
	}

	if stamp.ClientIP != peerIP {
		return nil, apperr.BadRequest("audit stamp client ip does not match request origin")
	}

	if abs64(nowMillis()-stamp.Timestamp) > c.gracePeriodMs {
		return nil, apperr.StaleChallenge("audit stamp is stale")
	}

	encKey, err := base64.StdEncoding.DecodeString(encKeyB64)
	if err != nil {
		return nil, apperr.Internal("decode device enc key", err)
	}
	plaintext, err := envelope.OpenRaw(&envelope.Envelope{EncPayload: env.Envelope.EncPayload, EncNonce: env.Envelope.EncNonce}, encKey)
	if err != nil {
		return nil, apperr.BadAead("envelope decryption failed")
	}
	return plaintext, nil
}

func intersectEntities(requested, parent []string) []string {
	if requested == nil {
		if parent == nil {
			return nil
		}
		cp := make([]string, len(parent))
		copy(cp, parent)
		return cp
	}
	if parent == nil {
		cp := make([]string, len(requested))
		copy(cp, requested)
		return cp
	}
	allowed := make(map[string]bool, len(parent))
	for _, e := range parent {
		allowed[e] = true
	}
	out := make([]string, 0, len(requested))
	for _, e := range requested {
		if allowed[e] {
			out = append(out, e)
		}
	}
	return out
}

// kindLabel turns an apperr.Error's Kind into the low-cardinality label
// value the pairing/unlock failure counters group by.
func kindLabel(err error) string {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return "internal"
	}
	switch appErr.Kind {
	case apperr.KindStaleChallenge:
		return "stale_challenge"
	case apperr.KindAttestationFailure:
		return "attestation_failure"
	case apperr.KindBadSignature:
		return "bad_signature"
	case apperr.KindBadMac:
		return "bad_mac"
	case apperr.KindBadAead:
		return "bad_aead"
	case apperr.KindBadRequest:
		return "bad_request"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindExpiredDevice:
		return "expired_device"
	default:
		return "internal"
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
