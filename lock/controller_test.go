package lock

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/lockaudit/apperr"
	"github.com/sage-x-project/lockaudit/audit"
	"github.com/sage-x-project/lockaudit/config"
	"github.com/sage-x-project/lockaudit/cryptoprim"
	"github.com/sage-x-project/lockaudit/device"
	"github.com/sage-x-project/lockaudit/envelope"
	"github.com/sage-x-project/lockaudit/internal/logger"
)

// memSnapshotStore is a minimal in-memory device.SnapshotStore for tests
// in this package, mirroring device's own test helper of the same name.
type memSnapshotStore struct {
	mu   sync.Mutex
	data []byte
}

func (m *memSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data, nil
}

func (m *memSnapshotStore) Save(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.data = cp
	return nil
}

// fakeActuator records every Actuate call for assertions and never talks
// to a real downstream system.
type fakeActuator struct {
	mu    sync.Mutex
	calls []bool // true = unlock, false = lock
}

func (f *fakeActuator) Actuate(ctx context.Context, haEntity string, unlocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, unlocked)
	return nil
}

func (f *fakeActuator) unlockCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.calls {
		if u {
			n++
		}
	}
	return n
}

func newTestController(t *testing.T, act *fakeActuator) *Controller {
	t.Helper()
	store, err := device.NewLockStore(context.Background(), &memSnapshotStore{})
	require.NoError(t, err)
	return NewController(Config{
		Store:         store,
		Entities:      map[string]config.Entity{"front": {ID: "front", Name: "Front Door", HAEntity: "lock.front_door"}},
		Actuator:      act,
		GracePeriodMs: 30_000,
		RelockDelayMs: 60_000, // long enough that relock won't fire during the test
		Logger:        logger.NewDefaultLogger(),
	})
}

// clientIdentity bundles the signing/encryption material a paired device
// holds, and helps build well-formed SignedRequestEnvelopes for tests.
type clientIdentity struct {
	signPriv  *ecdsa.PrivateKey
	spkiDER   []byte
	auditPub  ed25519.PublicKey
	auditPriv ed25519.PrivateKey
	encKey    []byte
}

func newClientIdentity(t *testing.T) *clientIdentity {
	t.Helper()
	signPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	spkiDER, err := x509.MarshalPKIXPublicKey(&signPriv.PublicKey)
	require.NoError(t, err)
	auditPub, auditPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	encKey := make([]byte, envelope.KeySize)
	_, err = rand.Read(encKey)
	require.NoError(t, err)
	return &clientIdentity{signPriv: signPriv, spkiDER: spkiDER, auditPub: auditPub, auditPriv: auditPriv, encKey: encKey}
}

// sealedEnvelope builds a fully-signed, audit-stamped SignedRequestEnvelope
// for payload exactly as a real client would, so UnlockFinish exercises the
// same verification path a production request does.
func sealedEnvelope(t *testing.T, id *clientIdentity, payload []byte, peerIP string, stampTime int64) SignedRequestEnvelope {
	t.Helper()
	env, err := envelope.SealRaw(payload, id.encKey)
	require.NoError(t, err)
	envBytes, err := envelope.Serialize(env)
	require.NoError(t, err)

	digest := cryptoprim.Hash(envBytes)
	stamp := audit.Stamp{
		EnvelopeHash: base64.StdEncoding.EncodeToString(digest[:]),
		ClientIP:     peerIP,
		Timestamp:    stampTime,
	}
	stampBytes, err := json.Marshal(stamp)
	require.NoError(t, err)
	auditSig := ed25519.Sign(id.auditPriv, stampBytes)

	digest256 := sha256.Sum256(envBytes)
	r, s, err := ecdsa.Sign(rand.Reader, id.signPriv, digest256[:])
	require.NoError(t, err)
	clientSig := append(r.FillBytes(make([]byte, 32)), s.FillBytes(make([]byte, 32))...)

	return SignedRequestEnvelope{
		DeviceID:        "",
		Envelope:        EnvelopeJSON{EncPayload: env.EncPayload, EncNonce: env.EncNonce},
		ClientSignature: base64.StdEncoding.EncodeToString(clientSig),
		AuditStamp:      stampBytes,
		AuditSignature:  base64.StdEncoding.EncodeToString(auditSig),
	}
}

func TestGetPairingChallengeMarksInitialWhenRegistryEmpty(t *testing.T) {
	c := newTestController(t, &fakeActuator{})
	resp, err := c.GetPairingChallenge()
	require.NoError(t, err)
	assert.True(t, resp.IsInitial)
}

func TestStartUnlockUnknownEntity(t *testing.T) {
	c := newTestController(t, &fakeActuator{})
	_, err := c.StartUnlock("nonexistent")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

func TestPairInitialFinishRequiresOutstandingSecret(t *testing.T) {
	c := newTestController(t, &fakeActuator{})
	err := c.PairInitialFinish(context.Background(), []byte(`{}`), []byte("mac"))
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindBadRequest, appErr.Kind)
}

func TestPairInitialFinishRejectsBadMac(t *testing.T) {
	c := newTestController(t, &fakeActuator{})
	_, err := c.PairInitialStart()
	require.NoError(t, err)

	err = c.PairInitialFinish(context.Background(), []byte(`{"challengeId":"x"}`), []byte("not-the-right-mac"))
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindBadMac, appErr.Kind)
}

func TestUnlockFinishFullFlow(t *testing.T) {
	act := &fakeActuator{}
	c := newTestController(t, act)
	ctx := context.Background()
	id := newClientIdentity(t)

	d := device.PairedDevice{
		ID:              "dev-1",
		PublicKey:       base64.StdEncoding.EncodeToString(id.spkiDER),
		AuditPublicKey:  base64.StdEncoding.EncodeToString(id.auditPub),
		EncKey:          base64.StdEncoding.EncodeToString(id.encKey),
		ExpiresAt:       device.NoExpiry,
		AllowedEntities: []string{"front"},
	}
	require.NoError(t, c.store.AddDevice(ctx, d))

	challengeResp, err := c.StartUnlock("front")
	require.NoError(t, err)

	nonce, err := base64.StdEncoding.DecodeString(challengeResp.ID)
	require.NoError(t, err)
	env := sealedEnvelope(t, id, nonce, "1.2.3.4", nowMillis())
	env.DeviceID = "dev-1"

	err = c.UnlockFinish(ctx, challengeResp.ID, env, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 1, act.unlockCount())
}

func TestUnlockFinishRejectsReplayedChallenge(t *testing.T) {
	act := &fakeActuator{}
	c := newTestController(t, act)
	ctx := context.Background()
	id := newClientIdentity(t)

	d := device.PairedDevice{
		ID:             "dev-1",
		PublicKey:      base64.StdEncoding.EncodeToString(id.spkiDER),
		AuditPublicKey: base64.StdEncoding.EncodeToString(id.auditPub),
		EncKey:         base64.StdEncoding.EncodeToString(id.encKey),
		ExpiresAt:      device.NoExpiry,
	}
	require.NoError(t, c.store.AddDevice(ctx, d))

	challengeResp, err := c.StartUnlock("front")
	require.NoError(t, err)
	nonce, err := base64.StdEncoding.DecodeString(challengeResp.ID)
	require.NoError(t, err)
	env := sealedEnvelope(t, id, nonce, "1.2.3.4", nowMillis())
	env.DeviceID = "dev-1"

	require.NoError(t, c.UnlockFinish(ctx, challengeResp.ID, env, "1.2.3.4"))

	err = c.UnlockFinish(ctx, challengeResp.ID, env, "1.2.3.4")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

func TestUnlockFinishRejectsWrongClientSignature(t *testing.T) {
	act := &fakeActuator{}
	c := newTestController(t, act)
	ctx := context.Background()
	id := newClientIdentity(t)
	impostor := newClientIdentity(t)

	d := device.PairedDevice{
		ID:             "dev-1",
		PublicKey:      base64.StdEncoding.EncodeToString(id.spkiDER),
		AuditPublicKey: base64.StdEncoding.EncodeToString(id.auditPub),
		EncKey:         base64.StdEncoding.EncodeToString(id.encKey),
		ExpiresAt:      device.NoExpiry,
	}
	require.NoError(t, c.store.AddDevice(ctx, d))

	challengeResp, err := c.StartUnlock("front")
	require.NoError(t, err)
	nonce, err := base64.StdEncoding.DecodeString(challengeResp.ID)
	require.NoError(t, err)

	// Sealed and signed by the impostor's keys, but claiming to be dev-1 —
	// the stored device's registered public key won't verify a signature
	// made by a different private key.
	env := sealedEnvelope(t, impostor, nonce, "1.2.3.4", nowMillis())
	env.DeviceID = "dev-1"

	err = c.UnlockFinish(ctx, challengeResp.ID, env, "1.2.3.4")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindBadSignature, appErr.Kind)
}

func TestUnlockFinishRejectsStaleChallenge(t *testing.T) {
	act := &fakeActuator{}
	c := newTestController(t, act)
	ctx := context.Background()
	id := newClientIdentity(t)

	d := device.PairedDevice{
		ID:             "dev-1",
		PublicKey:      base64.StdEncoding.EncodeToString(id.spkiDER),
		AuditPublicKey: base64.StdEncoding.EncodeToString(id.auditPub),
		EncKey:         base64.StdEncoding.EncodeToString(id.encKey),
		ExpiresAt:      device.NoExpiry,
	}
	require.NoError(t, c.store.AddDevice(ctx, d))

	challengeResp, err := c.StartUnlock("front")
	require.NoError(t, err)
	// Force the stashed challenge's timestamp into the past beyond grace.
	stale, ok := c.unlockChallenges.take(challengeResp.ID)
	require.True(t, ok)
	stale.Timestamp -= 60_000
	c.unlockChallenges.save(stale)

	nonce, err := base64.StdEncoding.DecodeString(challengeResp.ID)
	require.NoError(t, err)
	env := sealedEnvelope(t, id, nonce, "1.2.3.4", nowMillis())
	env.DeviceID = "dev-1"

	err = c.UnlockFinish(ctx, challengeResp.ID, env, "1.2.3.4")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindStaleChallenge, appErr.Kind)
}

func TestUnlockFinishRejectsDisallowedEntity(t *testing.T) {
	act := &fakeActuator{}
	c := newTestController(t, act)
	ctx := context.Background()
	id := newClientIdentity(t)

	d := device.PairedDevice{
		ID:              "dev-1",
		PublicKey:       base64.StdEncoding.EncodeToString(id.spkiDER),
		AuditPublicKey:  base64.StdEncoding.EncodeToString(id.auditPub),
		EncKey:          base64.StdEncoding.EncodeToString(id.encKey),
		ExpiresAt:       device.NoExpiry,
		AllowedEntities: []string{"back"}, // not "front"
	}
	require.NoError(t, c.store.AddDevice(ctx, d))

	challengeResp, err := c.StartUnlock("front")
	require.NoError(t, err)
	nonce, err := base64.StdEncoding.DecodeString(challengeResp.ID)
	require.NoError(t, err)
	env := sealedEnvelope(t, id, nonce, "1.2.3.4", nowMillis())
	env.DeviceID = "dev-1"

	err = c.UnlockFinish(ctx, challengeResp.ID, env, "1.2.3.4")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	// Entity-ACL failures deliberately render as 500, not 400: the response
	// must not let a caller distinguish "wrong entity" from any other
	// server-side rejection.
	assert.Equal(t, apperr.KindInternal, appErr.Kind)
	assert.Equal(t, 0, act.unlockCount())
}

func TestIntersectEntities(t *testing.T) {
	assert.Nil(t, intersectEntities(nil, nil))
	assert.Equal(t, []string{"a", "b"}, intersectEntities(nil, []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, intersectEntities([]string{"a", "b"}, nil))
	assert.Equal(t, []string{"a"}, intersectEntities([]string{"a", "c"}, []string{"a", "b"}))
	assert.Equal(t, []string{}, intersectEntities([]string{"c"}, []string{"a", "b"}))
}

func TestKindLabel(t *testing.T) {
	assert.Equal(t, "bad_signature", kindLabel(apperr.BadSignature("x")))
	assert.Equal(t, "stale_challenge", kindLabel(apperr.StaleChallenge("x")))
	assert.Equal(t, "internal", kindLabel(assert.AnError))
}

func TestAbs64(t *testing.T) {
	assert.Equal(t, int64(5), abs64(5))
	assert.Equal(t, int64(5), abs64(-5))
	assert.Equal(t, int64(0), abs64(0))
}

func TestUnlockRelockFiresAfterDelay(t *testing.T) {
	act := &fakeActuator{}
	store, err := device.NewLockStore(context.Background(), &memSnapshotStore{})
	require.NoError(t, err)
	c := NewController(Config{
		Store:         store,
		Entities:      map[string]config.Entity{"front": {ID: "front", HAEntity: "lock.front_door"}},
		Actuator:      act,
		GracePeriodMs: 30_000,
		RelockDelayMs: 10, // short, to observe the async relock
		Logger:        logger.NewDefaultLogger(),
	})
	ctx := context.Background()
	id := newClientIdentity(t)
	require.NoError(t, c.store.AddDevice(ctx, device.PairedDevice{
		ID:             "dev-1",
		PublicKey:      base64.StdEncoding.EncodeToString(id.spkiDER),
		AuditPublicKey: base64.StdEncoding.EncodeToString(id.auditPub),
		EncKey:         base64.StdEncoding.EncodeToString(id.encKey),
		ExpiresAt:      device.NoExpiry,
	}))

	challengeResp, err := c.StartUnlock("front")
	require.NoError(t, err)
	nonce, err := base64.StdEncoding.DecodeString(challengeResp.ID)
	require.NoError(t, err)
	env := sealedEnvelope(t, id, nonce, "1.2.3.4", nowMillis())
	env.DeviceID = "dev-1"

	require.NoError(t, c.UnlockFinish(ctx, challengeResp.ID, env, "1.2.3.4"))

	require.Eventually(t, func() bool {
		return len(act.calls) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false}, act.calls)
}
