package audit

import (
	"context"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/lockaudit/apperr"
	"github.com/sage-x-project/lockaudit/device"
	"github.com/sage-x-project/lockaudit/internal/logger"
)

// memSnapshotStore is a minimal in-memory device.SnapshotStore for this
// package's tests, mirroring the device package's own test helper.
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

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := device.NewAuditStore(context.Background(), &memSnapshotStore{})
	require.NoError(t, err)
	secret := []byte("test-read-token-secret-32-bytes")
	return New(store, logger.NewDefaultLogger(), secret, time.Hour)
}

func randomMACKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestRegisterRejectsWrongKeyLength(t *testing.T) {
	s := newTestServer(t)
	_, err := s.Register(context.Background(), []byte("too-short"))
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindBadRequest, appErr.Kind)
}

func TestRegisterIsDeterministicByMACKeyButRotatesSigningKey(t *testing.T) {
	s := newTestServer(t)
	macKey := randomMACKey(t)

	first, err := s.Register(context.Background(), macKey)
	require.NoError(t, err)
	second, err := s.Register(context.Background(), macKey)
	require.NoError(t, err)

	assert.Equal(t, first.ClientID, second.ClientID, "re-registering with the same mac key recovers the same client id")
	assert.NotEqual(t, first.ServerPK, second.ServerPK, "re-registering rotates the server signing key")
}

func TestRegisterIssuesAReadTokenScopedToTheClient(t *testing.T) {
	s := newTestServer(t)
	result, err := s.Register(context.Background(), randomMACKey(t))
	require.NoError(t, err)
	require.NotEmpty(t, result.ReadToken)

	sub, err := s.VerifyReadToken(result.ReadToken)
	require.NoError(t, err)
	assert.Equal(t, result.ClientID, sub)
}

func TestSignVerifiesClientMacAndReturnsAValidStamp(t *testing.T) {
	s := newTestServer(t)
	macKey := randomMACKey(t)
	reg, err := s.Register(context.Background(), macKey)
	require.NoError(t, err)

	envelopeBytes := []byte(`{"p":"ciphertext","n":"nonce"}`)
	mac := hmacOf(macKey, envelopeBytes)

	result, err := s.Sign(context.Background(), reg.ClientID, envelopeBytes, mac, "10.0.0.5")
	require.NoError(t, err)

	serverPub, err := base64.StdEncoding.DecodeString(reg.ServerPK)
	require.NoError(t, err)
	serverSig, err := base64.StdEncoding.DecodeString(result.ServerSig)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(serverPub, result.StampJSON, serverSig), "server signature must verify under the published public key")

	var stamp Stamp
	require.NoError(t, json.Unmarshal(result.StampJSON, &stamp))
	assert.Equal(t, "10.0.0.5", stamp.ClientIP)

	logs := s.Logs(reg.ClientID)
	require.Len(t, logs, 1)
	assert.Equal(t, json.RawMessage(envelopeBytes), logs[0].Envelope)
}

func TestSignRejectsBadMac(t *testing.T) {
	s := newTestServer(t)
	macKey := randomMACKey(t)
	reg, err := s.Register(context.Background(), macKey)
	require.NoError(t, err)

	_, err = s.Sign(context.Background(), reg.ClientID, []byte("payload"), []byte("wrong-mac"), "10.0.0.5")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindBadMac, appErr.Kind)
}

func TestSignRejectsUnknownClient(t *testing.T) {
	s := newTestServer(t)
	_, err := s.Sign(context.Background(), "no-such-client", []byte("payload"), []byte("mac"), "10.0.0.5")
	require.Error(t, err)
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperr.KindNotFound, appErr.Kind)
}

func TestLogsForUnknownClientIsEmptyNotError(t *testing.T) {
	s := newTestServer(t)
	assert.Empty(t, s.Logs("unknown"))
}

// hmacOf computes the client-side half of the HMAC-SHA256 exchange
// cryptoprim.VerifyHMAC checks server-side; cryptoprim only exposes
// verification, so tests compute the mac directly with the stdlib.
func hmacOf(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}
