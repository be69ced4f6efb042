package audit

// Stamp is the audit server's co-signed attestation that it observed and
// logged a particular sealed envelope from a particular client address at
// a particular time. Its marshaled JSON is the exact byte sequence the
// Ed25519 signature covers; the lock server verifies the signature over
// those bytes as received and only then decodes them.
type Stamp struct {
	EnvelopeHash string `json:"envelopeHash"`
	ClientIP     string `json:"clientIp"`
	Timestamp    int64  `json:"timestamp"`
}
