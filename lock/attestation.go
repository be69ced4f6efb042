package lock

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sage-x-project/lockaudit/apperr"
)

// oidAttestation is the Android/KeyMint hardware key attestation extension.
var oidAttestation = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 1, 17}

// Security levels from the KeyMint attestation schema.
const (
	securityLevelSoftware           = 0
	securityLevelTrustedEnvironment = 1
	securityLevelStrongBox          = 2
)

// authorizationList mirrors the KeyMint AuthorizationList ASN.1 schema
// (tag numbers fixed by the hardware-attestation spec). Only the fields
// consulted by spec §4.5.5 are given meaningful Go types; presence-only
// fields use asn1.RawValue so "set" can be checked via non-empty
// FullBytes without caring about the NULL payload.
type authorizationList struct {
	Purpose                     []int64       `asn1:"set,optional,explicit,tag:1"`
	Algorithm                   int           `asn1:"optional,explicit,tag:2"`
	KeySize                     int           `asn1:"optional,explicit,tag:3"`
	Digest                      []int64       `asn1:"set,optional,explicit,tag:5"`
	Padding                     []int64       `asn1:"set,optional,explicit,tag:6"`
	ECCurve                     int           `asn1:"optional,explicit,tag:10"`
	RSAPublicExponent           int64         `asn1:"optional,explicit,tag:200"`
	MGFDigest                   []int64       `asn1:"set,optional,explicit,tag:203"`
	RollbackResistance          asn1.RawValue `asn1:"optional,explicit,tag:303"`
	EarlyBootOnly               asn1.RawValue `asn1:"optional,explicit,tag:305"`
	ActiveDateTime              int64         `asn1:"optional,explicit,tag:400"`
	OriginationExpireDateTime   int64         `asn1:"optional,explicit,tag:401"`
	UsageExpireDateTime         int64         `asn1:"optional,explicit,tag:402"`
	UsageCountLimit             int64         `asn1:"optional,explicit,tag:405"`
	NoAuthRequired              asn1.RawValue `asn1:"optional,explicit,tag:503"`
	UserAuthType                int64         `asn1:"optional,explicit,tag:504"`
	AuthTimeout                 int64         `asn1:"optional,explicit,tag:505"`
	AllowWhileOnBody            asn1.RawValue `asn1:"optional,explicit,tag:506"`
	TrustedUserPresenceRequired asn1.RawValue `asn1:"optional,explicit,tag:507"`
	TrustedConfirmationRequired asn1.RawValue `asn1:"optional,explicit,tag:508"`
	UnlockedDeviceRequired      asn1.RawValue `asn1:"optional,explicit,tag:509"`
	CreationDateTime            int64         `asn1:"optional,explicit,tag:701"`
	Origin                      int64         `asn1:"optional,explicit,tag:702"`
	RootOfTrust                 asn1.RawValue `asn1:"optional,explicit,tag:704"`
	OSVersion                   int64         `asn1:"optional,explicit,tag:705"`
	OSPatchLevel                int64         `asn1:"optional,explicit,tag:706"`
	AttestationApplicationID    []byte        `asn1:"optional,explicit,tag:709"`
	AttestationIDBrand          []byte        `asn1:"optional,explicit,tag:710"`
	AttestationIDDevice         []byte        `asn1:"optional,explicit,tag:711"`
	AttestationIDProduct        []byte        `asn1:"optional,explicit,tag:712"`
	AttestationIDSerial         []byte        `asn1:"optional,explicit,tag:713"`
	AttestationIDImei           []byte        `asn1:"optional,explicit,tag:714"`
	AttestationIDMeid           []byte        `asn1:"optional,explicit,tag:715"`
	AttestationIDManufacturer   []byte        `asn1:"optional,explicit,tag:716"`
	AttestationIDModel          []byte        `asn1:"optional,explicit,tag:717"`
	VendorPatchLevel            int64         `asn1:"optional,explicit,tag:718"`
	BootPatchLevel              int64         `asn1:"optional,explicit,tag:719"`
	DeviceUniqueAttestation     asn1.RawValue `asn1:"optional,explicit,tag:720"`
}

func (a authorizationList) noAuthRequired() bool         { return len(a.NoAuthRequired.FullBytes) > 0 }
func (a authorizationList) unlockedDeviceRequired() bool { return len(a.UnlockedDeviceRequired.FullBytes) > 0 }

// keyDescription is the top-level KeyDescription ASN.1 sequence carried in
// the attestation extension.
type keyDescription struct {
	AttestationVersion      int
	AttestationSecurityLevel asn1.Enumerated
	KeymintVersion          int
	KeymintSecurityLevel    asn1.Enumerated
	AttestationChallenge    []byte
	UniqueID                []byte
	SoftwareEnforced        authorizationList
	TeeEnforced             authorizationList
}

// AttestationResult is the outcome of a successful VerifyAttestationChain
// call, returned with OK set. Every failure is returned as an
// AttestationFailure error instead (see apperr), and Errors is left empty.
type AttestationResult struct {
	OK     bool
	Errors []string
}

func (r *AttestationResult) fail(format string, args ...interface{}) {
	r.OK = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// VerifyAttestationChain verifies a base64-DER certificate chain (leaf
// first) against trustedRoots, binds it to challengeID, and enforces the
// delegation-specific key-usage policy from spec §4.5.5 when isDelegation
// is true. Trusted roots are supplied by the caller rather than compiled
// in: committing the exact DER bytes of the current Google hardware
// attestation roots into source risks silently trusting a stale or wrong
// anchor, so this port loads them from an operator-supplied file at
// startup (see cmd/lockserver).
func VerifyAttestationChain(trustedRoots [][]byte, chainB64 []string, challengeID string, isDelegation bool, gracePeriodMs int64) (*AttestationResult, error) {
	result := &AttestationResult{OK: true}

	if len(chainB64) == 0 {
		return nil, apperr.AttestationFailure("empty attestation chain")
	}

	certs := make([]*x509.Certificate, 0, len(chainB64))
	for i, c := range chainB64 {
		der, err := base64.StdEncoding.DecodeString(c)
		if err != nil {
			return nil, apperr.AttestationFailure(fmt.Sprintf("chain[%d]: bad base64", i))
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, apperr.AttestationFailure(fmt.Sprintf("chain[%d]: bad certificate", i))
		}
		certs = append(certs, cert)
	}

	root := certs[len(certs)-1]
	if !isTrustedRoot(root.Raw, trustedRoots) {
		return nil, apperr.AttestationFailure("chain root is not a trusted hardware attestation root")
	}

	now := time.Now()
	parent := root
	for i := len(certs) - 1; i >= 0; i-- {
		cert := certs[i]
		if err := cert.CheckSignatureFrom(parent); err != nil {
			return nil, apperr.AttestationFailure(fmt.Sprintf("chain[%d]: signature does not verify under parent", i))
		}
		if now.Before(cert.NotBefore) || now.After(cert.NotAfter) {
			return nil, apperr.AttestationFailure(fmt.Sprintf("chain[%d]: certificate not valid at current time", i))
		}
		if !bytes.Equal(cert.RawIssuer, parent.RawSubject) {
			return nil, apperr.AttestationFailure(fmt.Sprintf("chain[%d]: issuer does not match parent subject", i))
		}
		parent = cert
	}

	leaf := certs[0]
	var ext []byte
	for _, e := range leaf.Extensions {
		if e.Id.Equal(oidAttestation) {
			ext = e.Value
			break
		}
	}
	if ext == nil {
		return nil, apperr.AttestationFailure("leaf certificate has no attestation extension")
	}

	var desc keyDescription
	if _, err := asn1.Unmarshal(ext, &desc); err != nil {
		return nil, apperr.AttestationFailure("malformed KeyDescription")
	}

	if !bytes.Equal(desc.AttestationChallenge, []byte(challengeID)) {
		return nil, apperr.AttestationFailure("attestation challenge does not match current session")
	}

	if !isHardwareBacked(int(desc.AttestationSecurityLevel)) {
		return nil, apperr.AttestationFailure("attestation security level is not hardware-backed")
	}
	if !isHardwareBacked(int(desc.KeymintSecurityLevel)) {
		return nil, apperr.AttestationFailure("keymint security level is not hardware-backed")
	}

	grace := gracePeriodMs
	nowMs := now.UnixMilli()
	if t := desc.SoftwareEnforced.ActiveDateTime; t != 0 && t > nowMs+grace {
		return nil, apperr.AttestationFailure("key not yet active")
	}
	if t := desc.SoftwareEnforced.CreationDateTime; t != 0 && t > nowMs+grace {
		return nil, apperr.AttestationFailure("key creation time in the future")
	}
	if t := desc.SoftwareEnforced.UsageExpireDateTime; t != 0 && t < nowMs-grace {
		return nil, apperr.AttestationFailure("key usage window expired")
	}

	if isDelegation {
		if desc.TeeEnforced.noAuthRequired() {
			return nil, apperr.AttestationFailure("delegation key must require user authentication")
		}
		if !desc.TeeEnforced.unlockedDeviceRequired() {
			return nil, apperr.AttestationFailure("delegation key must require an unlocked device")
		}
	}

	return result, nil
}

func isHardwareBacked(level int) bool {
	return level == securityLevelTrustedEnvironment || level == securityLevelStrongBox
}

func isTrustedRoot(der []byte, roots [][]byte) bool {
	for _, r := range roots {
		if bytes.Equal(der, r) {
			return true
		}
	}
	return false
}
