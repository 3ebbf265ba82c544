// Package signature implements the detached Ed25519 signature check:
// resolving a signer in the key bundle, enforcing its validity window
// and revocation status, and verifying the signature bytes over an
// event's own event_hash digest.
package signature

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fazoncore/mdab-tel-cts/pkg/event"
	"github.com/fazoncore/mdab-tel-cts/pkg/keybundle"
)

// Code is one of the stable error identifiers this package can return.
type Code string

const (
	CodeKeyUnknown   Code = "E_KEY_UNKNOWN"
	CodeKeyExpired   Code = "E_KEY_EXPIRED"
	CodeKeyRevoked   Code = "E_KEY_REVOKED"
	CodeSigInvalid   Code = "E_SIG_INVALID"
	CodeHashMismatch Code = "E_HASH_MISMATCH"
)

// Failure is a typed signature-layer error carrying the stable code.
type Failure struct {
	Code Code
}

func (f *Failure) Error() string { return string(f.Code) }

func fail(c Code) error { return &Failure{Code: c} }

// Claim is the minimal shape of a signature-bearing event's signature
// block plus the fields needed to verify it.
type Claim struct {
	Alg       string
	KeyID     string
	SigB64    string
	EventHash string // must be "sha256:"-prefixed
	TsUTC     string // RFC3339, Z-suffixed
}

// Verify runs the checks in a fixed order: unknown key, bad alg,
// revoked/expired status, malformed event_hash, then the actual Ed25519
// verification over the raw 32-byte digest. The order is part of the
// protocol — every failure maps to exactly one code, and the cheap
// structural checks run before any signature bytes are looked at.
func Verify(bundle *keybundle.Bundle, c Claim) error {
	entry, ok := bundle.Lookup(c.KeyID)
	if !ok {
		return fail(CodeKeyUnknown)
	}
	if c.Alg != "ed25519" {
		return fail(CodeSigInvalid)
	}
	if entry.Status != string(event.KeyStatusActive) {
		return fail(CodeKeyRevoked)
	}

	ts, err := keybundle.ParseEventTimestamp(c.TsUTC)
	if err != nil {
		return fmt.Errorf("signature: parse ts_utc: %w", err)
	}
	if ts.Before(entry.NotBefore) || ts.After(entry.NotAfter) {
		return fail(CodeKeyExpired)
	}
	if entry.RevokedAt != nil && !ts.Before(*entry.RevokedAt) {
		return fail(CodeKeyRevoked)
	}

	digest, err := digestBytes(c.EventHash)
	if err != nil {
		return fail(CodeHashMismatch)
	}

	pub, err := decodePublicKey(entry.PublicKeyB64)
	if err != nil {
		return fail(CodeSigInvalid)
	}

	sigBytes, err := base64.StdEncoding.DecodeString(c.SigB64)
	if err != nil {
		return fail(CodeSigInvalid)
	}

	if !ed25519.Verify(pub, digest, sigBytes) {
		return fail(CodeSigInvalid)
	}
	return nil
}

// digestBytes hex-decodes the suffix of a sha256:-prefixed hash into its
// raw 32 bytes, the material Ed25519 signs.
func digestBytes(prefixedHash string) ([]byte, error) {
	if !strings.HasPrefix(prefixedHash, event.Sha256Prefix) {
		return nil, fmt.Errorf("signature: %q is not sha256:-prefixed", prefixedHash)
	}
	return hex.DecodeString(strings.TrimPrefix(prefixedHash, event.Sha256Prefix))
}

func decodePublicKey(b64 string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("signature: public key is %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(raw), nil
}
