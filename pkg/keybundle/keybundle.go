// Package keybundle loads and queries the verifier's key bundle document:
// a JSON document of {version, keys[], revocations[]} used to resolve
// signer identities during signature verification. A bad version string
// is a fatal load error; everything else about a bundle is queried
// through Bundle's lookup methods.
package keybundle

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Version is the only accepted key bundle schema version.
const Version = "MDAB-KEYS-0.1"

// LoadError is returned when the bundle document itself cannot be used —
// unreadable file, malformed JSON, or (most notably) a version mismatch.
// This is the fatal, non-line-numbered failure class: the caller surfaces
// it as an exit-2 usage/IO failure when loaded eagerly at startup for the
// ha profile, and as a line-numbered E_KEY_UNKNOWN when encountered via
// lazy load on the first signature-bearing event under core/audit (see
// pkg/verifier).
type LoadError struct {
	Path   string
	Reason string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("keybundle: load %s: %s", e.Path, e.Reason)
}

type rawKey struct {
	KeyID        string `json:"key_id"`
	Alg          string `json:"alg"`
	PublicKeyB64 string `json:"public_key_b64"`
	NotBeforeUTC string `json:"not_before_utc"`
	NotAfterUTC  string `json:"not_after_utc"`
	Status       string `json:"status"`
}

type rawRevocation struct {
	KeyID        string `json:"key_id"`
	RevokedAtUTC string `json:"revoked_at_utc"`
}

type rawBundle struct {
	Version     string          `json:"version"`
	Keys        []rawKey        `json:"keys"`
	Revocations []rawRevocation `json:"revocations"`
}

// Entry is one resolved key bundle entry, parsed into usable time bounds.
type Entry struct {
	KeyID        string
	Alg          string
	PublicKeyB64 string
	NotBefore    time.Time
	NotAfter     time.Time
	Status       string
	RevokedAt    *time.Time
}

// Bundle is the loaded, queryable form of a key bundle document.
type Bundle struct {
	entries map[string]Entry
}

// Load reads and parses the key bundle at path. It is intentionally not
// strict-JSON (pkg/strictjson is for the telemetry stream, not
// operator-authored key material) — a load error is never a hash-chain
// verdict on the stream's own content (see LoadError for how callers
// surface it), so the extra duplicate-key/float rigor has no protocol
// role to play.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Reason: err.Error()}
	}

	var raw rawBundle
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &LoadError{Path: path, Reason: "malformed JSON: " + err.Error()}
	}
	if raw.Version != Version {
		return nil, &LoadError{Path: path, Reason: fmt.Sprintf("unsupported version %q", raw.Version)}
	}

	revoked := make(map[string]time.Time, len(raw.Revocations))
	for _, r := range raw.Revocations {
		ts, err := parseRFC3339UTC(r.RevokedAtUTC)
		if err != nil {
			return nil, &LoadError{Path: path, Reason: "revocation " + r.KeyID + ": " + err.Error()}
		}
		revoked[r.KeyID] = ts
	}

	entries := make(map[string]Entry, len(raw.Keys))
	for _, k := range raw.Keys {
		nb, err := parseRFC3339UTC(k.NotBeforeUTC)
		if err != nil {
			return nil, &LoadError{Path: path, Reason: "key " + k.KeyID + " not_before_utc: " + err.Error()}
		}
		na, err := parseRFC3339UTC(k.NotAfterUTC)
		if err != nil {
			return nil, &LoadError{Path: path, Reason: "key " + k.KeyID + " not_after_utc: " + err.Error()}
		}
		e := Entry{
			KeyID:        k.KeyID,
			Alg:          k.Alg,
			PublicKeyB64: k.PublicKeyB64,
			NotBefore:    nb,
			NotAfter:     na,
			Status:       k.Status,
		}
		if r, ok := revoked[k.KeyID]; ok {
			rCopy := r
			e.RevokedAt = &rCopy
		}
		entries[k.KeyID] = e
	}

	return &Bundle{entries: entries}, nil
}

// Lookup returns the entry for keyID, or false if unknown.
func (b *Bundle) Lookup(keyID string) (Entry, bool) {
	e, ok := b.entries[keyID]
	return e, ok
}

// parseRFC3339UTC requires the mandatory Z suffix on every timestamp
// path, including key validity windows.
func parseRFC3339UTC(s string) (time.Time, error) {
	if len(s) == 0 || s[len(s)-1] != 'Z' {
		return time.Time{}, fmt.Errorf("timestamp %q must end in Z", s)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid RFC3339 timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseEventTimestamp is the same RFC3339+Z parser exposed for event
// ts_utc fields outside the key bundle (signature verification compares
// an event timestamp against key windows using the identical rule).
func ParseEventTimestamp(s string) (time.Time, error) {
	return parseRFC3339UTC(s)
}
