// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// compliant serialization for deterministic content-addressed hashing of
// telemetry events.
//
// This is the hash-critical canonical form: decision_hash and event_hash
// are defined in terms of JCS(x), and block_hash is taken over a text list
// of those event hashes (see the chain package).
// Unlike a general-purpose canonicalizer, this one is purpose-built for a
// single closed input domain: the interface{} trees strictjson.Value.
// ToInterface produces, where every number is already a json.Number
// carrying its original decimal text. There is no arbitrary-struct or
// json-tag support here — the caller always hands this package a value
// that already came through the strict parser's duplicate-key and
// numeric-kind checks, so a generic "marshal whatever you're given first,
// then canonicalize the intermediate" pass would just be dead
// indirection. json.Number is threaded through unmodified so integers up
// to int64 are reproduced digit-for-digit — unlike a float64 round trip,
// which would lose precision near the ±2^63 boundary the numeric policy
// gate enforces.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// JCS returns the RFC 8785 canonical JSON representation of v. v must be
// built from the closed set produced by strictjson.Value.ToInterface:
// nil, bool, json.Number, string, []interface{}, or map[string]interface{}.
// Any other type is a caller error, not a best-effort fallback.
func JCS(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON representation of v.
func CanonicalHash(v interface{}) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// PrefixedHash returns "sha256:" + hex(SHA-256(JCS(v))), the wire form used
// for decision_hash and event_hash.
func PrefixedHash(v interface{}) (string, error) {
	h, err := CanonicalHash(v)
	if err != nil {
		return "", err
	}
	return "sha256:" + h, nil
}

// PrefixedHashBytes returns "sha256:" + hex(SHA-256(data)) for already-canonical
// bytes, such as the block_hash material.
func PrefixedHashBytes(data []byte) string {
	return "sha256:" + HashBytes(data)
}

// HashBytes computes SHA-256 hash of raw bytes and returns hex string
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// JCSString returns the JCS canonical form as a string
func JCSString(v interface{}) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// writeCanonical appends the canonical encoding of v to buf. Object keys
// are sorted lexicographically by UTF-8 byte value (RFC 8785 §3.2.3),
// members/elements are comma-separated with no surrounding whitespace,
// and string escaping never HTML-escapes (RFC 8785 disallows it; the
// stdlib encoder's default HTML escaping would otherwise corrupt the
// hash for any event payload containing '<', '>', or '&').
func writeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		buf.WriteString(t.String())
		return nil
	case string:
		return writeCanonicalString(buf, t)
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("canonicalize: unsupported type %T (expected nil, bool, json.Number, string, []interface{}, or map[string]interface{} from strictjson.Value.ToInterface)", v)
	}
}

// writeCanonicalString appends s as a quoted, escaped JSON string with
// HTML escaping disabled, trimming the trailing newline json.Encoder
// always appends.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1)
	return nil
}
