// Command mdabkeygen is a small key-bundle authoring helper: it
// generates an Ed25519 keypair and writes (or updates) a MDAB-KEYS-0.1
// key bundle entry consumed by pkg/keybundle. It is a fixture/operations
// tool, deliberately outside pkg/verifier and never imported by it.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

const bundleVersion = "MDAB-KEYS-0.1"

type bundleKey struct {
	KeyID        string `json:"key_id"`
	Alg          string `json:"alg"`
	PublicKeyB64 string `json:"public_key_b64"`
	NotBeforeUTC string `json:"not_before_utc"`
	NotAfterUTC  string `json:"not_after_utc"`
	Status       string `json:"status"`
}

type bundleRevocation struct {
	KeyID        string `json:"key_id"`
	RevokedAtUTC string `json:"revoked_at_utc"`
}

type bundleDoc struct {
	Version     string             `json:"version"`
	Keys        []bundleKey        `json:"keys"`
	Revocations []bundleRevocation `json:"revocations"`
}

func Run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("mdabkeygen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		keyID     string
		notBefore string
		notAfter  string
		status    string
		out       string
		seed      string
	)
	fs.StringVar(&keyID, "key-id", "", "key identifier to mint (REQUIRED)")
	fs.StringVar(&notBefore, "not-before", "", "not_before_utc, RFC3339 with Z suffix (REQUIRED)")
	fs.StringVar(&notAfter, "not-after", "", "not_after_utc, RFC3339 with Z suffix (REQUIRED)")
	fs.StringVar(&status, "status", "ACTIVE", "key status to record in the bundle")
	fs.StringVar(&out, "out", "keys/verifier_keys.json", "key bundle path to write or update")
	fs.StringVar(&seed, "seed", "", "optional deterministic seed (HKDF-SHA256); random Ed25519 key if omitted")

	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if keyID == "" || notBefore == "" || notAfter == "" {
		fmt.Fprintln(stderr, "Error: --key-id, --not-before, and --not-after are required")
		return 2
	}

	pub, priv, err := generateKey(seed, keyID)
	if err != nil {
		fmt.Fprintf(stderr, "Error: generating key: %v\n", err)
		return 2
	}

	doc, err := loadOrInitBundle(out)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	entry := bundleKey{
		KeyID:        keyID,
		Alg:          "ed25519",
		PublicKeyB64: base64.StdEncoding.EncodeToString(pub),
		NotBeforeUTC: notBefore,
		NotAfterUTC:  notAfter,
		Status:       status,
	}
	doc.Keys = upsertKey(doc.Keys, entry)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error: marshaling bundle: %v\n", err)
		return 2
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(stderr, "Error: creating %s: %v\n", dir, err)
			return 2
		}
	}
	if err := os.WriteFile(out, append(data, '\n'), 0o644); err != nil {
		fmt.Fprintf(stderr, "Error: writing %s: %v\n", out, err)
		return 2
	}

	fmt.Fprintf(stdout, "key_id:          %s\n", keyID)
	fmt.Fprintf(stdout, "public_key_b64:  %s\n", entry.PublicKeyB64)
	fmt.Fprintf(stdout, "private_key_b64: %s\n", base64.StdEncoding.EncodeToString(priv))
	fmt.Fprintf(stdout, "bundle:          %s\n", out)
	return 0
}

// generateKey produces an Ed25519 keypair. With a non-empty seed, the
// 32-byte Ed25519 seed is derived deterministically via HKDF-SHA256
// from seed, with keyID as the HKDF info, so distinct key IDs drawn from
// the same seed get distinct keys. A random key is generated when seed is empty, which is the
// expected path for anything but reproducible test fixtures.
func generateKey(seed, keyID string) (ed25519.PublicKey, ed25519.PrivateKey, error) {
	if seed == "" {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		return pub, priv, err
	}

	hkdfReader := hkdf.New(sha256.New, []byte(seed), []byte("mdabkeygen-v1"), []byte(keyID))
	derivedSeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdfReader, derivedSeed); err != nil {
		return nil, nil, fmt.Errorf("hkdf derivation: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(derivedSeed)
	pub := priv.Public().(ed25519.PublicKey)
	return pub, priv, nil
}

func loadOrInitBundle(path string) (*bundleDoc, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &bundleDoc{Version: bundleVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc bundleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Version != bundleVersion {
		return nil, fmt.Errorf("%s has unsupported version %q (want %q)", path, doc.Version, bundleVersion)
	}
	return &doc, nil
}

func upsertKey(keys []bundleKey, entry bundleKey) []bundleKey {
	for i, k := range keys {
		if k.KeyID == entry.KeyID {
			keys[i] = entry
			return keys
		}
	}
	return append(keys, entry)
}
