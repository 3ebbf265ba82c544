package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fazoncore/mdab-tel-cts/pkg/canonicalize"
)

func emitter() map[string]interface{} {
	return map[string]interface{}{
		"service": "risk-api", "instance_id": "i-1", "env": "prod", "region": "us-east-1",
	}
}

func decisionEvent(t *testing.T) string {
	t.Helper()
	core := map[string]interface{}{"action": "allow", "risk_score": json.Number("7")}
	decisionHash, err := canonicalize.PrefixedHash(core)
	require.NoError(t, err)

	ev := map[string]interface{}{
		"event_type":      "DECISION",
		"ts_utc":          "2026-01-01T00:00:00Z",
		"seq":             json.Number("0"),
		"prev_event_hash": nil,
		"emitter":         emitter(),
		"decision": map[string]interface{}{
			"decision_core": core,
			"decision_hash": decisionHash,
		},
	}
	eventHash, err := canonicalize.PrefixedHash(ev)
	require.NoError(t, err)
	ev["event_hash"] = eventHash

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return string(data) + "\n"
}

func writeStream(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.ndjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunCorePass(t *testing.T) {
	path := writeStream(t, decisionEvent(t))
	var stdout, stderr bytes.Buffer
	rc := Run([]string{"mdabverify", "--profile", "core", path}, &stdout, &stderr)
	require.Equal(t, 0, rc)
	require.Contains(t, stdout.String(), "=== RESULT: PASS ===")
}

func TestRunCoreFailBadHash(t *testing.T) {
	bad := `{"event_type":"DECISION","ts_utc":"2026-01-01T00:00:00Z","seq":0,"prev_event_hash":null,"emitter":{"service":"s","instance_id":"i","env":"prod","region":"us-east-1"},"decision":{"decision_core":{"a":1},"decision_hash":"sha256:0000000000000000000000000000000000000000000000000000000000000000"},"event_hash":"sha256:0000000000000000000000000000000000000000000000000000000000000000"}` + "\n"
	path := writeStream(t, bad)
	var stdout, stderr bytes.Buffer
	rc := Run([]string{"mdabverify", "--profile", "core", path}, &stdout, &stderr)
	require.Equal(t, 1, rc)
	require.Contains(t, stdout.String(), "=== RESULT: FAIL ===")
	require.Contains(t, stdout.String(), "E_DECISION_HASH_MISMATCH")
}

func TestRunMissingFileIsUsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	rc := Run([]string{"mdabverify", "--profile", "core", "/no/such/file.ndjson"}, &stdout, &stderr)
	require.Equal(t, 2, rc)
}

func TestRunInvalidProfileIsUsageError(t *testing.T) {
	path := writeStream(t, decisionEvent(t))
	var stdout, stderr bytes.Buffer
	rc := Run([]string{"mdabverify", "--profile", "bogus", path}, &stdout, &stderr)
	require.Equal(t, 2, rc)
}

func TestRunNoArgsIsUsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	rc := Run([]string{"mdabverify"}, &stdout, &stderr)
	require.Equal(t, 2, rc)
}

func TestRunJSONOutWritesCanonicalReport(t *testing.T) {
	path := writeStream(t, decisionEvent(t))
	outPath := filepath.Join(t.TempDir(), "report.json")
	var stdout, stderr bytes.Buffer
	rc := Run([]string{"mdabverify", "--profile", "core", "--json-out", outPath, path}, &stdout, &stderr)
	require.Equal(t, 0, rc)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, true, decoded["verified"])
}
