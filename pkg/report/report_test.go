package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fazoncore/mdab-tel-cts/pkg/verifier"
)

func TestFromResultPass(t *testing.T) {
	res := &verifier.Result{Pass: true, RunID: "00000000-0000-0000-0000-000000000000"}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r := FromResult("stream.ndjson", verifier.ProfileAudit, res, now)
	require.True(t, r.Verified)
	require.Zero(t, r.Line)
	require.Empty(t, r.Code)
	require.Equal(t, "2026-01-02T03:04:05Z", r.GeneratedAt)
}

func TestFromResultFail(t *testing.T) {
	res := &verifier.Result{Pass: false, Line: 3, Code: "E_SEQ_GAP", RunID: "run-1"}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	r := FromResult("stream.ndjson", verifier.ProfileCore, res, now)
	require.False(t, r.Verified)
	require.Equal(t, 3, r.Line)
	require.Equal(t, "E_SEQ_GAP", r.Code)
}

func TestCanonicalIsDeterministicJSON(t *testing.T) {
	res := &verifier.Result{Pass: false, Line: 1, Code: "E_PARSE_ERROR", RunID: "run-1"}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := FromResult("s.ndjson", verifier.ProfileHA, res, now)

	a, err := r.Canonical()
	require.NoError(t, err)
	b, err := r.Canonical()
	require.NoError(t, err)
	require.Equal(t, a, b)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(a, &decoded))
	require.Equal(t, "E_PARSE_ERROR", decoded["code"])
}

func TestPrettyIsIndentedJSON(t *testing.T) {
	res := &verifier.Result{Pass: true, RunID: "run-2"}
	r := FromResult("s.ndjson", verifier.ProfileCore, res, time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	out, err := r.Pretty()
	require.NoError(t, err)
	require.Contains(t, string(out), "\"verified\": true")
}
