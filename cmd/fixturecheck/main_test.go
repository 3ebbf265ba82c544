package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunAllFixturesPass(t *testing.T) {
	var stdout, stderr bytes.Buffer
	rc := Run(&stdout, &stderr)
	require.Equal(t, 0, rc, stdout.String())
	require.Contains(t, stdout.String(), "bad=0")
}

func TestCheckFixtureIntegerOK(t *testing.T) {
	outcome, hash, code := checkFixture([]byte(`{"spec_version":"v1","event_type":"X","payload":{"n":1}}`))
	require.Equal(t, "PASS", outcome)
	require.NotEmpty(t, hash)
	require.Empty(t, code)
}

func TestCheckFixtureFloatForbidden(t *testing.T) {
	outcome, _, code := checkFixture([]byte(`{"spec_version":"v1","event_type":"X","payload":{"n":1.5}}`))
	require.Equal(t, "FAIL_CLOSED", outcome)
	require.Equal(t, "ERR_NUM_FLOAT_FORBIDDEN", code)
}

func TestCheckFixtureScientificForbidden(t *testing.T) {
	outcome, _, code := checkFixture([]byte(`{"spec_version":"v1","event_type":"X","payload":{"n":1e3}}`))
	require.Equal(t, "FAIL_CLOSED", outcome)
	require.Equal(t, "ERR_NUM_SCIENTIFIC_NOTATION", code)
}

func TestCheckFixtureNegativeZeroForbidden(t *testing.T) {
	outcome, _, code := checkFixture([]byte(`{"spec_version":"v1","event_type":"X","payload":{"n":-0}}`))
	require.Equal(t, "FAIL_CLOSED", outcome)
	require.Equal(t, "ERR_NUM_NEGATIVE_ZERO", code)
}

func TestCheckFixtureUnknownField(t *testing.T) {
	outcome, _, code := checkFixture([]byte(`{"spec_version":"v1","event_type":"X","payload":{},"extra":1}`))
	require.Equal(t, "FAIL_CLOSED", outcome)
	require.Equal(t, "ERR_UNKNOWN_FIELD", code)
}

func TestCheckFixtureDuplicateKey(t *testing.T) {
	outcome, _, code := checkFixture([]byte(`{"spec_version":"v1","spec_version":"v2","event_type":"X","payload":{}}`))
	require.Equal(t, "FAIL_CLOSED", outcome)
	require.Equal(t, "ERR_JSON_DUPLICATE_KEYS", code)
}

func TestNFCComposedAndDecomposedHashEqual(t *testing.T) {
	composed, err := embeddedFixtures.ReadFile(fixtureDir + "/unicode_nfc_composed.json")
	require.NoError(t, err)
	decomposed, err := embeddedFixtures.ReadFile(fixtureDir + "/unicode_nfc_decomposed.json")
	require.NoError(t, err)

	_, h1, _ := checkFixture(composed)
	_, h2, _ := checkFixture(decomposed)
	require.Equal(t, h1, h2)
	require.NotEqual(t, composed, decomposed, "fixtures should differ byte-for-byte despite matching after NFC")
}
